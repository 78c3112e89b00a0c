// scheduler.go - Cooperative round-robin task scheduler
//
// Every tick gives each runnable task a fixed instruction budget.
// Tasks block themselves while waiting for input or a sleep deadline
// and the scheduler wakes them when the wait is satisfiable.
// Terminated tasks are reaped at the end of each tick.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "time"

// instructions per task per scheduler tick
const defaultTickBudget = 256

type Scheduler struct {
	tasks  []*Task
	budget int
}

func NewScheduler() *Scheduler {
	return &Scheduler{budget: defaultTickBudget}
}

// AddTask appends a task to the round-robin ring
func (s *Scheduler) AddTask(t *Task) {
	s.tasks = append(s.tasks, t)
}

// Tasks returns the live task list
func (s *Scheduler) Tasks() []*Task {
	return s.tasks
}

// Schedule runs one tick: wake what can run, give every runnable task
// its budget in ring order, then reap the dead
func (s *Scheduler) Schedule() {
	s.PollTasks()
	for _, t := range s.tasks {
		if t.State == TaskRunning {
			t.StepBudget(s.budget)
		}
	}
	s.reap()
}

// PollTasks re-evaluates blocked tasks. A task sleeping on a deadline
// wakes when it passes; a task blocked on input wakes when a key is
// queued so its rewound INT can retry.
func (s *Scheduler) PollTasks() {
	now := time.Now()
	for _, t := range s.tasks {
		if t.State != TaskBlocked {
			continue
		}
		if !t.wakeAt.IsZero() {
			if now.After(t.wakeAt) {
				t.wakeAt = time.Time{}
				t.State = TaskRunning
			}
			continue
		}
		if _, ok := t.m.keys.Peek(); ok {
			t.State = TaskRunning
		}
	}
}

// HasRunningTasks reports whether any task can still make progress
func (s *Scheduler) HasRunningTasks() bool {
	for _, t := range s.tasks {
		if t.State != TaskTerminated {
			return true
		}
	}
	return false
}

func (s *Scheduler) reap() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if t.State != TaskTerminated {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
}
