// scheduler_test.go - Round-robin scheduler tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"testing"
	"time"
)

// spinTask16 builds a task running an endless INC AX loop
func spinTask16(m *Machine, id int) *Task {
	task := NewTask16(m, id, "spin")
	c := task.cpu16
	c.CS = 0x0100
	c.SS = 0x0900
	c.SP = 0xFFFE
	c.IP = 0
	// INC AX; JMP -3
	c.mem.WriteBytes(c.CS, 0, []byte{0x40, 0xEB, 0xFD})
	return task
}

func TestSched_BudgetIsShared(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	a := spinTask16(m, 1)
	b := spinTask16(m, 2)
	m.sched.AddTask(a)
	m.sched.AddTask(b)

	m.sched.Schedule()

	// Both ran, and neither ran more than the budget allows
	if a.cpu16.AX == 0 || b.cpu16.AX == 0 {
		t.Errorf("both tasks should progress: a=%d b=%d", a.cpu16.AX, b.cpu16.AX)
	}
	if a.cpu16.AX > defaultTickBudget || b.cpu16.AX > defaultTickBudget {
		t.Errorf("task exceeded its budget: a=%d b=%d", a.cpu16.AX, b.cpu16.AX)
	}
}

func TestSched_FairnessAcrossTicks(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	a := spinTask16(m, 1)
	b := spinTask16(m, 2)
	m.sched.AddTask(a)
	m.sched.AddTask(b)

	for i := 0; i < 10; i++ {
		m.sched.Schedule()
	}
	if a.cpu16.AX != b.cpu16.AX {
		t.Errorf("equal tasks should get equal time: a=%d b=%d", a.cpu16.AX, b.cpu16.AX)
	}
}

func TestSched_ReapsTerminated(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	a := spinTask16(m, 1)
	b := spinTask16(m, 2)
	m.sched.AddTask(a)
	m.sched.AddTask(b)

	a.terminate(0)
	m.sched.Schedule()
	if len(m.sched.Tasks()) != 1 {
		t.Fatalf("terminated task should be reaped, %d left", len(m.sched.Tasks()))
	}
	if m.sched.Tasks()[0] != b {
		t.Error("wrong task reaped")
	}
}

func TestSched_HasRunningTasks(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	if m.sched.HasRunningTasks() {
		t.Error("empty scheduler has nothing to run")
	}
	a := spinTask16(m, 1)
	m.sched.AddTask(a)
	if !m.sched.HasRunningTasks() {
		t.Error("a live task should report runnable")
	}
	a.terminate(0)
	if m.sched.HasRunningTasks() {
		t.Error("a terminated task is not runnable")
	}
}

func TestSched_KeyWakesBlockedTask(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	task := NewTask16(m, 1, "reader")
	c := task.cpu16
	c.CS = 0x0100
	c.SS = 0x0900
	c.SP = 0xFFFE
	c.IP = 0
	// MOV AH, 08; INT 21; HLT
	c.mem.WriteBytes(c.CS, 0, []byte{0xB4, 0x08, 0xCD, 0x21, 0xF4})
	m.sched.AddTask(task)

	m.sched.Schedule()
	if task.State != TaskBlocked {
		t.Fatalf("task should block on empty queue, state=%v", task.State)
	}

	// Still blocked on the next tick
	m.sched.Schedule()
	if task.State != TaskBlocked {
		t.Fatal("task should stay blocked without input")
	}

	m.keys.PushASCII('q')
	m.sched.Schedule()
	if task.cpu16.AL() != 'q' {
		t.Errorf("woken task should read the key, AL=0x%02X", task.cpu16.AL())
	}
}

func TestSched_SleepWakes(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	task := NewTask64(m, 1, "sleeper", 0x400000, 1<<16)
	m.sched.AddTask(task)
	task.wakeAt = time.Now().Add(-time.Millisecond)
	task.State = TaskBlocked

	m.sched.PollTasks()
	if task.State != TaskRunning {
		t.Error("an expired sleep should wake the task")
	}
	if !task.wakeAt.IsZero() {
		t.Error("wake deadline should be cleared")
	}
}
