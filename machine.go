// machine.go - Top-level machine assembly
//
// A Machine owns the shared peripherals (text screen, key queue,
// filesystem) and the scheduler. Tasks are spawned from program
// images and share the peripherals while each keeps a private
// memory image.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"time"
)

// BIOS timer tick rate
const ticksPerSecond = 18.2065

type Machine struct {
	screen *TextScreen
	keys   *KeyQueue
	fs     Filesystem
	sched  *Scheduler

	start  time.Time
	nextID int
}

func NewMachine(fs Filesystem) *Machine {
	return &Machine{
		screen: NewTextScreen(),
		keys:   NewKeyQueue(),
		fs:     fs,
		sched:  NewScheduler(),
		start:  time.Now(),
		nextID: 1,
	}
}

func (m *Machine) Screen() *TextScreen { return m.screen }
func (m *Machine) Keys() *KeyQueue     { return m.keys }
func (m *Machine) Sched() *Scheduler   { return m.sched }

// Ticks returns 18.2 Hz timer ticks since machine start
func (m *Machine) Ticks() uint32 {
	return uint32(time.Since(m.start).Seconds() * ticksPerSecond)
}

// Spawn loads a program image, picking the format from its name and
// leading bytes, and adds the resulting task to the scheduler
func (m *Machine) Spawn(name string, image []byte, args string) (*Task, error) {
	id := m.nextID
	m.nextID++

	var t *Task
	var err error
	switch DetectFormat(name, image) {
	case FormatELF:
		t, err = LoadELF64(m, id, name, image)
	case FormatEXE:
		t = NewTask16(m, id, name)
		err = LoadEXE(t, image, args)
	case FormatCOM:
		t = NewTask16(m, id, name)
		err = LoadCOM(t, image, args)
	default:
		return nil, fmt.Errorf("unrecognised program format: %s", name)
	}
	if err != nil {
		return nil, err
	}
	m.sched.AddTask(t)
	return t, nil
}

// Run drives the scheduler until every task terminates. onTick, when
// non-nil, runs once per scheduler tick for frontends to pump input
// and repaint.
func (m *Machine) Run(onTick func() bool) {
	for m.sched.HasRunningTasks() {
		m.sched.Schedule()
		if onTick != nil && !onTick() {
			return
		}
		if m.allBlocked() {
			time.Sleep(time.Millisecond)
		}
	}
}

func (m *Machine) allBlocked() bool {
	for _, t := range m.sched.Tasks() {
		if t.State == TaskRunning {
			return false
		}
	}
	return true
}
