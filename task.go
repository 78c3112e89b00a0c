// task.go - Guest task state
//
// A Task owns one CPU core (16 or 64-bit), its private memory image and
// its DOS-visible resources: PSP segment, MCB chain, open file table.
// It is the host-side interrupt and syscall handler for its CPU.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"time"
)

// TaskState tracks a task through its lifecycle
type TaskState int

const (
	TaskRunning TaskState = iota
	TaskBlocked
	TaskTerminated
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskTerminated:
		return "terminated"
	}
	return "unknown"
}

const (
	// DOS file table: handles 0-4 are the predefined devices
	// (stdin, stdout, stderr, aux, prn)
	maxFileHandles  = 20
	firstFreeHandle = 5
	dosHandleStdin  = 0
	dosHandleStdout = 1
	dosHandleStderr = 2
)

// FileHandle is one open file in a task's handle table. Contents are
// held in memory and flushed on close.
type FileHandle struct {
	name     string
	data     []byte
	pos      int64
	writable bool
	dirty    bool
}

// Task is one running guest program
type Task struct {
	ID    int
	Name  string
	State TaskState

	// Exactly one of these is set
	cpu16 *CPU_8086
	cpu64 *CPU_X64

	mem16 *RealMemory
	mem64 *FlatMemory

	mcb    *MCBChain
	pspSeg uint16

	files [maxFileHandles]*FileHandle

	// Sleep deadline, zero when not sleeping
	wakeAt time.Time

	ExitCode byte

	m *Machine
}

// NewTask16 creates a real-mode task over a fresh 1 MiB image
func NewTask16(m *Machine, id int, name string) *Task {
	mem := NewRealMemory()
	t := &Task{
		ID:    id,
		Name:  name,
		State: TaskRunning,
		mem16: mem,
		m:     m,
	}
	t.cpu16 = NewCPU_8086(mem)
	t.cpu16.SetIntHandler(t)
	t.mcb = InitMCBChain(mem)
	initIVT(mem)
	return t
}

// NewTask64 creates a flat-mode task over an arena at base
func NewTask64(m *Machine, id int, name string, base uint64, size int) *Task {
	mem := NewFlatMemory(base, size)
	t := &Task{
		ID:    id,
		Name:  name,
		State: TaskRunning,
		mem64: mem,
		m:     m,
	}
	t.cpu64 = NewCPU_X64(mem)
	t.cpu64.SetSyscallHandler(t)
	return t
}

// initIVT points every interrupt vector at a shared IRET stub so guest
// INT n for unhandled vectors returns instead of jumping into zeros
func initIVT(mem *RealMemory) {
	const stubSeg, stubOff = 0xF000, 0x0100
	mem.Write8(stubSeg, stubOff, 0xCF) // IRET
	for v := 0; v < 256; v++ {
		mem.Write16(0, uint16(v*4), stubOff)
		mem.Write16(0, uint16(v*4+2), stubSeg)
	}
}

// StepBudget runs up to budget instructions, stopping early when the
// task halts, terminates or blocks
func (t *Task) StepBudget(budget int) {
	for i := 0; i < budget; i++ {
		if t.State != TaskRunning {
			return
		}
		if t.cpu16 != nil {
			if t.cpu16.Step() == 0 {
				t.noteCPUStop()
				return
			}
		} else {
			if t.cpu64.Step() == 0 {
				t.noteCPUStop()
				return
			}
		}
	}
}

// noteCPUStop folds a halted or faulted CPU into the task state
func (t *Task) noteCPUStop() {
	if t.cpu16 != nil {
		if t.cpu16.Terminated || t.cpu16.Halted {
			t.terminate(t.ExitCode)
		}
		return
	}
	if t.cpu64.Terminated || t.cpu64.Halted {
		t.terminate(t.ExitCode)
	}
}

// terminate moves the task to Terminated, flushing open files and
// releasing guest memory it owns
func (t *Task) terminate(code byte) {
	if t.State == TaskTerminated {
		return
	}
	t.ExitCode = code
	t.State = TaskTerminated
	for h := range t.files {
		if t.files[h] != nil {
			t.closeHandle(uint16(h))
		}
	}
	if t.cpu16 != nil {
		t.cpu16.Terminated = true
		if t.mcb != nil && t.pspSeg != 0 {
			t.mcb.FreeOwned(t.pspSeg)
		}
	} else {
		t.cpu64.Terminated = true
	}
}

// allocHandle claims the lowest free slot past the device handles
func (t *Task) allocHandle(fh *FileHandle) (uint16, bool) {
	for h := firstFreeHandle; h < maxFileHandles; h++ {
		if t.files[h] == nil {
			t.files[h] = fh
			return uint16(h), true
		}
	}
	return 0, false
}

// closeHandle flushes and releases a handle. Device handles 0-4 close
// successfully without doing anything.
func (t *Task) closeHandle(h uint16) bool {
	if h < firstFreeHandle {
		return h < maxFileHandles
	}
	if h >= maxFileHandles || t.files[h] == nil {
		return false
	}
	fh := t.files[h]
	t.files[h] = nil
	if fh.dirty {
		if err := t.m.fs.WriteFile(fh.name, fh.data); err != nil {
			fmt.Printf("DOS: flush %q failed: %v\n", fh.name, err)
			return false
		}
	}
	return true
}
