// syscall_x64_test.go - Flat-mode syscall service tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"testing"
	"time"
)

func testSyscallTask() (*Machine, *Task) {
	m := NewMachine(NewMemFilesystem())
	task := NewTask64(m, 1, "t.elf", 0x400000, 1<<20)
	m.sched.AddTask(task)
	return m, task
}

func TestSys_Write(t *testing.T) {
	m, task := testSyscallTask()
	c := task.cpu64
	task.mem64.WriteBytes(0x400100, []byte("sixty-four"))
	c.Regs[regRAX] = sysWrite
	c.Regs[regRDI] = 0x400100
	c.Regs[regRSI] = 10
	task.HandleSyscall(c)
	if c.Regs[regRAX] != 10 {
		t.Errorf("write returned %d", c.Regs[regRAX])
	}
	if got := m.screen.Line(0); got != "sixty-four" {
		t.Errorf("screen: %q", got)
	}
}

func TestSys_Write_bad_buffer(t *testing.T) {
	_, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = sysWrite
	c.Regs[regRDI] = 0x100 // below the arena
	c.Regs[regRSI] = 4
	task.HandleSyscall(c)
	if c.Regs[regRAX] != sysErr {
		t.Error("out-of-arena buffer should return the error value")
	}
}

func TestSys_Putchar_Clear(t *testing.T) {
	m, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = sysPutchar
	c.Regs[regRDI] = 'Z'
	task.HandleSyscall(c)
	if m.screen.Line(0) != "Z" {
		t.Errorf("screen: %q", m.screen.Line(0))
	}
	c.Regs[regRAX] = sysClear
	task.HandleSyscall(c)
	if m.screen.Line(0) != "" {
		t.Error("clear should blank the screen")
	}
}

func TestSys_Getkey(t *testing.T) {
	m, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = sysGetkey
	task.HandleSyscall(c)
	if c.Regs[regRAX] != 0 {
		t.Error("empty queue returns 0")
	}
	m.keys.PushASCII('g')
	c.Regs[regRAX] = sysGetkey
	task.HandleSyscall(c)
	if c.Regs[regRAX]>>63 != 1 {
		t.Error("a delivered key sets the valid bit")
	}
	if byte(c.Regs[regRAX]) != 'g' {
		t.Errorf("key: 0x%02X", byte(c.Regs[regRAX]))
	}
}

func TestSys_Read(t *testing.T) {
	m, task := testSyscallTask()
	c := task.cpu64
	m.keys.PushASCII('r')
	c.Regs[regRAX] = sysRead
	c.Regs[regRDI] = 0x400200
	c.Regs[regRSI] = 1
	task.HandleSyscall(c)
	if c.Regs[regRAX] != 1 {
		t.Fatalf("read returned %d", c.Regs[regRAX])
	}
	if b, _ := task.mem64.Read8(0x400200); b != 'r' {
		t.Errorf("stored 0x%02X", b)
	}
}

func TestSys_Exit(t *testing.T) {
	_, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = sysExit
	c.Regs[regRDI] = 42
	task.HandleSyscall(c)
	if task.State != TaskTerminated {
		t.Fatal("exit should terminate the task")
	}
	if task.ExitCode != 42 {
		t.Errorf("exit code %d", task.ExitCode)
	}
}

func TestSys_Sleep(t *testing.T) {
	_, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = sysSleep
	c.Regs[regRDI] = 50
	before := time.Now()
	task.HandleSyscall(c)
	if task.State != TaskBlocked {
		t.Fatal("sleep should block the task")
	}
	if task.wakeAt.Before(before.Add(40 * time.Millisecond)) {
		t.Error("wake deadline too early")
	}
}

func TestSys_Ticks(t *testing.T) {
	_, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = sysTicks
	task.HandleSyscall(c)
	if c.Regs[regRAX] > 1000 {
		t.Errorf("fresh machine reports %d ticks", c.Regs[regRAX])
	}
}

func TestSys_Unknown(t *testing.T) {
	_, task := testSyscallTask()
	c := task.cpu64
	c.Regs[regRAX] = 999
	task.HandleSyscall(c)
	if c.Regs[regRAX] != sysErr {
		t.Error("unknown syscall returns the error value")
	}
}
