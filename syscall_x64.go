// syscall_x64.go - Flat-mode syscall dispatch
//
// 64-bit guests request services through SYSCALL or INT 0x80 with the
// call number in RAX and arguments in RDI, RSI, RDX, R10, R8, R9.
// Results come back in RAX; unknown numbers return all-ones.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "time"

const (
	sysExit    = 0
	sysWrite   = 1
	sysRead    = 2
	sysPutchar = 3
	sysClear   = 4
	sysGetkey  = 5
	sysSleep   = 6
	sysTicks   = 7
	sysGfxMode = 8
	sysGfxBlit = 9
)

const sysErr = ^uint64(0)

// HandleSyscall services one SYSCALL or INT 0x80 request
func (t *Task) HandleSyscall(c *CPU_X64) {
	switch c.Regs[regRAX] {
	case sysExit:
		t.terminate(byte(c.Regs[regRDI]))

	case sysWrite:
		// RDI buffer, RSI length
		addr := c.Regs[regRDI]
		n := c.Regs[regRSI]
		if n > 0x10000 {
			c.Regs[regRAX] = sysErr
			return
		}
		buf, ok := c.mem.ReadBytes(addr, int(n))
		if !ok {
			c.Regs[regRAX] = sysErr
			return
		}
		for _, ch := range buf {
			t.m.screen.PutChar(ch)
		}
		c.Regs[regRAX] = n

	case sysRead:
		// RDI buffer, RSI capacity; returns bytes stored, 0 when
		// the key queue is empty
		if c.Regs[regRSI] == 0 {
			c.Regs[regRAX] = 0
			return
		}
		key, ok := t.m.keys.GetScancode()
		if !ok {
			c.Regs[regRAX] = 0
			return
		}
		if !c.mem.Write8(c.Regs[regRDI], byte(key)) {
			c.Regs[regRAX] = sysErr
			return
		}
		c.Regs[regRAX] = 1

	case sysPutchar:
		t.m.screen.PutChar(byte(c.Regs[regRDI]))
		c.Regs[regRAX] = 0

	case sysClear:
		t.m.screen.Clear(attrDefault)
		t.m.screen.SetCursor(0, 0)
		c.Regs[regRAX] = 0

	case sysGetkey:
		// Non-blocking: zero when no key queued, else scan<<8|ascii
		// with bit 63 set so a real NUL key is distinguishable
		key, ok := t.m.keys.GetScancode()
		if !ok {
			c.Regs[regRAX] = 0
			return
		}
		c.Regs[regRAX] = 1<<63 | uint64(key)

	case sysSleep:
		// RDI milliseconds. The task blocks and the scheduler wakes
		// it once the deadline passes.
		t.wakeAt = time.Now().Add(time.Duration(c.Regs[regRDI]) * time.Millisecond)
		t.State = TaskBlocked
		c.Regs[regRAX] = 0

	case sysTicks:
		c.Regs[regRAX] = uint64(t.m.Ticks())

	case sysGfxMode, sysGfxBlit:
		// Graphics modes are not implemented, text only
		c.Regs[regRAX] = sysErr

	default:
		c.Regs[regRAX] = sysErr
	}
}
