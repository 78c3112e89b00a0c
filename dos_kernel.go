// dos_kernel.go - DOS INT 20h/21h/2Fh service dispatch
//
// Implements the DOS API surface guests actually use: console I/O,
// $-string output, file handles over a sandboxed filesystem, vector
// get/set, memory management over the MCB chain, and termination.
// Services act directly on host-side state. When a host service
// handles an interrupt the CPU never pushes a frame, so register and
// flag results are written straight into the CPU struct.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"strings"
	"time"
)

// DOS error codes returned in AX with CF set
const (
	dosErrInvalidFunc   = 0x01
	dosErrFileNotFound  = 0x02
	dosErrTooManyFiles  = 0x04
	dosErrAccessDenied  = 0x05
	dosErrInvalidHandle = 0x06
	dosErrInsufficient  = 0x08
	dosErrInvalidBlock  = 0x09
)

// HandleInt is the host-side first look at every guest INT. Returning
// false sends the interrupt through the guest IVT instead.
func (t *Task) HandleInt(c *CPU_8086, vector byte) bool {
	switch vector {
	case 0x10:
		t.biosVideo(c)
		return true
	case 0x16:
		t.biosKeyboard(c)
		return true
	case 0x1A:
		t.biosTimer(c)
		return true
	case 0x20:
		t.terminate(0)
		return true
	case 0x21:
		t.dosService(c)
		return true
	case 0x2F:
		// Multiplex install check: nothing resident, OK to install
		c.SetAL(0x00)
		return true
	case 0x33:
		// Mouse services: report no driver
		c.AX = 0
		return true
	}
	return false
}

// dosOK clears CF after a successful service
func dosOK(c *CPU_8086) {
	c.setFlag(x86FlagCF, false)
}

// dosError sets CF and the error code in AX
func dosError(c *CPU_8086, code uint16) {
	c.setFlag(x86FlagCF, true)
	c.AX = code
}

// retryInt rewinds IP over the two-byte INT so the instruction runs
// again on the task's next turn. Used by blocking input services when
// no key is queued, so other tasks keep running.
func (t *Task) retryInt(c *CPU_8086) {
	c.IP -= 2
	t.State = TaskBlocked
}

// dosService dispatches INT 21h on AH
func (t *Task) dosService(c *CPU_8086) {
	switch c.AH() {
	case 0x01: // character input with echo
		key, ok := t.m.keys.GetScancode()
		if !ok {
			t.retryInt(c)
			return
		}
		ch := byte(key)
		t.m.screen.PutChar(ch)
		c.SetAL(ch)

	case 0x02: // character output
		t.m.screen.PutChar(c.DL())
		c.SetAL(c.DL())

	case 0x06: // direct console I/O
		if c.DL() == 0xFF {
			key, ok := t.m.keys.GetScancode()
			if ok {
				c.SetAL(byte(key))
				c.setFlag(x86FlagZF, false)
			} else {
				c.SetAL(0)
				c.setFlag(x86FlagZF, true)
			}
		} else {
			t.m.screen.PutChar(c.DL())
			c.SetAL(c.DL())
		}

	case 0x08: // character input without echo
		key, ok := t.m.keys.GetScancode()
		if !ok {
			t.retryInt(c)
			return
		}
		c.SetAL(byte(key))

	case 0x09: // print $-terminated string at DS:DX
		off := c.DX
		for i := 0; i < 0x10000; i++ {
			ch := c.mem.Read8(c.DS, off)
			if ch == '$' {
				break
			}
			t.m.screen.PutChar(ch)
			off++
		}
		c.SetAL('$')

	case 0x0B: // input status
		if _, ok := t.m.keys.Peek(); ok {
			c.SetAL(0xFF)
		} else {
			c.SetAL(0x00)
		}

	case 0x19: // current drive (0=A, 2=C)
		c.SetAL(2)

	case 0x25: // set interrupt vector AL to DS:DX
		v := uint16(c.AL()) * 4
		c.mem.Write16(0, v, c.DX)
		c.mem.Write16(0, v+2, c.DS)

	case 0x2A: // get date
		now := time.Now()
		c.CX = uint16(now.Year())
		c.SetDH(byte(now.Month()))
		c.SetDL(byte(now.Day()))
		c.SetAL(byte(now.Weekday()))

	case 0x2C: // get time
		now := time.Now()
		c.SetCH(byte(now.Hour()))
		c.SetCL(byte(now.Minute()))
		c.SetDH(byte(now.Second()))
		c.SetDL(byte(now.Nanosecond() / 10_000_000))

	case 0x30: // version
		c.AX = 0x0005 // 5.0
		c.BX = 0
		c.CX = 0

	case 0x35: // get interrupt vector AL into ES:BX
		v := uint16(c.AL()) * 4
		c.BX = c.mem.Read16(0, v)
		c.ES = c.mem.Read16(0, v+2)

	case 0x3C:
		t.dosCreate(c)
	case 0x3D:
		t.dosOpen(c)
	case 0x3E:
		t.dosClose(c)
	case 0x3F:
		t.dosRead(c)
	case 0x40:
		t.dosWrite(c)
	case 0x41:
		t.dosDelete(c)
	case 0x42:
		t.dosSeek(c)

	case 0x44: // ioctl
		if c.AL() == 0x00 {
			if c.BX < firstFreeHandle {
				c.DX = 0x80D3 // character device, con
			} else {
				c.DX = 0x0000
			}
			dosOK(c)
		} else {
			dosError(c, dosErrInvalidFunc)
		}

	case 0x48: // allocate memory, BX paragraphs
		seg, ok, largest := t.mcb.Alloc(c.BX, t.pspSeg)
		if !ok {
			c.BX = largest
			dosError(c, dosErrInsufficient)
			return
		}
		c.AX = seg
		dosOK(c)

	case 0x49: // free block at ES
		if !t.mcb.Free(c.ES) {
			dosError(c, dosErrInvalidBlock)
			return
		}
		dosOK(c)

	case 0x4A: // resize block at ES to BX paragraphs
		ok, largest := t.mcb.Resize(c.ES, c.BX)
		if !ok {
			c.BX = largest
			dosError(c, dosErrInsufficient)
			return
		}
		dosOK(c)

	case 0x4C: // terminate with return code
		t.terminate(c.AL())

	case 0x50: // set current PSP
		t.pspSeg = c.BX

	case 0x51, 0x62: // get current PSP
		c.BX = t.pspSeg

	default:
		dosError(c, dosErrInvalidFunc)
	}
}

// readASCIIZ pulls a NUL-terminated guest string at seg:off
func readASCIIZ(mem *RealMemory, seg, off uint16) string {
	var sb strings.Builder
	for i := 0; i < 256; i++ {
		ch := mem.Read8(seg, off)
		if ch == 0 {
			break
		}
		sb.WriteByte(ch)
		off++
	}
	return sb.String()
}

// dosCreate truncates or creates the file named at DS:DX
func (t *Task) dosCreate(c *CPU_8086) {
	name := readASCIIZ(c.mem, c.DS, c.DX)
	fh := &FileHandle{name: name, writable: true, dirty: true}
	h, ok := t.allocHandle(fh)
	if !ok {
		dosError(c, dosErrTooManyFiles)
		return
	}
	c.AX = h
	dosOK(c)
}

// dosOpen opens the file named at DS:DX, AL = access mode
func (t *Task) dosOpen(c *CPU_8086) {
	name := readASCIIZ(c.mem, c.DS, c.DX)
	data, err := t.m.fs.ReadFile(name)
	if err != nil {
		dosError(c, dosErrFileNotFound)
		return
	}
	fh := &FileHandle{
		name:     name,
		data:     data,
		writable: c.AL()&0x03 != 0,
	}
	h, ok := t.allocHandle(fh)
	if !ok {
		dosError(c, dosErrTooManyFiles)
		return
	}
	c.AX = h
	dosOK(c)
}

func (t *Task) dosClose(c *CPU_8086) {
	if !t.closeHandle(c.BX) {
		dosError(c, dosErrInvalidHandle)
		return
	}
	dosOK(c)
}

// dosRead reads CX bytes from handle BX into DS:DX. Handle 0 reads
// queued keystrokes, translating Enter to CR LF the way line input
// appears at the DOS level.
func (t *Task) dosRead(c *CPU_8086) {
	h := c.BX
	if h == dosHandleStdin {
		key, ok := t.m.keys.GetScancode()
		if !ok {
			t.retryInt(c)
			return
		}
		ch := byte(key)
		t.m.screen.PutChar(ch)
		c.mem.Write8(c.DS, c.DX, ch)
		c.AX = 1
		dosOK(c)
		return
	}
	if h >= maxFileHandles || t.files[h] == nil {
		dosError(c, dosErrInvalidHandle)
		return
	}
	fh := t.files[h]
	n := int64(c.CX)
	remain := int64(len(fh.data)) - fh.pos
	if remain < 0 {
		remain = 0
	}
	if n > remain {
		n = remain
	}
	c.mem.WriteBytes(c.DS, c.DX, fh.data[fh.pos:fh.pos+n])
	fh.pos += n
	c.AX = uint16(n)
	dosOK(c)
}

// dosWrite writes CX bytes from DS:DX to handle BX. Handles 1 and 2
// go to the screen. CX=0 truncates the file at the current position.
func (t *Task) dosWrite(c *CPU_8086) {
	h := c.BX
	if h == dosHandleStdout || h == dosHandleStderr {
		for i := uint16(0); i < c.CX; i++ {
			t.m.screen.PutChar(c.mem.Read8(c.DS, c.DX+i))
		}
		c.AX = c.CX
		dosOK(c)
		return
	}
	if h >= maxFileHandles || h < firstFreeHandle || t.files[h] == nil {
		dosError(c, dosErrInvalidHandle)
		return
	}
	fh := t.files[h]
	if !fh.writable {
		dosError(c, dosErrAccessDenied)
		return
	}
	if c.CX == 0 {
		// Truncate or zero-extend to the current position. Seeking past
		// EOF is legal, so the position may exceed the data length.
		if fh.pos > int64(len(fh.data)) {
			grown := make([]byte, fh.pos)
			copy(grown, fh.data)
			fh.data = grown
		} else {
			fh.data = fh.data[:fh.pos]
		}
		fh.dirty = true
		c.AX = 0
		dosOK(c)
		return
	}
	buf := c.mem.ReadBytes(c.DS, c.DX, int(c.CX))
	end := fh.pos + int64(len(buf))
	if end > int64(len(fh.data)) {
		grown := make([]byte, end)
		copy(grown, fh.data)
		fh.data = grown
	}
	copy(fh.data[fh.pos:], buf)
	fh.pos = end
	fh.dirty = true
	c.AX = c.CX
	dosOK(c)
}

func (t *Task) dosDelete(c *CPU_8086) {
	name := readASCIIZ(c.mem, c.DS, c.DX)
	if err := t.m.fs.Remove(name); err != nil {
		dosError(c, dosErrFileNotFound)
		return
	}
	dosOK(c)
}

// dosSeek moves handle BX to CX:DX relative to AL (0 start, 1 current,
// 2 end) and returns the new position in DX:AX
func (t *Task) dosSeek(c *CPU_8086) {
	h := c.BX
	if h >= maxFileHandles || h < firstFreeHandle || t.files[h] == nil {
		dosError(c, dosErrInvalidHandle)
		return
	}
	fh := t.files[h]
	offset := int64(c.CX)<<16 | int64(c.DX)
	var base int64
	switch c.AL() {
	case 0:
		base = 0
	case 1:
		base = fh.pos
	case 2:
		base = int64(len(fh.data))
	default:
		dosError(c, dosErrInvalidFunc)
		return
	}
	pos := base + offset
	if pos < 0 {
		dosError(c, dosErrInvalidFunc)
		return
	}
	fh.pos = pos
	c.DX = uint16(pos >> 16)
	c.AX = uint16(pos)
	dosOK(c)
}
