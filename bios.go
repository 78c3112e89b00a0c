// bios.go - BIOS INT 10h/16h/1Ah services
//
// Video services drive the backend-agnostic text screen, keyboard
// services drain the scancode queue and the timer reports 18.2 Hz
// ticks since machine start.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// biosVideo dispatches INT 10h on AH
func (t *Task) biosVideo(c *CPU_8086) {
	s := t.m.screen
	switch c.AH() {
	case 0x00: // set video mode, text only so just clear
		s.Clear(attrDefault)
		s.SetCursor(0, 0)

	case 0x02: // set cursor position, DH row DL col
		s.SetCursor(c.DH(), c.DL())

	case 0x03: // get cursor position
		row, col := s.GetCursor()
		c.SetDH(row)
		c.SetDL(col)
		c.CX = 0

	case 0x06: // scroll window up, AL lines, BH fill attr
		s.ScrollUp(c.AL(), c.BH(), c.CH(), c.CL(), c.DH(), c.DL())

	case 0x07: // scroll window down
		s.ScrollDown(c.AL(), c.BH(), c.CH(), c.CL(), c.DH(), c.DL())

	case 0x09: // write char and attribute CX times, cursor fixed
		s.PutCharAttr(c.AL(), c.BL(), int(c.CX))

	case 0x0A: // write char only CX times, keep existing attribute
		curRow, curCol := s.GetCursor()
		_, attr := s.ReadCell(curRow, curCol)
		s.PutCharAttr(c.AL(), attr, int(c.CX))

	case 0x0E: // teletype output
		s.PutChar(c.AL())

	case 0x0F: // get video mode
		c.SetAL(0x03)
		c.SetAH(screenCols)
		c.SetBH(0)
	}
	// Unhandled video functions are ignored, matching BIOS behaviour
	// for unimplemented subfunctions
}

// biosKeyboard dispatches INT 16h on AH
func (t *Task) biosKeyboard(c *CPU_8086) {
	switch c.AH() {
	case 0x00: // wait for keystroke
		key, ok := t.m.keys.GetScancode()
		if !ok {
			t.retryInt(c)
			return
		}
		c.AX = key

	case 0x01: // check for keystroke, ZF set when queue empty
		key, ok := t.m.keys.Peek()
		if ok {
			c.AX = key
			c.setFlag(x86FlagZF, false)
		} else {
			c.setFlag(x86FlagZF, true)
		}

	case 0x02: // shift flags, none tracked
		c.SetAL(0x00)
	}
}

// biosTimer dispatches INT 1Ah on AH
func (t *Task) biosTimer(c *CPU_8086) {
	switch c.AH() {
	case 0x00: // read system clock counter
		ticks := t.m.Ticks()
		c.CX = uint16(ticks >> 16)
		c.DX = uint16(ticks)
		c.SetAL(0) // no midnight rollover tracked
	}
}
