// bios_test.go - BIOS INT 10h/16h/1Ah tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "testing"

func TestBIOS_CursorRoundTrip(t *testing.T) {
	_, task := testDOSTask()
	c := task.cpu16

	c.SetAH(0x02)
	c.SetDH(12)
	c.SetDL(40)
	task.biosVideo(c)

	c.SetAH(0x03)
	task.biosVideo(c)
	if c.DH() != 12 || c.DL() != 40 {
		t.Errorf("cursor: %d,%d", c.DH(), c.DL())
	}
}

func TestBIOS_Teletype(t *testing.T) {
	m, task := testDOSTask()
	c := task.cpu16
	for _, ch := range []byte("BIOS") {
		c.SetAH(0x0E)
		c.SetAL(ch)
		task.biosVideo(c)
	}
	if got := m.screen.Line(0); got != "BIOS" {
		t.Errorf("line 0: %q", got)
	}
}

func TestBIOS_WriteCharAttr(t *testing.T) {
	m, task := testDOSTask()
	c := task.cpu16
	c.SetAH(0x02)
	c.SetDH(3)
	c.SetDL(5)
	task.biosVideo(c)

	c.SetAH(0x09)
	c.SetAL('#')
	c.SetBL(0x4E)
	c.CX = 4
	task.biosVideo(c)

	for i := byte(0); i < 4; i++ {
		ch, attr := m.screen.ReadCell(3, 5+i)
		if ch != '#' || attr != 0x4E {
			t.Fatalf("cell %d: ch=%c attr=0x%02X", i, ch, attr)
		}
	}
	// Cursor stays put
	if _, col := m.screen.GetCursor(); col != 5 {
		t.Error("AH=09 must not move the cursor")
	}
}

func TestBIOS_SetMode_clears(t *testing.T) {
	m, task := testDOSTask()
	c := task.cpu16
	m.screen.Print("stale")
	c.SetAH(0x00)
	c.SetAL(0x03)
	task.biosVideo(c)
	if m.screen.Line(0) != "" {
		t.Error("mode set should clear the screen")
	}
}

func TestBIOS_GetMode(t *testing.T) {
	_, task := testDOSTask()
	c := task.cpu16
	c.SetAH(0x0F)
	task.biosVideo(c)
	if c.AL() != 0x03 {
		t.Errorf("mode: got 0x%02X, want 0x03", c.AL())
	}
	if c.AH() != screenCols {
		t.Errorf("columns: got %d, want %d", c.AH(), screenCols)
	}
}

func TestBIOS_Keyboard(t *testing.T) {
	m, task := testDOSTask()
	c := task.cpu16

	// AH=01 with empty queue sets ZF
	c.SetAH(0x01)
	task.biosKeyboard(c)
	if !c.ZF() {
		t.Error("empty queue should set ZF")
	}

	m.keys.PushASCII('k')

	// AH=01 now reports the key without consuming it
	c.SetAH(0x01)
	task.biosKeyboard(c)
	if c.ZF() {
		t.Error("ZF should clear with a key queued")
	}
	if byte(c.AX) != 'k' {
		t.Errorf("peek AL: 0x%02X", byte(c.AX))
	}

	// AH=00 consumes it
	c.SetAH(0x00)
	task.biosKeyboard(c)
	if byte(c.AX) != 'k' {
		t.Errorf("read AL: 0x%02X", byte(c.AX))
	}
	if _, ok := m.keys.Peek(); ok {
		t.Error("AH=00 should consume the key")
	}
}

func TestBIOS_KeyboardBlocks(t *testing.T) {
	_, task := testDOSTask()
	c := task.cpu16
	c.IP = 0x0102
	c.SetAH(0x00)
	task.biosKeyboard(c)
	if task.State != TaskBlocked || c.IP != 0x0100 {
		t.Error("AH=00 with no key should rewind and block")
	}
}

func TestBIOS_Timer(t *testing.T) {
	_, task := testDOSTask()
	c := task.cpu16
	c.SetAH(0x00)
	c.CX = 0xFFFF
	task.biosTimer(c)
	// Fresh machine: tick count is small, high word must be zero
	if c.CX != 0 {
		t.Errorf("tick high word: 0x%04X", c.CX)
	}
}

func TestBIOS_MouseAbsent(t *testing.T) {
	_, task := testDOSTask()
	c := task.cpu16
	c.AX = 0
	if !task.HandleInt(c, 0x33) {
		t.Fatal("INT 33h should be handled")
	}
	if c.AX != 0 {
		t.Error("no mouse driver: AX stays 0")
	}
}
