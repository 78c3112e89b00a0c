// cpu_8086_string_test.go - String instruction and REP prefix tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "testing"

func TestX86_MOVSB(t *testing.T) {
	cpu := test8086(0xA4) // MOVSB
	cpu.SI = 0x0200
	cpu.DI = 0x0300
	cpu.mem.Write8(cpu.DS, 0x0200, 0x7E)
	cpu.Step()
	if got := cpu.mem.Read8(cpu.ES, 0x0300); got != 0x7E {
		t.Errorf("MOVSB: got 0x%02X, want 0x7E", got)
	}
	if cpu.SI != 0x0201 || cpu.DI != 0x0301 {
		t.Errorf("SI/DI should advance: SI=0x%04X DI=0x%04X", cpu.SI, cpu.DI)
	}
}

func TestX86_MOVSW_backward(t *testing.T) {
	// DF set walks down by two
	cpu := test8086(0xFD, 0xA5) // STD; MOVSW
	cpu.SI = 0x0200
	cpu.DI = 0x0300
	cpu.mem.Write16(cpu.DS, 0x0200, 0xBEEF)
	cpu.Step()
	cpu.Step()
	if got := cpu.mem.Read16(cpu.ES, 0x0300); got != 0xBEEF {
		t.Errorf("MOVSW: got 0x%04X, want 0xBEEF", got)
	}
	if cpu.SI != 0x01FE || cpu.DI != 0x02FE {
		t.Errorf("SI/DI should step back: SI=0x%04X DI=0x%04X", cpu.SI, cpu.DI)
	}
}

func TestX86_REP_MOVSB(t *testing.T) {
	cpu := test8086(0xF3, 0xA4) // REP MOVSB
	cpu.SI = 0x0200
	cpu.DI = 0x0300
	cpu.CX = 8
	cpu.mem.WriteBytes(cpu.DS, 0x0200, []byte("DEADBEEF"))
	cpu.Step()
	if got := string(cpu.mem.ReadBytes(cpu.ES, 0x0300, 8)); got != "DEADBEEF" {
		t.Errorf("REP MOVSB: got %q", got)
	}
	if cpu.CX != 0 {
		t.Errorf("CX after REP: got %d, want 0", cpu.CX)
	}
}

func TestX86_REP_CX_zero(t *testing.T) {
	// CX=0 means zero iterations, destination untouched
	cpu := test8086(0xF3, 0xA4)
	cpu.SI = 0x0200
	cpu.DI = 0x0300
	cpu.CX = 0
	cpu.mem.Write8(cpu.DS, 0x0200, 0x55)
	cpu.mem.Write8(cpu.ES, 0x0300, 0xAA)
	cpu.Step()
	if got := cpu.mem.Read8(cpu.ES, 0x0300); got != 0xAA {
		t.Errorf("REP with CX=0 must not move: got 0x%02X", got)
	}
	if cpu.SI != 0x0200 || cpu.DI != 0x0300 {
		t.Error("SI/DI must not advance with CX=0")
	}
}

func TestX86_REP_STOSB(t *testing.T) {
	cpu := test8086(0xF3, 0xAA) // REP STOSB
	cpu.SetAL(0x2A)
	cpu.DI = 0x0400
	cpu.CX = 16
	cpu.Step()
	for i := uint16(0); i < 16; i++ {
		if got := cpu.mem.Read8(cpu.ES, 0x0400+i); got != 0x2A {
			t.Fatalf("STOSB at +%d: got 0x%02X, want 0x2A", i, got)
		}
	}
}

func TestX86_LODSB(t *testing.T) {
	cpu := test8086(0xAC)
	cpu.SI = 0x0200
	cpu.mem.Write8(cpu.DS, 0x0200, 0x99)
	cpu.Step()
	if cpu.AL() != 0x99 {
		t.Errorf("LODSB: got 0x%02X, want 0x99", cpu.AL())
	}
}

func TestX86_REPE_CMPSB(t *testing.T) {
	// Strings differ at position 3: REPE stops there
	cpu := test8086(0xF3, 0xA6) // REPE CMPSB
	cpu.SI = 0x0200
	cpu.DI = 0x0300
	cpu.CX = 8
	cpu.mem.WriteBytes(cpu.DS, 0x0200, []byte("ABCXEFGH"))
	cpu.mem.WriteBytes(cpu.ES, 0x0300, []byte("ABCDEFGH"))
	cpu.Step()
	if cpu.ZF() {
		t.Error("ZF should be clear at the mismatch")
	}
	if cpu.CX != 4 {
		t.Errorf("CX after mismatch: got %d, want 4", cpu.CX)
	}
}

func TestX86_REPE_CMPSB_equal(t *testing.T) {
	cpu := test8086(0xF3, 0xA6)
	cpu.SI = 0x0200
	cpu.DI = 0x0300
	cpu.CX = 4
	cpu.mem.WriteBytes(cpu.DS, 0x0200, []byte("SAME"))
	cpu.mem.WriteBytes(cpu.ES, 0x0300, []byte("SAME"))
	cpu.Step()
	if !cpu.ZF() {
		t.Error("ZF should survive a full match")
	}
	if cpu.CX != 0 {
		t.Errorf("CX should reach 0, got %d", cpu.CX)
	}
}

func TestX86_REPNE_SCASB(t *testing.T) {
	// Classic strlen: scan for the terminator
	cpu := test8086(0xF2, 0xAE) // REPNE SCASB
	cpu.SetAL(0)
	cpu.DI = 0x0300
	cpu.CX = 0xFFFF
	cpu.mem.WriteBytes(cpu.ES, 0x0300, []byte("hello\x00"))
	cpu.Step()
	if !cpu.ZF() {
		t.Error("ZF set when the terminator is found")
	}
	length := 0xFFFF - cpu.CX - 1
	if length != 5 {
		t.Errorf("scanned length: got %d, want 5", length)
	}
}
