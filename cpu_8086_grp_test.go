// cpu_8086_grp_test.go - Group opcode tests (shifts, MUL/DIV, INC/DEC)
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "testing"

func TestX86_Grp1_ADD_imm(t *testing.T) {
	// ADD word [0x0200], 0x0101 via 81 /0
	cpu := test8086(0x81, 0x06, 0x00, 0x02, 0x01, 0x01)
	cpu.mem.Write16(cpu.DS, 0x0200, 0x00FF)
	cpu.Step()
	if got := cpu.mem.Read16(cpu.DS, 0x0200); got != 0x0200 {
		t.Errorf("ADD mem, imm16: got 0x%04X, want 0x0200", got)
	}
}

func TestX86_Grp1_signextend(t *testing.T) {
	// 83 /5 SUB AX, -1 sign-extends the byte immediate
	cpu := test8086(0x83, 0xE8, 0xFF)
	cpu.AX = 0x0005
	cpu.Step()
	if cpu.AX != 0x0006 {
		t.Errorf("SUB AX, -1: got 0x%04X, want 0x0006", cpu.AX)
	}
}

func TestX86_SHL(t *testing.T) {
	// SHL AL, 1: bit 7 lands in CF
	cpu := test8086(0xD0, 0xE0)
	cpu.SetAL(0x81)
	cpu.Step()
	if cpu.AL() != 0x02 {
		t.Errorf("SHL AL: got 0x%02X, want 0x02", cpu.AL())
	}
	if !cpu.CF() {
		t.Error("CF should take the shifted-out bit")
	}
}

func TestX86_SHR_SAR(t *testing.T) {
	// SHR fills with zero, SAR keeps the sign
	cpu := test8086(0xD0, 0xE8) // SHR AL, 1
	cpu.SetAL(0x81)
	cpu.Step()
	if cpu.AL() != 0x40 {
		t.Errorf("SHR AL: got 0x%02X, want 0x40", cpu.AL())
	}
	if !cpu.CF() {
		t.Error("CF should take bit 0")
	}

	cpu = test8086(0xD0, 0xF8) // SAR AL, 1
	cpu.SetAL(0x82)
	cpu.Step()
	if cpu.AL() != 0xC1 {
		t.Errorf("SAR AL: got 0x%02X, want 0xC1", cpu.AL())
	}
}

func TestX86_Shift_count_zero(t *testing.T) {
	// A zero count leaves value and flags alone
	cpu := test8086(0xD2, 0xE0) // SHL AL, CL
	cpu.SetAL(0x81)
	cpu.SetCL(0)
	cpu.setFlag(x86FlagCF, true)
	cpu.Step()
	if cpu.AL() != 0x81 {
		t.Errorf("SHL count 0: got 0x%02X, want 0x81", cpu.AL())
	}
	if !cpu.CF() {
		t.Error("flags must be untouched on a zero count")
	}
}

func TestX86_ROL_RCL(t *testing.T) {
	cpu := test8086(0xD0, 0xC0) // ROL AL, 1
	cpu.SetAL(0x81)
	cpu.Step()
	if cpu.AL() != 0x03 {
		t.Errorf("ROL AL: got 0x%02X, want 0x03", cpu.AL())
	}

	cpu = test8086(0xD0, 0xD0) // RCL AL, 1
	cpu.SetAL(0x80)
	cpu.setFlag(x86FlagCF, true)
	cpu.Step()
	if cpu.AL() != 0x01 {
		t.Errorf("RCL AL: got 0x%02X, want 0x01", cpu.AL())
	}
	if !cpu.CF() {
		t.Error("RCL should move bit 7 into CF")
	}
}

func TestX86_NOT_NEG(t *testing.T) {
	cpu := test8086(0xF6, 0xD0) // NOT AL
	cpu.SetAL(0x0F)
	cpu.Step()
	if cpu.AL() != 0xF0 {
		t.Errorf("NOT AL: got 0x%02X, want 0xF0", cpu.AL())
	}

	cpu = test8086(0xF6, 0xD8) // NEG AL
	cpu.SetAL(0x01)
	cpu.Step()
	if cpu.AL() != 0xFF {
		t.Errorf("NEG AL: got 0x%02X, want 0xFF", cpu.AL())
	}
	if !cpu.CF() {
		t.Error("NEG of nonzero sets CF")
	}

	cpu = test8086(0xF6, 0xD8)
	cpu.SetAL(0x00)
	cpu.Step()
	if cpu.CF() {
		t.Error("NEG of zero clears CF")
	}
}

func TestX86_MUL(t *testing.T) {
	// MUL BL: AX = AL * BL
	cpu := test8086(0xF6, 0xE3)
	cpu.SetAL(0x10)
	cpu.SetBL(0x10)
	cpu.Step()
	if cpu.AX != 0x0100 {
		t.Errorf("MUL BL: got 0x%04X, want 0x0100", cpu.AX)
	}
	if !cpu.CF() || !cpu.OF() {
		t.Error("CF and OF set when the high half is nonzero")
	}
}

func TestX86_MUL16(t *testing.T) {
	// MUL BX: DX:AX = AX * BX
	cpu := test8086(0xF7, 0xE3)
	cpu.AX = 0x1000
	cpu.BX = 0x1000
	cpu.Step()
	if cpu.DX != 0x0100 || cpu.AX != 0x0000 {
		t.Errorf("MUL BX: got DX:AX=%04X:%04X, want 0100:0000", cpu.DX, cpu.AX)
	}
}

func TestX86_IMUL_negative(t *testing.T) {
	// IMUL BL: -2 * 3 = -6
	cpu := test8086(0xF6, 0xEB)
	cpu.SetAL(0xFE)
	cpu.SetBL(0x03)
	cpu.Step()
	if cpu.AX != 0xFFFA {
		t.Errorf("IMUL BL: got 0x%04X, want 0xFFFA", cpu.AX)
	}
	if cpu.CF() || cpu.OF() {
		t.Error("result fits in AL, CF and OF clear")
	}
}

func TestX86_DIV(t *testing.T) {
	// DIV BL: AX=0x0064 / 10 -> AL=10 AH=0
	cpu := test8086(0xF6, 0xF3)
	cpu.AX = 100
	cpu.SetBL(10)
	cpu.Step()
	if cpu.AL() != 10 {
		t.Errorf("DIV quotient: got %d, want 10", cpu.AL())
	}
	if cpu.AH() != 0 {
		t.Errorf("DIV remainder: got %d, want 0", cpu.AH())
	}
}

func TestX86_DIV16_remainder(t *testing.T) {
	// DIV BX: DX:AX / BX
	cpu := test8086(0xF7, 0xF3)
	cpu.DX = 0x0001
	cpu.AX = 0x0005
	cpu.BX = 0x0002
	cpu.Step()
	if cpu.AX != 0x8002 {
		t.Errorf("DIV quotient: got 0x%04X, want 0x8002", cpu.AX)
	}
	if cpu.DX != 0x0001 {
		t.Errorf("DIV remainder: got 0x%04X, want 0x0001", cpu.DX)
	}
}

func TestX86_DIV_by_zero(t *testing.T) {
	// Divide by zero raises INT 0 and leaves AX and DX alone
	mem := NewRealMemory()
	cpu := NewCPU_8086(mem)
	cpu.CS = 0x0100
	cpu.SS = 0x0900
	cpu.SP = 0xFFFE
	cpu.IP = 0

	// INT 0 handler counts invocations in the BX of the guest
	mem.Write16(0, 0, 0x0000)
	mem.Write16(0, 2, 0x0200)
	mem.WriteBytes(0x0200, 0, []byte{0x43, 0xF4}) // INC BX; HLT

	mem.WriteBytes(cpu.CS, 0, []byte{0xF6, 0xF3}) // DIV BL
	cpu.AX = 0x1234
	cpu.DX = 0x5678
	cpu.SetBL(0)
	for i := 0; i < 10 && !cpu.Halted; i++ {
		cpu.Step()
	}
	if cpu.BX != 0x0001 {
		t.Errorf("INT 0 should fire exactly once, BX=%d", cpu.BX)
	}
	if cpu.DX != 0x5678 {
		t.Errorf("DX must be preserved on divide fault, got 0x%04X", cpu.DX)
	}
}

func TestX86_DIV_overflow_faults(t *testing.T) {
	// Quotient too large for AL also raises INT 0
	mem := NewRealMemory()
	cpu := NewCPU_8086(mem)
	cpu.CS = 0x0100
	cpu.SS = 0x0900
	cpu.SP = 0xFFFE
	cpu.IP = 0

	mem.Write16(0, 0, 0x0000)
	mem.Write16(0, 2, 0x0200)
	mem.WriteBytes(0x0200, 0, []byte{0x43, 0xF4})

	mem.WriteBytes(cpu.CS, 0, []byte{0xF6, 0xF3}) // DIV BL
	cpu.AX = 0x1000
	cpu.SetBL(1) // quotient 0x1000 does not fit in AL
	for i := 0; i < 10 && !cpu.Halted; i++ {
		cpu.Step()
	}
	// BX starts at 1 from the divisor, the handler's INC takes it to 2
	if cpu.BX != 2 {
		t.Errorf("quotient overflow should fault, BX=%d", cpu.BX)
	}
}

func TestX86_Grp4_INC_mem(t *testing.T) {
	// FE /0 INC byte [0x0300] preserves CF
	cpu := test8086(0xFE, 0x06, 0x00, 0x03)
	cpu.mem.Write8(cpu.DS, 0x0300, 0xFF)
	cpu.setFlag(x86FlagCF, true)
	cpu.Step()
	if got := cpu.mem.Read8(cpu.DS, 0x0300); got != 0x00 {
		t.Errorf("INC mem: got 0x%02X, want 0x00", got)
	}
	if !cpu.CF() {
		t.Error("INC must preserve CF")
	}
	if !cpu.ZF() {
		t.Error("ZF should be set")
	}
}

func TestX86_Grp5_JMP_indirect(t *testing.T) {
	// FF /4 JMP near [0x0300]
	cpu := test8086(0xFF, 0x26, 0x00, 0x03)
	cpu.mem.Write16(cpu.DS, 0x0300, 0x1234)
	cpu.Step()
	if cpu.IP != 0x1234 {
		t.Errorf("JMP [mem]: IP got 0x%04X, want 0x1234", cpu.IP)
	}
}

func TestX86_Grp5_PUSH_mem(t *testing.T) {
	cpu := test8086(0xFF, 0x36, 0x00, 0x03) // PUSH word [0x0300]
	cpu.mem.Write16(cpu.DS, 0x0300, 0x4321)
	cpu.Step()
	if got := cpu.mem.Read16(cpu.SS, cpu.SP); got != 0x4321 {
		t.Errorf("PUSH [mem]: stack top 0x%04X, want 0x4321", got)
	}
}

func TestX86_AAM_divide_by_zero(t *testing.T) {
	// AAM 0 raises the divide fault
	mem := NewRealMemory()
	cpu := NewCPU_8086(mem)
	cpu.CS = 0x0100
	cpu.SS = 0x0900
	cpu.SP = 0xFFFE
	cpu.IP = 0

	mem.Write16(0, 0, 0x0000)
	mem.Write16(0, 2, 0x0200)
	mem.WriteBytes(0x0200, 0, []byte{0x43, 0xF4})

	mem.WriteBytes(cpu.CS, 0, []byte{0xD4, 0x00}) // AAM 0
	for i := 0; i < 10 && !cpu.Halted; i++ {
		cpu.Step()
	}
	if cpu.BX != 1 {
		t.Errorf("AAM 0 should raise INT 0, BX=%d", cpu.BX)
	}
}
