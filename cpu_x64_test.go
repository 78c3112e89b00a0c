// cpu_x64_test.go - x86-64 interpreter unit tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "testing"

const testBase64 = uint64(0x400000)

// test64 builds a flat-mode CPU with code at the arena base and the
// stack at the top
func test64(code ...byte) *CPU_X64 {
	mem := NewFlatMemory(testBase64, 1<<20)
	cpu := NewCPU_X64(mem)
	cpu.RIP = testBase64
	cpu.Regs[regRSP] = testBase64 + 1<<20 - 16
	mem.WriteBytes(testBase64, code)
	return cpu
}

func TestX64_MOV_imm32_zero_extends(t *testing.T) {
	// MOV EAX, 0x12345678 clears the upper half
	cpu := test64(0xB8, 0x78, 0x56, 0x34, 0x12)
	cpu.Regs[regRAX] = 0xFFFFFFFF_FFFFFFFF
	cpu.Step()
	if cpu.Regs[regRAX] != 0x12345678 {
		t.Errorf("MOV EAX: got 0x%016X, want 0x0000000012345678", cpu.Regs[regRAX])
	}
}

func TestX64_MOV_movabs(t *testing.T) {
	// REX.W B8 carries a full 64-bit immediate
	cpu := test64(0x48, 0xB8, 0xEF, 0xCD, 0xAB, 0x89, 0x67, 0x45, 0x23, 0x01)
	cpu.Step()
	if cpu.Regs[regRAX] != 0x0123456789ABCDEF {
		t.Errorf("movabs: got 0x%016X", cpu.Regs[regRAX])
	}
}

func TestX64_REX_B_extends_reg(t *testing.T) {
	// REX.B on B8 selects R8
	cpu := test64(0x49, 0xB8, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88)
	cpu.Step()
	if cpu.Regs[regR8] != 0x8877665544332211 {
		t.Errorf("movabs r8: got 0x%016X", cpu.Regs[regR8])
	}
}

func TestX64_ADD64(t *testing.T) {
	// REX.W ADD RAX, RBX
	cpu := test64(0x48, 0x01, 0xD8)
	cpu.Regs[regRAX] = 0xFFFFFFFF_FFFFFFFF
	cpu.Regs[regRBX] = 2
	cpu.Step()
	if cpu.Regs[regRAX] != 1 {
		t.Errorf("ADD RAX, RBX: got %d, want 1", cpu.Regs[regRAX])
	}
	if !cpu.CF() {
		t.Error("CF should be set on 64-bit carry out")
	}
}

func TestX64_ADD32_zero_extends(t *testing.T) {
	// 32-bit ADD writes zero-extend the destination
	cpu := test64(0x01, 0xD8) // ADD EAX, EBX
	cpu.Regs[regRAX] = 0xFFFFFFFF_00000001
	cpu.Regs[regRBX] = 1
	cpu.Step()
	if cpu.Regs[regRAX] != 2 {
		t.Errorf("ADD EAX: got 0x%016X, want 2", cpu.Regs[regRAX])
	}
}

func TestX64_SUB_sign_flags(t *testing.T) {
	// SUB RAX, RBX with 0 - 1
	cpu := test64(0x48, 0x29, 0xD8)
	cpu.Regs[regRBX] = 1
	cpu.Step()
	if cpu.Regs[regRAX] != 0xFFFFFFFF_FFFFFFFF {
		t.Errorf("SUB: got 0x%016X", cpu.Regs[regRAX])
	}
	if !cpu.CF() || !cpu.SF() {
		t.Error("CF and SF should be set")
	}
}

func TestX64_legacy_high_byte_regs(t *testing.T) {
	// Without REX, reg index 4 is AH
	cpu := test64(0x88, 0xE3) // MOV BL, AH
	cpu.Regs[regRAX] = 0x1234
	cpu.Step()
	if cpu.Regs[regRBX]&0xFF != 0x12 {
		t.Errorf("MOV BL, AH: got 0x%02X, want 0x12", cpu.Regs[regRBX]&0xFF)
	}
}

func TestX64_REX_byte_regs(t *testing.T) {
	// With any REX, index 4 is SPL instead of AH
	cpu := test64(0x40, 0x88, 0xE3) // REX MOV BL, SPL
	cpu.Regs[regRSP] = 0x77
	cpu.Regs[regRAX] = 0x1234
	cpu.Step()
	if cpu.Regs[regRBX]&0xFF != 0x77 {
		t.Errorf("MOV BL, SPL: got 0x%02X, want 0x77", cpu.Regs[regRBX]&0xFF)
	}
}

func TestX64_PUSH_POP(t *testing.T) {
	cpu := test64(0x50, 0x5B) // PUSH RAX; POP RBX
	cpu.Regs[regRAX] = 0xDEADBEEF_CAFEF00D
	sp := cpu.Regs[regRSP]
	cpu.Step()
	if cpu.Regs[regRSP] != sp-8 {
		t.Error("PUSH should drop RSP by 8")
	}
	cpu.Step()
	if cpu.Regs[regRBX] != 0xDEADBEEF_CAFEF00D {
		t.Errorf("POP RBX: got 0x%016X", cpu.Regs[regRBX])
	}
}

func TestX64_SIB_addressing(t *testing.T) {
	// MOV RAX, [RBX+RCX*8]
	cpu := test64(0x48, 0x8B, 0x04, 0xCB)
	cpu.Regs[regRBX] = testBase64 + 0x1000
	cpu.Regs[regRCX] = 2
	cpu.mem.Write64(testBase64+0x1010, 0x1122334455667788)
	cpu.Step()
	if cpu.Regs[regRAX] != 0x1122334455667788 {
		t.Errorf("SIB load: got 0x%016X", cpu.Regs[regRAX])
	}
}

func TestX64_RIP_relative(t *testing.T) {
	// MOV EAX, [RIP+disp32] resolves past the whole instruction
	cpu := test64(0x8B, 0x05, 0x0A, 0x00, 0x00, 0x00)
	// Instruction ends at base+6, so target is base+0x10
	cpu.mem.Write32(testBase64+0x10, 0xCAFEBABE)
	cpu.Step()
	if cpu.Regs[regRAX] != 0xCAFEBABE {
		t.Errorf("RIP-relative: got 0x%08X", uint32(cpu.Regs[regRAX]))
	}
}

func TestX64_RIP_relative_with_imm(t *testing.T) {
	// C7 05 disp32 imm32: the displacement anchors after the
	// immediate too
	cpu := test64(0xC7, 0x05, 0x06, 0x00, 0x00, 0x00, 0x99, 0x00, 0x00, 0x00)
	// Instruction is 10 bytes, target = base+10+6 = base+0x10
	cpu.Step()
	v, _ := cpu.mem.Read32(testBase64 + 0x10)
	if v != 0x99 {
		t.Errorf("MOV [RIP+d], imm: got 0x%08X, want 0x99", v)
	}
}

func TestX64_Jcc(t *testing.T) {
	// JNZ rel8 over a trap
	cpu := test64(0x75, 0x01, 0xF4, 0x90)
	cpu.setFlag(x86FlagZF, false)
	cpu.Step()
	if cpu.RIP != testBase64+3 {
		t.Errorf("JNZ taken: RIP got 0x%X, want 0x%X", cpu.RIP, testBase64+3)
	}
}

func TestX64_SETcc(t *testing.T) {
	cpu := test64(0x0F, 0x94, 0xC0) // SETE AL
	cpu.setFlag(x86FlagZF, true)
	cpu.Step()
	if cpu.Regs[regRAX]&0xFF != 1 {
		t.Errorf("SETE: got %d, want 1", cpu.Regs[regRAX]&0xFF)
	}
}

func TestX64_CALL_RET(t *testing.T) {
	cpu := test64(
		0xE8, 0x01, 0x00, 0x00, 0x00, // CALL +1
		0xF4, // HLT
		0xC3, // RET
	)
	cpu.Step()
	if cpu.RIP != testBase64+6 {
		t.Errorf("CALL: RIP got 0x%X", cpu.RIP)
	}
	cpu.Step()
	if cpu.RIP != testBase64+5 {
		t.Errorf("RET: RIP got 0x%X", cpu.RIP)
	}
}

func TestX64_MOVZX_MOVSX(t *testing.T) {
	cpu := test64(0x48, 0x0F, 0xB6, 0xC3) // MOVZX RAX, BL
	cpu.Regs[regRBX] = 0x80
	cpu.Step()
	if cpu.Regs[regRAX] != 0x80 {
		t.Errorf("MOVZX: got 0x%X, want 0x80", cpu.Regs[regRAX])
	}

	cpu = test64(0x48, 0x0F, 0xBE, 0xC3) // MOVSX RAX, BL
	cpu.Regs[regRBX] = 0x80
	cpu.Step()
	if cpu.Regs[regRAX] != 0xFFFFFFFF_FFFFFF80 {
		t.Errorf("MOVSX: got 0x%016X", cpu.Regs[regRAX])
	}
}

func TestX64_IMUL_three_operand(t *testing.T) {
	cpu := test64(0x48, 0x6B, 0xC3, 0x07) // IMUL RAX, RBX, 7
	cpu.Regs[regRBX] = 6
	cpu.Step()
	if cpu.Regs[regRAX] != 42 {
		t.Errorf("IMUL: got %d, want 42", cpu.Regs[regRAX])
	}
}

func TestX64_SHL64(t *testing.T) {
	// REX.W SHL RAX, CL masks the count to 6 bits
	cpu := test64(0x48, 0xD3, 0xE0)
	cpu.Regs[regRAX] = 1
	cpu.Regs[regRCX] = 40
	cpu.Step()
	if cpu.Regs[regRAX] != 1<<40 {
		t.Errorf("SHL: got 0x%X, want 1<<40", cpu.Regs[regRAX])
	}
}

func TestX64_DIV_fault_terminates(t *testing.T) {
	// Divide by zero has no IVT in flat mode: the task dies
	cpu := test64(0x48, 0xF7, 0xF3) // DIV RBX
	cpu.Regs[regRAX] = 100
	cpu.Regs[regRBX] = 0
	cpu.Step()
	if !cpu.Terminated {
		t.Error("divide by zero should terminate the CPU")
	}
}

func TestX64_OOB_access_faults(t *testing.T) {
	// Loads outside the arena terminate instead of corrupting
	cpu := test64(0x48, 0x8B, 0x04, 0x25, 0x00, 0x00, 0x00, 0x00) // MOV RAX, [0]
	cpu.Step()
	if !cpu.Terminated {
		t.Error("out-of-arena load should terminate the CPU")
	}
}

func TestX64_OOB_fetch_faults(t *testing.T) {
	mem := NewFlatMemory(testBase64, 0x100)
	cpu := NewCPU_X64(mem)
	cpu.RIP = testBase64 + 0x200
	cpu.Step()
	if !cpu.Terminated {
		t.Error("fetch outside the arena should terminate the CPU")
	}
}

type recordingSyscalls struct {
	calls []uint64
	out   []byte
}

func (r *recordingSyscalls) HandleSyscall(c *CPU_X64) {
	r.calls = append(r.calls, c.Regs[regRAX])
	if c.Regs[regRAX] == sysWrite {
		buf, ok := c.mem.ReadBytes(c.Regs[regRDI], int(c.Regs[regRSI]))
		if ok {
			r.out = append(r.out, buf...)
		}
		c.Regs[regRAX] = c.Regs[regRSI]
	}
}

func TestX64_SYSCALL(t *testing.T) {
	cpu := test64(0x0F, 0x05) // SYSCALL
	rec := &recordingSyscalls{}
	cpu.SetSyscallHandler(rec)
	cpu.Regs[regRAX] = sysWrite
	cpu.Regs[regRDI] = testBase64 + 0x100
	cpu.Regs[regRSI] = 2
	cpu.mem.WriteBytes(testBase64+0x100, []byte("hi"))
	cpu.Step()
	if len(rec.calls) != 1 || rec.calls[0] != sysWrite {
		t.Fatalf("handler calls: %v", rec.calls)
	}
	if string(rec.out) != "hi" {
		t.Errorf("syscall write captured %q", rec.out)
	}
	if cpu.Regs[regRCX] != testBase64+2 {
		t.Errorf("SYSCALL should leave the return RIP in RCX, got 0x%X", cpu.Regs[regRCX])
	}
}

func TestX64_INT80_routes_to_syscalls(t *testing.T) {
	cpu := test64(0xCD, 0x80) // INT 0x80
	rec := &recordingSyscalls{}
	cpu.SetSyscallHandler(rec)
	cpu.Regs[regRAX] = sysTicks
	cpu.Step()
	if len(rec.calls) != 1 {
		t.Fatalf("INT 0x80 should reach the syscall handler, calls=%v", rec.calls)
	}
	if cpu.Terminated {
		t.Error("INT 0x80 must not fault when a handler is installed")
	}
}

func TestX64_other_INT_faults(t *testing.T) {
	cpu := test64(0xCD, 0x21)
	cpu.SetSyscallHandler(&recordingSyscalls{})
	cpu.Step()
	if !cpu.Terminated {
		t.Error("INT other than 0x80 should terminate in flat mode")
	}
}

func TestX64_REP_STOSB(t *testing.T) {
	cpu := test64(0xF3, 0xAA) // REP STOSB
	cpu.Regs[regRAX] = 0x5A
	cpu.Regs[regRDI] = testBase64 + 0x200
	cpu.Regs[regRCX] = 32
	cpu.Step()
	buf, _ := cpu.mem.ReadBytes(testBase64+0x200, 32)
	for i, b := range buf {
		if b != 0x5A {
			t.Fatalf("STOSB at +%d: got 0x%02X", i, b)
		}
	}
	if cpu.Regs[regRCX] != 0 {
		t.Errorf("RCX after REP: got %d", cpu.Regs[regRCX])
	}
}

func TestX64_CQO(t *testing.T) {
	cpu := test64(0x48, 0x99) // CQO
	cpu.Regs[regRAX] = 0x8000000000000000
	cpu.Step()
	if cpu.Regs[regRDX] != 0xFFFFFFFF_FFFFFFFF {
		t.Errorf("CQO: RDX got 0x%016X", cpu.Regs[regRDX])
	}
}

func TestX64_IDIV_after_CQO(t *testing.T) {
	// -100 / 7 = -14 rem -2
	cpu := test64(0x48, 0x99, 0x48, 0xF7, 0xFB) // CQO; IDIV RBX
	dividend := int64(-100)
	cpu.Regs[regRAX] = uint64(dividend)
	cpu.Regs[regRBX] = 7
	cpu.Step()
	cpu.Step()
	if int64(cpu.Regs[regRAX]) != -14 {
		t.Errorf("IDIV quotient: got %d, want -14", int64(cpu.Regs[regRAX]))
	}
	if int64(cpu.Regs[regRDX]) != -2 {
		t.Errorf("IDIV remainder: got %d, want -2", int64(cpu.Regs[regRDX]))
	}
}
