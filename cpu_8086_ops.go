// cpu_8086_ops.go - 8086 CPU Instruction Implementations
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// =============================================================================
// ADD Instructions
// =============================================================================

func (c *CPU_8086) opADD_Eb_Gb() {
	c.fetchModRM()
	a := c.readRM8()
	b := c.getReg8(c.getModRMReg())
	result := uint16(a) + uint16(b)
	c.setFlagsArith8(result, a, b, false)
	c.writeRM8(byte(result))
}

func (c *CPU_8086) opADD_Ev_Gv() {
	c.fetchModRM()
	a := c.readRM16()
	b := c.getReg16(c.getModRMReg())
	result := uint32(a) + uint32(b)
	c.setFlagsArith16(result, a, b, false)
	c.writeRM16(uint16(result))
}

func (c *CPU_8086) opADD_Gb_Eb() {
	c.fetchModRM()
	a := c.getReg8(c.getModRMReg())
	b := c.readRM8()
	result := uint16(a) + uint16(b)
	c.setFlagsArith8(result, a, b, false)
	c.setReg8(c.getModRMReg(), byte(result))
}

func (c *CPU_8086) opADD_Gv_Ev() {
	c.fetchModRM()
	a := c.getReg16(c.getModRMReg())
	b := c.readRM16()
	result := uint32(a) + uint32(b)
	c.setFlagsArith16(result, a, b, false)
	c.setReg16(c.getModRMReg(), uint16(result))
}

func (c *CPU_8086) opADD_AL_Ib() {
	a := c.AL()
	b := c.fetch8()
	result := uint16(a) + uint16(b)
	c.setFlagsArith8(result, a, b, false)
	c.SetAL(byte(result))
}

func (c *CPU_8086) opADD_AX_Iv() {
	a := c.AX
	b := c.fetch16()
	result := uint32(a) + uint32(b)
	c.setFlagsArith16(result, a, b, false)
	c.AX = uint16(result)
}

// =============================================================================
// ADC Instructions (Add with Carry)
// =============================================================================

func (c *CPU_8086) opADC_Eb_Gb() {
	c.fetchModRM()
	a := c.readRM8()
	b := c.getReg8(c.getModRMReg())
	var carry byte
	if c.CF() {
		carry = 1
	}
	result := uint16(a) + uint16(b) + uint16(carry)
	c.setFlagsArith8(result, a, b, false)
	c.writeRM8(byte(result))
}

func (c *CPU_8086) opADC_Ev_Gv() {
	c.fetchModRM()
	var carry uint16
	if c.CF() {
		carry = 1
	}
	a := c.readRM16()
	b := c.getReg16(c.getModRMReg())
	result := uint32(a) + uint32(b) + uint32(carry)
	c.setFlagsArith16(result, a, b, false)
	c.writeRM16(uint16(result))
}

func (c *CPU_8086) opADC_Gb_Eb() {
	c.fetchModRM()
	a := c.getReg8(c.getModRMReg())
	b := c.readRM8()
	var carry byte
	if c.CF() {
		carry = 1
	}
	result := uint16(a) + uint16(b) + uint16(carry)
	c.setFlagsArith8(result, a, b, false)
	c.setReg8(c.getModRMReg(), byte(result))
}

func (c *CPU_8086) opADC_Gv_Ev() {
	c.fetchModRM()
	var carry uint16
	if c.CF() {
		carry = 1
	}
	a := c.getReg16(c.getModRMReg())
	b := c.readRM16()
	result := uint32(a) + uint32(b) + uint32(carry)
	c.setFlagsArith16(result, a, b, false)
	c.setReg16(c.getModRMReg(), uint16(result))
}

func (c *CPU_8086) opADC_AL_Ib() {
	a := c.AL()
	b := c.fetch8()
	var carry byte
	if c.CF() {
		carry = 1
	}
	result := uint16(a) + uint16(b) + uint16(carry)
	c.setFlagsArith8(result, a, b, false)
	c.SetAL(byte(result))
}

func (c *CPU_8086) opADC_AX_Iv() {
	var carry uint16
	if c.CF() {
		carry = 1
	}
	a := c.AX
	b := c.fetch16()
	result := uint32(a) + uint32(b) + uint32(carry)
	c.setFlagsArith16(result, a, b, false)
	c.AX = uint16(result)
}

// =============================================================================
// SUB Instructions
// =============================================================================

func (c *CPU_8086) opSUB_Eb_Gb() {
	c.fetchModRM()
	a := c.readRM8()
	b := c.getReg8(c.getModRMReg())
	result := uint16(a) - uint16(b)
	c.setFlagsArith8(result, a, b, true)
	c.writeRM8(byte(result))
}

func (c *CPU_8086) opSUB_Ev_Gv() {
	c.fetchModRM()
	a := c.readRM16()
	b := c.getReg16(c.getModRMReg())
	result := uint32(a) - uint32(b)
	c.setFlagsArith16(result, a, b, true)
	c.writeRM16(uint16(result))
}

func (c *CPU_8086) opSUB_Gb_Eb() {
	c.fetchModRM()
	a := c.getReg8(c.getModRMReg())
	b := c.readRM8()
	result := uint16(a) - uint16(b)
	c.setFlagsArith8(result, a, b, true)
	c.setReg8(c.getModRMReg(), byte(result))
}

func (c *CPU_8086) opSUB_Gv_Ev() {
	c.fetchModRM()
	a := c.getReg16(c.getModRMReg())
	b := c.readRM16()
	result := uint32(a) - uint32(b)
	c.setFlagsArith16(result, a, b, true)
	c.setReg16(c.getModRMReg(), uint16(result))
}

func (c *CPU_8086) opSUB_AL_Ib() {
	a := c.AL()
	b := c.fetch8()
	result := uint16(a) - uint16(b)
	c.setFlagsArith8(result, a, b, true)
	c.SetAL(byte(result))
}

func (c *CPU_8086) opSUB_AX_Iv() {
	a := c.AX
	b := c.fetch16()
	result := uint32(a) - uint32(b)
	c.setFlagsArith16(result, a, b, true)
	c.AX = uint16(result)
}

// =============================================================================
// SBB Instructions (Subtract with Borrow)
// =============================================================================

func (c *CPU_8086) opSBB_Eb_Gb() {
	c.fetchModRM()
	a := c.readRM8()
	b := c.getReg8(c.getModRMReg())
	var borrow byte
	if c.CF() {
		borrow = 1
	}
	result := uint16(a) - uint16(b) - uint16(borrow)
	c.setFlagsArith8(result, a, b, true)
	c.writeRM8(byte(result))
}

func (c *CPU_8086) opSBB_Ev_Gv() {
	c.fetchModRM()
	var borrow uint16
	if c.CF() {
		borrow = 1
	}
	a := c.readRM16()
	b := c.getReg16(c.getModRMReg())
	result := uint32(a) - uint32(b) - uint32(borrow)
	c.setFlagsArith16(result, a, b, true)
	c.writeRM16(uint16(result))
}

func (c *CPU_8086) opSBB_Gb_Eb() {
	c.fetchModRM()
	a := c.getReg8(c.getModRMReg())
	b := c.readRM8()
	var borrow byte
	if c.CF() {
		borrow = 1
	}
	result := uint16(a) - uint16(b) - uint16(borrow)
	c.setFlagsArith8(result, a, b, true)
	c.setReg8(c.getModRMReg(), byte(result))
}

func (c *CPU_8086) opSBB_Gv_Ev() {
	c.fetchModRM()
	var borrow uint16
	if c.CF() {
		borrow = 1
	}
	a := c.getReg16(c.getModRMReg())
	b := c.readRM16()
	result := uint32(a) - uint32(b) - uint32(borrow)
	c.setFlagsArith16(result, a, b, true)
	c.setReg16(c.getModRMReg(), uint16(result))
}

func (c *CPU_8086) opSBB_AL_Ib() {
	a := c.AL()
	b := c.fetch8()
	var borrow byte
	if c.CF() {
		borrow = 1
	}
	result := uint16(a) - uint16(b) - uint16(borrow)
	c.setFlagsArith8(result, a, b, true)
	c.SetAL(byte(result))
}

func (c *CPU_8086) opSBB_AX_Iv() {
	var borrow uint16
	if c.CF() {
		borrow = 1
	}
	a := c.AX
	b := c.fetch16()
	result := uint32(a) - uint32(b) - uint32(borrow)
	c.setFlagsArith16(result, a, b, true)
	c.AX = uint16(result)
}

// =============================================================================
// CMP Instructions
// =============================================================================

func (c *CPU_8086) opCMP_Eb_Gb() {
	c.fetchModRM()
	a := c.readRM8()
	b := c.getReg8(c.getModRMReg())
	result := uint16(a) - uint16(b)
	c.setFlagsArith8(result, a, b, true)
}

func (c *CPU_8086) opCMP_Ev_Gv() {
	c.fetchModRM()
	a := c.readRM16()
	b := c.getReg16(c.getModRMReg())
	result := uint32(a) - uint32(b)
	c.setFlagsArith16(result, a, b, true)
}

func (c *CPU_8086) opCMP_Gb_Eb() {
	c.fetchModRM()
	a := c.getReg8(c.getModRMReg())
	b := c.readRM8()
	result := uint16(a) - uint16(b)
	c.setFlagsArith8(result, a, b, true)
}

func (c *CPU_8086) opCMP_Gv_Ev() {
	c.fetchModRM()
	a := c.getReg16(c.getModRMReg())
	b := c.readRM16()
	result := uint32(a) - uint32(b)
	c.setFlagsArith16(result, a, b, true)
}

func (c *CPU_8086) opCMP_AL_Ib() {
	a := c.AL()
	b := c.fetch8()
	result := uint16(a) - uint16(b)
	c.setFlagsArith8(result, a, b, true)
}

func (c *CPU_8086) opCMP_AX_Iv() {
	a := c.AX
	b := c.fetch16()
	result := uint32(a) - uint32(b)
	c.setFlagsArith16(result, a, b, true)
}

// =============================================================================
// Logical Instructions (AND/OR/XOR/TEST)
// =============================================================================

func (c *CPU_8086) opAND_Eb_Gb() {
	c.fetchModRM()
	result := c.readRM8() & c.getReg8(c.getModRMReg())
	c.setFlagsLogic8(result)
	c.writeRM8(result)
}

func (c *CPU_8086) opAND_Ev_Gv() {
	c.fetchModRM()
	result := c.readRM16() & c.getReg16(c.getModRMReg())
	c.setFlagsLogic16(result)
	c.writeRM16(result)
}

func (c *CPU_8086) opAND_Gb_Eb() {
	c.fetchModRM()
	result := c.getReg8(c.getModRMReg()) & c.readRM8()
	c.setFlagsLogic8(result)
	c.setReg8(c.getModRMReg(), result)
}

func (c *CPU_8086) opAND_Gv_Ev() {
	c.fetchModRM()
	result := c.getReg16(c.getModRMReg()) & c.readRM16()
	c.setFlagsLogic16(result)
	c.setReg16(c.getModRMReg(), result)
}

func (c *CPU_8086) opAND_AL_Ib() {
	result := c.AL() & c.fetch8()
	c.setFlagsLogic8(result)
	c.SetAL(result)
}

func (c *CPU_8086) opAND_AX_Iv() {
	result := c.AX & c.fetch16()
	c.setFlagsLogic16(result)
	c.AX = result
}

func (c *CPU_8086) opOR_Eb_Gb() {
	c.fetchModRM()
	result := c.readRM8() | c.getReg8(c.getModRMReg())
	c.setFlagsLogic8(result)
	c.writeRM8(result)
}

func (c *CPU_8086) opOR_Ev_Gv() {
	c.fetchModRM()
	result := c.readRM16() | c.getReg16(c.getModRMReg())
	c.setFlagsLogic16(result)
	c.writeRM16(result)
}

func (c *CPU_8086) opOR_Gb_Eb() {
	c.fetchModRM()
	result := c.getReg8(c.getModRMReg()) | c.readRM8()
	c.setFlagsLogic8(result)
	c.setReg8(c.getModRMReg(), result)
}

func (c *CPU_8086) opOR_Gv_Ev() {
	c.fetchModRM()
	result := c.getReg16(c.getModRMReg()) | c.readRM16()
	c.setFlagsLogic16(result)
	c.setReg16(c.getModRMReg(), result)
}

func (c *CPU_8086) opOR_AL_Ib() {
	result := c.AL() | c.fetch8()
	c.setFlagsLogic8(result)
	c.SetAL(result)
}

func (c *CPU_8086) opOR_AX_Iv() {
	result := c.AX | c.fetch16()
	c.setFlagsLogic16(result)
	c.AX = result
}

func (c *CPU_8086) opXOR_Eb_Gb() {
	c.fetchModRM()
	result := c.readRM8() ^ c.getReg8(c.getModRMReg())
	c.setFlagsLogic8(result)
	c.writeRM8(result)
}

func (c *CPU_8086) opXOR_Ev_Gv() {
	c.fetchModRM()
	result := c.readRM16() ^ c.getReg16(c.getModRMReg())
	c.setFlagsLogic16(result)
	c.writeRM16(result)
}

func (c *CPU_8086) opXOR_Gb_Eb() {
	c.fetchModRM()
	result := c.getReg8(c.getModRMReg()) ^ c.readRM8()
	c.setFlagsLogic8(result)
	c.setReg8(c.getModRMReg(), result)
}

func (c *CPU_8086) opXOR_Gv_Ev() {
	c.fetchModRM()
	result := c.getReg16(c.getModRMReg()) ^ c.readRM16()
	c.setFlagsLogic16(result)
	c.setReg16(c.getModRMReg(), result)
}

func (c *CPU_8086) opXOR_AL_Ib() {
	result := c.AL() ^ c.fetch8()
	c.setFlagsLogic8(result)
	c.SetAL(result)
}

func (c *CPU_8086) opXOR_AX_Iv() {
	result := c.AX ^ c.fetch16()
	c.setFlagsLogic16(result)
	c.AX = result
}

func (c *CPU_8086) opTEST_Eb_Gb() {
	c.fetchModRM()
	c.setFlagsLogic8(c.readRM8() & c.getReg8(c.getModRMReg()))
}

func (c *CPU_8086) opTEST_Ev_Gv() {
	c.fetchModRM()
	c.setFlagsLogic16(c.readRM16() & c.getReg16(c.getModRMReg()))
}

func (c *CPU_8086) opTEST_AL_Ib() {
	c.setFlagsLogic8(c.AL() & c.fetch8())
}

func (c *CPU_8086) opTEST_AX_Iv() {
	c.setFlagsLogic16(c.AX & c.fetch16())
}

// =============================================================================
// INC/DEC (CF is untouched, unlike ADD/SUB by 1)
// =============================================================================

func (c *CPU_8086) opINC_reg(idx byte) {
	cf := c.CF()
	a := c.getReg16(idx)
	result := uint32(a) + 1
	c.setFlagsArith16(result, a, 1, false)
	c.setFlag(x86FlagCF, cf)
	c.setReg16(idx, uint16(result))
}

func (c *CPU_8086) opDEC_reg(idx byte) {
	cf := c.CF()
	a := c.getReg16(idx)
	result := uint32(a) - 1
	c.setFlagsArith16(result, a, 1, true)
	c.setFlag(x86FlagCF, cf)
	c.setReg16(idx, uint16(result))
}

// =============================================================================
// Stack Instructions
// =============================================================================

func (c *CPU_8086) opPUSH_reg(idx byte) {
	c.push16(c.getReg16(idx))
}

func (c *CPU_8086) opPOP_reg(idx byte) {
	c.setReg16(idx, c.pop16())
}

func (c *CPU_8086) opPUSH_ES() { c.push16(c.ES) }
func (c *CPU_8086) opPOP_ES()  { c.ES = c.pop16() }
func (c *CPU_8086) opPUSH_CS() { c.push16(c.CS) }
func (c *CPU_8086) opPUSH_SS() { c.push16(c.SS) }
func (c *CPU_8086) opPOP_SS()  { c.SS = c.pop16() }
func (c *CPU_8086) opPUSH_DS() { c.push16(c.DS) }
func (c *CPU_8086) opPOP_DS()  { c.DS = c.pop16() }

func (c *CPU_8086) opPUSHA() {
	sp := c.SP
	c.push16(c.AX)
	c.push16(c.CX)
	c.push16(c.DX)
	c.push16(c.BX)
	c.push16(sp)
	c.push16(c.BP)
	c.push16(c.SI)
	c.push16(c.DI)
}

func (c *CPU_8086) opPOPA() {
	c.DI = c.pop16()
	c.SI = c.pop16()
	c.BP = c.pop16()
	c.pop16() // SP slot discarded
	c.BX = c.pop16()
	c.DX = c.pop16()
	c.CX = c.pop16()
	c.AX = c.pop16()
}

func (c *CPU_8086) opPUSH_Iv() {
	c.push16(c.fetch16())
}

func (c *CPU_8086) opPUSH_Ib() {
	c.push16(uint16(int16(int8(c.fetch8()))))
}

func (c *CPU_8086) opPUSHF() {
	c.push16(c.Flags)
}

func (c *CPU_8086) opPOPF() {
	c.Flags = c.pop16() | x86FlagFixed
}

func (c *CPU_8086) opPOP_Ev() {
	c.fetchModRM()
	c.writeRM16(c.pop16())
}

// ENTER nesting levels beyond 0 are vanishingly rare but cheap to honour.
func (c *CPU_8086) opENTER() {
	frame := c.fetch16()
	nesting := c.fetch8() & 0x1F
	c.push16(c.BP)
	frameTemp := c.SP
	if nesting > 0 {
		for i := byte(1); i < nesting; i++ {
			c.BP -= 2
			c.push16(c.mem.Read16(c.SS, c.BP))
		}
		c.push16(frameTemp)
	}
	c.BP = frameTemp
	c.SP -= frame
}

func (c *CPU_8086) opLEAVE() {
	c.SP = c.BP
	c.BP = c.pop16()
}

// =============================================================================
// IMUL with immediate (186)
// =============================================================================

func (c *CPU_8086) opIMUL_Gv_Ev_Iv() {
	c.fetchModRM()
	a := int16(c.readRM16())
	imm := int16(c.fetch16())
	product := int32(a) * int32(imm)
	result := int16(product)
	overflow := int32(result) != product
	c.setFlag(x86FlagCF, overflow)
	c.setFlag(x86FlagOF, overflow)
	c.setReg16(c.getModRMReg(), uint16(result))
}

func (c *CPU_8086) opIMUL_Gv_Ev_Ib() {
	c.fetchModRM()
	a := int16(c.readRM16())
	imm := int16(int8(c.fetch8()))
	product := int32(a) * int32(imm)
	result := int16(product)
	overflow := int32(result) != product
	c.setFlag(x86FlagCF, overflow)
	c.setFlag(x86FlagOF, overflow)
	c.setReg16(c.getModRMReg(), uint16(result))
}

// =============================================================================
// Conditional Jumps
// =============================================================================

// jumpRel8 fetches the displacement then conditionally takes the jump.
// The displacement must be consumed either way.
func (c *CPU_8086) jumpRel8(taken bool) {
	disp := int8(c.fetch8())
	if taken {
		c.IP += uint16(int16(disp))
	}
}

func (c *CPU_8086) opJO_rel8()   { c.jumpRel8(c.OF()) }
func (c *CPU_8086) opJNO_rel8()  { c.jumpRel8(!c.OF()) }
func (c *CPU_8086) opJB_rel8()   { c.jumpRel8(c.CF()) }
func (c *CPU_8086) opJNB_rel8()  { c.jumpRel8(!c.CF()) }
func (c *CPU_8086) opJZ_rel8()   { c.jumpRel8(c.ZF()) }
func (c *CPU_8086) opJNZ_rel8()  { c.jumpRel8(!c.ZF()) }
func (c *CPU_8086) opJBE_rel8()  { c.jumpRel8(c.CF() || c.ZF()) }
func (c *CPU_8086) opJNBE_rel8() { c.jumpRel8(!c.CF() && !c.ZF()) }
func (c *CPU_8086) opJS_rel8()   { c.jumpRel8(c.SF()) }
func (c *CPU_8086) opJNS_rel8()  { c.jumpRel8(!c.SF()) }
func (c *CPU_8086) opJP_rel8()   { c.jumpRel8(c.PF()) }
func (c *CPU_8086) opJNP_rel8()  { c.jumpRel8(!c.PF()) }
func (c *CPU_8086) opJL_rel8()   { c.jumpRel8(c.SF() != c.OF()) }
func (c *CPU_8086) opJNL_rel8()  { c.jumpRel8(c.SF() == c.OF()) }
func (c *CPU_8086) opJLE_rel8()  { c.jumpRel8(c.ZF() || (c.SF() != c.OF())) }
func (c *CPU_8086) opJNLE_rel8() { c.jumpRel8(!c.ZF() && (c.SF() == c.OF())) }

func (c *CPU_8086) opJCXZ_rel8() { c.jumpRel8(c.CX == 0) }

// =============================================================================
// LOOP Instructions
// =============================================================================

func (c *CPU_8086) opLOOPNE_rel8() {
	c.CX--
	c.jumpRel8(c.CX != 0 && !c.ZF())
}

func (c *CPU_8086) opLOOPE_rel8() {
	c.CX--
	c.jumpRel8(c.CX != 0 && c.ZF())
}

func (c *CPU_8086) opLOOP_rel8() {
	c.CX--
	c.jumpRel8(c.CX != 0)
}

// =============================================================================
// XCHG Instructions
// =============================================================================

func (c *CPU_8086) opXCHG_Eb_Gb() {
	c.fetchModRM()
	reg := c.getModRMReg()
	a := c.readRM8()
	b := c.getReg8(reg)
	c.writeRM8(b)
	c.setReg8(reg, a)
}

func (c *CPU_8086) opXCHG_Ev_Gv() {
	c.fetchModRM()
	reg := c.getModRMReg()
	a := c.readRM16()
	b := c.getReg16(reg)
	c.writeRM16(b)
	c.setReg16(reg, a)
}

func (c *CPU_8086) opXCHG_AX_reg(idx byte) {
	tmp := c.AX
	c.AX = c.getReg16(idx)
	c.setReg16(idx, tmp)
}

// =============================================================================
// MOV Instructions
// =============================================================================

func (c *CPU_8086) opMOV_Eb_Gb() {
	c.fetchModRM()
	c.writeRM8(c.getReg8(c.getModRMReg()))
}

func (c *CPU_8086) opMOV_Ev_Gv() {
	c.fetchModRM()
	c.writeRM16(c.getReg16(c.getModRMReg()))
}

func (c *CPU_8086) opMOV_Gb_Eb() {
	c.fetchModRM()
	c.setReg8(c.getModRMReg(), c.readRM8())
}

func (c *CPU_8086) opMOV_Gv_Ev() {
	c.fetchModRM()
	c.setReg16(c.getModRMReg(), c.readRM16())
}

func (c *CPU_8086) opMOV_Ev_Sw() {
	c.fetchModRM()
	c.writeRM16(c.getSeg(int(c.getModRMReg())))
}

func (c *CPU_8086) opMOV_Sw_Ew() {
	c.fetchModRM()
	c.setSeg(int(c.getModRMReg()), c.readRM16())
}

func (c *CPU_8086) opMOV_AL_Ob() {
	off := c.fetch16()
	c.SetAL(c.mem.Read8(c.dataSeg(), off))
}

func (c *CPU_8086) opMOV_AX_Ov() {
	off := c.fetch16()
	c.AX = c.mem.Read16(c.dataSeg(), off)
}

func (c *CPU_8086) opMOV_Ob_AL() {
	off := c.fetch16()
	c.mem.Write8(c.dataSeg(), off, c.AL())
}

func (c *CPU_8086) opMOV_Ov_AX() {
	off := c.fetch16()
	c.mem.Write16(c.dataSeg(), off, c.AX)
}

func (c *CPU_8086) opMOV_reg8_Ib(idx byte) {
	c.setReg8(idx, c.fetch8())
}

func (c *CPU_8086) opMOV_reg16_Iv(idx byte) {
	c.setReg16(idx, c.fetch16())
}

func (c *CPU_8086) opMOV_Eb_Ib() {
	c.fetchModRM()
	// Resolve the memory operand before the immediate; both live in
	// the instruction stream in that order.
	if c.getModRMMod() != 3 {
		c.calcEffectiveAddress()
	}
	c.writeRM8(c.fetch8())
}

func (c *CPU_8086) opMOV_Ev_Iv() {
	c.fetchModRM()
	if c.getModRMMod() != 3 {
		c.calcEffectiveAddress()
	}
	c.writeRM16(c.fetch16())
}

// =============================================================================
// LEA / LES / LDS
// =============================================================================

func (c *CPU_8086) opLEA() {
	c.fetchModRM()
	_, off := c.calcEffectiveAddress()
	c.setReg16(c.getModRMReg(), off)
}

func (c *CPU_8086) opLES() {
	c.fetchModRM()
	seg, off := c.calcEffectiveAddress()
	c.setReg16(c.getModRMReg(), c.mem.Read16(seg, off))
	c.ES = c.mem.Read16(seg, off+2)
}

func (c *CPU_8086) opLDS() {
	c.fetchModRM()
	seg, off := c.calcEffectiveAddress()
	c.setReg16(c.getModRMReg(), c.mem.Read16(seg, off))
	c.DS = c.mem.Read16(seg, off+2)
}

// =============================================================================
// Sign Extension
// =============================================================================

func (c *CPU_8086) opCBW() {
	c.AX = uint16(int16(int8(c.AL())))
}

func (c *CPU_8086) opCWD() {
	if c.AX&0x8000 != 0 {
		c.DX = 0xFFFF
	} else {
		c.DX = 0
	}
}

// =============================================================================
// Flag Transfer
// =============================================================================

func (c *CPU_8086) opSAHF() {
	mask := uint16(x86FlagSF | x86FlagZF | x86FlagAF | x86FlagPF | x86FlagCF)
	c.Flags = (c.Flags &^ mask) | (uint16(c.AH()) & mask) | x86FlagFixed
}

func (c *CPU_8086) opLAHF() {
	c.SetAH(byte(c.Flags) | byte(x86FlagFixed))
}

// =============================================================================
// Control Flow
// =============================================================================

func (c *CPU_8086) opCALL_rel16() {
	disp := c.fetch16()
	c.push16(c.IP)
	c.IP += disp
}

func (c *CPU_8086) opCALL_far() {
	newIP := c.fetch16()
	newCS := c.fetch16()
	c.push16(c.CS)
	c.push16(c.IP)
	c.CS = newCS
	c.IP = newIP
}

func (c *CPU_8086) opRET() {
	c.IP = c.pop16()
}

func (c *CPU_8086) opRET_Iv() {
	n := c.fetch16()
	c.IP = c.pop16()
	c.SP += n
}

func (c *CPU_8086) opRETF() {
	c.IP = c.pop16()
	c.CS = c.pop16()
}

func (c *CPU_8086) opRETF_Iv() {
	n := c.fetch16()
	c.IP = c.pop16()
	c.CS = c.pop16()
	c.SP += n
}

func (c *CPU_8086) opJMP_rel16() {
	disp := c.fetch16()
	c.IP += disp
}

func (c *CPU_8086) opJMP_far() {
	newIP := c.fetch16()
	newCS := c.fetch16()
	c.CS = newCS
	c.IP = newIP
}

func (c *CPU_8086) opJMP_rel8() {
	c.jumpRel8(true)
}

// =============================================================================
// Interrupt Instructions
// =============================================================================

func (c *CPU_8086) opINT3() {
	c.dispatchInt(3)
}

func (c *CPU_8086) opINT_Ib() {
	vector := c.fetch8()
	c.dispatchInt(vector)
}

func (c *CPU_8086) opINTO() {
	if c.OF() {
		c.dispatchInt(4)
	}
}

func (c *CPU_8086) opIRET() {
	c.IP = c.pop16()
	c.CS = c.pop16()
	c.Flags = c.pop16() | x86FlagFixed
}

// =============================================================================
// BCD Adjust Instructions
// =============================================================================

func (c *CPU_8086) opDAA() {
	al := c.AL()
	oldAL := al
	oldCF := c.CF()
	if (al&0x0F) > 9 || c.AF() {
		al += 6
		c.setFlag(x86FlagCF, oldCF || oldAL > 0xF9)
		c.setFlag(x86FlagAF, true)
	} else {
		c.setFlag(x86FlagAF, false)
	}
	if oldAL > 0x99 || oldCF {
		al += 0x60
		c.setFlag(x86FlagCF, true)
	} else {
		c.setFlag(x86FlagCF, false)
	}
	c.SetAL(al)
	c.setFlag(x86FlagZF, al == 0)
	c.setFlag(x86FlagSF, (al&0x80) != 0)
	c.setFlag(x86FlagPF, parity(al))
}

func (c *CPU_8086) opDAS() {
	al := c.AL()
	oldAL := al
	oldCF := c.CF()
	c.setFlag(x86FlagCF, false)
	if (al&0x0F) > 9 || c.AF() {
		al -= 6
		c.setFlag(x86FlagCF, oldCF || oldAL < 6)
		c.setFlag(x86FlagAF, true)
	} else {
		c.setFlag(x86FlagAF, false)
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		c.setFlag(x86FlagCF, true)
	}
	c.SetAL(al)
	c.setFlag(x86FlagZF, al == 0)
	c.setFlag(x86FlagSF, (al&0x80) != 0)
	c.setFlag(x86FlagPF, parity(al))
}

func (c *CPU_8086) opAAA() {
	if (c.AL()&0x0F) > 9 || c.AF() {
		c.AX += 0x106
		c.setFlag(x86FlagAF, true)
		c.setFlag(x86FlagCF, true)
	} else {
		c.setFlag(x86FlagAF, false)
		c.setFlag(x86FlagCF, false)
	}
	c.SetAL(c.AL() & 0x0F)
}

func (c *CPU_8086) opAAS() {
	if (c.AL()&0x0F) > 9 || c.AF() {
		c.AX -= 6
		c.SetAH(c.AH() - 1)
		c.setFlag(x86FlagAF, true)
		c.setFlag(x86FlagCF, true)
	} else {
		c.setFlag(x86FlagAF, false)
		c.setFlag(x86FlagCF, false)
	}
	c.SetAL(c.AL() & 0x0F)
}

func (c *CPU_8086) opAAM() {
	base := c.fetch8()
	if base == 0 {
		c.dispatchInt(0)
		return
	}
	al := c.AL()
	c.SetAH(al / base)
	c.SetAL(al % base)
	al = c.AL()
	c.setFlag(x86FlagZF, al == 0)
	c.setFlag(x86FlagSF, (al&0x80) != 0)
	c.setFlag(x86FlagPF, parity(al))
}

func (c *CPU_8086) opAAD() {
	base := c.fetch8()
	al := c.AL() + c.AH()*base
	c.SetAL(al)
	c.SetAH(0)
	c.setFlag(x86FlagZF, al == 0)
	c.setFlag(x86FlagSF, (al&0x80) != 0)
	c.setFlag(x86FlagPF, parity(al))
}

// =============================================================================
// XLAT
// =============================================================================

func (c *CPU_8086) opXLAT() {
	c.SetAL(c.mem.Read8(c.dataSeg(), c.BX+uint16(c.AL())))
}

// =============================================================================
// Port I/O (no port hardware behind these; reads float low, writes vanish)
// =============================================================================

func (c *CPU_8086) opIN_AL_Ib() {
	c.fetch8()
	c.SetAL(0)
}

func (c *CPU_8086) opIN_AX_Ib() {
	c.fetch8()
	c.AX = 0
}

func (c *CPU_8086) opOUT_Ib_AL() {
	c.fetch8()
}

func (c *CPU_8086) opOUT_Ib_AX() {
	c.fetch8()
}

func (c *CPU_8086) opIN_AL_DX() {
	c.SetAL(0)
}

func (c *CPU_8086) opIN_AX_DX() {
	c.AX = 0
}

func (c *CPU_8086) opOUT_DX_AL() {}
func (c *CPU_8086) opOUT_DX_AX() {}

// =============================================================================
// Processor Control
// =============================================================================

func (c *CPU_8086) opNOP() {}

func (c *CPU_8086) opHLT() {
	c.Halted = true
}

func (c *CPU_8086) opCMC() {
	c.setFlag(x86FlagCF, !c.CF())
}

func (c *CPU_8086) opCLC() { c.setFlag(x86FlagCF, false) }
func (c *CPU_8086) opSTC() { c.setFlag(x86FlagCF, true) }
func (c *CPU_8086) opCLI() { c.setFlag(x86FlagIF, false) }
func (c *CPU_8086) opSTI() { c.setFlag(x86FlagIF, true) }
func (c *CPU_8086) opCLD() { c.setFlag(x86FlagDF, false) }
func (c *CPU_8086) opSTD() { c.setFlag(x86FlagDF, true) }

// opESC consumes an FPU escape: decode the operand, do nothing with it.
func (c *CPU_8086) opESC() {
	c.fetchModRM()
	if c.getModRMMod() != 3 {
		c.calcEffectiveAddress()
	}
}

// =============================================================================
// Opcode Table Initialization
// =============================================================================

func (c *CPU_8086) initBaseOps() {
	// Clear all entries first
	for i := range c.baseOps {
		c.baseOps[i] = nil
	}

	// 0x00-0x05: ADD
	c.baseOps[0x00] = (*CPU_8086).opADD_Eb_Gb
	c.baseOps[0x01] = (*CPU_8086).opADD_Ev_Gv
	c.baseOps[0x02] = (*CPU_8086).opADD_Gb_Eb
	c.baseOps[0x03] = (*CPU_8086).opADD_Gv_Ev
	c.baseOps[0x04] = (*CPU_8086).opADD_AL_Ib
	c.baseOps[0x05] = (*CPU_8086).opADD_AX_Iv

	// 0x06-0x07: PUSH/POP ES
	c.baseOps[0x06] = (*CPU_8086).opPUSH_ES
	c.baseOps[0x07] = (*CPU_8086).opPOP_ES

	// 0x08-0x0D: OR
	c.baseOps[0x08] = (*CPU_8086).opOR_Eb_Gb
	c.baseOps[0x09] = (*CPU_8086).opOR_Ev_Gv
	c.baseOps[0x0A] = (*CPU_8086).opOR_Gb_Eb
	c.baseOps[0x0B] = (*CPU_8086).opOR_Gv_Ev
	c.baseOps[0x0C] = (*CPU_8086).opOR_AL_Ib
	c.baseOps[0x0D] = (*CPU_8086).opOR_AX_Iv

	// 0x0E: PUSH CS (0x0F = POP CS is left undefined, as on the 286+)
	c.baseOps[0x0E] = (*CPU_8086).opPUSH_CS

	// 0x10-0x15: ADC
	c.baseOps[0x10] = (*CPU_8086).opADC_Eb_Gb
	c.baseOps[0x11] = (*CPU_8086).opADC_Ev_Gv
	c.baseOps[0x12] = (*CPU_8086).opADC_Gb_Eb
	c.baseOps[0x13] = (*CPU_8086).opADC_Gv_Ev
	c.baseOps[0x14] = (*CPU_8086).opADC_AL_Ib
	c.baseOps[0x15] = (*CPU_8086).opADC_AX_Iv

	// 0x16-0x17: PUSH/POP SS
	c.baseOps[0x16] = (*CPU_8086).opPUSH_SS
	c.baseOps[0x17] = (*CPU_8086).opPOP_SS

	// 0x18-0x1D: SBB
	c.baseOps[0x18] = (*CPU_8086).opSBB_Eb_Gb
	c.baseOps[0x19] = (*CPU_8086).opSBB_Ev_Gv
	c.baseOps[0x1A] = (*CPU_8086).opSBB_Gb_Eb
	c.baseOps[0x1B] = (*CPU_8086).opSBB_Gv_Ev
	c.baseOps[0x1C] = (*CPU_8086).opSBB_AL_Ib
	c.baseOps[0x1D] = (*CPU_8086).opSBB_AX_Iv

	// 0x1E-0x1F: PUSH/POP DS
	c.baseOps[0x1E] = (*CPU_8086).opPUSH_DS
	c.baseOps[0x1F] = (*CPU_8086).opPOP_DS

	// 0x20-0x25: AND
	c.baseOps[0x20] = (*CPU_8086).opAND_Eb_Gb
	c.baseOps[0x21] = (*CPU_8086).opAND_Ev_Gv
	c.baseOps[0x22] = (*CPU_8086).opAND_Gb_Eb
	c.baseOps[0x23] = (*CPU_8086).opAND_Gv_Ev
	c.baseOps[0x24] = (*CPU_8086).opAND_AL_Ib
	c.baseOps[0x25] = (*CPU_8086).opAND_AX_Iv

	// 0x27: DAA
	c.baseOps[0x27] = (*CPU_8086).opDAA

	// 0x28-0x2D: SUB
	c.baseOps[0x28] = (*CPU_8086).opSUB_Eb_Gb
	c.baseOps[0x29] = (*CPU_8086).opSUB_Ev_Gv
	c.baseOps[0x2A] = (*CPU_8086).opSUB_Gb_Eb
	c.baseOps[0x2B] = (*CPU_8086).opSUB_Gv_Ev
	c.baseOps[0x2C] = (*CPU_8086).opSUB_AL_Ib
	c.baseOps[0x2D] = (*CPU_8086).opSUB_AX_Iv

	// 0x2F: DAS
	c.baseOps[0x2F] = (*CPU_8086).opDAS

	// 0x30-0x35: XOR
	c.baseOps[0x30] = (*CPU_8086).opXOR_Eb_Gb
	c.baseOps[0x31] = (*CPU_8086).opXOR_Ev_Gv
	c.baseOps[0x32] = (*CPU_8086).opXOR_Gb_Eb
	c.baseOps[0x33] = (*CPU_8086).opXOR_Gv_Ev
	c.baseOps[0x34] = (*CPU_8086).opXOR_AL_Ib
	c.baseOps[0x35] = (*CPU_8086).opXOR_AX_Iv

	// 0x37: AAA
	c.baseOps[0x37] = (*CPU_8086).opAAA

	// 0x38-0x3D: CMP
	c.baseOps[0x38] = (*CPU_8086).opCMP_Eb_Gb
	c.baseOps[0x39] = (*CPU_8086).opCMP_Ev_Gv
	c.baseOps[0x3A] = (*CPU_8086).opCMP_Gb_Eb
	c.baseOps[0x3B] = (*CPU_8086).opCMP_Gv_Ev
	c.baseOps[0x3C] = (*CPU_8086).opCMP_AL_Ib
	c.baseOps[0x3D] = (*CPU_8086).opCMP_AX_Iv

	// 0x3F: AAS
	c.baseOps[0x3F] = (*CPU_8086).opAAS

	// 0x40-0x47: INC r16
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x40+i] = func(cpu *CPU_8086) { cpu.opINC_reg(byte(idx)) }
	}

	// 0x48-0x4F: DEC r16
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x48+i] = func(cpu *CPU_8086) { cpu.opDEC_reg(byte(idx)) }
	}

	// 0x50-0x57: PUSH r16
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x50+i] = func(cpu *CPU_8086) { cpu.opPUSH_reg(byte(idx)) }
	}

	// 0x58-0x5F: POP r16
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x58+i] = func(cpu *CPU_8086) { cpu.opPOP_reg(byte(idx)) }
	}

	// 0x60: PUSHA
	c.baseOps[0x60] = (*CPU_8086).opPUSHA

	// 0x61: POPA
	c.baseOps[0x61] = (*CPU_8086).opPOPA

	// 0x68: PUSH Iv
	c.baseOps[0x68] = (*CPU_8086).opPUSH_Iv

	// 0x69: IMUL Gv,Ev,Iv
	c.baseOps[0x69] = (*CPU_8086).opIMUL_Gv_Ev_Iv

	// 0x6A: PUSH Ib
	c.baseOps[0x6A] = (*CPU_8086).opPUSH_Ib

	// 0x6B: IMUL Gv,Ev,Ib
	c.baseOps[0x6B] = (*CPU_8086).opIMUL_Gv_Ev_Ib

	// 0x70-0x7F: Jcc rel8
	c.baseOps[0x70] = (*CPU_8086).opJO_rel8
	c.baseOps[0x71] = (*CPU_8086).opJNO_rel8
	c.baseOps[0x72] = (*CPU_8086).opJB_rel8
	c.baseOps[0x73] = (*CPU_8086).opJNB_rel8
	c.baseOps[0x74] = (*CPU_8086).opJZ_rel8
	c.baseOps[0x75] = (*CPU_8086).opJNZ_rel8
	c.baseOps[0x76] = (*CPU_8086).opJBE_rel8
	c.baseOps[0x77] = (*CPU_8086).opJNBE_rel8
	c.baseOps[0x78] = (*CPU_8086).opJS_rel8
	c.baseOps[0x79] = (*CPU_8086).opJNS_rel8
	c.baseOps[0x7A] = (*CPU_8086).opJP_rel8
	c.baseOps[0x7B] = (*CPU_8086).opJNP_rel8
	c.baseOps[0x7C] = (*CPU_8086).opJL_rel8
	c.baseOps[0x7D] = (*CPU_8086).opJNL_rel8
	c.baseOps[0x7E] = (*CPU_8086).opJLE_rel8
	c.baseOps[0x7F] = (*CPU_8086).opJNLE_rel8

	// 0x84-0x85: TEST
	c.baseOps[0x84] = (*CPU_8086).opTEST_Eb_Gb
	c.baseOps[0x85] = (*CPU_8086).opTEST_Ev_Gv

	// 0x86-0x87: XCHG
	c.baseOps[0x86] = (*CPU_8086).opXCHG_Eb_Gb
	c.baseOps[0x87] = (*CPU_8086).opXCHG_Ev_Gv

	// 0x88-0x8B: MOV
	c.baseOps[0x88] = (*CPU_8086).opMOV_Eb_Gb
	c.baseOps[0x89] = (*CPU_8086).opMOV_Ev_Gv
	c.baseOps[0x8A] = (*CPU_8086).opMOV_Gb_Eb
	c.baseOps[0x8B] = (*CPU_8086).opMOV_Gv_Ev

	// 0x8C: MOV Ev,Sw
	c.baseOps[0x8C] = (*CPU_8086).opMOV_Ev_Sw

	// 0x8D: LEA
	c.baseOps[0x8D] = (*CPU_8086).opLEA

	// 0x8E: MOV Sw,Ew
	c.baseOps[0x8E] = (*CPU_8086).opMOV_Sw_Ew

	// 0x8F: POP Ev
	c.baseOps[0x8F] = (*CPU_8086).opPOP_Ev

	// 0x90: NOP (XCHG AX,AX)
	c.baseOps[0x90] = (*CPU_8086).opNOP

	// 0x91-0x97: XCHG AX,r16
	for i := 1; i < 8; i++ {
		idx := i
		c.baseOps[0x90+i] = func(cpu *CPU_8086) { cpu.opXCHG_AX_reg(byte(idx)) }
	}

	// 0x98: CBW
	c.baseOps[0x98] = (*CPU_8086).opCBW

	// 0x99: CWD
	c.baseOps[0x99] = (*CPU_8086).opCWD

	// 0x9A: CALL far
	c.baseOps[0x9A] = (*CPU_8086).opCALL_far

	// 0x9B: WAIT (no coprocessor to wait for)
	c.baseOps[0x9B] = (*CPU_8086).opNOP

	// 0x9C-0x9F: PUSHF/POPF/SAHF/LAHF
	c.baseOps[0x9C] = (*CPU_8086).opPUSHF
	c.baseOps[0x9D] = (*CPU_8086).opPOPF
	c.baseOps[0x9E] = (*CPU_8086).opSAHF
	c.baseOps[0x9F] = (*CPU_8086).opLAHF

	// 0xA0-0xA3: MOV moffs
	c.baseOps[0xA0] = (*CPU_8086).opMOV_AL_Ob
	c.baseOps[0xA1] = (*CPU_8086).opMOV_AX_Ov
	c.baseOps[0xA2] = (*CPU_8086).opMOV_Ob_AL
	c.baseOps[0xA3] = (*CPU_8086).opMOV_Ov_AX

	// 0xA8-0xA9: TEST accumulator, immediate
	c.baseOps[0xA8] = (*CPU_8086).opTEST_AL_Ib
	c.baseOps[0xA9] = (*CPU_8086).opTEST_AX_Iv

	// 0xB0-0xB7: MOV r8,Ib
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0xB0+i] = func(cpu *CPU_8086) { cpu.opMOV_reg8_Ib(byte(idx)) }
	}

	// 0xB8-0xBF: MOV r16,Iv
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0xB8+i] = func(cpu *CPU_8086) { cpu.opMOV_reg16_Iv(byte(idx)) }
	}

	// 0xC2-0xC3: RET near
	c.baseOps[0xC2] = (*CPU_8086).opRET_Iv
	c.baseOps[0xC3] = (*CPU_8086).opRET

	// 0xC4-0xC5: LES/LDS
	c.baseOps[0xC4] = (*CPU_8086).opLES
	c.baseOps[0xC5] = (*CPU_8086).opLDS

	// 0xC6-0xC7: MOV rm,imm
	c.baseOps[0xC6] = (*CPU_8086).opMOV_Eb_Ib
	c.baseOps[0xC7] = (*CPU_8086).opMOV_Ev_Iv

	// 0xC8-0xC9: ENTER/LEAVE
	c.baseOps[0xC8] = (*CPU_8086).opENTER
	c.baseOps[0xC9] = (*CPU_8086).opLEAVE

	// 0xCA-0xCB: RET far
	c.baseOps[0xCA] = (*CPU_8086).opRETF_Iv
	c.baseOps[0xCB] = (*CPU_8086).opRETF

	// 0xCC-0xCF: INT3/INT/INTO/IRET
	c.baseOps[0xCC] = (*CPU_8086).opINT3
	c.baseOps[0xCD] = (*CPU_8086).opINT_Ib
	c.baseOps[0xCE] = (*CPU_8086).opINTO
	c.baseOps[0xCF] = (*CPU_8086).opIRET

	// 0xD4-0xD5: AAM/AAD
	c.baseOps[0xD4] = (*CPU_8086).opAAM
	c.baseOps[0xD5] = (*CPU_8086).opAAD

	// 0xD7: XLAT
	c.baseOps[0xD7] = (*CPU_8086).opXLAT

	// 0xD8-0xDF: FPU escapes
	for i := 0xD8; i <= 0xDF; i++ {
		c.baseOps[i] = (*CPU_8086).opESC
	}

	// 0xE0-0xE3: LOOPNE/LOOPE/LOOP/JCXZ
	c.baseOps[0xE0] = (*CPU_8086).opLOOPNE_rel8
	c.baseOps[0xE1] = (*CPU_8086).opLOOPE_rel8
	c.baseOps[0xE2] = (*CPU_8086).opLOOP_rel8
	c.baseOps[0xE3] = (*CPU_8086).opJCXZ_rel8

	// 0xE4-0xE7: IN/OUT immediate port
	c.baseOps[0xE4] = (*CPU_8086).opIN_AL_Ib
	c.baseOps[0xE5] = (*CPU_8086).opIN_AX_Ib
	c.baseOps[0xE6] = (*CPU_8086).opOUT_Ib_AL
	c.baseOps[0xE7] = (*CPU_8086).opOUT_Ib_AX

	// 0xE8-0xEB: CALL/JMP
	c.baseOps[0xE8] = (*CPU_8086).opCALL_rel16
	c.baseOps[0xE9] = (*CPU_8086).opJMP_rel16
	c.baseOps[0xEA] = (*CPU_8086).opJMP_far
	c.baseOps[0xEB] = (*CPU_8086).opJMP_rel8

	// 0xEC-0xEF: IN/OUT via DX
	c.baseOps[0xEC] = (*CPU_8086).opIN_AL_DX
	c.baseOps[0xED] = (*CPU_8086).opIN_AX_DX
	c.baseOps[0xEE] = (*CPU_8086).opOUT_DX_AL
	c.baseOps[0xEF] = (*CPU_8086).opOUT_DX_AX

	// 0xF4-0xF5: HLT/CMC
	c.baseOps[0xF4] = (*CPU_8086).opHLT
	c.baseOps[0xF5] = (*CPU_8086).opCMC

	// 0xF8-0xFD: flag instructions
	c.baseOps[0xF8] = (*CPU_8086).opCLC
	c.baseOps[0xF9] = (*CPU_8086).opSTC
	c.baseOps[0xFA] = (*CPU_8086).opCLI
	c.baseOps[0xFB] = (*CPU_8086).opSTI
	c.baseOps[0xFC] = (*CPU_8086).opCLD
	c.baseOps[0xFD] = (*CPU_8086).opSTD
}
