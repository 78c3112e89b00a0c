// cpu_x64_ops.go - x86-64 CPU Instruction Implementations
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "math/bits"

// =============================================================================
// ALU core (shared by the 0x00-0x3D families and Group 1)
// =============================================================================

// alu applies the classic eight-operation selector. The bool result is
// false when nothing should be written back (CMP).
func (c *CPU_X64) alu(op byte, a, b uint64, size byte) (uint64, bool) {
	switch op {
	case 0: // ADD
		return c.addWithCarry(a, b, 0, size), true
	case 1: // OR
		r := (a | b) & widthMask(size)
		c.setFlagsLogic(r, size)
		return r, true
	case 2: // ADC
		return c.addWithCarry(a, b, c.carryIn(), size), true
	case 3: // SBB
		return c.subWithBorrow(a, b, c.carryIn(), size), true
	case 4: // AND
		r := a & b & widthMask(size)
		c.setFlagsLogic(r, size)
		return r, true
	case 5: // SUB
		return c.subWithBorrow(a, b, 0, size), true
	case 6: // XOR
		r := (a ^ b) & widthMask(size)
		c.setFlagsLogic(r, size)
		return r, true
	}
	// CMP
	c.subWithBorrow(a, b, 0, size)
	return 0, false
}

func (c *CPU_X64) opALU_Eb_Gb(op byte) {
	c.fetchModRM()
	a := c.readRM(1)
	b := uint64(c.getReg8(c.getModRMReg()))
	if r, wb := c.alu(op, a, b, 1); wb {
		c.writeRM(1, r)
	}
}

func (c *CPU_X64) opALU_Ev_Gv(op byte) {
	c.fetchModRM()
	size := c.operandSize()
	a := c.readRM(size)
	b := c.getReg(c.getModRMReg(), size)
	if r, wb := c.alu(op, a, b, size); wb {
		c.writeRM(size, r)
	}
}

func (c *CPU_X64) opALU_Gb_Eb(op byte) {
	c.fetchModRM()
	reg := c.getModRMReg()
	a := uint64(c.getReg8(reg))
	b := c.readRM(1)
	if r, wb := c.alu(op, a, b, 1); wb {
		c.setReg8(reg, byte(r))
	}
}

func (c *CPU_X64) opALU_Gv_Ev(op byte) {
	c.fetchModRM()
	size := c.operandSize()
	reg := c.getModRMReg()
	a := c.getReg(reg, size)
	b := c.readRM(size)
	if r, wb := c.alu(op, a, b, size); wb {
		c.setReg(reg, size, r)
	}
}

func (c *CPU_X64) opALU_AL_Ib(op byte) {
	a := uint64(byte(c.Regs[regRAX]))
	b := uint64(c.fetch8())
	if r, wb := c.alu(op, a, b, 1); wb {
		c.setReg8(regRAX, byte(r))
	}
}

func (c *CPU_X64) opALU_rAX_Iz(op byte) {
	size := c.operandSize()
	a := c.getReg(regRAX, size)
	b := c.fetchImm(size)
	if r, wb := c.alu(op, a, b, size); wb {
		c.setReg(regRAX, size, r)
	}
}

// =============================================================================
// Shifts and Rotates (Group 2)
// =============================================================================

// shiftExec performs a width-generic shift or rotate. As on real
// hardware the count is masked to 5 bits, or 6 for 64-bit operands.
func (c *CPU_X64) shiftExec(op byte, v uint64, count byte, size byte) uint64 {
	if size == 8 {
		count &= 63
	} else {
		count &= 31
	}
	if count == 0 {
		return v
	}
	mask := widthMask(size)
	bitsN := uint16(size) * 8
	sign := signBit(size)
	v &= mask
	result := v

	switch op {
	case 0: // ROL
		n := uint16(count) % bitsN
		if n > 0 {
			result = (v<<n | v>>(bitsN-n)) & mask
		}
		c.setFlag(x86FlagCF, result&1 != 0)
		if count == 1 {
			c.setFlag(x86FlagOF, (result&sign != 0) != (result&1 != 0))
		}
	case 1: // ROR
		n := uint16(count) % bitsN
		if n > 0 {
			result = (v>>n | v<<(bitsN-n)) & mask
		}
		c.setFlag(x86FlagCF, result&sign != 0)
		if count == 1 {
			c.setFlag(x86FlagOF, (result&sign != 0) != (result&(sign>>1) != 0))
		}
	case 2: // RCL
		for i := byte(0); i < count; i++ {
			carryOut := result&sign != 0
			result = (result << 1) & mask
			if c.CF() {
				result |= 1
			}
			c.setFlag(x86FlagCF, carryOut)
		}
	case 3: // RCR
		for i := byte(0); i < count; i++ {
			carryOut := result&1 != 0
			result >>= 1
			if c.CF() {
				result |= sign
			}
			c.setFlag(x86FlagCF, carryOut)
		}
	case 4, 6: // SHL/SAL
		if uint16(count) <= bitsN {
			c.setFlag(x86FlagCF, (v>>(bitsN-uint16(count)))&1 != 0)
			result = (v << count) & mask
		} else {
			c.setFlag(x86FlagCF, false)
			result = 0
		}
		if count == 1 {
			c.setFlag(x86FlagOF, (result&sign != 0) != c.CF())
		}
		c.setFlagsResult(result, size)
	case 5: // SHR
		if uint16(count) <= bitsN {
			c.setFlag(x86FlagCF, (v>>(count-1))&1 != 0)
			result = v >> count
		} else {
			c.setFlag(x86FlagCF, false)
			result = 0
		}
		if count == 1 {
			c.setFlag(x86FlagOF, v&sign != 0)
		}
		c.setFlagsResult(result, size)
	case 7: // SAR
		s := int64(signExtend(v, size))
		if uint16(count) >= bitsN {
			c.setFlag(x86FlagCF, s < 0)
			result = uint64(s>>63) & mask
		} else {
			c.setFlag(x86FlagCF, (s>>(count-1))&1 != 0)
			result = uint64(s>>count) & mask
		}
		if count == 1 {
			c.setFlag(x86FlagOF, false)
		}
		c.setFlagsResult(result, size)
	}
	return result
}

func (c *CPU_X64) opGrp2_Eb_Ib() {
	c.fetchModRM()
	c.immHint = 1
	op := (c.modrm >> 3) & 7
	v := c.readRM(1)
	count := c.fetch8()
	c.writeRM(1, c.shiftExec(op, v, count, 1))
}

func (c *CPU_X64) opGrp2_Ev_Ib() {
	c.fetchModRM()
	c.immHint = 1
	size := c.operandSize()
	op := (c.modrm >> 3) & 7
	v := c.readRM(size)
	count := c.fetch8()
	c.writeRM(size, c.shiftExec(op, v, count, size))
}

func (c *CPU_X64) opGrp2_Eb_1() {
	c.fetchModRM()
	op := (c.modrm >> 3) & 7
	c.writeRM(1, c.shiftExec(op, c.readRM(1), 1, 1))
}

func (c *CPU_X64) opGrp2_Ev_1() {
	c.fetchModRM()
	size := c.operandSize()
	op := (c.modrm >> 3) & 7
	c.writeRM(size, c.shiftExec(op, c.readRM(size), 1, size))
}

func (c *CPU_X64) opGrp2_Eb_CL() {
	c.fetchModRM()
	op := (c.modrm >> 3) & 7
	c.writeRM(1, c.shiftExec(op, c.readRM(1), byte(c.Regs[regRCX]), 1))
}

func (c *CPU_X64) opGrp2_Ev_CL() {
	c.fetchModRM()
	size := c.operandSize()
	op := (c.modrm >> 3) & 7
	c.writeRM(size, c.shiftExec(op, c.readRM(size), byte(c.Regs[regRCX]), size))
}

// =============================================================================
// Group 1 (immediate ALU)
// =============================================================================

func (c *CPU_X64) opGrp1_Eb_Ib() {
	c.fetchModRM()
	c.immHint = 1
	op := (c.modrm >> 3) & 7
	a := c.readRM(1)
	b := uint64(c.fetch8())
	if r, wb := c.alu(op, a, b, 1); wb {
		c.writeRM(1, r)
	}
}

func (c *CPU_X64) opGrp1_Ev_Iz() {
	c.fetchModRM()
	size := c.operandSize()
	if size == 2 {
		c.immHint = 2
	} else {
		c.immHint = 4
	}
	op := (c.modrm >> 3) & 7
	a := c.readRM(size)
	b := c.fetchImm(size)
	if r, wb := c.alu(op, a, b, size); wb {
		c.writeRM(size, r)
	}
}

func (c *CPU_X64) opGrp1_Ev_Ib() {
	c.fetchModRM()
	c.immHint = 1
	size := c.operandSize()
	op := (c.modrm >> 3) & 7
	a := c.readRM(size)
	b := signExtend(uint64(c.fetch8()), 1)
	if r, wb := c.alu(op, a, b, size); wb {
		c.writeRM(size, r)
	}
}

// =============================================================================
// Group 3 (TEST, NOT, NEG, MUL, IMUL, DIV, IDIV)
// =============================================================================

func (c *CPU_X64) opGrp3_Eb() {
	c.fetchModRM()
	op := (c.modrm >> 3) & 7
	if op <= 1 {
		c.immHint = 1
	}
	v := c.readRM(1)

	switch op {
	case 0, 1: // TEST Eb,Ib
		c.setFlagsLogic(v&uint64(c.fetch8()), 1)
	case 2: // NOT
		c.writeRM(1, ^v)
	case 3: // NEG
		r := c.subWithBorrow(0, v, 0, 1)
		c.setFlag(x86FlagCF, v != 0)
		c.writeRM(1, r)
	case 4: // MUL
		full := uint64(byte(c.Regs[regRAX])) * (v & 0xFF)
		c.setReg(regRAX, 2, full)
		overflow := full>>8 != 0
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
	case 5: // IMUL
		p := int64(int8(c.Regs[regRAX])) * int64(int8(v))
		c.setReg(regRAX, 2, uint64(p))
		overflow := p != int64(int8(p))
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
	case 6: // DIV
		d := v & 0xFF
		if d == 0 {
			c.fault("divide by zero at RIP=0x%016X", c.RIP)
			return
		}
		dividend := c.Regs[regRAX] & 0xFFFF
		q := dividend / d
		if q > 0xFF {
			c.fault("divide overflow at RIP=0x%016X", c.RIP)
			return
		}
		c.setReg(regRAX, 2, (dividend%d)<<8|q)
	case 7: // IDIV
		d := int64(int8(v))
		if d == 0 {
			c.fault("divide by zero at RIP=0x%016X", c.RIP)
			return
		}
		dividend := int64(int16(c.Regs[regRAX]))
		q := dividend / d
		if q > 127 || q < -128 {
			c.fault("divide overflow at RIP=0x%016X", c.RIP)
			return
		}
		rem := dividend % d
		c.setReg(regRAX, 2, uint64(rem)<<8&0xFF00|uint64(q)&0xFF)
	}
}

func (c *CPU_X64) opGrp3_Ev() {
	c.fetchModRM()
	size := c.operandSize()
	op := (c.modrm >> 3) & 7
	if op <= 1 {
		if size == 2 {
			c.immHint = 2
		} else {
			c.immHint = 4
		}
	}
	v := c.readRM(size)

	switch op {
	case 0, 1: // TEST Ev,Iz
		c.setFlagsLogic(v&c.fetchImm(size), size)
	case 2: // NOT
		c.writeRM(size, ^v&widthMask(size))
	case 3: // NEG
		r := c.subWithBorrow(0, v, 0, size)
		c.setFlag(x86FlagCF, v&widthMask(size) != 0)
		c.writeRM(size, r)
	case 4: // MUL
		c.mulUnsigned(v, size)
	case 5: // IMUL
		c.mulSigned(v, size)
	case 6: // DIV
		c.divUnsigned(v, size)
	case 7: // IDIV
		c.divSigned(v, size)
	}
}

func (c *CPU_X64) mulUnsigned(v uint64, size byte) {
	a := c.getReg(regRAX, size)
	v &= widthMask(size)
	var lo, hi uint64
	if size == 8 {
		hi, lo = bits.Mul64(a, v)
	} else {
		full := a * v
		lo = full & widthMask(size)
		hi = full >> (size * 8)
	}
	c.setReg(regRAX, size, lo)
	c.setReg(regRDX, size, hi)
	overflow := hi != 0
	c.setFlag(x86FlagCF, overflow)
	c.setFlag(x86FlagOF, overflow)
}

func (c *CPU_X64) mulSigned(v uint64, size byte) {
	a := int64(signExtend(c.getReg(regRAX, size), size))
	b := int64(signExtend(v, size))
	if size == 8 {
		hi, lo := bits.Mul64(uint64(a), uint64(b))
		// Adjust the high half for signed operands
		if a < 0 {
			hi -= uint64(b)
		}
		if b < 0 {
			hi -= uint64(a)
		}
		c.Regs[regRAX] = lo
		c.Regs[regRDX] = hi
		overflow := int64(hi) != int64(lo)>>63
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
		return
	}
	full := a * b
	c.setReg(regRAX, size, uint64(full))
	c.setReg(regRDX, size, uint64(full)>>(size*8))
	overflow := full != int64(signExtend(uint64(full), size))
	c.setFlag(x86FlagCF, overflow)
	c.setFlag(x86FlagOF, overflow)
}

func (c *CPU_X64) divUnsigned(v uint64, size byte) {
	v &= widthMask(size)
	if v == 0 {
		c.fault("divide by zero at RIP=0x%016X", c.RIP)
		return
	}
	lo := c.getReg(regRAX, size)
	hi := c.getReg(regRDX, size)
	if size == 8 {
		if hi >= v {
			c.fault("divide overflow at RIP=0x%016X", c.RIP)
			return
		}
		q, r := bits.Div64(hi, lo, v)
		c.Regs[regRAX] = q
		c.Regs[regRDX] = r
		return
	}
	dividend := hi<<(size*8) | lo
	q := dividend / v
	if q > widthMask(size) {
		c.fault("divide overflow at RIP=0x%016X", c.RIP)
		return
	}
	c.setReg(regRAX, size, q)
	c.setReg(regRDX, size, dividend%v)
}

func (c *CPU_X64) divSigned(v uint64, size byte) {
	d := int64(signExtend(v, size))
	if d == 0 {
		c.fault("divide by zero at RIP=0x%016X", c.RIP)
		return
	}
	if size == 8 {
		// Compilers emit CQO before IDIV, so RDX is the sign extension
		// of RAX; anything else would overflow a 64-bit quotient anyway.
		if c.Regs[regRDX] != uint64(int64(c.Regs[regRAX])>>63) {
			c.fault("divide overflow at RIP=0x%016X", c.RIP)
			return
		}
		a := int64(c.Regs[regRAX])
		if a == int64(-1)<<63 && d == -1 {
			c.fault("divide overflow at RIP=0x%016X", c.RIP)
			return
		}
		c.Regs[regRAX] = uint64(a / d)
		c.Regs[regRDX] = uint64(a % d)
		return
	}
	lo := c.getReg(regRAX, size)
	hi := c.getReg(regRDX, size)
	dividend := int64(signExtend(hi<<(size*8)|lo, byte(size*2)))
	q := dividend / d
	limit := int64(signBit(size))
	if q >= limit || q < -limit {
		c.fault("divide overflow at RIP=0x%016X", c.RIP)
		return
	}
	c.setReg(regRAX, size, uint64(q))
	c.setReg(regRDX, size, uint64(dividend%d))
}

// =============================================================================
// Group 4/5 (INC, DEC, CALL, JMP, PUSH)
// =============================================================================

func (c *CPU_X64) opGrp4_Eb() {
	c.fetchModRM()
	op := (c.modrm >> 3) & 7
	v := c.readRM(1)
	cf := c.CF()

	switch op {
	case 0: // INC
		r := c.addWithCarry(v, 1, 0, 1)
		c.setFlag(x86FlagCF, cf)
		c.writeRM(1, r)
	case 1: // DEC
		r := c.subWithBorrow(v, 1, 0, 1)
		c.setFlag(x86FlagCF, cf)
		c.writeRM(1, r)
	default:
		c.fault("undefined Grp4 op %d at RIP=0x%016X", op, c.RIP)
	}
}

func (c *CPU_X64) opGrp5_Ev() {
	c.fetchModRM()
	size := c.operandSize()
	op := (c.modrm >> 3) & 7

	switch op {
	case 0: // INC
		v := c.readRM(size)
		cf := c.CF()
		r := c.addWithCarry(v, 1, 0, size)
		c.setFlag(x86FlagCF, cf)
		c.writeRM(size, r)
	case 1: // DEC
		v := c.readRM(size)
		cf := c.CF()
		r := c.subWithBorrow(v, 1, 0, size)
		c.setFlag(x86FlagCF, cf)
		c.writeRM(size, r)
	case 2: // CALL near indirect (always 64-bit)
		target := c.readRM(8)
		c.push64(c.RIP)
		c.RIP = target
	case 4: // JMP near indirect
		c.RIP = c.readRM(8)
	case 6: // PUSH
		c.push64(c.readRM(8))
	default:
		c.fault("undefined Grp5 op %d at RIP=0x%016X", op, c.RIP)
	}
}

// =============================================================================
// MOV / LEA / XCHG
// =============================================================================

func (c *CPU_X64) opMOV_Eb_Gb() {
	c.fetchModRM()
	c.writeRM(1, uint64(c.getReg8(c.getModRMReg())))
}

func (c *CPU_X64) opMOV_Ev_Gv() {
	c.fetchModRM()
	size := c.operandSize()
	c.writeRM(size, c.getReg(c.getModRMReg(), size))
}

func (c *CPU_X64) opMOV_Gb_Eb() {
	c.fetchModRM()
	c.setReg8(c.getModRMReg(), byte(c.readRM(1)))
}

func (c *CPU_X64) opMOV_Gv_Ev() {
	c.fetchModRM()
	size := c.operandSize()
	c.setReg(c.getModRMReg(), size, c.readRM(size))
}

func (c *CPU_X64) opMOV_Eb_Ib() {
	c.fetchModRM()
	c.immHint = 1
	if c.getModRMMod() != 3 {
		c.calcEffectiveAddress()
	}
	c.writeRM(1, uint64(c.fetch8()))
}

func (c *CPU_X64) opMOV_Ev_Iz() {
	c.fetchModRM()
	size := c.operandSize()
	if size == 2 {
		c.immHint = 2
	} else {
		c.immHint = 4
	}
	if c.getModRMMod() != 3 {
		c.calcEffectiveAddress()
	}
	c.writeRM(size, c.fetchImm(size))
}

func (c *CPU_X64) opMOV_reg8_Ib(idx byte) {
	if c.rexB {
		idx |= 8
	}
	c.setReg8(idx, c.fetch8())
}

// opMOV_reg_Iv is MOV r,imm: imm64 under REX.W (the only way to load a
// full 64-bit constant), imm32 zero-extending otherwise
func (c *CPU_X64) opMOV_reg_Iv(idx byte) {
	if c.rexB {
		idx |= 8
	}
	if c.rexW {
		c.Regs[idx] = c.fetch64()
		return
	}
	size := c.operandSize()
	switch size {
	case 2:
		c.setReg(idx, 2, uint64(c.fetch16()))
	default:
		c.setReg(idx, 4, uint64(c.fetch32()))
	}
}

func (c *CPU_X64) opLEA() {
	c.fetchModRM()
	size := c.operandSize()
	c.setReg(c.getModRMReg(), size, c.calcEffectiveAddress())
}

// opMOVSXD sign-extends a 32-bit source into a 64-bit register
func (c *CPU_X64) opMOVSXD() {
	c.fetchModRM()
	v := c.readRM(4)
	if c.rexW {
		c.setReg(c.getModRMReg(), 8, signExtend(v, 4))
	} else {
		c.setReg(c.getModRMReg(), 4, v)
	}
}

func (c *CPU_X64) opXCHG_Eb_Gb() {
	c.fetchModRM()
	reg := c.getModRMReg()
	a := c.readRM(1)
	b := uint64(c.getReg8(reg))
	c.writeRM(1, b)
	c.setReg8(reg, byte(a))
}

func (c *CPU_X64) opXCHG_Ev_Gv() {
	c.fetchModRM()
	size := c.operandSize()
	reg := c.getModRMReg()
	a := c.readRM(size)
	b := c.getReg(reg, size)
	c.writeRM(size, b)
	c.setReg(reg, size, a)
}

func (c *CPU_X64) opXCHG_rAX_reg(idx byte) {
	if c.rexB {
		idx |= 8
	}
	if idx == regRAX {
		return // NOP
	}
	size := c.operandSize()
	a := c.getReg(regRAX, size)
	c.setReg(regRAX, size, c.getReg(idx, size))
	c.setReg(idx, size, a)
}

// =============================================================================
// TEST
// =============================================================================

func (c *CPU_X64) opTEST_Eb_Gb() {
	c.fetchModRM()
	c.setFlagsLogic(c.readRM(1)&uint64(c.getReg8(c.getModRMReg())), 1)
}

func (c *CPU_X64) opTEST_Ev_Gv() {
	c.fetchModRM()
	size := c.operandSize()
	c.setFlagsLogic(c.readRM(size)&c.getReg(c.getModRMReg(), size), size)
}

func (c *CPU_X64) opTEST_AL_Ib() {
	c.setFlagsLogic(uint64(byte(c.Regs[regRAX]))&uint64(c.fetch8()), 1)
}

func (c *CPU_X64) opTEST_rAX_Iz() {
	size := c.operandSize()
	c.setFlagsLogic(c.getReg(regRAX, size)&c.fetchImm(size), size)
}

// =============================================================================
// IMUL (two and three operand forms)
// =============================================================================

// imul2 multiplies signed values at the operand width, setting CF/OF on
// overflow of the destination
func (c *CPU_X64) imul2(a, b uint64, size byte) uint64 {
	sa := int64(signExtend(a, size))
	sb := int64(signExtend(b, size))
	p := sa * sb
	var overflow bool
	if size == 8 {
		overflow = sa != 0 && p/sa != sb
	} else {
		overflow = p != int64(signExtend(uint64(p), size))
	}
	c.setFlag(x86FlagCF, overflow)
	c.setFlag(x86FlagOF, overflow)
	return uint64(p) & widthMask(size)
}

func (c *CPU_X64) opIMUL_Gv_Ev() {
	c.fetchModRM()
	size := c.operandSize()
	reg := c.getModRMReg()
	c.setReg(reg, size, c.imul2(c.getReg(reg, size), c.readRM(size), size))
}

func (c *CPU_X64) opIMUL_Gv_Ev_Iz() {
	c.fetchModRM()
	size := c.operandSize()
	if size == 2 {
		c.immHint = 2
	} else {
		c.immHint = 4
	}
	a := c.readRM(size)
	b := c.fetchImm(size)
	c.setReg(c.getModRMReg(), size, c.imul2(a, b, size))
}

func (c *CPU_X64) opIMUL_Gv_Ev_Ib() {
	c.fetchModRM()
	c.immHint = 1
	size := c.operandSize()
	a := c.readRM(size)
	b := signExtend(uint64(c.fetch8()), 1)
	c.setReg(c.getModRMReg(), size, c.imul2(a, b, size))
}

// =============================================================================
// Stack Instructions
// =============================================================================

func (c *CPU_X64) opPUSH_reg(idx byte) {
	if c.rexB {
		idx |= 8
	}
	c.push64(c.Regs[idx])
}

func (c *CPU_X64) opPOP_reg(idx byte) {
	if c.rexB {
		idx |= 8
	}
	c.Regs[idx] = c.pop64()
}

func (c *CPU_X64) opPUSH_Iz() {
	c.push64(signExtend(uint64(c.fetch32()), 4))
}

func (c *CPU_X64) opPUSH_Ib() {
	c.push64(signExtend(uint64(c.fetch8()), 1))
}

func (c *CPU_X64) opPOP_Ev() {
	c.fetchModRM()
	c.writeRM(8, c.pop64())
}

func (c *CPU_X64) opPUSHF() {
	c.push64(c.RFlags)
}

func (c *CPU_X64) opPOPF() {
	c.RFlags = c.pop64() | x86FlagFixed
}

func (c *CPU_X64) opLEAVE() {
	c.Regs[regRSP] = c.Regs[regRBP]
	c.Regs[regRBP] = c.pop64()
}

// =============================================================================
// Sign Extension
// =============================================================================

// opCDQE is CBW/CWDE/CDQE depending on operand size
func (c *CPU_X64) opCDQE() {
	size := c.operandSize()
	c.setReg(regRAX, size, signExtend(c.getReg(regRAX, size/2), size/2))
}

// opCQO is CWD/CDQ/CQO: fill rDX with the sign of rAX
func (c *CPU_X64) opCQO() {
	size := c.operandSize()
	if c.getReg(regRAX, size)&signBit(size) != 0 {
		c.setReg(regRDX, size, widthMask(size))
	} else {
		c.setReg(regRDX, size, 0)
	}
}

// =============================================================================
// Control Flow
// =============================================================================

func (c *CPU_X64) opJcc_rel8(code byte) {
	disp := signExtend(uint64(c.fetch8()), 1)
	if c.cond(code) {
		c.RIP += disp
	}
}

func (c *CPU_X64) opJcc_rel32(code byte) {
	disp := signExtend(uint64(c.fetch32()), 4)
	if c.cond(code) {
		c.RIP += disp
	}
}

func (c *CPU_X64) opSETcc(code byte) {
	c.fetchModRM()
	if c.cond(code) {
		c.writeRM(1, 1)
	} else {
		c.writeRM(1, 0)
	}
}

func (c *CPU_X64) opCALL_rel32() {
	disp := signExtend(uint64(c.fetch32()), 4)
	c.push64(c.RIP)
	c.RIP += disp
}

func (c *CPU_X64) opRET() {
	c.RIP = c.pop64()
}

func (c *CPU_X64) opRET_Iw() {
	n := c.fetch16()
	c.RIP = c.pop64()
	c.Regs[regRSP] += uint64(n)
}

func (c *CPU_X64) opJMP_rel32() {
	disp := signExtend(uint64(c.fetch32()), 4)
	c.RIP += disp
}

func (c *CPU_X64) opJMP_rel8() {
	disp := signExtend(uint64(c.fetch8()), 1)
	c.RIP += disp
}

// =============================================================================
// String Instructions
// =============================================================================

func (c *CPU_X64) stringDelta(size byte) uint64 {
	if c.DF() {
		return -uint64(size)
	}
	return uint64(size)
}

// repeat64 runs body once, or RCX times under REP. REP with RCX=0
// executes zero iterations.
func (c *CPU_X64) repeat64(body func()) {
	if c.prefixRep == 0 {
		body()
		return
	}
	for c.Regs[regRCX] != 0 && !c.Terminated {
		body()
		c.Regs[regRCX]--
	}
}

func (c *CPU_X64) repeat64Cond(body func()) {
	if c.prefixRep == 0 {
		body()
		return
	}
	for c.Regs[regRCX] != 0 && !c.Terminated {
		body()
		c.Regs[regRCX]--
		if c.prefixRep == 1 && !c.ZF() {
			break
		}
		if c.prefixRep == 2 && c.ZF() {
			break
		}
	}
}

func (c *CPU_X64) stringMove(size byte) {
	c.repeat64(func() {
		c.writeMem(c.Regs[regRDI], size, c.readMem(c.Regs[regRSI], size))
		d := c.stringDelta(size)
		c.Regs[regRSI] += d
		c.Regs[regRDI] += d
	})
}

func (c *CPU_X64) stringStore(size byte) {
	c.repeat64(func() {
		c.writeMem(c.Regs[regRDI], size, c.getReg(regRAX, size))
		c.Regs[regRDI] += c.stringDelta(size)
	})
}

func (c *CPU_X64) stringLoad(size byte) {
	c.repeat64(func() {
		c.setReg(regRAX, size, c.readMem(c.Regs[regRSI], size))
		c.Regs[regRSI] += c.stringDelta(size)
	})
}

func (c *CPU_X64) stringScan(size byte) {
	c.repeat64Cond(func() {
		a := c.getReg(regRAX, size)
		b := c.readMem(c.Regs[regRDI], size)
		c.subWithBorrow(a, b, 0, size)
		c.Regs[regRDI] += c.stringDelta(size)
	})
}

func (c *CPU_X64) stringCompare(size byte) {
	c.repeat64Cond(func() {
		a := c.readMem(c.Regs[regRSI], size)
		b := c.readMem(c.Regs[regRDI], size)
		c.subWithBorrow(a, b, 0, size)
		d := c.stringDelta(size)
		c.Regs[regRSI] += d
		c.Regs[regRDI] += d
	})
}

func (c *CPU_X64) opMOVSB() { c.stringMove(1) }
func (c *CPU_X64) opMOVSV() { c.stringMove(c.operandSize()) }
func (c *CPU_X64) opCMPSB() { c.stringCompare(1) }
func (c *CPU_X64) opCMPSV() { c.stringCompare(c.operandSize()) }
func (c *CPU_X64) opSTOSB() { c.stringStore(1) }
func (c *CPU_X64) opSTOSV() { c.stringStore(c.operandSize()) }
func (c *CPU_X64) opLODSB() { c.stringLoad(1) }
func (c *CPU_X64) opLODSV() { c.stringLoad(c.operandSize()) }
func (c *CPU_X64) opSCASB() { c.stringScan(1) }
func (c *CPU_X64) opSCASV() { c.stringScan(c.operandSize()) }

// =============================================================================
// Processor Control
// =============================================================================

func (c *CPU_X64) opNOP() {}

func (c *CPU_X64) opHLT() {
	c.Halted = true
}

func (c *CPU_X64) opINT3() {
	c.fault("breakpoint trap at RIP=0x%016X", c.RIP-1)
}

// opINT_Ib: INT 0x80 is the legacy syscall gate; there is no vector
// table in flat mode, so every other vector is fatal
func (c *CPU_X64) opINT_Ib() {
	vector := c.fetch8()
	if vector == 0x80 && c.sys != nil {
		c.sys.HandleSyscall(c)
		return
	}
	c.fault("INT 0x%02X with no handler at RIP=0x%016X", vector, c.RIP-2)
}

func (c *CPU_X64) opCMC() { c.setFlag(x86FlagCF, !c.CF()) }
func (c *CPU_X64) opCLC() { c.setFlag(x86FlagCF, false) }
func (c *CPU_X64) opSTC() { c.setFlag(x86FlagCF, true) }
func (c *CPU_X64) opCLI() { c.setFlag(x86FlagIF, false) }
func (c *CPU_X64) opSTI() { c.setFlag(x86FlagIF, true) }
func (c *CPU_X64) opCLD() { c.setFlag(x86FlagDF, false) }
func (c *CPU_X64) opSTD() { c.setFlag(x86FlagDF, true) }

// =============================================================================
// Extended (0x0F) opcodes
// =============================================================================

// opSYSCALL hands control to the host. RCX and R11 get the return RIP
// and RFLAGS per the hardware convention.
func (c *CPU_X64) opSYSCALL() {
	c.Regs[regRCX] = c.RIP
	c.Regs[regR11] = c.RFlags
	if c.sys == nil {
		c.fault("SYSCALL with no handler at RIP=0x%016X", c.RIP-2)
		return
	}
	c.sys.HandleSyscall(c)
}

// opNOP_Ev is the multi-byte NOP (0x0F 0x1F): decode and discard
func (c *CPU_X64) opNOP_Ev() {
	c.fetchModRM()
	if c.getModRMMod() != 3 {
		c.calcEffectiveAddress()
	}
}

func (c *CPU_X64) opMOVZX_Gv_Eb() {
	c.fetchModRM()
	c.setReg(c.getModRMReg(), c.operandSize(), c.readRM(1))
}

func (c *CPU_X64) opMOVZX_Gv_Ew() {
	c.fetchModRM()
	c.setReg(c.getModRMReg(), c.operandSize(), c.readRM(2))
}

func (c *CPU_X64) opMOVSX_Gv_Eb() {
	c.fetchModRM()
	c.setReg(c.getModRMReg(), c.operandSize(), signExtend(c.readRM(1), 1))
}

func (c *CPU_X64) opMOVSX_Gv_Ew() {
	c.fetchModRM()
	c.setReg(c.getModRMReg(), c.operandSize(), signExtend(c.readRM(2), 2))
}

// =============================================================================
// Opcode Table Initialization
// =============================================================================

func (c *CPU_X64) initBaseOps64() {
	for i := range c.baseOps {
		c.baseOps[i] = nil
	}

	// 0x00-0x3D: the eight ALU families share one layout
	for op := 0; op < 8; op++ {
		sel := byte(op)
		base := op * 8
		c.baseOps[base+0] = func(cpu *CPU_X64) { cpu.opALU_Eb_Gb(sel) }
		c.baseOps[base+1] = func(cpu *CPU_X64) { cpu.opALU_Ev_Gv(sel) }
		c.baseOps[base+2] = func(cpu *CPU_X64) { cpu.opALU_Gb_Eb(sel) }
		c.baseOps[base+3] = func(cpu *CPU_X64) { cpu.opALU_Gv_Ev(sel) }
		c.baseOps[base+4] = func(cpu *CPU_X64) { cpu.opALU_AL_Ib(sel) }
		c.baseOps[base+5] = func(cpu *CPU_X64) { cpu.opALU_rAX_Iz(sel) }
	}

	// 0x50-0x57: PUSH r64
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x50+i] = func(cpu *CPU_X64) { cpu.opPUSH_reg(byte(idx)) }
	}

	// 0x58-0x5F: POP r64
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x58+i] = func(cpu *CPU_X64) { cpu.opPOP_reg(byte(idx)) }
	}

	// 0x63: MOVSXD
	c.baseOps[0x63] = (*CPU_X64).opMOVSXD

	// 0x68-0x6B: PUSH/IMUL with immediates
	c.baseOps[0x68] = (*CPU_X64).opPUSH_Iz
	c.baseOps[0x69] = (*CPU_X64).opIMUL_Gv_Ev_Iz
	c.baseOps[0x6A] = (*CPU_X64).opPUSH_Ib
	c.baseOps[0x6B] = (*CPU_X64).opIMUL_Gv_Ev_Ib

	// 0x70-0x7F: Jcc rel8
	for i := 0; i < 16; i++ {
		code := byte(i)
		c.baseOps[0x70+i] = func(cpu *CPU_X64) { cpu.opJcc_rel8(code) }
	}

	// 0x80-0x83: Grp1
	c.baseOps[0x80] = (*CPU_X64).opGrp1_Eb_Ib
	c.baseOps[0x81] = (*CPU_X64).opGrp1_Ev_Iz
	c.baseOps[0x83] = (*CPU_X64).opGrp1_Ev_Ib

	// 0x84-0x87: TEST/XCHG
	c.baseOps[0x84] = (*CPU_X64).opTEST_Eb_Gb
	c.baseOps[0x85] = (*CPU_X64).opTEST_Ev_Gv
	c.baseOps[0x86] = (*CPU_X64).opXCHG_Eb_Gb
	c.baseOps[0x87] = (*CPU_X64).opXCHG_Ev_Gv

	// 0x88-0x8B: MOV
	c.baseOps[0x88] = (*CPU_X64).opMOV_Eb_Gb
	c.baseOps[0x89] = (*CPU_X64).opMOV_Ev_Gv
	c.baseOps[0x8A] = (*CPU_X64).opMOV_Gb_Eb
	c.baseOps[0x8B] = (*CPU_X64).opMOV_Gv_Ev

	// 0x8D: LEA
	c.baseOps[0x8D] = (*CPU_X64).opLEA

	// 0x8F: POP Ev
	c.baseOps[0x8F] = (*CPU_X64).opPOP_Ev

	// 0x90-0x97: XCHG rAX,reg (0x90 without REX.B is NOP)
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0x90+i] = func(cpu *CPU_X64) { cpu.opXCHG_rAX_reg(byte(idx)) }
	}

	// 0x98-0x99: sign extension
	c.baseOps[0x98] = (*CPU_X64).opCDQE
	c.baseOps[0x99] = (*CPU_X64).opCQO

	// 0x9C-0x9D: PUSHF/POPF
	c.baseOps[0x9C] = (*CPU_X64).opPUSHF
	c.baseOps[0x9D] = (*CPU_X64).opPOPF

	// 0xA4-0xA7, 0xAA-0xAF: string instructions
	c.baseOps[0xA4] = (*CPU_X64).opMOVSB
	c.baseOps[0xA5] = (*CPU_X64).opMOVSV
	c.baseOps[0xA6] = (*CPU_X64).opCMPSB
	c.baseOps[0xA7] = (*CPU_X64).opCMPSV
	c.baseOps[0xAA] = (*CPU_X64).opSTOSB
	c.baseOps[0xAB] = (*CPU_X64).opSTOSV
	c.baseOps[0xAC] = (*CPU_X64).opLODSB
	c.baseOps[0xAD] = (*CPU_X64).opLODSV
	c.baseOps[0xAE] = (*CPU_X64).opSCASB
	c.baseOps[0xAF] = (*CPU_X64).opSCASV

	// 0xA8-0xA9: TEST accumulator, immediate
	c.baseOps[0xA8] = (*CPU_X64).opTEST_AL_Ib
	c.baseOps[0xA9] = (*CPU_X64).opTEST_rAX_Iz

	// 0xB0-0xB7: MOV r8,Ib
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0xB0+i] = func(cpu *CPU_X64) { cpu.opMOV_reg8_Ib(byte(idx)) }
	}

	// 0xB8-0xBF: MOV r,Iv
	for i := 0; i < 8; i++ {
		idx := i
		c.baseOps[0xB8+i] = func(cpu *CPU_X64) { cpu.opMOV_reg_Iv(byte(idx)) }
	}

	// 0xC0-0xC1: Grp2 immediate count
	c.baseOps[0xC0] = (*CPU_X64).opGrp2_Eb_Ib
	c.baseOps[0xC1] = (*CPU_X64).opGrp2_Ev_Ib

	// 0xC2-0xC3: RET
	c.baseOps[0xC2] = (*CPU_X64).opRET_Iw
	c.baseOps[0xC3] = (*CPU_X64).opRET

	// 0xC6-0xC7: MOV rm,imm
	c.baseOps[0xC6] = (*CPU_X64).opMOV_Eb_Ib
	c.baseOps[0xC7] = (*CPU_X64).opMOV_Ev_Iz

	// 0xC9: LEAVE
	c.baseOps[0xC9] = (*CPU_X64).opLEAVE

	// 0xCC-0xCD: INT3/INT
	c.baseOps[0xCC] = (*CPU_X64).opINT3
	c.baseOps[0xCD] = (*CPU_X64).opINT_Ib

	// 0xD0-0xD3: Grp2
	c.baseOps[0xD0] = (*CPU_X64).opGrp2_Eb_1
	c.baseOps[0xD1] = (*CPU_X64).opGrp2_Ev_1
	c.baseOps[0xD2] = (*CPU_X64).opGrp2_Eb_CL
	c.baseOps[0xD3] = (*CPU_X64).opGrp2_Ev_CL

	// 0xE8-0xEB: CALL/JMP
	c.baseOps[0xE8] = (*CPU_X64).opCALL_rel32
	c.baseOps[0xE9] = (*CPU_X64).opJMP_rel32
	c.baseOps[0xEB] = (*CPU_X64).opJMP_rel8

	// 0xF4-0xF5: HLT/CMC
	c.baseOps[0xF4] = (*CPU_X64).opHLT
	c.baseOps[0xF5] = (*CPU_X64).opCMC

	// 0xF6-0xF7: Grp3
	c.baseOps[0xF6] = (*CPU_X64).opGrp3_Eb
	c.baseOps[0xF7] = (*CPU_X64).opGrp3_Ev

	// 0xF8-0xFD: flag instructions
	c.baseOps[0xF8] = (*CPU_X64).opCLC
	c.baseOps[0xF9] = (*CPU_X64).opSTC
	c.baseOps[0xFA] = (*CPU_X64).opCLI
	c.baseOps[0xFB] = (*CPU_X64).opSTI
	c.baseOps[0xFC] = (*CPU_X64).opCLD
	c.baseOps[0xFD] = (*CPU_X64).opSTD

	// 0xFE-0xFF: Grp4/Grp5
	c.baseOps[0xFE] = (*CPU_X64).opGrp4_Eb
	c.baseOps[0xFF] = (*CPU_X64).opGrp5_Ev
}

func (c *CPU_X64) initExtendedOps64() {
	for i := range c.extOps {
		c.extOps[i] = nil
	}

	// 0x05: SYSCALL
	c.extOps[0x05] = (*CPU_X64).opSYSCALL

	// 0x1F: multi-byte NOP
	c.extOps[0x1F] = (*CPU_X64).opNOP_Ev

	// 0x80-0x8F: Jcc rel32
	for i := 0; i < 16; i++ {
		code := byte(i)
		c.extOps[0x80+i] = func(cpu *CPU_X64) { cpu.opJcc_rel32(code) }
	}

	// 0x90-0x9F: SETcc
	for i := 0; i < 16; i++ {
		code := byte(i)
		c.extOps[0x90+i] = func(cpu *CPU_X64) { cpu.opSETcc(code) }
	}

	// 0xAF: IMUL Gv,Ev
	c.extOps[0xAF] = (*CPU_X64).opIMUL_Gv_Ev

	// 0xB6-0xB7: MOVZX
	c.extOps[0xB6] = (*CPU_X64).opMOVZX_Gv_Eb
	c.extOps[0xB7] = (*CPU_X64).opMOVZX_Gv_Ew

	// 0xBE-0xBF: MOVSX
	c.extOps[0xBE] = (*CPU_X64).opMOVSX_Gv_Eb
	c.extOps[0xBF] = (*CPU_X64).opMOVSX_Gv_Ew
}
