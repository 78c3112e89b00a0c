// cpu_8086_grp.go - 8086 CPU Group Opcode Implementations (Grp1-5, shifts, multiply/divide)
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// =============================================================================
// Group 1 (ADD, OR, ADC, SBB, AND, SUB, XOR, CMP)
// =============================================================================

// grp1Exec8 applies the Group 1 operation selected by the reg field.
// The r/m operand has already been read so the immediate sits next in
// the instruction stream.
func (c *CPU_8086) grp1Exec8(op, a, b byte) {
	switch op {
	case 0: // ADD
		result := uint16(a) + uint16(b)
		c.setFlagsArith8(result, a, b, false)
		c.writeRM8(byte(result))
	case 1: // OR
		result := a | b
		c.setFlagsLogic8(result)
		c.writeRM8(result)
	case 2: // ADC
		var carry byte
		if c.CF() {
			carry = 1
		}
		result := uint16(a) + uint16(b) + uint16(carry)
		c.setFlagsArith8(result, a, b, false)
		c.writeRM8(byte(result))
	case 3: // SBB
		var borrow byte
		if c.CF() {
			borrow = 1
		}
		result := uint16(a) - uint16(b) - uint16(borrow)
		c.setFlagsArith8(result, a, b, true)
		c.writeRM8(byte(result))
	case 4: // AND
		result := a & b
		c.setFlagsLogic8(result)
		c.writeRM8(result)
	case 5: // SUB
		result := uint16(a) - uint16(b)
		c.setFlagsArith8(result, a, b, true)
		c.writeRM8(byte(result))
	case 6: // XOR
		result := a ^ b
		c.setFlagsLogic8(result)
		c.writeRM8(result)
	case 7: // CMP
		result := uint16(a) - uint16(b)
		c.setFlagsArith8(result, a, b, true)
	}
}

func (c *CPU_8086) grp1Exec16(op byte, a, b uint16) {
	switch op {
	case 0: // ADD
		result := uint32(a) + uint32(b)
		c.setFlagsArith16(result, a, b, false)
		c.writeRM16(uint16(result))
	case 1: // OR
		result := a | b
		c.setFlagsLogic16(result)
		c.writeRM16(result)
	case 2: // ADC
		var carry uint16
		if c.CF() {
			carry = 1
		}
		result := uint32(a) + uint32(b) + uint32(carry)
		c.setFlagsArith16(result, a, b, false)
		c.writeRM16(uint16(result))
	case 3: // SBB
		var borrow uint16
		if c.CF() {
			borrow = 1
		}
		result := uint32(a) - uint32(b) - uint32(borrow)
		c.setFlagsArith16(result, a, b, true)
		c.writeRM16(uint16(result))
	case 4: // AND
		result := a & b
		c.setFlagsLogic16(result)
		c.writeRM16(result)
	case 5: // SUB
		result := uint32(a) - uint32(b)
		c.setFlagsArith16(result, a, b, true)
		c.writeRM16(uint16(result))
	case 6: // XOR
		result := a ^ b
		c.setFlagsLogic16(result)
		c.writeRM16(result)
	case 7: // CMP
		result := uint32(a) - uint32(b)
		c.setFlagsArith16(result, a, b, true)
	}
}

func (c *CPU_8086) opGrp1_Eb_Ib() {
	c.fetchModRM()
	op := c.getModRMReg()
	a := c.readRM8()
	b := c.fetch8()
	c.grp1Exec8(op, a, b)
}

func (c *CPU_8086) opGrp1_Ev_Iv() {
	c.fetchModRM()
	op := c.getModRMReg()
	a := c.readRM16()
	b := c.fetch16()
	c.grp1Exec16(op, a, b)
}

func (c *CPU_8086) opGrp1_Ev_Ib() {
	c.fetchModRM()
	op := c.getModRMReg()
	a := c.readRM16()
	b := uint16(int16(int8(c.fetch8())))
	c.grp1Exec16(op, a, b)
}

// =============================================================================
// Group 2 (ROL, ROR, RCL, RCR, SHL, SHR, SAL, SAR)
// =============================================================================

// grp2Exec8 performs a shift or rotate. OF is only architecturally
// defined for single-bit counts; we leave it untouched for larger ones.
func (c *CPU_8086) grp2Exec8(op, v, count byte) byte {
	count &= 0x1F
	if count == 0 {
		return v
	}
	result := v
	switch op {
	case 0: // ROL
		n := count & 7
		result = v<<n | v>>(8-n)
		c.setFlag(x86FlagCF, result&1 != 0)
		if count == 1 {
			c.setFlag(x86FlagOF, (result>>7)&1 != (result&1))
		}
	case 1: // ROR
		n := count & 7
		result = v>>n | v<<(8-n)
		c.setFlag(x86FlagCF, result&0x80 != 0)
		if count == 1 {
			c.setFlag(x86FlagOF, (result>>7)&1 != (result>>6)&1)
		}
	case 2: // RCL
		for i := byte(0); i < count; i++ {
			carryOut := result&0x80 != 0
			result <<= 1
			if c.CF() {
				result |= 1
			}
			c.setFlag(x86FlagCF, carryOut)
		}
		if count == 1 {
			cfBit := byte(0)
			if c.CF() {
				cfBit = 1
			}
			c.setFlag(x86FlagOF, (result>>7)&1 != cfBit)
		}
	case 3: // RCR
		for i := byte(0); i < count; i++ {
			carryOut := result&1 != 0
			result >>= 1
			if c.CF() {
				result |= 0x80
			}
			c.setFlag(x86FlagCF, carryOut)
		}
		if count == 1 {
			c.setFlag(x86FlagOF, (result>>7)&1 != (result>>6)&1)
		}
	case 4, 6: // SHL/SAL
		if count <= 8 {
			c.setFlag(x86FlagCF, (v>>(8-count))&1 != 0)
			result = v << count
		} else {
			c.setFlag(x86FlagCF, false)
			result = 0
		}
		if count == 1 {
			c.setFlag(x86FlagOF, (result&0x80 != 0) != c.CF())
		}
		c.setFlagsShift8(result)
	case 5: // SHR
		if count <= 8 {
			c.setFlag(x86FlagCF, (v>>(count-1))&1 != 0)
			result = v >> count
		} else {
			c.setFlag(x86FlagCF, false)
			result = 0
		}
		if count == 1 {
			c.setFlag(x86FlagOF, v&0x80 != 0)
		}
		c.setFlagsShift8(result)
	case 7: // SAR
		s := int8(v)
		if count >= 8 {
			c.setFlag(x86FlagCF, s < 0)
			result = byte(s >> 7)
		} else {
			c.setFlag(x86FlagCF, (s>>(count-1))&1 != 0)
			result = byte(s >> count)
		}
		if count == 1 {
			c.setFlag(x86FlagOF, false)
		}
		c.setFlagsShift8(result)
	}
	return result
}

func (c *CPU_8086) grp2Exec16(op byte, v uint16, count byte) uint16 {
	count &= 0x1F
	if count == 0 {
		return v
	}
	result := v
	switch op {
	case 0: // ROL
		n := count & 15
		result = v<<n | v>>(16-n)
		c.setFlag(x86FlagCF, result&1 != 0)
		if count == 1 {
			c.setFlag(x86FlagOF, (result>>15)&1 != result&1)
		}
	case 1: // ROR
		n := count & 15
		result = v>>n | v<<(16-n)
		c.setFlag(x86FlagCF, result&0x8000 != 0)
		if count == 1 {
			c.setFlag(x86FlagOF, (result>>15)&1 != (result>>14)&1)
		}
	case 2: // RCL
		for i := byte(0); i < count; i++ {
			carryOut := result&0x8000 != 0
			result <<= 1
			if c.CF() {
				result |= 1
			}
			c.setFlag(x86FlagCF, carryOut)
		}
		if count == 1 {
			cfBit := uint16(0)
			if c.CF() {
				cfBit = 1
			}
			c.setFlag(x86FlagOF, (result>>15)&1 != cfBit)
		}
	case 3: // RCR
		for i := byte(0); i < count; i++ {
			carryOut := result&1 != 0
			result >>= 1
			if c.CF() {
				result |= 0x8000
			}
			c.setFlag(x86FlagCF, carryOut)
		}
		if count == 1 {
			c.setFlag(x86FlagOF, (result>>15)&1 != (result>>14)&1)
		}
	case 4, 6: // SHL/SAL
		if count <= 16 {
			c.setFlag(x86FlagCF, (v>>(16-count))&1 != 0)
			result = v << count
		} else {
			c.setFlag(x86FlagCF, false)
			result = 0
		}
		if count == 1 {
			c.setFlag(x86FlagOF, (result&0x8000 != 0) != c.CF())
		}
		c.setFlagsShift16(result)
	case 5: // SHR
		if count <= 16 {
			c.setFlag(x86FlagCF, (v>>(count-1))&1 != 0)
			result = v >> count
		} else {
			c.setFlag(x86FlagCF, false)
			result = 0
		}
		if count == 1 {
			c.setFlag(x86FlagOF, v&0x8000 != 0)
		}
		c.setFlagsShift16(result)
	case 7: // SAR
		s := int16(v)
		if count >= 16 {
			c.setFlag(x86FlagCF, s < 0)
			result = uint16(s >> 15)
		} else {
			c.setFlag(x86FlagCF, (s>>(count-1))&1 != 0)
			result = uint16(s >> count)
		}
		if count == 1 {
			c.setFlag(x86FlagOF, false)
		}
		c.setFlagsShift16(result)
	}
	return result
}

// setFlagsShift8 sets the result flags for shifts (CF and OF handled
// by the caller)
func (c *CPU_8086) setFlagsShift8(result byte) {
	c.setFlag(x86FlagZF, result == 0)
	c.setFlag(x86FlagSF, result&0x80 != 0)
	c.setFlag(x86FlagPF, parity(result))
}

func (c *CPU_8086) setFlagsShift16(result uint16) {
	c.setFlag(x86FlagZF, result == 0)
	c.setFlag(x86FlagSF, result&0x8000 != 0)
	c.setFlag(x86FlagPF, parity(byte(result)))
}

func (c *CPU_8086) opGrp2_Eb_Ib() {
	c.fetchModRM()
	op := c.getModRMReg()
	v := c.readRM8()
	count := c.fetch8()
	c.writeRM8(c.grp2Exec8(op, v, count))
}

func (c *CPU_8086) opGrp2_Ev_Ib() {
	c.fetchModRM()
	op := c.getModRMReg()
	v := c.readRM16()
	count := c.fetch8()
	c.writeRM16(c.grp2Exec16(op, v, count))
}

func (c *CPU_8086) opGrp2_Eb_1() {
	c.fetchModRM()
	c.writeRM8(c.grp2Exec8(c.getModRMReg(), c.readRM8(), 1))
}

func (c *CPU_8086) opGrp2_Ev_1() {
	c.fetchModRM()
	c.writeRM16(c.grp2Exec16(c.getModRMReg(), c.readRM16(), 1))
}

func (c *CPU_8086) opGrp2_Eb_CL() {
	c.fetchModRM()
	c.writeRM8(c.grp2Exec8(c.getModRMReg(), c.readRM8(), c.CL()))
}

func (c *CPU_8086) opGrp2_Ev_CL() {
	c.fetchModRM()
	c.writeRM16(c.grp2Exec16(c.getModRMReg(), c.readRM16(), c.CL()))
}

// =============================================================================
// Group 3 (TEST, NOT, NEG, MUL, IMUL, DIV, IDIV)
// =============================================================================

func (c *CPU_8086) opGrp3_Eb() {
	c.fetchModRM()
	op := c.getModRMReg()
	v := c.readRM8()

	switch op {
	case 0, 1: // TEST Eb,Ib
		c.setFlagsLogic8(v & c.fetch8())
	case 2: // NOT
		c.writeRM8(^v)
	case 3: // NEG
		result := uint16(0) - uint16(v)
		c.setFlagsArith8(result, 0, v, true)
		c.setFlag(x86FlagCF, v != 0)
		c.writeRM8(byte(result))
	case 4: // MUL
		product := uint16(c.AL()) * uint16(v)
		c.AX = product
		overflow := product>>8 != 0
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
	case 5: // IMUL
		product := int16(int8(c.AL())) * int16(int8(v))
		c.AX = uint16(product)
		overflow := product != int16(int8(product))
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
	case 6: // DIV
		if v == 0 {
			c.dispatchInt(0)
			return
		}
		quotient := c.AX / uint16(v)
		if quotient > 0xFF {
			c.dispatchInt(0)
			return
		}
		remainder := c.AX % uint16(v)
		c.SetAL(byte(quotient))
		c.SetAH(byte(remainder))
	case 7: // IDIV
		if v == 0 {
			c.dispatchInt(0)
			return
		}
		dividend := int16(c.AX)
		quotient := dividend / int16(int8(v))
		if quotient > 127 || quotient < -128 {
			c.dispatchInt(0)
			return
		}
		remainder := dividend % int16(int8(v))
		c.SetAL(byte(quotient))
		c.SetAH(byte(remainder))
	}
}

func (c *CPU_8086) opGrp3_Ev() {
	c.fetchModRM()
	op := c.getModRMReg()
	v := c.readRM16()

	switch op {
	case 0, 1: // TEST Ev,Iv
		c.setFlagsLogic16(v & c.fetch16())
	case 2: // NOT
		c.writeRM16(^v)
	case 3: // NEG
		result := uint32(0) - uint32(v)
		c.setFlagsArith16(result, 0, v, true)
		c.setFlag(x86FlagCF, v != 0)
		c.writeRM16(uint16(result))
	case 4: // MUL
		product := uint32(c.AX) * uint32(v)
		c.AX = uint16(product)
		c.DX = uint16(product >> 16)
		overflow := c.DX != 0
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
	case 5: // IMUL
		product := int32(int16(c.AX)) * int32(int16(v))
		c.AX = uint16(product)
		c.DX = uint16(uint32(product) >> 16)
		overflow := product != int32(int16(product))
		c.setFlag(x86FlagCF, overflow)
		c.setFlag(x86FlagOF, overflow)
	case 6: // DIV
		if v == 0 {
			c.dispatchInt(0)
			return
		}
		dividend := uint32(c.DX)<<16 | uint32(c.AX)
		quotient := dividend / uint32(v)
		if quotient > 0xFFFF {
			c.dispatchInt(0)
			return
		}
		c.AX = uint16(quotient)
		c.DX = uint16(dividend % uint32(v))
	case 7: // IDIV
		if v == 0 {
			c.dispatchInt(0)
			return
		}
		dividend := int32(uint32(c.DX)<<16 | uint32(c.AX))
		quotient := dividend / int32(int16(v))
		if quotient > 32767 || quotient < -32768 {
			c.dispatchInt(0)
			return
		}
		c.AX = uint16(quotient)
		c.DX = uint16(dividend % int32(int16(v)))
	}
}

// =============================================================================
// Group 4 (INC/DEC Eb)
// =============================================================================

func (c *CPU_8086) opGrp4_Eb() {
	c.fetchModRM()
	op := c.getModRMReg()
	v := c.readRM8()
	cf := c.CF()

	switch op {
	case 0: // INC
		result := uint16(v) + 1
		c.setFlagsArith8(result, v, 1, false)
		c.setFlag(x86FlagCF, cf)
		c.writeRM8(byte(result))
	case 1: // DEC
		result := uint16(v) - 1
		c.setFlagsArith8(result, v, 1, true)
		c.setFlag(x86FlagCF, cf)
		c.writeRM8(byte(result))
	}
}

// =============================================================================
// Group 5 (INC, DEC, CALL, CALL far, JMP, JMP far, PUSH)
// =============================================================================

func (c *CPU_8086) opGrp5_Ev() {
	c.fetchModRM()
	op := c.getModRMReg()

	switch op {
	case 0: // INC
		v := c.readRM16()
		cf := c.CF()
		result := uint32(v) + 1
		c.setFlagsArith16(result, v, 1, false)
		c.setFlag(x86FlagCF, cf)
		c.writeRM16(uint16(result))
	case 1: // DEC
		v := c.readRM16()
		cf := c.CF()
		result := uint32(v) - 1
		c.setFlagsArith16(result, v, 1, true)
		c.setFlag(x86FlagCF, cf)
		c.writeRM16(uint16(result))
	case 2: // CALL near indirect
		target := c.readRM16()
		c.push16(c.IP)
		c.IP = target
	case 3: // CALL far indirect
		seg, off := c.calcEffectiveAddress()
		newIP := c.mem.Read16(seg, off)
		newCS := c.mem.Read16(seg, off+2)
		c.push16(c.CS)
		c.push16(c.IP)
		c.CS = newCS
		c.IP = newIP
	case 4: // JMP near indirect
		c.IP = c.readRM16()
	case 5: // JMP far indirect
		seg, off := c.calcEffectiveAddress()
		c.IP = c.mem.Read16(seg, off)
		c.CS = c.mem.Read16(seg, off+2)
	case 6: // PUSH
		c.push16(c.readRM16())
	}
}

// initGroupOps registers the group opcode entry points
func (c *CPU_8086) initGroupOps() {
	// 0x80-0x83: Grp1
	c.baseOps[0x80] = (*CPU_8086).opGrp1_Eb_Ib
	c.baseOps[0x81] = (*CPU_8086).opGrp1_Ev_Iv
	c.baseOps[0x82] = (*CPU_8086).opGrp1_Eb_Ib
	c.baseOps[0x83] = (*CPU_8086).opGrp1_Ev_Ib

	// 0xC0-0xC1: Grp2 with immediate count (186)
	c.baseOps[0xC0] = (*CPU_8086).opGrp2_Eb_Ib
	c.baseOps[0xC1] = (*CPU_8086).opGrp2_Ev_Ib

	// 0xD0-0xD3: Grp2
	c.baseOps[0xD0] = (*CPU_8086).opGrp2_Eb_1
	c.baseOps[0xD1] = (*CPU_8086).opGrp2_Ev_1
	c.baseOps[0xD2] = (*CPU_8086).opGrp2_Eb_CL
	c.baseOps[0xD3] = (*CPU_8086).opGrp2_Ev_CL

	// 0xF6-0xF7: Grp3
	c.baseOps[0xF6] = (*CPU_8086).opGrp3_Eb
	c.baseOps[0xF7] = (*CPU_8086).opGrp3_Ev

	// 0xFE: Grp4
	c.baseOps[0xFE] = (*CPU_8086).opGrp4_Eb

	// 0xFF: Grp5
	c.baseOps[0xFF] = (*CPU_8086).opGrp5_Ev
}
