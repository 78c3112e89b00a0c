// cpu_8086_string.go - 8086 String Instructions (MOVS/STOS/LODS/SCAS/CMPS, REP engine)
//
// Source operands come from DS:SI (the segment is overridable); the
// destination is always ES:DI. A REP prefix with CX=0 executes zero
// iterations, and CX is decremented once per iteration actually run.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// stringDelta returns the per-element pointer adjustment for the
// current direction flag. Unsigned wraparound stands in for -size.
func (c *CPU_8086) stringDelta(size uint16) uint16 {
	if c.DF() {
		return -size
	}
	return size
}

// repeat runs body once, or CX times under a REP/REPNE prefix. MOVS,
// STOS and LODS ignore the REPE/REPNE distinction.
func (c *CPU_8086) repeat(body func()) {
	if c.prefixRep == 0 {
		body()
		return
	}
	for c.CX != 0 {
		body()
		c.CX--
	}
}

// repeatCond is the CMPS/SCAS variant: REPE stops on ZF clear, REPNE
// stops on ZF set. CX is decremented before the flag check, so a
// mismatch iteration still counts.
func (c *CPU_8086) repeatCond(body func()) {
	if c.prefixRep == 0 {
		body()
		return
	}
	for c.CX != 0 {
		body()
		c.CX--
		if c.prefixRep == 1 && !c.ZF() {
			break
		}
		if c.prefixRep == 2 && c.ZF() {
			break
		}
	}
}

func (c *CPU_8086) opMOVSB() {
	src := c.dataSeg()
	c.repeat(func() {
		c.mem.Write8(c.ES, c.DI, c.mem.Read8(src, c.SI))
		d := c.stringDelta(1)
		c.SI += d
		c.DI += d
	})
}

func (c *CPU_8086) opMOVSW() {
	src := c.dataSeg()
	c.repeat(func() {
		c.mem.Write16(c.ES, c.DI, c.mem.Read16(src, c.SI))
		d := c.stringDelta(2)
		c.SI += d
		c.DI += d
	})
}

func (c *CPU_8086) opCMPSB() {
	src := c.dataSeg()
	c.repeatCond(func() {
		a := c.mem.Read8(src, c.SI)
		b := c.mem.Read8(c.ES, c.DI)
		c.setFlagsArith8(uint16(a)-uint16(b), a, b, true)
		d := c.stringDelta(1)
		c.SI += d
		c.DI += d
	})
}

func (c *CPU_8086) opCMPSW() {
	src := c.dataSeg()
	c.repeatCond(func() {
		a := c.mem.Read16(src, c.SI)
		b := c.mem.Read16(c.ES, c.DI)
		c.setFlagsArith16(uint32(a)-uint32(b), a, b, true)
		d := c.stringDelta(2)
		c.SI += d
		c.DI += d
	})
}

func (c *CPU_8086) opSTOSB() {
	c.repeat(func() {
		c.mem.Write8(c.ES, c.DI, c.AL())
		c.DI += c.stringDelta(1)
	})
}

func (c *CPU_8086) opSTOSW() {
	c.repeat(func() {
		c.mem.Write16(c.ES, c.DI, c.AX)
		c.DI += c.stringDelta(2)
	})
}

func (c *CPU_8086) opLODSB() {
	src := c.dataSeg()
	c.repeat(func() {
		c.SetAL(c.mem.Read8(src, c.SI))
		c.SI += c.stringDelta(1)
	})
}

func (c *CPU_8086) opLODSW() {
	src := c.dataSeg()
	c.repeat(func() {
		c.AX = c.mem.Read16(src, c.SI)
		c.SI += c.stringDelta(2)
	})
}

func (c *CPU_8086) opSCASB() {
	c.repeatCond(func() {
		a := c.AL()
		b := c.mem.Read8(c.ES, c.DI)
		c.setFlagsArith8(uint16(a)-uint16(b), a, b, true)
		c.DI += c.stringDelta(1)
	})
}

func (c *CPU_8086) opSCASW() {
	c.repeatCond(func() {
		a := c.AX
		b := c.mem.Read16(c.ES, c.DI)
		c.setFlagsArith16(uint32(a)-uint32(b), a, b, true)
		c.DI += c.stringDelta(2)
	})
}

// initStringOps registers the string instruction entry points
func (c *CPU_8086) initStringOps() {
	c.baseOps[0xA4] = (*CPU_8086).opMOVSB
	c.baseOps[0xA5] = (*CPU_8086).opMOVSW
	c.baseOps[0xA6] = (*CPU_8086).opCMPSB
	c.baseOps[0xA7] = (*CPU_8086).opCMPSW
	c.baseOps[0xAA] = (*CPU_8086).opSTOSB
	c.baseOps[0xAB] = (*CPU_8086).opSTOSW
	c.baseOps[0xAC] = (*CPU_8086).opLODSB
	c.baseOps[0xAD] = (*CPU_8086).opLODSW
	c.baseOps[0xAE] = (*CPU_8086).opSCASB
	c.baseOps[0xAF] = (*CPU_8086).opSCASW
}
