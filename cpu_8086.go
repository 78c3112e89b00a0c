// cpu_8086.go - Intel 8086 CPU Emulator (16-bit real mode)
//
// This implements an 8086 CPU with:
// - Full 8086/8088 base instruction set plus the common 186 additions
//   (PUSHA/POPA, ENTER/LEAVE, immediate shifts, PUSH imm)
// - True segmented addressing with 20-bit linear address wraparound
// - Host interrupt interception for DOS and BIOS services
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
)

// IntHandler8086 lets the host intercept software interrupts before the
// guest IVT sees them. Returning false falls through to the vector table.
type IntHandler8086 interface {
	HandleInt(c *CPU_8086, vector byte) bool
}

// CPU_8086 represents the 8086 CPU state
type CPU_8086 struct {
	// General purpose registers
	AX uint16
	BX uint16
	CX uint16
	DX uint16
	SI uint16
	DI uint16
	BP uint16
	SP uint16

	// Instruction pointer
	IP uint16

	// Segment registers
	CS uint16
	DS uint16
	ES uint16
	SS uint16

	// Flags register
	Flags uint16

	// Execution state
	Halted     bool
	Terminated bool
	Cycles     uint64

	// Current instruction state
	prefixSeg   int  // Segment override (-1 = none, 0-3 = ES/CS/SS/DS)
	prefixRep   int  // REP prefix (0 = none, 1 = REP/REPE, 2 = REPNE)
	opcode      byte // Current opcode
	modrm       byte // ModR/M byte
	modrmLoaded bool // ModR/M already fetched
	eaSeg       uint16
	eaOff       uint16
	eaLoaded    bool // Effective address already computed

	// Memory and host services
	mem  *RealMemory
	intr IntHandler8086

	// Instruction dispatch table
	baseOps [256]func(*CPU_8086)
}

// NewCPU_8086 creates a new 8086 CPU instance
func NewCPU_8086(mem *RealMemory) *CPU_8086 {
	cpu := &CPU_8086{
		mem: mem,
	}
	cpu.initBaseOps()
	cpu.initGroupOps()
	cpu.initStringOps()
	cpu.Reset()
	return cpu
}

// SetIntHandler installs the host interrupt interceptor
func (c *CPU_8086) SetIntHandler(h IntHandler8086) {
	c.intr = h
}

// Memory returns the CPU's backing memory
func (c *CPU_8086) Memory() *RealMemory {
	return c.mem
}

// Reset initializes the CPU to its power-on state
func (c *CPU_8086) Reset() {
	c.AX = 0
	c.BX = 0
	c.CX = 0
	c.DX = 0
	c.SI = 0
	c.DI = 0
	c.BP = 0
	c.SP = 0

	// Real 8086 reset vector
	c.CS = 0xFFFF
	c.IP = 0x0000
	c.DS = 0
	c.ES = 0
	c.SS = 0

	// Bit 1 of FLAGS always reads as set on the 8086
	c.Flags = x86FlagFixed | x86FlagIF

	c.prefixSeg = -1
	c.prefixRep = 0
	c.modrmLoaded = false
	c.eaLoaded = false

	c.Halted = false
	c.Terminated = false
	c.Cycles = 0
}

// -----------------------------------------------------------------------------
// Register Access Helpers
// -----------------------------------------------------------------------------

// AL returns the lower 8 bits of AX
func (c *CPU_8086) AL() byte {
	return byte(c.AX & 0xFF)
}

// SetAL sets the lower 8 bits of AX
func (c *CPU_8086) SetAL(v byte) {
	c.AX = (c.AX & 0xFF00) | uint16(v)
}

// AH returns the upper 8 bits of AX
func (c *CPU_8086) AH() byte {
	return byte(c.AX >> 8)
}

// SetAH sets the upper 8 bits of AX
func (c *CPU_8086) SetAH(v byte) {
	c.AX = (c.AX & 0x00FF) | (uint16(v) << 8)
}

// BL returns the lower 8 bits of BX
func (c *CPU_8086) BL() byte {
	return byte(c.BX & 0xFF)
}

// SetBL sets the lower 8 bits of BX
func (c *CPU_8086) SetBL(v byte) {
	c.BX = (c.BX & 0xFF00) | uint16(v)
}

// BH returns the upper 8 bits of BX
func (c *CPU_8086) BH() byte {
	return byte(c.BX >> 8)
}

// SetBH sets the upper 8 bits of BX
func (c *CPU_8086) SetBH(v byte) {
	c.BX = (c.BX & 0x00FF) | (uint16(v) << 8)
}

// CL returns the lower 8 bits of CX
func (c *CPU_8086) CL() byte {
	return byte(c.CX & 0xFF)
}

// SetCL sets the lower 8 bits of CX
func (c *CPU_8086) SetCL(v byte) {
	c.CX = (c.CX & 0xFF00) | uint16(v)
}

// CH returns the upper 8 bits of CX
func (c *CPU_8086) CH() byte {
	return byte(c.CX >> 8)
}

// SetCH sets the upper 8 bits of CX
func (c *CPU_8086) SetCH(v byte) {
	c.CX = (c.CX & 0x00FF) | (uint16(v) << 8)
}

// DL returns the lower 8 bits of DX
func (c *CPU_8086) DL() byte {
	return byte(c.DX & 0xFF)
}

// SetDL sets the lower 8 bits of DX
func (c *CPU_8086) SetDL(v byte) {
	c.DX = (c.DX & 0xFF00) | uint16(v)
}

// DH returns the upper 8 bits of DX
func (c *CPU_8086) DH() byte {
	return byte(c.DX >> 8)
}

// SetDH sets the upper 8 bits of DX
func (c *CPU_8086) SetDH(v byte) {
	c.DX = (c.DX & 0x00FF) | (uint16(v) << 8)
}

// -----------------------------------------------------------------------------
// Register access by index
// -----------------------------------------------------------------------------

// getReg8 returns an 8-bit register value by index (0-7: AL, CL, DL, BL, AH, CH, DH, BH)
func (c *CPU_8086) getReg8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.AL()
	case 1:
		return c.CL()
	case 2:
		return c.DL()
	case 3:
		return c.BL()
	case 4:
		return c.AH()
	case 5:
		return c.CH()
	case 6:
		return c.DH()
	case 7:
		return c.BH()
	}
	return 0
}

// setReg8 sets an 8-bit register value by index
func (c *CPU_8086) setReg8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		c.SetAL(v)
	case 1:
		c.SetCL(v)
	case 2:
		c.SetDL(v)
	case 3:
		c.SetBL(v)
	case 4:
		c.SetAH(v)
	case 5:
		c.SetCH(v)
	case 6:
		c.SetDH(v)
	case 7:
		c.SetBH(v)
	}
}

// getReg16 returns a 16-bit register value by index (0-7: AX, CX, DX, BX, SP, BP, SI, DI)
func (c *CPU_8086) getReg16(idx byte) uint16 {
	switch idx & 7 {
	case 0:
		return c.AX
	case 1:
		return c.CX
	case 2:
		return c.DX
	case 3:
		return c.BX
	case 4:
		return c.SP
	case 5:
		return c.BP
	case 6:
		return c.SI
	case 7:
		return c.DI
	}
	return 0
}

// setReg16 sets a 16-bit register value by index
func (c *CPU_8086) setReg16(idx byte, v uint16) {
	switch idx & 7 {
	case 0:
		c.AX = v
	case 1:
		c.CX = v
	case 2:
		c.DX = v
	case 3:
		c.BX = v
	case 4:
		c.SP = v
	case 5:
		c.BP = v
	case 6:
		c.SI = v
	case 7:
		c.DI = v
	}
}

// getSeg returns a segment register value by index (0-3: ES, CS, SS, DS)
func (c *CPU_8086) getSeg(idx int) uint16 {
	switch idx & 3 {
	case segES:
		return c.ES
	case segCS:
		return c.CS
	case segSS:
		return c.SS
	case segDS:
		return c.DS
	}
	return 0
}

// setSeg sets a segment register value by index
func (c *CPU_8086) setSeg(idx int, v uint16) {
	switch idx & 3 {
	case segES:
		c.ES = v
	case segCS:
		c.CS = v
	case segSS:
		c.SS = v
	case segDS:
		c.DS = v
	}
}

// -----------------------------------------------------------------------------
// Flag Helpers
// -----------------------------------------------------------------------------

// getFlag returns true if the specified flag is set
func (c *CPU_8086) getFlag(flag uint16) bool {
	return (c.Flags & flag) != 0
}

// setFlag sets or clears a flag
func (c *CPU_8086) setFlag(flag uint16, set bool) {
	if set {
		c.Flags |= flag
	} else {
		c.Flags &^= flag
	}
}

// CF returns the Carry Flag
func (c *CPU_8086) CF() bool {
	return c.getFlag(x86FlagCF)
}

// ZF returns the Zero Flag
func (c *CPU_8086) ZF() bool {
	return c.getFlag(x86FlagZF)
}

// SF returns the Sign Flag
func (c *CPU_8086) SF() bool {
	return c.getFlag(x86FlagSF)
}

// OF returns the Overflow Flag
func (c *CPU_8086) OF() bool {
	return c.getFlag(x86FlagOF)
}

// PF returns the Parity Flag
func (c *CPU_8086) PF() bool {
	return c.getFlag(x86FlagPF)
}

// AF returns the Auxiliary Carry Flag
func (c *CPU_8086) AF() bool {
	return c.getFlag(x86FlagAF)
}

// DF returns the Direction Flag
func (c *CPU_8086) DF() bool {
	return c.getFlag(x86FlagDF)
}

// IF returns the Interrupt Enable Flag
func (c *CPU_8086) IF() bool {
	return c.getFlag(x86FlagIF)
}

// setFlagsArith8 sets flags after an 8-bit arithmetic operation
func (c *CPU_8086) setFlagsArith8(result uint16, a, b byte, sub bool) {
	r := byte(result)
	c.setFlag(x86FlagCF, result > 0xFF)
	c.setFlag(x86FlagZF, r == 0)
	c.setFlag(x86FlagSF, (r&0x80) != 0)
	c.setFlag(x86FlagPF, parity(r))

	// Result-based forms stay correct when the wide result carries a
	// borrowed-in or carried-in 1 (ADC/SBB pass the original operand)
	c.setFlag(x86FlagAF, ((a^b^r)&0x10) != 0)
	if sub {
		c.setFlag(x86FlagOF, ((a^b)&(a^r)&0x80) != 0)
	} else {
		c.setFlag(x86FlagOF, ((a^r)&(b^r)&0x80) != 0)
	}
}

// setFlagsArith16 sets flags after a 16-bit arithmetic operation
func (c *CPU_8086) setFlagsArith16(result uint32, a, b uint16, sub bool) {
	r := uint16(result)
	c.setFlag(x86FlagCF, result > 0xFFFF)
	c.setFlag(x86FlagZF, r == 0)
	c.setFlag(x86FlagSF, (r&0x8000) != 0)
	c.setFlag(x86FlagPF, parity(byte(r)))

	c.setFlag(x86FlagAF, ((a^b^r)&0x10) != 0)
	if sub {
		c.setFlag(x86FlagOF, ((a^b)&(a^r)&0x8000) != 0)
	} else {
		c.setFlag(x86FlagOF, ((a^r)&(b^r)&0x8000) != 0)
	}
}

// setFlagsLogic8 sets flags after an 8-bit logical operation
func (c *CPU_8086) setFlagsLogic8(result byte) {
	c.setFlag(x86FlagCF, false)
	c.setFlag(x86FlagOF, false)
	c.setFlag(x86FlagZF, result == 0)
	c.setFlag(x86FlagSF, (result&0x80) != 0)
	c.setFlag(x86FlagPF, parity(result))
	// AF is undefined for logical ops
}

// setFlagsLogic16 sets flags after a 16-bit logical operation
func (c *CPU_8086) setFlagsLogic16(result uint16) {
	c.setFlag(x86FlagCF, false)
	c.setFlag(x86FlagOF, false)
	c.setFlag(x86FlagZF, result == 0)
	c.setFlag(x86FlagSF, (result&0x8000) != 0)
	c.setFlag(x86FlagPF, parity(byte(result)))
}

// -----------------------------------------------------------------------------
// Memory Access
// -----------------------------------------------------------------------------

// dataSeg returns the effective data segment honouring an override prefix
func (c *CPU_8086) dataSeg() uint16 {
	if c.prefixSeg >= 0 {
		return c.getSeg(c.prefixSeg)
	}
	return c.DS
}

// fetch8 fetches a byte at CS:IP and increments IP
func (c *CPU_8086) fetch8() byte {
	v := c.mem.Read8(c.CS, c.IP)
	c.IP++
	return v
}

// fetch16 fetches a 16-bit word at CS:IP (little-endian) and increments IP
func (c *CPU_8086) fetch16() uint16 {
	v := c.mem.Read16(c.CS, c.IP)
	c.IP += 2
	return v
}

// -----------------------------------------------------------------------------
// Stack Operations
// -----------------------------------------------------------------------------

// push16 pushes a 16-bit value onto the stack at SS:SP
func (c *CPU_8086) push16(v uint16) {
	c.SP -= 2
	c.mem.Write16(c.SS, c.SP, v)
}

// pop16 pops a 16-bit value from the stack at SS:SP
func (c *CPU_8086) pop16() uint16 {
	v := c.mem.Read16(c.SS, c.SP)
	c.SP += 2
	return v
}

// -----------------------------------------------------------------------------
// ModR/M Decoding
// -----------------------------------------------------------------------------

// fetchModRM fetches and caches the ModR/M byte
func (c *CPU_8086) fetchModRM() byte {
	if !c.modrmLoaded {
		c.modrm = c.fetch8()
		c.modrmLoaded = true
	}
	return c.modrm
}

// getModRMReg returns the reg field of ModR/M (bits 5-3)
func (c *CPU_8086) getModRMReg() byte {
	return (c.fetchModRM() >> 3) & 7
}

// getModRMRM returns the r/m field of ModR/M (bits 2-0)
func (c *CPU_8086) getModRMRM() byte {
	return c.fetchModRM() & 7
}

// getModRMMod returns the mod field of ModR/M (bits 7-6)
func (c *CPU_8086) getModRMMod() byte {
	return (c.fetchModRM() >> 6) & 3
}

// calcEffectiveAddress computes and caches the seg:off pair for the
// current ModR/M memory operand. Caching matters: the displacement bytes
// follow the ModR/M byte in the instruction stream, so fetching twice
// (read-modify-write handlers call readRM then writeRM) would consume
// them twice.
func (c *CPU_8086) calcEffectiveAddress() (uint16, uint16) {
	if c.eaLoaded {
		return c.eaSeg, c.eaOff
	}

	mod := c.getModRMMod()
	rm := c.getModRMRM()

	var off uint16
	var seg = segDS // Default segment

	switch rm {
	case 0: // [BX+SI]
		off = c.BX + c.SI
	case 1: // [BX+DI]
		off = c.BX + c.DI
	case 2: // [BP+SI]
		off = c.BP + c.SI
		seg = segSS
	case 3: // [BP+DI]
		off = c.BP + c.DI
		seg = segSS
	case 4: // [SI]
		off = c.SI
	case 5: // [DI]
		off = c.DI
	case 6: // [BP] or [disp16]
		if mod == 0 {
			off = c.fetch16()
		} else {
			off = c.BP
			seg = segSS
		}
	case 7: // [BX]
		off = c.BX
	}

	switch mod {
	case 1: // 8-bit displacement (sign-extended)
		off += uint16(int16(int8(c.fetch8())))
	case 2: // 16-bit displacement
		off += c.fetch16()
	}

	if c.prefixSeg >= 0 {
		seg = c.prefixSeg
	}

	c.eaSeg = c.getSeg(seg)
	c.eaOff = off
	c.eaLoaded = true
	return c.eaSeg, c.eaOff
}

// readRM8 reads an 8-bit value from register or memory based on ModR/M
func (c *CPU_8086) readRM8() byte {
	if c.getModRMMod() == 3 {
		return c.getReg8(c.getModRMRM())
	}
	seg, off := c.calcEffectiveAddress()
	return c.mem.Read8(seg, off)
}

// writeRM8 writes an 8-bit value to register or memory based on ModR/M
func (c *CPU_8086) writeRM8(v byte) {
	if c.getModRMMod() == 3 {
		c.setReg8(c.getModRMRM(), v)
	} else {
		seg, off := c.calcEffectiveAddress()
		c.mem.Write8(seg, off, v)
	}
}

// readRM16 reads a 16-bit value from register or memory based on ModR/M
func (c *CPU_8086) readRM16() uint16 {
	if c.getModRMMod() == 3 {
		return c.getReg16(c.getModRMRM())
	}
	seg, off := c.calcEffectiveAddress()
	return c.mem.Read16(seg, off)
}

// writeRM16 writes a 16-bit value to register or memory based on ModR/M
func (c *CPU_8086) writeRM16(v uint16) {
	if c.getModRMMod() == 3 {
		c.setReg16(c.getModRMRM(), v)
	} else {
		seg, off := c.calcEffectiveAddress()
		c.mem.Write16(seg, off, v)
	}
}

// -----------------------------------------------------------------------------
// Instruction Execution
// -----------------------------------------------------------------------------

// Step executes a single instruction. Returns the cycle count charged.
func (c *CPU_8086) Step() int {
	if c.Halted || c.Terminated {
		return 0
	}

	// Reset per-instruction decode state
	c.prefixSeg = -1
	c.prefixRep = 0
	c.modrmLoaded = false
	c.eaLoaded = false

	// Fetch and handle prefixes
	for {
		c.opcode = c.fetch8()

		switch c.opcode {
		case 0x26: // ES:
			c.prefixSeg = segES
		case 0x2E: // CS:
			c.prefixSeg = segCS
		case 0x36: // SS:
			c.prefixSeg = segSS
		case 0x3E: // DS:
			c.prefixSeg = segDS
		case 0xF0: // LOCK (single core, nothing to lock against)
			continue
		case 0xF2: // REPNE
			c.prefixRep = 2
		case 0xF3: // REP/REPE
			c.prefixRep = 1
		default:
			// Not a prefix, execute the instruction
			if handler := c.baseOps[c.opcode]; handler != nil {
				handler(c)
			} else {
				// Undefined opcode - fail the guest, not the host
				fmt.Printf("8086: Undefined opcode 0x%02X at %04X:%04X, halting\n", c.opcode, c.CS, c.IP-1)
				c.Halted = true
			}
			c.Cycles++
			return 1
		}
	}
}

// dispatchInt raises a software interrupt. The host handler gets first
// refusal; unclaimed vectors go through the real-mode IVT with a full
// FLAGS/CS/IP frame so IRET returns cleanly.
func (c *CPU_8086) dispatchInt(vector byte) {
	if c.intr != nil && c.intr.HandleInt(c, vector) {
		return
	}

	c.push16(c.Flags)
	c.push16(c.CS)
	c.push16(c.IP)

	c.setFlag(x86FlagIF, false)
	c.setFlag(x86FlagTF, false)

	// Vector table lives at segment 0
	addr := uint16(vector) * 4
	c.IP = c.mem.Read16(0, addr)
	c.CS = c.mem.Read16(0, addr+2)
}
