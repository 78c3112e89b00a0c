// cpu_x64.go - x86-64 CPU Emulator (64-bit flat mode)
//
// This implements the 64-bit subset needed to run flat-model ELF
// binaries:
// - REX-prefixed general purpose registers R0-R15 at 8/16/32/64-bit widths
// - ModR/M + SIB + RIP-relative addressing
// - SYSCALL dispatched to a host handler
// - Strict memory bounds: an access outside the task arena kills the task
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"math/bits"
)

// SyscallHandler services the SYSCALL instruction on behalf of a task
type SyscallHandler interface {
	HandleSyscall(c *CPU_X64)
}

// Register indices (REX.B/R/X extend the 3-bit fields to 0-15)
const (
	regRAX = 0
	regRCX = 1
	regRDX = 2
	regRBX = 3
	regRSP = 4
	regRBP = 5
	regRSI = 6
	regRDI = 7
	regR8  = 8
	regR9  = 9
	regR10 = 10
	regR11 = 11
	regR12 = 12
	regR13 = 13
	regR14 = 14
	regR15 = 15
)

// CPU_X64 represents the 64-bit CPU state
type CPU_X64 struct {
	// General purpose registers, indexed RAX..R15
	Regs [16]uint64

	// Instruction pointer
	RIP uint64

	// Flags register
	RFlags uint64

	// Execution state
	Halted     bool
	Terminated bool
	Cycles     uint64

	// Current instruction state
	rexPresent   bool
	rexW         bool
	rexR         bool
	rexX         bool
	rexB         bool
	prefixOpSize bool
	prefixRep    int // 0 = none, 1 = REP/REPE, 2 = REPNE
	opcode       byte
	modrm        byte
	modrmLoaded  bool
	eaAddr       uint64
	eaLoaded     bool
	immHint      int // Immediate bytes still to come, for RIP-relative EAs

	// Memory and host services
	mem *FlatMemory
	sys SyscallHandler

	// Instruction dispatch tables
	baseOps [256]func(*CPU_X64)
	extOps  [256]func(*CPU_X64) // 0x0F prefix opcodes
}

// NewCPU_X64 creates a new 64-bit CPU instance
func NewCPU_X64(mem *FlatMemory) *CPU_X64 {
	cpu := &CPU_X64{
		mem: mem,
	}
	cpu.initBaseOps64()
	cpu.initExtendedOps64()
	cpu.Reset()
	return cpu
}

// SetSyscallHandler installs the host SYSCALL handler
func (c *CPU_X64) SetSyscallHandler(h SyscallHandler) {
	c.sys = h
}

// Memory returns the CPU's backing memory
func (c *CPU_X64) Memory() *FlatMemory {
	return c.mem
}

// Reset initializes the CPU to its power-on state
func (c *CPU_X64) Reset() {
	for i := range c.Regs {
		c.Regs[i] = 0
	}
	c.RIP = 0
	c.RFlags = x86FlagFixed | x86FlagIF

	c.rexPresent = false
	c.rexW = false
	c.rexR = false
	c.rexX = false
	c.rexB = false
	c.prefixOpSize = false
	c.prefixRep = 0
	c.modrmLoaded = false
	c.eaLoaded = false
	c.immHint = 0

	c.Halted = false
	c.Terminated = false
	c.Cycles = 0
}

// fault terminates the task on an unrecoverable guest error
func (c *CPU_X64) fault(format string, args ...interface{}) {
	fmt.Printf("X64: "+format+"\n", args...)
	c.Terminated = true
}

// -----------------------------------------------------------------------------
// Width helpers
// -----------------------------------------------------------------------------

// operandSize returns the operand width in bytes for the current prefixes
func (c *CPU_X64) operandSize() byte {
	if c.rexW {
		return 8
	}
	if c.prefixOpSize {
		return 2
	}
	return 4
}

// widthMask returns the value mask for a width in bytes
func widthMask(size byte) uint64 {
	if size == 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (size * 8)) - 1
}

// signBit returns the sign bit for a width in bytes
func signBit(size byte) uint64 {
	return uint64(1) << (size*8 - 1)
}

// signExtend widens a value of the given byte width to 64 bits
func signExtend(v uint64, size byte) uint64 {
	switch size {
	case 1:
		return uint64(int64(int8(v)))
	case 2:
		return uint64(int64(int16(v)))
	case 4:
		return uint64(int64(int32(v)))
	}
	return v
}

// -----------------------------------------------------------------------------
// Register Access
// -----------------------------------------------------------------------------

// getReg returns a register value at the given width
func (c *CPU_X64) getReg(idx byte, size byte) uint64 {
	return c.Regs[idx&15] & widthMask(size)
}

// setReg writes a register at the given width. 32-bit writes zero the
// upper half; 8 and 16-bit writes preserve it.
func (c *CPU_X64) setReg(idx byte, size byte, v uint64) {
	i := idx & 15
	switch size {
	case 8:
		c.Regs[i] = v
	case 4:
		c.Regs[i] = v & 0xFFFFFFFF
	case 2:
		c.Regs[i] = (c.Regs[i] &^ 0xFFFF) | (v & 0xFFFF)
	case 1:
		c.Regs[i] = (c.Regs[i] &^ 0xFF) | (v & 0xFF)
	}
}

// getReg8 reads an 8-bit register. Without a REX prefix, indices 4-7
// address the legacy high bytes AH/CH/DH/BH; with one they address
// SPL/BPL/SIL/DIL.
func (c *CPU_X64) getReg8(idx byte) byte {
	if !c.rexPresent && idx >= 4 && idx <= 7 {
		return byte(c.Regs[idx-4] >> 8)
	}
	return byte(c.Regs[idx&15])
}

// setReg8 writes an 8-bit register with the same index mapping as getReg8
func (c *CPU_X64) setReg8(idx byte, v byte) {
	if !c.rexPresent && idx >= 4 && idx <= 7 {
		i := idx - 4
		c.Regs[i] = (c.Regs[i] &^ 0xFF00) | (uint64(v) << 8)
		return
	}
	i := idx & 15
	c.Regs[i] = (c.Regs[i] &^ 0xFF) | uint64(v)
}

// -----------------------------------------------------------------------------
// Flag Helpers
// -----------------------------------------------------------------------------

func (c *CPU_X64) getFlag(flag uint64) bool {
	return (c.RFlags & flag) != 0
}

func (c *CPU_X64) setFlag(flag uint64, set bool) {
	if set {
		c.RFlags |= flag
	} else {
		c.RFlags &^= flag
	}
}

func (c *CPU_X64) CF() bool { return c.getFlag(x86FlagCF) }
func (c *CPU_X64) ZF() bool { return c.getFlag(x86FlagZF) }
func (c *CPU_X64) SF() bool { return c.getFlag(x86FlagSF) }
func (c *CPU_X64) OF() bool { return c.getFlag(x86FlagOF) }
func (c *CPU_X64) PF() bool { return c.getFlag(x86FlagPF) }
func (c *CPU_X64) AF() bool { return c.getFlag(x86FlagAF) }
func (c *CPU_X64) DF() bool { return c.getFlag(x86FlagDF) }

// setFlagsResult sets ZF/SF/PF from a result at the given width
func (c *CPU_X64) setFlagsResult(r uint64, size byte) {
	r &= widthMask(size)
	c.setFlag(x86FlagZF, r == 0)
	c.setFlag(x86FlagSF, r&signBit(size) != 0)
	c.setFlag(x86FlagPF, parity(byte(r)))
}

// setFlagsLogic sets flags after a logical operation
func (c *CPU_X64) setFlagsLogic(r uint64, size byte) {
	c.setFlag(x86FlagCF, false)
	c.setFlag(x86FlagOF, false)
	c.setFlagsResult(r, size)
}

// addWithCarry performs a width-masked add, setting the arithmetic flags
func (c *CPU_X64) addWithCarry(a, b, carry uint64, size byte) uint64 {
	mask := widthMask(size)
	a &= mask
	b &= mask
	var r uint64
	var cf bool
	if size == 8 {
		s, c1 := bits.Add64(a, b, 0)
		r2, c2 := bits.Add64(s, carry, 0)
		r = r2
		cf = c1|c2 != 0
	} else {
		full := a + b + carry
		cf = full > mask
		r = full & mask
	}
	c.setFlag(x86FlagCF, cf)
	c.setFlag(x86FlagOF, ((^(a ^ b))&(a^r)&signBit(size)) != 0)
	c.setFlag(x86FlagAF, ((a^b^r)&0x10) != 0)
	c.setFlagsResult(r, size)
	return r
}

// subWithBorrow performs a width-masked subtract, setting the arithmetic flags
func (c *CPU_X64) subWithBorrow(a, b, borrow uint64, size byte) uint64 {
	mask := widthMask(size)
	a &= mask
	b &= mask
	var r uint64
	var cf bool
	if size == 8 {
		d, b1 := bits.Sub64(a, b, 0)
		r2, b2 := bits.Sub64(d, borrow, 0)
		r = r2
		cf = b1|b2 != 0
	} else {
		cf = a < b+borrow
		r = (a - b - borrow) & mask
	}
	c.setFlag(x86FlagCF, cf)
	c.setFlag(x86FlagOF, ((a^b)&(a^r)&signBit(size)) != 0)
	c.setFlag(x86FlagAF, ((a^b^r)&0x10) != 0)
	c.setFlagsResult(r, size)
	return r
}

// carryIn returns CF as 0 or 1 for ADC/SBB
func (c *CPU_X64) carryIn() uint64 {
	if c.CF() {
		return 1
	}
	return 0
}

// cond evaluates a condition code nibble (Jcc/SETcc encodings)
func (c *CPU_X64) cond(code byte) bool {
	switch code & 0x0F {
	case 0x0: // O
		return c.OF()
	case 0x1: // NO
		return !c.OF()
	case 0x2: // B
		return c.CF()
	case 0x3: // NB
		return !c.CF()
	case 0x4: // Z
		return c.ZF()
	case 0x5: // NZ
		return !c.ZF()
	case 0x6: // BE
		return c.CF() || c.ZF()
	case 0x7: // NBE
		return !c.CF() && !c.ZF()
	case 0x8: // S
		return c.SF()
	case 0x9: // NS
		return !c.SF()
	case 0xA: // P
		return c.PF()
	case 0xB: // NP
		return !c.PF()
	case 0xC: // L
		return c.SF() != c.OF()
	case 0xD: // NL
		return c.SF() == c.OF()
	case 0xE: // LE
		return c.ZF() || (c.SF() != c.OF())
	}
	// NLE
	return !c.ZF() && (c.SF() == c.OF())
}

// -----------------------------------------------------------------------------
// Memory Access
// -----------------------------------------------------------------------------

// fetch8 fetches a byte at RIP and increments RIP
func (c *CPU_X64) fetch8() byte {
	v, ok := c.mem.Read8(c.RIP)
	if !ok {
		c.fault("instruction fetch fault at 0x%016X", c.RIP)
		return 0
	}
	c.RIP++
	return v
}

// fetch16 fetches a 16-bit word at RIP
func (c *CPU_X64) fetch16() uint16 {
	v, ok := c.mem.Read16(c.RIP)
	if !ok {
		c.fault("instruction fetch fault at 0x%016X", c.RIP)
		return 0
	}
	c.RIP += 2
	return v
}

// fetch32 fetches a 32-bit dword at RIP
func (c *CPU_X64) fetch32() uint32 {
	v, ok := c.mem.Read32(c.RIP)
	if !ok {
		c.fault("instruction fetch fault at 0x%016X", c.RIP)
		return 0
	}
	c.RIP += 4
	return v
}

// fetch64 fetches a 64-bit qword at RIP
func (c *CPU_X64) fetch64() uint64 {
	v, ok := c.mem.Read64(c.RIP)
	if !ok {
		c.fault("instruction fetch fault at 0x%016X", c.RIP)
		return 0
	}
	c.RIP += 8
	return v
}

// fetchImm fetches a size-dependent immediate: imm8/imm16/imm32, with
// imm32 sign-extended for 64-bit operands (the common Iz form)
func (c *CPU_X64) fetchImm(size byte) uint64 {
	switch size {
	case 1:
		return uint64(c.fetch8())
	case 2:
		return uint64(c.fetch16())
	case 4:
		return uint64(c.fetch32())
	}
	return signExtend(uint64(c.fetch32()), 4)
}

// readMem reads size bytes at addr, faulting the task on a miss
func (c *CPU_X64) readMem(addr uint64, size byte) uint64 {
	var v uint64
	var ok bool
	switch size {
	case 1:
		var b byte
		b, ok = c.mem.Read8(addr)
		v = uint64(b)
	case 2:
		var w uint16
		w, ok = c.mem.Read16(addr)
		v = uint64(w)
	case 4:
		var d uint32
		d, ok = c.mem.Read32(addr)
		v = uint64(d)
	default:
		v, ok = c.mem.Read64(addr)
	}
	if !ok {
		c.fault("read fault at 0x%016X (RIP=0x%016X)", addr, c.RIP)
		return 0
	}
	return v
}

// writeMem writes size bytes at addr, faulting the task on a miss
func (c *CPU_X64) writeMem(addr uint64, size byte, v uint64) {
	var ok bool
	switch size {
	case 1:
		ok = c.mem.Write8(addr, byte(v))
	case 2:
		ok = c.mem.Write16(addr, uint16(v))
	case 4:
		ok = c.mem.Write32(addr, uint32(v))
	default:
		ok = c.mem.Write64(addr, v)
	}
	if !ok {
		c.fault("write fault at 0x%016X (RIP=0x%016X)", addr, c.RIP)
	}
}

// -----------------------------------------------------------------------------
// Stack Operations
// -----------------------------------------------------------------------------

func (c *CPU_X64) push64(v uint64) {
	c.Regs[regRSP] -= 8
	c.writeMem(c.Regs[regRSP], 8, v)
}

func (c *CPU_X64) pop64() uint64 {
	v := c.readMem(c.Regs[regRSP], 8)
	c.Regs[regRSP] += 8
	return v
}

// -----------------------------------------------------------------------------
// ModR/M and SIB Decoding
// -----------------------------------------------------------------------------

// fetchModRM fetches and caches the ModR/M byte
func (c *CPU_X64) fetchModRM() byte {
	if !c.modrmLoaded {
		c.modrm = c.fetch8()
		c.modrmLoaded = true
	}
	return c.modrm
}

// getModRMReg returns the REX-extended reg field
func (c *CPU_X64) getModRMReg() byte {
	r := (c.fetchModRM() >> 3) & 7
	if c.rexR {
		r |= 8
	}
	return r
}

// getModRMRM returns the REX-extended r/m field (register operands)
func (c *CPU_X64) getModRMRM() byte {
	r := c.fetchModRM() & 7
	if c.rexB {
		r |= 8
	}
	return r
}

// getModRMMod returns the mod field
func (c *CPU_X64) getModRMMod() byte {
	return (c.fetchModRM() >> 6) & 3
}

// calcEffectiveAddress computes and caches the linear address for the
// current ModR/M memory operand. immHint compensates RIP-relative
// operands for immediate bytes the handler has yet to fetch.
func (c *CPU_X64) calcEffectiveAddress() uint64 {
	if c.eaLoaded {
		return c.eaAddr
	}

	mod := c.getModRMMod()
	rm := c.fetchModRM() & 7

	var addr uint64
	ripRel := false

	if rm == 4 {
		// SIB byte follows
		sib := c.fetch8()
		scale := (sib >> 6) & 3
		index := (sib >> 3) & 7
		base := sib & 7
		if c.rexX {
			index |= 8
		}
		if c.rexB {
			base |= 8
		}

		if base&7 == 5 && mod == 0 {
			addr = signExtend(uint64(c.fetch32()), 4)
		} else {
			addr = c.Regs[base]
		}
		// Index 4 (RSP) means no index; R12 is usable
		if index != 4 {
			addr += c.Regs[index] << scale
		}
	} else if rm == 5 && mod == 0 {
		// RIP-relative
		disp := signExtend(uint64(c.fetch32()), 4)
		ripRel = true
		addr = disp
	} else {
		r := rm
		if c.rexB {
			r |= 8
		}
		addr = c.Regs[r]
	}

	switch mod {
	case 1:
		addr += signExtend(uint64(c.fetch8()), 1)
	case 2:
		addr += signExtend(uint64(c.fetch32()), 4)
	}

	if ripRel {
		addr += c.RIP + uint64(c.immHint)
	}

	c.eaAddr = addr
	c.eaLoaded = true
	return addr
}

// readRM reads the r/m operand at the given width
func (c *CPU_X64) readRM(size byte) uint64 {
	if c.getModRMMod() == 3 {
		if size == 1 {
			return uint64(c.getReg8(c.getModRMRM()))
		}
		return c.getReg(c.getModRMRM(), size)
	}
	return c.readMem(c.calcEffectiveAddress(), size)
}

// writeRM writes the r/m operand at the given width
func (c *CPU_X64) writeRM(size byte, v uint64) {
	if c.getModRMMod() == 3 {
		if size == 1 {
			c.setReg8(c.getModRMRM(), byte(v))
			return
		}
		c.setReg(c.getModRMRM(), size, v)
		return
	}
	c.writeMem(c.calcEffectiveAddress(), size, v)
}

// -----------------------------------------------------------------------------
// Instruction Execution
// -----------------------------------------------------------------------------

// Step executes a single instruction. Returns the cycle count charged.
func (c *CPU_X64) Step() int {
	if c.Halted || c.Terminated {
		return 0
	}

	// Reset per-instruction decode state
	c.rexPresent = false
	c.rexW = false
	c.rexR = false
	c.rexX = false
	c.rexB = false
	c.prefixOpSize = false
	c.prefixRep = 0
	c.modrmLoaded = false
	c.eaLoaded = false
	c.immHint = 0

	// Fetch and handle prefixes
	for {
		c.opcode = c.fetch8()
		if c.Terminated {
			return 0
		}

		switch {
		case c.opcode == 0x66:
			c.prefixOpSize = true
		case c.opcode == 0xF2:
			c.prefixRep = 2
		case c.opcode == 0xF3:
			c.prefixRep = 1
		case c.opcode == 0x26 || c.opcode == 0x2E || c.opcode == 0x36 ||
			c.opcode == 0x3E || c.opcode == 0x64 || c.opcode == 0x65:
			// Segment overrides are meaningless in the flat model
		case c.opcode == 0xF0:
			// LOCK: single core, nothing to lock against
		case c.opcode >= 0x40 && c.opcode <= 0x4F:
			c.rexPresent = true
			c.rexW = c.opcode&8 != 0
			c.rexR = c.opcode&4 != 0
			c.rexX = c.opcode&2 != 0
			c.rexB = c.opcode&1 != 0
		case c.opcode == 0x0F:
			ext := c.fetch8()
			if handler := c.extOps[ext]; handler != nil {
				handler(c)
			} else {
				c.fault("undefined opcode 0x0F 0x%02X at RIP=0x%016X", ext, c.RIP-2)
			}
			c.Cycles++
			return 1
		default:
			if handler := c.baseOps[c.opcode]; handler != nil {
				handler(c)
			} else {
				c.fault("undefined opcode 0x%02X at RIP=0x%016X", c.opcode, c.RIP-1)
			}
			c.Cycles++
			return 1
		}
	}
}
