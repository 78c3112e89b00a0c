// cpu_flags.go - x86 FLAGS bit positions shared by both interpreter cores
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// Flag bit positions (identical layout in FLAGS and RFLAGS)
const (
	x86FlagCF    = 1 << 0  // Carry Flag
	x86FlagFixed = 1 << 1  // Reserved, always set
	x86FlagPF    = 1 << 2  // Parity Flag
	x86FlagAF    = 1 << 4  // Auxiliary Carry Flag
	x86FlagZF    = 1 << 6  // Zero Flag
	x86FlagSF    = 1 << 7  // Sign Flag
	x86FlagTF    = 1 << 8  // Trap Flag
	x86FlagIF    = 1 << 9  // Interrupt Enable Flag
	x86FlagDF    = 1 << 10 // Direction Flag
	x86FlagOF    = 1 << 11 // Overflow Flag
)

// Segment register indices in instruction-encoding order
const (
	segES = 0
	segCS = 1
	segSS = 2
	segDS = 3
)

// parity returns the parity of the low byte (true = even, false = odd)
func parity(v byte) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return (v & 1) == 0
}
