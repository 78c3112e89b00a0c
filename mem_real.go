// mem_real.go - 1 MiB real-mode guest memory with 20-bit address wraparound
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	realMemorySize = 1 << 20 // 1 MiB conventional address space
	realAddrMask   = 0xFFFFF // 20-bit linear address mask
)

// RealMemory is the flat byte array a 16-bit task addresses through
// segment:offset pairs. Every access wraps at 1 MiB, matching real-mode
// address wraparound on a CPU without an A20 gate; nothing a guest does
// can reach outside the buffer.
type RealMemory struct {
	data []byte
}

func NewRealMemory() *RealMemory {
	return &RealMemory{data: make([]byte, realMemorySize)}
}

// LinearAddr computes segment*16+offset wrapped to 20 bits.
func LinearAddr(seg, off uint16) uint32 {
	return (uint32(seg)<<4 + uint32(off)) & realAddrMask
}

// Data exposes the raw buffer for loaders and the MCB chain walker.
func (m *RealMemory) Data() []byte {
	return m.data
}

func (m *RealMemory) ReadLinear8(addr uint32) byte {
	return m.data[addr&realAddrMask]
}

func (m *RealMemory) WriteLinear8(addr uint32, v byte) {
	m.data[addr&realAddrMask] = v
}

// Read8 reads one byte at seg:off.
func (m *RealMemory) Read8(seg, off uint16) byte {
	return m.data[LinearAddr(seg, off)]
}

// Read16 reads a little-endian word at seg:off. The offset arithmetic is
// done in 16 bits so the second byte wraps within the segment, as a real
// 8086 does.
func (m *RealMemory) Read16(seg, off uint16) uint16 {
	lo := m.data[LinearAddr(seg, off)]
	hi := m.data[LinearAddr(seg, off+1)]
	return uint16(lo) | uint16(hi)<<8
}

func (m *RealMemory) Read32(seg, off uint16) uint32 {
	return uint32(m.Read16(seg, off)) | uint32(m.Read16(seg, off+2))<<16
}

func (m *RealMemory) Write8(seg, off uint16, v byte) {
	m.data[LinearAddr(seg, off)] = v
}

func (m *RealMemory) Write16(seg, off uint16, v uint16) {
	m.data[LinearAddr(seg, off)] = byte(v)
	m.data[LinearAddr(seg, off+1)] = byte(v >> 8)
}

func (m *RealMemory) Write32(seg, off uint16, v uint32) {
	m.Write16(seg, off, uint16(v))
	m.Write16(seg, off+2, uint16(v>>16))
}

// ReadBytes copies n bytes starting at seg:off, wrapping per byte.
func (m *RealMemory) ReadBytes(seg, off uint16, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.Read8(seg, off+uint16(i))
	}
	return out
}

// WriteBytes stores b starting at seg:off, wrapping per byte.
func (m *RealMemory) WriteBytes(seg, off uint16, b []byte) {
	for i, v := range b {
		m.Write8(seg, off+uint16(i), v)
	}
}
