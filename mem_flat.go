// mem_flat.go - base-relative guest memory for 64-bit tasks
//
// Unlike the permissive real-mode buffer, a 64-bit task runs against a
// fresh ABI with no legacy software to humour: any access outside the
// mapped arena is a fault that kills the task.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// FlatMemory maps a contiguous guest virtual range [base, base+len) onto
// an owned byte slice. Translation is a checked subtraction; there is no
// wraparound.
type FlatMemory struct {
	base uint64
	data []byte
}

func NewFlatMemory(base uint64, size int) *FlatMemory {
	return &FlatMemory{base: base, data: make([]byte, size)}
}

func (m *FlatMemory) Base() uint64 { return m.base }
func (m *FlatMemory) Size() int    { return len(m.data) }
func (m *FlatMemory) Data() []byte { return m.data }

// Translate converts a guest virtual address to a buffer index, checking
// that n bytes fit. ok=false signals a memory fault.
func (m *FlatMemory) Translate(vaddr uint64, n int) (uint64, bool) {
	if vaddr < m.base {
		return 0, false
	}
	off := vaddr - m.base
	if off > uint64(len(m.data)) || uint64(n) > uint64(len(m.data))-off {
		return 0, false
	}
	return off, true
}

func (m *FlatMemory) Read8(vaddr uint64) (byte, bool) {
	off, ok := m.Translate(vaddr, 1)
	if !ok {
		return 0, false
	}
	return m.data[off], true
}

func (m *FlatMemory) Read16(vaddr uint64) (uint16, bool) {
	off, ok := m.Translate(vaddr, 2)
	if !ok {
		return 0, false
	}
	return uint16(m.data[off]) | uint16(m.data[off+1])<<8, true
}

func (m *FlatMemory) Read32(vaddr uint64) (uint32, bool) {
	off, ok := m.Translate(vaddr, 4)
	if !ok {
		return 0, false
	}
	return uint32(m.data[off]) | uint32(m.data[off+1])<<8 |
		uint32(m.data[off+2])<<16 | uint32(m.data[off+3])<<24, true
}

func (m *FlatMemory) Read64(vaddr uint64) (uint64, bool) {
	lo, ok := m.Read32(vaddr)
	if !ok {
		return 0, false
	}
	hi, ok := m.Read32(vaddr + 4)
	if !ok {
		return 0, false
	}
	return uint64(lo) | uint64(hi)<<32, true
}

func (m *FlatMemory) Write8(vaddr uint64, v byte) bool {
	off, ok := m.Translate(vaddr, 1)
	if !ok {
		return false
	}
	m.data[off] = v
	return true
}

func (m *FlatMemory) Write16(vaddr uint64, v uint16) bool {
	off, ok := m.Translate(vaddr, 2)
	if !ok {
		return false
	}
	m.data[off] = byte(v)
	m.data[off+1] = byte(v >> 8)
	return true
}

func (m *FlatMemory) Write32(vaddr uint64, v uint32) bool {
	off, ok := m.Translate(vaddr, 4)
	if !ok {
		return false
	}
	m.data[off] = byte(v)
	m.data[off+1] = byte(v >> 8)
	m.data[off+2] = byte(v >> 16)
	m.data[off+3] = byte(v >> 24)
	return true
}

func (m *FlatMemory) Write64(vaddr uint64, v uint64) bool {
	if !m.Write32(vaddr, uint32(v)) {
		return false
	}
	return m.Write32(vaddr+4, uint32(v>>32))
}

// ReadBytes copies n bytes at vaddr; nil + false on any out-of-range byte.
func (m *FlatMemory) ReadBytes(vaddr uint64, n int) ([]byte, bool) {
	off, ok := m.Translate(vaddr, n)
	if !ok {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, m.data[off:off+uint64(n)])
	return out, true
}

func (m *FlatMemory) WriteBytes(vaddr uint64, b []byte) bool {
	off, ok := m.Translate(vaddr, len(b))
	if !ok {
		return false
	}
	copy(m.data[off:], b)
	return true
}
