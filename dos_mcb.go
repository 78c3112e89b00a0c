// dos_mcb.go - DOS Memory Control Block chain
//
// Conventional memory between the kernel area and the video segment is
// carved into MCB-headed arenas. Each header occupies one paragraph:
//
//	offset 0: type, 'M' (more blocks follow) or 'Z' (last block)
//	offset 1: owner PSP segment, 0 when free
//	offset 3: block size in paragraphs, excluding the header
//
// The data area starts one paragraph past the header, and the next
// header sits at mcb + 1 + size. Freeing does not coalesce adjacent
// free blocks; allocation is first fit.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	mcbTypeMore = 'M'
	mcbTypeLast = 'Z'

	// Conventional memory handed to the allocator
	mcbChainStart = 0x0060
	mcbChainEnd   = 0xA000
)

// MCBChain manages the MCB arena inside a real-mode memory image
type MCBChain struct {
	mem   *RealMemory
	first uint16
}

// InitMCBChain writes a single free block covering the whole arena
func InitMCBChain(mem *RealMemory) *MCBChain {
	ch := &MCBChain{mem: mem, first: mcbChainStart}
	ch.writeHeader(mcbChainStart, mcbTypeLast, 0, mcbChainEnd-mcbChainStart-1)
	return ch
}

func (ch *MCBChain) writeHeader(seg uint16, typ byte, owner, size uint16) {
	ch.mem.Write8(seg, 0, typ)
	ch.mem.Write16(seg, 1, owner)
	ch.mem.Write16(seg, 3, size)
}

func (ch *MCBChain) readHeader(seg uint16) (typ byte, owner, size uint16) {
	return ch.mem.Read8(seg, 0), ch.mem.Read16(seg, 1), ch.mem.Read16(seg, 3)
}

// Walk visits every MCB in chain order. The callback returns false to
// stop early. A corrupt header also stops the walk.
func (ch *MCBChain) Walk(fn func(seg uint16, typ byte, owner, size uint16) bool) {
	seg := ch.first
	for {
		typ, owner, size := ch.readHeader(seg)
		if typ != mcbTypeMore && typ != mcbTypeLast {
			return
		}
		if !fn(seg, typ, owner, size) {
			return
		}
		if typ == mcbTypeLast {
			return
		}
		seg = seg + 1 + size
	}
}

// SetOwner rewrites the owner field of the block whose data starts at
// seg. Loaders use it to claim a block for the PSP segment the
// allocation itself produced.
func (ch *MCBChain) SetOwner(seg, owner uint16) bool {
	found := false
	ch.Walk(func(mcb uint16, typ byte, _, size uint16) bool {
		if mcb+1 == seg {
			ch.mem.Write16(mcb, 1, owner)
			found = true
			return false
		}
		return true
	})
	return found
}

// LargestFree returns the size in paragraphs of the biggest free block
func (ch *MCBChain) LargestFree() uint16 {
	var largest uint16
	ch.Walk(func(seg uint16, typ byte, owner, size uint16) bool {
		if owner == 0 && size > largest {
			largest = size
		}
		return true
	})
	return largest
}

// Alloc claims paragraphs for owner, first fit. Returns the data
// segment (one past the header). On failure ok is false and largest
// holds the biggest free block, for the caller's error reporting.
func (ch *MCBChain) Alloc(paragraphs, owner uint16) (seg uint16, ok bool, largest uint16) {
	var found uint16
	var foundType byte
	var foundSize uint16
	ch.Walk(func(s uint16, typ byte, own, size uint16) bool {
		if own == 0 {
			if size > largest {
				largest = size
			}
			if size >= paragraphs && found == 0 {
				found = s
				foundType = typ
				foundSize = size
			}
		}
		return true
	})
	if found == 0 {
		return 0, false, largest
	}

	// Split when the remainder can hold a header plus at least one
	// paragraph of data; otherwise hand over the whole block.
	if foundSize >= paragraphs+2 {
		rest := foundSize - paragraphs - 1
		ch.writeHeader(found, mcbTypeMore, owner, paragraphs)
		ch.writeHeader(found+1+paragraphs, foundType, 0, rest)
	} else {
		ch.writeHeader(found, foundType, owner, foundSize)
	}
	return found + 1, true, largest
}

// Free releases the block whose data area starts at seg. Adjacent free
// blocks are left unmerged.
func (ch *MCBChain) Free(seg uint16) bool {
	mcb := seg - 1
	valid := false
	ch.Walk(func(s uint16, typ byte, owner, size uint16) bool {
		if s == mcb && owner != 0 {
			valid = true
			return false
		}
		return true
	})
	if !valid {
		return false
	}
	typ, _, size := ch.readHeader(mcb)
	ch.writeHeader(mcb, typ, 0, size)
	return true
}

// Resize grows or shrinks the block at data segment seg. Growth may
// absorb an immediately following free block. On failure ok is false
// and largest is the maximum size this block could take.
func (ch *MCBChain) Resize(seg, newParagraphs uint16) (ok bool, largest uint16) {
	mcb := seg - 1
	typ, owner, size := ch.readHeader(mcb)
	if (typ != mcbTypeMore && typ != mcbTypeLast) || owner == 0 {
		return false, 0
	}

	avail := size
	nextSeg := mcb + 1 + size
	var nextType byte
	var nextSize uint16
	absorb := false
	if typ == mcbTypeMore {
		nt, nOwner, ns := ch.readHeader(nextSeg)
		if nOwner == 0 && (nt == mcbTypeMore || nt == mcbTypeLast) {
			avail += 1 + ns
			nextType = nt
			nextSize = ns
			absorb = true
		}
	}

	if newParagraphs > avail {
		return false, avail
	}

	if absorb {
		typEff := nextType
		totalAfter := size + 1 + nextSize
		if totalAfter >= newParagraphs+2 {
			rest := totalAfter - newParagraphs - 1
			ch.writeHeader(mcb, mcbTypeMore, owner, newParagraphs)
			ch.writeHeader(mcb+1+newParagraphs, typEff, 0, rest)
		} else {
			ch.writeHeader(mcb, typEff, owner, totalAfter)
		}
		_ = nextSize
		return true, avail
	}

	// Shrink (or no-op) within the existing block
	if size >= newParagraphs+2 {
		rest := size - newParagraphs - 1
		ch.writeHeader(mcb, mcbTypeMore, owner, newParagraphs)
		ch.writeHeader(mcb+1+newParagraphs, typ, 0, rest)
	}
	return true, avail
}

// FreeOwned releases every block owned by the given PSP segment
func (ch *MCBChain) FreeOwned(owner uint16) {
	var owned []uint16
	ch.Walk(func(s uint16, typ byte, own, size uint16) bool {
		if own == owner {
			owned = append(owned, s+1)
		}
		return true
	})
	for _, seg := range owned {
		ch.Free(seg)
	}
}
