// loader.go - Program image loaders
//
// Three guest formats: flat DOS .COM images, MZ .EXE images with
// relocation, and static x86-64 ELF executables. COM and EXE tasks
// get a PSP and their memory carved from the MCB chain; ELF tasks
// get a flat arena sized to cover the load segments plus a stack.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
)

type ImageFormat int

const (
	FormatUnknown ImageFormat = iota
	FormatCOM
	FormatEXE
	FormatELF
)

const (
	pspParagraphs = 0x10
	comEntry      = 0x0100
	maxComImage   = 0xFF00 - comEntry
	elfStackSize  = 1 << 20
)

// DetectFormat picks the loader from magic bytes first, then the
// file extension. Anything else that fits a COM image loads as one.
func DetectFormat(name string, image []byte) ImageFormat {
	if len(image) >= 4 && image[0] == 0x7F && image[1] == 'E' && image[2] == 'L' && image[3] == 'F' {
		return FormatELF
	}
	if len(image) >= 2 && image[0] == 'M' && image[1] == 'Z' {
		return FormatEXE
	}
	switch strings.ToLower(lastExt(name)) {
	case ".com":
		return FormatCOM
	case ".exe":
		return FormatEXE
	case ".elf", "":
		if len(image) > 0 && len(image) <= maxComImage {
			return FormatCOM
		}
	}
	if len(image) > 0 && len(image) <= maxComImage {
		return FormatCOM
	}
	return FormatUnknown
}

func lastExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// buildPSP lays down the program segment prefix at t.pspSeg
func buildPSP(t *Task, topSeg uint16, args string) {
	mem := t.mem16
	seg := t.pspSeg
	// INT 20h at offset 0 so RET to PSP:0000 terminates
	mem.Write8(seg, 0x00, 0xCD)
	mem.Write8(seg, 0x01, 0x20)
	mem.Write16(seg, 0x02, topSeg)
	// Command tail: length byte, text, CR
	if len(args) > 0 && args[0] != ' ' {
		args = " " + args
	}
	if len(args) > 126 {
		args = args[:126]
	}
	mem.Write8(seg, 0x80, byte(len(args)))
	mem.WriteBytes(seg, 0x81, []byte(args))
	mem.Write8(seg, 0x81+uint16(len(args)), 0x0D)
}

// LoadCOM maps a flat image at PSP:0100 and points all four segment
// registers at the PSP. SP starts at 0xFFFE with a zero word pushed
// so a bare RET lands on the PSP's INT 20h.
func LoadCOM(t *Task, image []byte, args string) error {
	if len(image) == 0 || len(image) > maxComImage {
		return fmt.Errorf("COM image size %d out of range", len(image))
	}
	// COM programs own the largest block whole
	paras := t.mcb.LargestFree()
	seg, ok, _ := t.mcb.Alloc(paras, 8)
	if !ok {
		return fmt.Errorf("no guest memory for COM image")
	}
	t.pspSeg = seg
	t.mcb.SetOwner(seg, seg)
	buildPSP(t, seg+paras, args)

	t.mem16.WriteBytes(seg, comEntry, image)

	c := t.cpu16
	c.CS, c.DS, c.ES, c.SS = seg, seg, seg, seg
	c.IP = comEntry
	c.SP = 0xFFFE
	t.mem16.Write16(c.SS, c.SP, 0x0000)
	return nil
}

// mzHeader is the fixed part of an MZ executable header
type mzHeader struct {
	bytesLastPage uint16
	pages         uint16
	numRelocs     uint16
	headerParas   uint16
	minAlloc      uint16
	ssInit        uint16
	spInit        uint16
	ipInit        uint16
	csInit        uint16
	relocOff      uint16
}

func parseMZ(image []byte) (mzHeader, error) {
	var h mzHeader
	if len(image) < 0x1C || image[0] != 'M' || image[1] != 'Z' {
		return h, fmt.Errorf("not an MZ executable")
	}
	le := binary.LittleEndian
	h.bytesLastPage = le.Uint16(image[0x02:])
	h.pages = le.Uint16(image[0x04:])
	h.numRelocs = le.Uint16(image[0x06:])
	h.headerParas = le.Uint16(image[0x08:])
	h.minAlloc = le.Uint16(image[0x0A:])
	h.ssInit = le.Uint16(image[0x0E:])
	h.spInit = le.Uint16(image[0x10:])
	h.ipInit = le.Uint16(image[0x14:])
	h.csInit = le.Uint16(image[0x16:])
	h.relocOff = le.Uint16(image[0x18:])
	return h, nil
}

// LoadEXE parses the MZ header, applies segment relocations against
// the load segment and sets the entry registers from the header
func LoadEXE(t *Task, image []byte, args string) error {
	h, err := parseMZ(image)
	if err != nil {
		return err
	}
	total := int(h.pages) * 512
	if h.bytesLastPage != 0 {
		total = (int(h.pages)-1)*512 + int(h.bytesLastPage)
	}
	if total > len(image) {
		total = len(image)
	}
	headerSize := int(h.headerParas) * 16
	if headerSize >= total {
		return fmt.Errorf("MZ header larger than image")
	}
	module := image[headerSize:total]

	moduleParas := uint16((len(module) + 15) / 16)
	need := pspParagraphs + moduleParas + h.minAlloc
	seg, ok, largest := t.mcb.Alloc(need, 8)
	if !ok {
		return fmt.Errorf("EXE needs %d paragraphs, largest free is %d", need, largest)
	}
	t.pspSeg = seg
	t.mcb.SetOwner(seg, seg)
	buildPSP(t, seg+need, args)

	loadSeg := seg + pspParagraphs
	t.mem16.WriteBytes(loadSeg, 0, module)

	// Relocation entries are offset:segment pairs naming words that
	// get the load segment added
	le := binary.LittleEndian
	for i := 0; i < int(h.numRelocs); i++ {
		entry := int(h.relocOff) + i*4
		if entry+4 > len(image) {
			return fmt.Errorf("relocation table truncated")
		}
		off := le.Uint16(image[entry:])
		rseg := le.Uint16(image[entry+2:])
		target := loadSeg + rseg
		word := t.mem16.Read16(target, off)
		t.mem16.Write16(target, off, word+loadSeg)
	}

	c := t.cpu16
	c.DS, c.ES = seg, seg
	c.CS = loadSeg + h.csInit
	c.IP = h.ipInit
	c.SS = loadSeg + h.ssInit
	c.SP = h.spInit
	return nil
}

// LoadELF64 loads a static x86-64 executable into a flat arena sized
// to span the PT_LOAD segments plus a stack above them
func LoadELF64(m *Machine, id int, name string, image []byte) (*Task, error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("ELF parse: %w", err)
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_X86_64 {
		return nil, fmt.Errorf("not an x86-64 ELF executable")
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("only static ET_EXEC images are supported")
	}

	var lo, hi uint64
	first := true
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		if first || p.Vaddr < lo {
			lo = p.Vaddr
		}
		if end := p.Vaddr + p.Memsz; first || end > hi {
			hi = end
		}
		first = false
	}
	if first {
		return nil, fmt.Errorf("ELF has no loadable segments")
	}

	base := lo &^ 0xFFF
	size := int(hi-base) + elfStackSize
	t := NewTask64(m, id, name, base, size)

	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		buf := make([]byte, p.Filesz)
		if _, err := p.ReadAt(buf, 0); err != nil {
			return nil, fmt.Errorf("ELF segment read: %w", err)
		}
		if !t.mem64.WriteBytes(p.Vaddr, buf) {
			return nil, fmt.Errorf("ELF segment at %#x outside arena", p.Vaddr)
		}
	}

	c := t.cpu64
	c.RIP = f.Entry
	c.Regs[regRSP] = base + uint64(size) - 16
	return t, nil
}
