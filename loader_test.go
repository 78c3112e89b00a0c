// loader_test.go - Program image loader tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	elf := []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0}
	if DetectFormat("prog", elf) != FormatELF {
		t.Error("ELF magic should win regardless of name")
	}
	mz := []byte{'M', 'Z', 0x40, 0x00}
	if DetectFormat("prog.com", mz) != FormatEXE {
		t.Error("MZ magic should win over the .com extension")
	}
	flat := []byte{0xB8, 0x00, 0x4C, 0xCD, 0x21}
	if DetectFormat("prog.com", flat) != FormatCOM {
		t.Error("flat image with .com extension should load as COM")
	}
	if DetectFormat("prog", flat) != FormatCOM {
		t.Error("small flat image without extension defaults to COM")
	}
}

func TestLoadCOM(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	task := NewTask16(m, 1, "t.com")
	image := []byte{0xB8, 0x34, 0x12, 0xC3}
	if err := LoadCOM(task, image, "arg one"); err != nil {
		t.Fatal(err)
	}
	c := task.cpu16

	if c.CS != c.DS || c.DS != c.ES || c.ES != c.SS {
		t.Error("COM loads with all segments equal")
	}
	if c.CS != task.pspSeg {
		t.Error("segments should point at the PSP")
	}
	if c.IP != 0x0100 {
		t.Errorf("entry IP: got 0x%04X, want 0x0100", c.IP)
	}
	if c.SP != 0xFFFE {
		t.Errorf("SP: got 0x%04X, want 0xFFFE", c.SP)
	}

	// Image sits at PSP:0100
	if got := c.mem.ReadBytes(c.CS, 0x0100, 4); !bytes.Equal(got, image) {
		t.Errorf("image at PSP:0100: % X", got)
	}

	// PSP: INT 20h at offset 0, zero word pushed for a bare RET
	if c.mem.Read8(c.CS, 0) != 0xCD || c.mem.Read8(c.CS, 1) != 0x20 {
		t.Error("PSP should start with INT 20h")
	}
	if c.mem.Read16(c.SS, c.SP) != 0 {
		t.Error("stack top should hold the return-to-PSP word")
	}

	// Command tail with the leading space and CR terminator
	tailLen := c.mem.Read8(c.CS, 0x80)
	if tailLen != 8 {
		t.Errorf("tail length: got %d, want 8", tailLen)
	}
	tail := string(c.mem.ReadBytes(c.CS, 0x81, int(tailLen)))
	if tail != " arg one" {
		t.Errorf("tail %q", tail)
	}
	if c.mem.Read8(c.CS, 0x81+uint16(tailLen)) != 0x0D {
		t.Error("tail must end with CR")
	}
}

func TestLoadCOM_BareRET_terminates(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	task, err := m.Spawn("ret.com", []byte{0xC3}, "")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10 && task.State != TaskTerminated; i++ {
		m.sched.Schedule()
	}
	if task.State != TaskTerminated {
		t.Error("RET to PSP:0000 should reach INT 20h and terminate")
	}
}

// buildEXE assembles a minimal MZ image: header, one relocation and a
// body whose first word needs the load segment patched in
func buildEXE(body []byte, relocOffsets []uint16) []byte {
	headerParas := uint16(4) // 64 bytes, room for the relocation table
	total := int(headerParas)*16 + len(body)
	img := make([]byte, total)
	le := binary.LittleEndian
	img[0], img[1] = 'M', 'Z'
	le.PutUint16(img[0x02:], uint16(total%512))
	le.PutUint16(img[0x04:], uint16((total+511)/512))
	le.PutUint16(img[0x06:], uint16(len(relocOffsets)))
	le.PutUint16(img[0x08:], headerParas)
	le.PutUint16(img[0x0A:], 0x10)   // min alloc
	le.PutUint16(img[0x0E:], 0x0000) // SS
	le.PutUint16(img[0x10:], 0x0800) // SP
	le.PutUint16(img[0x14:], 0x0000) // IP
	le.PutUint16(img[0x16:], 0x0000) // CS
	le.PutUint16(img[0x18:], 0x1C)   // reloc table offset
	for i, off := range relocOffsets {
		le.PutUint16(img[0x1C+i*4:], off)
		le.PutUint16(img[0x1C+i*4+2:], 0)
	}
	copy(img[int(headerParas)*16:], body)
	return img
}

func TestLoadEXE(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	task := NewTask16(m, 1, "t.exe")

	// Body: a segment word to relocate, then code
	body := []byte{0x00, 0x00, 0x90, 0xC3}
	img := buildEXE(body, []uint16{0x0000})
	if err := LoadEXE(task, img, ""); err != nil {
		t.Fatal(err)
	}
	c := task.cpu16

	loadSeg := task.pspSeg + pspParagraphs
	if c.CS != loadSeg {
		t.Errorf("CS: got 0x%04X, want 0x%04X", c.CS, loadSeg)
	}
	if c.IP != 0 || c.SP != 0x0800 {
		t.Errorf("entry: IP=0x%04X SP=0x%04X", c.IP, c.SP)
	}
	if c.DS != task.pspSeg || c.ES != task.pspSeg {
		t.Error("DS and ES point at the PSP on entry")
	}

	// The relocated word holds the load segment
	if got := c.mem.Read16(loadSeg, 0); got != loadSeg {
		t.Errorf("relocation: got 0x%04X, want 0x%04X", got, loadSeg)
	}
	// Unrelocated bytes are untouched
	if c.mem.Read8(loadSeg, 2) != 0x90 {
		t.Error("body corrupted by relocation")
	}
}

func TestLoadEXE_truncated(t *testing.T) {
	m := NewMachine(NewMemFilesystem())
	task := NewTask16(m, 1, "bad.exe")
	if err := LoadEXE(task, []byte{'M', 'Z', 1, 2, 3}, ""); err == nil {
		t.Error("truncated header should fail")
	}
}

func TestLoadELF64(t *testing.T) {
	img := buildTestELF(t, 0x401000, []byte{
		0xB8, 0x00, 0x00, 0x00, 0x00, // MOV EAX, 0 (sysExit)
		0x0F, 0x05, // SYSCALL
	})
	m := NewMachine(NewMemFilesystem())
	task, err := m.Spawn("t.elf", img, "")
	if err != nil {
		t.Fatal(err)
	}
	if task.cpu64 == nil {
		t.Fatal("ELF should produce a 64-bit task")
	}
	if task.cpu64.RIP != 0x401000 {
		t.Errorf("entry RIP: got 0x%X, want 0x401000", task.cpu64.RIP)
	}
	if task.cpu64.Regs[regRSP] <= 0x401000 {
		t.Error("stack should sit above the load segments")
	}

	for i := 0; i < 10 && task.State != TaskTerminated; i++ {
		m.sched.Schedule()
	}
	if task.State != TaskTerminated {
		t.Error("exit syscall should terminate the task")
	}
}

// buildTestELF emits a minimal ELF64 ET_EXEC with one PT_LOAD segment
func buildTestELF(t *testing.T, vaddr uint64, code []byte) []byte {
	t.Helper()
	le := binary.LittleEndian
	const ehSize = 64
	const phSize = 56
	fileOff := uint64(ehSize + phSize)

	img := make([]byte, int(fileOff)+len(code))
	copy(img, []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0})
	le.PutUint16(img[16:], 2)  // ET_EXEC
	le.PutUint16(img[18:], 62) // EM_X86_64
	le.PutUint32(img[20:], 1)
	le.PutUint64(img[24:], vaddr)  // entry
	le.PutUint64(img[32:], ehSize) // phoff
	le.PutUint16(img[52:], ehSize)
	le.PutUint16(img[54:], phSize)
	le.PutUint16(img[56:], 1) // phnum

	ph := img[ehSize:]
	le.PutUint32(ph[0:], 1) // PT_LOAD
	le.PutUint32(ph[4:], 5) // R+X
	le.PutUint64(ph[8:], fileOff)
	le.PutUint64(ph[16:], vaddr)
	le.PutUint64(ph[24:], vaddr)
	le.PutUint64(ph[32:], uint64(len(code))) // filesz
	le.PutUint64(ph[40:], uint64(len(code))) // memsz
	le.PutUint64(ph[48:], 0x1000)

	copy(img[fileOff:], code)
	return img
}
