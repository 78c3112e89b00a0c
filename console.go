// console.go - Text console and keyboard queue
//
// TextScreen is the backend-agnostic 80x25 cell buffer every video
// surface renders from; KeyQueue is the BIOS-style typeahead buffer the
// hosts feed into. The DOS and BIOS layers talk only to these.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"io"
	"sync"
)

const (
	screenCols = 80
	screenRows = 25

	// Default text attribute: light grey on black
	attrDefault = 0x07
)

// Console is the display surface consumed by the DOS and BIOS layers
type Console interface {
	Print(s string)
	PutChar(ch byte)
	PutCharAttr(ch, attr byte, count int)
	Clear(attr byte)
	SetCursor(row, col byte)
	GetCursor() (row, col byte)
	ReadCell(row, col byte) (ch, attr byte)
	ScrollUp(lines, attr byte, top, left, bottom, right byte)
	ScrollDown(lines, attr byte, top, left, bottom, right byte)
}

// Keyboard is the input surface consumed by the DOS and BIOS layers
type Keyboard interface {
	// GetScancode removes the next key. The value is scan<<8 | ascii.
	GetScancode() (uint16, bool)
	// Peek reports the next key without removing it.
	Peek() (uint16, bool)
}

// Cell is one character position on the screen
type Cell struct {
	Ch   byte
	Attr byte
}

// TextScreen implements Console over an in-memory cell grid. An
// optional tty writer mirrors teletype output to the host terminal,
// and an optional bell function sounds BEL.
type TextScreen struct {
	mu     sync.Mutex
	cells  [screenRows][screenCols]Cell
	curRow byte
	curCol byte
	dirty  bool

	tty  io.Writer // may be nil
	bell func()    // may be nil
}

// NewTextScreen creates a cleared 80x25 text screen
func NewTextScreen() *TextScreen {
	ts := &TextScreen{}
	ts.Clear(attrDefault)
	return ts
}

// SetTTY mirrors teletype output to w (used by the terminal host)
func (ts *TextScreen) SetTTY(w io.Writer) {
	ts.mu.Lock()
	ts.tty = w
	ts.mu.Unlock()
}

// SetBell installs the BEL callback
func (ts *TextScreen) SetBell(fn func()) {
	ts.mu.Lock()
	ts.bell = fn
	ts.mu.Unlock()
}

// TakeDirty reports and clears the redraw flag. Render backends poll
// this once per frame.
func (ts *TextScreen) TakeDirty() bool {
	ts.mu.Lock()
	d := ts.dirty
	ts.dirty = false
	ts.mu.Unlock()
	return d
}

// Snapshot copies the cell grid and cursor for a renderer
func (ts *TextScreen) Snapshot() ([screenRows][screenCols]Cell, byte, byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.cells, ts.curRow, ts.curCol
}

// Line returns row r as a trimmed string (test and scripting helper)
func (ts *TextScreen) Line(r int) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if r < 0 || r >= screenRows {
		return ""
	}
	buf := make([]byte, screenCols)
	for i := 0; i < screenCols; i++ {
		ch := ts.cells[r][i].Ch
		if ch == 0 {
			ch = ' '
		}
		buf[i] = ch
	}
	end := screenCols
	for end > 0 && buf[end-1] == ' ' {
		end--
	}
	return string(buf[:end])
}

func (ts *TextScreen) Print(s string) {
	for i := 0; i < len(s); i++ {
		ts.PutChar(s[i])
	}
}

// PutChar writes one teletype character, honouring CR, LF, BS, BEL
// and TAB, scrolling at the bottom of the screen.
func (ts *TextScreen) PutChar(ch byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.putCharLocked(ch)
}

func (ts *TextScreen) putCharLocked(ch byte) {
	ts.dirty = true
	switch ch {
	case '\r':
		ts.curCol = 0
	case '\n':
		ts.curRow++
	case 0x08: // BS
		if ts.curCol > 0 {
			ts.curCol--
			ts.cells[ts.curRow][ts.curCol] = Cell{' ', attrDefault}
		}
	case 0x07: // BEL
		if ts.bell != nil {
			ts.bell()
		}
	case '\t':
		next := (ts.curCol/8 + 1) * 8
		for ts.curCol < next && ts.curCol < screenCols {
			ts.cells[ts.curRow][ts.curCol] = Cell{' ', attrDefault}
			ts.curCol++
		}
	default:
		ts.cells[ts.curRow][ts.curCol] = Cell{ch, attrDefault}
		ts.curCol++
	}
	if ts.curCol >= screenCols {
		ts.curCol = 0
		ts.curRow++
	}
	if ts.curRow >= screenRows {
		ts.scrollUpLocked(1, attrDefault, 0, 0, screenRows-1, screenCols-1)
		ts.curRow = screenRows - 1
	}
	if ts.tty != nil {
		ts.tty.Write([]byte{ch})
	}
}

// PutCharAttr writes ch with an explicit attribute count times at the
// cursor without moving it (the INT 10h AH=09 contract)
func (ts *TextScreen) PutCharAttr(ch, attr byte, count int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.dirty = true
	row, col := ts.curRow, ts.curCol
	for i := 0; i < count; i++ {
		if row >= screenRows {
			break
		}
		ts.cells[row][col] = Cell{ch, attr}
		col++
		if col >= screenCols {
			col = 0
			row++
		}
	}
}

func (ts *TextScreen) Clear(attr byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.dirty = true
	for r := 0; r < screenRows; r++ {
		for c := 0; c < screenCols; c++ {
			ts.cells[r][c] = Cell{' ', attr}
		}
	}
	ts.curRow = 0
	ts.curCol = 0
}

func (ts *TextScreen) SetCursor(row, col byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if row < screenRows && col < screenCols {
		ts.curRow = row
		ts.curCol = col
		ts.dirty = true
	}
}

func (ts *TextScreen) GetCursor() (byte, byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.curRow, ts.curCol
}

func (ts *TextScreen) ReadCell(row, col byte) (byte, byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if row >= screenRows || col >= screenCols {
		return 0, 0
	}
	cell := ts.cells[row][col]
	return cell.Ch, cell.Attr
}

// ScrollUp scrolls a region up. lines=0 clears the whole region, per
// the INT 10h AH=06 contract.
func (ts *TextScreen) ScrollUp(lines, attr byte, top, left, bottom, right byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.scrollUpLocked(lines, attr, top, left, bottom, right)
}

func (ts *TextScreen) scrollUpLocked(lines, attr byte, top, left, bottom, right byte) {
	ts.dirty = true
	top, left, bottom, right = clampRegion(top, left, bottom, right)
	height := bottom - top + 1
	if lines == 0 || lines >= height {
		ts.fillRegionLocked(attr, top, left, bottom, right)
		return
	}
	for r := top; r+lines <= bottom; r++ {
		for c := left; c <= right; c++ {
			ts.cells[r][c] = ts.cells[r+lines][c]
		}
	}
	ts.fillRegionLocked(attr, bottom-lines+1, left, bottom, right)
}

// ScrollDown scrolls a region down (INT 10h AH=07)
func (ts *TextScreen) ScrollDown(lines, attr byte, top, left, bottom, right byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.dirty = true
	top, left, bottom, right = clampRegion(top, left, bottom, right)
	height := bottom - top + 1
	if lines == 0 || lines >= height {
		ts.fillRegionLocked(attr, top, left, bottom, right)
		return
	}
	for r := bottom; r >= top+lines; r-- {
		for c := left; c <= right; c++ {
			ts.cells[r][c] = ts.cells[r-lines][c]
		}
	}
	ts.fillRegionLocked(attr, top, left, top+lines-1, right)
}

func (ts *TextScreen) fillRegionLocked(attr byte, top, left, bottom, right byte) {
	for r := top; r <= bottom; r++ {
		for c := left; c <= right; c++ {
			ts.cells[r][c] = Cell{' ', attr}
		}
	}
}

func clampRegion(top, left, bottom, right byte) (byte, byte, byte, byte) {
	if bottom >= screenRows {
		bottom = screenRows - 1
	}
	if right >= screenCols {
		right = screenCols - 1
	}
	if top > bottom {
		top = bottom
	}
	if left > right {
		left = right
	}
	return top, left, bottom, right
}

// -----------------------------------------------------------------------------
// Keyboard queue
// -----------------------------------------------------------------------------

// KeyQueue implements Keyboard as a bounded FIFO of scan<<8|ascii words
type KeyQueue struct {
	mu   sync.Mutex
	keys []uint16
}

const keyQueueMax = 64

func NewKeyQueue() *KeyQueue {
	return &KeyQueue{}
}

// Push queues a full scancode word
func (q *KeyQueue) Push(key uint16) {
	q.mu.Lock()
	if len(q.keys) < keyQueueMax {
		q.keys = append(q.keys, key)
	}
	q.mu.Unlock()
}

// PushASCII queues a plain character, deriving the scan half from the
// PC/XT layout table
func (q *KeyQueue) PushASCII(ch byte) {
	q.Push(uint16(asciiScancode(ch))<<8 | uint16(ch))
}

func (q *KeyQueue) GetScancode() (uint16, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.keys) == 0 {
		return 0, false
	}
	k := q.keys[0]
	q.keys = q.keys[1:]
	return k, true
}

func (q *KeyQueue) Peek() (uint16, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.keys) == 0 {
		return 0, false
	}
	return q.keys[0], true
}

// asciiScancode maps a character to its PC/XT make code. Guests mostly
// ignore the scan half for printable keys, so the unshifted code is
// good enough for shifted characters too.
func asciiScancode(ch byte) byte {
	switch {
	case ch >= 'a' && ch <= 'z':
		return letterScan[ch-'a']
	case ch >= 'A' && ch <= 'Z':
		return letterScan[ch-'A']
	case ch >= '1' && ch <= '9':
		return 0x02 + (ch - '1')
	case ch == '0':
		return 0x0B
	}
	switch ch {
	case 0x1B:
		return 0x01
	case 0x08:
		return 0x0E
	case '\t':
		return 0x0F
	case '\r', '\n':
		return 0x1C
	case ' ':
		return 0x39
	case '-', '_':
		return 0x0C
	case '=', '+':
		return 0x0D
	case ';', ':':
		return 0x27
	case '\'', '"':
		return 0x28
	case ',', '<':
		return 0x33
	case '.', '>':
		return 0x34
	case '/', '?':
		return 0x35
	case '\\', '|':
		return 0x2B
	case '[', '{':
		return 0x1A
	case ']', '}':
		return 0x1B
	case '`', '~':
		return 0x29
	}
	return 0
}

// letterScan holds make codes for 'a'..'z' in alphabetical order
var letterScan = [26]byte{
	0x1E, 0x30, 0x2E, 0x20, 0x12, 0x21, 0x22, 0x23, 0x17,
	0x24, 0x25, 0x26, 0x32, 0x31, 0x18, 0x19, 0x10, 0x13,
	0x1F, 0x14, 0x16, 0x2F, 0x11, 0x2D, 0x15, 0x2C,
}
