//go:build !headless

// screen_backend_ebiten.go - Ebiten window for the text screen
//
// Renders the 80x25 cell grid with the CGA palette and feeds typed
// characters, special keys and clipboard pastes into the key queue.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const (
	cellW       = 7
	cellH       = 13
	screenPixW  = screenCols * cellW
	screenPixH  = screenRows * cellH
	windowScale = 2
)

// cgaPalette maps the low 4 attribute bits to foreground colours and
// bits 4-6 to background colours
var cgaPalette = [16]color.RGBA{
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0xAA, 0xFF},
	{0x00, 0xAA, 0x00, 0xFF}, {0x00, 0xAA, 0xAA, 0xFF},
	{0xAA, 0x00, 0x00, 0xFF}, {0xAA, 0x00, 0xAA, 0xFF},
	{0xAA, 0x55, 0x00, 0xFF}, {0xAA, 0xAA, 0xAA, 0xFF},
	{0x55, 0x55, 0x55, 0xFF}, {0x55, 0x55, 0xFF, 0xFF},
	{0x55, 0xFF, 0x55, 0xFF}, {0x55, 0xFF, 0xFF, 0xFF},
	{0xFF, 0x55, 0x55, 0xFF}, {0xFF, 0x55, 0xFF, 0xFF},
	{0xFF, 0xFF, 0x55, 0xFF}, {0xFF, 0xFF, 0xFF, 0xFF},
}

type EbitenScreen struct {
	screen *TextScreen
	keys   *KeyQueue

	mu         sync.Mutex
	cells      [screenRows][screenCols]Cell
	curRow     byte
	curCol     byte
	fullscreen bool
	running    bool
	done       chan struct{}

	clipboardOnce sync.Once
	clipboardOK   bool
}

func NewEbitenScreen(screen *TextScreen, keys *KeyQueue) *EbitenScreen {
	return &EbitenScreen{
		screen: screen,
		keys:   keys,
		done:   make(chan struct{}),
	}
}

// Start opens the window and runs the ebiten loop in a goroutine
func (es *EbitenScreen) Start() {
	es.running = true
	ebiten.SetWindowSize(screenPixW*windowScale, screenPixH*windowScale)
	ebiten.SetWindowTitle("IntuitionDOS (c) 2024 - 2026 Zayn Otley")
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		defer close(es.done)
		if err := ebiten.RunGame(es); err != nil && err != ebiten.Termination {
			fmt.Printf("Ebiten error: %v\n", err)
		}
	}()
}

func (es *EbitenScreen) Stop() {
	es.running = false
}

func (es *EbitenScreen) Done() <-chan struct{} {
	return es.done
}

func (es *EbitenScreen) Update() error {
	if ebiten.IsWindowBeingClosed() || !es.running {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		es.fullscreen = !es.fullscreen
		ebiten.SetFullscreen(es.fullscreen)
		if !es.fullscreen {
			ebiten.SetWindowSize(screenPixW*windowScale, screenPixH*windowScale)
		}
	}

	es.handleKeyboardInput()

	// Pull a fresh snapshot only when the guest touched the screen
	if es.screen.TakeDirty() {
		cells, row, col := es.screen.Snapshot()
		es.mu.Lock()
		es.cells, es.curRow, es.curCol = cells, row, col
		es.mu.Unlock()
	}
	return nil
}

func (es *EbitenScreen) handleKeyboardInput() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	// Clipboard paste: Ctrl+Shift+V
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		es.handleClipboardPaste()
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		if r > 0 && r <= 0xFF {
			es.keys.PushASCII(byte(r))
		}
	}

	for _, sk := range specialKeys {
		if inpututil.IsKeyJustPressed(sk.key) {
			es.keys.Push(sk.code)
		}
	}
}

// specialKeys maps non-printable keys to BIOS scancode words,
// scan<<8|ascii with ascii zero for the extended keys
var specialKeys = []struct {
	key  ebiten.Key
	code uint16
}{
	{ebiten.KeyEnter, 0x1C0D},
	{ebiten.KeyNumpadEnter, 0x1C0D},
	{ebiten.KeyBackspace, 0x0E08},
	{ebiten.KeyTab, 0x0F09},
	{ebiten.KeyEscape, 0x011B},
	{ebiten.KeyArrowUp, 0x4800},
	{ebiten.KeyArrowDown, 0x5000},
	{ebiten.KeyArrowLeft, 0x4B00},
	{ebiten.KeyArrowRight, 0x4D00},
	{ebiten.KeyHome, 0x4700},
	{ebiten.KeyEnd, 0x4F00},
	{ebiten.KeyDelete, 0x5300},
	{ebiten.KeyPageUp, 0x4900},
	{ebiten.KeyPageDown, 0x5100},
}

func (es *EbitenScreen) handleClipboardPaste() {
	es.clipboardOnce.Do(func() {
		es.clipboardOK = clipboard.Init() == nil
	})
	if !es.clipboardOK {
		return
	}
	for _, b := range clipboard.Read(clipboard.FmtText) {
		if b == '\n' {
			b = '\r'
		}
		es.keys.PushASCII(b)
	}
}

func (es *EbitenScreen) Draw(dst *ebiten.Image) {
	es.mu.Lock()
	cells := es.cells
	curRow, curCol := es.curRow, es.curCol
	es.mu.Unlock()

	face := basicfont.Face7x13
	for row := 0; row < screenRows; row++ {
		for col := 0; col < screenCols; col++ {
			cell := cells[row][col]
			fg := cgaPalette[cell.Attr&0x0F]
			bg := cgaPalette[(cell.Attr>>4)&0x07]
			x := col * cellW
			y := row * cellH
			if cell.Attr>>4 != 0 {
				for py := 0; py < cellH; py++ {
					for px := 0; px < cellW; px++ {
						dst.Set(x+px, y+py, bg)
					}
				}
			}
			if cell.Ch > ' ' {
				text.Draw(dst, string(rune(cell.Ch)), face, x, y+face.Ascent, fg)
			}
		}
	}

	// Cursor: two-pixel underline in the cell's foreground colour
	if int(curRow) < screenRows && int(curCol) < screenCols {
		fg := cgaPalette[cells[curRow][curCol].Attr&0x0F]
		x := int(curCol) * cellW
		y := int(curRow)*cellH + cellH - 2
		for py := 0; py < 2; py++ {
			for px := 0; px < cellW; px++ {
				dst.Set(x+px, y+py, fg)
			}
		}
	}
}

func (es *EbitenScreen) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenPixW, screenPixH
}

// runWindowed drives the machine with the ebiten window, with the
// speaker wired to the console bell when audio is available
func runWindowed(m *Machine) {
	if spk, err := NewSpeaker(); err == nil {
		spk.Start()
		defer spk.Close()
		m.screen.SetBell(spk.Beep)
	} else {
		fmt.Printf("Audio unavailable: %v\n", err)
	}

	win := NewEbitenScreen(m.screen, m.keys)
	win.Start()

	go func() {
		m.Run(func() bool {
			select {
			case <-win.Done():
				return false
			default:
				return true
			}
		})
		win.Stop()
	}()

	<-win.Done()
}
