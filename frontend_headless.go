//go:build headless

// frontend_headless.go - Windowed frontend stub for headless builds
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "fmt"

// runWindowed falls back to a bare scheduler loop when the binary is
// built without display support
func runWindowed(m *Machine) {
	fmt.Println("Built without display support, running headless")
	m.Run(nil)
}
