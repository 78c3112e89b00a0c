// main.go - Main entry point for IntuitionDOS
//
// Loads one or more DOS or ELF program images and runs them under the
// cooperative scheduler. Three frontends: the ebiten window (default),
// plain terminal mode (-t) and headless scripted mode (-script).
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	var (
		terminalMode bool
		headless     bool
		dir          string
		script       string
		args         string
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.BoolVar(&terminalMode, "t", false, "Run in the terminal instead of a window")
	flagSet.BoolVar(&headless, "headless", false, "Run without any display, for scripted use")
	flagSet.StringVar(&dir, "dir", ".", "Host directory exposed to guest file services")
	flagSet.StringVar(&script, "script", "", "Lua script to run against the machine")
	flagSet.StringVar(&args, "args", "", "Command tail passed to the first program")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./intuition_dos [-t|-headless] [-dir path] [-script file.lua] [-args tail] program.com|program.exe|program.elf ...")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			flagSet.Usage()
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if flagSet.NArg() == 0 && script == "" {
		flagSet.Usage()
		os.Exit(1)
	}

	fs, err := NewDirFilesystem(dir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	m := NewMachine(fs)

	for i, name := range flagSet.Args() {
		image, err := os.ReadFile(name)
		if err != nil {
			fmt.Printf("Error loading %s: %v\n", name, err)
			os.Exit(1)
		}
		tail := ""
		if i == 0 {
			tail = args
		}
		if _, err := m.Spawn(name, image, tail); err != nil {
			fmt.Printf("Error loading %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	if script != "" {
		sh := NewScriptHost(m)
		defer sh.Close()
		if err := sh.RunFile(script); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch {
	case headless:
		m.Run(nil)
	case terminalMode:
		runTerminal(m)
	default:
		runWindowed(m)
	}
}

// runTerminal mirrors screen output to stdout and feeds raw stdin
// keystrokes into the key queue
func runTerminal(m *Machine) {
	m.screen.SetTTY(os.Stdout)
	host := NewTerminalHost(m.keys)
	host.Start()
	defer host.Stop()
	m.Run(nil)
}
