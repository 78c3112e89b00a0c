// script_lua.go - Lua automation bindings
//
// Exposes the machine to Lua scripts for scripted runs and test
// harnesses: memory peek/poke, register access, stepping, program
// loading and screen scraping. Scripts drive a machine that is not
// otherwise running, so no locking against the scheduler is needed.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

type ScriptHost struct {
	m *Machine
	L *lua.LState
}

func NewScriptHost(m *Machine) *ScriptHost {
	sh := &ScriptHost{m: m, L: lua.NewState()}
	sh.register()
	return sh
}

func (sh *ScriptHost) Close() {
	sh.L.Close()
}

// RunFile executes a script file against the machine
func (sh *ScriptHost) RunFile(path string) error {
	if err := sh.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// RunString executes inline script source
func (sh *ScriptHost) RunString(src string) error {
	return sh.L.DoString(src)
}

// firstTask returns the task scripts operate on
func (sh *ScriptHost) firstTask() *Task {
	tasks := sh.m.sched.Tasks()
	if len(tasks) == 0 {
		return nil
	}
	return tasks[0]
}

func (sh *ScriptHost) register() {
	L := sh.L

	L.SetGlobal("load_program", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		args := L.OptString(2, "")
		image, err := os.ReadFile(name)
		if err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		if _, err := sh.m.Spawn(name, image, args); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetGlobal("step", L.NewFunction(func(L *lua.LState) int {
		n := L.OptInt(1, 1)
		t := sh.firstTask()
		if t == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		t.StepBudget(n)
		L.Push(lua.LNumber(n))
		return 1
	}))

	L.SetGlobal("run", L.NewFunction(func(L *lua.LState) int {
		maxTicks := L.OptInt(1, 1<<20)
		ticks := 0
		for sh.m.sched.HasRunningTasks() && ticks < maxTicks {
			sh.m.sched.Schedule()
			ticks++
		}
		L.Push(lua.LNumber(ticks))
		return 1
	}))

	L.SetGlobal("peek", L.NewFunction(func(L *lua.LState) int {
		addr := uint32(L.CheckInt64(1))
		t := sh.firstTask()
		var v byte
		if t != nil {
			if t.mem16 != nil {
				v = t.mem16.ReadLinear8(addr)
			} else if b, ok := t.mem64.Read8(uint64(addr)); ok {
				v = b
			}
		}
		L.Push(lua.LNumber(v))
		return 1
	}))

	L.SetGlobal("poke", L.NewFunction(func(L *lua.LState) int {
		addr := uint32(L.CheckInt64(1))
		val := byte(L.CheckInt(2))
		t := sh.firstTask()
		if t != nil {
			if t.mem16 != nil {
				t.mem16.WriteLinear8(addr, val)
			} else {
				t.mem64.Write8(uint64(addr), val)
			}
		}
		return 0
	}))

	L.SetGlobal("reg", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		t := sh.firstTask()
		if t == nil {
			L.Push(lua.LNil)
			return 1
		}
		v, ok := readReg(t, name)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(v))
		return 1
	}))

	L.SetGlobal("setreg", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		val := uint64(L.CheckInt64(2))
		t := sh.firstTask()
		if t != nil {
			writeReg(t, name, val)
		}
		return 0
	}))

	L.SetGlobal("screen_line", L.NewFunction(func(L *lua.LState) int {
		row := L.CheckInt(1)
		L.Push(lua.LString(sh.m.screen.Line(row)))
		return 1
	}))

	L.SetGlobal("send_keys", L.NewFunction(func(L *lua.LState) int {
		for _, b := range []byte(L.CheckString(1)) {
			sh.m.keys.PushASCII(b)
		}
		return 0
	}))
}

func readReg(t *Task, name string) (uint64, bool) {
	if t.cpu16 != nil {
		c := t.cpu16
		switch name {
		case "ax":
			return uint64(c.AX), true
		case "bx":
			return uint64(c.BX), true
		case "cx":
			return uint64(c.CX), true
		case "dx":
			return uint64(c.DX), true
		case "si":
			return uint64(c.SI), true
		case "di":
			return uint64(c.DI), true
		case "bp":
			return uint64(c.BP), true
		case "sp":
			return uint64(c.SP), true
		case "ip":
			return uint64(c.IP), true
		case "cs":
			return uint64(c.CS), true
		case "ds":
			return uint64(c.DS), true
		case "es":
			return uint64(c.ES), true
		case "ss":
			return uint64(c.SS), true
		case "flags":
			return uint64(c.Flags), true
		}
		return 0, false
	}
	c := t.cpu64
	if name == "rip" {
		return c.RIP, true
	}
	if name == "rflags" {
		return c.RFlags, true
	}
	if idx, ok := regIndex64(name); ok {
		return c.Regs[idx], true
	}
	return 0, false
}

func writeReg(t *Task, name string, v uint64) {
	if t.cpu16 != nil {
		c := t.cpu16
		switch name {
		case "ax":
			c.AX = uint16(v)
		case "bx":
			c.BX = uint16(v)
		case "cx":
			c.CX = uint16(v)
		case "dx":
			c.DX = uint16(v)
		case "si":
			c.SI = uint16(v)
		case "di":
			c.DI = uint16(v)
		case "bp":
			c.BP = uint16(v)
		case "sp":
			c.SP = uint16(v)
		case "ip":
			c.IP = uint16(v)
		case "cs":
			c.CS = uint16(v)
		case "ds":
			c.DS = uint16(v)
		case "es":
			c.ES = uint16(v)
		case "ss":
			c.SS = uint16(v)
		case "flags":
			c.Flags = uint16(v) | x86FlagFixed
		}
		return
	}
	c := t.cpu64
	switch name {
	case "rip":
		c.RIP = v
	case "rflags":
		c.RFlags = v | x86FlagFixed
	default:
		if idx, ok := regIndex64(name); ok {
			c.Regs[idx] = v
		}
	}
}

func regIndex64(name string) (int, bool) {
	names := []string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
