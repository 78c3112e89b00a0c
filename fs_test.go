// fs_test.go - Guest filesystem sandbox tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirFS_RoundTrip(t *testing.T) {
	fs, err := NewDirFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile("DATA.BIN", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := fs.ReadFile("DATA.BIN")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("read back % X", got)
	}
	size, err := fs.Stat("DATA.BIN")
	if err != nil || size != 3 {
		t.Errorf("stat: size=%d err=%v", size, err)
	}
	if err := fs.Remove("DATA.BIN"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.ReadFile("DATA.BIN"); err == nil {
		t.Error("file should be gone")
	}
}

func TestDirFS_RejectsEscape(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(filepath.Dir(dir), "escape.txt")
	os.WriteFile(outside, []byte("secret"), 0644)
	defer os.Remove(outside)

	fs, err := NewDirFilesystem(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"../escape.txt",
		"..\\escape.txt",
		"/etc/passwd",
		"sub/../../escape.txt",
	} {
		if _, err := fs.ReadFile(name); err == nil {
			t.Errorf("path %q should be rejected", name)
		}
	}
}

func TestDirFS_BackslashPaths(t *testing.T) {
	fs, err := NewDirFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile("SUB\\FILE.TXT", []byte("x")); err != nil {
		// Guests use DOS separators; subdirectories may legitimately
		// not exist yet, but the name itself must not be rejected as
		// an escape
		if _, statErr := fs.Stat("FILE.TXT"); statErr == nil {
			t.Error("backslash path resolved to the wrong place")
		}
	}
}

func TestDirFS_MissingBase(t *testing.T) {
	if _, err := NewDirFilesystem("/nonexistent/base/dir"); err == nil {
		t.Error("missing base directory should fail")
	}
}

func TestMemFS_CaseInsensitive(t *testing.T) {
	fs := NewMemFilesystem()
	fs.WriteFile("readme.txt", []byte("hi"))
	if _, err := fs.ReadFile("README.TXT"); err != nil {
		t.Error("DOS names are case-insensitive")
	}
}

func TestMemFS_DefensiveCopies(t *testing.T) {
	fs := NewMemFilesystem()
	buf := []byte("abc")
	fs.WriteFile("F", buf)
	buf[0] = 'z'
	got, _ := fs.ReadFile("F")
	if got[0] != 'a' {
		t.Error("stored data should not alias the caller's buffer")
	}
	got[1] = 'z'
	again, _ := fs.ReadFile("F")
	if again[1] != 'b' {
		t.Error("returned data should not alias the store")
	}
}
