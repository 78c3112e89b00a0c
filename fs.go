// fs.go - Guest filesystem collaborators
//
// The DOS layer implements open/read/write/seek/close over whole-file
// loads and stores. DirFilesystem sandboxes a host directory for
// interactive use; MemFilesystem backs the tests.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Filesystem loads and stores whole files by guest-visible name
type Filesystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Stat(name string) (size int64, err error)
	Remove(name string) error
}

// DirFilesystem confines guest file access to one host directory.
// Guest names never escape it: absolute paths and ".." are rejected.
type DirFilesystem struct {
	baseDir string
}

// NewDirFilesystem creates a filesystem rooted at baseDir
func NewDirFilesystem(baseDir string) (*DirFilesystem, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir %q: %w", baseDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat base dir %q: %w", baseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base dir %q is not a directory", baseDir)
	}
	return &DirFilesystem{baseDir: abs}, nil
}

// resolvePath maps a guest name to a host path inside the sandbox
func (fs *DirFilesystem) resolvePath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", false
	}
	full := filepath.Join(fs.baseDir, name)
	rel, err := filepath.Rel(fs.baseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

func (fs *DirFilesystem) ReadFile(name string) ([]byte, error) {
	path, ok := fs.resolvePath(name)
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(path)
}

func (fs *DirFilesystem) WriteFile(name string, data []byte) error {
	path, ok := fs.resolvePath(name)
	if !ok {
		return os.ErrPermission
	}
	return os.WriteFile(path, data, 0o644)
}

func (fs *DirFilesystem) Stat(name string) (int64, error) {
	path, ok := fs.resolvePath(name)
	if !ok {
		return 0, os.ErrNotExist
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (fs *DirFilesystem) Remove(name string) error {
	path, ok := fs.resolvePath(name)
	if !ok {
		return os.ErrNotExist
	}
	return os.Remove(path)
}

// MemFilesystem is an in-memory Filesystem for tests and scripted runs
type MemFilesystem struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemFilesystem() *MemFilesystem {
	return &MemFilesystem{files: make(map[string][]byte)}
}

// normalize folds case and path separators the way DOS guests expect
func (fs *MemFilesystem) normalize(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "\\", "/"))
}

func (fs *MemFilesystem) ReadFile(name string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.files[fs.normalize(name)]
	if !ok {
		return nil, os.ErrNotExist
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (fs *MemFilesystem) WriteFile(name string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	fs.files[fs.normalize(name)] = stored
	return nil
}

func (fs *MemFilesystem) Stat(name string) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.files[fs.normalize(name)]
	if !ok {
		return 0, os.ErrNotExist
	}
	return int64(len(data)), nil
}

func (fs *MemFilesystem) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	key := fs.normalize(name)
	if _, ok := fs.files[key]; !ok {
		return os.ErrNotExist
	}
	delete(fs.files, key)
	return nil
}

// Names lists stored files in sorted order (test helper)
func (fs *MemFilesystem) Names() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	names := make([]string, 0, len(fs.files))
	for n := range fs.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
