// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory [Target]. It is a map of cleaned paths to
// [MemoryEntry] values. Permissions are recorded, not enforced. Parent
// directories are required like on disk, except for the volume root.
type Memory struct {
	files sync.Map // map[string]*MemoryEntry
}

// NewMemory creates a new in-memory filesystem.
func NewMemory() *Memory {
	return &Memory{}
}

// CreateFile creates a file in the in-memory filesystem. With
// [CreateNewOnly] an existing entry makes it fail with [io/fs.ErrExist].
func (m *Memory) CreateFile(path string, src io.Reader, mode fs.FileMode, createMode CreateMode, maxSize int64) (int64, error) {
	path = filepath.Clean(path)
	if err := m.requireParent("open", path); err != nil {
		return 0, err
	}

	if e, ok := m.load(path); ok {
		if createMode == CreateNewOnly {
			return 0, &fs.PathError{Op: "open", Path: path, Err: fs.ErrExist}
		}
		if e.FileInfo.IsDir() {
			return 0, &fs.PathError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
		}
	}

	var buf bytes.Buffer
	n, err := io.Copy(limitWriter(&buf, maxSize), src)
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	m.files.Store(path, &MemoryEntry{
		FileInfo: newMemoryFileInfo(filepath.Base(path), n, mode.Perm()),
		Data:     buf.Bytes(),
	})
	return n, nil
}

// CreateDir creates path and all missing parents. Existing directories are
// left untouched.
func (m *Memory) CreateDir(path string, mode fs.FileMode) error {
	path = filepath.Clean(path)

	if e, ok := m.load(path); ok {
		if e.FileInfo.IsDir() {
			return nil
		}
		if e.FileInfo.Mode()&fs.ModeSymlink != 0 {
			if fi, err := m.Stat(path); err == nil && fi.IsDir() {
				return nil
			}
		}
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}

	if parent := filepath.Dir(path); parent != path {
		if err := m.CreateDir(parent, mode); err != nil {
			return err
		}
	}

	m.files.Store(path, &MemoryEntry{
		FileInfo: newMemoryFileInfo(filepath.Base(path), 0, mode.Perm()|fs.ModeDir),
	})
	return nil
}

// CreateSymlink creates newName as symbolic link to oldName.
func (m *Memory) CreateSymlink(oldName string, newName string, overwrite bool) error {
	newName = filepath.Clean(newName)
	if err := m.requireParent("symlink", newName); err != nil {
		return err
	}
	if _, ok := m.load(newName); ok && !overwrite {
		return &fs.PathError{Op: "symlink", Path: newName, Err: fs.ErrExist}
	}

	m.files.Store(newName, &MemoryEntry{
		FileInfo: newMemoryFileInfo(filepath.Base(newName), 0, 0777|fs.ModeSymlink),
		Data:     []byte(oldName),
	})
	return nil
}

// Lstat returns the FileInfo for path without following a symlink.
func (m *Memory) Lstat(path string) (fs.FileInfo, error) {
	path = filepath.Clean(path)
	if e, ok := m.load(path); ok {
		return e.FileInfo, nil
	}
	if filepath.Dir(path) == path {
		return &MemoryFileInfo{name: path, mode: fs.ModeDir | 0755}, nil
	}
	return nil, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
}

// Stat returns the FileInfo for path. A symlink is followed.
func (m *Memory) Stat(path string) (fs.FileInfo, error) {
	return m.stat(filepath.Clean(path), 0)
}

// maxSymlinkHops bounds the symlink chain followed by Stat.
const maxSymlinkHops = 40

func (m *Memory) stat(path string, hops int) (fs.FileInfo, error) {
	if hops > maxSymlinkHops {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fmt.Errorf("too many levels of symbolic links")}
	}
	fi, err := m.Lstat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		return fi, nil
	}
	e, _ := m.load(path)
	return m.stat(m.linkDestination(path, string(e.Data)), hops+1)
}

// Readlink returns the target of the symlink at path.
func (m *Memory) Readlink(path string) (string, error) {
	path = filepath.Clean(path)
	e, ok := m.load(path)
	if !ok {
		return "", &fs.PathError{Op: "readlink", Path: path, Err: fs.ErrNotExist}
	}
	if e.FileInfo.Mode()&fs.ModeSymlink == 0 {
		return "", &fs.PathError{Op: "readlink", Path: path, Err: fs.ErrInvalid}
	}
	return string(e.Data), nil
}

// ReadFile returns the content of the file at path. A symlink is followed.
func (m *Memory) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	for hops := 0; hops <= maxSymlinkHops; hops++ {
		e, ok := m.load(path)
		if !ok {
			return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
		}
		switch {
		case e.FileInfo.IsDir():
			return nil, &fs.PathError{Op: "read", Path: path, Err: fmt.Errorf("is a directory")}
		case e.FileInfo.Mode()&fs.ModeSymlink != 0:
			path = m.linkDestination(path, string(e.Data))
		default:
			return bytes.Clone(e.Data), nil
		}
	}
	return nil, &fs.PathError{Op: "read", Path: path, Err: fmt.Errorf("too many levels of symbolic links")}
}

// Remove removes the entry at path.
func (m *Memory) Remove(path string) error {
	path = filepath.Clean(path)
	if _, ok := m.load(path); !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	m.files.Delete(path)
	return nil
}

// Paths returns the sorted paths of all entries.
func (m *Memory) Paths() []string {
	var paths []string
	m.files.Range(func(key, _ any) bool {
		paths = append(paths, key.(string))
		return true
	})
	sort.Strings(paths)
	return paths
}

// Chmod changes the permission bits of the entry at name. A symlink is followed.
func (m *Memory) Chmod(name string, mode fs.FileMode) error {
	e, err := m.resolveEntry("chmod", name)
	if err != nil {
		return err
	}
	fi := e.FileInfo.(*MemoryFileInfo)
	fi.mode = fi.mode.Type() | mode.Perm()
	return nil
}

// Chtimes changes the modification time of the entry at name. A symlink is followed.
func (m *Memory) Chtimes(name string, atime, mtime time.Time) error {
	e, err := m.resolveEntry("chtimes", name)
	if err != nil {
		return err
	}
	e.FileInfo.(*MemoryFileInfo).modTime = mtime
	return nil
}

// Lchtimes changes the modification time of the entry at name itself.
func (m *Memory) Lchtimes(name string, atime, mtime time.Time) error {
	name = filepath.Clean(name)
	e, ok := m.load(name)
	if !ok {
		return &fs.PathError{Op: "lchtimes", Path: name, Err: fs.ErrNotExist}
	}
	e.FileInfo.(*MemoryFileInfo).modTime = mtime
	return nil
}

// Chown changes the owner of the entry at name itself. An id of -1 is left
// unchanged.
func (m *Memory) Chown(name string, uid, gid int) error {
	name = filepath.Clean(name)
	e, ok := m.load(name)
	if !ok {
		return &fs.PathError{Op: "lchown", Path: name, Err: fs.ErrNotExist}
	}
	fi := e.FileInfo.(*MemoryFileInfo)
	if uid != -1 {
		fi.uid = uid
	}
	if gid != -1 {
		fi.gid = gid
	}
	return nil
}

func (m *Memory) load(path string) (*MemoryEntry, bool) {
	e, ok := m.files.Load(path)
	if !ok {
		return nil, false
	}
	return e.(*MemoryEntry), true
}

// resolveEntry returns the entry at name, following symlinks.
func (m *Memory) resolveEntry(op string, name string) (*MemoryEntry, error) {
	name = filepath.Clean(name)
	for hops := 0; hops <= maxSymlinkHops; hops++ {
		e, ok := m.load(name)
		if !ok {
			return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		if e.FileInfo.Mode()&fs.ModeSymlink == 0 {
			return e, nil
		}
		name = m.linkDestination(name, string(e.Data))
	}
	return nil, &fs.PathError{Op: op, Path: name, Err: fmt.Errorf("too many levels of symbolic links")}
}

// linkDestination resolves target of the link at path.
func (m *Memory) linkDestination(path string, target string) string {
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(filepath.Dir(path), target)
}

// requireParent fails if the parent of path is not an existing directory.
func (m *Memory) requireParent(op string, path string) error {
	parent := filepath.Dir(path)
	if parent == path || parent == "." {
		return nil
	}
	fi, err := m.Stat(parent)
	if err != nil {
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
	}
	if !fi.IsDir() {
		return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// MemoryEntry is an entry in the in-memory filesystem
type MemoryEntry struct {
	FileInfo fs.FileInfo
	Data     []byte
}

// MemoryFileInfo is a FileInfo implementation for the in-memory filesystem
type MemoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	uid     int
	gid     int
}

// newMemoryFileInfo returns the FileInfo of a new entry, owned by the
// current process like a file created on disk.
func newMemoryFileInfo(name string, size int64, mode fs.FileMode) *MemoryFileInfo {
	return &MemoryFileInfo{name: name, size: size, mode: mode, modTime: time.Now(), uid: os.Getuid(), gid: os.Getgid()}
}

// Name returns the name of the file
func (fi *MemoryFileInfo) Name() string {
	return fi.name
}

// Size returns the size of the file
func (fi *MemoryFileInfo) Size() int64 {
	return fi.size
}

// Mode returns the mode of the file
func (fi *MemoryFileInfo) Mode() fs.FileMode {
	return fi.mode
}

// ModTime returns the modification time of the file
func (fi *MemoryFileInfo) ModTime() time.Time {
	return fi.modTime
}

// IsDir returns true if the file is a directory
func (fi *MemoryFileInfo) IsDir() bool {
	return fi.mode.IsDir()
}

// Owner returns the numeric owner and group of the file
func (fi *MemoryFileInfo) Owner() (uid, gid int) {
	return fi.uid, fi.gid
}

// Sys returns the underlying data source (nil for in-memory filesystem)
func (fi *MemoryFileInfo) Sys() any {
	return nil
}
