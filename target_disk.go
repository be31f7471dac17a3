// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// TargetDisk is the [Target] for the filesystem of the operating system.
type TargetDisk struct{}

// NewTargetDisk creates a new TargetDisk.
func NewTargetDisk() *TargetDisk {
	return &TargetDisk{}
}

// CreateDir creates a directory at the specified path with the specified mode. If the directory already
// exists, nothing is done.
func (d *TargetDisk) CreateDir(path string, mode fs.FileMode) error {
	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to create directory (%w)", err)
	}
	return nil
}

// CreateFile creates a file at the specified path with src as content.
//
// The error of opening the file is returned unchanged, e.g. the
// [*io/fs.PathError] for an existing file opened with [CreateNewOnly].
func (d *TargetDisk) CreateFile(path string, src io.Reader, mode fs.FileMode, createMode CreateMode, maxSize int64) (int64, error) {
	dstFile, err := os.OpenFile(path, createMode.openFlags(), mode.Perm())
	if err != nil {
		return 0, err
	}
	defer func() {
		dstFile.Close()
	}()

	writer := limitWriter(dstFile, maxSize)
	n, err := io.Copy(writer, src)
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// CreateSymlink creates a symbolic link from newname to oldname. If
// newname already exists and overwrite is false, an error is returned.
func (d *TargetDisk) CreateSymlink(oldname string, newname string, overwrite bool) error {
	if _, err := os.Lstat(newname); !os.IsNotExist(err) {
		if !overwrite {
			return &fs.PathError{Op: "symlink", Path: newname, Err: fs.ErrExist}
		}

		if err := os.Remove(newname); err != nil {
			return fmt.Errorf("failed to overwrite file: %w", err)
		}
	}

	if err := os.Symlink(oldname, newname); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	return nil
}

// Lstat returns the FileInfo structure describing the named file.
// If there is an error, it will be of type *PathError.
func (d *TargetDisk) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

// Stat returns the FileInfo structure describing the named file.
// If there is an error, it will be of type *PathError.
func (d *TargetDisk) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// Chmod changes the mode of the named file to mode.
func (d *TargetDisk) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(name, mode.Perm())
}

// Chtimes changes the access and modification times of the named file.
func (d *TargetDisk) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Chown changes the numeric uid and gid of the named file. A symbolic link
// is changed itself.
func (d *TargetDisk) Chown(name string, uid, gid int) error {
	return lchown(name, uid, gid)
}

// Lchtimes changes the access and modification times of a symbolic link.
// It does nothing on platforms that cannot do so.
func (d *TargetDisk) Lchtimes(name string, atime, mtime time.Time) error {
	if canMaintainSymlinkTimestamps {
		return lchtimes(name, atime, mtime)
	}
	return nil
}
