// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

//go:generate mockgen -source=target.go -destination=mock_target_test.go -package=safeextract_test

// Target specifies all functions needed to resolve and write entries.
type Target interface {
	// CreateFile creates a file at path with src as content. With
	// [CreateNewOnly] an existing file makes it fail with an error matching
	// [io/fs.ErrExist], with [CreateOrReplace] an existing file is truncated.
	// The size of the file must not exceed maxSize (maxSize < 0: unlimited).
	// The number of bytes written is returned, also on error.
	CreateFile(path string, src io.Reader, mode fs.FileMode, createMode CreateMode, maxSize int64) (int64, error)

	// CreateDir creates path and all missing parents with mode. If the
	// directory already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// CreateSymlink creates newname as symbolic link to oldname. If newname
	// exists and overwrite is false, an error is returned, otherwise the
	// existing entry is replaced.
	CreateSymlink(oldname string, newname string, overwrite bool) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in
	// the destination path.
	Lstat(path string) (fs.FileInfo, error)

	// Stat see docs for os.Stat.
	Stat(path string) (fs.FileInfo, error)

	// Chmod see docs for os.Chmod.
	Chmod(name string, mode fs.FileMode) error

	// Chtimes see docs for os.Chtimes.
	Chtimes(name string, atime, mtime time.Time) error

	// Lchtimes sets the times of a symbolic link itself.
	Lchtimes(name string, atime, mtime time.Time) error

	// Chown sets the numeric owner and group of name without following a
	// symbolic link. An id of -1 is left unchanged.
	Chown(name string, uid, gid int) error
}

// NewTargetSymlinkWriter returns a [SymlinkWriter] that creates links in t.
//
// Link targets must be relative and must stay within root when resolved
// from the directory of the link, otherwise a [*PathTraversalError] is
// returned. Existing entries are replaced if cfg.Overwrite() is set.
func NewTargetSymlinkWriter(t Target, root string, cfg *Config) SymlinkWriter {
	return func(path string, linkTarget string) error {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("cannot determine absolute destination: %w", err)
		}

		if filepath.IsAbs(linkTarget) || filepath.VolumeName(linkTarget) != "" {
			return &PathTraversalError{Root: rootAbs, Path: linkTarget, Kind: KindSymlink, Reason: "absolute link target"}
		}

		// the link target is interpreted relative to the link itself
		resolved := filepath.Join(filepath.Dir(path), filepath.FromSlash(linkTarget))
		if _, ok := relativeTo(rootAbs, resolved); !ok {
			return &PathTraversalError{Root: rootAbs, Path: resolved, Kind: KindSymlink}
		}

		return t.CreateSymlink(linkTarget, path, cfg.Overwrite())
	}
}
