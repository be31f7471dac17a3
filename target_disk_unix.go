// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package safeextract

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// lchown changes the owner of path itself.
func lchown(path string, uid, gid int) error {
	if err := os.Lchown(path, uid, gid); err != nil {
		return fmt.Errorf("chown failed: %w", err)
	}
	return nil
}

// lchtimes modifies the access and modified timestamps of a symbolic link.
func lchtimes(path string, atime, mtime time.Time) error {
	return unix.Lutimes(path, []unix.Timeval{
		unixTimeval(atime),
		unixTimeval(mtime),
	})
}

// unixTimeval converts a time.Time to a unix.Timeval. Note that it always rounds
// up to the nearest microsecond, so even one nanosecond past the previous nanosecond
// will be rounded up to the next microsecond.
func unixTimeval(t time.Time) unix.Timeval {
	return unix.NsecToTimeval(t.UnixNano())
}

// canMaintainSymlinkTimestamps reports if timestamps of symbolic links
// themselves can be changed. os.Chtimes follows links.
const canMaintainSymlinkTimestamps = true
