// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package safeextract

import (
	"fmt"
	"runtime"
	"time"
)

// lchown is not supported on this platform.
func lchown(_ string, _, _ int) error {
	return fmt.Errorf("Chown is not supported on this platform (%s)", runtime.GOOS)
}

// lchtimes is not supported on this platform.
func lchtimes(_ string, _, _ time.Time) error {
	return fmt.Errorf("Lchtimes is not supported on this platform (%s)", runtime.GOOS)
}

// canMaintainSymlinkTimestamps reports if timestamps of symbolic links
// themselves can be changed. os.Chtimes follows links.
const canMaintainSymlinkTimestamps = false
