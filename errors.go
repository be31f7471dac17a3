// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"errors"
	"fmt"
)

var (
	// ErrPathTraversal is the sentinel behind every [*PathTraversalError].
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrUnsupportedOperation is the sentinel behind every [*UnsupportedOperationError].
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrMaxFilesExceeded is returned if the number of entries in an archive
	// exceeds the configured maximum.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded is returned if the extracted data exceeds
	// the configured maximum.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")
)

// Kinds of destinations reported by a [PathTraversalError].
const (
	KindDirectory = "directory"
	KindFile      = "file"
	KindSymlink   = "symlink"
)

// PathTraversalError reports a destination that would end up outside of the
// extraction root. It is fatal for the entry and usually means the archive
// is hostile or corrupt.
type PathTraversalError struct {
	// Root is the absolute extraction root.
	Root string

	// Path is the offending destination (or link target).
	Path string

	// Kind is one of KindDirectory, KindFile or KindSymlink.
	Kind string

	// Reason is set if the path was rejected for a reason other than
	// lexical containment, e.g. a symlink in the path.
	Reason string
}

func (e *PathTraversalError) Error() string {
	if len(e.Reason) > 0 {
		return fmt.Sprintf("entry trying to create a %s through %s: %s", e.Kind, e.Reason, e.Path)
	}
	verb := "write"
	if e.Kind != KindFile {
		verb = "create"
	}
	return fmt.Sprintf("entry trying to %s a %s outside the destination directory: %s", verb, e.Kind, e.Path)
}

// Unwrap returns [ErrPathTraversal].
func (e *PathTraversalError) Unwrap() error {
	return ErrPathTraversal
}

// UnsupportedOperationError reports an entry that cannot be materialized with
// the current configuration, e.g. a symbolic link without a link writer.
type UnsupportedOperationError struct {
	Name   string
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Name)
}

// Unwrap returns [ErrUnsupportedOperation].
func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}
