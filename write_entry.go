// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import "os"

// CreateMode decides how a regular file is opened for writing.
type CreateMode int

const (
	// CreateOrReplace creates the file or truncates an existing one.
	CreateOrReplace CreateMode = iota

	// CreateNewOnly creates the file and fails if it already exists.
	CreateNewOnly
)

// String returns the name of the mode.
func (m CreateMode) String() string {
	switch m {
	case CreateOrReplace:
		return "create-or-replace"
	case CreateNewOnly:
		return "create-new-only"
	}
	return "unknown"
}

// openFlags returns the [os.OpenFile] flags for m.
func (m CreateMode) openFlags() int {
	if m == CreateNewOnly {
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
}

// OpenAndWriteFunc opens path with the given mode and transfers the content
// of an entry into it.
type OpenAndWriteFunc func(path string, mode CreateMode) error

// SymlinkWriter creates a symbolic link at path pointing to linkTarget.
type SymlinkWriter func(path string, linkTarget string) error

// WriteFunc writes an entry to a path returned by [Resolve].
type WriteFunc func(path string, cfg *Config) error

// WriteEntryToFile materializes e at path, which must have been returned by
// [Resolve].
//
// A symbolic link entry is handed to cfg.SymlinkWriter(); without a writer an
// [*UnsupportedOperationError] is returned. After the link was written, its
// own metadata is restored if e is a [LinkMetadataPreserver].
// Any other entry is written by openAndWrite with [CreateOrReplace] if
// cfg.Overwrite() is set and [CreateNewOnly] otherwise. Errors of
// openAndWrite are returned as they are, so a collision can be detected with
// errors.Is(err, fs.ErrExist).
//
// After a successful write the metadata of e is restored if e is a
// [MetadataPreserver]. Neither hook runs if cfg.DropFileAttributes() is set,
// and a failure of either is logged only.
func WriteEntryToFile(path string, e Entry, cfg *Config, openAndWrite OpenAndWriteFunc) error {
	if linkTarget, ok := e.LinkTarget(); ok {
		writeLink := cfg.SymlinkWriter()
		if writeLink == nil {
			return &UnsupportedOperationError{Name: e.Key(), Reason: "symbolic link entry but no link-writer configured"}
		}
		if err := writeLink(path, linkTarget); err != nil {
			return err
		}
		if p, ok := e.(LinkMetadataPreserver); ok && !cfg.DropFileAttributes() {
			if err := p.PreserveLinkMetadata(path, cfg); err != nil {
				cfg.Logger().Warn("cannot preserve link attributes", "path", path, "error", err)
			}
		}
		return nil
	}

	mode := CreateOrReplace
	if !cfg.Overwrite() {
		mode = CreateNewOnly
	}

	if err := openAndWrite(path, mode); err != nil {
		return err
	}

	if p, ok := e.(MetadataPreserver); ok && !cfg.DropFileAttributes() {
		if err := p.PreserveMetadata(path, cfg); err != nil {
			cfg.Logger().Warn("cannot preserve file attributes", "path", path, "error", err)
		}
	}

	return nil
}

// WriteEntryToDirectory resolves e below root and passes the destination of
// a file or symbolic link entry to write. Directory entries are created by
// [Resolve] and skipped entries are dropped; write is not called for either.
func WriteEntryToDirectory(t Target, root string, e Entry, cfg *Config, write WriteFunc) (Destination, error) {
	dst, err := Resolve(t, root, e, cfg)
	if err != nil {
		return dst, err
	}
	if dst.Skipped || dst.IsDir {
		return dst, nil
	}
	return dst, write(dst.Path, cfg)
}
