// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

// Entry is one logical item of an archive as seen by [Resolve] and
// [WriteEntryToFile]. Implementations are provided by the archive reader and
// are never modified.
type Entry interface {
	// Key returns the archive-internal path of the entry. Both '/' and '\'
	// are accepted as separators.
	Key() string

	// IsDirectory returns true if the entry is a directory.
	IsDirectory() bool

	// LinkTarget returns the target of a symbolic link entry. ok is false
	// for all other entries.
	LinkTarget() (target string, ok bool)
}

// MetadataPreserver is implemented by entries that can restore their
// metadata (permissions, timestamps) on a written file. It is called after a
// regular file was written successfully.
type MetadataPreserver interface {
	PreserveMetadata(path string, cfg *Config) error
}

// LinkMetadataPreserver is implemented by entries that can restore the
// metadata of a symbolic link itself. It is called after the link was
// written successfully.
type LinkMetadataPreserver interface {
	PreserveLinkMetadata(path string, cfg *Config) error
}

// Header is a plain [Entry].
type Header struct {
	// Name is the archive-internal path.
	Name string

	// Dir marks the entry as directory.
	Dir bool

	// Symlink marks the entry as symbolic link to Linkname.
	Symlink bool

	// Linkname is the link target of a symbolic link.
	Linkname string
}

// Key returns h.Name.
func (h Header) Key() string { return h.Name }

// IsDirectory returns h.Dir.
func (h Header) IsDirectory() bool { return h.Dir }

// LinkTarget returns h.Linkname if h is a symbolic link.
func (h Header) LinkTarget() (string, bool) { return h.Linkname, h.Symlink }
