// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Destination is the outcome of [Resolve] for a single entry.
type Destination struct {
	// Path is the absolute, cleaned destination. It is always contained in
	// the absolute extraction root. Empty if Skipped.
	Path string

	// IsDir is true for directory entries. Nothing is written for them.
	IsDir bool

	// Skipped is true if the entry is not nested deep enough for the
	// configured strip-components and was dropped without any side effect.
	Skipped bool
}

// Resolve computes the destination of e below root and prepares its parent
// directories in t.
//
// If cfg.ExtractFullPath() is false, the entry is flattened: only its file
// name is kept and placed directly in root. Otherwise the directory portion
// of the key is reconstructed below root, after dropping
// cfg.StripComponents() leading segments. An empty directory portion counts
// as one segment. An entry with fewer segments than that is skipped.
//
// Both the directory and the final path are checked for containment before
// anything is created. A destination outside of root fails with a
// [*PathTraversalError]. Unless cfg.TraverseSymlinks() is set, existing
// symlinks in the path below root are rejected as well.
func Resolve(t Target, root string, e Entry, cfg *Config) (Destination, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return Destination{}, fmt.Errorf("cannot determine absolute destination: %w", err)
	}

	dirPart, fileName := splitKey(e.Key())
	isDir := e.IsDirectory()

	// flatten into the root
	if !cfg.ExtractFullPath() {
		if isDir {
			return Destination{Path: rootAbs, IsDir: true}, nil
		}
		dst := filepath.Join(rootAbs, fileName)
		if err := checkContainment(t, rootAbs, dst, KindFile, checkLeafFor(e), cfg); err != nil {
			return Destination{}, err
		}
		if err := requireFileName(e, fileName); err != nil {
			return Destination{}, err
		}
		return Destination{Path: dst}, nil
	}

	segments := pathSegments(dirPart)
	if n := cfg.StripComponents(); n > 0 {
		if n > strippableSegments(segments) {
			cfg.Logger().Debug("skip entry (not deep enough to strip)", "name", e.Key(), "strip", n)
			return Destination{Skipped: true}, nil
		}
		segments = segments[min(n, len(segments)):]
	}

	destDir := filepath.Join(append([]string{rootAbs}, segments...)...)
	if err := checkContainment(t, rootAbs, destDir, KindDirectory, false, cfg); err != nil {
		return Destination{}, err
	}

	dst := filepath.Join(destDir, fileName)
	kind := KindFile
	if isDir {
		kind = KindDirectory
	}
	if err := checkContainment(t, rootAbs, dst, kind, checkLeafFor(e), cfg); err != nil {
		return Destination{}, err
	}
	if !isDir {
		if err := requireFileName(e, fileName); err != nil {
			return Destination{}, err
		}
	}

	// directories of the entry are created only after every check passed
	if destDir != rootAbs {
		if err := t.CreateDir(destDir, cfg.CustomCreateDirMode()); err != nil {
			return Destination{}, fmt.Errorf("cannot create directory: %w", err)
		}
	}
	if isDir {
		if dst != destDir {
			if err := t.CreateDir(dst, cfg.CustomCreateDirMode()); err != nil {
				return Destination{}, fmt.Errorf("cannot create directory: %w", err)
			}
		}
		return Destination{Path: dst, IsDir: true}, nil
	}

	return Destination{Path: dst}, nil
}

// splitKey splits an archive key into its directory portion and its file
// name at the last '/' or '\'.
func splitKey(key string) (string, string) {
	i := strings.LastIndexAny(key, `/\`)
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

// pathSegments splits the directory portion of a key into its segments.
// Runs of separators count as a single boundary and leading or trailing
// separators are ignored.
func pathSegments(dir string) []string {
	return strings.FieldsFunc(dir, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

// strippableSegments returns how many leading segments can be stripped from
// a directory portion. An empty directory portion still counts as one
// boundary, so a top-level entry survives a strip count of one.
func strippableSegments(segments []string) int {
	return max(len(segments), 1)
}

// requireFileName rejects non-directory entries that have no file name of
// their own and would be written onto a directory.
func requireFileName(e Entry, fileName string) error {
	switch fileName {
	case "", ".", "..":
		return fmt.Errorf("cannot create file without name: %q", e.Key())
	}
	return nil
}

// checkLeafFor reports if the final path element itself has to be checked
// for a symlink. Regular files would be written through an existing link,
// while links replace it and directories are handled by the walk over their
// parents.
func checkLeafFor(e Entry) bool {
	if _, ok := e.LinkTarget(); ok {
		return false
	}
	return !e.IsDirectory()
}

// checkContainment verifies that path is lexically below rootAbs and,
// unless cfg.TraverseSymlinks() is set, that no existing element between
// rootAbs and path is a symlink. The root itself is trusted.
func checkContainment(t Target, rootAbs string, path string, kind string, checkLeaf bool, cfg *Config) error {
	rel, ok := relativeTo(rootAbs, path)
	if !ok {
		return &PathTraversalError{Root: rootAbs, Path: path, Kind: kind}
	}
	if rel == "." {
		return nil
	}

	elements := strings.Split(rel, string(os.PathSeparator))
	if !checkLeaf {
		elements = elements[:len(elements)-1]
	}

	current := rootAbs
	for _, element := range elements {
		current = filepath.Join(current, element)

		stat, err := t.Lstat(current)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// nothing below a missing element can exist
				return nil
			}
			return fmt.Errorf("invalid path: %w", err)
		}

		if stat.Mode()&fs.ModeSymlink == 0 {
			continue
		}
		if cfg.TraverseSymlinks() {
			cfg.Logger().Warn("traverse symlink", "path", current)
			continue
		}
		return &PathTraversalError{Root: rootAbs, Path: current, Kind: kind, Reason: "symlink in path"}
	}

	return nil
}

// relativeTo returns path relative to rootAbs and whether it stays inside.
func relativeTo(rootAbs string, path string) (string, bool) {
	rel, err := filepath.Rel(rootAbs, path)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return rel, true
	}
	return rel, filepath.IsLocal(rel)
}
