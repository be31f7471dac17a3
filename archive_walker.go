// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

// archiveWalker iterates the entries of an archive. Next returns io.EOF
// after the last entry.
type archiveWalker interface {
	Type() string
	Next() (archiveEntry, error)
}

// archiveEntry is an entry as produced by an archive reader.
// Uid and Gid are -1 if the format does not store ownership.
type archiveEntry interface {
	AccessTime() time.Time
	Gid() int
	IsRegular() bool
	IsDir() bool
	IsSymlink() bool
	Linkname() (string, error)
	Mode() fs.FileMode
	ModTime() time.Time
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
	Type() fs.FileMode
	Uid() int
}

// unknownOwner is the owner id of formats that do not store ownership.
const unknownOwner = -1

// walkedEntry adapts an archiveEntry to [Entry], [MetadataPreserver] and
// [LinkMetadataPreserver].
type walkedEntry struct {
	ae         archiveEntry
	t          Target
	linkTarget string
}

func (w *walkedEntry) Key() string {
	return w.ae.Name()
}

func (w *walkedEntry) IsDirectory() bool {
	return w.ae.IsDir()
}

func (w *walkedEntry) LinkTarget() (string, bool) {
	if !w.ae.IsSymlink() {
		return "", false
	}
	return w.linkTarget, true
}

// PreserveMetadata restores the permissions, timestamps and, if configured,
// the owner of the entry.
func (w *walkedEntry) PreserveMetadata(path string, cfg *Config) error {
	if err := w.t.Chmod(path, w.ae.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to change file mode: %w", err)
	}
	if err := w.t.Chtimes(path, w.accessTime(), w.ae.ModTime()); err != nil {
		return fmt.Errorf("failed to change file times: %w", err)
	}
	return w.preserveOwner(path, cfg)
}

// PreserveLinkMetadata restores the timestamps and, if configured, the owner
// of the symbolic link itself.
func (w *walkedEntry) PreserveLinkMetadata(path string, cfg *Config) error {
	if err := w.t.Lchtimes(path, w.accessTime(), w.ae.ModTime()); err != nil {
		return fmt.Errorf("failed to change link times: %w", err)
	}
	return w.preserveOwner(path, cfg)
}

func (w *walkedEntry) preserveOwner(path string, cfg *Config) error {
	if !cfg.PreserveOwner() || (w.ae.Uid() == unknownOwner && w.ae.Gid() == unknownOwner) {
		return nil
	}
	if err := w.t.Chown(path, w.ae.Uid(), w.ae.Gid()); err != nil {
		return fmt.Errorf("failed to change owner: %w", err)
	}
	return nil
}

// accessTime falls back to the modification time for formats without one.
func (w *walkedEntry) accessTime() time.Time {
	if atime := w.ae.AccessTime(); !atime.IsZero() {
		return atime
	}
	return w.ae.ModTime()
}

// extract walks src and materializes every entry below dst.
func extract(ctx context.Context, t Target, dst string, src archiveWalker, cfg *Config, td *TelemetryData) error {
	if err := prepareDestination(t, dst, cfg); err != nil {
		return handleError(cfg, td, "cannot prepare destination", err)
	}

	cfg.Logger().Info("start extraction", "type", src.Type())
	var objectCounter int64
	var extractedBytes int64

	for {
		if err := ctx.Err(); err != nil {
			return handleError(cfg, td, "context error", err)
		}

		ae, err := src.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return handleError(cfg, td, "error reading", err)
		case ae == nil:
			continue
		}

		objectCounter++
		if err := cfg.CheckMaxFiles(objectCounter); err != nil {
			return handleError(cfg, td, "max objects check failed", err)
		}

		match, err := checkPatterns(cfg.Patterns(), ae.Name())
		if err != nil {
			return handleError(cfg, td, "cannot check pattern", err)
		}
		if !match {
			cfg.Logger().Info("skipping file (pattern mismatch)", "name", ae.Name())
			td.PatternMismatches++
			continue
		}

		// tar specific: git writes a `pax_global_header` entry
		if ae.Type() == fs.FileMode(tar.TypeXGlobalHeader) && ae.Name() == "pax_global_header" {
			continue
		}

		if !ae.IsDir() && !ae.IsRegular() && !ae.IsSymlink() {
			reason := fmt.Sprintf("unsupported filetype in archive (%x)", ae.Mode())
			if err := unsupportedEntry(cfg, td, ae.Name(), &UnsupportedOperationError{Name: ae.Name(), Reason: reason}); err != nil {
				return err
			}
			continue
		}

		cfg.Logger().Debug("extract", "name", ae.Name())
		entry := &walkedEntry{ae: ae, t: t}
		if ae.IsSymlink() {
			if entry.linkTarget, err = ae.Linkname(); err != nil {
				if err := handleError(cfg, td, "cannot read link target", err); err != nil {
					return err
				}
				continue
			}
		}
		var written int64

		write := func(path string, c *Config) error {
			return WriteEntryToFile(path, entry, c, func(path string, mode CreateMode) error {
				if err := c.CheckExtractionSize(extractedBytes + ae.Size()); err != nil {
					return err
				}
				fin, err := ae.Open()
				if err != nil {
					return fmt.Errorf("failed to open file: %w", err)
				}
				defer fin.Close()

				remaining := int64(-1)
				if c.MaxExtractionSize() >= 0 {
					remaining = c.MaxExtractionSize() - extractedBytes
				}
				perm := ae.Mode()
				if c.DropFileAttributes() {
					perm = c.CustomDecompressFileMode()
				}
				written, err = t.CreateFile(path, fin, perm, mode, remaining)
				return sizeLimitError(err)
			})
		}

		dest, err := WriteEntryToDirectory(t, dst, entry, cfg, write)
		extractedBytes += written
		td.ExtractionSize = extractedBytes
		if err != nil {
			if errors.Is(err, ErrUnsupportedOperation) {
				if err := unsupportedEntry(cfg, td, ae.Name(), err); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, ErrMaxExtractionSizeExceeded) {
				return handleError(cfg, td, "max extraction size exceeded", err)
			}
			if err := handleError(cfg, td, "cannot extract entry", err); err != nil {
				return err
			}
			continue
		}

		switch {
		case dest.Skipped:
			td.SkippedEntries++
			td.LastSkippedEntry = ae.Name()
		case dest.IsDir:
			td.ExtractedDirs++
		case ae.IsSymlink():
			td.ExtractedSymlinks++
		default:
			td.ExtractedFiles++
		}
	}
}

// sizeLimitError marks a write cut at the size limit as
// [ErrMaxExtractionSizeExceeded].
func sizeLimitError(err error) error {
	if errors.Is(err, io.ErrShortWrite) {
		return fmt.Errorf("%w: %w", ErrMaxExtractionSizeExceeded, err)
	}
	return err
}

// prepareDestination ensures that dst exists, creating it if configured.
func prepareDestination(t Target, dst string, cfg *Config) error {
	if len(dst) == 0 {
		dst = "."
	}
	if _, err := t.Stat(dst); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if !cfg.CreateDestination() {
			return fmt.Errorf("destination does not exist: %s", dst)
		}
		if err := t.CreateDir(dst, cfg.CustomCreateDirMode()); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
		cfg.Logger().Info("created destination directory", "path", dst)
	}
	return nil
}

// unsupportedEntry skips an entry that cannot be materialized, or fails if
// unsupported files are not accepted.
func unsupportedEntry(cfg *Config, td *TelemetryData, name string, err error) error {
	if cfg.ContinueOnUnsupportedFiles() {
		cfg.Logger().Info("skipped unsupported entry", "name", name, "reason", err)
		td.UnsupportedFiles++
		td.LastUnsupportedFile = name
		return nil
	}
	return handleError(cfg, td, "cannot extract entry", err)
}

// handleError increases the error counter, sets the latest error and
// decides if extraction should continue. Path traversal always ends the
// extraction.
func handleError(cfg *Config, td *TelemetryData, msg string, err error) error {
	td.ExtractionErrors++
	td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)

	if cfg.ContinueOnError() && !errors.Is(err, ErrPathTraversal) {
		cfg.Logger().Error(msg, "error", err)
		return nil
	}

	return td.LastExtractionError
}

// checkPatterns reports if path matches one of patterns. No patterns match everything.
func checkPatterns(patterns []string, path string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	for _, pattern := range patterns {
		match, err := filepath.Match(pattern, path)
		if err != nil {
			return false, fmt.Errorf("failed to match pattern: %w", err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// captureExtractionDuration captures the duration of the extraction
func captureExtractionDuration(td *TelemetryData, start time.Time) {
	td.ExtractionDuration = now().Sub(start)
}

// captureInputSize captures the input size of the extraction
func captureInputSize(td *TelemetryData, ler *limitErrorReader) {
	td.InputSize = ler.ReadBytes()
}

// now is the clock used for telemetry.
var now = time.Now
