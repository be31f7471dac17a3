// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// fileExtensionZip is the file extension for zip files.
const fileExtensionZip = "zip"

// magicBytesZip contains the magic bytes for a zip archive.
var magicBytesZip = [][]byte{
	{0x50, 0x4B, 0x03, 0x04},
}

// isZip checks if data is a zip archive.
func isZip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesZip)
}

// unpackZip extracts the zip archive src to dst. Streams are cached first,
// the central directory sits at the end of the archive.
func unpackZip(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	td := &TelemetryData{ExtractedType: fileExtensionZip}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	ra, size, cleanup, err := readerToReaderAt(src, cfg)
	if err != nil {
		return handleError(cfg, td, "cannot cache zip", err)
	}
	defer cleanup()
	td.InputSize = size

	cfg.Logger().Info("extracting zip")
	reader, err := zip.NewReader(ra, size)
	if err != nil {
		return handleError(cfg, td, "cannot create zip reader", err)
	}
	return extract(ctx, t, dst, &zipWalker{zr: reader}, cfg, td)
}

// zipWalker is a walker for zip files
type zipWalker struct {
	zr *zip.Reader
	fp int
}

// Type returns the file extension for zip files
func (z *zipWalker) Type() string {
	return fileExtensionZip
}

// Next returns the next entry in the zip archive
func (z *zipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.zr.File) {
		return nil, io.EOF
	}
	defer func() { z.fp++ }()
	return &zipEntry{zf: z.zr.File[z.fp]}, nil
}

// zipEntry is an entry in a zip archive
type zipEntry struct {
	zf *zip.File
}

// AccessTime is not stored in zip archives, the modification time is used.
func (z *zipEntry) AccessTime() time.Time {
	return z.zf.Modified
}

// Gid is not stored in zip archives.
func (z *zipEntry) Gid() int {
	return unknownOwner
}

func (z *zipEntry) IsRegular() bool {
	return z.zf.Mode().IsRegular()
}

// IsDir returns true for directory entries. Some writers only mark them
// with a trailing slash.
func (z *zipEntry) IsDir() bool {
	return z.zf.Mode().IsDir() || strings.HasSuffix(z.zf.Name, "/")
}

func (z *zipEntry) IsSymlink() bool {
	return z.zf.Mode()&fs.ModeSymlink != 0
}

// Linkname returns the link target, which zip stores as file content. A
// target longer than maxZipLinknameLength is rejected.
func (z *zipEntry) Linkname() (string, error) {
	if !z.IsSymlink() {
		return "", nil
	}
	rc, err := z.zf.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open link target: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxZipLinknameLength+1))
	if err != nil {
		return "", fmt.Errorf("cannot read link target: %w", err)
	}
	if len(data) > maxZipLinknameLength {
		return "", fmt.Errorf("link target exceeds %d bytes", maxZipLinknameLength)
	}
	return string(data), nil
}

// maxZipLinknameLength is the longest accepted symlink target.
const maxZipLinknameLength = 4096

func (z *zipEntry) Mode() fs.FileMode {
	return z.zf.Mode()
}

func (z *zipEntry) ModTime() time.Time {
	return z.zf.Modified
}

func (z *zipEntry) Name() string {
	return z.zf.Name
}

func (z *zipEntry) Open() (io.ReadCloser, error) {
	return z.zf.Open()
}

func (z *zipEntry) Size() int64 {
	return int64(z.zf.UncompressedSize64)
}

func (z *zipEntry) Type() fs.FileMode {
	return z.zf.Mode().Type()
}

// Uid is not stored in zip archives.
func (z *zipEntry) Uid() int {
	return unknownOwner
}
