// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/bodgit/sevenzip"
)

// fileExtension7zip is the file extension for 7zip files
const fileExtension7zip = "7z"

// magicBytes7zip are the magic bytes for 7zip files
var magicBytes7zip = [][]byte{
	{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C},
}

// is7zip checks if the header matches the magic bytes for 7zip files
func is7zip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytes7zip)
}

// unpack7Zip extracts the 7zip archive src to dst.
func unpack7Zip(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	td := &TelemetryData{ExtractedType: fileExtension7zip}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	ra, size, cleanup, err := readerToReaderAt(src, cfg)
	if err != nil {
		return handleError(cfg, td, "cannot cache 7zip", err)
	}
	defer cleanup()
	td.InputSize = size

	cfg.Logger().Info("extracting 7zip")
	reader, err := sevenzip.NewReader(ra, size)
	if err != nil {
		return handleError(cfg, td, "cannot create 7zip reader", err)
	}
	return extract(ctx, t, dst, &sevenZipWalker{r: reader}, cfg, td)
}

// sevenZipWalker is a walker for 7zip files
type sevenZipWalker struct {
	r  *sevenzip.Reader
	fp int
}

// Type returns the file extension for 7zip files
func (z *sevenZipWalker) Type() string {
	return fileExtension7zip
}

// Next returns the next entry in the 7zip file
func (z *sevenZipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.r.File) {
		return nil, io.EOF
	}
	defer func() { z.fp++ }()
	return &sevenZipEntry{z.r.File[z.fp]}, nil
}

// sevenZipEntry is an entry in a 7zip file. 7zip has no symbolic links.
type sevenZipEntry struct {
	f *sevenzip.File
}

func (z *sevenZipEntry) AccessTime() time.Time {
	return z.f.Accessed
}

// Gid is not stored in 7zip archives.
func (z *sevenZipEntry) Gid() int {
	return unknownOwner
}

func (z *sevenZipEntry) IsRegular() bool {
	return z.f.FileInfo().Mode().IsRegular()
}

func (z *sevenZipEntry) IsDir() bool {
	return z.f.FileInfo().IsDir()
}

func (z *sevenZipEntry) IsSymlink() bool {
	return false
}

func (z *sevenZipEntry) Linkname() (string, error) {
	return "", nil
}

func (z *sevenZipEntry) Mode() fs.FileMode {
	return z.f.FileInfo().Mode()
}

func (z *sevenZipEntry) ModTime() time.Time {
	return z.f.FileInfo().ModTime()
}

func (z *sevenZipEntry) Name() string {
	return z.f.Name
}

func (z *sevenZipEntry) Open() (io.ReadCloser, error) {
	return z.f.Open()
}

func (z *sevenZipEntry) Size() int64 {
	return z.f.FileInfo().Size()
}

func (z *sevenZipEntry) Type() fs.FileMode {
	return z.f.FileInfo().Mode().Type()
}

// Uid is not stored in 7zip archives.
func (z *sevenZipEntry) Uid() int {
	return unknownOwner
}
