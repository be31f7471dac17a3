// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/nwaples/rardecode"
)

// fileExtensionRar is the file extension for Rar files.
const fileExtensionRar = "rar"

// magicBytesRar are the magic bytes for Rar files.
var magicBytesRar = [][]byte{
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00},       // Rar 1.5
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}, // Rar 5.0
}

// isRar checks if the header matches the magic bytes for Rar files.
func isRar(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesRar)
}

// unpackRar extracts the Rar archive src to dst.
func unpackRar(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	td := &TelemetryData{ExtractedType: fileExtensionRar}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())
	defer captureInputSize(td, limitedReader)

	cfg.Logger().Info("extracting rar")
	r, err := rardecode.NewReader(limitedReader, "")
	if err != nil {
		return handleError(cfg, td, "cannot create rar decoder", err)
	}
	return extract(ctx, t, dst, &rarWalker{r}, cfg, td)
}

// rarWalker is an archiveWalker for Rar files.
type rarWalker struct {
	r *rardecode.Reader
}

// Type returns the file extension for rar files.
func (rw *rarWalker) Type() string {
	return fileExtensionRar
}

// Next returns the next entry in the rar file.
func (rw *rarWalker) Next() (archiveEntry, error) {
	fh, err := rw.r.Next()
	if err != nil {
		return nil, err
	}
	return &rarEntry{fh, rw.r}, nil
}

// rarEntry is an archiveEntry for Rar files. The decoder does not expose
// symbolic links.
type rarEntry struct {
	f *rardecode.FileHeader
	r io.Reader
}

func (r *rarEntry) AccessTime() time.Time {
	return r.f.AccessTime
}

// Gid is not stored in rar archives.
func (r *rarEntry) Gid() int {
	return unknownOwner
}

func (r *rarEntry) IsRegular() bool {
	return r.f.Mode().IsRegular()
}

func (r *rarEntry) IsDir() bool {
	return r.f.IsDir
}

func (r *rarEntry) IsSymlink() bool {
	return false
}

func (r *rarEntry) Linkname() (string, error) {
	return "", nil
}

func (r *rarEntry) Mode() fs.FileMode {
	return r.f.Mode()
}

func (r *rarEntry) ModTime() time.Time {
	return r.f.ModificationTime
}

func (r *rarEntry) Name() string {
	return r.f.Name
}

func (r *rarEntry) Open() (io.ReadCloser, error) {
	return io.NopCloser(r.r), nil
}

func (r *rarEntry) Size() int64 {
	return r.f.UnPackedSize
}

func (r *rarEntry) Type() fs.FileMode {
	return r.f.Mode().Type()
}

// Uid is not stored in rar archives.
func (r *rarEntry) Uid() int {
	return unknownOwner
}
