// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"time"
)

// fileExtensionTar is the file extension for tar files
const fileExtensionTar = "tar"

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header matches the magic bytes for tar files
func isTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// unpackTar extracts the tar archive src to dst.
func unpackTar(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	td := &TelemetryData{ExtractedType: fileExtensionTar}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())
	defer captureInputSize(td, limitedReader)

	return processTar(ctx, t, limitedReader, dst, cfg, td)
}

// processTar extracts the tar archive from src to dst
func processTar(ctx context.Context, t Target, src io.Reader, dst string, cfg *Config, td *TelemetryData) error {
	return extract(ctx, t, dst, &tarWalker{tr: tar.NewReader(src)}, cfg, td)
}

// tarWalker is a walker for tar files
type tarWalker struct {
	tr *tar.Reader
}

// Type returns the file extension for tar files
func (t *tarWalker) Type() string {
	return fileExtensionTar
}

// Next returns the next entry in the tar archive
func (t *tarWalker) Next() (archiveEntry, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		return nil, err
	}
	return &tarEntry{hdr, t.tr}, nil
}

// tarEntry is an entry in a tar archive
type tarEntry struct {
	hdr *tar.Header
	tr  *tar.Reader
}

func (t *tarEntry) AccessTime() time.Time {
	return t.hdr.AccessTime
}

func (t *tarEntry) Gid() int {
	return t.hdr.Gid
}

func (t *tarEntry) IsRegular() bool {
	return t.hdr.Typeflag == tar.TypeReg
}

func (t *tarEntry) IsDir() bool {
	return t.hdr.Typeflag == tar.TypeDir
}

func (t *tarEntry) IsSymlink() bool {
	return t.hdr.Typeflag == tar.TypeSymlink
}

func (t *tarEntry) Linkname() (string, error) {
	return t.hdr.Linkname, nil
}

func (t *tarEntry) Mode() fs.FileMode {
	return t.hdr.FileInfo().Mode()
}

func (t *tarEntry) ModTime() time.Time {
	return t.hdr.ModTime
}

func (t *tarEntry) Name() string {
	return t.hdr.Name
}

// Open returns the content of the current entry. Closing it is a no-op, the
// tar reader moves on with the next call to Next.
func (t *tarEntry) Open() (io.ReadCloser, error) {
	return io.NopCloser(t.tr), nil
}

func (t *tarEntry) Size() int64 {
	return t.hdr.Size
}

// Type returns the raw tar type flag.
func (t *tarEntry) Type() fs.FileMode {
	return fs.FileMode(t.hdr.Typeflag)
}

func (t *tarEntry) Uid() int {
	return t.hdr.Uid
}
