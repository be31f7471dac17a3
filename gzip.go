// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	// fileExtensionGZip is the file extension for gzip files.
	fileExtensionGZip = "gz"

	// fileExtensionTarGZip is the file extension for tar archives compressed with gzip.
	fileExtensionTarGZip = "tgz"
)

// magicBytesGZip are the magic bytes for gzip compressed files.
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// isGZip checks if the header matches the gzip magic bytes.
func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

// unpackGZip decompresses src to dst.
func unpackGZip(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressGZipStream, fileExtensionGZip)
}

func decompressGZipStream(src io.Reader) (io.Reader, error) {
	return gzip.NewReader(src)
}
