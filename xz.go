// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/ulikunitz/xz"
)

// fileExtensionXz is the file extension for xz files.
const fileExtensionXz = "xz"

// magicBytesXz are the magic bytes for xz files.
var magicBytesXz = [][]byte{
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

// isXz checks if the header matches the xz magic bytes.
func isXz(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesXz)
}

// unpackXz decompresses src to dst.
func unpackXz(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressXzStream, fileExtensionXz)
}

func decompressXzStream(src io.Reader) (io.Reader, error) {
	return xz.NewReader(src)
}
