// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/klauspost/compress/zlib"
)

// fileExtensionZlib is the file extension for zlib compressed files.
const fileExtensionZlib = "zz"

// magicBytesZlib are the magic bytes for zlib compressed files.
// reference: https://www.rfc-editor.org/rfc/rfc1950
var magicBytesZlib = [][]byte{
	{0x78, 0x01},
	{0x78, 0x5e},
	{0x78, 0x9c},
	{0x78, 0xda},
}

// isZlib checks if the header matches the zlib magic bytes.
func isZlib(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesZlib)
}

// unpackZlib decompresses src to dst.
func unpackZlib(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressZlibStream, fileExtensionZlib)
}

func decompressZlibStream(src io.Reader) (io.Reader, error) {
	return zlib.NewReader(src)
}
