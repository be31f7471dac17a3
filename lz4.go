// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/pierrec/lz4/v4"
)

// fileExtensionLZ4 is the file extension for lz4 files.
const fileExtensionLZ4 = "lz4"

// magicBytesLZ4 are the magic bytes of the lz4 frame format.
var magicBytesLZ4 = [][]byte{
	{0x04, 0x22, 0x4D, 0x18},
}

// isLZ4 checks if the header matches the lz4 magic bytes.
func isLZ4(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesLZ4)
}

// unpackLZ4 decompresses src to dst.
func unpackLZ4(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressLZ4Stream, fileExtensionLZ4)
}

func decompressLZ4Stream(src io.Reader) (io.Reader, error) {
	return lz4.NewReader(src), nil
}
