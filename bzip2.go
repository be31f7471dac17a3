// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// fileExtensionBzip2 is the file extension for bzip2 files.
const fileExtensionBzip2 = "bz2"

// magicBytesBzip2 are the magic bytes for bzip2 files, one per block size.
var magicBytesBzip2 = [][]byte{
	[]byte("BZh1"),
	[]byte("BZh2"),
	[]byte("BZh3"),
	[]byte("BZh4"),
	[]byte("BZh5"),
	[]byte("BZh6"),
	[]byte("BZh7"),
	[]byte("BZh8"),
	[]byte("BZh9"),
}

// isBzip2 checks if the header matches the bzip2 magic bytes.
func isBzip2(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesBzip2)
}

// unpackBzip2 decompresses src to dst.
func unpackBzip2(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressBzip2Stream, fileExtensionBzip2)
}

func decompressBzip2Stream(src io.Reader) (io.Reader, error) {
	return bzip2.NewReader(src, nil)
}
