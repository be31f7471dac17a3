// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/andybalholm/brotli"
)

// fileExtensionBrotli is the file extension for brotli files.
const fileExtensionBrotli = "br"

// isBrotli always returns false. Brotli streams carry no magic bytes and are
// only unpacked when selected with [WithExtractType].
func isBrotli(header []byte) bool {
	return false
}

// unpackBrotli decompresses src to dst.
func unpackBrotli(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressBrotliStream, fileExtensionBrotli)
}

func decompressBrotliStream(src io.Reader) (io.Reader, error) {
	return brotli.NewReader(src), nil
}
