// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"

	"github.com/golang/snappy"
)

// fileExtensionSnappy is the file extension for snappy framed files.
const fileExtensionSnappy = "sz"

// magicBytesSnappy is the stream identifier of the snappy framing format.
var magicBytesSnappy = [][]byte{
	append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...),
}

// isSnappy checks if the header matches the snappy stream identifier.
func isSnappy(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesSnappy)
}

// unpackSnappy decompresses src to dst.
func unpackSnappy(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	return decompress(ctx, t, dst, src, cfg, decompressSnappyStream, fileExtensionSnappy)
}

func decompressSnappyStream(src io.Reader) (io.Reader, error) {
	return snappy.NewReader(src), nil
}
