// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"bytes"
	"testing"
)

// TestHeaderChecks tests the magic bytes checks of all formats
func TestHeaderChecks(t *testing.T) {
	tarHeader := make([]byte, offsetTar+8)
	copy(tarHeader[offsetTar:], "ustar\x00")

	tests := []struct {
		name   string
		check  headerCheck
		header []byte
		want   bool
	}{
		{"7z", is7zip, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, true},
		{"bzip2", isBzip2, []byte("BZh91AY&SY"), true},
		{"bzip2 invalid block size", isBzip2, []byte("BZh0"), false},
		{"gzip", isGZip, []byte{0x1f, 0x8b, 0x08}, true},
		{"lz4", isLZ4, []byte{0x04, 0x22, 0x4D, 0x18, 0x64}, true},
		{"rar", isRar, []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}, true},
		{"snappy", isSnappy, []byte("\xff\x06\x00\x00sNaPpY"), true},
		{"tar", isTar, tarHeader, true},
		{"tar too short", isTar, tarHeader[:offsetTar+2], false},
		{"xz", isXz, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, true},
		{"zip", isZip, []byte("PK\x03\x04"), true},
		{"zlib", isZlib, []byte{0x78, 0x9c}, true},
		{"zstd", isZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}, true},
		{"brotli", isBrotli, []byte{0xce, 0xb2, 0xcf, 0x81}, false},
		{"empty", isGZip, nil, false},
		{"zeros", isZip, []byte{0x00, 0x00, 0x00, 0x00}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.check(test.header); got != test.want {
				t.Errorf("check(%x) = %v; want %v", test.header, got, test.want)
			}
		})
	}
}

// TestMaxHeaderLength checks that the header covers the tar magic bytes
func TestMaxHeaderLength(t *testing.T) {
	if maxHeaderLength < offsetTar+len("ustar\x00tar\x00") {
		t.Errorf("maxHeaderLength = %d is too short for tar", maxHeaderLength)
	}
}

// TestExtractorFor tests the detection by type and by header
func TestExtractorFor(t *testing.T) {
	if _, ok := extractorFor("", []byte("no archive")); ok {
		t.Errorf("extractorFor() detected a format in plain text")
	}
	if _, ok := extractorFor("", []byte{0x1f, 0x8b}); !ok {
		t.Errorf("extractorFor() did not detect gzip")
	}
	for _, typ := range []string{"tgz", "TAR", "br", "7z"} {
		if _, ok := extractorFor(typ, nil); !ok {
			t.Errorf("extractorFor(%q) not found", typ)
		}
	}
	if _, ok := extractorFor("arj", nil); ok {
		t.Errorf("extractorFor(arj) found")
	}
}

// TestHeaderReader tests that peeked bytes are replayed
func TestHeaderReader(t *testing.T) {
	input := []byte("0123456789")

	for _, size := range []int{0, 4, 10, 20} {
		hr, err := newHeaderReader(bytes.NewReader(input), size)
		if err != nil {
			t.Fatalf("newHeaderReader() failed: %s", err)
		}
		want := input[:min(size, len(input))]
		if !bytes.Equal(hr.PeekHeader(), want) {
			t.Errorf("PeekHeader() = %s, want %s", hr.PeekHeader(), want)
		}
		var out bytes.Buffer
		if _, err := out.ReadFrom(hr); err != nil {
			t.Fatalf("ReadFrom() failed: %s", err)
		}
		if !bytes.Equal(out.Bytes(), input) {
			t.Errorf("read %s, want %s", out.Bytes(), input)
		}
	}
}
