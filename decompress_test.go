// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/golang/snappy"
	safeextract "github.com/hashicorp/go-safeextract"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// compressor compresses data with one of the supported formats.
type compressor struct {
	ext         string
	extractType string // required for formats without magic bytes
	newWriter   func(w io.Writer) (io.WriteCloser, error)
}

var compressors = []compressor{
	{ext: "gz", newWriter: func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil }},
	{ext: "zz", newWriter: func(w io.Writer) (io.WriteCloser, error) { return zlib.NewWriter(w), nil }},
	{ext: "zst", newWriter: func(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) }},
	{ext: "xz", newWriter: func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) }},
	{ext: "bz2", newWriter: func(w io.Writer) (io.WriteCloser, error) { return bzip2.NewWriter(w, nil) }},
	{ext: "lz4", newWriter: func(w io.Writer) (io.WriteCloser, error) { return lz4.NewWriter(w), nil }},
	{ext: "sz", newWriter: func(w io.Writer) (io.WriteCloser, error) { return snappy.NewBufferedWriter(w), nil }},
	{ext: "br", extractType: "br", newWriter: func(w io.Writer) (io.WriteCloser, error) { return brotli.NewWriter(w), nil }},
}

func compress(t *testing.T, c compressor, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.newWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompressSingleFile(t *testing.T) {
	content := bytes.Repeat([]byte("compressed content "), 100)

	for _, c := range compressors {
		t.Run(c.ext, func(t *testing.T) {
			m, td, err := unpackToMemory(t, compress(t, c, content), safeextract.WithExtractType(c.extractType))
			require.NoError(t, err)

			// unnamed streams get a generic name
			assert.Equal(t, string(content), readString(t, m, outPath("safeextract-decompressed-content")))
			assert.Equal(t, c.ext, td.ExtractedType)
			assert.Equal(t, int64(1), td.ExtractedFiles)
			assert.Equal(t, int64(len(content)), td.ExtractionSize)
			assert.Positive(t, td.InputSize)
		})
	}
}

func TestDecompressTar(t *testing.T) {
	archive := packTar(t, dir("pkg/"), file("pkg/bin/tool", "tool"), file("top.txt", "top"))

	for _, c := range compressors {
		t.Run(c.ext, func(t *testing.T) {
			m, td, err := unpackToMemory(t, compress(t, c, archive),
				safeextract.WithExtractType(c.extractType),
				safeextract.WithExtractFullPath(true),
				safeextract.WithStripComponents(1),
			)
			require.NoError(t, err)
			assert.Equal(t, "tool", readString(t, m, outPath("bin", "tool")))
			assert.Equal(t, "top", readString(t, m, outPath("top.txt")))
			assert.Equal(t, "tar."+c.ext, td.ExtractedType)
			assert.Zero(t, td.SkippedEntries)
		})
	}
}

func TestDecompressNoUntar(t *testing.T) {
	archive := packTar(t, file("a.txt", "a"))
	c := compressors[0]

	m, td, err := unpackToMemory(t, compress(t, c, archive), safeextract.WithNoUntarAfterDecompression(true))
	require.NoError(t, err)
	assert.Equal(t, string(archive), readString(t, m, outPath("safeextract-decompressed-content")))
	assert.Equal(t, "gz", td.ExtractedType)
}

func TestDecompressTarTraversal(t *testing.T) {
	archive := packTar(t, file("../evil.txt", "x"))

	_, _, err := unpackToMemory(t, compress(t, compressors[0], archive),
		safeextract.WithExtractFullPath(true),
		safeextract.WithContinueOnError(true),
	)
	assert.ErrorIs(t, err, safeextract.ErrPathTraversal)
}

func TestDecompressToFile(t *testing.T) {
	content := []byte("some data")

	for _, c := range compressors {
		t.Run(c.ext, func(t *testing.T) {
			tmp := t.TempDir()
			src := filepath.Join(tmp, "data.txt."+c.ext)
			require.NoError(t, os.WriteFile(src, compress(t, c, content), 0644))

			f, err := os.Open(src)
			require.NoError(t, err)
			defer f.Close()

			dst := filepath.Join(tmp, "out")
			require.NoError(t, os.Mkdir(dst, 0755))
			cfg := safeextract.NewConfig(safeextract.WithExtractType(c.extractType))
			require.NoError(t, safeextract.Unpack(context.Background(), dst, f, cfg))

			// the name of the input without the extension is used
			data, err := os.ReadFile(filepath.Join(dst, "data.txt"))
			require.NoError(t, err)
			assert.Equal(t, content, data)
		})
	}
}

func TestDecompressExplicitDestination(t *testing.T) {
	content := []byte("some data")
	c := compressors[0]

	m := safeextract.NewMemory()
	require.NoError(t, m.CreateDir(outPath(), 0755))

	// a destination that does not exist is the output file
	err := safeextract.UnpackTo(context.Background(), m, outPath("named.txt"), bytes.NewReader(compress(t, c, content)), nil)
	require.NoError(t, err)
	assert.Equal(t, string(content), readString(t, m, outPath("named.txt")))

	// an existing file is kept without overwrite
	cfg := safeextract.NewConfig(safeextract.WithOverwrite(false))
	err = safeextract.UnpackTo(context.Background(), m, outPath("named.txt"), bytes.NewReader(compress(t, c, []byte("other"))), cfg)
	assert.Error(t, err)
	assert.Equal(t, string(content), readString(t, m, outPath("named.txt")))
}

func TestDecompressLimits(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1024)
	c := compressors[0]

	_, _, err := unpackToMemory(t, compress(t, c, content), safeextract.WithMaxExtractionSize(100))
	assert.ErrorIs(t, err, safeextract.ErrMaxExtractionSizeExceeded)

	_, _, err = unpackToMemory(t, compress(t, c, content), safeextract.WithMaxInputSize(10))
	assert.Error(t, err)
}

func TestDecompressInvalid(t *testing.T) {
	// gzip magic bytes followed by garbage
	_, td, err := unpackToMemory(t, []byte{0x1f, 0x8b, 0x00, 0x01, 0x02})
	require.Error(t, err)
	assert.Equal(t, int64(1), td.ExtractionErrors)
}
