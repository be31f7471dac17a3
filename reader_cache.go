// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// readSeekerAt is a stream with random access.
type readSeekerAt interface {
	io.ReaderAt
	io.Seeker
}

// readerToReaderAt returns src as io.ReaderAt together with its size. A src
// that already is a seekable io.ReaderAt is used as is, anything else is
// cached in memory or in a temporary file, depending on
// cfg.CacheInMemory(). The input size limit is enforced on the way. The
// returned cleanup removes the temporary file, if any.
func readerToReaderAt(src io.Reader, cfg *Config) (io.ReaderAt, int64, func(), error) {
	noop := func() {}

	sra, ok := src.(readSeekerAt)
	if hr, isHeader := src.(*headerReader); isHeader {
		sra, ok = hr.underlyingReaderAt()
	}
	if ok {
		// pipes are files as well, but cannot seek
		if size, err := sra.Seek(0, io.SeekEnd); err == nil {
			if cfg.MaxInputSize() != -1 && size > cfg.MaxInputSize() {
				return nil, 0, noop, fmt.Errorf("input size exceeds maximum input size")
			}
			return sra, size, noop, nil
		}
	}

	limited := newLimitErrorReader(src, cfg.MaxInputSize())

	if cfg.CacheInMemory() {
		data, err := io.ReadAll(limited)
		if err != nil {
			return nil, 0, noop, fmt.Errorf("cannot read input: %w", err)
		}
		return bytes.NewReader(data), int64(len(data)), noop, nil
	}

	f, err := os.CreateTemp("", "safeextract-*")
	if err != nil {
		return nil, 0, noop, fmt.Errorf("cannot create temporary file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	size, err := io.Copy(f, limited)
	if err != nil {
		cleanup()
		return nil, 0, noop, fmt.Errorf("cannot cache input: %w", err)
	}
	return f, size, cleanup, nil
}
