// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"fmt"
	"io"
)

// headerReader replays the first bytes of a stream after they have been
// inspected to detect the archive type.
type headerReader struct {
	r      io.Reader
	header []byte
	offset int
}

// newHeaderReader reads up to headerSize bytes from r. A shorter input is
// not an error.
func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return &headerReader{r: r, header: buf[:n]}, nil
}

func (p *headerReader) Read(b []byte) (int, error) {
	if p.offset < len(p.header) {
		n := copy(b, p.header[p.offset:])
		p.offset += n
		return n, nil
	}
	return p.r.Read(b)
}

// PeekHeader returns the header bytes without consuming them.
func (p *headerReader) PeekHeader() []byte {
	return p.header
}

// Name returns the name of the underlying file, or "" if the stream is not
// a named file.
func (p *headerReader) Name() string {
	if n, ok := p.r.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

// underlyingReaderAt returns the wrapped reader if it supports random
// access. Reads through it do not depend on the bytes already consumed.
func (p *headerReader) underlyingReaderAt() (readSeekerAt, bool) {
	sra, ok := p.r.(readSeekerAt)
	return sra, ok
}
