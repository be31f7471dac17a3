// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"fmt"
	"io"
)

// limitErrorReader reads at most L bytes from R and fails if the input is
// longer. A limit of -1 disables the check.
type limitErrorReader struct {
	R io.Reader // underlying reader
	L int64     // limit
	N int64     // bytes read
}

// Read reads from the underlying reader and fills up p.
func (l *limitErrorReader) Read(p []byte) (int, error) {
	m := l.L - l.N
	if l.L == -1 || m > int64(len(p)) {
		m = int64(len(p))
	}

	if m == 0 && len(p) > 0 {
		return 0, fmt.Errorf("read limit exceeded")
	}

	n, err := l.R.Read(p[:m])
	l.N += int64(n)
	return n, err
}

// ReadBytes returns how many bytes have been read from the underlying reader.
func (l *limitErrorReader) ReadBytes() int64 {
	return l.N
}

// newLimitErrorReader returns a reader that reads at most limit bytes from r.
func newLimitErrorReader(r io.Reader, limit int64) *limitErrorReader {
	return &limitErrorReader{R: r, L: limit}
}
