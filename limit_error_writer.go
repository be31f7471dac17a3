// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import "io"

// limitErrorWriter writes at most L bytes to W and fails with
// io.ErrShortWrite once more is written.
type limitErrorWriter struct {
	W io.Writer // underlying writer
	L int64     // limit
	N int64     // bytes written
}

// Write writes p to the underlying writer, cut at the limit.
func (l *limitErrorWriter) Write(p []byte) (int, error) {
	if l.N >= l.L {
		return 0, io.ErrShortWrite
	}

	truncated := false
	if remaining := l.L - l.N; int64(len(p)) > remaining {
		p = p[:remaining]
		truncated = true
	}

	n, err := l.W.Write(p)
	l.N += int64(n)
	if err == nil && truncated {
		err = io.ErrShortWrite
	}
	return n, err
}

// limitWriter wraps w so that at most maxSize bytes are written.
// A negative maxSize returns w unchanged.
func limitWriter(w io.Writer, maxSize int64) io.Writer {
	if maxSize < 0 {
		return w
	}
	return &limitErrorWriter{W: w, L: maxSize}
}
