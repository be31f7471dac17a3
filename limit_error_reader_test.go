// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadBytes(t *testing.T) {
	tests := []struct {
		name       string
		limit      int64
		input      string
		bufferSize int
		expectN    int
		wantErr    bool
	}{
		{
			name:       "Under limit",
			limit:      10,
			input:      "12345",
			bufferSize: 5,
			expectN:    5,
			wantErr:    false,
		},
		{
			name:       "At limit",
			limit:      5,
			input:      "12345",
			bufferSize: 5,
			expectN:    5,
			wantErr:    false,
		},
		{
			name:       "Over limit",
			limit:      4,
			input:      "12345",
			bufferSize: 5,
			expectN:    4,
			wantErr:    false,
		},
		{
			name:       "Under limit with buffer",
			limit:      10,
			input:      "12345",
			bufferSize: 2,
			expectN:    2,
			wantErr:    false,
		},
		{
			name:       "Unlimited",
			limit:      -1,
			input:      "12345",
			bufferSize: 5,
			expectN:    5,
			wantErr:    false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := strings.NewReader(test.input)
			l := newLimitErrorReader(r, test.limit)
			buf := make([]byte, test.bufferSize)
			n, err := l.Read(buf)
			if (err != nil) != test.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, test.wantErr)
			}
			if n != test.expectN {
				t.Errorf("Read() = %v, want %v", n, test.expectN)
			}
			if l.ReadBytes() != int64(test.expectN) {
				t.Errorf("ReadBytes() = %v, want %v", l.ReadBytes(), test.expectN)
			}
		})
	}
}

// TestLimitErrorReader_Read tests the implementation of limitErrorReader.Read
func TestLimitErrorReader_Read(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		input   string
		expectN int
		wantErr bool
	}{
		{
			name:    "Under limit",
			limit:   10,
			input:   "12345",
			expectN: 5,
			wantErr: false,
		},
		{
			name:    "At limit",
			limit:   5,
			input:   "12345",
			expectN: 5,
			wantErr: false,
		},
		{
			name:    "Over limit",
			limit:   4,
			input:   "12345",
			expectN: 4,
			wantErr: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := strings.NewReader(test.input)
			l := newLimitErrorReader(r, test.limit)

			buf := make([]byte, len(test.input))
			n, err := l.Read(buf)
			if (err != nil) != test.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, test.wantErr)
			}
			if n != test.expectN {
				t.Errorf("Read() = %v, want %v", n, test.expectN)
			}
			if l.ReadBytes() != int64(test.expectN) {
				t.Errorf("ReadBytes() = %v, want %v", l.ReadBytes(), test.expectN)
			}
		})
	}
}

// TestLimitErrorReader_ExceedLimit tests that reading beyond the limit fails
func TestLimitErrorReader_ExceedLimit(t *testing.T) {
	l := newLimitErrorReader(strings.NewReader("12345"), 4)
	if _, err := io.ReadAll(l); err == nil {
		t.Fatalf("ReadAll() error = nil, want error")
	}
	if l.ReadBytes() != 4 {
		t.Errorf("ReadBytes() = %v, want %v", l.ReadBytes(), 4)
	}
}

// TestLimitWriter tests that writes are cut at the limit
func TestLimitWriter(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		input   string
		expect  string
		wantErr bool
	}{
		{name: "Under limit", limit: 10, input: "12345", expect: "12345"},
		{name: "At limit", limit: 5, input: "12345", expect: "12345"},
		{name: "Over limit", limit: 3, input: "12345", expect: "123", wantErr: true},
		{name: "Unlimited", limit: -1, input: "12345", expect: "12345"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := io.Copy(limitWriter(&buf, test.limit), strings.NewReader(test.input))
			if (err != nil) != test.wantErr {
				t.Fatalf("Copy() error = %v, wantErr %v", err, test.wantErr)
			}
			if test.wantErr && !errors.Is(err, io.ErrShortWrite) {
				t.Errorf("Copy() error = %v, want %v", err, io.ErrShortWrite)
			}
			if buf.String() != test.expect {
				t.Errorf("written = %q, want %q", buf.String(), test.expect)
			}
			if test.wantErr && !errors.Is(sizeLimitError(err), ErrMaxExtractionSizeExceeded) {
				t.Errorf("sizeLimitError() does not match %v", ErrMaxExtractionSizeExceeded)
			}
		})
	}
}
