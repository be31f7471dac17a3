// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"fmt"
	"io"
)

// Unpack extracts src to dst on the filesystem of the operating system. The
// format is detected from the magic bytes of src unless an explicit type is
// set with [WithExtractType]. A nil cfg is the default [NewConfig].
func Unpack(ctx context.Context, dst string, src io.Reader, cfg *Config) error {
	return UnpackTo(ctx, NewTargetDisk(), dst, src, cfg)
}

// UnpackTo extracts src to dst in t.
//
// Unless cfg already carries a [SymlinkWriter] or symlinks are denied with
// [WithDenySymlinkExtraction], symbolic link entries are created in t by a
// writer from [NewTargetSymlinkWriter]. cfg itself is not modified.
func UnpackTo(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cfg.SymlinkWriter() == nil && !cfg.DenySymlinkExtraction() {
		cfg = cfg.clone()
		cfg.symlinkWriter = NewTargetSymlinkWriter(t, dst, cfg)
	}

	header, err := newHeaderReader(src, maxHeaderLength)
	if err != nil {
		return fmt.Errorf("cannot read header: %w", err)
	}

	unpacker, ok := extractorFor(cfg.ExtractType(), header.PeekHeader())
	if !ok {
		if cfg.ExtractType() != "" {
			return &UnsupportedOperationError{Name: cfg.ExtractType(), Reason: "extraction type not supported"}
		}
		return &UnsupportedOperationError{Name: dst, Reason: "archive type not supported"}
	}

	return unpacker(ctx, t, dst, header, cfg)
}
