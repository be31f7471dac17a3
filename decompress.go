// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"unicode/utf8"
)

// decompressionFunc wraps src in a decompressing reader.
type decompressionFunc func(io.Reader) (io.Reader, error)

// decompress unpacks a single compressed stream. If the decompressed content
// is a tar archive, it is extracted as such. Otherwise the content is written
// as one file whose name is derived from dst or the name of src.
func decompress(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config, decFunc decompressionFunc, fileExt string) error {
	// remark: the telemetry of a tar.<compression> is submitted from here as well
	cfg.Logger().Info("decompress", "fileExt", fileExt)
	td := &TelemetryData{ExtractedType: fileExt}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())
	defer captureInputSize(td, limitedReader)

	decompressedStream, err := decFunc(limitedReader)
	if err != nil {
		return handleError(cfg, td, "cannot start decompression", err)
	}
	defer func() {
		if closer, ok := decompressedStream.(io.Closer); ok {
			closer.Close()
		}
	}()
	if err := ctx.Err(); err != nil {
		return handleError(cfg, td, "context error", err)
	}

	headerReader, err := newHeaderReader(decompressedStream, maxHeaderLength)
	if err != nil {
		return handleError(cfg, td, "cannot read uncompressed header", err)
	}

	if !cfg.NoUntarAfterDecompression() && isTar(headerReader.PeekHeader()) {
		td.ExtractedType = fmt.Sprintf("%s.%s", fileExtensionTar, fileExt)
		return processTar(ctx, t, headerReader, dst, cfg, td)
	}

	inputName := ""
	if n, ok := src.(interface{ Name() string }); ok && n.Name() != "" {
		inputName = filepath.Base(n.Name())
	}
	outDir, outputName := determineOutputName(t, dst, inputName, "."+fileExt)
	cfg.Logger().Debug("determined output name", "name", outputName)

	if err := prepareDestination(t, outDir, cfg); err != nil {
		return handleError(cfg, td, "cannot prepare destination", err)
	}

	// the output is a single top-level file, strip-components does not apply
	c := cfg.clone()
	c.stripComponents = 0
	c.dropFileAttributes = true

	entry := Header{Name: outputName}
	var written int64
	_, err = WriteEntryToDirectory(t, outDir, entry, c, func(path string, wc *Config) error {
		return WriteEntryToFile(path, entry, wc, func(path string, mode CreateMode) error {
			n, err := t.CreateFile(path, headerReader, wc.CustomDecompressFileMode(), mode, wc.MaxExtractionSize())
			written = n
			return sizeLimitError(err)
		})
	})
	td.ExtractionSize = written
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return handleError(cfg, td, "file already exists", err)
		}
		return handleError(cfg, td, "cannot create file", err)
	}
	td.ExtractedFiles++

	return nil
}

// nameRestriction is a named pattern a decompressed file name must not match.
type nameRestriction struct {
	RestrictionName string
	Regex           *regexp.Regexp
}

// namingRestrictions depend on the operating system
var namingRestrictions []nameRestriction

func init() {
	namingRestrictions = []nameRestriction{
		{"empty name", regexp.MustCompile(`^$`)},
		{"current directory", regexp.MustCompile(`^\.$`)},
		{"parent directory", regexp.MustCompile(`^\.\.$`)},
		{"maximum length 255", regexp.MustCompile(`^.{256,}$`)},
		{"exclude line break, feed and tab", regexp.MustCompile(`[\x0a\x0d\x09]`)},
	}

	if runtime.GOOS != "windows" {
		namingRestrictions = append(namingRestrictions,
			nameRestriction{"invalid character (unix): null byte, slash, backslash", regexp.MustCompile(`[\x00/\\]`)},
		)
		return
	}

	// https://docs.microsoft.com/en-us/windows/win32/fileio/naming-a-file
	namingRestrictions = append(namingRestrictions,
		nameRestriction{"invalid characters (windows)", regexp.MustCompile(`[\x00-\x1f<>:"/\\|?*]`)},
		nameRestriction{"reserved name", regexp.MustCompile(`^(?i)(CON|PRN|AUX|NUL|COM[0-9]+|LPT[0-9]+)$`)},
		nameRestriction{"reserved name", regexp.MustCompile(`^(\s|\.)+$`)},
	)
}

const (
	// defaultDecompressionName is the name of decompressed content of an unnamed stream
	defaultDecompressionName = "safeextract-decompressed-content"

	// defaultDecompressedSuffix is appended if the input name lacks the expected extension
	defaultDecompressedSuffix = "decompressed"
)

// determineOutputName returns the directory and file name for decompressed
// content. A dst that is not an existing directory is used as the file
// itself.
func determineOutputName(t Target, dst string, inputName string, fileExt string) (string, string) {
	if dst != "." && dst != "" {
		stat, err := t.Stat(dst)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !stat.IsDir()) {
			return filepath.Dir(dst), filepath.Base(dst)
		}
	}

	if len(inputName) == 0 {
		return dst, defaultDecompressionName
	}

	newName := inputName
	if strings.HasSuffix(strings.ToLower(inputName), strings.ToLower(fileExt)) {
		newName = newName[:len(newName)-len(fileExt)]
	}
	if newName == inputName {
		newName = fmt.Sprintf("%s.%s", inputName, defaultDecompressedSuffix)
	}

	if !utf8.ValidString(newName) {
		return dst, defaultDecompressionName
	}
	for _, restriction := range namingRestrictions {
		if restriction.Regex.MatchString(newName) {
			return dst, defaultDecompressionName
		}
	}

	return dst, newName
}
