// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
)

// init calculates the maximum header length
func init() {
	for _, ex := range availableExtractors {
		needs := ex.Offset
		for _, mb := range ex.MagicBytes {
			if len(mb)+ex.Offset > needs {
				needs = len(mb) + ex.Offset
			}
		}
		if needs > maxHeaderLength {
			maxHeaderLength = needs
		}
	}
}

// unpackFunc extracts the contents from src to dst.
type unpackFunc func(context.Context, Target, string, io.Reader, *Config) error

// headerCheck reports if header matches the expected magic bytes.
type headerCheck func([]byte) bool

type availableExtractor struct {
	Unpacker    unpackFunc
	HeaderCheck headerCheck
	MagicBytes  [][]byte
	Offset      int
}

// availableExtractors maps a file extension to its unpacker together with
// the magic bytes and their offset
var availableExtractors = map[string]availableExtractor{
	fileExtension7zip: {
		Unpacker:    unpack7Zip,
		HeaderCheck: is7zip,
		MagicBytes:  magicBytes7zip,
	},
	fileExtensionBrotli: {
		Unpacker:    unpackBrotli,
		HeaderCheck: isBrotli,
	},
	fileExtensionBzip2: {
		Unpacker:    unpackBzip2,
		HeaderCheck: isBzip2,
		MagicBytes:  magicBytesBzip2,
	},
	fileExtensionGZip: {
		Unpacker:    unpackGZip,
		HeaderCheck: isGZip,
		MagicBytes:  magicBytesGZip,
	},
	fileExtensionLZ4: {
		Unpacker:    unpackLZ4,
		HeaderCheck: isLZ4,
		MagicBytes:  magicBytesLZ4,
	},
	fileExtensionRar: {
		Unpacker:    unpackRar,
		HeaderCheck: isRar,
		MagicBytes:  magicBytesRar,
	},
	fileExtensionSnappy: {
		Unpacker:    unpackSnappy,
		HeaderCheck: isSnappy,
		MagicBytes:  magicBytesSnappy,
	},
	fileExtensionTar: {
		Unpacker:    unpackTar,
		HeaderCheck: isTar,
		MagicBytes:  magicBytesTar,
		Offset:      offsetTar,
	},
	fileExtensionXz: {
		Unpacker:    unpackXz,
		HeaderCheck: isXz,
		MagicBytes:  magicBytesXz,
	},
	fileExtensionZip: {
		Unpacker:    unpackZip,
		HeaderCheck: isZip,
		MagicBytes:  magicBytesZip,
	},
	fileExtensionZlib: {
		Unpacker:    unpackZlib,
		HeaderCheck: isZlib,
		MagicBytes:  magicBytesZlib,
	},
	fileExtensionZstd: {
		Unpacker:    unpackZstd,
		HeaderCheck: isZstd,
		MagicBytes:  magicBytesZstd,
	},
}

// typeAliases are accepted by [WithExtractType] in addition to the keys of
// availableExtractors.
var typeAliases = map[string]string{
	fileExtensionTarGZip: fileExtensionGZip,
}

// maxHeaderLength is the maximum header length of all extractors
var maxHeaderLength int

// matchesMagicBytes reports if data contains one of magicBytes at offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, mb := range magicBytes {
		if len(data) < offset+len(mb) {
			continue
		}
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}
	return false
}

// extractorFor returns the unpacker for an explicit type or, if extractType
// is empty, the first one matching header. The second return value is false
// if no unpacker is found.
func extractorFor(extractType string, header []byte) (unpackFunc, bool) {
	if extractType != "" {
		extractType = strings.ToLower(extractType)
		if alias, ok := typeAliases[extractType]; ok {
			extractType = alias
		}
		ex, ok := availableExtractors[extractType]
		return ex.Unpacker, ok
	}
	// tar is checked last, its magic bytes are not at the start of the header
	for _, ext := range AvailableExtractors() {
		if ext == fileExtensionTar {
			continue
		}
		if ex := availableExtractors[ext]; ex.HeaderCheck(header) {
			return ex.Unpacker, true
		}
	}
	if isTar(header) {
		return unpackTar, true
	}
	return nil, false
}

// AvailableExtractors returns the sorted file extensions of all supported
// formats, the valid values of [WithExtractType].
func AvailableExtractors() []string {
	types := make([]string, 0, len(availableExtractors))
	for ext := range availableExtractors {
		types = append(types, ext)
	}
	sort.Strings(types)
	return types
}

// HasKnownArchiveExtension reports if name ends with the extension of a
// supported format.
func HasKnownArchiveExtension(name string) bool {
	if name == "" {
		return false
	}
	name = strings.ToLower(name)
	for ext := range availableExtractors {
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return strings.HasSuffix(name, "."+fileExtensionTarGZip)
}
