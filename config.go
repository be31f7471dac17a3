// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package safeextract

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config holds the extraction options in an option pattern style.
//
// The zero value is not meant to be used, create configurations with
// [NewConfig]. The defaults reconstruct nothing (entries are flattened into
// the destination), strip nothing, overwrite existing files and refuse
// symlinks in the destination path.
type Config struct {
	// cacheInMemory caches zip, rar and 7z streams in memory instead of a temporary file
	cacheInMemory bool

	// continueOnError decides if the extraction should be continued even if an error occurred
	continueOnError bool

	// continueOnUnsupportedFiles skips entries that cannot be materialized
	continueOnUnsupportedFiles bool

	// createDestination creates the destination directory if it does not exist
	createDestination bool

	// customCreateDirMode is the file mode for created directories (respecting umask)
	customCreateDirMode fs.FileMode

	// customDecompressFileMode is the file mode for a decompressed file (respecting umask)
	customDecompressFileMode fs.FileMode

	// denySymlinkExtraction prevents Unpack from installing a symlink writer
	denySymlinkExtraction bool

	// dropFileAttributes skips the metadata hook after a file is written
	dropFileAttributes bool

	// extractFullPath reconstructs the directory structure of an entry
	extractFullPath bool

	// extractionType forces the archive type instead of detecting it
	extractionType string

	// logger stream for resolution and extraction
	logger logger

	// maxExtractionSize is the maximum size of all extracted files (-1 disables the check)
	maxExtractionSize int64

	// maxFiles is the maximum of entries in an archive (-1 disables the check)
	maxFiles int64

	// maxInputSize is the maximum size of the input (-1 disables the check)
	maxInputSize int64

	// noUntarAfterDecompression keeps a decompressed tar as a single file
	noUntarAfterDecompression bool

	// overwrite decides if existing files may be replaced
	overwrite bool

	// patterns is a list of file patterns to match entries to extract
	patterns []string

	// preserveOwner restores the owner of extracted entries, if the archive stores it
	preserveOwner bool

	// stripComponents is the number of leading directory segments to drop
	stripComponents int

	// symlinkWriter materializes symbolic link entries, nil if unsupported
	symlinkWriter SymlinkWriter

	// telemetryHook consumes telemetry data after an extraction finished
	telemetryHook TelemetryHook

	// traverseSymlinks allows existing symlinks in the destination path
	traverseSymlinks bool
}

// CacheInMemory returns true if zip, rar and 7z streams are cached in memory.
// If false, they are cached in a temporary file.
func (c *Config) CacheInMemory() bool {
	return c.cacheInMemory
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {
	if c.MaxFiles() == -1 {
		return nil
	}
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize checks if fileSize exceeds configured maximum. If the maximum is exceeded,
// a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(fileSize int64) error {
	if c.MaxExtractionSize() == -1 {
		return nil
	}
	if fileSize > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// ContinueOnError returns true if the extraction should continue on error.
func (c *Config) ContinueOnError() bool {
	return c.continueOnError
}

// ContinueOnUnsupportedFiles returns true if unsupported entries, e.g. devices
// or symbolic links without a link writer, should be skipped.
func (c *Config) ContinueOnUnsupportedFiles() bool {
	return c.continueOnUnsupportedFiles
}

// CreateDestination returns true if the destination directory should be
// created if it does not exist.
func (c *Config) CreateDestination() bool {
	return c.createDestination
}

// CustomCreateDirMode returns the file mode for created directories. (respecting umask)
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomDecompressFileMode returns the file mode for a decompressed file. (respecting umask)
func (c *Config) CustomDecompressFileMode() fs.FileMode {
	return c.customDecompressFileMode
}

// DenySymlinkExtraction returns true if [Unpack] must not install a symlink
// writer on its own.
func (c *Config) DenySymlinkExtraction() bool {
	return c.denySymlinkExtraction
}

// DropFileAttributes returns true if the metadata of written files should
// not be restored.
func (c *Config) DropFileAttributes() bool {
	return c.dropFileAttributes
}

// ExtractFullPath returns true if the directory structure of an entry is
// reconstructed below the destination. If false, entries are flattened into
// the destination.
func (c *Config) ExtractFullPath() bool {
	return c.extractFullPath
}

// ExtractType returns the forced extraction type, empty if detected.
func (c *Config) ExtractType() string {
	return c.extractionType
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all extracted files.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles returns the maximum of entries (including directories and symlinks) in an archive.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// MaxInputSize returns the maximum size of the input.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// NoUntarAfterDecompression returns true if a decompressed tar should NOT be untared.
func (c *Config) NoUntarAfterDecompression() bool {
	return c.noUntarAfterDecompression
}

// Overwrite returns true if existing files may be replaced.
func (c *Config) Overwrite() bool {
	return c.overwrite
}

// Patterns returns a list of unix-filepath patterns to match entries to extract.
// Patterns are matched using [path/filepath.Match].
func (c *Config) Patterns() []string {
	return c.patterns
}

// StripComponents returns the number of leading directory segments removed
// from an entry before it is resolved. Zero means no stripping.
func (c *Config) StripComponents() int {
	return c.stripComponents
}

// SymlinkWriter returns the configured link writer, nil if symbolic link
// entries are unsupported.
func (c *Config) SymlinkWriter() SymlinkWriter {
	return c.symlinkWriter
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// TraverseSymlinks returns true if existing symlinks in the destination path
// are accepted. Containment is then checked lexically only.
func (c *Config) TraverseSymlinks() bool {
	return c.traverseSymlinks
}

// PreserveOwner returns true if the owner of extracted files and symbolic
// links is restored from the archive. It only applies to formats that store
// ownership (tar) and usually requires root privileges.
func (c *Config) PreserveOwner() bool {
	return c.preserveOwner
}

// clone returns a shallow copy, used to adjust a configuration for a single run.
func (c *Config) clone() *Config {
	cp := *c
	cp.patterns = append([]string(nil), c.patterns...)
	return &cp
}

const (
	defaultCacheInMemory              = false         // cache on disk
	defaultContinueOnError            = false         // stop on error and return error
	defaultContinueOnUnsupportedFiles = false         // stop on unsupported files and return error
	defaultCreateDestination          = false         // don't create destination directory
	defaultCustomCreateDirMode        = 0750          // default directory permissions rwxr-x---
	defaultCustomDecompressFileMode   = 0640          // default decompression permissions rw-r-----
	defaultDenySymlinkExtraction      = false         // allow symlink extraction
	defaultDropFileAttributes         = false         // restore file attributes from archive
	defaultExtractFullPath            = false         // flatten entries into the destination
	defaultExtractionType             = ""            // detect extraction type
	defaultMaxFiles                   = 100000        // 100k files
	defaultMaxExtractionSize          = 1 << (10 * 3) // 1 Gb
	defaultMaxInputSize               = 1 << (10 * 3) // 1 Gb
	defaultNoUntarAfterDecompression  = false         // untar after decompression
	defaultOverwrite                  = true          // replace existing files
	defaultPreserveOwner              = false         // don't preserve owner
	defaultStripComponents            = 0             // keep all directory segments
	defaultTraverseSymlinks           = false         // don't traverse symlinks
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {
	config := &Config{
		cacheInMemory:              defaultCacheInMemory,
		continueOnError:            defaultContinueOnError,
		continueOnUnsupportedFiles: defaultContinueOnUnsupportedFiles,
		createDestination:          defaultCreateDestination,
		customCreateDirMode:        defaultCustomCreateDirMode,
		customDecompressFileMode:   defaultCustomDecompressFileMode,
		denySymlinkExtraction:      defaultDenySymlinkExtraction,
		dropFileAttributes:         defaultDropFileAttributes,
		extractFullPath:            defaultExtractFullPath,
		extractionType:             defaultExtractionType,
		logger:                     defaultLogger,
		maxFiles:                   defaultMaxFiles,
		maxExtractionSize:          defaultMaxExtractionSize,
		maxInputSize:               defaultMaxInputSize,
		noUntarAfterDecompression:  defaultNoUntarAfterDecompression,
		overwrite:                  defaultOverwrite,
		preserveOwner:              defaultPreserveOwner,
		stripComponents:            defaultStripComponents,
		telemetryHook:              defaultTelemetryHook,
		traverseSymlinks:           defaultTraverseSymlinks,
	}

	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCacheInMemory options pattern function to cache zip, rar and 7z
// streams in memory. If set to false, the cache is stored on disk.
func WithCacheInMemory(cache bool) ConfigOption {
	return func(c *Config) {
		c.cacheInMemory = cache
	}
}

// WithContinueOnError options pattern function to continue on error during extraction. If set to true,
// the error is logged and the extraction continues. If set to false, the extraction stops and returns the error.
//
// A [*PathTraversalError] always stops the extraction.
func WithContinueOnError(yes bool) ConfigOption {
	return func(c *Config) {
		c.continueOnError = yes
	}
}

// WithContinueOnUnsupportedFiles options pattern function to skip entries
// that cannot be materialized instead of failing.
func WithContinueOnUnsupportedFiles(ctd bool) ConfigOption {
	return func(c *Config) {
		c.continueOnUnsupportedFiles = ctd
	}
}

// WithCreateDestination options pattern function to create
// destination directory if it does not exist.
func WithCreateDestination(create bool) ConfigOption {
	return func(c *Config) {
		c.createDestination = create
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for created directories. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomDecompressFileMode options pattern function to set the file mode for a
// decompressed file. (respecting umask)
func WithCustomDecompressFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customDecompressFileMode = mode
	}
}

// WithDenySymlinkExtraction options pattern function to deny symlink
// extraction in [Unpack]. Symbolic link entries then fail with an
// [*UnsupportedOperationError] unless a writer is set with [WithSymlinkWriter].
func WithDenySymlinkExtraction(deny bool) ConfigOption {
	return func(c *Config) {
		c.denySymlinkExtraction = deny
	}
}

// WithDropFileAttributes options pattern function to skip restoring the
// file attributes of written files.
func WithDropFileAttributes(drop bool) ConfigOption {
	return func(c *Config) {
		c.dropFileAttributes = drop
	}
}

// WithExtractFullPath options pattern function to reconstruct the directory
// structure of entries below the destination.
func WithExtractFullPath(enable bool) ConfigOption {
	return func(c *Config) {
		c.extractFullPath = enable
	}
}

// WithExtractType options pattern function to set the extraction type in the [Config].
func WithExtractType(extractionType string) ConfigOption {
	return func(c *Config) {
		if len(extractionType) > 0 {
			c.extractionType = extractionType
		}
	}
}

// WithInsecureTraverseSymlinks options pattern function to accept existing
// symlinks in the destination path. Containment is then only checked on the
// lexical path, and a symlink pointing outside of the destination can be
// used to escape it.
func WithInsecureTraverseSymlinks(traverse bool) ConfigOption {
	return func(c *Config) {
		c.traverseSymlinks = traverse
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all
// extracted files. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles options pattern function to set maximum number of extracted files, directories
// and symlinks during the extraction. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithMaxInputSize options pattern function to set MaxInputSize for extraction input file. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = maxInputSize
	}
}

// WithNoUntarAfterDecompression options pattern function to enable/disable combined tar.gz extraction.
func WithNoUntarAfterDecompression(disable bool) ConfigOption {
	return func(c *Config) {
		c.noUntarAfterDecompression = disable
	}
}

// WithOverwrite options pattern function specify if files should be overwritten in the destination.
func WithOverwrite(enable bool) ConfigOption {
	return func(c *Config) {
		c.overwrite = enable
	}
}

// WithPatterns options pattern function to set filepath pattern, that entries need to match to be extracted.
// Patterns are matched using [path/filepath.Match].
func WithPatterns(pattern ...string) ConfigOption {
	return func(c *Config) {
		c.patterns = append(c.patterns, pattern...)
	}
}

// WithPreserveOwner options pattern function to restore the owner of
// extracted files and symbolic links from the archive. Failing to do so is
// logged like other metadata failures.
func WithPreserveOwner(preserve bool) ConfigOption {
	return func(c *Config) {
		c.preserveOwner = preserve
	}
}

// WithStripComponents options pattern function to drop n leading directory
// segments of every entry, like tar --strip-components. Entries that are not
// nested deep enough are skipped. It only has an effect together with
// [WithExtractFullPath]. Values below 1 disable stripping.
func WithStripComponents(n int) ConfigOption {
	return func(c *Config) {
		if n < 0 {
			n = 0
		}
		c.stripComponents = n
	}
}

// WithSymlinkWriter options pattern function to set the writer for symbolic
// link entries.
func WithSymlinkWriter(w SymlinkWriter) ConfigOption {
	return func(c *Config) {
		c.symlinkWriter = w
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after extraction.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
