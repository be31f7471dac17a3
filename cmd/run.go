// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	safeextract "github.com/hashicorp/go-safeextract"
	"github.com/pkg/errors"
)

// CLI are the cli parameters for the safeextract binary
type CLI struct {
	Archive                    string           `arg:"" name:"archive" help:"Path to archive. (\"-\" for STDIN)" type:"existing file"`
	CacheInMemory              bool             `short:"M" help:"Cache zip, rar and 7z streams in memory instead of a temporary file."`
	ContinueOnError            bool             `short:"C" help:"Continue extraction on error. Path traversal always stops the extraction."`
	ContinueOnUnsupportedFiles bool             `short:"S" help:"Skip extraction of unsupported files."`
	CreateDestination          bool             `short:"c" help:"Create destination directory if it does not exist."`
	DenySymlinks               bool             `short:"D" help:"Deny symlink extraction."`
	Destination                string           `arg:"" name:"destination" default:"." help:"Output directory/file."`
	DropFileAttributes         bool             `help:"Don't restore file mode and modification time from the archive."`
	FullPath                   bool             `negatable:"" default:"true" help:"Recreate the directories of the archive below the destination. (--no-full-path flattens all files into the destination)"`
	InsecureTraverseSymlinks   bool             `help:"[Dangerous!] Write through existing symlinks below the destination."`
	KeepExisting               bool             `short:"K" help:"Fail instead of replacing existing files."`
	MaxFiles                   int64            `optional:"" default:"100000" help:"Maximum files that are extracted before stop. (disable check: -1)"`
	MaxExtractionSize          int64            `optional:"" default:"1073741824" help:"Maximum extraction size that allowed is (in bytes). (disable check: -1)"`
	MaxExtractionTime          int64            `optional:"" default:"60" help:"Maximum time that an extraction should take (in seconds). (disable check: -1)"`
	MaxInputSize               int64            `optional:"" default:"1073741824" help:"Maximum input size that allowed is (in bytes). (disable check: -1)"`
	NoUntarAfterDecompression  bool             `optional:"" default:"false" help:"Disable combined extraction of tar.gz and friends."`
	Pattern                    []string         `short:"P" optional:"" name:"pattern" help:"Extracted objects need to match shell file name pattern."`
	PreserveOwner              bool             `help:"Restore numeric owner and group from the archive (tar only)."`
	StripComponents            int              `optional:"" default:"0" help:"Remove the given number of leading directories from entry names. Shallower entries are skipped."`
	Telemetry                  bool             `short:"T" optional:"" default:"false" help:"Print telemetry data to log after extraction."`
	Type                       string           `short:"t" optional:"" default:"${default_type}" help:"Type of archive. (${valid_types})"`
	Verbose                    bool             `short:"v" optional:"" help:"Verbose logging."`
	Version                    kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Run the entrypoint into safeextract as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kong.Parse(&cli,
		kong.Description("A secure extraction utility"),
		kong.UsageOnError(),
		kong.Vars{
			"version":      fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
			"valid_types":  fmt.Sprint(safeextract.AvailableExtractors()),
			"default_type": "",
		},
	)

	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if err := cli.run(logger); err != nil {
		logger.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

// run extracts the archive with the configuration from the cli parameters.
func (cli *CLI) run(logger *slog.Logger) error {
	ctx := context.Background()

	config := safeextract.NewConfig(cli.options(logger)...)

	var archive io.Reader
	if cli.Archive == "-" {
		archive = bufio.NewReader(os.Stdin)
	} else {
		f, err := os.Open(cli.Archive)
		if err != nil {
			return errors.Wrap(err, "opening archive failed")
		}
		defer f.Close()
		archive = f
	}

	if cli.MaxExtractionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(cli.MaxExtractionTime))
		defer cancel()
	}

	if err := safeextract.Unpack(ctx, cli.Destination, archive, config); err != nil {
		return errors.Wrap(err, "error during extraction")
	}
	return nil
}

// options translates the cli parameters into configuration options.
func (cli *CLI) options(logger *slog.Logger) []safeextract.ConfigOption {
	telemetryToLog := func(ctx context.Context, td *safeextract.TelemetryData) {
		if cli.Telemetry {
			logger.Info("extraction finished", "telemetry", td)
		}
	}

	return []safeextract.ConfigOption{
		safeextract.WithCacheInMemory(cli.CacheInMemory),
		safeextract.WithContinueOnError(cli.ContinueOnError),
		safeextract.WithContinueOnUnsupportedFiles(cli.ContinueOnUnsupportedFiles),
		safeextract.WithCreateDestination(cli.CreateDestination),
		safeextract.WithDenySymlinkExtraction(cli.DenySymlinks),
		safeextract.WithDropFileAttributes(cli.DropFileAttributes),
		safeextract.WithExtractFullPath(cli.FullPath),
		safeextract.WithExtractType(cli.Type),
		safeextract.WithInsecureTraverseSymlinks(cli.InsecureTraverseSymlinks),
		safeextract.WithLogger(logger),
		safeextract.WithMaxExtractionSize(cli.MaxExtractionSize),
		safeextract.WithMaxFiles(cli.MaxFiles),
		safeextract.WithMaxInputSize(cli.MaxInputSize),
		safeextract.WithNoUntarAfterDecompression(cli.NoUntarAfterDecompression),
		safeextract.WithOverwrite(!cli.KeepExisting),
		safeextract.WithPatterns(cli.Pattern...),
		safeextract.WithPreserveOwner(cli.PreserveOwner),
		safeextract.WithStripComponents(cli.StripComponents),
		safeextract.WithTelemetryHook(telemetryToLog),
	}
}
