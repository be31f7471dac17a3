// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// safeextract-bench measures the extraction of archives with safeextract and
// compares the result and duration with [slug.Unpack].
package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/alecthomas/kong"
)

// CLI are the cli parameters for the benchmark
type CLI struct {
	CacheInMemory bool     `short:"c" help:"Hide the seeker of the input, so that safeextract caches zip, rar and 7z input."`
	InputArchives []string `arg:"" name:"input-archives" required:"" help:"Input archives to extract."`
	Iterations    int      `short:"i" default:"1" help:"Number of iterations to repeat the extraction."`
	Parallel      bool     `short:"P" help:"Run slug and safeextract on the same stream and compare the results."`
	Profile       bool     `short:"p" help:"Write a memory profile after all extractions."`
	ProfileOut    string   `short:"o" default:"mem.pprof" help:"Output file for the memory profile."`
	SafeExtract   bool     `short:"e" help:"Benchmark safeextract."`
	Slug          bool     `short:"s" help:"Benchmark slug."`
	SrcFromMem    bool     `short:"m" help:"Read input files into memory before extraction."`
	Verbose       bool     `short:"v" help:"Verbose logging."`
}

func main() {
	var cli CLI
	kong.Parse(&cli, kong.Description("Benchmark for safeextract"))

	lvl := slog.LevelInfo
	if cli.Verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	b := &bench{
		logger:        logger,
		cacheInMemory: cli.CacheInMemory,
		srcFromMem:    cli.SrcFromMem,
		methods:       cli.methods(),
	}
	if len(b.methods) == 0 {
		logger.Warn("no extraction method specified, using safeextract")
		b.methods[methodSafeExtract] = extractWithSafeExtract
	}

	results := b.run(context.Background(), cli.InputArchives, cli.Iterations)
	for _, key := range sortedKeys(results) {
		s := summarize(results[key])
		logger.Info("extraction profiling results", "key", key, "iterations", s.Count, "average", s.Avg, "min", s.Min, "max", s.Max, "std", s.Std)
	}

	if cli.Profile {
		logger.Info("analyze with: go tool pprof -http=:8080 " + cli.ProfileOut)
		if err := writeHeapProfile(cli.ProfileOut); err != nil {
			logger.Error("cannot write memory profile", "error", err)
			os.Exit(1)
		}
	}
}

// methods returns the extraction functions selected by the cli parameters.
func (cli *CLI) methods() map[string]extractFunc {
	m := map[string]extractFunc{}
	if cli.SafeExtract {
		m[methodSafeExtract] = extractWithSafeExtract
	}
	if cli.Slug {
		m[methodSlug] = extractWithSlug
	}
	if cli.Parallel {
		m[methodParallel] = extractParallel
	}
	return m
}

func writeHeapProfile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.WriteHeapProfile(f)
}
