// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	safeextract "github.com/hashicorp/go-safeextract"
	"github.com/hashicorp/go-slug"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	methodParallel    = "parallel"
	methodSafeExtract = "safeextract"
	methodSlug        = "slug"
)

// extractFunc extracts src into the existing directory dst.
type extractFunc func(ctx context.Context, src io.Reader, dst string) error

// slugCompatibleConfig makes safeextract behave like [slug.Unpack], so
// that both produce the same tree.
func slugCompatibleConfig() *safeextract.Config {
	return safeextract.NewConfig(
		safeextract.WithContinueOnError(true),
		safeextract.WithContinueOnUnsupportedFiles(true),
		safeextract.WithExtractFullPath(true),
		safeextract.WithMaxExtractionSize(-1),
		safeextract.WithMaxFiles(-1),
		safeextract.WithMaxInputSize(-1),
		safeextract.WithTelemetryHook(telemetry.store),
	)
}

// telemetry collects the telemetry data of all safeextract runs
var telemetry telemetryStore

type telemetryStore struct {
	mu   sync.Mutex
	data []safeextract.TelemetryData
}

func (s *telemetryStore) store(_ context.Context, d *safeextract.TelemetryData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, *d)
}

func (s *telemetryStore) last() (safeextract.TelemetryData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return safeextract.TelemetryData{}, false
	}
	return s.data[len(s.data)-1], true
}

func extractWithSafeExtract(ctx context.Context, src io.Reader, dst string) error {
	return safeextract.Unpack(ctx, dst, src, slugCompatibleConfig())
}

func extractWithSlug(_ context.Context, src io.Reader, dst string) error {
	return slug.Unpack(src, dst)
}

// extractParallel feeds the same stream into slug and safeextract and
// fails if the extracted trees differ. The slug result is kept in dst.
func extractParallel(ctx context.Context, src io.Reader, dst string) error {
	pipeRead, pipeWrite := io.Pipe()
	tee := io.TeeReader(src, pipeWrite)

	safeDst, err := os.MkdirTemp("", "safeextract-bench-*")
	if err != nil {
		return fmt.Errorf("cannot create temp directory: %w", err)
	}
	defer os.RemoveAll(safeDst)

	eg := &errgroup.Group{}
	eg.Go(func() error {
		defer pipeWrite.Close()
		if err := slug.Unpack(tee, dst); err != nil {
			return err
		}
		// the tee only forwards what slug consumed
		_, err := io.Copy(io.Discard, tee)
		return err
	})
	eg.Go(func() error {
		defer pipeRead.Close()
		if err := extractWithSafeExtract(ctx, pipeRead, safeDst); err != nil {
			return err
		}
		_, err := io.Copy(io.Discard, pipeRead)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	return compareDirectories(dst, safeDst)
}

// compareDirectories fails if an entry of want is missing in got or differs
// in type or size.
func compareDirectories(want string, got string) error {
	wantEntries, err := listTree(want)
	if err != nil {
		return err
	}
	gotEntries, err := listTree(got)
	if err != nil {
		return err
	}

	for path, w := range wantEntries {
		g, ok := gotEntries[path]
		if !ok {
			return fmt.Errorf("%s not found in %s", path, got)
		}
		if w.Mode().Type() != g.Mode().Type() {
			return fmt.Errorf("%s has a different type in %s", path, got)
		}
		if w.Mode().IsRegular() && w.Size() != g.Size() {
			return fmt.Errorf("%s has a different size in %s", path, got)
		}
	}
	return nil
}

// listTree returns the file info of all entries below root, keyed by their
// slash separated path relative to root.
func listTree(root string) (map[string]fs.FileInfo, error) {
	entries := map[string]fs.FileInfo{}
	err := filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return errors.Wrap(err, "error walking directory")
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Wrap(err, "error walking directory")
		}
		entries[filepath.ToSlash(rel)] = info
		return nil
	})
	return entries, err
}

// bench runs the extraction functions against input archives.
type bench struct {
	logger        *slog.Logger
	cacheInMemory bool
	srcFromMem    bool
	methods       map[string]extractFunc
}

// run extracts every input with every method iterations times and returns
// the durations of the successful runs per input and method.
func (b *bench) run(ctx context.Context, inputs []string, iterations int) map[string][]time.Duration {
	results := map[string][]time.Duration{}
	for i := 0; i < iterations; i++ {
		for _, input := range inputs {
			for name, fn := range b.methods {
				d, err := b.measure(ctx, input, name, fn)
				if err != nil {
					b.logger.Error("error during extraction", "error", err)
					continue
				}
				key := fmt.Sprintf("%s-%s", input, name)
				results[key] = append(results[key], d)
			}
		}
	}
	return results
}

// noSeeker hides all methods of the wrapped reader except Read.
type noSeeker struct {
	r io.Reader
}

func (n *noSeeker) Read(p []byte) (int, error) {
	return n.r.Read(p)
}

// measure extracts input with fn into a temporary directory.
func (b *bench) measure(ctx context.Context, input string, name string, fn extractFunc) (time.Duration, error) {
	dst, err := os.MkdirTemp("", "safeextract-bench-*")
	if err != nil {
		return 0, fmt.Errorf("error creating temp directory: %w", err)
	}
	defer os.RemoveAll(dst)

	f, err := os.Open(input)
	if err != nil {
		return 0, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if b.srcFromMem {
		data, err := io.ReadAll(f)
		if err != nil {
			return 0, fmt.Errorf("error reading file into memory: %w", err)
		}
		src = bytes.NewReader(data)
	}
	if b.cacheInMemory {
		src = &noSeeker{r: src}
	}

	start := time.Now()
	if err := fn(ctx, src, dst); err != nil {
		return 0, fmt.Errorf("error performing extraction with %s: %w", name, err)
	}
	d := time.Since(start)

	b.logger.Debug("extraction finished", "method", name, "input", input, "duration", d)
	if td, ok := telemetry.last(); ok && name != methodSlug {
		b.logger.Debug("telemetry", "data", td.String())
	}
	return d, nil
}

// summary of the durations of one input and method
type summary struct {
	Count              int
	Avg, Min, Max, Std time.Duration
}

func summarize(durations []time.Duration) summary {
	s := summary{Count: len(durations)}
	if s.Count == 0 {
		return s
	}
	s.Min = time.Duration(math.MaxInt64)
	var sum time.Duration
	for _, d := range durations {
		sum += d
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
	}
	s.Avg = sum / time.Duration(s.Count)

	var variance float64
	for _, d := range durations {
		variance += math.Pow(float64(d-s.Avg), 2)
	}
	s.Std = time.Duration(math.Sqrt(variance / float64(s.Count)))
	return s
}

func sortedKeys(m map[string][]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
