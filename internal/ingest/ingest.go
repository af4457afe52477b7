// Package ingest stages local statement files into the blob store and turns
// them into pipeline requests.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/blob"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	Request      pipeline.Request
	Deduplicated bool
	HashHex      string
	StagedAt     time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

type Options struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	SkipHidden  bool
	MaxBytes    int64 // 0 -> constants.MaxObjectBytes
}

// Stager copies files into a blob store under a content-addressed key.
type Stager struct {
	store  blob.Writer
	opts   Options
	logger *slog.Logger
}

func NewStager(store blob.Writer, opts Options, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AllowedExts == nil {
		opts.AllowedExts = constants.AllowedExtensions
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = constants.MaxObjectBytes
	}
	return &Stager{store: store, opts: opts, logger: logger}
}

// StagePath stages one file. Files already staged under the same content
// hash are not written again.
func (s *Stager) StagePath(ctx context.Context, path string) (Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !s.allowed(ext) {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}
	if info.Size() > s.opts.MaxBytes {
		return out, fmt.Errorf("%s is %d bytes, limit is %d", abs, info.Size(), s.opts.MaxBytes)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}

	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])
	key := StagingKey(out.HashHex, ext)
	ct := constants.ContentTypeForExt(ext)
	out.Request = pipeline.Request{DocumentKey: key, ContentType: ct}
	out.StagedAt = time.Now().UTC()

	if s.store.Exists(key) {
		out.Deduplicated = true
		s.logger.Debug("ingest.stage.dedup", "path", abs, "key", key)
		return out, nil
	}
	if err := s.store.Put(ctx, key, data, ct); err != nil {
		s.logger.Error("ingest.stage.failed", "path", abs, "key", key, "err", err)
		return out, err
	}
	s.logger.Info("ingest.stage.ok", "path", abs, "key", key, "bytes", len(data))
	return out, nil
}

// Directory walks root and stages every allowed file. Per-file failures are
// reported in the results; only a walk failure is returned as an error.
func (s *Stager) Directory(ctx context.Context, root string) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if s.opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !s.allowed(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		r, err := s.StagePath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	s.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// Requests returns the pipeline requests of the successful results, one per
// distinct document key.
func Requests(results []Result) []pipeline.Request {
	seen := map[string]bool{}
	var out []pipeline.Request
	for _, r := range results {
		if r.Err != "" || seen[r.Request.DocumentKey] {
			continue
		}
		seen[r.Request.DocumentKey] = true
		out = append(out, r.Request)
	}
	return out
}

func (s *Stager) allowed(ext string) bool {
	_, ok := s.opts.AllowedExts[ext]
	return ok
}
