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
	"sort"
	"strings"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// ReadFile loads one PDF and hashes its content.
func ReadFile(path string) (entity.FileInput, error) {
	if !AllowedExt(filepath.Ext(path)) {
		return entity.FileInput{}, fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.FileInput{}, err
	}
	sum := sha256.Sum256(data)
	return entity.FileInput{
		Name: filepath.Base(path),
		Size: int64(len(data)),
		Hash: hex.EncodeToString(sum[:]),
		Data: data,
	}, nil
}

// ReadDirectory walks root and returns every PDF in lexical path order.
// Files whose content repeats an earlier file are reported but not returned.
// Names are relative to root so that files in different folders stay
// distinct within one session.
func ReadDirectory(ctx context.Context, root string, skipHidden bool, logger *slog.Logger) ([]entity.FileInput, []Result, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, results, stats, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	inputs := make([]entity.FileInput, 0, len(paths))
	for _, path := range paths {
		in, err := ReadFile(path)
		if err != nil {
			logger.Warn("ingest.read.failed", "path", path, "error", err)
			results = append(results, Result{Path: path, Err: err.Error()})
			stats.Failed++
			continue
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			in.Name = filepath.ToSlash(rel)
		}

		res := Result{Path: path, Name: in.Name, Size: in.Size, HashHex: in.Hash}
		if first, dup := seen[in.Hash]; dup {
			logger.Info("ingest.duplicate", "path", path, "same_as", first)
			res.Deduplicated = true
			stats.Deduplicated++
		} else {
			seen[in.Hash] = path
			inputs = append(inputs, in)
			stats.Bytes += in.Size
		}
		results = append(results, res)
		stats.Succeeded++
	}

	logger.Debug("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return inputs, results, stats, nil
}
