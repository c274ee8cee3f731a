// Package scanner runs one-shot analysis sweeps over source trees.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/analyzer"
	"github.com/kmattern/basewatch/internal/monitor"
)

// Report summarizes one scan pass.
type Report struct {
	Roots       []string              `json:"roots"`
	Files       int                   `json:"files"`
	Analyzed    int                   `json:"analyzed"`
	Skipped     int                   `json:"skipped"`
	Assessments []analyzer.Assessment `json:"assessments"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
}

// Scanner walks directories and analyzes every relevant file once.
type Scanner struct {
	analyzer analyzer.Analyzer
	filter   *monitor.Filter
	logger   *zap.Logger
}

// New builds a scanner. The analyzer is required; a nil filter uses the
// default relevance rules.
func New(an analyzer.Analyzer, filter *monitor.Filter, logger *zap.Logger) *Scanner {
	if filter == nil {
		filter = monitor.NewFilter(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{analyzer: an, filter: filter, logger: logger}
}

// Scan analyzes every relevant file under the roots. A root may also be a
// single file. Files that cannot be read or analyzed are counted as skipped
// and logged; a missing root fails the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*Report, error) {
	started := time.Now()
	report := &Report{Roots: roots, StartedAt: started.UTC()}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}

		if !info.IsDir() {
			s.scanFile(ctx, report, abs)
			continue
		}

		_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				s.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				if path != abs && s.filter.IgnoredDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(abs, path)
			if err != nil {
				rel = path
			}
			if !s.filter.Relevant(rel) {
				return nil
			}
			s.scanFile(ctx, report, path)
			return nil
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	sort.Slice(report.Assessments, func(i, j int) bool {
		return report.Assessments[i].Path < report.Assessments[j].Path
	})
	report.Duration = time.Since(started)

	s.logger.Info("scan complete",
		zap.Int("files", report.Files),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Duration),
	)
	return report, nil
}

func (s *Scanner) scanFile(ctx context.Context, report *Report, path string) {
	report.Files++

	content, err := os.ReadFile(path)
	if err != nil {
		report.Skipped++
		s.logger.Warn("read failed", zap.String("path", path), zap.Error(err))
		return
	}
	assessment, err := s.analyzer.Analyze(ctx, path, content)
	if err != nil {
		report.Skipped++
		s.logger.Warn("analysis failed", zap.String("path", path), zap.Error(err))
		return
	}

	report.Analyzed++
	report.Assessments = append(report.Assessments, *assessment)
}
