// Package analyzer scans server access logs for crawler traffic and
// folds it into a multi-dimensional report. The scan is a synchronous,
// in-order pass over the input with cooperative yield points so a host
// can stay responsive during large files.
package analyzer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/sigmetapp/seohqs-sub000/internal/botsig"
	"github.com/sigmetapp/seohqs-sub000/internal/logparse"
)

// Default caps and cadence, preserved from the legacy dashboard.
const (
	defaultBotSampleCap   = 3
	defaultURLSampleCap   = 2
	defaultErrorSampleCap = 3
	defaultSampleChars    = 200
	defaultProgressEvery  = 100
	progressCeiling       = 95
	progressScale         = 90
)

// Options configures an Analyzer. Zero values keep legacy behavior.
type Options struct {
	// Matcher identifies crawler lines. Defaults to the built-in table.
	Matcher *botsig.Matcher
	// Extractor pulls request fields from lines. Defaults to the
	// standard chains with legacy bounds.
	Extractor *logparse.Extractor
	// BotSampleCap, URLSampleCap, ErrorSampleCap bound retained sample
	// lines per entity (defaults 3, 2, 3).
	BotSampleCap   int
	URLSampleCap   int
	ErrorSampleCap int
	// SampleChars truncates retained sample lines (default 200).
	SampleChars int
	// ProgressEvery sets the tick cadence in lines (default 100).
	ProgressEvery int
	// Yield runs between progress ticks so the host can breathe during
	// large scans. Defaults to runtime.Gosched.
	Yield func()
	// Logger records scan diagnostics. Defaults to a nop logger.
	Logger *zap.Logger
}

// Analyzer runs log scans. Safe for concurrent use; all mutable state
// lives in the per-scan aggregator.
type Analyzer struct {
	matcher   *botsig.Matcher
	extractor *logparse.Extractor
	caps      caps
	every     int
	yield     func()
	logger    *zap.Logger
}

// New constructs an Analyzer, applying defaults for unset options.
func New(opts Options) *Analyzer {
	if opts.Matcher == nil {
		opts.Matcher = botsig.NewMatcher(botsig.Config{})
	}
	if opts.Extractor == nil {
		opts.Extractor = logparse.NewExtractor(logparse.Config{})
	}
	if opts.BotSampleCap <= 0 {
		opts.BotSampleCap = defaultBotSampleCap
	}
	if opts.URLSampleCap <= 0 {
		opts.URLSampleCap = defaultURLSampleCap
	}
	if opts.ErrorSampleCap <= 0 {
		opts.ErrorSampleCap = defaultErrorSampleCap
	}
	if opts.SampleChars <= 0 {
		opts.SampleChars = defaultSampleChars
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.Yield == nil {
		opts.Yield = runtime.Gosched
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Analyzer{
		matcher:   opts.Matcher,
		extractor: opts.Extractor,
		caps: caps{
			botSamples:   opts.BotSampleCap,
			urlSamples:   opts.URLSampleCap,
			errorSamples: opts.ErrorSampleCap,
			sampleChars:  opts.SampleChars,
		},
		every:  opts.ProgressEvery,
		yield:  opts.Yield,
		logger: opts.Logger,
	}
}

// Progress is a point-in-time scan snapshot handed to the progress
// callback: the tick percentage plus the counters accumulated so far.
type Progress struct {
	Percent   int
	Lines     int64
	BotVisits int64
}

// Analyze scans the newline-delimited text and returns the finalized
// report. onProgress, when non-nil, receives monotonically
// non-decreasing percentages capped at 95 during the scan and exactly
// 100 on completion, each carrying the running line and visit counters.
//
// Cancellation via ctx stops iteration between ticks and returns the
// partial report alongside the context error; the caller decides
// whether the partial snapshot is useful. Any other mid-scan fault is
// returned as a single scan-level error with no result.
func (a *Analyzer) Analyze(ctx context.Context, text string, onProgress func(Progress)) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("log analysis aborted: %v", r)
		}
	}()

	lines := strings.Split(text, "\n")
	agg := newAggregator(a.caps)
	total := len(lines)

	for i, line := range lines {
		if i > 0 && i%a.every == 0 {
			if ctx.Err() != nil {
				a.logger.Debug("scan canceled",
					zap.Int("lines_processed", i),
					zap.Int("lines_total", total),
				)
				return agg.finalize(), fmt.Errorf("scan canceled: %w", ctx.Err())
			}
			if onProgress != nil {
				onProgress(Progress{
					Percent:   tickPercent(i, total),
					Lines:     int64(agg.totalLines),
					BotVisits: int64(agg.totalVisits),
				})
			}
			a.yield()
		}
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		agg.totalLines++

		match, ok := a.matcher.Match(line)
		if !ok {
			continue
		}
		agg.update(match, a.extractor.Extract(line), line)
	}

	res = agg.finalize()
	if onProgress != nil {
		onProgress(Progress{
			Percent:   100,
			Lines:     int64(agg.totalLines),
			BotVisits: int64(agg.totalVisits),
		})
	}
	a.logger.Debug("scan complete",
		zap.Int("lines_total", agg.totalLines),
		zap.Int("bot_visits", agg.totalVisits),
		zap.Int("unique_bots", len(agg.bots)),
	)
	return res, nil
}

// tickPercent computes floor(min(95, 90*index/total)). The 95 ceiling
// keeps the bar short of done until finalize jumps it to 100.
func tickPercent(index, total int) int {
	if total <= 0 {
		return 0
	}
	pct := progressScale * index / total
	if pct > progressCeiling {
		pct = progressCeiling
	}
	return pct
}
