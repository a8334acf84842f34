package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PipelineDeps carries the capabilities a Pipeline sequences. Cache,
// Pacer and Metrics are optional.
type PipelineDeps struct {
	Fetcher    Fetcher
	Segmenter  Segmenter
	Recognizer Recognizer
	Aggregator *Aggregator
	Reporter   Reporter
	Cache      RecognitionCache
	Pacer      Pacer
	Metrics    MetricsSink
}

// Pipeline sequences Fetch -> Segment -> Recognize -> Aggregate -> Report
// for one source at a time. Chunks are processed strictly in order with a
// single recognition call in flight.
type Pipeline struct {
	config     *Config
	fetcher    Fetcher
	segmenter  Segmenter
	recognizer Recognizer
	aggregator *Aggregator
	reporter   Reporter
	cache      RecognitionCache
	pacer      Pacer
	metrics    MetricsSink
	logger     *zap.Logger

	state PipelineState
}

// RunResult summarizes one processed source file.
type RunResult struct {
	SourcePath string
	ReportPath string
	Tracks     []Track
	Chunks     int
}

// BatchResult summarizes a scan over the downloads directory.
type BatchResult struct {
	Processed int
	Failed    int
	Reports   []string
}

func NewPipeline(config *Config, deps PipelineDeps, logger *zap.Logger) *Pipeline {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &Pipeline{
		config:     config,
		fetcher:    deps.Fetcher,
		segmenter:  deps.Segmenter,
		recognizer: deps.Recognizer,
		aggregator: deps.Aggregator,
		reporter:   deps.Reporter,
		cache:      deps.Cache,
		pacer:      deps.Pacer,
		metrics:    metrics,
		logger:     logger,
		state:      StateIdle,
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() PipelineState {
	return p.state
}

// ProcessInput runs the full pipeline on a URL or a local file path.
func (p *Pipeline) ProcessInput(ctx context.Context, input string) (*RunResult, error) {
	p.setState(StateResolving)

	if isURL(input) {
		return p.ProcessURL(ctx, input)
	}

	if _, err := os.Stat(input); err != nil {
		return p.fail(fmt.Errorf("input file not found: %w", err))
	}

	return p.ProcessFile(ctx, input)
}

// ProcessURL fetches a provider URL and runs the pipeline on the result.
// URLs outside the provider allowlist fail before any network activity.
func (p *Pipeline) ProcessURL(ctx context.Context, url string) (*RunResult, error) {
	if !p.fetcher.CanFetch(url) {
		return p.fail(fmt.Errorf("%w: %s", ErrUnsupportedSource, sanitizeURL(url)))
	}

	p.setState(StateFetching)
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.Fetch.Timeout)
	defer cancel()

	path, err := p.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		return p.fail(err)
	}
	p.metrics.ObserveStage("fetch", time.Since(start))

	p.logger.Info("Download complete", zap.String("path", path))

	return p.ProcessFile(ctx, path)
}

// ProcessFile runs segmentation, recognition, aggregation and reporting
// on one local audio file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*RunResult, error) {
	runStart := time.Now()

	p.setState(StateSegmenting)
	p.logger.Info("Segmenting audio file", zap.String("source", path))

	src, err := p.segmenter.Segment(ctx, path)
	if err != nil {
		return p.fail(err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			p.logger.Warn("Failed to clean up chunk directory", zap.Error(closeErr))
		}
	}()

	total := src.Len()
	p.setState(StateRecognizing)
	p.logger.Info("Recognizing segments", zap.Int("chunks", total))

	results := make([]RecognitionResult, 0, total)
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.fail(err)
		}

		track, recErr := p.recognizeChunk(ctx, chunk)
		if removeErr := chunk.Remove(); removeErr != nil {
			p.logger.Warn("Failed to remove chunk file",
				zap.String("path", chunk.Path),
				zap.Error(removeErr))
		}
		if recErr != nil {
			return p.fail(recErr)
		}

		p.logProgress(chunk.Index+1, total, track)
		results = append(results, RecognitionResult{ChunkIndex: chunk.Index, Track: track})
	}

	p.setState(StateAggregating)
	tracks := p.aggregator.Aggregate(results)

	p.setState(StateReporting)
	reportPath, err := p.reporter.Write(tracks, time.Now())
	if err != nil {
		return p.fail(fmt.Errorf("failed to write report: %w", err))
	}
	p.metrics.RecordReport()
	p.metrics.ObserveStage("pipeline", time.Since(runStart))

	p.setState(StateDone)
	p.logSummary(tracks, reportPath)

	return &RunResult{
		SourcePath: path,
		ReportPath: reportPath,
		Tracks:     tracks,
		Chunks:     len(results),
	}, nil
}

// ScanDirectory processes every supported audio file in the downloads
// directory, strictly sequentially. One file's fatal failure is logged
// and the batch continues; only setup failures abort the scan.
func (p *Pipeline) ScanDirectory(ctx context.Context) (*BatchResult, error) {
	dir := p.config.Fetch.DownloadsDir

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read downloads directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".mp3") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		p.logger.Warn("No MP3 files found in downloads directory", zap.String("dir", dir))
		return &BatchResult{}, nil
	}

	p.logger.Info("Starting batch scan", zap.Int("files", len(files)))

	batch := &BatchResult{}
	for i, file := range files {
		p.logger.Info("Processing file",
			zap.Int("index", i+1),
			zap.Int("total", len(files)),
			zap.String("source", file))

		result, err := p.ProcessFile(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Error("Failed to process file",
				zap.String("source", file),
				zap.Error(err))
			batch.Failed++
			continue
		}

		batch.Processed++
		batch.Reports = append(batch.Reports, result.ReportPath)
	}

	p.logger.Info("Batch scan complete",
		zap.Int("processed", batch.Processed),
		zap.Int("failed", batch.Failed))

	return batch, nil
}

// recognizeChunk resolves one chunk to a track, a no-match, or an error.
// A nil track with nil error is a no-match outcome, which includes
// service errors that survived the retry budget.
func (p *Pipeline) recognizeChunk(ctx context.Context, chunk *Chunk) (*Track, error) {
	if p.cache != nil {
		track, ok, err := p.cache.Lookup(chunk.Path)
		if err != nil {
			p.logger.Debug("Cache lookup failed", zap.Error(err))
		} else if ok {
			p.metrics.RecordCacheHit()
			return track, nil
		}
	}

	policy := RetryPolicy{
		Attempts: p.config.Recognizer.MaxAttempts,
		Backoff:  p.config.Recognizer.RetryBackoff,
		OnRetry: func(attempt int, err error) {
			p.metrics.RecordRetry()
			p.logger.Debug("Retrying recognition",
				zap.Int("chunk", chunk.Index),
				zap.Int("attempt", attempt),
				zap.Error(err))
		},
	}

	var track *Track
	err := policy.Do(ctx, func(ctx context.Context) error {
		if p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.config.Recognizer.Timeout)
		defer cancel()

		t, err := p.recognizer.Recognize(callCtx, chunk.Path)
		if err != nil {
			return err
		}
		track = t
		return nil
	})

	provider := p.recognizer.Name()
	switch {
	case err == nil:
		p.metrics.RecordChunk("matched")
		p.metrics.RecordRecognition(provider, "matched")
		p.storeInCache(chunk.Path, track)
		return track, nil

	case errors.Is(err, ErrNoMatch):
		p.metrics.RecordChunk("nomatch")
		p.metrics.RecordRecognition(provider, "nomatch")
		p.storeInCache(chunk.Path, nil)
		return nil, nil

	case IsServiceError(err):
		// All attempts failed; demote to no-match so the rest of the
		// file still gets recognized. Not cached.
		p.metrics.RecordChunk("error")
		p.metrics.RecordRecognition(provider, "error")
		p.logger.Warn("Recognition gave up on chunk",
			zap.Int("chunk", chunk.Index),
			zap.Error(err))
		return nil, nil

	default:
		return nil, err
	}
}

func (p *Pipeline) storeInCache(chunkPath string, track *Track) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Store(chunkPath, track); err != nil {
		p.logger.Debug("Cache store failed", zap.Error(err))
	}
}

func (p *Pipeline) logProgress(current, total int, track *Track) {
	if track == nil {
		p.logger.Info(fmt.Sprintf("[%d/%d]: not found", current, total))
		return
	}
	p.logger.Info(fmt.Sprintf("[%d/%d]: %s - %s", current, total, track.Artist, track.Title))
}

func (p *Pipeline) logSummary(tracks []Track, reportPath string) {
	p.logger.Info("Recognition complete",
		zap.Int("tracks", len(tracks)),
		zap.String("report", reportPath))

	for i, track := range tracks {
		p.logger.Info(fmt.Sprintf("  %d. %s - %s", i+1, track.Artist, track.Title))
	}
}

func (p *Pipeline) setState(state PipelineState) {
	p.logger.Debug("Pipeline state change",
		zap.Stringer("from", p.state),
		zap.Stringer("to", state))
	p.state = state
}

func (p *Pipeline) fail(err error) (*RunResult, error) {
	p.setState(StateFailed)
	return nil, err
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// sanitizeURL strips query parameters and fragments so URLs can be
// logged without leaking tokens or tracking parameters.
func sanitizeURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
