// Package segment splits audio files into fixed-duration chunks with
// ffmpeg. Chunks are materialized lazily, one temporary file at a time,
// so a long file never holds more than one chunk's disk space beyond the
// chunk currently being recognized.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"shazamtool/internal/core"
	"shazamtool/internal/execx"
)

// Boundary describes one chunk's position in the source file.
type Boundary struct {
	Start    time.Duration
	Duration time.Duration
}

// Boundaries computes fixed-length chunk boundaries for a file of the
// given total duration. It produces ceil(total/chunk) boundaries; the
// final chunk may be shorter. The boundary durations always sum to total.
func Boundaries(total, chunk time.Duration) []Boundary {
	if total <= 0 || chunk <= 0 {
		return nil
	}

	var bounds []Boundary
	for start := time.Duration(0); start < total; start += chunk {
		dur := chunk
		if start+dur > total {
			dur = total - start
		}
		bounds = append(bounds, Boundary{Start: start, Duration: dur})
	}
	return bounds
}

// FFmpegSegmenter implements core.Segmenter by shelling out to ffmpeg.
type FFmpegSegmenter struct {
	config *core.SegmentConfig
	runner execx.Runner
	logger *zap.Logger
}

func NewFFmpegSegmenter(config *core.SegmentConfig, logger *zap.Logger) *FFmpegSegmenter {
	return &FFmpegSegmenter{
		config: config,
		runner: execx.OSRunner{},
		logger: logger,
	}
}

// SetRunner replaces the command runner, for tests.
func (s *FFmpegSegmenter) SetRunner(r execx.Runner) {
	s.runner = r
}

// Segment probes the file's duration and returns a lazy chunk sequence.
// Re-invoking Segment on the same file yields an equivalent sequence with
// freshly created chunk files.
func (s *FFmpegSegmenter) Segment(ctx context.Context, path string) (core.ChunkSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &core.DecodeError{Path: path, Cause: err}
	}

	total, err := s.probeDuration(ctx, path)
	if err != nil {
		return nil, &core.DecodeError{Path: path, Cause: err}
	}

	bounds := Boundaries(total, s.config.Duration)
	if len(bounds) == 0 {
		return nil, &core.DecodeError{Path: path, Cause: errors.New("file has no audio duration")}
	}

	tempDir, err := os.MkdirTemp(s.config.TempDir, "shazamtool-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create chunk directory: %w", err)
	}

	s.logger.Debug("Segmented audio file",
		zap.String("source", path),
		zap.Duration("total", total),
		zap.Int("chunks", len(bounds)))

	return &cursor{
		seg:        s,
		sourcePath: path,
		bounds:     bounds,
		tempDir:    tempDir,
	}, nil
}

// probeDuration reads the stream duration from ffmpeg's own output.
// ffmpeg exits non-zero for a null muxer run, so the output is parsed
// regardless of the exit status.
func (s *FFmpegSegmenter) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	args := []string{"-i", path, "-f", "null", "-"}

	output, err := s.runner.CombinedOutput(ctx, s.config.FFmpegPath, args)
	if err != nil && len(output) == 0 {
		return 0, err
	}

	return ParseFFmpegDuration(string(output))
}

type cursor struct {
	seg        *FFmpegSegmenter
	sourcePath string
	bounds     []Boundary
	tempDir    string
	next       int
}

func (c *cursor) Len() int {
	return len(c.bounds)
}

// Next extracts the next chunk into a temporary file. The caller owns
// the file and removes it after recognition via Chunk.Remove.
func (c *cursor) Next(ctx context.Context) (*core.Chunk, error) {
	if c.next >= len(c.bounds) {
		return nil, io.EOF
	}

	index := c.next
	bound := c.bounds[index]
	chunkPath := filepath.Join(c.tempDir, fmt.Sprintf("chunk_%03d.mp3", index))

	if err := c.extract(ctx, bound, chunkPath); err != nil {
		return nil, &core.DecodeError{Path: c.sourcePath, Cause: err}
	}
	c.next++

	return &core.Chunk{
		SourcePath:  c.sourcePath,
		Index:       index,
		StartOffset: bound.Start,
		Duration:    bound.Duration,
		Path:        chunkPath,
	}, nil
}

func (c *cursor) Close() error {
	return os.RemoveAll(c.tempDir)
}

// extract re-encodes one segment so the chunk is a valid standalone file
// even when the source container is slightly damaged.
func (c *cursor) extract(ctx context.Context, bound Boundary, chunkPath string) error {
	args := []string{
		"-y",
		"-i", c.sourcePath,
		"-ss", FormatFFmpegTime(bound.Start),
		"-t", FormatFFmpegTime(bound.Duration),
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "128k",
		chunkPath,
	}

	output, err := c.seg.runner.CombinedOutput(ctx, c.seg.config.FFmpegPath, args)
	if err != nil {
		return fmt.Errorf("ffmpeg chunk extraction failed: %w: %s", err, string(output))
	}
	return nil
}
