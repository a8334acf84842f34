package core

import (
	"context"
	"os"
	"time"
)

// Track is a single identified song. Identity is the (artist, title)
// pair after normalization; see Aggregator.TrackKey.
type Track struct {
	Artist string
	Title  string
}

// Chunk is one fixed-duration slice of a source audio file, materialized
// as a temporary file immediately before recognition.
type Chunk struct {
	SourcePath  string
	Index       int
	StartOffset time.Duration
	Duration    time.Duration
	Path        string
}

// Remove deletes the chunk's temporary file. Safe to call on a chunk
// that was never materialized.
func (c *Chunk) Remove() error {
	if c.Path == "" {
		return nil
	}
	return os.Remove(c.Path)
}

// RecognitionResult is the outcome of recognizing one chunk. A nil
// Track means the chunk produced no match.
type RecognitionResult struct {
	ChunkIndex int
	Track      *Track
}

// Report is the final deduplicated, ordered track list for one source file.
type Report struct {
	SourcePath string
	Tracks     []Track
	Timestamp  time.Time
}

type PipelineState int

const (
	// StateIdle indicates no pipeline run is in progress
	StateIdle PipelineState = iota
	// StateResolving indicates the input is being classified as URL or local file
	StateResolving
	// StateFetching indicates audio is being downloaded from a provider URL
	StateFetching
	// StateSegmenting indicates the source file is being split into chunks
	StateSegmenting
	// StateRecognizing indicates chunks are being submitted for recognition
	StateRecognizing
	// StateAggregating indicates recognition results are being deduplicated
	StateAggregating
	// StateReporting indicates the report file is being written
	StateReporting
	// StateDone indicates the run completed successfully
	StateDone
	// StateFailed indicates the run hit a fatal error
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateFetching:
		return "fetching"
	case StateSegmenting:
		return "segmenting"
	case StateRecognizing:
		return "recognizing"
	case StateAggregating:
		return "aggregating"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Fetcher resolves a provider URL to a local audio file.
type Fetcher interface {
	// Fetch downloads the audio behind url into the downloads directory
	// and returns the absolute path of the file it created.
	Fetch(ctx context.Context, url string) (string, error)

	// CanFetch reports whether url belongs to a supported provider.
	CanFetch(url string) bool
}

// ChunkSource is a lazy, finite sequence of chunks for one source file.
type ChunkSource interface {
	// Next materializes and returns the next chunk, or io.EOF when the
	// sequence is exhausted.
	Next(ctx context.Context) (*Chunk, error)

	// Len returns the total number of chunks the source will produce.
	Len() int

	// Close releases any remaining temporary state.
	Close() error
}

// Segmenter splits a local audio file into fixed-duration chunks.
type Segmenter interface {
	Segment(ctx context.Context, path string) (ChunkSource, error)
}

// Recognizer identifies the track playing in one audio chunk. It returns
// ErrNoMatch when the service responds without a match and a
// *ServiceError for transient network or service failures.
type Recognizer interface {
	Recognize(ctx context.Context, chunkPath string) (*Track, error)

	// Name returns the provider name, used for logging and metrics.
	Name() string
}

// Reporter persists an ordered track list and returns the absolute path
// of the file it wrote.
type Reporter interface {
	Write(tracks []Track, timestamp time.Time) (string, error)
}

// DedupStore is the seen-set behind the Aggregator.
type DedupStore interface {
	Has(key string) bool
	Add(key string)
	Size() int
	Clear()
}

// RecognitionCache caches recognition outcomes by chunk content so
// repeated scans skip the network round trip. A cached nil track records
// a no-match outcome.
type RecognitionCache interface {
	Lookup(chunkPath string) (*Track, bool, error)
	Store(chunkPath string, track *Track) error
}

// Pacer spaces out recognition calls to respect provider rate limits.
type Pacer interface {
	Wait(ctx context.Context) error
}

// MetricsSink receives pipeline events. The zero-cost default is NopMetrics.
type MetricsSink interface {
	RecordChunk(status string)
	RecordRecognition(provider, status string)
	RecordRetry()
	RecordCacheHit()
	RecordReport()
	ObserveStage(stage string, d time.Duration)
}

// NopMetrics discards all pipeline events.
type NopMetrics struct{}

func (NopMetrics) RecordChunk(string)                  {}
func (NopMetrics) RecordRecognition(string, string)    {}
func (NopMetrics) RecordRetry()                        {}
func (NopMetrics) RecordCacheHit()                     {}
func (NopMetrics) RecordReport()                       {}
func (NopMetrics) ObserveStage(string, time.Duration)  {}
