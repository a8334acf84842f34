package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeFetcher struct {
	supported  bool
	path       string
	err        error
	fetchCalls int
}

func (f *fakeFetcher) CanFetch(string) bool { return f.supported }

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	f.fetchCalls++
	return f.path, f.err
}

type fakeChunkSource struct {
	chunks []*Chunk
	pos    int
	closed bool
}

func (s *fakeChunkSource) Next(ctx context.Context) (*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *fakeChunkSource) Len() int { return len(s.chunks) }

func (s *fakeChunkSource) Close() error {
	s.closed = true
	return nil
}

type fakeSegmenter struct {
	segment func(path string) (ChunkSource, error)
}

func (s *fakeSegmenter) Segment(_ context.Context, path string) (ChunkSource, error) {
	return s.segment(path)
}

// recOutcome is one scripted Recognize response.
type recOutcome struct {
	track *Track
	err   error
}

type fakeRecognizer struct {
	outcomes []recOutcome
	calls    int
}

func (r *fakeRecognizer) Recognize(context.Context, string) (*Track, error) {
	if r.calls >= len(r.outcomes) {
		return nil, errors.New("unexpected recognition call")
	}
	out := r.outcomes[r.calls]
	r.calls++
	return out.track, out.err
}

func (r *fakeRecognizer) Name() string { return "fake" }

type fakeReporter struct {
	path      string
	err       error
	gotTracks []Track
	writes    int
}

func (r *fakeReporter) Write(tracks []Track, _ time.Time) (string, error) {
	r.writes++
	r.gotTracks = tracks
	return r.path, r.err
}

type fakeCache struct {
	entries map[string]*Track
	stores  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*Track)}
}

func (c *fakeCache) Lookup(chunkPath string) (*Track, bool, error) {
	track, ok := c.entries[chunkPath]
	return track, ok, nil
}

func (c *fakeCache) Store(chunkPath string, track *Track) error {
	c.stores++
	c.entries[chunkPath] = track
	return nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Recognizer.RetryBackoff = 0
	return cfg
}

func testChunks(n int) []*Chunk {
	chunks := make([]*Chunk, n)
	for i := range chunks {
		chunks[i] = &Chunk{Index: i}
	}
	return chunks
}

func newTestPipeline(deps PipelineDeps) *Pipeline {
	if deps.Aggregator == nil {
		deps.Aggregator = NewAggregator(newMapStore)
	}
	return NewPipeline(testConfig(), deps, zap.NewNop())
}

func TestPipeline_ProcessURL_UnsupportedSource(t *testing.T) {
	fetcher := &fakeFetcher{supported: false}
	pipe := newTestPipeline(PipelineDeps{Fetcher: fetcher})

	_, err := pipe.ProcessURL(context.Background(), "https://example.com/watch?v=abc")

	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("ProcessURL() error = %v, want ErrUnsupportedSource", err)
	}
	if fetcher.fetchCalls != 0 {
		t.Errorf("Fetch was called %d times for an unsupported URL, want 0", fetcher.fetchCalls)
	}
	if pipe.State() != StateFailed {
		t.Errorf("Pipeline state = %v, want %v", pipe.State(), StateFailed)
	}
}

func TestPipeline_ProcessFile(t *testing.T) {
	src := &fakeChunkSource{chunks: testChunks(3)}
	recognizer := &fakeRecognizer{outcomes: []recOutcome{
		{track: &Track{Artist: "Daft Punk", Title: "One More Time"}},
		{err: ErrNoMatch},
		{track: &Track{Artist: "Justice", Title: "Genesis"}},
	}}
	reporter := &fakeReporter{path: "/tmp/songs-010126-120000.txt"}

	pipe := newTestPipeline(PipelineDeps{
		Segmenter:  &fakeSegmenter{segment: func(string) (ChunkSource, error) { return src, nil }},
		Recognizer: recognizer,
		Reporter:   reporter,
	})

	result, err := pipe.ProcessFile(context.Background(), "mix.mp3")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	expectedTracks := []Track{
		{Artist: "Daft Punk", Title: "One More Time"},
		{Artist: "Justice", Title: "Genesis"},
	}
	if !reflect.DeepEqual(result.Tracks, expectedTracks) {
		t.Errorf("Tracks = %v, want %v", result.Tracks, expectedTracks)
	}
	if result.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", result.Chunks)
	}
	if result.ReportPath != reporter.path {
		t.Errorf("ReportPath = %q, want %q", result.ReportPath, reporter.path)
	}
	if !reflect.DeepEqual(reporter.gotTracks, expectedTracks) {
		t.Errorf("Reporter received %v, want %v", reporter.gotTracks, expectedTracks)
	}
	if !src.closed {
		t.Error("Chunk source was not closed")
	}
	if pipe.State() != StateDone {
		t.Errorf("Pipeline state = %v, want %v", pipe.State(), StateDone)
	}
}

func TestPipeline_RetryThenSuccess(t *testing.T) {
	track := &Track{Artist: "Moderat", Title: "A New Error"}
	src := &fakeChunkSource{chunks: testChunks(1)}
	recognizer := &fakeRecognizer{outcomes: []recOutcome{
		{err: &ServiceError{Cause: errors.New("http 429")}},
		{track: track},
	}}
	reporter := &fakeReporter{path: "/tmp/report.txt"}

	pipe := newTestPipeline(PipelineDeps{
		Segmenter:  &fakeSegmenter{segment: func(string) (ChunkSource, error) { return src, nil }},
		Recognizer: recognizer,
		Reporter:   reporter,
	})

	result, err := pipe.ProcessFile(context.Background(), "mix.mp3")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if recognizer.calls != 2 {
		t.Errorf("Recognize called %d times, want 2", recognizer.calls)
	}
	if !reflect.DeepEqual(result.Tracks, []Track{*track}) {
		t.Errorf("Tracks = %v, want [%v]", result.Tracks, *track)
	}
}

func TestPipeline_ServiceErrorDemotedToNoMatch(t *testing.T) {
	serviceErr := &ServiceError{Cause: errors.New("connection refused")}
	src := &fakeChunkSource{chunks: testChunks(2)}
	recognizer := &fakeRecognizer{outcomes: []recOutcome{
		// Chunk 0 exhausts all three attempts.
		{err: serviceErr},
		{err: serviceErr},
		{err: serviceErr},
		// Chunk 1 still gets recognized.
		{track: &Track{Artist: "Justice", Title: "Genesis"}},
	}}
	reporter := &fakeReporter{path: "/tmp/report.txt"}
	cache := newFakeCache()

	pipe := newTestPipeline(PipelineDeps{
		Segmenter:  &fakeSegmenter{segment: func(string) (ChunkSource, error) { return src, nil }},
		Recognizer: recognizer,
		Reporter:   reporter,
		Cache:      cache,
	})

	result, err := pipe.ProcessFile(context.Background(), "mix.mp3")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v, want demotion to no-match", err)
	}

	expectedTracks := []Track{{Artist: "Justice", Title: "Genesis"}}
	if !reflect.DeepEqual(result.Tracks, expectedTracks) {
		t.Errorf("Tracks = %v, want %v", result.Tracks, expectedTracks)
	}
	// Only the successful chunk outcome is cached; the failed chunk is
	// left uncached so a later scan retries it.
	if cache.stores != 1 {
		t.Errorf("Cache stores = %d, want 1", cache.stores)
	}
}

func TestPipeline_FatalRecognitionError(t *testing.T) {
	fatal := errors.New("invalid API key")
	src := &fakeChunkSource{chunks: testChunks(2)}
	recognizer := &fakeRecognizer{outcomes: []recOutcome{{err: fatal}}}

	pipe := newTestPipeline(PipelineDeps{
		Segmenter:  &fakeSegmenter{segment: func(string) (ChunkSource, error) { return src, nil }},
		Recognizer: recognizer,
		Reporter:   &fakeReporter{},
	})

	_, err := pipe.ProcessFile(context.Background(), "mix.mp3")
	if !errors.Is(err, fatal) {
		t.Fatalf("ProcessFile() error = %v, want %v", err, fatal)
	}
	if recognizer.calls != 1 {
		t.Errorf("Recognize called %d times for a fatal error, want 1", recognizer.calls)
	}
	if pipe.State() != StateFailed {
		t.Errorf("Pipeline state = %v, want %v", pipe.State(), StateFailed)
	}
}

func TestPipeline_CacheHit(t *testing.T) {
	cached := &Track{Artist: "Daft Punk", Title: "Around the World"}
	src := &fakeChunkSource{chunks: []*Chunk{{Index: 0, Path: "chunk_000.mp3"}}}
	recognizer := &fakeRecognizer{}
	cache := newFakeCache()
	cache.entries["chunk_000.mp3"] = cached

	pipe := newTestPipeline(PipelineDeps{
		Segmenter:  &fakeSegmenter{segment: func(string) (ChunkSource, error) { return src, nil }},
		Recognizer: recognizer,
		Reporter:   &fakeReporter{path: "/tmp/report.txt"},
		Cache:      cache,
	})

	result, err := pipe.ProcessFile(context.Background(), "mix.mp3")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if recognizer.calls != 0 {
		t.Errorf("Recognize called %d times despite cache hit, want 0", recognizer.calls)
	}
	if !reflect.DeepEqual(result.Tracks, []Track{*cached}) {
		t.Errorf("Tracks = %v, want [%v]", result.Tracks, *cached)
	}
}

func TestPipeline_RemovesChunkFiles(t *testing.T) {
	dir := t.TempDir()

	chunks := testChunks(2)
	for i, chunk := range chunks {
		chunk.Path = filepath.Join(dir, fmt.Sprintf("chunk_%03d.mp3", i))
		if err := os.WriteFile(chunk.Path, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src := &fakeChunkSource{chunks: chunks}
	recognizer := &fakeRecognizer{outcomes: []recOutcome{
		{err: ErrNoMatch},
		{err: ErrNoMatch},
	}}

	pipe := newTestPipeline(PipelineDeps{
		Segmenter:  &fakeSegmenter{segment: func(string) (ChunkSource, error) { return src, nil }},
		Recognizer: recognizer,
		Reporter:   &fakeReporter{path: "/tmp/report.txt"},
	})

	if _, err := pipe.ProcessFile(context.Background(), "mix.mp3"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	for _, chunk := range chunks {
		if _, err := os.Stat(chunk.Path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Chunk file %s was not removed", chunk.Path)
		}
	}
}

func TestPipeline_ScanDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_mix.mp3", "a_mix.mp3", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var segmented []string
	segmenter := &fakeSegmenter{segment: func(path string) (ChunkSource, error) {
		segmented = append(segmented, filepath.Base(path))
		if filepath.Base(path) == "b_mix.mp3" {
			return nil, &DecodeError{Path: path, Cause: errors.New("corrupt header")}
		}
		return &fakeChunkSource{chunks: testChunks(1)}, nil
	}}
	recognizer := &fakeRecognizer{outcomes: []recOutcome{
		{track: &Track{Artist: "Justice", Title: "Genesis"}},
	}}

	cfg := testConfig()
	cfg.Fetch.DownloadsDir = dir
	pipe := NewPipeline(cfg, PipelineDeps{
		Segmenter:  segmenter,
		Recognizer: recognizer,
		Aggregator: NewAggregator(newMapStore),
		Reporter:   &fakeReporter{path: "/tmp/report.txt"},
	}, zap.NewNop())

	batch, err := pipe.ScanDirectory(context.Background())
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	if batch.Processed != 1 || batch.Failed != 1 {
		t.Errorf("Batch = %d processed / %d failed, want 1 / 1", batch.Processed, batch.Failed)
	}
	// Files are visited in sorted order and non-MP3 entries are skipped.
	if !reflect.DeepEqual(segmented, []string{"a_mix.mp3", "b_mix.mp3"}) {
		t.Errorf("Segmented files = %v, want [a_mix.mp3 b_mix.mp3]", segmented)
	}
	if len(batch.Reports) != 1 {
		t.Errorf("Reports = %v, want exactly one entry", batch.Reports)
	}
}

func TestPipeline_ScanDirectory_Empty(t *testing.T) {
	cfg := testConfig()
	cfg.Fetch.DownloadsDir = t.TempDir()

	pipe := NewPipeline(cfg, PipelineDeps{Aggregator: NewAggregator(newMapStore)}, zap.NewNop())

	batch, err := pipe.ScanDirectory(context.Background())
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	if batch.Processed != 0 || batch.Failed != 0 {
		t.Errorf("Batch = %+v, want empty result", batch)
	}
}

func TestPipeline_ProcessInput_MissingFile(t *testing.T) {
	pipe := newTestPipeline(PipelineDeps{})

	_, err := pipe.ProcessInput(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if err == nil {
		t.Fatal("ProcessInput() should fail for a missing local file")
	}
	if pipe.State() != StateFailed {
		t.Errorf("Pipeline state = %v, want %v", pipe.State(), StateFailed)
	}
}
