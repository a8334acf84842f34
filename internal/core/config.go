package core

import (
	"time"
)

const (
	// DefaultSegmentSeconds is the chunk length submitted for recognition.
	DefaultSegmentSeconds = 60
	// DefaultMaxAttempts is the per-chunk recognition attempt budget.
	DefaultMaxAttempts = 3
	// DefaultRetryBackoff is the pause between recognition attempts.
	DefaultRetryBackoff = 2 * time.Second
	// DefaultRequestsPerMinute caps recognition calls to stay under
	// provider rate limits.
	DefaultRequestsPerMinute = 60
)

type Config struct {
	Fetch      FetchConfig
	Segment    SegmentConfig
	Recognizer RecognizerConfig
	Report     ReportConfig
	Cache      CacheConfig
	Metrics    MetricsConfig
	Log        LogConfig
}

type FetchConfig struct {
	DownloadsDir string
	YtDlpPath    string
	Timeout      time.Duration
}

type SegmentConfig struct {
	FFmpegPath string
	Duration   time.Duration
	TempDir    string
}

type RecognizerConfig struct {
	Provider          string
	Endpoint          string
	APIKey            string
	FpcalcPath        string
	Timeout           time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	RequestsPerMinute int
}

type ReportConfig struct {
	OutputDir string
}

type CacheConfig struct {
	Enabled bool
	Path    string
}

type MetricsConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			DownloadsDir: "downloads",
			YtDlpPath:    "yt-dlp",
			Timeout:      10 * time.Minute,
		},
		Segment: SegmentConfig{
			FFmpegPath: "ffmpeg",
			Duration:   DefaultSegmentSeconds * time.Second,
		},
		Recognizer: RecognizerConfig{
			Provider:          "shazam",
			Timeout:           30 * time.Second,
			MaxAttempts:       DefaultMaxAttempts,
			RetryBackoff:      DefaultRetryBackoff,
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		Report: ReportConfig{
			OutputDir: "recognised-lists",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "recognition-cache.db",
		},
		Metrics: MetricsConfig{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
