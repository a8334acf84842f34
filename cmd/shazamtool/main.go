// Package main provides the shazamtool CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"shazamtool/internal/cache"
	"shazamtool/internal/core"
	"shazamtool/internal/fetch"
	httpserver "shazamtool/internal/http"
	"shazamtool/internal/rate"
	"shazamtool/internal/recognize"
	"shazamtool/internal/report"
	"shazamtool/internal/segment"
	"shazamtool/internal/store"
	"shazamtool/pkg/provider"
)

const (
	// dedupStoreCapacity bounds the aggregator's seen-set per run.
	dedupStoreCapacity = 10000
	// dedupFalsePositiveRate is the Bloom filter false positive rate.
	dedupFalsePositiveRate = 0.001
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shazamtool",
	Short: "shazamtool - recognize the tracks inside long audio files",
	Long: `shazamtool downloads audio from YouTube or SoundCloud, splits it into
fixed-length segments, submits each segment to a song-recognition service
and writes a deduplicated, timestamped tracklist.`,
	SilenceUsage: true,
}

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download audio from a provider URL and recognize its tracks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Recognize every MP3 file in the downloads directory",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize <file-or-url>",
	Short: "Recognize a local audio file or a provider URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecognize,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("downloads-dir", defaults.Fetch.DownloadsDir, "directory for downloaded audio")
	rootCmd.PersistentFlags().String("output-dir", defaults.Report.OutputDir, "directory for report files")
	rootCmd.PersistentFlags().Int("segment-seconds", core.DefaultSegmentSeconds, "chunk length in seconds")
	rootCmd.PersistentFlags().String("provider", defaults.Recognizer.Provider, "recognition provider (shazam, acoustid)")
	rootCmd.PersistentFlags().String("api-key", "", "recognition API key")
	rootCmd.PersistentFlags().String("endpoint", "", "recognition API endpoint override")
	rootCmd.PersistentFlags().Int("max-retries", defaults.Recognizer.MaxAttempts, "recognition attempts per chunk")
	rootCmd.PersistentFlags().Int("requests-per-minute", defaults.Recognizer.RequestsPerMinute, "recognition call rate limit")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	rootCmd.PersistentFlags().Bool("no-cache", false, "disable the recognition cache")
	rootCmd.PersistentFlags().String("cache-path", defaults.Cache.Path, "recognition cache database path")
	rootCmd.PersistentFlags().String("ffmpeg-path", defaults.Segment.FFmpegPath, "ffmpeg binary")
	rootCmd.PersistentFlags().String("yt-dlp-path", defaults.Fetch.YtDlpPath, "yt-dlp binary")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(downloadCmd, scanCmd, recognizeCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("SHAZAMTOOL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Fetch.DownloadsDir = viper.GetString("downloads-dir")
	cfg.Fetch.YtDlpPath = viper.GetString("yt-dlp-path")

	cfg.Segment.FFmpegPath = viper.GetString("ffmpeg-path")
	if secs := viper.GetInt("segment-seconds"); secs > 0 {
		cfg.Segment.Duration = time.Duration(secs) * time.Second
	}

	cfg.Recognizer.Provider = viper.GetString("provider")
	cfg.Recognizer.APIKey = viper.GetString("api-key")
	cfg.Recognizer.Endpoint = viper.GetString("endpoint")
	if attempts := viper.GetInt("max-retries"); attempts > 0 {
		cfg.Recognizer.MaxAttempts = attempts
	}
	cfg.Recognizer.RequestsPerMinute = viper.GetInt("requests-per-minute")

	cfg.Report.OutputDir = viper.GetString("output-dir")

	cfg.Cache.Enabled = !viper.GetBool("no-cache")
	cfg.Cache.Path = viper.GetString("cache-path")

	cfg.Metrics.Addr = viper.GetString("metrics-addr")

	if viper.GetBool("debug") {
		cfg.Log.Level = "debug"
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runDownload(_ *cobra.Command, args []string) error {
	return runPipeline(func(ctx context.Context, pipe *core.Pipeline) error {
		result, err := pipe.ProcessURL(ctx, args[0])
		if err != nil {
			return err
		}
		printSummary(result)
		return nil
	})
}

func runScan(_ *cobra.Command, _ []string) error {
	return runPipeline(func(ctx context.Context, pipe *core.Pipeline) error {
		batch, err := pipe.ScanDirectory(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Scan complete: %d file(s) processed, %d failed\n", batch.Processed, batch.Failed)
		for _, reportPath := range batch.Reports {
			fmt.Printf("Results saved to %s\n", reportPath)
		}
		return nil
	})
}

func runRecognize(_ *cobra.Command, args []string) error {
	return runPipeline(func(ctx context.Context, pipe *core.Pipeline) error {
		result, err := pipe.ProcessInput(ctx, args[0])
		if err != nil {
			return err
		}
		printSummary(result)
		return nil
	})
}

// runPipeline assembles the component graph from config and executes one
// command against it, optionally alongside the metrics server.
func runPipeline(run func(ctx context.Context, pipe *core.Pipeline) error) error {
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers := provider.NewRegistry()

	recognizer, err := recognize.NewRecognizer(&config.Recognizer, logger.Named("recognize"))
	if err != nil {
		return err
	}

	deps := core.PipelineDeps{
		Fetcher:    fetch.NewDownloader(&config.Fetch, providers, logger.Named("fetch")),
		Segmenter:  segment.NewFFmpegSegmenter(&config.Segment, logger.Named("segment")),
		Recognizer: recognizer,
		Aggregator: core.NewAggregator(func() core.DedupStore {
			return store.NewDedupStore(dedupStoreCapacity, dedupFalsePositiveRate)
		}),
		Reporter: report.NewWriter(&config.Report, logger.Named("report")),
		Pacer:    rate.New(config.Recognizer.RequestsPerMinute),
	}

	if config.Cache.Enabled {
		cacheStore, err := cache.Open(config.Cache.Path)
		if err != nil {
			logger.Warn("Recognition cache unavailable, continuing without it", zap.Error(err))
		} else {
			deps.Cache = cacheStore
			defer func() {
				_ = cacheStore.Close()
			}()
		}
	}

	var metricsServer *httpserver.Server
	if config.Metrics.Addr != "" {
		metricsServer = httpserver.NewServer(&config.Metrics, logger.Named("metrics"))
		deps.Metrics = metricsServer
	}

	pipe := core.NewPipeline(config, deps, logger.Named("pipeline"))

	if metricsServer == nil {
		return run(ctx, pipe)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(serverCtx)

	g.Go(func() error {
		return metricsServer.Start(gCtx)
	})

	g.Go(func() error {
		defer cancel()
		return run(gCtx, pipe)
	})

	return g.Wait()
}

func printSummary(result *core.RunResult) {
	fmt.Printf("Recognized %d track(s) from %s\n", len(result.Tracks), result.SourcePath)
	fmt.Printf("Results saved to %s\n", result.ReportPath)
}
