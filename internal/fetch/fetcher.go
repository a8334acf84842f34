// Package fetch downloads audio from supported provider URLs into the
// downloads directory using yt-dlp.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"shazamtool/internal/core"
	"shazamtool/internal/execx"
	"shazamtool/pkg/provider"
)

var (
	unsafeCharsRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s\-()]`)
	spacesRegex      = regexp.MustCompile(`\s+`)
)

// Downloader fetches provider URLs with yt-dlp. The provider allowlist
// is enforced before any network activity.
type Downloader struct {
	config    *core.FetchConfig
	providers *provider.Registry
	runner    execx.Runner
	logger    *zap.Logger
}

func NewDownloader(config *core.FetchConfig, providers *provider.Registry, logger *zap.Logger) *Downloader {
	return &Downloader{
		config:    config,
		providers: providers,
		runner:    execx.OSRunner{},
		logger:    logger,
	}
}

// SetRunner replaces the command runner, for tests.
func (d *Downloader) SetRunner(r execx.Runner) {
	d.runner = r
}

// CanFetch reports whether url belongs to a supported provider.
func (d *Downloader) CanFetch(url string) bool {
	return d.providers.CanResolve(url)
}

// Fetch downloads the audio behind url as MP3 and returns the absolute
// path of the file it created. The file is named from the source's own
// metadata, sanitized, and placed atomically: no partial file is ever
// visible at the final path.
func (d *Downloader) Fetch(ctx context.Context, url string) (string, error) {
	if !d.providers.CanResolve(url) {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedSource, SanitizeURL(url))
	}

	d.logger.Info("Starting download", zap.String("url", SanitizeURL(url)))

	info, err := d.providers.Resolve(ctx, url)
	if err != nil {
		return "", &core.DownloadError{URL: SanitizeURL(url), Cause: err}
	}

	if err := os.MkdirAll(d.config.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create downloads directory: %w", err)
	}

	dest, err := filepath.Abs(filepath.Join(d.config.DownloadsDir, d.fileName(info)))
	if err != nil {
		return "", fmt.Errorf("cannot resolve download path: %w", err)
	}

	// Fast path: this source was already downloaded.
	if _, err := os.Stat(dest); err == nil {
		d.logger.Info("File already downloaded", zap.String("path", dest))
		return dest, nil
	}

	if err := d.download(ctx, url, dest); err != nil {
		return "", &core.DownloadError{URL: SanitizeURL(url), Cause: err}
	}

	d.logger.Info("Successfully downloaded",
		zap.String("title", info.Title),
		zap.String("path", dest))

	return dest, nil
}

// download runs yt-dlp into a temporary path in the target directory
// and renames the converted file into place once the download
// completed. The output template keeps yt-dlp's own extension handling
// intact: the container downloads under its native extension and the
// mp3 post-processor writes a separate file, so the rename source is
// always a real mp3.
func (d *Downloader) download(ctx context.Context, url, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpBase := tmp.Name()
	_ = tmp.Close()
	tmpAudio := tmpBase + ".mp3"
	defer func() {
		_ = os.Remove(tmpBase)
		_ = os.Remove(tmpAudio)
	}()

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--force-overwrites",
		"--no-playlist",
		"--output", tmpBase + ".%(ext)s",
		url,
	}

	out, err := d.runner.CombinedOutput(ctx, d.config.YtDlpPath, args)
	if err != nil {
		return fmt.Errorf("yt-dlp: %w: %s", err, string(out))
	}

	if err := os.Rename(tmpAudio, dest); err != nil {
		return fmt.Errorf("rename converted file: %w", err)
	}

	return nil
}

func (d *Downloader) fileName(info *provider.SourceInfo) string {
	name := info.Title
	if info.Artist != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(info.Artist)) {
		name = info.Artist + " - " + info.Title
	}

	safe := SanitizeFileName(name)
	if safe == "" {
		safe = "audio"
	}
	return safe + ".mp3"
}

// SanitizeFileName strips directory separators, path-traversal sequences
// and shell-unfriendly characters from a metadata-derived filename.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", " ")
	name = unsafeCharsRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = spacesRegex.ReplaceAllString(name, "_")
	return name
}

// SanitizeURL strips query parameters and fragments before logging.
func SanitizeURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
