// Package report writes the final track list of one source file to a
// timestamped text file.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"shazamtool/internal/core"
)

// timestampLayout renders DDMMYY-HHMMSS.
const timestampLayout = "020106-150405"

// maxNameCollisions bounds the disambiguation attempts when a report for
// the same second already exists.
const maxNameCollisions = 100

// Writer writes reports into the output directory, one file per source,
// one "<artist> - <title>" line per track, no header or footer.
type Writer struct {
	config *core.ReportConfig
	logger *zap.Logger
}

func NewWriter(config *core.ReportConfig, logger *zap.Logger) *Writer {
	return &Writer{
		config: config,
		logger: logger,
	}
}

// Write persists the track list and returns the absolute path written.
// An existing report is never truncated: a second-granularity timestamp
// collision is disambiguated with a numeric suffix.
func (w *Writer) Write(tracks []core.Track, timestamp time.Time) (string, error) {
	if err := os.MkdirAll(w.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create output directory: %w", err)
	}

	base := "songs-" + timestamp.Format(timestampLayout)

	for attempt := 0; attempt < maxNameCollisions; attempt++ {
		name := base + ".txt"
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d.txt", base, attempt)
		}
		path := filepath.Join(w.config.OutputDir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("cannot create report file: %w", err)
		}

		if err := w.writeTracks(file, tracks); err != nil {
			_ = file.Close()
			return "", err
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("cannot finalize report file: %w", err)
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}

		w.logger.Debug("Report written",
			zap.String("path", abs),
			zap.Int("tracks", len(tracks)))

		return abs, nil
	}

	return "", fmt.Errorf("could not find a free report name for %s", base)
}

func (w *Writer) writeTracks(file *os.File, tracks []core.Track) error {
	for _, track := range tracks {
		if _, err := fmt.Fprintf(file, "%s - %s\n", track.Artist, track.Title); err != nil {
			return fmt.Errorf("cannot write report line: %w", err)
		}
	}
	return nil
}
