// Package recognize submits audio chunks to an external song-recognition
// service and maps the response onto a track, a no-match, or a transient
// service error.
package recognize

import (
	"fmt"

	"go.uber.org/zap"

	"shazamtool/internal/core"
)

// NewRecognizer creates the configured recognition provider.
func NewRecognizer(config *core.RecognizerConfig, logger *zap.Logger) (core.Recognizer, error) {
	switch config.Provider {
	case "shazam", "":
		return NewShazamClient(config, logger), nil
	case "acoustid":
		return NewAcoustIDClient(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported recognition provider: %s", config.Provider)
	}
}
