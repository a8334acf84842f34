package recognize

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"shazamtool/internal/core"
)

// DefaultShazamEndpoint is the song detection endpoint used when no
// endpoint is configured.
const DefaultShazamEndpoint = "https://shazam.p.rapidapi.com/songs/v2/detect"

// shazamResponse is the subset of the detection response the tool needs.
// Subtitle carries the artist name.
type shazamResponse struct {
	Track *struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	} `json:"track"`
}

// ShazamClient recognizes chunks against a Shazam-compatible detection
// API. The chunk audio is submitted base64-encoded in the request body.
type ShazamClient struct {
	config   *core.RecognizerConfig
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewShazamClient(config *core.RecognizerConfig, logger *zap.Logger) *ShazamClient {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultShazamEndpoint
	}

	return &ShazamClient{
		config:   config,
		endpoint: endpoint,
		client:   &http.Client{Timeout: config.Timeout},
		logger:   logger,
	}
}

func (c *ShazamClient) Name() string { return "shazam" }

// Recognize submits one chunk for detection. A response without a track
// object is the normal no-match outcome; transport failures, rate limits
// and server errors surface as *core.ServiceError.
func (c *ShazamClient) Recognize(ctx context.Context, chunkPath string) (*core.Track, error) {
	audio, err := os.ReadFile(chunkPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read chunk %s: %w", chunkPath, err)
	}

	body := base64.StdEncoding.EncodeToString(audio)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("cannot build detection request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.config.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &core.ServiceError{Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &core.ServiceError{
			Cause: fmt.Errorf("detection API returned status %d", resp.StatusCode),
		}
	}

	var parsed shazamResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &core.ServiceError{Cause: fmt.Errorf("malformed detection response: %w", err)}
	}

	if parsed.Track == nil || strings.TrimSpace(parsed.Track.Title) == "" {
		return nil, core.ErrNoMatch
	}

	c.logger.Debug("Shazam match",
		zap.String("artist", parsed.Track.Subtitle),
		zap.String("title", parsed.Track.Title))

	return &core.Track{
		Artist: strings.TrimSpace(parsed.Track.Subtitle),
		Title:  strings.TrimSpace(parsed.Track.Title),
	}, nil
}
