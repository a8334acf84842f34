package recognize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"shazamtool/internal/core"
	"shazamtool/internal/execx"
)

const (
	// acoustidLookupURL is the AcoustID fingerprint lookup endpoint.
	acoustidLookupURL = "https://api.acoustid.org/v2/lookup"
	// acoustidMinScore is the minimum match score accepted as a result.
	acoustidMinScore = 0.5
)

// acoustidResponse is the subset of the lookup response the tool needs.
type acoustidResponse struct {
	Results []struct {
		Score      float64 `json:"score"`
		Recordings []struct {
			Title   string `json:"title"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"recordings"`
	} `json:"results"`
}

// fpcalcResult is the JSON output of fpcalc -json.
type fpcalcResult struct {
	Fingerprint string  `json:"fingerprint"`
	Duration    float64 `json:"duration"`
}

// AcoustIDClient recognizes chunks by fingerprinting them with fpcalc
// and looking the fingerprint up against the AcoustID database.
type AcoustIDClient struct {
	config *core.RecognizerConfig
	client *http.Client
	runner execx.Runner
	logger *zap.Logger
}

func NewAcoustIDClient(config *core.RecognizerConfig, logger *zap.Logger) *AcoustIDClient {
	return &AcoustIDClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		runner: execx.OSRunner{},
		logger: logger,
	}
}

// SetRunner replaces the command runner, for tests.
func (c *AcoustIDClient) SetRunner(r execx.Runner) {
	c.runner = r
}

func (c *AcoustIDClient) Name() string { return "acoustid" }

func (c *AcoustIDClient) Recognize(ctx context.Context, chunkPath string) (*core.Track, error) {
	fp, err := c.fingerprint(ctx, chunkPath)
	if err != nil {
		return nil, err
	}
	if fp.Fingerprint == "" || fp.Duration < 1 {
		return nil, core.ErrNoMatch
	}

	return c.lookup(ctx, fp)
}

func (c *AcoustIDClient) fingerprint(ctx context.Context, chunkPath string) (*fpcalcResult, error) {
	fpcalc := c.config.FpcalcPath
	if fpcalc == "" {
		fpcalc = "fpcalc"
	}

	out, err := c.runner.Output(ctx, fpcalc, []string{"-json", chunkPath})
	if err != nil {
		return nil, &core.ServiceError{Cause: fmt.Errorf("fpcalc: %w", err)}
	}

	var fp fpcalcResult
	if err := json.Unmarshal(out, &fp); err != nil {
		return nil, &core.ServiceError{Cause: fmt.Errorf("fpcalc output: %w", err)}
	}

	return &fp, nil
}

func (c *AcoustIDClient) lookup(ctx context.Context, fp *fpcalcResult) (*core.Track, error) {
	params := url.Values{}
	params.Set("client", c.config.APIKey)
	params.Set("meta", "recordings")
	params.Set("duration", fmt.Sprintf("%d", int(fp.Duration)))
	params.Set("fingerprint", fp.Fingerprint)

	lookupURL := c.config.Endpoint
	if lookupURL == "" {
		lookupURL = acoustidLookupURL
	}
	reqURL := fmt.Sprintf("%s?%s", lookupURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("cannot build lookup request: %w", err)
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
			Cause: fmt.Errorf("AcoustID returned status %d", resp.StatusCode),
		}
	}

	var parsed acoustidResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &core.ServiceError{Cause: fmt.Errorf("malformed AcoustID response: %w", err)}
	}

	for _, result := range parsed.Results {
		if result.Score < acoustidMinScore {
			continue
		}
		for _, rec := range result.Recordings {
			if strings.TrimSpace(rec.Title) == "" || len(rec.Artists) == 0 {
				continue
			}

			track := &core.Track{
				Artist: strings.TrimSpace(rec.Artists[0].Name),
				Title:  strings.TrimSpace(rec.Title),
			}
			c.logger.Debug("AcoustID match",
				zap.Float64("score", result.Score),
				zap.String("artist", track.Artist),
				zap.String("title", track.Title))
			return track, nil
		}
	}

	return nil, core.ErrNoMatch
}
