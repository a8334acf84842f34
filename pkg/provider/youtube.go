package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	// YouTubeOEmbedURL is the YouTube oEmbed API endpoint.
	YouTubeOEmbedURL = "https://www.youtube.com/oembed"
	// youtubeExpectedSplitParts is the expected number of parts when
	// splitting title/artist strings.
	youtubeExpectedSplitParts = 2
)

// YouTubeOEmbedResponse represents the response from YouTube's oEmbed API.
type YouTubeOEmbedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// YouTubeResolver resolves YouTube links to source metadata.
type YouTubeResolver struct {
	client *http.Client
}

// NewYouTubeResolver creates a new YouTube resolver.
func NewYouTubeResolver() *YouTubeResolver {
	return &YouTubeResolver{
		client: newHTTPClient(),
	}
}

// CanResolve checks if the URL is a YouTube or YouTube Music link.
func (r *YouTubeResolver) CanResolve(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	hostname := strings.ToLower(u.Hostname())
	// Normalize various YouTube domains.
	switch hostname {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

// Resolve extracts source metadata from a YouTube URL using the oEmbed API.
func (r *YouTubeResolver) Resolve(ctx context.Context, rawURL string) (*SourceInfo, error) {
	if !r.CanResolve(rawURL) {
		return nil, errors.New("not a YouTube URL")
	}

	videoID, err := r.extractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract video ID: %w", err)
	}

	// Build canonical YouTube URL for oEmbed.
	videoURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)

	var oembedResp YouTubeOEmbedResponse
	if err := fetchOEmbedJSON(ctx, r.client, YouTubeOEmbedURL, videoURL, &oembedResp); err != nil {
		return nil, fmt.Errorf("failed to fetch oEmbed data: %w", err)
	}

	return &SourceInfo{
		Title:  r.cleanTitle(oembedResp.Title),
		Artist: r.extractArtist(oembedResp.Title, oembedResp.AuthorName),
	}, nil
}

// extractVideoID extracts the YouTube video ID from various URL formats.
func (r *YouTubeResolver) extractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	hostname := strings.ToLower(u.Hostname())

	// Handle youtu.be short links, where the ID is the path.
	if hostname == "youtu.be" {
		path := strings.Trim(u.Path, "/")
		if path == "" {
			return "", errors.New("no video ID in youtu.be URL")
		}
		return path, nil
	}

	videoID := u.Query().Get("v")
	if videoID == "" {
		return "", errors.New("no video ID in YouTube URL")
	}
	return videoID, nil
}

// cleanTitle removes common YouTube video metadata from titles.
func (r *YouTubeResolver) cleanTitle(title string) string {
	patterns := []string{
		`\(Official Video\)`,
		`\(Official Music Video\)`,
		`\(Official Audio\)`,
		`\(Lyric Video\)`,
		`\(Lyrics\)`,
		`\[Official Video\]`,
		`\[Official Music Video\]`,
		`\[Official Audio\]`,
		`\[Lyric Video\]`,
		`\[Lyrics\]`,
		`\(HD\)`,
		`\[HD\]`,
		`\(4K\)`,
		`\[4K\]`,
	}

	cleaned := title
	for _, pattern := range patterns {
		re := regexp.MustCompile(`(?i)` + pattern)
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	return strings.TrimSpace(cleaned)
}

// extractArtist attempts to extract the artist name from title and author.
func (r *YouTubeResolver) extractArtist(title, authorName string) string {
	// VEVO channels and Topic channels are reliable artist indicators.
	if strings.HasSuffix(authorName, "VEVO") {
		artist := strings.TrimSuffix(authorName, "VEVO")
		return r.splitCamelCase(artist)
	}

	if strings.HasSuffix(authorName, " - Topic") {
		return strings.TrimSuffix(authorName, " - Topic")
	}

	// Common pattern: "Artist - Song Title".
	if strings.Contains(title, " - ") {
		parts := strings.SplitN(title, " - ", youtubeExpectedSplitParts)
		if len(parts) == youtubeExpectedSplitParts {
			return strings.TrimSpace(parts[0])
		}
	}

	return authorName
}

// splitCamelCase splits a camelCase string into words.
func (r *YouTubeResolver) splitCamelCase(s string) string {
	re := regexp.MustCompile(`([a-z])([A-Z])`)
	return re.ReplaceAllString(s, "$1 $2")
}
