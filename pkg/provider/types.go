// Package provider detects and resolves audio source URLs for the
// supported download providers (YouTube and SoundCloud).
package provider

import (
	"context"
)

// SourceInfo holds the metadata a provider exposes for a URL, used to
// derive a deterministic local filename for the download.
type SourceInfo struct {
	Title  string // Track or video title.
	Artist string // Uploader or artist name (if available).
}

// Resolver detects URLs for one provider and resolves their metadata.
type Resolver interface {
	// Resolve extracts source metadata from a provider URL.
	Resolve(ctx context.Context, url string) (*SourceInfo, error)

	// CanResolve checks if this resolver can handle the given URL.
	CanResolve(url string) bool
}
