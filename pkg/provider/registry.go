package provider

import (
	"context"
	"errors"
)

// ErrNoResolver is returned when no registered resolver handles a URL.
var ErrNoResolver = errors.New("no resolver found for URL")

// Registry coordinates the supported provider resolvers.
type Registry struct {
	resolvers []Resolver
}

// NewRegistry creates a registry with all supported resolvers.
func NewRegistry() *Registry {
	return &Registry{
		resolvers: []Resolver{
			NewYouTubeResolver(),
			NewSoundCloudResolver(),
		},
	}
}

// Resolve attempts to resolve source metadata using the appropriate resolver.
func (r *Registry) Resolve(ctx context.Context, url string) (*SourceInfo, error) {
	for _, resolver := range r.resolvers {
		if resolver.CanResolve(url) {
			return resolver.Resolve(ctx, url)
		}
	}

	return nil, ErrNoResolver
}

// CanResolve checks if any resolver can handle the given URL.
func (r *Registry) CanResolve(url string) bool {
	for _, resolver := range r.resolvers {
		if resolver.CanResolve(url) {
			return true
		}
	}
	return false
}
