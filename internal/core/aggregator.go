package core

import (
	"shazamtool/pkg/fuzzy"
)

// Aggregator collapses per-chunk recognition results into an ordered,
// unique track list. First occurrence wins and fixes the position; later
// duplicates of the same normalized (artist, title) pair are dropped.
type Aggregator struct {
	norm     *fuzzy.Normalizer
	newStore func() DedupStore
}

// NewAggregator creates an aggregator. newStore produces a fresh seen-set
// per Aggregate call so repeated calls stay independent.
func NewAggregator(newStore func() DedupStore) *Aggregator {
	return &Aggregator{
		norm:     fuzzy.NewNormalizer(),
		newStore: newStore,
	}
}

// Aggregate filters out no-match results and deduplicates the rest,
// preserving the order in which each track was first recognized. It has
// no side effects and performs no I/O.
func (a *Aggregator) Aggregate(results []RecognitionResult) []Track {
	seen := a.newStore()

	var tracks []Track
	for _, r := range results {
		if r.Track == nil {
			continue
		}
		key := a.TrackKey(*r.Track)
		if key == "" || seen.Has(key) {
			continue
		}
		seen.Add(key)
		tracks = append(tracks, *r.Track)
	}

	return tracks
}

// TrackKey returns the normalized identity key for a track. An empty key
// means the track carries no usable metadata and is dropped.
func (a *Aggregator) TrackKey(t Track) string {
	artist := a.norm.NormalizeArtist(t.Artist)
	title := a.norm.NormalizeTitle(t.Title)

	if artist == "" && title == "" {
		return ""
	}
	return artist + "|" + title
}
