// Package fuzzy normalizes artist and title strings so that the same
// track recognized from different chunks compares equal regardless of
// provider metadata formatting.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(remaster(ed)?|deluxe|extended|radio edit|clean|explicit)[^\)\]]*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeArtist canonicalizes an artist string for identity
// comparison. Joiner words fold to a plain space so "A & B", "A and B"
// and "A feat B" all compare equal; basicNormalize has already turned
// the ampersand itself into a space.
func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.basicNormalize(artist)

	artist = strings.ReplaceAll(artist, " and ", " ")
	artist = strings.ReplaceAll(artist, " feat ", " ")
	artist = strings.ReplaceAll(artist, " ft ", " ")

	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(artist), " ")
}

// NormalizeTitle canonicalizes a title string for identity comparison.
// Featuring credits and edition markers are stripped; remix names are
// kept because a remix is a different track.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")

	return n.basicNormalize(title)
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}
