package domain

import (
	"fmt"
	"strings"
)

// DefaultLinkBase is the streaming service prefix used to derive song links.
const DefaultLinkBase = "https://open.spotify.com"

// CatalogEntry is one song of the mood-tagged catalog.
// Row is the 0-based data row the entry was read from and identifies the
// entry in playback history.
type CatalogEntry struct {
	Row        int    `json:"row"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ExternalID string `json:"external_id"`
	Mood       string `json:"mood"`
}

// NormalizeMood lowercases and trims a mood tag.
func NormalizeMood(mood string) string {
	return strings.ToLower(strings.TrimSpace(mood))
}

// Recommendation is a song suggested for a detected emotion.
type Recommendation struct {
	SongTitle    string `json:"song_title"`
	Artist       string `json:"artist"`
	PreviewURL   string `json:"preview_url"`
	SpotifyLink  string `json:"spotify_link"`
	SpotifyEmbed string `json:"spotify_embed"`
	Emotion      string `json:"emotion"`
	Mood         string `json:"mood"`
}

// NewRecommendation builds the response record for a catalog entry.
// Parameters:
//   - entry: selected catalog entry.
//   - emotion: emotion the entry was selected for.
//   - linkBase: streaming service prefix; empty uses DefaultLinkBase.
//
// Returns:
//   - Recommendation: record with derived streaming and embed links.
func NewRecommendation(entry CatalogEntry, emotion Emotion, linkBase string) Recommendation {
	if linkBase == "" {
		linkBase = DefaultLinkBase
	}
	linkBase = strings.TrimSuffix(linkBase, "/")
	return Recommendation{
		SongTitle:    entry.Title,
		Artist:       entry.Artist,
		SpotifyLink:  fmt.Sprintf("%s/track/%s", linkBase, entry.ExternalID),
		SpotifyEmbed: fmt.Sprintf("%s/embed/track/%s", linkBase, entry.ExternalID),
		Emotion:      string(emotion),
		Mood:         entry.Mood,
	}
}
