// Package recommend draws a short, non-repeating playlist of mood-matched
// songs for a detected emotion.
package recommend

import "github.com/timmy/moodtune/internal/domain"

// defaultMoods is used for any emotion without its own mapping.
var defaultMoods = []string{"moderate"}

var emotionMoods = map[domain.Emotion][]string{
	domain.EmotionHappy:    {"cheerful", "energetic", "happy"},
	domain.EmotionSurprise: {"cheerful", "energetic", "happy"},
	domain.EmotionSad:      {"sad", "melancholic", "slow", "emotional"},
	domain.EmotionFear:     {"calm", "ambient", "peaceful"},
	domain.EmotionNeutral:  {"moderate", "balanced", "chill"},
	domain.EmotionAngry:    {"intense", "powerful", "energetic"},
	domain.EmotionDisgust:  {"intense", "powerful", "energetic"},
}

// MoodsFor returns the catalog moods that suit e. It is total: unknown
// emotions map to "moderate". The returned slice is the caller's to modify.
func MoodsFor(e domain.Emotion) []string {
	moods, ok := emotionMoods[e]
	if !ok {
		moods = defaultMoods
	}
	return append([]string(nil), moods...)
}
