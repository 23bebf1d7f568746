package domain

import "strings"

// Emotion is one of the facial expression categories the classifier emits.
type Emotion string

const (
	EmotionAngry    Emotion = "angry"
	EmotionDisgust  Emotion = "disgust"
	EmotionFear     Emotion = "fear"
	EmotionHappy    Emotion = "happy"
	EmotionNeutral  Emotion = "neutral"
	EmotionSad      Emotion = "sad"
	EmotionSurprise Emotion = "surprise"
)

// FallbackEmotion is reported whenever the classifier is not confident enough.
const FallbackEmotion = EmotionNeutral

// Emotions lists the categories in model output order.
var Emotions = []Emotion{
	EmotionAngry,
	EmotionDisgust,
	EmotionFear,
	EmotionHappy,
	EmotionNeutral,
	EmotionSad,
	EmotionSurprise,
}

// ParseEmotion normalizes a label and reports whether it is a known category.
func ParseEmotion(s string) (Emotion, bool) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Emotions {
		if e == known {
			return e, true
		}
	}
	return e, false
}

// String implements fmt.Stringer.
func (e Emotion) String() string {
	return string(e)
}

// EmotionResult is the outcome of classifying one face crop.
// Label is always populated; it equals FallbackEmotion when Confidence
// fell below the classifier threshold, while Predicted keeps the arg-max.
type EmotionResult struct {
	Label      Emotion `json:"label"`
	Predicted  Emotion `json:"predicted"`
	Confidence float64 `json:"confidence"`
}

// Overridden reports whether the confidence gate replaced the predicted label.
func (r EmotionResult) Overridden() bool {
	return r.Label != r.Predicted
}
