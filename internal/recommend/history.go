package recommend

import (
	"sync"

	"github.com/timmy/moodtune/internal/domain"
)

// History remembers which catalog rows were already recommended per
// emotion. It lives for the process lifetime and is never persisted.
// Memory is bounded by the number of emotions times the catalog size.
type History struct {
	mu       sync.Mutex
	emotions map[domain.Emotion]*emotionHistory
}

// emotionHistory is the played set of one emotion. Its mutex guards the
// whole read-modify-write of a recommendation draw.
type emotionHistory struct {
	mu      sync.Mutex
	version string
	played  map[int]struct{}
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{emotions: make(map[domain.Emotion]*emotionHistory)}
}

// acquire returns the locked history of e. The caller must unlock it.
func (h *History) acquire(e domain.Emotion) *emotionHistory {
	h.mu.Lock()
	eh, ok := h.emotions[e]
	if !ok {
		eh = &emotionHistory{played: make(map[int]struct{})}
		h.emotions[e] = eh
	}
	h.mu.Unlock()

	eh.mu.Lock()
	return eh
}

// Played returns the number of rows recorded for e.
func (h *History) Played(e domain.Emotion) int {
	eh := h.acquire(e)
	defer eh.mu.Unlock()
	return len(eh.played)
}

// Clear forgets all emotions.
func (h *History) Clear() {
	h.mu.Lock()
	h.emotions = make(map[domain.Emotion]*emotionHistory)
	h.mu.Unlock()
}

func (eh *emotionHistory) reset() {
	eh.played = make(map[int]struct{})
}

func (eh *emotionHistory) has(row int) bool {
	_, ok := eh.played[row]
	return ok
}

func (eh *emotionHistory) record(row int) {
	eh.played[row] = struct{}{}
}
