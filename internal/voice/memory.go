// Package voice coordinates the listen/speak loop: it routes transcripts
// from the audio segmenter through the wake-word gate, tracks conversation
// state, and drives speech synthesis with barge-in support.
package voice

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
)

// Exchange is a single user/assistant turn.
type Exchange struct {
	UserText      string    `json:"userText"`
	AssistantText string    `json:"assistantText"`
	Timestamp     time.Time `json:"timestamp"`
}

// HistoryConfig bounds the in-memory conversation history.
type HistoryConfig struct {
	// MaxExchanges is the number of turns to retain.
	MaxExchanges int
	// Expiry drops the history after this much inactivity.
	Expiry time.Duration
}

// DefaultHistoryConfig returns the default history bounds.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		MaxExchanges: 10,
		Expiry:       5 * time.Minute,
	}
}

// History holds recent exchanges so follow-up utterances in conversation
// mode can be recognized without a fresh wake word. Entries expire as a
// block after a period of inactivity.
type History struct {
	mu           sync.RWMutex
	exchanges    []Exchange
	lastActivity time.Time
	config       HistoryConfig
}

// followUpMarkers are words and phrases that suggest an utterance refers
// back to an earlier turn.
var followUpMarkers = []string{
	"it", "that", "this", "they", "them", "those", "these",
	"again", "also", "too", "more", "another", "same",
	"what about", "how about",
	"you said", "you mentioned", "earlier", "before", "previous",
	"last time", "just now",
	"what do you mean", "can you explain", "tell me more", "go on", "continue",
}

// NewHistory creates a History with the given bounds; non-positive fields
// fall back to defaults.
func NewHistory(config HistoryConfig) *History {
	def := DefaultHistoryConfig()
	if config.MaxExchanges <= 0 {
		config.MaxExchanges = def.MaxExchanges
	}
	if config.Expiry <= 0 {
		config.Expiry = def.Expiry
	}

	return &History{
		exchanges:    make([]Exchange, 0, config.MaxExchanges),
		lastActivity: time.Now(),
		config:       config,
	}
}

// Add records a user/assistant turn, trimming the oldest entries past
// MaxExchanges. An expired history is cleared first.
func (h *History) Add(userText, assistantText string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.expiredLocked() {
		h.exchanges = h.exchanges[:0]
	}

	h.exchanges = append(h.exchanges, Exchange{
		UserText:      userText,
		AssistantText: assistantText,
		Timestamp:     time.Now(),
	})
	h.lastActivity = time.Now()

	if len(h.exchanges) > h.config.MaxExchanges {
		h.exchanges = h.exchanges[len(h.exchanges)-h.config.MaxExchanges:]
	}
}

// Context renders the retained history as prompt context. Returns "" when
// the history is empty or expired.
func (h *History) Context() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.expiredLocked() || len(h.exchanges) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, ex := range h.exchanges {
		fmt.Fprintf(&sb, "User: %s\n", ex.UserText)
		assistantText := ex.AssistantText
		if len(assistantText) > 200 {
			assistantText = assistantText[:200] + "..."
		}
		fmt.Fprintf(&sb, "Assistant: %s\n", assistantText)
	}
	return sb.String()
}

// IsFollowUp reports whether text likely refers back to prior turns.
// Always false when the history is empty or expired.
func (h *History) IsFollowUp(text string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.exchanges) == 0 || h.expiredLocked() {
		return false
	}

	lowerText := strings.ToLower(text)

	for _, marker := range followUpMarkers {
		if len(marker) <= 4 {
			// Short markers like "it" need word boundaries.
			pattern := `\b` + regexp.QuoteMeta(marker) + `\b`
			if matched, _ := regexp.MatchString(pattern, lowerText); matched {
				return true
			}
		} else if strings.Contains(lowerText, marker) {
			return true
		}
	}

	for _, start := range []string{"and ", "but ", "so ", "also ", "then ", "ok ", "okay "} {
		if strings.HasPrefix(lowerText, start) {
			return true
		}
	}

	shortQuestions := []string{"why?", "how?", "what?", "really?", "yes?", "no?"}
	return slices.Contains(shortQuestions, strings.TrimSpace(lowerText))
}

// Len returns the number of retained exchanges.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exchanges)
}

// Clear drops all history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = h.exchanges[:0]
}

// Expired reports whether the history has lapsed due to inactivity.
func (h *History) Expired() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.expiredLocked()
}

func (h *History) expiredLocked() bool {
	if len(h.exchanges) == 0 {
		return false
	}
	return time.Since(h.lastActivity) > h.config.Expiry
}

// Touch refreshes the activity timestamp without recording a turn, keeping
// the history alive across a long synthesis or tool call.
func (h *History) Touch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity = time.Now()
}

// Exchanges returns a copy of the retained turns, or nil when expired.
func (h *History) Exchanges() []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.expiredLocked() {
		return nil
	}
	out := make([]Exchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}
