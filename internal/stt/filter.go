package stt

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultHallucinations lists phrases whisper models are known to invent on
// silent or noisy chunks. A transcript consisting only of these carries no
// speech.
var DefaultHallucinations = []string{
	"thank you",
	"thanks for watching",
	"thank you for watching",
	"subscribe",
	"you",
	"bye",
	"so",
}

// bracketed matches whisper's non-speech annotations such as [BLANK_AUDIO],
// [silence], (wind blowing) or *music*.
var bracketed = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// Filter discards transcripts that contain no real speech. It keeps the
// segmenter honest: energy-based VAD occasionally flushes non-speech audio
// and the model will hallucinate text for it.
type Filter struct {
	mu      sync.RWMutex
	phrases map[string]struct{}
}

// NewFilter creates a Filter. A nil phrase list selects
// DefaultHallucinations.
func NewFilter(phrases []string) *Filter {
	if phrases == nil {
		phrases = DefaultHallucinations
	}

	f := &Filter{phrases: make(map[string]struct{}, len(phrases))}
	for _, p := range phrases {
		f.phrases[normalizePhrase(p)] = struct{}{}
	}
	return f
}

// AddPhrase adds a hallucination phrase to the filter.
func (f *Filter) AddPhrase(phrase string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phrases[normalizePhrase(phrase)] = struct{}{}
}

// Clean strips non-speech annotations and reports whether meaningful speech
// remains. The returned text preserves the original casing of what is kept.
func (f *Filter) Clean(text string) (cleaned string, hasSpeech bool) {
	if text == "" {
		return "", false
	}

	cleaned = bracketed.ReplaceAllString(text, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "", false
	}

	f.mu.RLock()
	_, isHallucination := f.phrases[normalizePhrase(cleaned)]
	f.mu.RUnlock()

	if isHallucination {
		return cleaned, false
	}
	return cleaned, true
}

func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!?,")
	return s
}
