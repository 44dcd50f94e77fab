// Package wakeword matches configured trigger phrases against timestamped
// transcripts. The matcher is fuzzy about spelling (speech models mishear
// trigger words) and strict about timing: a genuine wake phrase is followed
// by a natural pause before the command, which is what separates "hey milady,
// what time is it" from the same words buried inside a sentence.
package wakeword

import (
	"strings"
	"sync"

	"github.com/averyhollis/voicegate/internal/stt"
)

// Defaults for gate configuration.
const (
	DefaultMinPostTriggerGap = 0.45
	DefaultMinCommandWords   = 1
)

// NoTimingGap is the sentinel for "timing unavailable". The gate never
// produces it; it exists for callers that match on plain text with no
// timestamps at all.
const NoTimingGap = -1.0

// Config configures the gate. Triggers are in priority order: the first
// trigger with a qualifying match wins.
type Config struct {
	Triggers          []string
	MinPostTriggerGap float64 // seconds, default 0.45
	MinCommandWords   int     // 0 permits a bare trigger; negative selects the default 1
}

// Match is a successful wake-word detection. Consumed immediately by the
// caller, never stored.
type Match struct {
	WakeWord       string  `json:"wake_word"`
	Command        string  `json:"command"`
	Transcript     string  `json:"transcript"`
	PostGapSeconds float64 `json:"post_gap_seconds"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// WordTiming is one lowercased word with millisecond timestamps, derived by
// flattening a transcription result.
type WordTiming struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Gate scans completed transcripts for trigger phrases. It holds no state
// between calls except configuration, which may be replaced at any time.
type Gate struct {
	mu         sync.RWMutex
	raw        []string
	triggers   [][]string // normalized words, parallel to raw
	minGap     float64
	minCommand int
	confusions ConfusionTable
}

// NewGate creates a Gate. A nil table selects DefaultConfusionTable.
func NewGate(cfg Config, table ConfusionTable) *Gate {
	if table == nil {
		table = DefaultConfusionTable()
	}
	g := &Gate{confusions: table}
	g.SetConfig(cfg)
	return g
}

// SetConfig replaces the gate configuration. Trigger phrases are case and
// whitespace normalized here, once, not per match.
func (g *Gate) SetConfig(cfg Config) {
	if cfg.MinPostTriggerGap <= 0 {
		cfg.MinPostTriggerGap = DefaultMinPostTriggerGap
	}
	// Zero is a real setting: it admits a bare trigger with no command.
	if cfg.MinCommandWords < 0 {
		cfg.MinCommandWords = DefaultMinCommandWords
	}

	raw := make([]string, 0, len(cfg.Triggers))
	triggers := make([][]string, 0, len(cfg.Triggers))
	for _, t := range cfg.Triggers {
		words := splitWords(t)
		if len(words) == 0 {
			continue
		}
		raw = append(raw, t)
		triggers = append(triggers, words)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.raw = raw
	g.triggers = triggers
	g.minGap = cfg.MinPostTriggerGap
	g.minCommand = cfg.MinCommandWords
}

// SetConfusions replaces the phonetic confusion table.
func (g *Gate) SetConfusions(table ConfusionTable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confusions = table
}

// Match scans the result for a configured trigger followed by a command and
// a sufficient silence gap. Returns nil when nothing qualifies; a transcript
// with no match is not an error.
func (g *Gate) Match(result *stt.TranscriptionResult) *Match {
	if result == nil {
		return nil
	}

	words := Flatten(result)
	if len(words) == 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for ti, trigger := range g.triggers {
		m := g.matchTrigger(trigger, g.raw[ti], words, result.Text)
		if m != nil {
			return m
		}
	}
	return nil
}

// matchTrigger finds the earliest window matching one trigger and applies
// the command-length and post-gap checks to it. A window that matches the
// words but fails the checks rejects the whole trigger: the phrase was
// present but not spoken as a wake phrase.
func (g *Gate) matchTrigger(trigger []string, raw string, words []WordTiming, transcript string) *Match {
	n := len(trigger)
	for i := 0; i+n <= len(words); i++ {
		if !g.windowMatches(trigger, words[i:i+n]) {
			continue
		}

		end := i + n - 1
		command := words[end+1:]
		if len(command) < g.minCommand {
			return nil
		}

		if len(command) == 0 {
			// The utterance ended on the trigger itself: a bare wake
			// phrase, acceptable only when minCommand is zero. Nothing
			// follows, so the post-gap check is vacuous.
			return &Match{WakeWord: raw, Transcript: transcript}
		}

		gap := float64(command[0].StartMs-words[end].EndMs) / 1000
		if gap < g.minGap {
			return nil
		}

		parts := make([]string, len(command))
		for j, w := range command {
			parts[j] = w.Text
		}

		return &Match{
			WakeWord:       raw,
			Command:        strings.Join(parts, " "),
			Transcript:     transcript,
			PostGapSeconds: gap,
		}
	}
	return nil
}

func (g *Gate) windowMatches(trigger []string, window []WordTiming) bool {
	for i, target := range trigger {
		if !g.fuzzyEqual(target, window[i].Text) {
			return false
		}
	}
	return true
}

// fuzzyEqual accepts an exact match or a known phonetic confusion of the
// target word.
func (g *Gate) fuzzyEqual(target, candidate string) bool {
	if target == candidate {
		return true
	}
	return g.confusions.Confusable(target, candidate)
}

// Flatten builds the ordered word-timing sequence for a result: token-level
// timestamps when the engine reported them, otherwise each segment's
// duration divided evenly across its whitespace-split words. The fallback
// keeps gap computation meaningful for engines without token timing instead
// of giving up with the NoTimingGap sentinel.
func Flatten(result *stt.TranscriptionResult) []WordTiming {
	var words []WordTiming

	for _, seg := range result.Segments {
		if len(seg.Tokens) > 0 {
			for _, tok := range seg.Tokens {
				text := normalizeWord(tok.Text)
				if text == "" {
					continue
				}
				words = append(words, WordTiming{Text: text, StartMs: tok.StartMs, EndMs: tok.EndMs})
			}
			continue
		}

		parts := splitWords(seg.Text)
		if len(parts) == 0 {
			continue
		}
		span := seg.EndMs - seg.StartMs
		step := span / int64(len(parts))
		for i, part := range parts {
			start := seg.StartMs + int64(i)*step
			end := start + step
			if i == len(parts)-1 {
				end = seg.EndMs
			}
			words = append(words, WordTiming{Text: part, StartMs: start, EndMs: end})
		}
	}

	return words
}

// splitWords lowercases, strips punctuation, and splits on whitespace.
func splitWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := normalizeWord(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func normalizeWord(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".,!?;:\"'")
}
