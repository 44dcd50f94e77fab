package wakeword

import (
	"math"
	"testing"

	"github.com/averyhollis/voicegate/internal/stt"
)

type word struct {
	text    string
	startMs int64
	endMs   int64
}

func timedResult(text string, words ...word) *stt.TranscriptionResult {
	tokens := make([]stt.Token, len(words))
	var endMs int64
	for i, w := range words {
		tokens[i] = stt.Token{Text: w.text, StartMs: w.startMs, EndMs: w.endMs}
		endMs = w.endMs
	}
	return &stt.TranscriptionResult{
		Text: text,
		Segments: []stt.Segment{
			{Text: text, StartMs: 0, EndMs: endMs, Tokens: tokens},
		},
	}
}

func newTestGate() *Gate {
	return NewGate(Config{
		Triggers:          []string{"hey milady", "milady"},
		MinPostTriggerGap: 0.45,
		MinCommandWords:   1,
	}, nil)
}

func TestGate_Match_TriggerWithPause(t *testing.T) {
	g := newTestGate()

	// "hey milady ... what time is it" with a 600ms pause after the trigger.
	result := timedResult("Hey milady, what time is it",
		word{"hey", 0, 300},
		word{"milady", 300, 600},
		word{"what", 1200, 1400},
		word{"time", 1400, 1600},
		word{"is", 1600, 1700},
		word{"it", 1700, 1800},
	)

	m := g.Match(result)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.WakeWord != "hey milady" {
		t.Errorf("wake word = %q, want %q", m.WakeWord, "hey milady")
	}
	if m.Command != "what time is it" {
		t.Errorf("command = %q, want %q", m.Command, "what time is it")
	}
	if math.Abs(m.PostGapSeconds-0.6) > 1e-9 {
		t.Errorf("post gap = %v, want 0.6", m.PostGapSeconds)
	}
	if m.Transcript != result.Text {
		t.Errorf("transcript = %q, want original text", m.Transcript)
	}
}

func TestGate_Match_NoPauseRejected(t *testing.T) {
	g := newTestGate()

	// Same words, but the command starts 50ms after the trigger: the phrase
	// is buried in running speech, not spoken as a wake phrase.
	result := timedResult("hey milady what time is it",
		word{"hey", 0, 300},
		word{"milady", 300, 600},
		word{"what", 650, 850},
		word{"time", 850, 1000},
		word{"is", 1000, 1100},
		word{"it", 1100, 1200},
	)

	if m := g.Match(result); m != nil {
		t.Fatalf("expected no match for gap < 0.45s, got %+v", m)
	}
}

func TestGate_Match_NoCommandRejected(t *testing.T) {
	g := newTestGate()

	result := timedResult("hey milady",
		word{"hey", 0, 300},
		word{"milady", 300, 600},
	)

	if m := g.Match(result); m != nil {
		t.Fatalf("expected no match for bare trigger, got %+v", m)
	}
}

func TestGate_SetConfig_NormalizesNegativeValues(t *testing.T) {
	g := NewGate(Config{Triggers: []string{"milady"}, MinCommandWords: -1}, nil)

	// Negative command-word and zero gap settings fall back to defaults,
	// so a bare trigger does not match.
	result := timedResult("milady", word{"milady", 0, 400})
	if m := g.Match(result); m != nil {
		t.Fatalf("expected no match for bare trigger with defaults, got %+v", m)
	}

	result = timedResult("milady hello",
		word{"milady", 0, 400},
		word{"hello", 500, 800},
	)
	if m := g.Match(result); m != nil {
		t.Fatalf("expected default 0.45s gap to apply, got %+v", m)
	}
}

func TestGate_Match_BareTrigger(t *testing.T) {
	g := NewGate(Config{Triggers: []string{"milady"}, MinCommandWords: 0}, nil)

	m := g.Match(timedResult("Milady", word{"milady", 0, 400}))
	if m == nil {
		t.Fatal("expected bare trigger to match with min command words zero")
	}
	if m.WakeWord != "milady" {
		t.Errorf("wake word = %q, want milady", m.WakeWord)
	}
	if m.Command != "" {
		t.Errorf("command = %q, want empty", m.Command)
	}

	// When a command does follow, the gap check still applies.
	buried := timedResult("milady hello",
		word{"milady", 0, 400},
		word{"hello", 450, 800},
	)
	if m := g.Match(buried); m != nil {
		t.Fatalf("gap check must still reject running speech, got %+v", m)
	}
}

func TestGate_Match_FuzzyConfusion(t *testing.T) {
	g := newTestGate()

	tests := []struct {
		name      string
		heard     string
		wantMatch bool
	}{
		{"melody", "melody", true},
		{"malady", "malady", true},
		{"mulady", "mulady", true},
		{"unrelated word", "banana", false},
		{"prefix only", "mila", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := timedResult(tc.heard+" turn on the lights",
				word{tc.heard, 0, 400},
				word{"turn", 900, 1100},
				word{"on", 1100, 1200},
				word{"the", 1200, 1300},
				word{"lights", 1300, 1600},
			)
			m := g.Match(result)
			if tc.wantMatch && m == nil {
				t.Fatalf("expected %q to match milady", tc.heard)
			}
			if !tc.wantMatch && m != nil {
				t.Fatalf("expected %q not to match, got %+v", tc.heard, m)
			}
			if m != nil && m.WakeWord != "milady" {
				t.Errorf("wake word = %q, want milady", m.WakeWord)
			}
		})
	}
}

func TestGate_Match_TriggerPriority(t *testing.T) {
	g := newTestGate()

	// Both "hey milady" and "milady" are present; the first configured
	// trigger wins even though "milady" alone also qualifies.
	result := timedResult("hey milady open the door",
		word{"hey", 0, 200},
		word{"milady", 200, 500},
		word{"open", 1100, 1300},
		word{"the", 1300, 1400},
		word{"door", 1400, 1700},
	)

	m := g.Match(result)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.WakeWord != "hey milady" {
		t.Errorf("wake word = %q, want higher-priority %q", m.WakeWord, "hey milady")
	}
	if m.Command != "open the door" {
		t.Errorf("command = %q, want %q", m.Command, "open the door")
	}
}

func TestGate_Match_EarliestWindowRejectsTrigger(t *testing.T) {
	g := newTestGate()

	// The earliest occurrence of each trigger fails the gap check, which
	// rejects that trigger outright. A later occurrence that would qualify
	// does not resurrect it: the phrase was already used mid-sentence.
	result := timedResult("hey milady no milady yes please",
		word{"hey", 0, 200},
		word{"milady", 200, 500},
		word{"no", 550, 700},
		word{"milady", 1000, 1300},
		word{"yes", 1900, 2100},
		word{"please", 2100, 2400},
	)

	if m := g.Match(result); m != nil {
		t.Fatalf("expected no match when the earliest window fails, got %+v", m)
	}
}

func TestGate_Match_EmptyResult(t *testing.T) {
	g := newTestGate()

	if m := g.Match(nil); m != nil {
		t.Errorf("expected nil for nil result, got %+v", m)
	}
	if m := g.Match(&stt.TranscriptionResult{}); m != nil {
		t.Errorf("expected nil for empty result, got %+v", m)
	}
}

func TestGate_Match_NoTriggerPresent(t *testing.T) {
	g := newTestGate()

	result := timedResult("what a lovely day",
		word{"what", 0, 200},
		word{"a", 200, 300},
		word{"lovely", 300, 600},
		word{"day", 600, 900},
	)
	if m := g.Match(result); m != nil {
		t.Errorf("expected no match, got %+v", m)
	}
}

func TestGate_SetConfig_ReplacesTriggers(t *testing.T) {
	g := newTestGate()
	g.SetConfig(Config{Triggers: []string{"computer"}})

	result := timedResult("milady hello there",
		word{"milady", 0, 400},
		word{"hello", 1000, 1300},
		word{"there", 1300, 1600},
	)
	if m := g.Match(result); m != nil {
		t.Errorf("old trigger still matching after SetConfig: %+v", m)
	}

	result = timedResult("computer hello there",
		word{"computer", 0, 400},
		word{"hello", 1000, 1300},
		word{"there", 1300, 1600},
	)
	if m := g.Match(result); m == nil {
		t.Error("expected new trigger to match")
	}
}

func TestFlatten_TokenTimings(t *testing.T) {
	result := timedResult("Hello, world!",
		word{"Hello,", 0, 400},
		word{"world!", 500, 900},
	)

	words := Flatten(result)
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[0].Text != "hello" || words[1].Text != "world" {
		t.Errorf("expected normalized words, got %q %q", words[0].Text, words[1].Text)
	}
	if words[0].StartMs != 0 || words[0].EndMs != 400 {
		t.Errorf("word 0 timing = [%d,%d], want [0,400]", words[0].StartMs, words[0].EndMs)
	}
}

func TestFlatten_SegmentFallback(t *testing.T) {
	// No token timings: the segment span divides evenly across the words.
	result := &stt.TranscriptionResult{
		Text: "hey milady hello",
		Segments: []stt.Segment{
			{Text: "hey milady hello", StartMs: 0, EndMs: 900},
		},
	}

	words := Flatten(result)
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(words))
	}
	if words[0].StartMs != 0 || words[0].EndMs != 300 {
		t.Errorf("word 0 timing = [%d,%d], want [0,300]", words[0].StartMs, words[0].EndMs)
	}
	if words[2].EndMs != 900 {
		t.Errorf("last word must end at segment end, got %d", words[2].EndMs)
	}
}

func TestNormalizeWord(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello,", "hello"},
		{"  WORLD!  ", "world"},
		{`"quoted"`, "quoted"},
		{"it's", "it's"}, // interior apostrophe survives
		{"...", ""},
	}
	for _, tc := range tests {
		if got := normalizeWord(tc.in); got != tc.want {
			t.Errorf("normalizeWord(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
