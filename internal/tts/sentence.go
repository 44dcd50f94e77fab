package tts

import (
	"context"
	"strings"
	"unicode"
)

// SentenceChunker splits streamed reply text at natural breakpoints so
// synthesis can start before the full reply has arrived. Strong terminators
// (. ! ? newline) always break; a comma breaks only once enough text has
// accumulated, which gives clause-level pauses without chopping short
// phrases apart.
type SentenceChunker struct {
	MinChunkSize     int // minimum chars before a flush is considered
	MaxBufferSize    int // force flush at this size
	CommaBreakLength int // minimum chars before a comma triggers a break

	buffer strings.Builder
}

// NewSentenceChunker returns a chunker with defaults tuned for TTS flow.
func NewSentenceChunker() *SentenceChunker {
	return &SentenceChunker{
		MinChunkSize:     20,
		MaxBufferSize:    200,
		CommaBreakLength: 40,
	}
}

// Push appends streamed text and returns any sentences that became
// complete.
func (c *SentenceChunker) Push(text string) []string {
	c.buffer.WriteString(text)
	content := c.buffer.String()

	sentences := c.extract(content)
	if len(sentences) > 0 {
		consumed := 0
		for _, s := range sentences {
			consumed += len(s)
		}
		// Trim only the leading separator; trailing space matters because
		// the next fragment concatenates directly onto it.
		remaining := strings.TrimLeftFunc(content[consumed:], unicode.IsSpace)
		c.buffer.Reset()
		c.buffer.WriteString(remaining)
	}

	// Oversized buffer with no boundary in sight: flush it whole.
	if c.buffer.Len() >= c.MaxBufferSize {
		content := c.buffer.String()
		c.buffer.Reset()
		sentences = append(sentences, content)
	}

	for i, s := range sentences {
		sentences[i] = strings.TrimSpace(s)
	}
	return sentences
}

// Flush returns whatever text remains buffered.
func (c *SentenceChunker) Flush() string {
	remaining := strings.TrimSpace(c.buffer.String())
	c.buffer.Reset()
	return remaining
}

// extract returns complete sentences from the front of text, each including
// its terminator and any following whitespace consumed from text.
func (c *SentenceChunker) extract(text string) []string {
	if len(text) < c.MinChunkSize {
		return nil
	}

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		if isTerminator(r) {
			if i == len(runes)-1 {
				// Final terminator may still be mid-sentence (abbreviation,
				// decimal); wait for more text.
				break
			}
			if unicode.IsSpace(runes[i+1]) && nextLetterUpper(runes, i+1) {
				sentences = append(sentences, current.String())
				current.Reset()
			}
		} else if r == ',' && current.Len() >= c.CommaBreakLength {
			if i < len(runes)-1 && unicode.IsSpace(runes[i+1]) {
				sentences = append(sentences, current.String())
				current.Reset()
			}
		}
	}

	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

// nextLetterUpper reports whether the first letter at or after index i is
// uppercase; a lowercase continuation means the terminator was not a real
// sentence end.
func nextLetterUpper(runes []rune, i int) bool {
	for j := i; j < len(runes); j++ {
		if unicode.IsLetter(runes[j]) {
			return unicode.IsUpper(runes[j])
		}
		if !unicode.IsSpace(runes[j]) {
			return false
		}
	}
	return false
}

// SpeakStream consumes a channel of reply-text fragments, speaking complete
// sentences as they form. It returns after the channel closes and the final
// fragment has been spoken, or as soon as synthesis is interrupted.
func (c *Client) SpeakStream(ctx context.Context, chunks <-chan string, d *Directive) Outcome {
	chunker := NewSentenceChunker()

	for {
		select {
		case <-ctx.Done():
			return Outcome{Interrupted: true}

		case text, ok := <-chunks:
			if !ok {
				if remaining := chunker.Flush(); remaining != "" {
					return c.Speak(ctx, remaining, d)
				}
				return Outcome{Completed: true}
			}

			for _, sentence := range chunker.Push(text) {
				if sentence == "" {
					continue
				}
				outcome := c.Speak(ctx, sentence, d)
				if outcome.Interrupted || outcome.Err != "" {
					return outcome
				}
			}
		}
	}
}
