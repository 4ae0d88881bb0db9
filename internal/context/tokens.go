package context

import (
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter converts text to a token count for budgeting decisions.
// Counting is deterministic so budgets computed by summing independent
// calls stay consistent within a request.
type TokenCounter struct {
	codec tokenizer.Codec

	// Calibration for the fallback estimate (characters per token).
	charsPerToken float64
}

var (
	codecOnce   sync.Once
	sharedCodec tokenizer.Codec
)

// NewTokenCounter returns a counter backed by the cl100k BPE vocabulary.
// When the codec cannot be constructed it falls back to a ~4 characters
// per token estimate, which is close enough for budget thresholds.
func NewTokenCounter() *TokenCounter {
	codecOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			sharedCodec = codec
		}
	})
	return &TokenCounter{
		codec:         sharedCodec,
		charsPerToken: 4.0,
	}
}

// Count returns the token count of s. Empty input counts as zero.
func (tc *TokenCounter) Count(s string) int {
	if s == "" {
		return 0
	}
	if tc.codec != nil {
		if ids, _, err := tc.codec.Encode(s); err == nil {
			return len(ids)
		}
	}
	runeCount := utf8.RuneCountInString(s)
	n := int(float64(runeCount) / tc.charsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

// CountTurn returns the token count of a turn's content.
func (tc *TokenCounter) CountTurn(t Turn) int {
	return tc.Count(t.Content)
}

// CountTurns sums token counts across turns.
func (tc *TokenCounter) CountTurns(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += tc.CountTurn(t)
	}
	return total
}
