package rag

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens for chunk sizing.
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimateTokenizer approximates 1 token per 4 characters. Used in tests
// and as the fallback when tiktoken initialization fails.
type EstimateTokenizer struct{}

func (EstimateTokenizer) CountTokens(text string) int {
	return len(text) / 4
}

// TiktokenTokenizer counts tokens with a real BPE encoding. Initialization
// is lazy because tiktoken may download encoding data on first use; on
// failure every call falls back to the character estimate.
type TiktokenTokenizer struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

// NewTiktokenTokenizer creates a tokenizer for the given encoding name
// (e.g. "cl100k_base"). An empty name selects cl100k_base.
func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenTokenizer{encoding: encoding}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens returns the token count of text, or a len/4 estimate when
// the encoding is unavailable.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	if err := t.init(); err != nil {
		return len(text) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}
