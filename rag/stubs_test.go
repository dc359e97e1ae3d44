package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
)

// wordEmbedder is a deterministic bag-of-words embedder: texts sharing
// words land near each other in cosine space, which is all the retrieval
// tests need.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;?!\"'")
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%64]++
	}
	return vec, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedding service down")
}

// stubCompleter returns a fixed reply, or an error when fail is set.
type stubCompleter struct {
	reply string
	fail  bool

	lastPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.fail {
		return "", errors.New("llm down")
	}
	return s.reply, nil
}

// stubExpander returns fixed paraphrases.
type stubExpander struct {
	expansions []string
	fail       bool
}

func (s *stubExpander) ExpandQuery(context.Context, string) ([]string, error) {
	if s.fail {
		return nil, errors.New("expansion down")
	}
	return s.expansions, nil
}

// stubEncoder scores passages by a fixed map from content to score.
type stubEncoder struct {
	scores map[string]float64
	fail   bool
}

func (s *stubEncoder) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	if s.fail {
		return nil, errors.New("cross-encoder down")
	}
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = s.scores[p]
	}
	return out, nil
}

// stubSearcher returns a fixed result.
type stubSearcher struct {
	result string
	fail   bool

	lastQuery string
}

func (s *stubSearcher) Search(_ context.Context, query string) (string, error) {
	s.lastQuery = query
	if s.fail {
		return "", errors.New("search down")
	}
	return s.result, nil
}
