// Package llm defines the narrow contracts the answering pipeline has with
// its model providers, plus concrete clients for OpenAI-compatible APIs,
// Ollama and HTTP re-rank services. Providers are opaque: the pipeline only
// sees embed, complete, expand and score.
package llm

import "context"

// Completer turns a fully assembled prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// QueryExpander generates paraphrases of a question for multi-query
// retrieval. Implementations return 2-4 rewrites; the original question is
// always searched as well, so an empty slice is acceptable.
type QueryExpander interface {
	ExpandQuery(ctx context.Context, question string) ([]string, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CrossEncoder jointly scores (query, passage) pairs. Higher is more
// relevant; scores are only comparable within one call.
type CrossEncoder interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// WebSearcher queries a live external source. Best effort: an empty result
// is valid.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}
