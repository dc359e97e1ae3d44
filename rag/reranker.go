package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/metrics"
	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
)

// RerankerConfig bounds the re-ranking stage.
type RerankerConfig struct {
	TopN int `json:"top_n" yaml:"top_n"` // passages kept after re-ranking
}

// DefaultRerankerConfig keeps the five strongest passages.
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{TopN: 5}
}

// Reranker reorders retrieval candidates with a cross-encoder and truncates
// to the strongest few. Pure and deterministic: identical input yields
// identical output ordering. A cross-encoder failure degrades to the
// incoming order rather than aborting the pipeline.
type Reranker struct {
	config  RerankerConfig
	encoder llm.CrossEncoder
	logger  *zap.Logger
}

// NewReranker creates a re-ranker. encoder may be nil, which turns the
// stage into plain truncation.
func NewReranker(config RerankerConfig, encoder llm.CrossEncoder, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{
		config:  config,
		encoder: encoder,
		logger:  logger.With(zap.String("component", "reranker")),
	}
}

// Rerank scores every (question, passage) pair, stable-sorts descending and
// truncates to TopN. Equal scores keep the retriever's order.
func (r *Reranker) Rerank(ctx context.Context, question string, candidates []Result) []Result {
	if len(candidates) == 0 {
		return candidates
	}

	reranked := make([]Result, len(candidates))
	copy(reranked, candidates)

	if r.encoder != nil {
		passages := make([]string, len(reranked))
		for i, c := range reranked {
			passages[i] = c.Passage.Content
		}
		scores, err := r.encoder.Score(ctx, question, passages)
		if err != nil || len(scores) != len(reranked) {
			metrics.StageSkips.WithLabelValues("rerank").Inc()
			r.logger.Warn("cross-encoder scoring failed, keeping retrieval order",
				zap.Error(err))
		} else {
			for i := range reranked {
				reranked[i].Score = scores[i]
			}
			sortByScore(reranked)
		}
	}

	if len(reranked) > r.config.TopN {
		reranked = reranked[:r.config.TopN]
	}
	return reranked
}
