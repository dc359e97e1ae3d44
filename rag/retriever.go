package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
)

// Strategy selects how candidate passages are gathered for a question.
type Strategy string

const (
	// StrategySimilarity returns the top-k nearest child passages.
	StrategySimilarity Strategy = "similarity"
	// StrategyMMR trades relevance against diversity over a larger pool.
	StrategyMMR Strategy = "mmr"
	// StrategyMultiQuery searches LLM paraphrases of the question and
	// union-deduplicates the hits.
	StrategyMultiQuery Strategy = "multi_query"
	// StrategyParentDocument searches children but returns their parents.
	StrategyParentDocument Strategy = "parent_document"
)

// RetrieverConfig bounds each strategy.
type RetrieverConfig struct {
	TopK      int     `json:"top_k" yaml:"top_k"`           // candidates handed to the re-ranker
	FetchK    int     `json:"fetch_k" yaml:"fetch_k"`       // MMR candidate pool
	MMRLambda float64 `json:"mmr_lambda" yaml:"mmr_lambda"` // 1.0 = pure relevance
	MinScore  float64 `json:"min_score" yaml:"min_score"`   // drop weaker similarity hits
}

// DefaultRetrieverConfig returns the tuned defaults: a generous candidate
// set, since the re-ranker truncates aggressively afterwards.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:      15,
		FetchK:    40,
		MMRLambda: 0.7,
		MinScore:  0.15,
	}
}

// Retriever gathers candidate passages from the index using a per-question
// strategy. An empty result set is a valid outcome, never an error: it
// means the index holds nothing relevant.
type Retriever struct {
	config   RetrieverConfig
	index    *IndexStore
	embedder llm.Embedder
	expander llm.QueryExpander
	logger   *zap.Logger
}

// NewRetriever creates a retriever. expander may be nil, which disables
// the multi-query strategy (it falls back to plain similarity).
func NewRetriever(config RetrieverConfig, index *IndexStore, embedder llm.Embedder, expander llm.QueryExpander, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		config:   config,
		index:    index,
		embedder: embedder,
		expander: expander,
		logger:   logger.With(zap.String("component", "retriever")),
	}
}

// Retrieve runs the given strategy and returns candidates above the
// configured minimum score, best first.
func (r *Retriever) Retrieve(ctx context.Context, question string, strategy Strategy) ([]Result, error) {
	var (
		results []Result
		err     error
	)
	switch strategy {
	case StrategyMMR:
		results, err = r.retrieveMMR(ctx, question)
	case StrategyMultiQuery:
		results, err = r.retrieveMultiQuery(ctx, question)
	case StrategyParentDocument:
		results, err = r.retrieveParentDocument(ctx, question)
	default:
		results, err = r.retrieveSimilarity(ctx, question)
	}
	if err != nil {
		return nil, err
	}

	results = r.filterMinScore(results)
	r.logger.Debug("retrieval complete",
		zap.String("strategy", string(strategy)),
		zap.Int("candidates", len(results)))
	return results, nil
}

// SelectStrategy picks a retrieval strategy from lexical cues in the
// question. Exhaustive-list questions want whole parent sections so no
// member is cut off mid-chunk; multi-part questions benefit from paraphrase
// expansion; broad "tell me about" questions get diversity; everything else
// is plain similarity.
func (r *Retriever) SelectStrategy(question string) Strategy {
	q := strings.ToLower(question)

	if isExhaustiveListQuestion(q) {
		return StrategyParentDocument
	}
	if strings.Contains(q, " and ") || strings.Count(q, "?") > 1 {
		return StrategyMultiQuery
	}
	for _, cue := range []string{"tell me about", "overview", "describe", "explain"} {
		if strings.Contains(q, cue) {
			return StrategyMMR
		}
	}
	return StrategySimilarity
}

func (r *Retriever) retrieveSimilarity(ctx context.Context, question string) ([]Result, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return r.index.Search(ctx, vec, r.config.TopK)
}

func (r *Retriever) retrieveMMR(ctx context.Context, question string) ([]Result, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return r.index.SearchMMR(ctx, vec, r.config.TopK, r.config.FetchK, r.config.MMRLambda)
}

// retrieveMultiQuery searches the question plus its LLM paraphrases
// concurrently and unions the hits, keeping each passage's best score.
func (r *Retriever) retrieveMultiQuery(ctx context.Context, question string) ([]Result, error) {
	queries := []string{question}
	if r.expander != nil {
		expansions, err := r.expander.ExpandQuery(ctx, question)
		if err != nil {
			// Expansion is an enhancement; degrade to the original question.
			r.logger.Warn("query expansion failed", zap.Error(err))
		} else {
			queries = append(queries, expansions...)
		}
	}

	var mu sync.Mutex
	merged := make(map[string]Result)
	order := make([]string, 0, r.config.TopK*len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			hits, err := r.retrieveSimilarity(gctx, q)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, hit := range hits {
				id := hit.Passage.ID
				prev, seen := merged[id]
				if !seen {
					order = append(order, id)
				}
				if !seen || hit.Score > prev.Score {
					merged[id] = hit
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, merged[id])
	}
	sortByScore(results)
	if len(results) > r.config.TopK {
		results = results[:r.config.TopK]
	}
	return results, nil
}

// retrieveParentDocument searches child passages but returns their parents,
// deduplicating parents pulled in by multiple children. Each parent takes
// the best score among its children; children without a parent pass
// through unchanged.
func (r *Retriever) retrieveParentDocument(ctx context.Context, question string) ([]Result, error) {
	children, err := r.retrieveSimilarity(ctx, question)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(children))
	results := make([]Result, 0, len(children))
	for _, hit := range children {
		parent, ok := r.index.ParentOf(hit.Passage)
		if !ok {
			if !seen[hit.Passage.ID] {
				seen[hit.Passage.ID] = true
				results = append(results, hit)
			}
			continue
		}
		if seen[parent.ID] {
			continue
		}
		seen[parent.ID] = true
		results = append(results, Result{Passage: parent, Score: hit.Score})
	}
	return results, nil
}

func (r *Retriever) filterMinScore(results []Result) []Result {
	if r.config.MinScore <= 0 {
		return results
	}
	kept := results[:0]
	for _, res := range results {
		if res.Score >= r.config.MinScore {
			kept = append(kept, res)
		}
	}
	return kept
}
