package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/metrics"
	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
)

// ErrNoRelevantContext signals that the retrieved passages hold nothing
// that answers the question. The caller converts it into the fixed refusal
// sentence instead of letting the model fabricate an answer.
var ErrNoRelevantContext = errors.New("no relevant context for question")

// noInfoSignal is the token the refinement prompt instructs the model to
// emit when the passages are irrelevant.
const noInfoSignal = "NO_INFO"

const refinePromptTemplate = `Extract the sentences from the context below that are relevant to answering the question. Copy them verbatim; do not rephrase, summarize or add anything. If nothing in the context is relevant to the question, reply with exactly %s.

Question: %s

Context:
%s

Relevant sentences:`

// Refiner compresses retrieved passages down to the sentences that matter
// for the question. Exhaustive-list questions bypass compression entirely:
// extraction risks dropping list members needed for a complete answer.
type Refiner struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewRefiner creates a refiner. completer may be nil, which turns the
// stage into plain concatenation.
func NewRefiner(completer llm.Completer, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{
		completer: completer,
		logger:    logger.With(zap.String("component", "refiner")),
	}
}

// Refine returns the question-relevant context extracted from the results,
// or ErrNoRelevantContext when the model reports nothing relevant. An LLM
// failure degrades to the unrefined concatenation.
func (r *Refiner) Refine(ctx context.Context, question string, results []Result) (string, error) {
	if len(results) == 0 {
		return "", ErrNoRelevantContext
	}
	joined := joinPassages(results)

	if isExhaustiveListQuestion(strings.ToLower(question)) {
		r.logger.Debug("list question, skipping refinement")
		return joined, nil
	}
	if r.completer == nil {
		return joined, nil
	}

	prompt := fmt.Sprintf(refinePromptTemplate, noInfoSignal, question, joined)
	refined, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		metrics.StageSkips.WithLabelValues("refine").Inc()
		r.logger.Warn("refinement failed, using unrefined context", zap.Error(err))
		return joined, nil
	}

	refined = strings.TrimSpace(refined)
	if refined == "" || strings.Contains(refined, noInfoSignal) {
		return "", ErrNoRelevantContext
	}
	return refined, nil
}

func joinPassages(results []Result) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = strings.TrimSpace(res.Passage.Content)
	}
	return strings.Join(parts, "\n\n")
}
