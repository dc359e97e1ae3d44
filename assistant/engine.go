// Package assistant orchestrates the answering pipeline: retrieval,
// re-ranking, refinement, web fallback, prompt assembly and the single LLM
// completion, plus session memory bookkeeping.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/metrics"
	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
	"github.com/ismaeeeelshaikh/college-ai-assistant/memory"
	"github.com/ismaeeeelshaikh/college-ai-assistant/rag"
)

// Config tunes the engine.
type Config struct {
	OrgName      string `json:"org_name" yaml:"org_name"`
	HistoryLimit int    `json:"history_limit" yaml:"history_limit"` // turns folded into the prompt
}

// DefaultConfig includes the six most recent turns in each prompt.
func DefaultConfig() Config {
	return Config{HistoryLimit: 6}
}

// Engine is the answering core. It never returns an error to its caller:
// every failure mode resolves to a text answer, either a real answer, the
// fixed refusal or the fixed apology.
type Engine struct {
	config    Config
	retriever *rag.Retriever
	reranker  *rag.Reranker
	refiner   *rag.Refiner
	fallback  *rag.FallbackSearch
	completer llm.Completer
	memory    *memory.Table
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New wires the pipeline stages into an engine.
func New(config Config, retriever *rag.Retriever, reranker *rag.Reranker, refiner *rag.Refiner, fallback *rag.FallbackSearch, completer llm.Completer, mem *memory.Table, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Engine{
		config:    config,
		retriever: retriever,
		reranker:  reranker,
		refiner:   refiner,
		fallback:  fallback,
		completer: completer,
		memory:    mem,
		logger:    logger.With(zap.String("component", "engine")),
		tracer:    otel.Tracer("assistant"),
	}
}

// AnswerQuestion answers one question for a session. The turn is recorded
// in session memory unless the pipeline failed outright.
func (e *Engine) AnswerQuestion(ctx context.Context, question string, userID, sessionID int64) string {
	ctx, span := e.tracer.Start(ctx, "assistant.answer_question",
		trace.WithAttributes(
			attribute.Int64("user_id", userID),
			attribute.Int64("session_id", sessionID),
		))
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return RefusalSentence
	}

	answer, outcome := e.answer(ctx, question, userID, sessionID)
	metrics.QuestionsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("outcome", outcome))

	if outcome != "apology" {
		e.memory.Append(ctx, userID, sessionID, memory.Turn{Question: question, Answer: answer})
	}
	return answer
}

func (e *Engine) answer(ctx context.Context, question string, userID, sessionID int64) (text, outcome string) {
	strategy := e.retriever.SelectStrategy(question)

	candidates, err := timedStage(ctx, e, "retrieve", func(ctx context.Context) ([]rag.Result, error) {
		return e.retriever.Retrieve(ctx, question, strategy)
	})
	if err != nil {
		e.logger.Error("retrieval failed", zap.Error(err), zap.String("strategy", string(strategy)))
		return ApologyAnswer, "apology"
	}

	reranked, _ := timedStage(ctx, e, "rerank", func(ctx context.Context) ([]rag.Result, error) {
		return e.reranker.Rerank(ctx, question, candidates), nil
	})

	refined, refineErr := e.refine(ctx, question, reranked)

	// Role questions consult the live web even when the index answered:
	// personnel facts go stale faster than the documents get re-exported.
	webContext := ""
	needWeb := errors.Is(refineErr, rag.ErrNoRelevantContext) || isRoleQuestion(question)
	if needWeb {
		webContext = e.webSearch(ctx, question)
	}

	if errors.Is(refineErr, rag.ErrNoRelevantContext) && webContext == "" {
		e.logger.Info("no relevant context, refusing",
			zap.Int64("user_id", userID),
			zap.Int64("session_id", sessionID))
		return RefusalSentence, "refused"
	}

	prompt := buildPrompt(promptInput{
		OrgName:    e.config.OrgName,
		History:    e.memory.Recent(userID, sessionID, e.config.HistoryLimit),
		Context:    refined,
		WebContext: webContext,
		Question:   question,
	})

	answerText, err := timedStage(ctx, e, "complete", func(ctx context.Context) (string, error) {
		return e.completer.Complete(ctx, prompt)
	})
	if err != nil {
		e.logger.Error("completion failed", zap.Error(err))
		return ApologyAnswer, "apology"
	}
	return answerText, "answered"
}

// refine runs the refinement stage; ErrNoRelevantContext passes through,
// other failures already degrade inside the refiner.
func (e *Engine) refine(ctx context.Context, question string, results []rag.Result) (string, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("refine").Observe(time.Since(start).Seconds())
	}()
	return e.refiner.Refine(ctx, question, results)
}

func (e *Engine) webSearch(ctx context.Context, question string) string {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("web_search").Observe(time.Since(start).Seconds())
	}()
	metrics.WebFallbacksTotal.Inc()
	return e.fallback.Search(ctx, question)
}

// timedStage wraps a stage call with a duration observation and a span.
// Free function because methods cannot take type parameters.
func timedStage[T any](ctx context.Context, e *Engine, stage string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := e.tracer.Start(ctx, "assistant."+stage)
	defer span.End()

	start := time.Now()
	out, err := fn(ctx)
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out, err
}

// ForgetSession clears memory for one session; invoked by the session
// lifecycle collaborator when a chat is deleted.
func (e *Engine) ForgetSession(ctx context.Context, userID, sessionID int64) {
	e.memory.Clear(ctx, userID, sessionID)
}

// ForgetUser clears all of a user's sessions; invoked on account deletion.
func (e *Engine) ForgetUser(ctx context.Context, userID int64) {
	e.memory.ClearAll(ctx, userID)
}

// isRoleQuestion reports whether the question asks who holds a position.
func isRoleQuestion(question string) bool {
	q := strings.ToLower(question)
	if !strings.Contains(q, "who") && !strings.Contains(q, "name of") {
		return false
	}
	for _, title := range []string{"hod", "head", "principal", "dean", "director", "warden", "chancellor", "registrar"} {
		if strings.Contains(q, title) {
			return true
		}
	}
	return false
}
