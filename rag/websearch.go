package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
)

// WebSearchConfig configures the external fallback search.
type WebSearchConfig struct {
	OrgName   string        `json:"org_name" yaml:"org_name"`     // organization name added to rewritten queries
	OrgDomain string        `json:"org_domain" yaml:"org_domain"` // site: restriction for role questions
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultWebSearchConfig returns defaults with no organization configured;
// role-question rewriting activates once OrgDomain is set.
func DefaultWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{Timeout: 10 * time.Second}
}

// FallbackSearch queries a live external source when the index cannot
// answer. Best effort at the boundary: every failure (provider error,
// open breaker, timeout) resolves to an empty string, never an error.
type FallbackSearch struct {
	config   WebSearchConfig
	searcher llm.WebSearcher
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewFallbackSearch creates the fallback stage. searcher may be nil, which
// makes every Search return empty.
func NewFallbackSearch(config WebSearchConfig, searcher llm.WebSearcher, logger *zap.Logger) *FallbackSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "web_search",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	return &FallbackSearch{
		config:   config,
		searcher: searcher,
		breaker:  breaker,
		logger:   logger.With(zap.String("component", "fallback_search")),
	}
}

// Search runs an external lookup for the question and returns whatever text
// came back, or an empty string on any failure.
func (f *FallbackSearch) Search(ctx context.Context, question string) string {
	if f.searcher == nil {
		return ""
	}
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	query := f.buildQuery(question)
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.searcher.Search(ctx, query)
	})
	if err != nil {
		f.logger.Warn("external search failed",
			zap.String("query", query),
			zap.Error(err))
		return ""
	}

	text, _ := out.(string)
	return strings.TrimSpace(text)
}

// buildQuery rewrites role-seeking questions ("who is the HOD of CSE") to
// the exact role phrase scoped to the organization's own domain; other
// questions are sent with the organization name prefixed for context.
func (f *FallbackSearch) buildQuery(question string) string {
	q := strings.ToLower(question)
	if role, ok := detectRoleQuestion(q); ok && f.config.OrgDomain != "" {
		return fmt.Sprintf("%s %s site:%s", f.config.OrgName, role, f.config.OrgDomain)
	}
	if f.config.OrgName != "" {
		return f.config.OrgName + " " + question
	}
	return question
}
