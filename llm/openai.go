package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures an OpenAI-compatible provider (OpenAI, Groq,
// Together, vLLM gateways).
type OpenAIConfig struct {
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	APIKey         string        `json:"api_key" yaml:"api_key"`
	ChatModel      string        `json:"chat_model" yaml:"chat_model"`
	EmbeddingModel string        `json:"embedding_model" yaml:"embedding_model"`
	Temperature    float64       `json:"temperature" yaml:"temperature"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
}

// DefaultOpenAIConfig targets Groq's free tier, which the assistant ships
// against by default.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:        "https://api.groq.com/openai",
		ChatModel:      "llama-3.3-70b-versatile",
		EmbeddingModel: "text-embedding-3-small",
		Temperature:    0.2,
		Timeout:        60 * time.Second,
		RequestsPerSec: 2,
	}
}

// OpenAIProvider is a hand-rolled client for the OpenAI-compatible chat and
// embeddings endpoints, wrapped with a client-side rate limiter and a
// circuit breaker so a failing upstream sheds load quickly.
type OpenAIProvider struct {
	cfg     OpenAIConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAIProvider creates a provider from cfg, filling defaults for
// unset fields.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	def := DefaultOpenAIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}

	return &OpenAIProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)+1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openai",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 &&
					float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Complete sends a single-message chat completion and returns the text.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := chatRequest{
		Model:       p.cfg.ChatModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: p.cfg.Temperature,
	}

	var out chatResponse
	if err := p.post(ctx, "/v1/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// expandPromptTemplate asks for paraphrases one per line; parsing strips
// list markers the model tends to add anyway.
const expandPromptTemplate = `Generate 3 alternative phrasings of the following question, keeping the meaning identical. Reply with one phrasing per line and nothing else.

Question: %s`

// ExpandQuery generates paraphrases of the question for multi-query
// retrieval.
func (p *OpenAIProvider) ExpandQuery(ctx context.Context, question string) ([]string, error) {
	text, err := p.Complete(ctx, fmt.Sprintf(expandPromptTemplate, question))
	if err != nil {
		return nil, err
	}

	var expansions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-*) ")
		if line != "" {
			expansions = append(expansions, line)
		}
	}
	return expansions, nil
}

// Embed maps text to its embedding vector.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	body := embeddingRequest{Model: p.cfg.EmbeddingModel, Input: text}

	var out embeddingResponse
	if err := p.post(ctx, "/v1/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty data")
	}
	return out.Data[0].Embedding, nil
}

// post sends a JSON request through the limiter and breaker and decodes
// the response into out.
func (p *OpenAIProvider) post(ctx context.Context, path string, body, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(p.cfg.BaseURL, "/")+path,
			bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s failed: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			errBody, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("%s error: status=%d body=%s", path, resp.StatusCode, string(errBody))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil, nil
	})
	return err
}
