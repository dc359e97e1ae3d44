package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaConfig configures a local Ollama deployment.
type OllamaConfig struct {
	Host           string  `json:"host" yaml:"host"` // empty = OLLAMA_HOST / default
	ChatModel      string  `json:"chat_model" yaml:"chat_model"`
	EmbeddingModel string  `json:"embedding_model" yaml:"embedding_model"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
}

// DefaultOllamaConfig pairs a small instruct model with nomic embeddings,
// both runnable on CPU.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		ChatModel:      "llama3.2",
		EmbeddingModel: "nomic-embed-text",
		Temperature:    0.2,
	}
}

// OllamaProvider serves completions, query expansion and embeddings from a
// local Ollama instance. Used for offline deployments where no hosted API
// key is available.
type OllamaProvider struct {
	cfg    OllamaConfig
	client *api.Client
}

// NewOllamaProvider creates a provider. An empty Host falls back to the
// OLLAMA_HOST environment variable.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	def := DefaultOllamaConfig()
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}

	hostURL := envconfig.Host()
	if cfg.Host != "" {
		parsed, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		hostURL = parsed
	}

	return &OllamaProvider{
		cfg:    cfg,
		client: api.NewClient(hostURL, http.DefaultClient),
	}, nil
}

// Complete generates text for the prompt, accumulating the streamed
// response.
func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  p.cfg.ChatModel,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": p.cfg.Temperature,
		},
	}

	var b strings.Builder
	err := p.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// ExpandQuery generates paraphrases of the question.
func (p *OllamaProvider) ExpandQuery(ctx context.Context, question string) ([]string, error) {
	text, err := p.Complete(ctx, fmt.Sprintf(expandPromptTemplate, question))
	if err != nil {
		return nil, err
	}

	var expansions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "0123456789.-*) "))
		if line != "" {
			expansions = append(expansions, line)
		}
	}
	return expansions, nil
}

// Embed maps text to its embedding vector.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  p.cfg.EmbeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	return resp.Embedding, nil
}
