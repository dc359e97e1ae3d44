// Command assistant runs the college question-answering engine as an
// interactive console. The surrounding product calls the same engine from
// its own API layer; this binary exists for local operation and data
// checks.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ismaeeeelshaikh/college-ai-assistant/assistant"
	"github.com/ismaeeeelshaikh/college-ai-assistant/config"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/metrics"
	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
	"github.com/ismaeeeelshaikh/college-ai-assistant/memory"
	"github.com/ismaeeeelshaikh/college-ai-assistant/rag"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	userID := flag.Int64("user", 1, "user id for the console session")
	sessionID := flag.Int64("session", 1, "session id for the console session")
	rebuild := flag.Bool("rebuild", false, "force a full index rebuild")
	flag.Parse()

	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if err := run(context.Background(), cfg, logger, *userID, *sessionID, *rebuild); err != nil {
		logger.Fatal("assistant failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, userID, sessionID int64, forceRebuild bool) error {
	completer, expander, embedder, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	tokenizer := rag.NewTiktokenTokenizer("")
	splitter := rag.NewPassageSplitter(cfg.Splitter, tokenizer, logger)
	loader := rag.NewDirectoryLoader(cfg.DataDir, logger)
	index := rag.NewIndexStore(cfg.IndexPath, splitter, embedder, logger)

	if err := ensureIndex(ctx, cfg, logger, loader, index, forceRebuild); err != nil {
		return err
	}

	mem, err := buildMemory(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var encoder llm.CrossEncoder
	if cfg.Rerank.APIKey != "" {
		encoder = llm.NewRerankProvider(cfg.Rerank)
	}
	var searcher llm.WebSearcher
	if cfg.Search.APIKey != "" {
		searcher = llm.NewSearchProvider(cfg.Search)
	}

	engine := assistant.New(
		assistant.Config{OrgName: cfg.WebSearch.OrgName, HistoryLimit: cfg.HistoryLimit},
		rag.NewRetriever(cfg.Retriever, index, embedder, expander, logger),
		rag.NewReranker(cfg.Reranker, encoder, logger),
		rag.NewRefiner(completer, logger),
		rag.NewFallbackSearch(cfg.WebSearch, searcher, logger),
		completer,
		mem,
		logger,
	)

	return repl(ctx, engine, userID, sessionID)
}

// buildProvider selects the LLM backend. Both backends satisfy all three
// provider contracts.
func buildProvider(cfg config.Config) (llm.Completer, llm.QueryExpander, llm.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		p, err := llm.NewOllamaProvider(cfg.Ollama)
		if err != nil {
			return nil, nil, nil, err
		}
		return p, p, p, nil
	default:
		p := llm.NewOpenAIProvider(cfg.OpenAI)
		return p, p, p, nil
	}
}

// ensureIndex loads the persisted index and rebuilds it when any source
// file is newer than the last build. A rebuild failure at startup is
// fatal: the engine cannot answer without an index.
func ensureIndex(ctx context.Context, cfg config.Config, logger *zap.Logger, loader *rag.DirectoryLoader, index *rag.IndexStore, forceRebuild bool) error {
	if err := loader.EnsureData(); err != nil {
		return err
	}

	if err := index.Load(); err != nil && !errors.Is(err, rag.ErrIndexNotFound) {
		logger.Warn("persisted index unreadable, rebuilding", zap.Error(err))
	}

	newest, err := loader.NewestModTime()
	if err != nil {
		return err
	}
	if !forceRebuild && !index.NeedsRebuild(newest) {
		logger.Info("index up to date", zap.Int("passages", index.Len()))
		return nil
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	metrics.IndexRebuildsTotal.Inc()
	if err := index.Build(ctx, docs); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	return nil
}

func buildMemory(ctx context.Context, cfg config.Config, logger *zap.Logger) (*memory.Table, error) {
	var store memory.Store
	switch cfg.MemoryStore {
	case config.MemoryStoreRedis:
		store = memory.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	default:
		store = memory.NewFileStore(cfg.MemoryPath)
	}

	mem := memory.NewTable(cfg.Memory, store, logger)
	if err := mem.Restore(ctx); err != nil {
		// Lost memory degrades quality but never blocks answering.
		logger.Warn("failed to restore session memory", zap.Error(err))
	}
	return mem, nil
}

func repl(ctx context.Context, engine *assistant.Engine, userID, sessionID int64) error {
	fmt.Println("College assistant ready. Ask a question, or /forget, /forget-all, /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/forget":
			engine.ForgetSession(ctx, userID, sessionID)
			fmt.Println("Session memory cleared.")
		case line == "/forget-all":
			engine.ForgetUser(ctx, userID)
			fmt.Println("All sessions cleared for this user.")
		default:
			fmt.Println(engine.AnswerQuestion(ctx, line, userID, sessionID))
		}
	}
	return scanner.Err()
}
