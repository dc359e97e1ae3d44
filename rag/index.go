package rag

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ismaeeeelshaikh/college-ai-assistant/llm"
)

// ErrIndexNotFound signals that no persisted index blob exists at the
// configured path. Callers respond by building a fresh index.
var ErrIndexNotFound = errors.New("index blob not found")

// indexSnapshot is the persisted form of a built index: every child passage
// with its embedding, the parent lookup, and the build timestamp used by the
// rebuild policy. Children keep insertion order so equal-score search
// results tie-break deterministically.
type indexSnapshot struct {
	BuiltAt    int64
	Children   []Passage
	Embeddings [][]float64
	Parents    map[string]Passage
}

// IndexStore owns the vector index over child passages and the child→parent
// map. Read-mostly after build: Search and ParentOf take the read lock,
// Build swaps in a complete fresh snapshot under the write lock. The
// snapshot persists as a single gob blob; a sidecar .lock file serializes
// writers that share the blob path.
type IndexStore struct {
	mu       sync.RWMutex
	snapshot *indexSnapshot

	blobPath string
	splitter *PassageSplitter
	embedder llm.Embedder
	logger   *zap.Logger
}

// NewIndexStore creates an index store persisting to blobPath.
func NewIndexStore(blobPath string, splitter *PassageSplitter, embedder llm.Embedder, logger *zap.Logger) *IndexStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexStore{
		blobPath: blobPath,
		splitter: splitter,
		embedder: embedder,
		logger:   logger.With(zap.String("component", "index_store")),
	}
}

// Build chunks the documents, embeds every child passage and swaps the
// resulting snapshot in as the live index, then persists it. Any embedding
// failure aborts the build; neither the live index nor the blob is touched.
func (s *IndexStore) Build(ctx context.Context, docs []Document) error {
	start := time.Now()
	parents, children := s.splitter.Split(docs)

	snap := &indexSnapshot{
		BuiltAt:    time.Now().Unix(),
		Children:   children,
		Embeddings: make([][]float64, len(children)),
		Parents:    make(map[string]Passage, len(parents)),
	}
	for _, p := range parents {
		snap.Parents[p.ID] = p
	}

	for i, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := s.embedder.Embed(ctx, child.Content)
		if err != nil {
			return fmt.Errorf("embed passage %s: %w", child.ID, err)
		}
		snap.Embeddings[i] = vec
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.logger.Info("index built",
		zap.Int("documents", len(docs)),
		zap.Int("children", len(children)),
		zap.Int("parents", len(parents)),
		zap.Duration("elapsed", time.Since(start)))

	return s.Save()
}

// Load reads the persisted blob into the live index. Returns
// ErrIndexNotFound when no blob exists.
func (s *IndexStore) Load() error {
	f, err := os.Open(s.blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrIndexNotFound
		}
		return fmt.Errorf("open index blob: %w", err)
	}
	defer f.Close()

	var snap indexSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode index blob: %w", err)
	}

	s.mu.Lock()
	s.snapshot = &snap
	s.mu.Unlock()

	s.logger.Info("index loaded",
		zap.Int("children", len(snap.Children)),
		zap.Int64("built_at", snap.BuiltAt))
	return nil
}

// Save persists the live index as one gob blob. The blob is written to a
// temp file and renamed into place so readers never observe a partial
// write; the .lock sidecar keeps two processes from racing on the rename.
func (s *IndexStore) Save() error {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap == nil {
		return errors.New("no index to save")
	}

	if err := os.MkdirAll(filepath.Dir(s.blobPath), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	unlock, err := acquireFileLock(s.blobPath + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.blobPath), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.blobPath); err != nil {
		return fmt.Errorf("replace index blob: %w", err)
	}

	s.logger.Info("index saved", zap.String("path", s.blobPath))
	return nil
}

// NeedsRebuild reports whether any source file is newer than the live
// index. A missing index always needs a rebuild.
func (s *IndexStore) NeedsRebuild(newestSourceModTime int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return true
	}
	return newestSourceModTime > s.snapshot.BuiltAt
}

// BuiltAt returns the live index's build time in Unix seconds, or zero when
// no index is loaded.
func (s *IndexStore) BuiltAt() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return 0
	}
	return s.snapshot.BuiltAt
}

// Len returns the number of indexed child passages.
func (s *IndexStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return 0
	}
	return len(s.snapshot.Children)
}

// Search returns the k child passages most similar to the query embedding,
// descending by cosine similarity, with equal scores keeping insertion
// order. An empty index yields an empty result, not an error.
func (s *IndexStore) Search(ctx context.Context, embedding []float64, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || k <= 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(s.snapshot.Children))
	for i, child := range s.snapshot.Children {
		results = append(results, Result{
			Passage: child,
			Score:   cosineSimilarity(embedding, s.snapshot.Embeddings[i]),
		})
	}
	sortByScore(results)

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SearchMMR selects k passages by maximal marginal relevance: a pool of
// fetchK nearest candidates is re-picked greedily, each pick maximizing
// lambda*relevance - (1-lambda)*similarity-to-already-picked. Lambda 1.0
// degenerates to plain similarity, 0.0 to pure diversity.
func (s *IndexStore) SearchMMR(ctx context.Context, embedding []float64, k, fetchK int, lambda float64) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || k <= 0 {
		return nil, nil
	}
	if fetchK < k {
		fetchK = k
	}

	type candidate struct {
		Result
		vec []float64
	}
	pool := make([]candidate, 0, len(s.snapshot.Children))
	for i, child := range s.snapshot.Children {
		vec := s.snapshot.Embeddings[i]
		pool = append(pool, candidate{
			Result: Result{Passage: child, Score: cosineSimilarity(embedding, vec)},
			vec:    vec,
		})
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	if len(pool) > fetchK {
		pool = pool[:fetchK]
	}

	var selected []Result
	var selectedVecs [][]float64
	picked := make([]bool, len(pool))

	for len(selected) < k && len(selected) < len(pool) {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range pool {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			for _, sv := range selectedVecs {
				if sim := cosineSimilarity(c.vec, sv); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*c.Score - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, Result{Passage: pool[best].Passage, Score: bestScore})
		selectedVecs = append(selectedVecs, pool[best].vec)
	}
	return selected, nil
}

// ParentOf resolves a child passage to its parent. Passages without a
// parent (or with a dangling reference) report ok=false.
func (s *IndexStore) ParentOf(p Passage) (Passage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || p.ParentID == "" {
		return Passage{}, false
	}
	parent, ok := s.snapshot.Parents[p.ParentID]
	return parent, ok
}

// acquireFileLock creates an exclusive lock file, retrying briefly when
// another writer holds it. The returned func releases the lock.
func acquireFileLock(path string) (func(), error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire lock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquire lock %s: held by another writer", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
