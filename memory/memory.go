// Package memory holds short-term conversational memory scoped to a
// (user, session) pair, persisted through a pluggable Store so a process
// restart does not lose context.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Turn is one question/answer exchange. Append-only, ordered by
// occurrence.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Snapshot is the full memory table keyed by user then session. It is the
// unit of persistence: every mutation writes the whole table.
type Snapshot map[int64]map[int64][]Turn

// Store persists the memory table. Implementations must replace the stored
// snapshot wholesale.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// TableConfig bounds the in-memory table.
type TableConfig struct {
	MaxTurns int `json:"max_turns" yaml:"max_turns"` // per-session cap, oldest evicted first
}

// DefaultTableConfig caps each session at 20 turns.
func DefaultTableConfig() TableConfig {
	return TableConfig{MaxTurns: 20}
}

// Table is the live session memory. Mutations persist synchronously
// through the Store before returning; a persistence failure is logged and
// non-fatal because the in-memory table stays authoritative for the rest
// of the process lifetime.
type Table struct {
	mu       sync.Mutex
	sessions Snapshot

	config TableConfig
	store  Store
	logger *zap.Logger
}

// NewTable creates a memory table backed by store. store may be nil for a
// purely in-memory table (tests).
func NewTable(config TableConfig, store Store, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultTableConfig().MaxTurns
	}
	return &Table{
		sessions: make(Snapshot),
		config:   config,
		store:    store,
		logger:   logger.With(zap.String("component", "session_memory")),
	}
}

// Restore loads the persisted table into memory, replacing the current
// contents. Called once at startup; a missing snapshot is not an error.
func (t *Table) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	snap, err := t.store.Load(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		snap = make(Snapshot)
	}

	t.mu.Lock()
	t.sessions = snap
	t.mu.Unlock()

	t.logger.Info("session memory restored", zap.Int("users", len(snap)))
	return nil
}

// Append records a turn for the session, evicting the oldest turn once the
// cap is reached, and persists the table.
func (t *Table) Append(ctx context.Context, userID, sessionID int64, turn Turn) {
	t.mu.Lock()
	if t.sessions[userID] == nil {
		t.sessions[userID] = make(map[int64][]Turn)
	}
	turns := append(t.sessions[userID][sessionID], turn)
	if len(turns) > t.config.MaxTurns {
		turns = turns[len(turns)-t.config.MaxTurns:]
	}
	t.sessions[userID][sessionID] = turns
	t.persistLocked(ctx)
	t.mu.Unlock()
}

// Recent returns up to limit turns for the session in chronological order,
// most recent last. The result is always a suffix of the appended turns.
func (t *Table) Recent(userID, sessionID int64, limit int) []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	turns := t.sessions[userID][sessionID]
	if limit >= 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear forgets one session and persists the table. Other sessions of the
// same user are untouched.
func (t *Table) Clear(ctx context.Context, userID, sessionID int64) {
	t.mu.Lock()
	if user := t.sessions[userID]; user != nil {
		delete(user, sessionID)
		if len(user) == 0 {
			delete(t.sessions, userID)
		}
		t.persistLocked(ctx)
	}
	t.mu.Unlock()
}

// ClearAll forgets every session of a user and persists the table.
func (t *Table) ClearAll(ctx context.Context, userID int64) {
	t.mu.Lock()
	if _, ok := t.sessions[userID]; ok {
		delete(t.sessions, userID)
		t.persistLocked(ctx)
	}
	t.mu.Unlock()
}

// persistLocked writes the whole table through the store. Caller holds the
// mutex; the snapshot is deep-copied so the store never sees later
// mutations.
func (t *Table) persistLocked(ctx context.Context) {
	if t.store == nil {
		return
	}
	snap := make(Snapshot, len(t.sessions))
	for uid, sessions := range t.sessions {
		userCopy := make(map[int64][]Turn, len(sessions))
		for sid, turns := range sessions {
			turnsCopy := make([]Turn, len(turns))
			copy(turnsCopy, turns)
			userCopy[sid] = turnsCopy
		}
		snap[uid] = userCopy
	}

	if err := t.store.Save(ctx, snap); err != nil {
		t.logger.Error("failed to persist session memory", zap.Error(err))
	}
}
