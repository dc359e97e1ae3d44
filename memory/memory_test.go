package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recordingStore captures the last persisted snapshot.
type recordingStore struct {
	saves int
	last  Snapshot
	fail  bool
}

func (s *recordingStore) Save(_ context.Context, snap Snapshot) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.saves++
	s.last = snap
	return nil
}

func (s *recordingStore) Load(context.Context) (Snapshot, error) {
	return s.last, nil
}

func TestAppendAndRecent(t *testing.T) {
	table := NewTable(TableConfig{MaxTurns: 20}, nil, nil)
	ctx := context.Background()

	table.Append(ctx, 1, 10, Turn{Question: "q1", Answer: "a1"})
	table.Append(ctx, 1, 10, Turn{Question: "q2", Answer: "a2"})
	table.Append(ctx, 1, 10, Turn{Question: "q3", Answer: "a3"})

	recent := table.Recent(1, 10, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].Question, "chronological, most recent last")
	assert.Equal(t, "q3", recent[1].Question)
}

func TestFIFOEviction(t *testing.T) {
	table := NewTable(TableConfig{MaxTurns: 3}, nil, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		table.Append(ctx, 1, 10, Turn{Question: fmt.Sprintf("q%d", i)})
	}

	recent := table.Recent(1, 10, 100)
	require.Len(t, recent, 3)
	assert.Equal(t, "q3", recent[0].Question, "oldest evicted first")
	assert.Equal(t, "q5", recent[2].Question)
}

func TestClearIsolation(t *testing.T) {
	table := NewTable(DefaultTableConfig(), nil, nil)
	ctx := context.Background()

	table.Append(ctx, 1, 10, Turn{Question: "s10"})
	table.Append(ctx, 1, 11, Turn{Question: "s11"})
	table.Append(ctx, 2, 10, Turn{Question: "other user"})

	table.Clear(ctx, 1, 10)

	assert.Empty(t, table.Recent(1, 10, 100))
	assert.Len(t, table.Recent(1, 11, 100), 1, "other sessions of the same user survive")
	assert.Len(t, table.Recent(2, 10, 100), 1, "other users survive")
}

func TestClearAll(t *testing.T) {
	table := NewTable(DefaultTableConfig(), nil, nil)
	ctx := context.Background()

	table.Append(ctx, 1, 10, Turn{Question: "a"})
	table.Append(ctx, 1, 11, Turn{Question: "b"})
	table.Append(ctx, 2, 10, Turn{Question: "c"})

	table.ClearAll(ctx, 1)

	assert.Empty(t, table.Recent(1, 10, 100))
	assert.Empty(t, table.Recent(1, 11, 100))
	assert.Len(t, table.Recent(2, 10, 100), 1)
}

func TestEveryMutationPersists(t *testing.T) {
	store := &recordingStore{}
	table := NewTable(DefaultTableConfig(), store, nil)
	ctx := context.Background()

	table.Append(ctx, 1, 10, Turn{Question: "q", Answer: "a"})
	assert.Equal(t, 1, store.saves)
	require.Len(t, store.last[1][10], 1)

	table.Clear(ctx, 1, 10)
	assert.Equal(t, 2, store.saves)
	assert.Empty(t, store.last[1])
}

func TestPersistFailureIsNonFatal(t *testing.T) {
	table := NewTable(DefaultTableConfig(), &recordingStore{fail: true}, nil)
	ctx := context.Background()

	table.Append(ctx, 1, 10, Turn{Question: "q", Answer: "a"})
	assert.Len(t, table.Recent(1, 10, 100), 1, "in-memory table stays authoritative")
}

func TestRestore(t *testing.T) {
	store := &recordingStore{last: Snapshot{
		1: {10: []Turn{{Question: "restored", Answer: "yes"}}},
	}}
	table := NewTable(DefaultTableConfig(), store, nil)
	require.NoError(t, table.Restore(context.Background()))

	recent := table.Recent(1, 10, 100)
	require.Len(t, recent, 1)
	assert.Equal(t, "restored", recent[0].Question)
}

func TestPersistedSnapshotIsDeepCopy(t *testing.T) {
	store := &recordingStore{}
	table := NewTable(DefaultTableConfig(), store, nil)
	ctx := context.Background()

	table.Append(ctx, 1, 10, Turn{Question: "q1"})
	first := store.last
	table.Append(ctx, 1, 10, Turn{Question: "q2"})

	require.Len(t, first[1][10], 1, "earlier snapshot unaffected by later appends")
}

// Recent always returns at most limit turns, in order, equal to the suffix
// of everything appended to that session.
func TestRecentIsBoundedOrderedSuffix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxTurns := rapid.IntRange(1, 10).Draw(t, "maxTurns")
		table := NewTable(TableConfig{MaxTurns: maxTurns}, nil, nil)
		ctx := context.Background()

		count := rapid.IntRange(0, 30).Draw(t, "count")
		var appended []Turn
		for i := 0; i < count; i++ {
			turn := Turn{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)}
			appended = append(appended, turn)
			table.Append(ctx, 7, 42, turn)
		}

		limit := rapid.IntRange(0, 40).Draw(t, "limit")
		recent := table.Recent(7, 42, limit)

		if len(recent) > limit {
			t.Fatalf("recent returned %d turns, limit %d", len(recent), limit)
		}
		if len(recent) > maxTurns {
			t.Fatalf("recent returned %d turns, cap %d", len(recent), maxTurns)
		}
		// recent must be a suffix of the appended sequence.
		offset := len(appended) - len(recent)
		for i, turn := range recent {
			if turn != appended[offset+i] {
				t.Fatalf("turn %d: got %+v, want %+v", i, turn, appended[offset+i])
			}
		}
	})
}
