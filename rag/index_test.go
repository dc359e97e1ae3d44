package rag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *IndexStore {
	t.Helper()
	splitter := NewPassageSplitter(SplitterConfig{
		ParentChunkSize: 100,
		ChildChunkSize:  40,
		MinChunkSize:    1,
	}, EstimateTokenizer{}, nil)
	return NewIndexStore(filepath.Join(t.TempDir(), "index.gob"), splitter, wordEmbedder{}, nil)
}

func TestIndexBuildAndSearch(t *testing.T) {
	index := testIndex(t)
	docs := []Document{
		{Content: "Contact Details:\nContact: phone 555-1234.", SourcePath: "contact.txt"},
		{Content: "Hostel:\nThe hostel has four hundred beds.", SourcePath: "hostel.txt"},
	}
	require.NoError(t, index.Build(context.Background(), docs))
	assert.Greater(t, index.Len(), 0)

	vec, err := wordEmbedder{}.Embed(context.Background(), "what is the contact phone number")
	require.NoError(t, err)

	results, err := index.Search(context.Background(), vec, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Passage.Content, "555-1234")
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	index := testIndex(t)
	docs := []Document{{Content: "Library:\nThe library opens at eight.", SourcePath: "lib.txt"}}
	require.NoError(t, index.Build(context.Background(), docs))

	reloaded := NewIndexStore(index.blobPath, index.splitter, wordEmbedder{}, nil)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, index.Len(), reloaded.Len())
	assert.Equal(t, index.BuiltAt(), reloaded.BuiltAt())
}

func TestIndexLoadMissing(t *testing.T) {
	index := NewIndexStore(filepath.Join(t.TempDir(), "missing.gob"), nil, nil, nil)
	assert.ErrorIs(t, index.Load(), ErrIndexNotFound)
}

func TestIndexNeedsRebuild(t *testing.T) {
	index := testIndex(t)
	assert.True(t, index.NeedsRebuild(0), "empty index always rebuilds")

	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Fees:\nTuition is due in July.", SourcePath: "fees.txt"},
	}))

	assert.False(t, index.NeedsRebuild(index.BuiltAt()-10), "older sources do not rebuild")
	assert.True(t, index.NeedsRebuild(index.BuiltAt()+10), "newer sources force rebuild")
}

func TestIndexBuildFailureLeavesNoBlob(t *testing.T) {
	splitter := NewPassageSplitter(SplitterConfig{
		ParentChunkSize: 100,
		ChildChunkSize:  40,
		MinChunkSize:    1,
	}, EstimateTokenizer{}, nil)
	blobPath := filepath.Join(t.TempDir(), "index.gob")
	index := NewIndexStore(blobPath, splitter, failingEmbedder{}, nil)

	err := index.Build(context.Background(), []Document{
		{Content: "Sports:\nThe ground hosts cricket and football.", SourcePath: "sports.txt"},
	})
	require.Error(t, err)

	assert.ErrorIs(t, NewIndexStore(blobPath, nil, nil, nil).Load(), ErrIndexNotFound)
}

func TestSearchStableTies(t *testing.T) {
	index := testIndex(t)
	// Identical passages embed identically; insertion order must survive.
	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Notices:\nexam schedule posted", SourcePath: "a.txt"},
		{Content: "Notices:\nexam schedule posted", SourcePath: "b.txt"},
	}))

	vec, err := wordEmbedder{}.Embed(context.Background(), "exam schedule")
	require.NoError(t, err)

	first, err := index.Search(context.Background(), vec, 10)
	require.NoError(t, err)
	second, err := index.Search(context.Background(), vec, 10)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Passage.ID, second[i].Passage.ID)
	}
	assert.Equal(t, "a.txt", first[0].Passage.SourcePath, "equal scores keep insertion order")
}

func TestParentOf(t *testing.T) {
	index := testIndex(t)
	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Departments:\nComputer engineering and information technology.", SourcePath: "dept.txt"},
	}))

	vec, err := wordEmbedder{}.Embed(context.Background(), "computer engineering")
	require.NoError(t, err)
	results, err := index.Search(context.Background(), vec, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	parent, ok := index.ParentOf(results[0].Passage)
	require.True(t, ok)
	assert.Contains(t, parent.Content, "Computer engineering")

	_, ok = index.ParentOf(Passage{ParentID: "nope"})
	assert.False(t, ok)
}

func TestSearchMMRPureRelevanceMatchesSimilarity(t *testing.T) {
	index := testIndex(t)
	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Admissions:\nApplications open in June.", SourcePath: "a.txt"},
		{Content: "Hostel:\nFour hundred beds across two buildings.", SourcePath: "b.txt"},
		{Content: "Library:\nOpen until ten every night.", SourcePath: "c.txt"},
	}))

	vec, err := wordEmbedder{}.Embed(context.Background(), "when do applications open")
	require.NoError(t, err)

	plain, err := index.Search(context.Background(), vec, 2)
	require.NoError(t, err)
	mmr, err := index.SearchMMR(context.Background(), vec, 2, 10, 1.0)
	require.NoError(t, err)

	require.Equal(t, len(plain), len(mmr))
	for i := range plain {
		assert.Equal(t, plain[i].Passage.ID, mmr[i].Passage.ID)
	}
}

func TestSearchMMRDiversityAvoidsDuplicates(t *testing.T) {
	index := testIndex(t)
	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Notices:\nexam timetable released today", SourcePath: "a.txt"},
		{Content: "Notices:\nexam timetable released today", SourcePath: "b.txt"},
		{Content: "Hostel:\nexam season hostel rules apply", SourcePath: "c.txt"},
	}))

	vec, err := wordEmbedder{}.Embed(context.Background(), "exam timetable")
	require.NoError(t, err)

	mmr, err := index.SearchMMR(context.Background(), vec, 2, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, mmr, 2)
	assert.NotEqual(t, mmr[0].Passage.Content, mmr[1].Passage.Content,
		"low lambda picks the diverse passage over the duplicate")
}

func TestSearchEmptyIndex(t *testing.T) {
	index := testIndex(t)
	results, err := index.Search(context.Background(), []float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
