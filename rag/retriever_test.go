package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetriever(t *testing.T, expander *stubExpander) (*Retriever, *IndexStore) {
	t.Helper()
	index := testIndex(t)
	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Contact Details:\nContact: phone 555-1234.", SourcePath: "contact.txt"},
		{Content: "Hostel:\nThe hostel has four hundred beds.", SourcePath: "hostel.txt"},
		{Content: "Library:\nThe library opens at eight in the morning.", SourcePath: "library.txt"},
	}))

	cfg := RetrieverConfig{TopK: 5, FetchK: 10, MMRLambda: 0.7, MinScore: 0.01}
	if expander == nil {
		return NewRetriever(cfg, index, wordEmbedder{}, nil, nil), index
	}
	return NewRetriever(cfg, index, wordEmbedder{}, expander, nil), index
}

func TestSelectStrategy(t *testing.T) {
	r, _ := testRetriever(t, nil)

	tests := []struct {
		question string
		want     Strategy
	}{
		{"list all department heads", StrategyParentDocument},
		{"who are the wardens", StrategyParentDocument},
		{"what are the fees and the hostel timings", StrategyMultiQuery},
		{"tell me about the library", StrategyMMR},
		{"what is the contact number", StrategySimilarity},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, r.SelectStrategy(tt.question))
		})
	}
}

func TestRetrieveSimilarity(t *testing.T) {
	r, _ := testRetriever(t, nil)

	results, err := r.Retrieve(context.Background(), "what is the contact phone number", StrategySimilarity)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Passage.Content, "555-1234")
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	index := testIndex(t)
	r := NewRetriever(RetrieverConfig{TopK: 5, MinScore: 0.01}, index, wordEmbedder{}, nil, nil)

	results, err := r.Retrieve(context.Background(), "anything", StrategySimilarity)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveMultiQueryDedup(t *testing.T) {
	exp := &stubExpander{expansions: []string{
		"contact phone number",
		"telephone number of the college",
	}}
	r, _ := testRetriever(t, exp)

	results, err := r.Retrieve(context.Background(), "how do I phone the contact office", StrategyMultiQuery)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	seen := make(map[string]bool)
	for _, res := range results {
		assert.False(t, seen[res.Passage.ID], "no duplicate passages after union")
		seen[res.Passage.ID] = true
	}
}

func TestRetrieveMultiQueryDegradesOnExpansionFailure(t *testing.T) {
	r, _ := testRetriever(t, &stubExpander{fail: true})

	results, err := r.Retrieve(context.Background(), "what is the contact phone number", StrategyMultiQuery)
	require.NoError(t, err, "expansion failure degrades to the original question")
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Passage.Content, "555-1234")
}

func TestRetrieveParentDocumentDedups(t *testing.T) {
	r, index := testRetriever(t, nil)

	results, err := r.Retrieve(context.Background(), "hostel beds hostel buildings", StrategyParentDocument)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	seen := make(map[string]bool)
	for _, res := range results {
		assert.False(t, seen[res.Passage.ID], "parents deduplicated")
		seen[res.Passage.ID] = true
		// Parent passages are not themselves children of anything.
		_, ok := index.ParentOf(res.Passage)
		assert.False(t, ok)
	}
}

func TestMinScoreFilters(t *testing.T) {
	index := testIndex(t)
	require.NoError(t, index.Build(context.Background(), []Document{
		{Content: "Sports:\ncricket ground and football field", SourcePath: "sports.txt"},
	}))
	r := NewRetriever(RetrieverConfig{TopK: 5, MinScore: 0.99}, index, wordEmbedder{}, nil, nil)

	results, err := r.Retrieve(context.Background(), "completely unrelated query text", StrategySimilarity)
	require.NoError(t, err)
	assert.Empty(t, results, "weak hits fall below the threshold")
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	index := testIndex(t)
	r := NewRetriever(DefaultRetrieverConfig(), index, failingEmbedder{}, nil, nil)

	_, err := r.Retrieve(context.Background(), "anything", StrategySimilarity)
	assert.Error(t, err)
}
