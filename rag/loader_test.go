package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSortedDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "hostel info")
	writeFile(t, dir, "a.md", "admission info")
	writeFile(t, dir, "ignored.pdf", "binary stuff")

	loader := NewDirectoryLoader(dir, nil)
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].SourcePath, "a.md")
	assert.Contains(t, docs[1].SourcePath, "b.txt")
	assert.Equal(t, "admission info", docs[0].Content)
}

func TestLoadSeedsPlaceholder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	loader := NewDirectoryLoader(dir, nil)
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].SourcePath, "college_overview.txt")
	assert.Contains(t, docs[0].Content, "About the Institute")
}

func TestEnsureDataKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.txt", "real content")

	loader := NewDirectoryLoader(dir, nil)
	require.NoError(t, loader.EnsureData())

	_, err := os.Stat(filepath.Join(dir, "college_overview.txt"))
	assert.True(t, os.IsNotExist(err), "no placeholder next to real data")
}

func TestNewestModTime(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "old.txt", "old")
	newer := writeFile(t, dir, "new.txt", "new")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	now := time.Now()
	require.NoError(t, os.Chtimes(newer, now, now))

	loader := NewDirectoryLoader(dir, nil)
	newest, err := loader.NewestModTime()
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), newest)
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"smart quotes", "it’s “fine”", `it's "fine"`},
		{"cp1252 punctuation", "caf\x92s \x96 open", "caf's - open"},
		{"dashes", "9am – 5pm — daily", "9am - 5pm - daily"},
		{"preserves structure", "line1\nline2\ttab", "line1\nline2\ttab"},
		{"strips control bytes", "ok\x00\x07ok", "okok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanContent(tt.in))
		})
	}
}
