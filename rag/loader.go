package rag

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// loadableExtensions are the file types the directory loader reads.
var loadableExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// DirectoryLoader reads every text file under a data directory into
// normalized Document records. Files that cannot be decoded cleanly are
// repaired rather than skipped: exported college data frequently arrives
// with Windows-1252 punctuation embedded in otherwise valid UTF-8.
type DirectoryLoader struct {
	dataDir string
	logger  *zap.Logger
}

// NewDirectoryLoader creates a loader rooted at dataDir.
func NewDirectoryLoader(dataDir string, logger *zap.Logger) *DirectoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryLoader{
		dataDir: dataDir,
		logger:  logger.With(zap.String("component", "directory_loader")),
	}
}

// Load walks the data directory and returns one Document per readable text
// file, sorted by path so repeated loads produce identical document order.
// If the directory does not exist it is created and seeded with a
// placeholder document so the pipeline never operates on an empty index.
func (l *DirectoryLoader) Load(ctx context.Context) ([]Document, error) {
	if err := l.EnsureData(); err != nil {
		return nil, err
	}

	var docs []Document
	err := filepath.WalkDir(l.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !loadableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			l.logger.Error("failed to read source file",
				zap.String("path", path),
				zap.Error(readErr))
			return nil
		}

		docs = append(docs, Document{
			Content:    cleanContent(string(data)),
			SourcePath: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].SourcePath < docs[j].SourcePath
	})

	l.logger.Info("documents loaded",
		zap.Int("count", len(docs)),
		zap.String("data_dir", l.dataDir))

	return docs, nil
}

// NewestModTime returns the most recent modification time among all
// loadable files under the data directory. Used by the index rebuild
// policy: any source file newer than the index build time forces a full
// rebuild.
func (l *DirectoryLoader) NewestModTime() (newest int64, err error) {
	err = filepath.WalkDir(l.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !loadableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if mt := info.ModTime().Unix(); mt > newest {
			newest = mt
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan data dir: %w", err)
	}
	return newest, nil
}

// EnsureData creates the data directory and a placeholder document when
// neither exists yet.
func (l *DirectoryLoader) EnsureData() error {
	if err := os.MkdirAll(l.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	entries, err := os.ReadDir(l.dataDir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && loadableExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			return nil
		}
	}

	placeholder := filepath.Join(l.dataDir, "college_overview.txt")
	if err := os.WriteFile(placeholder, []byte(placeholderDocument), 0o644); err != nil {
		return fmt.Errorf("write placeholder document: %w", err)
	}

	l.logger.Info("seeded placeholder document", zap.String("path", placeholder))
	return nil
}

// placeholderDocument keeps the index non-empty before real data is
// dropped into the data directory.
const placeholderDocument = `About the Institute:
This directory holds the reference documents the assistant answers from.
Replace this file with the institution's own documents (.txt or .md).

Contact Information:
No contact details have been configured yet. Administrators should add the
official phone number, email address and campus address here.
`

// cleanContent normalizes problem characters that commonly survive
// copy-paste from Word documents, then strips remaining non-printables.
func cleanContent(content string) string {
	replacements := []struct{ old, new string }{
		{"\x91", "'"},
		{"\x92", "'"},
		{"\x93", `"`},
		{"\x94", `"`},
		{"\x96", "-"},
		{"\x97", "-"},
		{"\x9d", "'"},
		{"‘", "'"},
		{"’", "'"},
		{"“", `"`},
		{"”", `"`},
		{"–", "-"},
		{"—", "-"},
	}
	for _, r := range replacements {
		content = strings.ReplaceAll(content, r.old, r.new)
	}

	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if r == '\n' || r == '\r' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
