package rag

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SplitterConfig configures the two-tier passage splitter.
type SplitterConfig struct {
	ParentChunkSize int `json:"parent_chunk_size" yaml:"parent_chunk_size"` // tokens per parent passage
	ChildChunkSize  int `json:"child_chunk_size" yaml:"child_chunk_size"`   // tokens per child passage
	ChildOverlap    int `json:"child_overlap" yaml:"child_overlap"`         // token overlap between children
	MinChunkSize    int `json:"min_chunk_size" yaml:"min_chunk_size"`       // drop fragments below this
}

// DefaultSplitterConfig returns production defaults: coarse parents for
// context delivery, fine children for index precision.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ParentChunkSize: 800,
		ChildChunkSize:  250,
		ChildOverlap:    50,
		MinChunkSize:    10,
	}
}

// PassageSplitter splits documents into overlapping child passages for
// indexing and coarse parent passages for context delivery. Parents
// partition each document without overlap, splitting at section headers
// when present; every child carries the ID of exactly one parent.
type PassageSplitter struct {
	config    SplitterConfig
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewPassageSplitter creates a splitter.
func NewPassageSplitter(config SplitterConfig, tokenizer Tokenizer, logger *zap.Logger) *PassageSplitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassageSplitter{
		config:    config,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "passage_splitter")),
	}
}

// Split chunks every document and returns the parent and child tiers.
func (s *PassageSplitter) Split(docs []Document) (parents, children []Passage) {
	for _, doc := range docs {
		p, c := s.splitDocument(doc)
		parents = append(parents, p...)
		children = append(children, c...)
	}

	s.logger.Info("documents split",
		zap.Int("documents", len(docs)),
		zap.Int("parents", len(parents)),
		zap.Int("children", len(children)))

	return parents, children
}

func (s *PassageSplitter) splitDocument(doc Document) (parents, children []Passage) {
	for _, section := range s.splitParents(doc.Content) {
		parent := Passage{
			ID:         uuid.New().String(),
			Content:    section,
			SourcePath: doc.SourcePath,
		}
		parents = append(parents, parent)

		for _, piece := range s.splitChildren(section) {
			children = append(children, Passage{
				ID:         uuid.New().String(),
				Content:    piece,
				ParentID:   parent.ID,
				SourcePath: doc.SourcePath,
			})
		}
	}
	return parents, children
}

// splitParents partitions content into non-overlapping parent sections.
// Section headers are preferred split points; consecutive sections are
// merged until the parent token budget is reached.
func (s *PassageSplitter) splitParents(content string) []string {
	sections := splitAtHeaders(content)

	var parents []string
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" && s.tokenizer.CountTokens(text) >= s.config.MinChunkSize {
			parents = append(parents, text)
		} else if text != "" && len(parents) > 0 {
			// Tiny trailing fragment: fold into the previous parent so the
			// document stays fully partitioned.
			parents[len(parents)-1] += "\n\n" + text
		} else if text != "" {
			parents = append(parents, text)
		}
		current.Reset()
	}

	for _, section := range sections {
		if s.tokenizer.CountTokens(section) > s.config.ParentChunkSize {
			flush()
			// Oversized section: hard-split on paragraphs.
			for _, part := range s.packParagraphs(section, s.config.ParentChunkSize) {
				parents = append(parents, part)
			}
			continue
		}

		merged := current.String()
		if merged != "" {
			merged += "\n\n"
		}
		merged += section
		if s.tokenizer.CountTokens(merged) > s.config.ParentChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(section)
	}
	flush()

	return parents
}

// splitChildren splits a parent section into overlapping child passages on
// paragraph, then sentence, then word boundaries.
func (s *PassageSplitter) splitChildren(section string) []string {
	pieces := s.packParagraphs(section, s.config.ChildChunkSize)
	if s.config.ChildOverlap <= 0 || len(pieces) <= 1 {
		return pieces
	}

	// Prefix each child with the tail of its predecessor.
	overlapChars := s.config.ChildOverlap * 4
	overlapped := make([]string, len(pieces))
	overlapped[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := pieces[i-1]
		start := len(prev) - overlapChars
		if start < 0 {
			start = 0
		}
		tail := prev[start:]
		if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx+1 < len(tail) {
			tail = tail[idx+1:] // cut mid-word lead-in
		}
		overlapped[i] = strings.TrimSpace(tail + " " + pieces[i])
	}
	return overlapped
}

// packParagraphs greedily packs text units into chunks of at most
// budget tokens, descending from paragraphs to sentences to words when a
// unit alone exceeds the budget.
func (s *PassageSplitter) packParagraphs(text string, budget int) []string {
	return s.pack(text, []string{"\n\n", "\n", ". ", "? ", "! ", " "}, budget)
}

func (s *PassageSplitter) pack(text string, separators []string, budget int) []string {
	if len(separators) == 0 || s.tokenizer.CountTokens(text) <= budget {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{strings.TrimSpace(text)}
	}

	sep := separators[0]
	parts := strings.Split(text, sep)

	var chunks []string
	var current strings.Builder

	flush := func() {
		t := strings.TrimSpace(current.String())
		if t != "" && s.tokenizer.CountTokens(t) >= s.config.MinChunkSize {
			chunks = append(chunks, t)
		} else if t != "" && len(chunks) > 0 {
			chunks[len(chunks)-1] += sep + t
		} else if t != "" {
			chunks = append(chunks, t)
		}
		current.Reset()
	}

	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}

		if s.tokenizer.CountTokens(part) > budget {
			flush()
			chunks = append(chunks, s.pack(part, separators[1:], budget)...)
			continue
		}

		if s.tokenizer.CountTokens(current.String()+part) > budget {
			flush()
		}
		current.WriteString(part)
	}
	flush()

	return chunks
}

// splitAtHeaders breaks content at section header boundaries: markdown
// headings and short "Title:" style lines that begin a paragraph.
func splitAtHeaders(content string) []string {
	paragraphs := strings.Split(content, "\n\n")

	var sections []string
	var current strings.Builder

	for _, para := range paragraphs {
		if isSectionHeader(para) && current.Len() > 0 {
			sections = append(sections, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if text := strings.TrimSpace(current.String()); text != "" {
		sections = append(sections, text)
	}
	return sections
}

// isSectionHeader reports whether a paragraph starts with a heading line.
func isSectionHeader(para string) bool {
	line, _, _ := strings.Cut(strings.TrimSpace(para), "\n")
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "#") {
		return true
	}
	// "Admissions:" / "Contact Information:" style headers.
	return strings.HasSuffix(line, ":") && len(strings.Fields(line)) <= 6
}
