// Package rag implements the retrieval side of the assistant: loading and
// chunking source documents, building and persisting the vector index,
// multi-strategy retrieval, cross-encoder re-ranking, context refinement
// and the external fallback search.
package rag
