package kb

import (
	"context"
	"fmt"

	"multiverse-copilot-backend/internal/config"
	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/internal/providers"
	"multiverse-copilot-backend/models"
)

// Service ties document ingestion and retrieval together: extraction,
// chunking, embedding and the vector store.
type Service struct {
	store        *Store
	embedder     providers.EmbeddingProvider
	chunkSize    int
	chunkOverlap int
	contextLimit int
}

func NewService(cfg *config.Config, store *Store, embedder providers.EmbeddingProvider) *Service {
	return &Service{
		store:        store,
		embedder:     embedder,
		chunkSize:    cfg.KBChunkSize,
		chunkOverlap: cfg.KBChunkOverlap,
		contextLimit: cfg.KBContextLimit,
	}
}

// UploadDocument extracts text from the file, chunks it, embeds every chunk
// and persists the result under a fresh doc id
func (s *Service) UploadDocument(ctx context.Context, filename string, data []byte) (string, int, error) {
	text, err := ExtractText(filename, data)
	if err != nil {
		return "", 0, err
	}

	chunks := Chunk(text, s.chunkSize, s.chunkOverlap)

	var embeddings [][]float32
	if len(chunks) > 0 {
		embeddings, err = s.embedder.EmbedTexts(ctx, chunks)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
	}

	docID, count, err := s.store.AddChunks(ctx, filename, chunks, embeddings)
	if err != nil {
		return "", 0, err
	}
	logger.Info("document ingested", "doc_id", docID, "source", filename, "chunks", count)
	return docID, count, nil
}

// Query embeds the query text and returns the topK nearest chunks
func (s *Service) Query(ctx context.Context, query string, topK int) ([]models.KBMatch, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return s.store.Search(ctx, vec, topK)
}

// ContextForDocs returns chunk texts for the given documents, capped at the
// configured context limit
func (s *Service) ContextForDocs(ctx context.Context, docIDs []string) ([]string, error) {
	return s.store.FetchContextByDocIDs(ctx, docIDs, s.contextLimit)
}
