package providers

import (
	"context"
	"fmt"

	"multiverse-copilot-backend/internal/config"

	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiEmbeddings is the production EmbeddingProvider backed by the
// Google text-embedding models.
type GeminiEmbeddings struct {
	client  *genai.Client
	modelID string
}

func NewGeminiEmbeddings(cfg *config.Config) (*GeminiEmbeddings, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbeddings{client: client, modelID: cfg.GoogleEmbeddingsModel}, nil
}

func (ge *GeminiEmbeddings) Close() error {
	return ge.client.Close()
}

func (ge *GeminiEmbeddings) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	model := ge.client.EmbeddingModel(ge.modelID)
	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch embedding call failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: sent %d, got %d", len(texts), len(resp.Embeddings))
	}
	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("embedding response missing vector at position %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (ge *GeminiEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	model := ge.client.EmbeddingModel(ge.modelID)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding response missing vector")
	}
	return resp.Embedding.Values, nil
}
