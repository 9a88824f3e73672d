package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"loreforge/internal/obslog"
)

// maxGenaiBatch mirrors the Gemini embedding API's per-request item limit;
// larger batches are chunked and concatenated.
const maxGenaiBatch = 100

func int32Ptr(i int32) *int32 { return &i }

// GenaiBackend serves the local-model mode through Google's Gemini
// embedding API. It is "local" in the sense used by this provider: a
// library-backed client the process owns outright, as opposed to an
// operator-controlled HTTP endpoint.
type GenaiBackend struct {
	client *genai.Client
	model  string
}

// NewGenaiBackend creates a client against the Gemini embedding model.
// model defaults to "gemini-embedding-001" when empty.
func NewGenaiBackend(ctx context.Context, apiKey, model string) (*GenaiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: genai API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("embedding: create genai client: %w", err)
	}

	return &GenaiBackend{client: client, model: model}, nil
}

// HealthCheck embeds a one-word probe text; any successful response proves
// the backend is reachable and authorized.
func (b *GenaiBackend) HealthCheck(ctx context.Context) error {
	_, err := b.embedChunk(ctx, []string{"ping"})
	return err
}

// Embed embeds texts, chunking into batches of at most maxGenaiBatch.
func (b *GenaiBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= maxGenaiBatch {
		return b.embedChunk(ctx, texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxGenaiBatch {
		end := start + maxGenaiBatch
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := b.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding: genai batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (b *GenaiBackend) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := b.client.Models.EmbedContent(ctx, b.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: int32Ptr(3072),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: genai embed content: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		obslog.EmbeddingWarn("genai returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
