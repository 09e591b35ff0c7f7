package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Request is a single generation call
type Request struct {
	Model       string
	System      string
	Contents    []Content
	Temperature float32
}

// Generator performs one call to a generation endpoint. Errors are returned
// verbatim so the caller can classify rate limiting.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder turns texts into vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiGenerator calls Google's Gemini API
type GeminiGenerator struct {
	client         *genai.Client
	embeddingModel string
}

// NewGeminiGenerator creates a client bound to apiKey
func NewGeminiGenerator(ctx context.Context, apiKey, embeddingModel string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}
	return &GeminiGenerator{client: client, embeddingModel: embeddingModel}, nil
}

func toGenAI(contents []Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		parts := make([]*genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			if p.Data != nil {
				parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
				continue
			}
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
		role := genai.RoleUser
		if c.Role == "model" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return out
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	temperature := req.Temperature
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toGenAI(req.Contents), config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Embed generates one embedding per text in a single batch call
func (g *GeminiGenerator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := g.client.Models.EmbedContent(ctx,
		g.embeddingModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI batch embed failed: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}
