package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const analysisTemperature = 0.4

// GeminiGenerator is the Generator backed by the Gemini API in JSON mode.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, analysisConfig())
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return result.Text(), nil
}

func analysisConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](analysisTemperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"tldr":    {Type: genai.TypeString},
			"summary": {Type: genai.TypeString},
			"timestamps": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"seconds":     {Type: genai.TypeInteger},
						"description": {Type: genai.TypeString},
					},
					Required: []string{"seconds", "description"},
				},
			},
		},
		Required: []string{"tldr", "summary", "timestamps"},
	}
}
