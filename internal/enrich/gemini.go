package enrich

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini asks the model to analyze the technology behind a set of URLs.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Enricher = (*Gemini)(nil)

// NewGemini returns an enricher backed by client.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	return &Gemini{client: client, model: model}
}

func (g *Gemini) Enrich(ctx context.Context, query string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("enrich: gemini: no urls")
	}
	prompt := "Analyze tech stack from URLs: " + strings.Join(uris, "\n")

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("enrich: gemini: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
