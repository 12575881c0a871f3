package serp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey string
	Model  string
	// HTTPClient overrides the client used for API calls.
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// NewGeminiClient creates a Gemini API client shared by the search provider
// and the enricher.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*genai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("serp: gemini: missing api key")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("serp: gemini client: %w", err)
	}
	return client, nil
}

// Gemini searches through the Gemini API with Google Search grounding and
// returns the grounding sources as result links.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Provider = (*Gemini)(nil)

// NewGemini returns a provider backed by client. An empty model selects DefaultGeminiModel.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model}
}

func (g *Gemini) Name() string { return "gemini" }

// Search issues one grounded generation call for query.
func (g *Gemini) Search(ctx context.Context, query string) ([]RawItem, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text("QParser Query: "+query), config)
	if err != nil {
		return nil, fmt.Errorf("serp: gemini search: %w", err)
	}

	var items []RawItem
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return items, nil
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		items = append(items, RawItem{URL: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return items, nil
}
