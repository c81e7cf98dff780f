package inference

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const providerGemini = "gemini"

// contentGenerator is the slice of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini sends the prompt to the Gemini API, passing the hosted image as a URI part.
type Gemini struct {
	models contentGenerator
	model  string
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{models: client.Models, model: cfg.Model}, nil
}

func (g *Gemini) Provider() string { return providerGemini }

// Complete converts the prompt into genai contents and returns the text of
// the first candidate.
func (g *Gemini) Complete(ctx context.Context, p Prompt) (string, error) {
	contents := make([]*genai.Content, 0, len(p.Messages))
	for _, m := range p.Messages {
		contents = append(contents, genai.NewContentFromParts(toGenaiParts(m.Content, p.ImageMIMEType), genai.Role(m.Role)))
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.MaxTokens),
	})
	if err != nil {
		return "", normalizeGeminiError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ProviderError{Provider: providerGemini, Code: "no_choices", Message: ErrNoChoices.Error(), Err: ErrNoChoices}
	}
	return resp.Text(), nil
}

func toGenaiParts(parts []ContentPart, mimeType string) []*genai.Part {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	out := make([]*genai.Part, 0, len(parts))
	for _, cp := range parts {
		switch cp.Type {
		case PartText:
			out = append(out, genai.NewPartFromText(cp.Text))
		case PartImageURL:
			if cp.ImageURL != nil {
				out = append(out, genai.NewPartFromURI(cp.ImageURL.URL, mimeType))
			}
		}
	}
	return out
}

func normalizeGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: providerGemini, Status: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ProviderError{Provider: providerGemini, Status: apiErrPtr.Code, Code: apiErrPtr.Status, Message: apiErrPtr.Message, Err: err}
	}
	return newNetworkError(providerGemini, err)
}

var _ Client = (*Gemini)(nil)
