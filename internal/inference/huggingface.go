package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Hugging Face router defaults.
const (
	DefaultHFBaseURL      = "https://router.huggingface.co"
	DefaultProviderPolicy = "fireworks-ai"
	chatCompletionsPath   = "/v1/chat/completions"
	providerHuggingFace   = "huggingface"
)

// HFConfig configures the Hugging Face chat completions client.
type HFConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// ProviderPolicy is appended to the model id as "model:policy" unless the
	// model already names one. Empty or "auto" leaves routing to the router.
	ProviderPolicy string
	HTTPClient     *http.Client
}

// HuggingFace calls the OpenAI-compatible chat completions endpoint of the
// Hugging Face inference router. Safe for concurrent use.
type HuggingFace struct {
	cfg HFConfig
}

// NewHuggingFace builds a client, filling BaseURL and HTTPClient defaults.
func NewHuggingFace(cfg HFConfig) (*HuggingFace, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("huggingface: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHFBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &HuggingFace{cfg: cfg}, nil
}

func (h *HuggingFace) Provider() string { return providerHuggingFace }

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// modelString applies the provider policy suffix.
func (h *HuggingFace) modelString() string {
	if strings.Contains(h.cfg.Model, ":") {
		return h.cfg.Model
	}
	if h.cfg.ProviderPolicy != "" && h.cfg.ProviderPolicy != "auto" {
		return h.cfg.Model + ":" + h.cfg.ProviderPolicy
	}
	return h.cfg.Model
}

// Complete sends a non-streaming chat completion and returns choices[0].
func (h *HuggingFace) Complete(ctx context.Context, p Prompt) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     h.modelString(),
		Messages:  p.Messages,
		MaxTokens: p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", newNetworkError(providerHuggingFace, err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", newNetworkError(providerHuggingFace, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newNetworkError(providerHuggingFace, err)
	}
	requestID := resp.Header.Get("x-request-id")
	if resp.StatusCode >= 400 {
		return "", normalizeHFError(resp.StatusCode, respBody, requestID)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", &ProviderError{
			Provider:  providerHuggingFace,
			Status:    resp.StatusCode,
			Code:      "decode_error",
			Message:   fmt.Sprintf("decode chat response: %v", err),
			RequestID: requestID,
			Err:       err,
		}
	}
	if len(cr.Choices) == 0 {
		return "", &ProviderError{
			Provider:  providerHuggingFace,
			Status:    resp.StatusCode,
			Code:      "no_choices",
			Message:   ErrNoChoices.Error(),
			RequestID: requestID,
			Err:       ErrNoChoices,
		}
	}
	return cr.Choices[0].Message.Content, nil
}

// hfErrorBody covers both shapes the router returns:
// {"error":"text"} and {"error":{"message":..,"type":..,"code":..}}.
type hfErrorBody struct {
	Error json.RawMessage `json:"error"`
}

type hfErrorObject struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

func normalizeHFError(status int, body []byte, requestID string) error {
	var message, code string
	var eb hfErrorBody
	if json.Unmarshal(body, &eb) == nil && len(eb.Error) > 0 {
		var s string
		var obj hfErrorObject
		switch {
		case json.Unmarshal(eb.Error, &s) == nil:
			message = s
		case json.Unmarshal(eb.Error, &obj) == nil:
			message = obj.Message
			code = obj.Type
			if len(obj.Code) > 0 && string(obj.Code) != "null" {
				code = strings.Trim(string(obj.Code), `"`)
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &ProviderError{
		Provider:  providerHuggingFace,
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}
}

var _ Client = (*HuggingFace)(nil)
