package inference

import "context"

// MaxTokens is the output cap sent with every completion request.
const MaxTokens = 500

// Content part types understood by vision-capable chat APIs.
const (
	PartText     = "text"
	PartImageURL = "image_url"
	RoleUser     = "user"
)

// ImageURL references a publicly fetchable image.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one segment of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Message is a single conversational turn.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// Prompt is the ordered message list sent to the model together with the
// output cap.
type Prompt struct {
	Messages  []Message
	MaxTokens int
	// ImageMIMEType is a hint for backends that need a media type next to the URL.
	ImageMIMEType string
}

// BuildPrompt returns a single user turn holding the query text followed by
// the image reference.
func BuildPrompt(query, imageURL string) Prompt {
	return Prompt{
		Messages: []Message{{
			Role: RoleUser,
			Content: []ContentPart{
				{Type: PartText, Text: query},
				{Type: PartImageURL, ImageURL: &ImageURL{URL: imageURL}},
			},
		}},
		MaxTokens: MaxTokens,
	}
}

// Client sends a prompt to a hosted model and returns the first completion's text.
type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	// Provider names the backend for logs and metrics.
	Provider() string
}
