package types

// ProcessImageResponse is returned by POST /process-image on success.
type ProcessImageResponse struct {
	// Text generated by the model for the uploaded image and query.
	// example: The picture shows a red bicycle leaning against a brick wall.
	Response string `json:"response" example:"The picture shows a red bicycle leaning against a brick wall."`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Both image and query are required
	Error string `json:"error" example:"Both image and query are required"`
}

// ProcessImageForm documents the multipart fields accepted by POST /process-image.
// It is not decoded directly; the handler reads the form fields by name.
type ProcessImageForm struct {
	// Image file to analyse (JPEG, PNG, GIF, WebP, BMP or TIFF).
	Image []byte `json:"image" format:"binary"`
	// Free-text question about the image.
	// example: What is in this picture?
	Query string `json:"query" example:"What is in this picture?"`
}
