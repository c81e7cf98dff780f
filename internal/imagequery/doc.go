// Package imagequery answers a text query about an uploaded image. A request
// runs through a fixed pipeline and stops at the first failing stage:
//
//   - validation: image and query present, image non-empty (ValidationError).
//   - decode: the bytes decode as a raster image (ValidationError).
//   - hosting: hosting.Uploader returns a public URL (UploadError).
//   - prompt: inference.BuildPrompt, one user turn, text then image.
//   - inference: inference.Client returns the first completion (InferenceError).
//
// Nothing is retried. Errors carry StatusCode() for the HTTP layer.
package imagequery
