// Package hosting puts uploaded images somewhere the inference provider can
// fetch them and returns the public URL.
//
// Strategies:
//
//   - local.go: the process's own media directory, served at /media/.
//   - drive.go: Google Drive folder + anyone-with-link read permission.
//   - gcs.go: Google Cloud Storage bucket object.
//   - staging.go: optional temp-file round trip in front of any strategy.
//
// A strategy is selected once at startup; callers only see Uploader.
package hosting

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Object is an image to be hosted.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores an object and returns an absolute URL at which it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
	// Strategy names the backend for logs and metrics.
	Strategy() string
}

var (
	// ErrEmptyObject is returned when there are no bytes to upload.
	ErrEmptyObject = errors.New("hosting: empty object")
	// ErrMissingID is returned when the provider accepted the upload but returned no identifier.
	ErrMissingID = errors.New("hosting: provider returned no file id")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeBaseName strips directories and characters that are awkward in URLs and object keys.
func safeBaseName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "image"
	}
	if len(base) > 100 {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:100-len(ext)] + ext
	}
	return base
}

// uniqueName prefixes the sanitized name with a random id so concurrent
// uploads of the same file name never collide.
func uniqueName(name string) string {
	return uuid.NewString() + "_" + safeBaseName(name)
}

type baseURLKey struct{}

// WithBaseURL attaches the externally visible base URL of the current request
// (scheme://host) for strategies that compose URLs from it.
func WithBaseURL(ctx context.Context, base string) context.Context {
	return context.WithValue(ctx, baseURLKey{}, base)
}

// BaseURLFrom returns the base URL stored by WithBaseURL, if any.
func BaseURLFrom(ctx context.Context) string {
	v, _ := ctx.Value(baseURLKey{}).(string)
	return v
}
