package httpapi

// maxBodyBytes caps the multipart request body, image included.
// Default is 10 MiB.
var maxBodyBytes int64 = 10 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 10 << 20
		return
	}
	maxBodyBytes = n
}

// mediaDir is served under /media/ when non-empty (local hosting).
var mediaDir string

// SetMediaDir enables serving locally hosted images from dir.
func SetMediaDir(dir string) { mediaDir = dir }

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// trustForwardedHeaders makes requestBaseURL honour X-Forwarded-Proto and
// X-Forwarded-Host. Leave it off unless a proxy that rewrites them fronts the
// server; prefer a configured public base URL in production.
var trustForwardedHeaders bool

// SetTrustForwardedHeaders toggles use of X-Forwarded-* when deriving the
// public URL of locally hosted images.
func SetTrustForwardedHeaders(v bool) { trustForwardedHeaders = v }
