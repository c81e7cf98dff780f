package imagequery

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxImagePixels bounds width*height before any pixel buffer is allocated.
const maxImagePixels = 178956970

// verifyImage decodes the whole image, not only the header, so truncated
// files are rejected. The header is checked against maxImagePixels first.
// It returns the detected format name.
func verifyImage(data []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxImagePixels {
		return "", fmt.Errorf("image size (%d pixels) exceeds limit of %d pixels, could be decompression bomb", px, maxImagePixels)
	}
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return format, nil
}

// contentTypeFor prefers the declared type when it is an image type and
// otherwise derives one from the decoded format.
func contentTypeFor(declared, format string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	if format != "" {
		return "image/" + format
	}
	return http.DetectContentType(data)
}
