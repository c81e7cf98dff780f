package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"imagequery/internal/common/fsutil"
)

// MediaPrefix is the URL path under which locally hosted files are served.
const MediaPrefix = "/media/"

// ErrNoBaseURL is returned when neither a configured nor a request-derived base URL is known.
var ErrNoBaseURL = errors.New("hosting: no public base URL for local media")

// Local stores images in a directory served by this process and composes the
// URL from the public base URL and the generated storage path.
type Local struct {
	dir     string
	baseURL string
	now     func() time.Time
}

// NewLocal returns a Local strategy writing below dir. baseURL may be empty,
// in which case the request's base URL (WithBaseURL) is used.
func NewLocal(dir, baseURL string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local hosting: media dir is required")
	}
	d, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(d)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if baseURL != "" {
		if _, err := absoluteBase(baseURL); err != nil {
			return nil, err
		}
	}
	return &Local{dir: abs, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

func (l *Local) Strategy() string { return "local" }

// Dir is the media root, for mounting a file server.
func (l *Local) Dir() string { return l.dir }

// Upload writes the object under uploads/YYYY/MM/DD/<uuid>_<name>.
func (l *Local) Upload(ctx context.Context, obj Object) (string, error) {
	if len(obj.Data) == 0 {
		return "", ErrEmptyObject
	}
	base := l.baseURL
	if base == "" {
		base = strings.TrimRight(BaseURLFrom(ctx), "/")
	}
	u, err := absoluteBase(base)
	if err != nil {
		return "", err
	}
	rel := path.Join("uploads", l.now().UTC().Format("2006/01/02"), uniqueName(obj.Name))
	if err := fsutil.WriteFileAtomic(filepath.Join(l.dir, filepath.FromSlash(rel)), obj.Data, 0o644); err != nil {
		return "", fmt.Errorf("local hosting: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + MediaPrefix + rel
	return u.String(), nil
}

func absoluteBase(base string) (*url.URL, error) {
	if base == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("local hosting: parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("local hosting: base url %q is not absolute", base)
	}
	return u, nil
}

var _ Uploader = (*Local)(nil)
