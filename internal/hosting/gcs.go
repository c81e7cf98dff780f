package hosting

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"imagequery/internal/common/fsutil"
)

// GCSPublicHost serves objects of public buckets.
const GCSPublicHost = "https://storage.googleapis.com"

// GCSConfig configures the Cloud Storage strategy.
type GCSConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	// PublicRead applies the publicRead predefined ACL to each object. Leave
	// false for buckets using uniform bucket-level access with a public IAM binding.
	PublicRead bool
	Options    []option.ClientOption
}

// GCS writes images as objects in a bucket.
type GCS struct {
	client     *storage.Client
	bucket     string
	prefix     string
	publicRead bool
}

// NewGCS creates the storage client once; it is shared by all requests.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs hosting: bucket is required")
	}
	opts := append([]option.ClientOption(nil), cfg.Options...)
	if cfg.CredentialsFile != "" {
		p, err := fsutil.ExpandHome(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsFile(p))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs hosting: %w", err)
	}
	return &GCS{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		publicRead: cfg.PublicRead,
	}, nil
}

func (g *GCS) Strategy() string { return "gcs" }

func (g *GCS) objectName(name string) string {
	n := uniqueName(name)
	if g.prefix == "" {
		return n
	}
	return path.Join(g.prefix, n)
}

// publicURL escapes each path segment of the object name.
func (g *GCS) publicURL(object string) string {
	segs := strings.Split(object, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return GCSPublicHost + "/" + url.PathEscape(g.bucket) + "/" + strings.Join(segs, "/")
}

// Upload writes the object and returns its public URL.
func (g *GCS) Upload(ctx context.Context, obj Object) (string, error) {
	if len(obj.Data) == 0 {
		return "", ErrEmptyObject
	}
	name := g.objectName(obj.Name)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = obj.ContentType
	if g.publicRead {
		w.PredefinedACL = "publicRead"
	}
	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", name, err)
	}
	return g.publicURL(name), nil
}

// Close releases the storage client.
func (g *GCS) Close() error { return g.client.Close() }

var _ Uploader = (*GCS)(nil)
