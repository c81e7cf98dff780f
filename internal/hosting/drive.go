package hosting

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"imagequery/internal/common/fsutil"
)

// DrivePublicURL is the download URL template for a Drive file id.
const DrivePublicURL = "https://drive.google.com/uc?id="

// DriveConfig configures the Google Drive strategy.
type DriveConfig struct {
	FolderID string
	// CredentialsFile is a service-account JSON key. Ignored when Options
	// already carry credentials.
	CredentialsFile string
	Options         []option.ClientOption
}

// Drive uploads into a Drive folder and grants anyone-with-link read access.
type Drive struct {
	svc      *drive.Service
	folderID string
}

// NewDrive builds the Drive service once; it is shared by all requests.
func NewDrive(ctx context.Context, cfg DriveConfig) (*Drive, error) {
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("drive hosting: folder id is required")
	}
	opts := append([]option.ClientOption(nil), cfg.Options...)
	if cfg.CredentialsFile != "" {
		p, err := fsutil.ExpandHome(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsFile(p), option.WithScopes(drive.DriveFileScope))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive hosting: %w", err)
	}
	return &Drive{svc: svc, folderID: cfg.FolderID}, nil
}

func (d *Drive) Strategy() string { return "drive" }

// Upload creates the file, makes it public and returns its download URL.
func (d *Drive) Upload(ctx context.Context, obj Object) (string, error) {
	if len(obj.Data) == 0 {
		return "", ErrEmptyObject
	}
	ct := obj.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	meta := &drive.File{
		Name:    safeBaseName(obj.Name),
		Parents: []string{d.folderID},
	}
	f, err := d.svc.Files.Create(meta).
		Media(bytes.NewReader(obj.Data), googleapi.ContentType(ct)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}
	if f == nil || f.Id == "" {
		return "", ErrMissingID
	}

	perm := &drive.Permission{Role: "reader", Type: "anyone"}
	if _, err := d.svc.Permissions.Create(f.Id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("drive permission %s: %w", f.Id, err)
	}
	return DrivePublicURL + url.QueryEscape(f.Id), nil
}

var _ Uploader = (*Drive)(nil)
