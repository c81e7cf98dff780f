package imagequery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imagequery/internal/hosting"
	"imagequery/internal/inference"
)

// Upload is the image part of a request.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request carries one image and one query. Image is nil and QueryPresent is
// false when the respective form field was absent.
type Request struct {
	Image        *Upload
	Query        string
	QueryPresent bool
}

// Options configures a Service.
type Options struct {
	// UpstreamTimeout bounds each remote call (hosting, inference). Zero means
	// the calls run until the request context ends.
	UpstreamTimeout time.Duration
	Logger          zerolog.Logger
}

// Service runs the validate, decode, host, prompt, infer pipeline. It holds
// no per-request state and is safe for concurrent use.
type Service struct {
	uploader hosting.Uploader
	client   inference.Client
	timeout  time.Duration
	log      zerolog.Logger
}

// New wires a Service from its collaborators.
func New(uploader hosting.Uploader, client inference.Client, opts Options) (*Service, error) {
	if uploader == nil {
		return nil, fmt.Errorf("imagequery: uploader is required")
	}
	if client == nil {
		return nil, fmt.Errorf("imagequery: inference client is required")
	}
	return &Service{uploader: uploader, client: client, timeout: opts.UpstreamTimeout, log: opts.Logger}, nil
}

// Ready reports whether the service can take requests.
func (s *Service) Ready() bool { return s != nil && s.uploader != nil && s.client != nil }

// Process answers the query about the image. Errors are *ValidationError,
// *UploadError or *InferenceError.
func (s *Service) Process(ctx context.Context, req Request) (string, error) {
	if req.Image == nil || !req.QueryPresent || len(req.Image.Data) == 0 {
		validationFailures.WithLabelValues("missing_field").Inc()
		return "", &ValidationError{Msg: MsgBothRequired}
	}

	format, err := verifyImage(req.Image.Data)
	if err != nil {
		validationFailures.WithLabelValues("invalid_image").Inc()
		return "", &ValidationError{Msg: MsgInvalidImage + err.Error(), Err: err}
	}
	ct := contentTypeFor(req.Image.ContentType, format, req.Image.Data)

	imageURL, err := s.host(ctx, hosting.Object{Name: req.Image.Name, ContentType: ct, Data: req.Image.Data})
	if err != nil {
		return "", err
	}

	p := inference.BuildPrompt(req.Query, imageURL)
	p.ImageMIMEType = ct
	return s.infer(ctx, p)
}

func (s *Service) host(ctx context.Context, obj hosting.Object) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	u, err := s.uploader.Upload(ctx, obj)
	if err == nil && u == "" {
		err = hosting.ErrMissingID
	}
	stageDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	uploadsTotal.WithLabelValues(s.uploader.Strategy(), resultLabel(err)).Inc()
	if err != nil {
		s.log.Error().Err(err).Str("stage", "upload").Str("strategy", s.uploader.Strategy()).Str("file", obj.Name).Msg("image hosting failed")
		return "", &UploadError{Strategy: s.uploader.Strategy(), Err: err}
	}
	s.log.Debug().Str("stage", "upload").Str("url", u).Dur("dur", time.Since(start)).Msg("image hosted")
	return u, nil
}

func (s *Service) infer(ctx context.Context, p inference.Prompt) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.client.Complete(ctx, p)
	stageDuration.WithLabelValues("inference").Observe(time.Since(start).Seconds())
	inferenceTotal.WithLabelValues(s.client.Provider(), resultLabel(err)).Inc()
	if err != nil {
		ev := s.log.Error().Err(err).Str("stage", "inference").Str("provider", s.client.Provider()).Bool("retryable", inference.IsRetryable(err))
		if pe := providerError(err); pe != nil {
			ev = ev.Int("upstream_status", pe.Status).Str("code", pe.Code).Str("upstream_request_id", pe.RequestID).Str("detail", pe.Detail())
		}
		ev.Msg("inference failed")
		return "", &InferenceError{Provider: s.client.Provider(), Err: err}
	}
	s.log.Debug().Str("stage", "inference").Dur("dur", time.Since(start)).Int("chars", len(text)).Msg("inference done")
	return text, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
