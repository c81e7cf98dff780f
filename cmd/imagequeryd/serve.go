package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"imagequery/internal/config"
	"imagequery/internal/hosting"
	"imagequery/internal/httpapi"
	"imagequery/internal/imagequery"
	"imagequery/internal/inference"
)

const shutdownGrace = 10 * time.Second

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts, os.Getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader, closeUploader, err := buildUploader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUploader()
	client, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}
	svc, err := imagequery.New(uploader, client, imagequery.Options{
		UpstreamTimeout: time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(cfg.MaxUploadBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	httpapi.SetTrustForwardedHeaders(cfg.TrustForwardedHeaders)
	if cfg.Hosting.Strategy == config.StrategyLocal && cfg.PublicBaseURL == "" {
		logger.Warn().Bool("trust_forwarded_headers", cfg.TrustForwardedHeaders).
			Msg("public_base_url is unset; hosted image URLs follow the request host")
	}
	if opts.requestLog != "" {
		httpapi.SetDefaultLogLevel(opts.requestLog)
	}
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, logger.With().
		Str("addr", cfg.Addr).
		Str("hosting", uploader.Strategy()).
		Str("provider", client.Provider()).
		Logger())
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msg("imagequeryd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}

// buildUploader selects the hosting strategy. The returned func releases any
// client the strategy holds.
func buildUploader(ctx context.Context, cfg config.Config) (hosting.Uploader, func(), error) {
	var (
		up      hosting.Uploader
		closeFn = func() {}
	)
	switch cfg.Hosting.Strategy {
	case config.StrategyLocal:
		l, err := hosting.NewLocal(cfg.Hosting.MediaDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		httpapi.SetMediaDir(l.Dir())
		up = l
	case config.StrategyDrive:
		d, err := hosting.NewDrive(ctx, hosting.DriveConfig{
			FolderID:        cfg.Hosting.DriveFolderID,
			CredentialsFile: cfg.Hosting.ServiceAccountFile,
		})
		if err != nil {
			return nil, nil, err
		}
		up = d
	case config.StrategyGCS:
		g, err := hosting.NewGCS(ctx, hosting.GCSConfig{
			Bucket:          cfg.Hosting.GCSBucket,
			Prefix:          cfg.Hosting.GCSPrefix,
			CredentialsFile: cfg.Hosting.ServiceAccountFile,
			PublicRead:      cfg.Hosting.GCSPublicRead,
		})
		if err != nil {
			return nil, nil, err
		}
		up = g
		closeFn = func() { _ = g.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown hosting strategy %q", cfg.Hosting.Strategy)
	}
	if cfg.Hosting.Staging.Enabled {
		up = hosting.NewStaged(up, cfg.Hosting.Staging.Dir)
	}
	return up, closeFn, nil
}

// buildClient selects the inference provider.
func buildClient(ctx context.Context, cfg config.Config) (inference.Client, error) {
	switch cfg.Inference.Provider {
	case config.ProviderHuggingFace:
		return inference.NewHuggingFace(inference.HFConfig{
			APIKey:         cfg.Inference.APIKey,
			Model:          cfg.Inference.Model,
			BaseURL:        cfg.Inference.BaseURL,
			ProviderPolicy: cfg.Inference.ProviderPolicy,
		})
	case config.ProviderGemini:
		return inference.NewGemini(ctx, inference.GeminiConfig{
			APIKey:  cfg.Inference.APIKey,
			Model:   cfg.Inference.Model,
			BaseURL: cfg.Inference.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Inference.Provider)
	}
}
