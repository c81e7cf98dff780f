package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"imagequery/internal/common/fsutil"
)

// Environment variable names. The unprefixed ones are kept for existing
// deployments that already export them.
const (
	EnvHFAPIKey           = "HF_API_KEY"
	EnvModelName          = "MODEL_NAME"
	EnvDriveFolderID      = "GOOGLE_DRIVE_FOLDER_ID"
	EnvServiceAccountFile = "SERVICE_ACCOUNT_FILE"

	EnvAddr            = "IMAGEQUERY_ADDR"
	EnvPublicBaseURL   = "IMAGEQUERY_PUBLIC_BASE_URL"
	EnvTrustForwarded  = "IMAGEQUERY_TRUST_FORWARDED_HEADERS"
	EnvLogLevel        = "IMAGEQUERY_LOG_LEVEL"
	EnvLogFormat       = "IMAGEQUERY_LOG_FORMAT"
	EnvMaxUploadBytes  = "IMAGEQUERY_MAX_UPLOAD_BYTES"
	EnvUpstreamTimeout = "IMAGEQUERY_UPSTREAM_TIMEOUT_SECONDS"
	EnvHostingStrategy = "IMAGEQUERY_HOSTING_STRATEGY"
	EnvMediaDir        = "IMAGEQUERY_MEDIA_DIR"
	EnvGCSBucket       = "IMAGEQUERY_GCS_BUCKET"
	EnvGCSPrefix       = "IMAGEQUERY_GCS_PREFIX"
	EnvStaging         = "IMAGEQUERY_STAGING"
	EnvProvider        = "IMAGEQUERY_INFERENCE_PROVIDER"
	EnvInferenceURL    = "IMAGEQUERY_INFERENCE_BASE_URL"
	EnvProviderPolicy  = "IMAGEQUERY_PROVIDER_POLICY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
)

const defaultMaxUploadBytes = 10 << 20

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays non-empty environment values onto cfg. The API key is
// left to ResolveAPIKey because its variable depends on the final provider.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Addr, EnvAddr)
	set(&cfg.PublicBaseURL, EnvPublicBaseURL)
	set(&cfg.LogLevel, EnvLogLevel)
	set(&cfg.LogFormat, EnvLogFormat)
	set(&cfg.Hosting.Strategy, EnvHostingStrategy)
	set(&cfg.Hosting.MediaDir, EnvMediaDir)
	set(&cfg.Hosting.DriveFolderID, EnvDriveFolderID)
	set(&cfg.Hosting.ServiceAccountFile, EnvServiceAccountFile)
	set(&cfg.Hosting.GCSBucket, EnvGCSBucket)
	set(&cfg.Hosting.GCSPrefix, EnvGCSPrefix)
	set(&cfg.Inference.Provider, EnvProvider)
	set(&cfg.Inference.Model, EnvModelName)
	set(&cfg.Inference.BaseURL, EnvInferenceURL)
	set(&cfg.Inference.ProviderPolicy, EnvProviderPolicy)

	if v := getenv(EnvMaxUploadBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxUploadBytes, err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := getenv(EnvUpstreamTimeout); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUpstreamTimeout, err)
		}
		cfg.UpstreamTimeoutSeconds = n
	}
	if v := getenv(EnvStaging); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStaging, err)
		}
		cfg.Hosting.Staging.Enabled = b
	}
	if v := getenv(EnvTrustForwarded); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTrustForwarded, err)
		}
		cfg.TrustForwardedHeaders = b
	}
	return nil
}

// apiKeyEnv lists the variables holding the key for provider, most specific first.
func apiKeyEnv(provider string) []string {
	if provider == ProviderGemini {
		return []string{EnvGeminiAPIKey, EnvHFAPIKey}
	}
	return []string{EnvHFAPIKey}
}

// ResolveAPIKey overlays the provider's API key from the environment. Call it
// after every source that can change the provider has been applied.
func ResolveAPIKey(cfg *Config, getenv func(string) string) {
	for _, k := range apiKeyEnv(cfg.Inference.Provider) {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			cfg.Inference.APIKey = v
			return
		}
	}
}

// ApplyDefaults fills unspecified fields. The hosting strategy defaults to
// drive when a folder id is configured and to local otherwise.
func ApplyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.UpstreamTimeoutSeconds < 0 {
		cfg.UpstreamTimeoutSeconds = 0
	}
	if cfg.Hosting.Strategy == "" {
		if cfg.Hosting.DriveFolderID != "" {
			cfg.Hosting.Strategy = StrategyDrive
		} else {
			cfg.Hosting.Strategy = StrategyLocal
		}
	}
	if cfg.Hosting.MediaDir == "" {
		cfg.Hosting.MediaDir = "media"
	}
	if cfg.Inference.Provider == "" {
		cfg.Inference.Provider = ProviderHuggingFace
	}
	if cfg.Inference.Provider == ProviderHuggingFace && cfg.Inference.ProviderPolicy == "" {
		cfg.Inference.ProviderPolicy = "fireworks-ai"
	}
	if len(cfg.CORS.Methods) == 0 {
		cfg.CORS.Methods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORS.Headers) == 0 {
		cfg.CORS.Headers = []string{"Content-Type", "X-Log-Level"}
	}
}

// Validate checks the fields required by the selected strategy and provider.
func (c Config) Validate() error {
	var errs []error
	switch c.Hosting.Strategy {
	case StrategyLocal:
		if c.Hosting.MediaDir == "" {
			errs = append(errs, errors.New("hosting.media_dir is required for local hosting"))
		}
	case StrategyDrive:
		if c.Hosting.DriveFolderID == "" {
			errs = append(errs, fmt.Errorf("hosting.drive_folder_id (%s) is required for drive hosting", EnvDriveFolderID))
		}
		if c.Hosting.ServiceAccountFile == "" {
			errs = append(errs, fmt.Errorf("hosting.service_account_file (%s) is required for drive hosting", EnvServiceAccountFile))
		} else if p, err := fsutil.ExpandHome(c.Hosting.ServiceAccountFile); err != nil || !fsutil.PathExists(p) {
			errs = append(errs, fmt.Errorf("service account file %q not found", c.Hosting.ServiceAccountFile))
		}
	case StrategyGCS:
		if c.Hosting.GCSBucket == "" {
			errs = append(errs, errors.New("hosting.gcs_bucket is required for gcs hosting"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown hosting.strategy %q (want local|drive|gcs)", c.Hosting.Strategy))
	}
	switch c.Inference.Provider {
	case ProviderHuggingFace, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown inference.provider %q (want huggingface|gemini)", c.Inference.Provider))
	}
	if c.Inference.APIKey == "" {
		errs = append(errs, fmt.Errorf("inference.api_key (%s) is required", apiKeyEnv(c.Inference.Provider)[0]))
	}
	if c.Inference.Model == "" {
		errs = append(errs, fmt.Errorf("inference.model (%s) is required", EnvModelName))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Inference.APIKey != "" {
		c.Inference.APIKey = "***"
	}
	return c
}
