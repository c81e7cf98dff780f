package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Hosting strategies.
const (
	StrategyLocal = "local"
	StrategyDrive = "drive"
	StrategyGCS   = "gcs"
)

// Inference providers.
const (
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr                   string          `json:"addr" yaml:"addr" toml:"addr"`
	PublicBaseURL          string          `json:"public_base_url" yaml:"public_base_url" toml:"public_base_url"`
	TrustForwardedHeaders  bool            `json:"trust_forwarded_headers" yaml:"trust_forwarded_headers" toml:"trust_forwarded_headers"`
	LogLevel               string          `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat              string          `json:"log_format" yaml:"log_format" toml:"log_format"`
	MaxUploadBytes         int64           `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	UpstreamTimeoutSeconds int64           `json:"upstream_timeout_seconds" yaml:"upstream_timeout_seconds" toml:"upstream_timeout_seconds"`
	CORS                   CORSConfig      `json:"cors" yaml:"cors" toml:"cors"`
	Hosting                HostingConfig   `json:"hosting" yaml:"hosting" toml:"hosting"`
	Inference              InferenceConfig `json:"inference" yaml:"inference" toml:"inference"`
}

// CORSConfig enables the opt-in CORS middleware.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// HostingConfig selects and configures where images are made public.
type HostingConfig struct {
	Strategy           string        `json:"strategy" yaml:"strategy" toml:"strategy"`
	MediaDir           string        `json:"media_dir" yaml:"media_dir" toml:"media_dir"`
	DriveFolderID      string        `json:"drive_folder_id" yaml:"drive_folder_id" toml:"drive_folder_id"`
	ServiceAccountFile string        `json:"service_account_file" yaml:"service_account_file" toml:"service_account_file"`
	GCSBucket          string        `json:"gcs_bucket" yaml:"gcs_bucket" toml:"gcs_bucket"`
	GCSPrefix          string        `json:"gcs_prefix" yaml:"gcs_prefix" toml:"gcs_prefix"`
	GCSPublicRead      bool          `json:"gcs_public_read" yaml:"gcs_public_read" toml:"gcs_public_read"`
	Staging            StagingConfig `json:"staging" yaml:"staging" toml:"staging"`
}

// StagingConfig turns on the temp-file round trip before upload.
type StagingConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Dir     string `json:"dir" yaml:"dir" toml:"dir"`
}

// InferenceConfig selects the hosted model.
type InferenceConfig struct {
	Provider       string `json:"provider" yaml:"provider" toml:"provider"`
	APIKey         string `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model          string `json:"model" yaml:"model" toml:"model"`
	BaseURL        string `json:"base_url" yaml:"base_url" toml:"base_url"`
	ProviderPolicy string `json:"provider_policy" yaml:"provider_policy" toml:"provider_policy"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
