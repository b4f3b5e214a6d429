// Package config loads runtime configuration from an optional YAML file and
// the environment. Environment values win over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signalsai/internal/blob"
	"signalsai/internal/core"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr     string             `yaml:"listen_addr"`
	DatasetPath    string             `yaml:"dataset_path"`
	GatewayBaseURL string             `yaml:"gateway_base_url"`
	GatewayTimeout time.Duration      `yaml:"gateway_timeout"`
	UserID         string             `yaml:"user_id"`
	UserName       string             `yaml:"user_name"`
	LogLevel       string             `yaml:"log_level"`
	Storage        core.StorageConfig `yaml:"storage"`
	Blob           blob.Config        `yaml:"blob"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		ListenAddr:     ":8080",
		GatewayTimeout: 10 * time.Second,
		UserID:         "anonymous",
		UserName:       "Anonymous",
		LogLevel:       "info",
		Storage:        core.StorageConfig{Driver: core.StorageSQLite},
		Blob:           blob.Config{Driver: blob.DriverFilesystem},
	}
}

// Load reads, in order: defaults, the YAML file at path (optional), a .env
// file if present, then SIGNALSAI_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	// .env is a developer convenience; a missing file is not an error.
	_ = godotenv.Load()

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "SIGNALSAI_LISTEN_ADDR")
	setString(&cfg.DatasetPath, "SIGNALSAI_DATASET_PATH")
	setString(&cfg.GatewayBaseURL, "SIGNALSAI_GATEWAY_BASE_URL")
	setString(&cfg.UserID, "SIGNALSAI_USER_ID")
	setString(&cfg.UserName, "SIGNALSAI_USER_NAME")
	setString(&cfg.LogLevel, "SIGNALSAI_LOG_LEVEL")
	if v := os.Getenv("SIGNALSAI_GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.GatewayTimeout = d
		}
	}

	if v := os.Getenv("SIGNALSAI_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = core.StorageDriver(v)
	}
	setString(&cfg.Storage.SQLitePath, "SIGNALSAI_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "SIGNALSAI_POSTGRES_DSN")

	if v := os.Getenv("SIGNALSAI_BLOB_DRIVER"); v != "" {
		cfg.Blob.Driver = blob.Driver(v)
	}
	setString(&cfg.Blob.FSRoot, "SIGNALSAI_BLOB_FS_ROOT")
	setString(&cfg.Blob.S3Bucket, "SIGNALSAI_BLOB_S3_BUCKET")
	setString(&cfg.Blob.S3Region, "SIGNALSAI_BLOB_S3_REGION")
	setString(&cfg.Blob.S3Endpoint, "SIGNALSAI_BLOB_S3_ENDPOINT")
	setString(&cfg.Blob.S3AccessKey, "SIGNALSAI_BLOB_S3_ACCESS_KEY")
	setString(&cfg.Blob.S3SecretKey, "SIGNALSAI_BLOB_S3_SECRET_KEY")
	if v := os.Getenv("SIGNALSAI_BLOB_S3_PATH_STYLE"); v != "" {
		cfg.Blob.S3PathStyle = v == "true" || v == "1"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
