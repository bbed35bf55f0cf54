package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// jsonConfig is the file-level DTO. Durations are strings in Go syntax
// ("90s", "10m"); zero values leave the current setting untouched.
type jsonConfig struct {
	DatabaseDSN        string `json:"database_dsn"`
	StorageBasePath    string `json:"storage_base_path"`
	ChunkBackend       string `json:"chunk_backend"`
	RedisAddr          string `json:"redis_addr"`
	RedisPassword      string `json:"redis_password"`
	CacheTTL           string `json:"cache_ttl"`
	SessionExpireAfter string `json:"session_expire_after"`
	CleanupInterval    string `json:"cleanup_interval"`
	S3Bucket           string `json:"s3_bucket"`
	S3Region           string `json:"s3_region"`
	S3BaseEndpoint     string `json:"s3_base_endpoint"`
	S3AccessKey        string `json:"s3_access_key"`
	S3SecretKey        string `json:"s3_secret_key"`
}

// configFilePath finds the overlay file: the -config flag wins over the
// CLIPVAULT_CONFIG environment variable; empty means no overlay.
func configFilePath(args []string) string {
	for i, arg := range args {
		if v, ok := strings.CutPrefix(arg, "-config="); ok {
			return v
		}
		if arg == "-config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("CLIPVAULT_CONFIG")
}

func applyDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config field %s: %w", field, err)
	}
	*dst = d
	return nil
}

func parseJSON(cfg *Config, args []string) error {
	path := configFilePath(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(raw, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.StorageBasePath != "" {
		cfg.StorageBasePath = jc.StorageBasePath
	}
	if jc.ChunkBackend != "" {
		cfg.ChunkBackend = ChunkBackend(jc.ChunkBackend)
	}
	if jc.RedisAddr != "" {
		cfg.RedisAddr = jc.RedisAddr
	}
	if jc.RedisPassword != "" {
		cfg.RedisPassword = jc.RedisPassword
	}
	if err := applyDuration(&cfg.CacheTTL, jc.CacheTTL, "cache_ttl"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.SessionExpireAfter, jc.SessionExpireAfter, "session_expire_after"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.CleanupInterval, jc.CleanupInterval, "cleanup_interval"); err != nil {
		return err
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	return nil
}
