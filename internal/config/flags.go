package config

import "flag"

// parseFlags overlays command-line flags onto cfg. Flags come last, so
// they beat both defaults and the JSON file.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("clipvault", flag.ContinueOnError)

	// Consumed earlier by parseJSON; registered so parsing accepts it.
	fs.String("config", "", "path to JSON config file")

	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.StorageBasePath, "storage", cfg.StorageBasePath, "storage base path")
	backend := fs.String("chunk-backend", string(cfg.ChunkBackend), "chunk backend: local or s3")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address, empty disables the cache")
	fs.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "redis password")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "session cache TTL")
	fs.DurationVar(&cfg.SessionExpireAfter, "session-expire", cfg.SessionExpireAfter, "upload session lifetime")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "cleanup sweep interval")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-endpoint", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "S3 secret key")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.ChunkBackend = ChunkBackend(*backend)
	return nil
}
