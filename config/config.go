// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	_ = pflag.Bool("reconcile-once", false, "Runs a single storage reconciliation sweep and exits")

	validLogLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validLogFormats = []string{"console", "json"}
	validDrivers    = []string{"postgres", "sqlite"}
	validFailModes  = []string{"open", "closed", "local"}
)

// ErrNoSecret is returned when no JWT secret was configured
var ErrNoSecret = errors.New("no jwt secret provided")

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	if !pflag.Parsed() {
		pflag.Parse()
	}
	v.BindPFlags(pflag.CommandLine)

	err := load()
	if errors.Is(err, ErrNoSecret) {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	return err
}

// ReconcileOnce reports whether the process should only run one
// reconciliation sweep
func ReconcileOnce() bool {
	return v.GetBool("reconcile-once")
}

func load() error {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")
	v.BindEnv("app.log_format", "APP_LOG_FORMAT")

	v.BindEnv("host.port", "HOST_PORT", "PORT")
	v.BindEnv("host.public_url", "HOST_PUBLIC_URL")
	v.BindEnv("host.cors_origins", "HOST_CORS_ORIGINS")
	v.BindEnv("host.trusted_proxies", "HOST_TRUSTED_PROXIES")

	v.BindEnv("host.ssl.enabled", "HOST_SSL_ENABLED")
	v.BindEnv("host.ssl.certificate_path", "HOST_SSL_CERTIFICATE_PATH")
	v.BindEnv("host.ssl.certificate_key_path", "HOST_SSL_CERTIFICATE_KEY_PATH")

	v.BindEnv("jwt.secret", "JWT_SECRET", "JWT_SECRET_KEY")
	v.BindEnv("jwt.expiry_days", "JWT_EXPIRY_DAYS", "JWT_EXPIRY_TIME")

	v.BindEnv("s3.region", "S3_REGION", "S3_BUCKET_REGION")
	v.BindEnv("s3.bucket", "S3_BUCKET", "BUCKET_NAME")
	v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("s3.path_style", "S3_PATH_STYLE")
	v.BindEnv("s3.presign_expiry_seconds", "S3_PRESIGN_EXPIRY_SECONDS", "PRESIGNED_URL_EXPIRY_TIME")

	v.BindEnv("db.driver", "DB_DRIVER")
	v.BindEnv("db.host", "DB_HOST")
	v.BindEnv("db.port", "DB_PORT")
	v.BindEnv("db.user", "DB_USER")
	v.BindEnv("db.password", "DB_PASSWORD")
	v.BindEnv("db.name", "DB_NAME")
	v.BindEnv("db.sslmode", "DB_SSLMODE")
	v.BindEnv("db.path", "DB_PATH")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	v.BindEnv("ratelimit.limit", "RATE_LIMIT")
	v.BindEnv("ratelimit.window_seconds", "RATE_LIMIT_WINDOW_SECONDS", "RATE_LIMIT_WINDOW_IN_SECONDS")
	v.BindEnv("ratelimit.fail_mode", "RATE_LIMIT_FAIL_MODE")

	v.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")
	v.BindEnv("upload.slot_ttl_minutes", "UPLOAD_SLOT_TTL_MINUTES")
	v.BindEnv("storage.max_usage", "STORAGE_MAX_USAGE")

	v.BindEnv("reconcile.enabled", "RECONCILE_ENABLED")
	v.BindEnv("reconcile.schedule", "RECONCILE_SCHEDULE")
	v.BindEnv("reconcile.grace_hours", "RECONCILE_GRACE_HOURS")

	v.BindEnv("server.start_retries", "SERVER_START_RETRIES")
	v.BindEnv("server.retry_delay_seconds", "SERVER_RETRY_DELAY_SECONDS")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("host.trusted_proxies", []string{})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("jwt.expiry_days", 5)

	v.SetDefault("s3.presign_expiry_seconds", 900)
	v.SetDefault("s3.path_style", false)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "database.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("ratelimit.fail_mode", "open")

	v.SetDefault("upload.max_size", 100)
	v.SetDefault("upload.slot_ttl_minutes", 60)
	v.SetDefault("storage.max_usage", 1024)

	v.SetDefault("reconcile.enabled", false)
	v.SetDefault("reconcile.schedule", "@every 6h")
	v.SetDefault("reconcile.grace_hours", 24)

	v.SetDefault("server.start_retries", 3)
	v.SetDefault("server.retry_delay_seconds", 2)

	if err := v.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if err := validate(); err != nil {
		return err
	}

	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	v.Set("storage.max_usage", v.GetInt64("storage.max_usage")<<20)
	return nil
}

func validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validLogFormats, v.GetString("app.log_format")) {
		return errors.New("invalid log format provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if err := validateProxies(v.GetStringSlice("host.trusted_proxies")); err != nil {
		return err
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if v.GetString("jwt.secret") == "" {
		return ErrNoSecret
	}

	if v.GetInt("jwt.expiry_days") <= 0 {
		return errors.New("jwt.expiry_days must be bigger than 0")
	}

	if v.GetString("s3.bucket") == "" {
		return errors.New("bucket can't be empty")
	}

	if v.GetString("s3.region") == "" {
		return errors.New("region can't be empty")
	}

	// Either both keys or neither, in which case the default credential chain is used
	if (v.GetString("s3.access_key_id") == "") != (v.GetString("s3.secret_access_key") == "") {
		return errors.New("s3.access_key_id and s3.secret_access_key must be set together")
	}

	if v.GetInt("s3.presign_expiry_seconds") <= 0 {
		return errors.New("s3.presign_expiry_seconds must be bigger than 0")
	}

	// S3 refuses to sign anything valid for longer than a week
	if v.GetInt("s3.presign_expiry_seconds") > 7*24*60*60 {
		return errors.New("s3.presign_expiry_seconds can't be longer than 7 days")
	}

	switch v.GetString("db.driver") {
	case "postgres":
		if v.GetString("db.name") == "" {
			return errors.New("database name can't be empty")
		}
		if v.GetString("db.user") == "" {
			return errors.New("database user can't be empty")
		}
	case "sqlite":
		if v.GetString("db.path") == "" {
			return errors.New("database path can't be empty")
		}
	}

	if !slices.Contains(validDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetInt("ratelimit.limit") <= 0 {
		return errors.New("ratelimit.limit must be bigger than 0")
	}

	if v.GetInt("ratelimit.window_seconds") <= 0 {
		return errors.New("ratelimit.window_seconds must be bigger than 0")
	}

	if !slices.Contains(validFailModes, v.GetString("ratelimit.fail_mode")) {
		return errors.New("invalid rate limiter fail mode provided")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("max upload size must be bigger than 0")
	}

	if v.GetInt("upload.slot_ttl_minutes") <= 0 {
		return errors.New("upload.slot_ttl_minutes must be bigger than 0")
	}

	if v.GetInt("storage.max_usage") <= 0 {
		return errors.New("max usage must be bigger than 0")
	}

	if v.GetBool("reconcile.enabled") && v.GetString("reconcile.schedule") == "" {
		return errors.New("reconcile.schedule can't be empty when reconciliation is enabled")
	}

	if v.GetInt("reconcile.grace_hours") <= 0 {
		return errors.New("reconcile.grace_hours must be bigger than 0")
	}

	if v.GetInt("server.start_retries") < 0 {
		return errors.New("server.start_retries can't be negative")
	}

	return nil
}

// validateProxies accepts single addresses and CIDR ranges, either as a list
// or comma separated
func validateProxies(proxies []string) error {
	for _, entry := range proxies {
		for _, p := range strings.Split(entry, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}

			if net.ParseIP(p) != nil {
				continue
			}

			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("invalid trusted proxy %q", p)
			}
		}
	}

	return nil
}
