// Package config reads FORESAFE settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/foresafe/foresafe/internal/onesignal"
	"github.com/foresafe/foresafe/internal/qrbatch"
)

type Config struct {
	Environment string
	Port        string
	DBPath      string
	LogLevel    string
	LogFormat   string

	// PublicURL is the canonical scan host encoded into every QR code.
	PublicURL          string
	DefaultCountryCode string
	TagPrefix          string
	AllowedOrigins     []string

	OneSignalAppID   string
	OneSignalRESTKey string
	OneSignalAPIURL  string

	AdminEmail    string
	AdminPassword string

	QRSize    int
	QRMaxTags int

	S3 qrbatch.S3Config
}

// LoadDotEnv loads a .env file when present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:        strings.ToLower(getEnv("FORESAFE_ENV", "development")),
		Port:               getEnv("FORESAFE_PORT", "8080"),
		DBPath:             getEnv("FORESAFE_DB_PATH", "foresafe.db"),
		LogLevel:           getEnv("FORESAFE_LOG_LEVEL", "info"),
		LogFormat:          getEnv("FORESAFE_LOG_FORMAT", "text"),
		PublicURL:          strings.TrimRight(getEnv("FORESAFE_PUBLIC_URL", "https://foresafe.in"), "/"),
		DefaultCountryCode: getEnv("FORESAFE_DEFAULT_COUNTRY_CODE", "+91"),
		TagPrefix:          getEnv("FORESAFE_TAG_PREFIX", "FS-"),
		AllowedOrigins:     parseList(getEnv("FORESAFE_ALLOWED_ORIGINS", "")),
		OneSignalAppID:     os.Getenv("ONESIGNAL_APP_ID"),
		OneSignalRESTKey:   os.Getenv("ONESIGNAL_REST_API_KEY"),
		OneSignalAPIURL:    getEnv("ONESIGNAL_API_URL", onesignal.DefaultBaseURL),
		AdminEmail:         os.Getenv("FORESAFE_ADMIN_EMAIL"),
		AdminPassword:      os.Getenv("FORESAFE_ADMIN_PASSWORD"),
		S3: qrbatch.S3Config{
			Endpoint:  os.Getenv("FORESAFE_S3_ENDPOINT"),
			Bucket:    os.Getenv("FORESAFE_S3_BUCKET"),
			Region:    getEnv("FORESAFE_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("FORESAFE_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("FORESAFE_S3_SECRET_KEY"),
			Prefix:    getEnv("FORESAFE_S3_PREFIX", "qr-batches"),
		},
	}

	var err error
	if cfg.QRSize, err = getEnvInt("FORESAFE_QR_SIZE", qrbatch.DefaultSize); err != nil {
		return nil, err
	}
	if cfg.QRMaxTags, err = getEnvInt("FORESAFE_QR_MAX_TAGS", qrbatch.DefaultMaxTags); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects settings the server cannot run with. Push credentials are
// only mandatory in production; elsewhere alerts fail with a delivery error.
func (c *Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("FORESAFE_PORT %q is not a number", c.Port))
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		errs = append(errs, fmt.Errorf("FORESAFE_PUBLIC_URL %q must be an http(s) URL", c.PublicURL))
	}
	if c.QRSize < 64 {
		errs = append(errs, fmt.Errorf("FORESAFE_QR_SIZE must be at least 64"))
	}
	if c.QRMaxTags < 1 {
		errs = append(errs, fmt.Errorf("FORESAFE_QR_MAX_TAGS must be positive"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, fmt.Errorf("FORESAFE_ADMIN_EMAIL and FORESAFE_ADMIN_PASSWORD must be set together"))
	}
	if c.IsProduction() {
		if c.OneSignalAppID == "" || c.OneSignalRESTKey == "" {
			errs = append(errs, fmt.Errorf("ONESIGNAL_APP_ID and ONESIGNAL_REST_API_KEY are required in production"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
