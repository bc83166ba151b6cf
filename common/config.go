package common

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"csv-import-export/csvcodec"

	"github.com/joho/godotenv"
)

// Config holds all service configuration. Every setting comes from an
// environment variable, optionally seeded from a .env file.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Codec    CodecConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in process.
	Path string `env:"DB_PATH" default:"./data/csv-import-export.db"`
}

type StorageConfig struct {
	UploadsDir string `env:"UPLOADS_DIR" default:"./uploads"`
	ExportsDir string `env:"EXPORTS_DIR" default:"./exports"`
	// MaxUploadSize caps multipart uploads in bytes (default 100MB).
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" default:"104857600"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set. Tokens are
// issued by POST /auth/token to callers presenting the API key whose bcrypt
// hash is APIKeyHash.
type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	APIKeyHash string        `env:"API_KEY_HASH"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" default:"24h"`
}

// Enabled reports whether routes should require a bearer token.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// CodecConfig holds the defaults applied to imports and exports that do not
// name their own delimiter or options.
type CodecConfig struct {
	Delimiter string `env:"CSV_DELIMITER" default:","`
	Options   string `env:"CSV_OPTIONS" default:"trim_fields,ignore_invalid_lines"`
}

// CodecOptions parses Options.
func (c CodecConfig) CodecOptions() (csvcodec.Options, error) {
	return csvcodec.ParseOptions(c.Options)
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig reads an optional .env file and then the environment.
// Variables already set in the environment win over the .env file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadStruct(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		value := os.Getenv(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = os.Getenv(alt)
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, "DB_PATH is required")
	}
	if c.Storage.UploadsDir == "" || c.Storage.ExportsDir == "" {
		errs = append(errs, "UPLOADS_DIR and EXPORTS_DIR are required")
	}
	if c.Storage.MaxUploadSize <= 0 {
		errs = append(errs, "MAX_UPLOAD_SIZE must be positive")
	}
	if c.Auth.Enabled() {
		if c.Auth.APIKeyHash == "" {
			errs = append(errs, "API_KEY_HASH is required when JWT_SECRET is set")
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, "TOKEN_TTL must be positive")
		}
	}

	opts, err := c.Codec.CodecOptions()
	if err != nil {
		errs = append(errs, fmt.Sprintf("CSV_OPTIONS: %v", err))
	}
	if err := (csvcodec.Config{Delimiter: c.Codec.Delimiter, Options: opts}).Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("CSV_DELIMITER: %v", err))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Apply publishes the storage and codec settings to the package-level
// defaults read by the import and export handlers.
func (c *Config) Apply() error {
	opts, err := c.Codec.CodecOptions()
	if err != nil {
		return err
	}
	UploadsDir = c.Storage.UploadsDir
	ExportsDir = c.Storage.ExportsDir
	MaxUploadSize = c.Storage.MaxUploadSize
	DefaultDelimiter = c.Codec.Delimiter
	DefaultOptions = opts

	for _, dir := range []string{UploadsDir, ExportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// String masks secrets so the config can be logged.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Port: %d}, Database: {Path: %q}, Storage: {Uploads: %q, Exports: %q}, Auth: {Enabled: %v, TTL: %s}, Codec: {Delimiter: %q, Options: %q}, Logging: {Level: %q, Format: %q}}",
		c.Server.Port, c.Database.Path, c.Storage.UploadsDir, c.Storage.ExportsDir,
		c.Auth.Enabled(), c.Auth.TokenTTL, c.Codec.Delimiter, c.Codec.Options,
		c.Logging.Level, c.Logging.Format)
}
