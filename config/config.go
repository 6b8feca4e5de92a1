// Package config loads server settings from an optional YAML file, an
// optional .env file and PDFEDIT_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

const EnvPrefix = "PDFEDIT_"

type Config struct {
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"cors_origins"`
	MaxUpload   int64         `yaml:"max_upload"`
	Debounce    time.Duration `yaml:"debounce"`
	Storage     Storage       `yaml:"storage"`
	Export      Export        `yaml:"export"`
	Sections    Sections      `yaml:"sections"`
	Log         Log           `yaml:"log"`
}

type Storage struct {
	Backend     string        `yaml:"backend"`
	DatabaseURL string        `yaml:"database_url"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisDB     int           `yaml:"redis_db"`
	RedisPass   string        `yaml:"redis_password"`
	TTL         time.Duration `yaml:"ttl"`
}

type Export struct {
	RemoteURL     string        `yaml:"remote_url"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	Verify        bool          `yaml:"verify"`
	Compress      bool          `yaml:"compress"`
}

type Sections struct {
	// Script is a JavaScript file defining classify(title, words).
	Script        string `yaml:"script"`
	KeepAltTitles bool   `yaml:"keep_alt_titles"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Addr:        ":8080",
		CORSOrigins: []string{"*"},
		MaxUpload:   32 << 20,
		Debounce:    150 * time.Millisecond,
		Storage:     Storage{Backend: "memory", TTL: 24 * time.Hour},
		Export:      Export{RemoteTimeout: 30 * time.Second, Compress: true},
		Log:         Log{Level: "info", Format: "json"},
	}
}

type LoadOptions struct {
	// File is a YAML file. Empty skips it; a missing file is an error.
	File string
	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load reads path (if set) and ./.env, then applies the environment.
func Load(path string) (Config, error) {
	return LoadWith(LoadOptions{File: path, EnvFile: ".env"})
}

func LoadWith(opts LoadOptions) (Config, error) {
	cfg := Default()
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", opts.File, err)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	// Values from the dotenv file never override the real environment.
	if opts.EnvFile != "" {
		vars, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file: %w", err)
		}
		base := getenv
		getenv = func(key string) string {
			if v := base(key); v != "" {
				return v
			}
			return vars[key]
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	env := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		return v, v != ""
	}
	str := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		if v, ok := env(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int64) {
		if v, ok := env(name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := env(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("ADDR", &cfg.Addr)
	if v, ok := env("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	integer("MAX_UPLOAD", &cfg.MaxUpload)
	dur("DEBOUNCE", &cfg.Debounce)

	str("STORAGE", &cfg.Storage.Backend)
	str("DATABASE_URL", &cfg.Storage.DatabaseURL)
	str("REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Storage.RedisPass)
	redisDB := int64(cfg.Storage.RedisDB)
	integer("REDIS_DB", &redisDB)
	cfg.Storage.RedisDB = int(redisDB)
	dur("STORAGE_TTL", &cfg.Storage.TTL)

	str("REMOTE_EXPORT_URL", &cfg.Export.RemoteURL)
	dur("REMOTE_EXPORT_TIMEOUT", &cfg.Export.RemoteTimeout)
	boolean("EXPORT_VERIFY", &cfg.Export.Verify)
	boolean("EXPORT_COMPRESS", &cfg.Export.Compress)

	str("SECTIONS_SCRIPT", &cfg.Sections.Script)
	boolean("KEEP_ALT_TITLES", &cfg.Sections.KeepAltTitles)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "memory", "":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage.database_url is required for postgres"))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.MaxUpload <= 0 {
		errs = append(errs, errors.New("max_upload must be positive"))
	}
	if c.Debounce < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
