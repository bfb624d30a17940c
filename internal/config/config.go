// Package config loads tracker settings from defaults, an optional TOML file
// and the environment, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener settings.
type Server struct {
	Host       string `toml:"host" env:"HOST"`
	Port       int    `toml:"port" env:"PORT"`
	CORSOrigin string `toml:"cors_origin" env:"CORS_ORIGIN"`
}

// Storage selects and locates the backend.
type Storage struct {
	// UseDatabase switches from JSON files to the SQL backend. A non-empty
	// DatabaseURL implies it.
	UseDatabase bool   `toml:"use_database" env:"USE_DATABASE"`
	DatabaseURL string `toml:"database_url" env:"DATABASE_URL"`
	DataDir     string `toml:"data_dir" env:"DATA_DIR"`
	GamesFile   string `toml:"games_file" env:"GAMES_FILE"`
	BooksFile   string `toml:"books_file" env:"BOOKS_FILE"`
	WatchFiles  bool   `toml:"watch_files" env:"WATCH_DATA_FILES"`
}

// Auth contains account settings.
type Auth struct {
	MultiUser      bool   `toml:"multi_user" env:"MULTI_USER"`
	SecretKey      string `toml:"secret_key" env:"SECRET_KEY"`
	TokenTTLHours  int    `toml:"token_ttl_hours" env:"TOKEN_TTL_HOURS"`
	SingleUserName string `toml:"single_user_name" env:"SINGLE_USER_NAME"`
}

// Limits bounds the per-owner limit on the limited status.
type Limits struct {
	Default int `toml:"default" env:"DEFAULT_LIMIT"`
	Max     int `toml:"max" env:"MAX_LIMIT"`
}

// Sync contains GitHub file sync settings for the JSON backend.
type Sync struct {
	GitHubToken    string `toml:"github_token" env:"GITHUB_TOKEN"`
	Repo           string `toml:"repo" env:"GITHUB_REPO"`
	Branch         string `toml:"branch" env:"GITHUB_BRANCH"`
	GamesPath      string `toml:"games_path" env:"GITHUB_GAMES_PATH"`
	BooksPath      string `toml:"books_path" env:"GITHUB_BOOKS_PATH"`
	PushOnSave     bool   `toml:"push_on_save" env:"GITHUB_PUSH_ON_SAVE"`
	PullOnStart    bool   `toml:"pull_on_start" env:"GITHUB_PULL_ON_START"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"GITHUB_TIMEOUT_SECONDS"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level      string `toml:"level" env:"LOG_LEVEL"`
	Format     string `toml:"format" env:"LOG_FORMAT"`
	File       string `toml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config is the full tracker configuration.
type Config struct {
	AppName string  `toml:"app_name" env:"APP_NAME"`
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
	Auth    Auth    `toml:"auth"`
	Limits  Limits  `toml:"limits"`
	Sync    Sync    `toml:"sync"`
	Logging Logging `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AppName: "gametracker",
		Server: Server{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Storage: Storage{
			DataDir:   ".",
			GamesFile: "games_data.json",
			BooksFile: "books_data.json",
		},
		Auth: Auth{
			TokenTTLHours:  7 * 24,
			SingleUserName: "default",
		},
		Limits: Limits{
			Default: 3,
			Max:     20,
		},
		Sync: Sync{
			Branch:         "main",
			GamesPath:      "games_data.json",
			BooksPath:      "books_data.json",
			PushOnSave:     true,
			TimeoutSeconds: 30,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration. path names an optional TOML file; an empty
// path skips it. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.AppName = strings.TrimSpace(c.AppName)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Storage.DatabaseURL != "" {
		c.Storage.UseDatabase = true
	}
	if c.Storage.UseDatabase && c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = filepath.Join(c.Storage.DataDir, c.AppName+".sqlite3")
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GamesPath returns the games data file path.
func (c *Config) GamesPath() string {
	return c.dataPath(c.Storage.GamesFile)
}

// BooksPath returns the books data file path.
func (c *Config) BooksPath() string {
	return c.dataPath(c.Storage.BooksFile)
}

func (c *Config) dataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.DataDir, name)
}

// TokenTTL returns the access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// SyncEnabled reports whether GitHub sync is configured.
func (c *Config) SyncEnabled() bool {
	return c.Sync.GitHubToken != "" && c.Sync.Repo != ""
}

// SyncTimeout returns the timeout for a single GitHub request.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Sync.TimeoutSeconds) * time.Second
}

// CreateSample writes the sample configuration to path, refusing to
// overwrite an existing file.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(sampleConfig); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
