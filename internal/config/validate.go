package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return errors.New("app_name must be set")
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Auth.MultiUser && !c.Storage.UseDatabase {
		return errors.New("multi-user mode requires the database backend (set USE_DATABASE or DATABASE_URL)")
	}
	if !c.Storage.UseDatabase {
		if c.Storage.GamesFile == "" || c.Storage.BooksFile == "" {
			return errors.New("storage.games_file and storage.books_file must be set")
		}
		if c.GamesPath() == c.BooksPath() {
			return errors.New("games and books must use different data files")
		}
	}
	if c.Auth.TokenTTLHours <= 0 {
		return errors.New("auth.token_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.Max < 1 || c.Limits.Max > 20 {
		return fmt.Errorf("limits.max must be between 1 and 20, got %d", c.Limits.Max)
	}
	if c.Limits.Default < 1 || c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be between 1 and %d, got %d", c.Limits.Max, c.Limits.Default)
	}
	return nil
}

func (c *Config) validateSync() error {
	if !c.SyncEnabled() {
		return nil
	}
	if c.Storage.UseDatabase {
		return errors.New("github sync only works with the JSON file backend")
	}
	owner, name, ok := strings.Cut(c.Sync.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("sync.repo must look like owner/name, got %q", c.Sync.Repo)
	}
	if c.Sync.Branch == "" {
		return errors.New("sync.branch must be set")
	}
	if c.Sync.TimeoutSeconds <= 0 {
		return errors.New("sync.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be auto, text or json, got %q", c.Logging.Format)
	}
	return nil
}
