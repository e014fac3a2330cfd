package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given .env files (default
// ".env") into the environment without overriding variables that are
// already set. Missing files are skipped.
func LoadDotEnv(log *slog.Logger, paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		switch {
		case err == nil:
			log.Debug("config: loaded .env file", slog.String("path", p))
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return fmt.Errorf("config: failed to load %s: %w", p, err)
		}
	}
	return nil
}
