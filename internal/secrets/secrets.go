// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves credentials for the analysis provider and the
// registry clients. A secrets directory holds one plain-text file per
// secret: the filename is the key name and the trimmed contents are the
// value. Values not found there fall back to the environment, which may be
// seeded from a .env file.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Known secret files and the environment variables that back them.
const (
	AnthropicKeyFile  = "anthropic-api-key"
	OpenAlexEmailFile = "openalex-email"

	AnthropicKeyEnv  = "ANTHROPIC_API_KEY"
	OpenAlexEmailEnv = "OPENALEX_EMAIL"
)

// Store is the set of secrets read from a directory.
type Store map[string]string

// Load reads all files in dir. A missing directory is not an error and
// yields an empty Store. Unreadable files are logged and skipped.
func Load(dir string, logger zerolog.Logger) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	store := make(Store)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			store[name] = value
		}
	}
	return store, nil
}

// Resolve returns the first non-empty value among explicit, the secret
// file name, and the environment variable env.
func (s Store) Resolve(explicit, name, env string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := s[name]; v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(env))
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}
