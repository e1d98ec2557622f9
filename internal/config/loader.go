package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every earworms environment variable.
const EnvPrefix = "EARWORMS_"

// LoadOption configures Load.
type LoadOption func(*loadSettings)

type loadSettings struct {
	file   string
	dotenv string
}

// WithFile reads a YAML file. It takes precedence over EARWORMS_CONFIG.
func WithFile(path string) LoadOption {
	return func(s *loadSettings) {
		if path != "" {
			s.file = path
		}
	}
}

// WithDotEnv reads credentials from a dotenv file if it exists. Variables
// already set in the environment win.
func WithDotEnv(path string) LoadOption {
	return func(s *loadSettings) { s.dotenv = path }
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. YAML file from WithFile or EARWORMS_CONFIG
//  3. LASTFM_* and SPOTIFY_* variables, optionally seeded from a .env file
//  4. EARWORMS_* variables
//
// The result is validated.
func Load(ctx context.Context, opts ...LoadOption) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := loadSettings{file: os.Getenv(EnvPrefix + "CONFIG"), dotenv: ".env"}
	for _, opt := range opts {
		opt(&s)
	}

	if s.dotenv != "" {
		if err := godotenv.Load(s.dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, s.dotenv, err)
		}
	}

	k := koanf.New(".")

	if s.file != "" {
		if err := k.Load(file.Provider(s.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, s.file, err)
		}
	}

	// LASTFM_API_KEY -> lastfm_api_key, SPOTIFY_CLIENT_ID -> spotify_client_id.
	for _, prefix := range []string{"LASTFM_", "SPOTIFY_"} {
		if err := k.Load(env.Provider(prefix, ".", strings.ToLower), nil); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// EARWORMS_MIN_REPEATS -> min_repeats (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
