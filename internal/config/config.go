// Package config defines earworms configuration and its validation.
//
// Keys are flat and match the koanf tags below; the same names are used in
// YAML files and, upper-cased with the EARWORMS_ prefix, in the environment.
package config

import (
	"fmt"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// EventsFile is the CSV scrobble log.
	EventsFile string `koanf:"events_file"`
	// CorrectionsFile is the CSV correction cache.
	CorrectionsFile string `koanf:"corrections_file"`

	// Detection thresholds. Consecutive runs qualify at >= MinRepeats, windows
	// at strictly more than their MinCount.
	MinRepeats    int `koanf:"min_repeats"`
	MinCountWeek  int `koanf:"min_count_week"`
	MinCountMonth int `koanf:"min_count_month"`
	MinCountYear  int `koanf:"min_count_year"`

	// Window lengths in days.
	WindowDaysWeek  int `koanf:"window_days_week"`
	WindowDaysMonth int `koanf:"window_days_month"`
	WindowDaysYear  int `koanf:"window_days_year"`

	// Model weights.
	WeightConsecutive int `koanf:"weight_consecutive"`
	WeightWeek        int `koanf:"weight_week"`
	WeightMonth       int `koanf:"weight_month"`
	WeightYear        int `koanf:"weight_year"`

	// Per-model caps applied before merging, and the playlist cap.
	LimitRepeats int `koanf:"limit_repeats"`
	LimitWeek    int `koanf:"limit_week"`
	LimitMonth   int `koanf:"limit_month"`
	LimitYear    int `koanf:"limit_year"`
	LimitTotal   int `koanf:"limit_total"`

	ParallelDetectors bool `koanf:"parallel_detectors"`

	PlaylistName      string `koanf:"playlist_name"`
	PlaylistPublic    bool   `koanf:"playlist_public"`
	PlaylistBatchSize int    `koanf:"playlist_batch_size"`
	ResolveWorkers    int    `koanf:"resolve_workers"`

	LastfmAPIKey     string  `koanf:"lastfm_api_key"`
	LastfmUsername   string  `koanf:"lastfm_username"`
	LastfmBaseURL    string  `koanf:"lastfm_base_url"`
	LastfmPageSize   int     `koanf:"lastfm_page_size"`
	LastfmRatePerSec float64 `koanf:"lastfm_rate_per_sec"`

	SpotifyClientID     string  `koanf:"spotify_client_id"`
	SpotifyClientSecret string  `koanf:"spotify_client_secret"`
	SpotifyRedirectURI  string  `koanf:"spotify_redirect_uri"`
	SpotifyTokenFile    string  `koanf:"spotify_token_file"`
	SpotifyRatePerSec   float64 `koanf:"spotify_rate_per_sec"`

	// MetricsFile, when set, receives a Prometheus text dump after each run.
	MetricsFile string `koanf:"metrics_file"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		EventsFile:      "lastfm_scrobbles.csv",
		CorrectionsFile: "alternative_titles.csv",

		MinRepeats:      6,
		MinCountWeek:    30,
		MinCountMonth:   50,
		MinCountYear:    200,
		WindowDaysWeek:  7,
		WindowDaysMonth: 30,
		WindowDaysYear:  365,

		WeightConsecutive: 10,
		WeightWeek:        5,
		WeightMonth:       3,
		WeightYear:        1,

		LimitRepeats: 200,
		LimitWeek:    200,
		LimitMonth:   200,
		LimitYear:    200,
		LimitTotal:   200,

		ParallelDetectors: true,

		PlaylistName:      "Last.fm Weighted Combined",
		PlaylistPublic:    true,
		PlaylistBatchSize: 50,
		ResolveWorkers:    4,

		LastfmBaseURL:    "https://ws.audioscrobbler.com/2.0/",
		LastfmPageSize:   200,
		LastfmRatePerSec: 4,

		SpotifyRedirectURI: "http://127.0.0.1:8888/callback",
		SpotifyTokenFile:   ".spotify_token.json",
		SpotifyRatePerSec:  5,
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	positive := func(name string, v int) {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", name, v))
		}
	}
	nonNegative := func(name string, v int) {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative, got %d", name, v))
		}
	}

	positive("min_repeats", c.MinRepeats)
	nonNegative("min_count_week", c.MinCountWeek)
	nonNegative("min_count_month", c.MinCountMonth)
	nonNegative("min_count_year", c.MinCountYear)
	positive("window_days_week", c.WindowDaysWeek)
	positive("window_days_month", c.WindowDaysMonth)
	positive("window_days_year", c.WindowDaysYear)
	positive("weight_consecutive", c.WeightConsecutive)
	positive("weight_week", c.WeightWeek)
	positive("weight_month", c.WeightMonth)
	positive("weight_year", c.WeightYear)
	positive("limit_repeats", c.LimitRepeats)
	positive("limit_week", c.LimitWeek)
	positive("limit_month", c.LimitMonth)
	positive("limit_year", c.LimitYear)
	positive("limit_total", c.LimitTotal)
	positive("resolve_workers", c.ResolveWorkers)

	if c.PlaylistBatchSize < 1 || c.PlaylistBatchSize > 100 {
		problems = append(problems, fmt.Sprintf("playlist_batch_size must be within 1..100, got %d", c.PlaylistBatchSize))
	}
	if c.LastfmPageSize < 1 || c.LastfmPageSize > 200 {
		problems = append(problems, fmt.Sprintf("lastfm_page_size must be within 1..200, got %d", c.LastfmPageSize))
	}
	if c.EventsFile == "" {
		problems = append(problems, "events_file must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format must be text or json, got %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
