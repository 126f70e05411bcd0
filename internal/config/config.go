// Package config loads assembler settings from the environment.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/exercise"
)

// Default settings.
const (
	DefaultExerciseURL = "https://exercises.openstax.org/api/exercises?q=tag:" + exercise.ItemCodePlaceholder
	DefaultConcurrency = 4
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds the settings of one assembly run.
type Config struct {
	ExerciseURL   string // template containing {itemCode}
	ExerciseMatch string // href fragment marking exercise links
	ExerciseToken string // bearer token, empty for anonymous access
	MathMLURL     string // empty disables equation conversion
	Cache         string // cache.Open spec, empty for no cache
	Concurrency   int
	HTTPTimeout   time.Duration
	LogLevel      string
	LogFormat     string
}

// Load reads the configuration from CNXEPUB_* environment variables.
func Load() Config {
	return Config{
		ExerciseURL:   getenv("CNXEPUB_EXERCISE_URL", DefaultExerciseURL),
		ExerciseMatch: getenv("CNXEPUB_EXERCISE_MATCH", exercise.DefaultMatch),
		ExerciseToken: getenv("CNXEPUB_EXERCISE_TOKEN", ""),
		MathMLURL:     getenv("CNXEPUB_MATHML_URL", ""),
		Cache:         getenv("CNXEPUB_CACHE", ""),
		Concurrency:   getenvInt("CNXEPUB_CONCURRENCY", DefaultConcurrency),
		HTTPTimeout:   time.Duration(getenvInt("CNXEPUB_HTTP_TIMEOUT_SECONDS", int(DefaultHTTPTimeout/time.Second))) * time.Second,
		LogLevel:      getenv("CNXEPUB_LOG_LEVEL", "info"),
		LogFormat:     getenv("CNXEPUB_LOG_FORMAT", "text"),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !strings.Contains(c.ExerciseURL, exercise.ItemCodePlaceholder) {
		return errors.NewValidation("exercise URL", "must contain "+exercise.ItemCodePlaceholder)
	}
	if err := validateURL("exercise URL", c.ExerciseURL); err != nil {
		return err
	}
	if c.ExerciseMatch == "" {
		return errors.NewValidation("exercise match", "must not be empty")
	}
	if c.MathMLURL != "" {
		if err := validateURL("MathML URL", c.MathMLURL); err != nil {
			return err
		}
	}
	if c.Concurrency < 1 {
		return errors.NewValidation("concurrency", "must be at least 1")
	}
	if c.HTTPTimeout <= 0 {
		return errors.NewValidation("HTTP timeout", "must be positive")
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, exercise.ItemCodePlaceholder, "x"))
	if err != nil {
		return errors.NewValidation(field, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewValidation(field, "scheme must be http or https")
	}
	if u.Host == "" {
		return errors.NewValidation(field, "missing host")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
