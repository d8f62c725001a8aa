package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configurable minutes settings.
type Config struct {
	HistoryMaxItems      int      `json:"history_max_items" validate:"gte=1"`
	HistoryRetentionDays int      `json:"history_retention_days" validate:"eq=-1|gte=1"` // -1 keeps everything
	Storage              string   `json:"storage" validate:"oneof=file sqlite"`
	DataDir              string   `json:"data_dir"`
	Model                string   `json:"model" validate:"required"`
	APIBaseURL           string   `json:"api_base_url" validate:"omitempty,url"`
	Locale               string   `json:"locale" validate:"required"`
	Socket               string   `json:"socket"`
	DictionaryTimeout    Duration `json:"dictionary_timeout"`
	LogLevel             string   `json:"log_level" validate:"oneof=debug info warn error"`
	LogFile              string   `json:"log_file"`
	MaxRetries           int      `json:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay       Duration `json:"retry_base_delay"`

	// APIKey comes from the environment only and is never written to disk.
	APIKey string `json:"-"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		HistoryMaxItems:      500,
		HistoryRetentionDays: -1,
		Storage:              "file",
		Model:                "gemini-2.5-flash",
		APIBaseURL:           "https://generativelanguage.googleapis.com",
		Locale:               "ja-JP",
		DictionaryTimeout:    Duration{30 * time.Second},
		LogLevel:             "info",
		MaxRetries:           3,
		RetryBaseDelay:       Duration{2 * time.Second},
	}
}

// GlobalPath returns ~/.config/minutes/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "minutes", "config.json"), nil
}

// LoadGlobal reads ~/.config/minutes/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .minutesconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".minutesconfig", false)
}

// SaveGlobal writes cfg to the global config file.
func SaveGlobal(cfg Config) error {
	path, err := GlobalPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	apply(&result, global)
	apply(&result, project)
	return result
}

// apply copies every set field of src over dst.
func apply(dst, src *Config) {
	if src == nil {
		return
	}
	if src.HistoryMaxItems != 0 {
		dst.HistoryMaxItems = src.HistoryMaxItems
	}
	if src.HistoryRetentionDays != 0 {
		dst.HistoryRetentionDays = src.HistoryRetentionDays
	}
	if src.Storage != "" {
		dst.Storage = src.Storage
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.APIBaseURL != "" {
		dst.APIBaseURL = src.APIBaseURL
	}
	if src.Locale != "" {
		dst.Locale = src.Locale
	}
	if src.Socket != "" {
		dst.Socket = src.Socket
	}
	if src.DictionaryTimeout.Duration != 0 {
		dst.DictionaryTimeout = src.DictionaryTimeout
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
	if src.MaxRetries != 0 {
		dst.MaxRetries = src.MaxRetries
	}
	if src.RetryBaseDelay.Duration != 0 {
		dst.RetryBaseDelay = src.RetryBaseDelay
	}
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
