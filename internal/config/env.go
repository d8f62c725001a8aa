package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. MINUTES_MODEL.
const EnvPrefix = "MINUTES"

// Env holds settings read from the environment. GEMINI_API_KEY is accepted
// without the prefix as well.
type Env struct {
	APIKey   string `envconfig:"GEMINI_API_KEY"`
	Model    string `envconfig:"MODEL"`
	Socket   string `envconfig:"SOCKET"`
	Storage  string `envconfig:"STORAGE"`
	DataDir  string `envconfig:"DATA_DIR"`
	LogLevel string `envconfig:"LOG_LEVEL"`
}

// LoadEnv loads the optional dotenv files, then reads the environment.
// Variables already set in the process take precedence over dotenv files.
func LoadEnv(dotenv ...string) (Env, error) {
	var present []string
	for _, p := range dotenv {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		} else if !errors.Is(err, os.ErrNotExist) {
			return Env{}, err
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Env{}, fmt.Errorf("loading %v: %w", present, err)
		}
	}

	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("reading environment: %w", err)
	}
	return env, nil
}

// ApplyEnv overlays set environment values on cfg.
func ApplyEnv(cfg Config, env Env) Config {
	if env.APIKey != "" {
		cfg.APIKey = env.APIKey
	}
	if env.Model != "" {
		cfg.Model = env.Model
	}
	if env.Socket != "" {
		cfg.Socket = env.Socket
	}
	if env.Storage != "" {
		cfg.Storage = env.Storage
	}
	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	return cfg
}
