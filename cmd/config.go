package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/pagesim/sim"
)

// Environment variables read (after an optional .env file) before the YAML
// config and the CLI flags are applied.
const (
	envScheme  = "PAGESIM_SCHEME"
	envSeed    = "PAGESIM_SEED"
	envTimeout = "PAGESIM_TIMEOUT"
	envDebug   = "PAGESIM_DEBUG"
	envLogFile = "PAGESIM_LOG_FILE"
)

// loadDotEnv loads path into the process environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with any PAGESIM_* variables that are set.
func applyEnv(cfg *sim.Config) error {
	if v, ok := os.LookupEnv(envScheme); ok {
		cfg.Scheme = v
	}
	if v, ok := os.LookupEnv(envSeed); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envSeed, err)
		}
		cfg.Seed = seed
	}
	if v, ok := os.LookupEnv(envTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envTimeout, err)
		}
		cfg.Timeout = d
	}
	if v, ok := os.LookupEnv(envDebug); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envDebug, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// loadConfigFile decodes a YAML simulation config over cfg.
// Uses strict field checking: typos must cause errors.
func loadConfigFile(path string, cfg *sim.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// marshalConfig renders cfg as YAML, in the format loadConfigFile accepts.
func marshalConfig(cfg sim.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}
