package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the runtime knobs of the synchronization server and the
// worker pool, loaded from a YAML file. Anything unset falls back to a
// default.
type Settings struct {
	// Port the synchronization server listens on.
	Port int `yaml:"port"`
	// Workers caps the number of worker processes. 0 means one per CPU core.
	Workers int `yaml:"workers"`
	// RunTimeout is the wall-clock deadline for a single run.
	RunTimeout time.Duration `yaml:"run_timeout"`
	// RunAttempts is how many times a timed-out run is tried in total.
	RunAttempts int `yaml:"run_attempts"`
	// DataFolder is where experiment output folders are created.
	DataFolder string `yaml:"data_folder"`
	// Quiet suppresses progress output.
	Quiet bool `yaml:"quiet"`
}

// DefaultSettings mirror the defaults of the original deployment: port 5000,
// one worker per core, a 120s run deadline tried twice.
func DefaultSettings() Settings {
	return Settings{
		Port:        5000,
		Workers:     runtime.NumCPU(),
		RunTimeout:  120 * time.Second,
		RunAttempts: 2,
		DataFolder:  "data",
	}
}

// LoadSettings reads a settings file. An empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings file: %w", err)
	}
	if settings.Workers <= 0 {
		settings.Workers = runtime.NumCPU()
	}
	if settings.RunAttempts <= 0 {
		settings.RunAttempts = 1
	}
	return settings, nil
}
