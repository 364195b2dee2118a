// Package config handles configuration loading and validation for hoist.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hoist/internal/audit"
	"hoist/internal/planner"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidYAML     ConfigErrorType = "INVALID_YAML"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		if e.Message != "" {
			return fmt.Sprintf("configuration file not readable: %s: %s", e.Path, e.Message)
		}
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidYAML:
		return fmt.Sprintf("invalid YAML in configuration file: %s", e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// BackupConfig controls the snapshot taken before a run.
type BackupConfig struct {
	Enabled bool `yaml:"enabled"`
	Verify  bool `yaml:"verify"`
}

// Configuration holds all settings for hoist. Enum fields use the lowercase
// names accepted by the planner's Parse functions.
type Configuration struct {
	Depths      []int               `yaml:"depths"`
	Mode        string              `yaml:"mode"`
	DeleteRange string              `yaml:"deleteRange"`
	Destination string              `yaml:"destination"`
	Backup      BackupConfig        `yaml:"backup"`
	Journal     audit.JournalConfig `yaml:"journal"`
	LogFile     string              `yaml:"logFile"`
	Watch       bool                `yaml:"watch"`
}

// Default returns the configuration used when no file is present.
func Default() *Configuration {
	return &Configuration{
		Depths:      []int{2},
		Mode:        planner.MoveAndDeleteAll.String(),
		DeleteRange: planner.AllEmpty.String(),
		Destination: planner.Root.String(),
		Backup:      BackupConfig{Enabled: true},
		Journal:     audit.DefaultJournalConfig(),
		Watch:       true,
	}
}

// Validate checks the fields a run cannot do without.
func (c *Configuration) Validate() error {
	if _, err := c.Request(); err != nil {
		return &ConfigError{Type: ValidationError, Message: err.Error()}
	}
	if c.Journal.RotationSize < 0 {
		return &ConfigError{Type: ValidationError, Message: "journal.rotationSizeBytes cannot be negative"}
	}
	return nil
}

// ApplyJournalDefaults fills a blank journal directory.
func (c *Configuration) ApplyJournalDefaults() {
	if c.Journal.Directory == "" {
		c.Journal.Directory = audit.DefaultJournalConfig().Directory
	}
}

// Request converts the plan settings into a planner.Request.
func (c *Configuration) Request() (planner.Request, error) {
	mode, err := planner.ParseOperationMode(c.Mode)
	if err != nil {
		return planner.Request{}, err
	}
	deleteRange, err := planner.ParseDeleteRange(c.DeleteRange)
	if err != nil {
		return planner.Request{}, err
	}
	destination, err := planner.ParseDestinationMode(c.Destination)
	if err != nil {
		return planner.Request{}, err
	}
	if len(c.Depths) == 0 {
		return planner.Request{}, planner.ErrNoDepths
	}
	for _, d := range c.Depths {
		if d < 1 {
			return planner.Request{}, fmt.Errorf("depth must be at least 1, got %d", d)
		}
	}
	return planner.Request{
		Depths:      append([]int(nil), c.Depths...),
		Mode:        mode,
		DeleteRange: deleteRange,
		Destination: destination,
	}, nil
}

// Load reads and parses a configuration file. Fields missing from the file
// keep their Default values.
func Load(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Type: FileNotFound, Path: filePath}
		}
		return nil, &ConfigError{Type: FileNotFound, Path: filePath, Message: err.Error()}
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &ConfigError{Type: InvalidYAML, Path: filePath, Message: err.Error()}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyJournalDefaults()

	return config, nil
}

// LoadOrDefault loads the file if it exists, or returns Default otherwise.
func LoadOrDefault(filePath string) (*Configuration, error) {
	config, err := Load(filePath)
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Type == FileNotFound && cfgErr.Message == "" {
		return Default(), nil
	}
	return config, err
}

// Save serializes and writes a configuration to the given path.
func Save(config *Configuration, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return &ConfigError{Type: InvalidYAML, Message: err.Error()}
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("failed to write configuration file: %s", err.Error()),
		}
	}

	return nil
}
