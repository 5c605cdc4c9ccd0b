// Package config loads and validates screensage configuration.
// Configuration is a YAML file merged over DefaultConfig(), with a small
// set of SCREENSAGE_* environment overrides applied last.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all screensage configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace is the directory holding the database, logs, and saved
	// frames. Defaults to ".screensage" under the current directory.
	Workspace string `yaml:"workspace"`

	ChangeDetector ChangeDetectorConfig `yaml:"change_detector"`
	OCR            OCRConfig            `yaml:"ocr"`
	Vision         VisionConfig         `yaml:"vision"`
	Detector       DetectorConfig       `yaml:"detector"`
	Solution       SolutionConfig       `yaml:"solution"`
	Validator      ValidatorConfig      `yaml:"validator"`
	Coordinator    CoordinatorConfig    `yaml:"coordinator"`
	Store          StoreConfig          `yaml:"store"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	// Path to the database file. Relative paths are resolved against the
	// workspace directory.
	Path string `yaml:"path"`
}

// LoggingConfig mirrors the category logger's settings.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "screensage",
		Version:   "0.3.0",
		Workspace: ".screensage",

		ChangeDetector: ChangeDetectorConfig{
			BufferSize:                 10,
			PixelDiffThreshold:         0.05,
			TextDiffThreshold:          0.10,
			SignificantChangeThreshold: 0.15,
			AdaptiveThreshold:          true,
			HashComparison:             true,
			RegionAnalysis:             true,
			TextComparison:             true,
		},

		OCR: OCRConfig{
			Engine:              "tesseract",
			MinConfidence:       0.3,
			ScaleFactor:         0.8,
			DPITarget:           150,
			TimeoutMs:           10000,
			ContrastEnhancement: true,
			Denoise:             false,
			AdaptiveBinarize:    false,
		},

		Vision: VisionConfig{
			TimeoutMs: 5000,
		},

		Detector: DetectorConfig{
			MinConfidence:         0.7,
			ContextLinesBefore:    10,
			ContextLinesAfter:     10,
			ErrorDetection:        true,
			AlgorithmDetection:    true,
			TestFailureDetection:  true,
			HackerRankDetection:   true,
			LeetCodeDetection:     true,
			ScreenBufferSize:      10,
			FingerprintWindowSecs: 300,
		},

		Solution: SolutionConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			PreferredModels: []string{
				"devstral:latest",
				"llama3.2:3b",
			},
			MaxTokens:     2048,
			Temperature:   0.3,
			CacheCapacity: 100,
			TimeoutMs:     30000,
		},

		Validator: ValidatorConfig{
			TimeLimitMs:    5000,
			MinSuccessRate: 0.8,
			Parallelism:    1,
			PythonBinary:   "python3",
		},

		Coordinator: CoordinatorConfig{
			TurnTimeoutMs:      60000,
			DropOnBackpressure: true,
			EventBusCapacity:   64,
		},

		Store: StoreConfig{
			Path: "screensage.db",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads the YAML file at path (if it exists) over the defaults and
// applies environment overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabasePath resolves the store path against the workspace.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Workspace, c.Store.Path)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChangeDetector.BufferSize < 1 {
		return fmt.Errorf("change_detector.buffer_size must be >= 1")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be in [0,1]")
	}
	if c.Validator.MinSuccessRate < 0 || c.Validator.MinSuccessRate > 1 {
		return fmt.Errorf("validator.min_success_rate must be in [0,1]")
	}
	if len(c.Solution.PreferredModels) == 0 {
		return fmt.Errorf("solution.preferred_models must not be empty")
	}
	if c.Coordinator.EventBusCapacity < 1 {
		return fmt.Errorf("coordinator.event_bus_capacity must be >= 1")
	}
	return nil
}

// applyEnvOverrides maps a small set of environment variables onto the
// config. Variables win over both defaults and the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCREENSAGE_WORKSPACE"); v != "" {
		c.Workspace = v
	}
	if v := os.Getenv("SCREENSAGE_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SCREENSAGE_LLM_BASE_URL"); v != "" {
		c.Solution.BaseURL = v
	}
	if v := os.Getenv("SCREENSAGE_LLM_PROVIDER"); v != "" {
		c.Solution.Provider = v
	}
	if v := os.Getenv("SCREENSAGE_LLM_API_KEY"); v != "" {
		c.Solution.APIKey = v
	}
	if v := os.Getenv("SCREENSAGE_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}
