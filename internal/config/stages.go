package config

// ChangeDetectorConfig tunes frame change detection and deduplication.
type ChangeDetectorConfig struct {
	BufferSize                 int     `yaml:"buffer_size"`
	PixelDiffThreshold         float64 `yaml:"pixel_diff_threshold"`
	TextDiffThreshold          float64 `yaml:"text_diff_threshold"`
	SignificantChangeThreshold float64 `yaml:"significant_change_threshold"`
	AdaptiveThreshold          bool    `yaml:"adaptive_threshold"`
	HashComparison             bool    `yaml:"hash_comparison"`
	RegionAnalysis             bool    `yaml:"region_analysis"`
	TextComparison             bool    `yaml:"text_comparison"`
}

// OCRConfig tunes the OCR engine and its preprocessing.
type OCRConfig struct {
	// Engine selects the word recognizer backend ("tesseract" or "stub").
	Engine              string  `yaml:"engine"`
	MinConfidence       float64 `yaml:"min_confidence"`
	ScaleFactor         float64 `yaml:"scale_factor"`
	DPITarget           int     `yaml:"dpi_target"`
	TimeoutMs           int     `yaml:"timeout_ms"`
	ContrastEnhancement bool    `yaml:"contrast_enhancement"`
	Denoise             bool    `yaml:"denoise"`
	AdaptiveBinarize    bool    `yaml:"adaptive_binarize"`
}

// VisionConfig tunes the screen classifier.
type VisionConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// DetectorConfig tunes coding problem detection.
type DetectorConfig struct {
	MinConfidence        float64 `yaml:"min_confidence"`
	ContextLinesBefore   int     `yaml:"context_lines_before"`
	ContextLinesAfter    int     `yaml:"context_lines_after"`
	ErrorDetection       bool    `yaml:"error_detection"`
	AlgorithmDetection   bool    `yaml:"algorithm_detection"`
	TestFailureDetection bool    `yaml:"test_failure_detection"`
	HackerRankDetection  bool    `yaml:"hackerrank_detection"`
	LeetCodeDetection    bool    `yaml:"leetcode_detection"`
	ScreenBufferSize     int     `yaml:"screen_buffer_size"`
	// FingerprintWindowSecs bounds how long a fingerprint suppresses
	// re-emission of the same problem.
	FingerprintWindowSecs int `yaml:"fingerprint_window_secs"`
}

// SolutionConfig tunes LLM solution generation.
type SolutionConfig struct {
	// Provider selects the transport: "ollama", "openai", or "anthropic".
	Provider        string   `yaml:"provider"`
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	PreferredModels []string `yaml:"preferred_models"`
	MaxTokens       int      `yaml:"max_tokens"`
	Temperature     float64  `yaml:"temperature"`
	CacheCapacity   int      `yaml:"cache_capacity"`
	TimeoutMs       int      `yaml:"timeout_ms"`
}

// ValidatorConfig tunes sandboxed test validation.
type ValidatorConfig struct {
	TimeLimitMs    int     `yaml:"time_limit_ms"`
	MinSuccessRate float64 `yaml:"min_success_rate"`
	// Parallelism bounds how many test cases run concurrently.
	Parallelism  int    `yaml:"parallelism"`
	PythonBinary string `yaml:"python_binary"`
}

// CoordinatorConfig tunes the pipeline coordinator.
type CoordinatorConfig struct {
	TurnTimeoutMs      int  `yaml:"turn_timeout_ms"`
	DropOnBackpressure bool `yaml:"drop_on_backpressure"`
	EventBusCapacity   int  `yaml:"event_bus_capacity"`
}
