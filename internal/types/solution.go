package types

import "time"

// ValidationResult is the outcome of running one test case against a
// generated solution in the sandbox.
type ValidationResult struct {
	TestID   string `json:"test_id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	ExecMs   int64  `json:"exec_ms,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ValidationReport aggregates the per-case results for one solution.
type ValidationReport struct {
	Results             []ValidationResult `json:"results"`
	SuccessRate         float64            `json:"success_rate"`
	PerformanceScore    float64            `json:"performance_score"`
	CorrectnessVerified bool               `json:"correctness_verified"`
}

// GeneratedSolution is the solver's structured output for one problem.
// Confidence starts as the solver's structural-completeness score; when
// test cases are validated, the pipeline coordinator replaces it with the
// mean of that score and the success rate. Validation evidence lives in
// TestResults.
type GeneratedSolution struct {
	ID              string             `json:"id"`
	ProblemID       string             `json:"problem_id"`
	Code            string             `json:"code"`
	Language        Language           `json:"language"`
	Explanation     string             `json:"explanation,omitempty"`
	TimeComplexity  string             `json:"time_complexity,omitempty"`
	SpaceComplexity string             `json:"space_complexity,omitempty"`
	TestResults     []ValidationResult `json:"test_results,omitempty"`
	Confidence      float64            `json:"confidence"`
	GenerationMs    int64              `json:"generation_ms"`
	ModelUsed       string             `json:"model_used"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// PerformanceMetrics records per-stage timings for one pipeline turn.
type PerformanceMetrics struct {
	OcrMs        int64 `json:"ocr_ms"`
	VisionMs     int64 `json:"vision_ms"`
	DetectionMs  int64 `json:"detection_ms"`
	LLMMs        int64 `json:"llm_ms"`
	TotalMs      int64 `json:"total_ms"`
	MeetsTargets bool  `json:"meets_targets"`
}
