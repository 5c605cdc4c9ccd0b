package types

import (
	"fmt"
	"hash/fnv"
	"time"
)

// ProblemType classifies a detected coding problem.
type ProblemType string

const (
	ProblemAlgorithmChallenge ProblemType = "AlgorithmChallenge"
	ProblemCompilationError   ProblemType = "CompilationError"
	ProblemRuntimeError       ProblemType = "RuntimeError"
	ProblemTestFailure        ProblemType = "TestFailure"
	ProblemDebugChallenge     ProblemType = "DebugChallenge"
	ProblemOptimization       ProblemType = "OptimizationProblem"
)

// Platform is the origin environment for a detected problem.
type Platform string

const (
	PlatformLeetCode   Platform = "LeetCode"
	PlatformHackerRank Platform = "HackerRank"
	PlatformCodeforces Platform = "Codeforces"
	PlatformLocalIDE   Platform = "LocalIDE"
	PlatformTerminal   Platform = "Terminal"
	PlatformJupyter    Platform = "JupyterNotebook"
	PlatformUnknown    Platform = "Unknown"
)

// Language is a detected programming language.
type Language string

const (
	LangPython     Language = "Python"
	LangJavaScript Language = "JavaScript"
	LangTypeScript Language = "TypeScript"
	LangJava       Language = "Java"
	LangCpp        Language = "C++"
	LangRust       Language = "Rust"
	LangGo         Language = "Go"
	LangUnknown    Language = "Unknown"
)

// CodeContext captures the code visible around a detected problem.
type CodeContext struct {
	VisibleCode     string   `json:"visible_code"`
	FocusedFunction string   `json:"focused_function,omitempty"`
	Imports         []string `json:"imports,omitempty"`
	ClassContext    string   `json:"class_context,omitempty"`
	LineStart       int      `json:"line_start,omitempty"`
	LineEnd         int      `json:"line_end,omitempty"`
	SelectedText    string   `json:"selected_text,omitempty"`
}

// ErrorDetails carries the parsed pieces of a compiler or runtime error.
type ErrorDetails struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	StackTrace  string   `json:"stack_trace,omitempty"`
	Line        int      `json:"line,omitempty"`
	Column      int      `json:"column,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TestCase is one sample input/output pair harvested from the screen or a
// test runner's output.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output,omitempty"`
	Passed         *bool  `json:"passed,omitempty"`
	ExecMs         int64  `json:"exec_ms,omitempty"`
}

// DetectedProblem is the detector's structured output for one coding
// problem visible on screen. Confidence is always at or above the
// configured detector floor when emitted.
type DetectedProblem struct {
	ID           string        `json:"id"`
	Type         ProblemType   `json:"type"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	CodeContext  CodeContext   `json:"code_context"`
	ErrorDetails *ErrorDetails `json:"error_details,omitempty"`
	Platform     Platform      `json:"platform,omitempty"`
	Language     Language      `json:"language"`
	StarterCode  string        `json:"starter_code,omitempty"`
	TestCases    []TestCase    `json:"test_cases,omitempty"`
	Constraints  []string      `json:"constraints,omitempty"`
	Confidence   float64       `json:"confidence"`
	DetectedAt   time.Time     `json:"detected_at"`
	ScreenRegion BoundingBox   `json:"screen_region"`
}

// Fingerprint is a deterministic digest over the problem's identifying
// fields, used as the solution cache key and for cross-frame dedup.
func (p *DetectedProblem) Fingerprint() string {
	h := fnv.New64a()
	h.Write([]byte(p.Type))
	h.Write([]byte{0})
	h.Write([]byte(p.Description))
	h.Write([]byte{0})
	h.Write([]byte(p.Language))
	h.Write([]byte{0})
	h.Write([]byte(p.StarterCode))
	return fmt.Sprintf("%016x", h.Sum64())
}
