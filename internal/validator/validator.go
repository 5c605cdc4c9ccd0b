// Package validator runs a generated solution against its problem's test
// cases in the sandbox and scores the outcome.
package validator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"screensage/internal/config"
	"screensage/internal/logging"
	"screensage/internal/sandbox"
	"screensage/internal/types"
)

// Comparator decides whether an actual output satisfies the expected one.
type Comparator func(expected, actual string) bool

// DefaultComparator compares canonicalized outputs: equal after trimming
// surrounding whitespace, or equal once all whitespace is removed (screen
// harvested expectations often lose or gain spaces inside literals).
func DefaultComparator(expected, actual string) bool {
	if trimSpace(expected) == trimSpace(actual) {
		return true
	}
	return stripSpace(expected) == stripSpace(actual)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func stripSpace(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			b = append(b, s[i])
		}
	}
	return string(b)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Validator executes test cases with a bounded degree of parallelism.
type Validator struct {
	cfg     config.ValidatorConfig
	runner  sandbox.Runner
	compare Comparator
}

// New creates a validator with the default comparator.
func New(cfg config.ValidatorConfig, runner sandbox.Runner) *Validator {
	return &Validator{cfg: cfg, runner: runner, compare: DefaultComparator}
}

// WithComparator overrides the per-problem output comparator.
func (v *Validator) WithComparator(compare Comparator) *Validator {
	v.compare = compare
	return v
}

// Validate runs every test case against the solution. Runner-level errors
// become failing results with the error recorded rather than aborting the
// batch.
func (v *Validator) Validate(ctx context.Context, solution *types.GeneratedSolution, cases []types.TestCase) []types.ValidationResult {
	if len(cases) == 0 {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryValidator, "solution validation")
	defer timer.Stop()

	timeLimit := time.Duration(v.cfg.TimeLimitMs) * time.Millisecond
	results := make([]types.ValidationResult, len(cases))

	parallelism := v.cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, tc := range cases {
		g.Go(func() error {
			results[i] = v.runCase(ctx, solution, tc, i, timeLimit)
			return nil
		})
	}
	g.Wait()
	return results
}

func (v *Validator) runCase(ctx context.Context, solution *types.GeneratedSolution, tc types.TestCase, index int, timeLimit time.Duration) types.ValidationResult {
	result := types.ValidationResult{
		TestID:   fmt.Sprintf("test_%d", index),
		Input:    tc.Input,
		Expected: tc.ExpectedOutput,
	}

	run, err := v.runner.Run(ctx, solution.Language, solution.Code, tc.Input, timeLimit)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Actual = run.Stdout
	result.ExecMs = run.ElapsedMs
	switch {
	case run.TimedOut:
		result.Error = "timed out"
	case run.ExitCode != 0:
		result.Error = firstLine(run.Stderr)
	default:
		result.Passed = v.compare(tc.ExpectedOutput, run.Stdout)
	}
	return result
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if s == "" {
		return "non-zero exit"
	}
	return s
}

// Report aggregates results into the success rate, a 0-10 performance
// score, and the correctness verdict.
func (v *Validator) Report(results []types.ValidationResult) types.ValidationReport {
	report := types.ValidationReport{Results: results}
	if len(results) == 0 {
		report.SuccessRate = 1.0
		report.PerformanceScore = 10.0
		report.CorrectnessVerified = 1.0 >= v.cfg.MinSuccessRate
		return report
	}

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	report.SuccessRate = float64(passed) / float64(len(results))

	score := 10.0
	if report.SuccessRate < 0.8 {
		score -= 3
	} else if report.SuccessRate < 1.0 {
		score -= 1
	}
	report.PerformanceScore = score
	report.CorrectnessVerified = report.SuccessRate >= v.cfg.MinSuccessRate
	return report
}
