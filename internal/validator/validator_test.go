package validator

import (
	"context"
	"strings"
	"testing"
	"time"

	"screensage/internal/config"
	"screensage/internal/sandbox"
	"screensage/internal/types"
)

// scriptedRunner maps stdin to canned results.
type scriptedRunner struct {
	outputs map[string]*sandbox.RunResult
	err     error
}

func (s *scriptedRunner) Run(ctx context.Context, language types.Language, code, stdin string, timeLimit time.Duration) (*sandbox.RunResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.outputs[stdin]; ok {
		return r, nil
	}
	return &sandbox.RunResult{Stdout: "", ExitCode: 1, Stderr: "no script"}, nil
}

func testValidator(runner sandbox.Runner) *Validator {
	return New(config.DefaultConfig().Validator, runner)
}

func pySolution() *types.GeneratedSolution {
	return &types.GeneratedSolution{
		ID:       "s1",
		Language: types.LangPython,
		Code:     "print(input())",
	}
}

func TestValidatePassAndFail(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]*sandbox.RunResult{
		"a": {Stdout: "1", ExitCode: 0, ElapsedMs: 3},
		"b": {Stdout: "2", ExitCode: 0, ElapsedMs: 4},
	}}
	v := testValidator(runner)

	results := v.Validate(context.Background(), pySolution(), []types.TestCase{
		{Input: "a", ExpectedOutput: "1"},
		{Input: "b", ExpectedOutput: "99"},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Actual != "1" {
		t.Fatalf("first case should pass: %+v", results[0])
	}
	if results[1].Passed {
		t.Fatalf("second case should fail: %+v", results[1])
	}
	if results[0].TestID != "test_0" || results[1].TestID != "test_1" {
		t.Fatalf("test ids must be positional: %+v", results)
	}
}

func TestComparatorCanonicalizesWhitespace(t *testing.T) {
	if !DefaultComparator("  [0, 1]\n", "[0, 1]") {
		t.Fatalf("surrounding whitespace must be ignored")
	}
	if !DefaultComparator("[0,1]", "[0, 1]") {
		t.Fatalf("interior whitespace must canonicalize away")
	}
	if DefaultComparator("[0, 1]", "[1, 0]") {
		t.Fatalf("different values must not compare equal")
	}
}

func TestCustomComparator(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]*sandbox.RunResult{
		"x": {Stdout: "HELLO", ExitCode: 0},
	}}
	v := testValidator(runner).WithComparator(func(expected, actual string) bool {
		return strings.EqualFold(expected, actual)
	})

	results := v.Validate(context.Background(), pySolution(), []types.TestCase{
		{Input: "x", ExpectedOutput: "hello"},
	})
	if !results[0].Passed {
		t.Fatalf("case-insensitive comparator should pass: %+v", results[0])
	}
}

func TestTimeoutMarksCaseFailed(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]*sandbox.RunResult{
		"slow": {Stdout: "", TimedOut: true, ExitCode: -1, ElapsedMs: 5000},
	}}
	v := testValidator(runner)

	results := v.Validate(context.Background(), pySolution(), []types.TestCase{
		{Input: "slow", ExpectedOutput: "1"},
	})
	if results[0].Passed {
		t.Fatalf("timed out case must fail")
	}
	if results[0].Error != "timed out" {
		t.Fatalf("timeout must be recorded: %+v", results[0])
	}
}

func TestRunnerErrorSurfacesAsResult(t *testing.T) {
	runner := &scriptedRunner{err: sandbox.ErrRunnerUnavailable}
	v := testValidator(runner)

	results := v.Validate(context.Background(), pySolution(), []types.TestCase{
		{Input: "a", ExpectedOutput: "1"},
	})
	if len(results) != 1 {
		t.Fatalf("runner errors must not abort validation")
	}
	if results[0].Passed || results[0].Error == "" {
		t.Fatalf("runner error must produce a failing result: %+v", results[0])
	}
}

func TestNonZeroExitFails(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]*sandbox.RunResult{
		"boom": {Stdout: "", Stderr: "Traceback (most recent call last):\nValueError", ExitCode: 1},
	}}
	v := testValidator(runner)

	results := v.Validate(context.Background(), pySolution(), []types.TestCase{
		{Input: "boom", ExpectedOutput: ""},
	})
	if results[0].Passed {
		t.Fatalf("non-zero exit must fail even when output matches")
	}
	if !strings.Contains(results[0].Error, "Traceback") {
		t.Fatalf("stderr first line must be recorded: %+v", results[0])
	}
}

func TestReportScoring(t *testing.T) {
	v := testValidator(&scriptedRunner{})

	all := []types.ValidationResult{{Passed: true}, {Passed: true}}
	report := v.Report(all)
	if report.SuccessRate != 1.0 || report.PerformanceScore != 10.0 || !report.CorrectnessVerified {
		t.Fatalf("perfect run mis-scored: %+v", report)
	}

	mixed := []types.ValidationResult{
		{Passed: true}, {Passed: true}, {Passed: true}, {Passed: true}, {Passed: false},
	}
	report = v.Report(mixed)
	if report.SuccessRate != 0.8 || report.PerformanceScore != 9.0 || !report.CorrectnessVerified {
		t.Fatalf("4/5 run mis-scored: %+v", report)
	}

	bad := []types.ValidationResult{{Passed: true}, {Passed: false}, {Passed: false}}
	report = v.Report(bad)
	if report.PerformanceScore != 7.0 || report.CorrectnessVerified {
		t.Fatalf("1/3 run mis-scored: %+v", report)
	}

	empty := v.Report(nil)
	if empty.SuccessRate != 1.0 || !empty.CorrectnessVerified {
		t.Fatalf("no cases means vacuous success: %+v", empty)
	}
}
