package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"screensage/internal/changedetect"
	"screensage/internal/config"
	"screensage/internal/detector"
	"screensage/internal/ocr"
	"screensage/internal/sandbox"
	"screensage/internal/solver"
	"screensage/internal/store"
	"screensage/internal/types"
	"screensage/internal/validator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeOCR returns a canned result and counts calls.
type fakeOCR struct {
	result *types.OcrResult
	calls  int32
}

func (f *fakeOCR) Extract(ctx context.Context, img image.Image) (*types.OcrResult, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.result, nil
}

// fakeVision returns a canned analysis.
type fakeVision struct {
	analysis *types.ScreenAnalysis
	calls    int32
}

func (f *fakeVision) Analyze(ctx context.Context, img image.Image, appHint string) (*types.ScreenAnalysis, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.analysis, nil
}

// scriptedLLM returns one canned response for every model and counts
// invocations.
type scriptedLLM struct {
	response string
	calls    int32
}

func (s *scriptedLLM) Complete(ctx context.Context, req solver.LLMRequest) (*solver.LLMResponse, error) {
	atomic.AddInt32(&s.calls, 1)
	return &solver.LLMResponse{Content: s.response}, nil
}

// echoRunner pretends every execution printed the expected Two Sum answer.
type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, language types.Language, code, stdin string, timeLimit time.Duration) (*sandbox.RunResult, error) {
	return &sandbox.RunResult{Stdout: "[0, 1]", ExitCode: 0, ElapsedMs: 2}, nil
}

// wrongRunner prints an answer that never matches.
type wrongRunner struct{}

func (wrongRunner) Run(ctx context.Context, language types.Language, code, stdin string, timeLimit time.Duration) (*sandbox.RunResult, error) {
	return &sandbox.RunResult{Stdout: "[9, 9]", ExitCode: 0, ElapsedMs: 2}, nil
}

const twoSumResponse = "```solution\n" +
	"def twoSum(nums, target):\n" +
	"    seen = {}\n" +
	"    for i, n in enumerate(nums):\n" +
	"        if target - n in seen:\n" +
	"            return [seen[target - n], i]\n" +
	"        seen[n] = i\n" +
	"```\n\n" +
	"```explanation\nHash map of complements; one pass over the array with O(1) lookups.\n```\n\n" +
	"```time_complexity\nO(n)\n```\n\n" +
	"```space_complexity\nO(n)\n```\n"

func twoSumOcr() *types.OcrResult {
	texts := []string{
		"1. Two Sum",
		"LeetCode Problem of the Day",
		"Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target. You may assume that each input would have exactly one solution.",
		"Example 1:",
		"Input: nums = [2,7,11,15], target = 9",
		"Output: [0,1]",
		"Explanation: Because nums[0] + nums[1] == 9, we return [0, 1].",
		"Constraints: 2 <= nums.length <= 10^4",
		"class Solution:\n    def twoSum(self, nums, target):\n        pass",
	}
	result := &types.OcrResult{
		Layout:        types.ScreenLayout{Resolution: [2]int{1920, 1080}},
		ConfidenceMap: map[string]float64{"overall": 0.9},
	}
	y := 40.0
	for i, text := range texts {
		result.Paragraphs = append(result.Paragraphs, types.Paragraph{
			ID:           fmt.Sprintf("para_%d", i),
			Text:         text,
			Box:          types.BoundingBox{X: 100, Y: y, Width: 800, Height: 60},
			SemanticType: ocr.ClassifyParagraph(text),
			ReadingOrder: i,
		})
		y += 110
	}
	result.RawText = strings.Join(texts, "\n\n")
	result.Words = []types.Word{
		{Text: "Two", Confidence: 0.95, LineID: "line_0", ParagraphID: "para_0", SemanticType: types.TextUIElement},
		{Text: "Sum", Confidence: 0.94, LineID: "line_0", ParagraphID: "para_0", SemanticType: types.TextUIElement},
	}
	return result
}

func browserAnalysis() *types.ScreenAnalysis {
	return &types.ScreenAnalysis{
		DetectedApps: []types.DetectedApp{
			{Type: types.AppBrowser, Name: "LeetCode - Google Chrome", Confidence: 0.9},
		},
		Activity: types.ActivityClassification{Primary: types.ActivityWebBrowsing, Confidence: 0.8},
	}
}

func solidFrame(id string, c color.RGBA) *types.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return &types.Frame{
		ID:         id,
		Timestamp:  time.Now(),
		Image:      img,
		Resolution: [2]int{64, 64},
		AppHint:    "Google Chrome",
	}
}

type testRig struct {
	coordinator *Coordinator
	ocr         *fakeOCR
	llm         *scriptedLLM
	bus         *Bus
}

func newRig(t *testing.T, llm *scriptedLLM, gen *solver.Generator, runner sandbox.Runner) *testRig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Coordinator.EventBusCapacity = 64

	if gen == nil {
		solCfg := cfg.Solution
		solCfg.PreferredModels = []string{"modelA"}
		gen = solver.NewGenerator(solCfg, llm)
	}
	if runner == nil {
		runner = echoRunner{}
	}

	oc := &fakeOCR{result: twoSumOcr()}
	vis := &fakeVision{analysis: browserAnalysis()}
	bus := NewBus(cfg.Coordinator.EventBusCapacity)
	coordinator := NewCoordinator(
		cfg,
		changedetect.New(cfg.ChangeDetector),
		oc,
		vis,
		detector.New(cfg.Detector),
		gen,
		validator.New(cfg.Validator, runner),
		nil,
		bus,
	)
	return &testRig{coordinator: coordinator, ocr: oc, llm: llm, bus: bus}
}

func TestEndToEndTwoSum(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	rig := newRig(t, llm, nil, nil)

	result := rig.coordinator.Process(context.Background(), solidFrame("f1", color.RGBA{250, 250, 250, 255}))
	require.NotNil(t, result)
	require.False(t, result.Skipped)

	require.Len(t, result.Problems, 1)
	problem := result.Problems[0]
	assert.Equal(t, types.ProblemAlgorithmChallenge, problem.Type)
	assert.Equal(t, types.PlatformLeetCode, problem.Platform)
	assert.Equal(t, types.LangPython, problem.Language)
	assert.Contains(t, problem.Title, "Two Sum")
	assert.GreaterOrEqual(t, problem.Confidence, 0.9)
	require.NotEmpty(t, problem.TestCases)
	assert.Contains(t, problem.TestCases[0].Input, "[2,7,11,15]")
	assert.Contains(t, problem.TestCases[0].ExpectedOutput, "[0,1]")

	require.Len(t, result.Solutions, 1)
	solution := result.Solutions[0]
	assert.Contains(t, solution.Code, "def twoSum")
	require.NotEmpty(t, solution.TestResults)
	assert.True(t, solution.TestResults[0].Passed)
	assert.Equal(t, "[0, 1]", solution.TestResults[0].Actual)

	// Events arrive in ProblemDetected -> SolutionReady order.
	events := rig.bus.Drain()
	var kinds []types.EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []types.EventKind{types.EventProblemDetected, types.EventSolutionReady}, kinds)
}

func TestDuplicateFrameShortCircuits(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	rig := newRig(t, llm, nil, nil)
	ctx := context.Background()

	first := rig.coordinator.Process(ctx, solidFrame("f1", color.RGBA{250, 250, 250, 255}))
	require.False(t, first.Skipped)
	callsAfterFirst := atomic.LoadInt32(&rig.ocr.calls)

	// Same frame bytes again within the dedup window.
	second := rig.coordinator.Process(ctx, solidFrame("f2", color.RGBA{250, 250, 250, 255}))
	require.True(t, second.Skipped)
	assert.Equal(t, 0.0, second.Report.Overall)

	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&rig.ocr.calls), "no OCR on a duplicate frame")
	assert.Equal(t, int32(1), atomic.LoadInt32(&llm.calls), "no LLM on a duplicate frame")

	events := rig.bus.Drain()
	var sawSkipped bool
	for _, e := range events {
		if e.Kind == types.EventSkippedFrame && e.FrameID == "f2" {
			sawSkipped = true
		}
	}
	assert.True(t, sawSkipped, "expected a SkippedFrame event for the duplicate")
}

func TestSolutionCacheSharedAcrossStreams(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	cfg := config.DefaultConfig()
	solCfg := cfg.Solution
	solCfg.PreferredModels = []string{"modelA"}
	gen := solver.NewGenerator(solCfg, llm)

	rigA := newRig(t, llm, gen, nil)
	rigB := newRig(t, llm, gen, nil)
	ctx := context.Background()

	resultA := rigA.coordinator.Process(ctx, solidFrame("f1", color.RGBA{250, 250, 250, 255}))
	require.Len(t, resultA.Solutions, 1)

	resultB := rigB.coordinator.Process(ctx, solidFrame("f2", color.RGBA{10, 60, 200, 255}))
	require.Len(t, resultB.Solutions, 1)

	assert.Equal(t, int32(1), atomic.LoadInt32(&llm.calls), "second stream must hit the cache")
	assert.Equal(t, resultA.Solutions[0].ID, resultB.Solutions[0].ID)
	assert.Equal(t, resultA.Solutions[0].Code, resultB.Solutions[0].Code)
	assert.Equal(t, resultA.Solutions[0].ModelUsed, resultB.Solutions[0].ModelUsed)
}

func TestMetricsPopulated(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	rig := newRig(t, llm, nil, nil)

	result := rig.coordinator.Process(context.Background(), solidFrame("f1", color.RGBA{250, 250, 250, 255}))
	assert.GreaterOrEqual(t, result.Metrics.TotalMs, int64(0))
	assert.True(t, result.Metrics.MeetsTargets)
}

func TestBusDropPolicy(t *testing.T) {
	bus := NewBus(3)

	bus.Publish(types.Event{Kind: types.EventSkippedFrame, FrameID: "a"})
	bus.Publish(types.Event{Kind: types.EventPipelineError, Stage: "ocr"})
	bus.Publish(types.Event{Kind: types.EventSolutionReady, FrameID: "b"})

	// Full: the SkippedFrame goes first.
	bus.Publish(types.Event{Kind: types.EventSolutionReady, FrameID: "c"})
	// Full again: the PipelineError goes next.
	bus.Publish(types.Event{Kind: types.EventSolutionReady, FrameID: "d"})

	events := bus.Drain()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, types.EventSolutionReady, e.Kind, "only SolutionReady events survive")
	}
	assert.Equal(t, 2, bus.Dropped())
}

func TestBusNeverDropsSolutionReady(t *testing.T) {
	bus := NewBus(2)
	for i := 0; i < 5; i++ {
		bus.Publish(types.Event{Kind: types.EventSolutionReady, FrameID: fmt.Sprintf("f%d", i)})
	}
	events := bus.Drain()
	assert.Len(t, events, 5, "SolutionReady events must never be dropped")
	assert.Equal(t, 0, bus.Dropped())
}

func TestBusNextBlocksUntilPublish(t *testing.T) {
	bus := NewBus(4)
	done := make(chan types.Event, 1)
	go func() {
		event, err := bus.Next(context.Background())
		if err == nil {
			done <- event
		}
	}()

	time.Sleep(50 * time.Millisecond)
	bus.Publish(types.Event{Kind: types.EventProblemDetected, FrameID: "x"})

	select {
	case event := <-done:
		assert.Equal(t, "x", event.FrameID)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake up on publish")
	}
}

func TestBackpressureDropsNewFrame(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	rig := newRig(t, llm, nil, nil)

	// Force the in-flight flag as if a turn were running.
	rig.coordinator.inFlight.Store(true)
	accepted := rig.coordinator.Submit(context.Background(), solidFrame("f9", color.RGBA{1, 2, 3, 255}))
	rig.coordinator.inFlight.Store(false)

	assert.False(t, accepted)
	events := rig.bus.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventSkippedFrame, events[0].Kind)
	assert.Equal(t, "f9", events[0].FrameID)
}

func TestValidationBlendsConfidence(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	rig := newRig(t, llm, nil, wrongRunner{})

	result := rig.coordinator.Process(context.Background(), solidFrame("f1", color.RGBA{250, 250, 250, 255}))
	require.Len(t, result.Solutions, 1)
	solution := result.Solutions[0]

	require.NotEmpty(t, solution.TestResults)
	assert.False(t, solution.TestResults[0].Passed)
	// A structurally complete solution (1.0) that fails every test (0.0)
	// lands at the midpoint.
	assert.InDelta(t, 0.5, solution.Confidence, 1e-9)

	// The cached entry keeps its pre-validation completeness score.
	fp := result.Problems[0].Fingerprint()
	cached, ok := rig.coordinator.generator.Cache().Get(fp)
	require.True(t, ok)
	assert.Equal(t, 1.0, cached.Confidence)
	assert.Empty(t, cached.TestResults)
}

// capturingStore records SaveDetectedTask arguments and ignores the rest.
type capturingStore struct {
	suggestions map[string][]string
}

func (c *capturingStore) CreateSession(ctx context.Context, configSnapshot string) (string, error) {
	return "session-1", nil
}

func (c *capturingStore) SaveFrame(ctx context.Context, sessionID string, frame *types.Frame, report *types.ChangeReport) error {
	return nil
}

func (c *capturingStore) SaveExtractions(ctx context.Context, frameID string, words []types.Word) error {
	return nil
}

func (c *capturingStore) SaveDetectedTask(ctx context.Context, frameID string, problem *types.DetectedProblem, suggestions []string) error {
	if c.suggestions == nil {
		c.suggestions = make(map[string][]string)
	}
	c.suggestions[problem.ID] = suggestions
	return nil
}

func (c *capturingStore) SaveSolution(ctx context.Context, fingerprint string, solution *types.GeneratedSolution) error {
	return nil
}

func (c *capturingStore) LoadSolution(ctx context.Context, fingerprint string) (*types.GeneratedSolution, error) {
	return nil, sql.ErrNoRows
}

func (c *capturingStore) SearchText(ctx context.Context, query string, limit int) ([]store.ExtractionHit, error) {
	return nil, nil
}

func (c *capturingStore) Close() error {
	return nil
}

func TestPersistedTaskCarriesSerializedSolution(t *testing.T) {
	llm := &scriptedLLM{response: twoSumResponse}
	cfg := config.DefaultConfig()
	solCfg := cfg.Solution
	solCfg.PreferredModels = []string{"modelA"}

	captured := &capturingStore{}
	coordinator := NewCoordinator(
		cfg,
		changedetect.New(cfg.ChangeDetector),
		&fakeOCR{result: twoSumOcr()},
		&fakeVision{analysis: browserAnalysis()},
		detector.New(cfg.Detector),
		solver.NewGenerator(solCfg, llm),
		validator.New(cfg.Validator, echoRunner{}),
		captured,
		NewBus(cfg.Coordinator.EventBusCapacity),
	)

	result := coordinator.Process(context.Background(), solidFrame("f1", color.RGBA{250, 250, 250, 255}))
	require.Len(t, result.Problems, 1)
	require.Len(t, result.Solutions, 1)

	suggestions := captured.suggestions[result.Problems[0].ID]
	require.Len(t, suggestions, 1, "the persisted suggestion is the serialized solution")

	var persisted types.GeneratedSolution
	require.NoError(t, json.Unmarshal([]byte(suggestions[0]), &persisted))
	assert.Equal(t, result.Solutions[0].ID, persisted.ID)
	assert.Contains(t, persisted.Code, "def twoSum")
	assert.NotEmpty(t, persisted.TestResults)
}

func TestAssistanceFallsBackWithoutSolution(t *testing.T) {
	problem := &types.DetectedProblem{Type: types.ProblemTestFailure}
	suggestions := assistance(problem, nil)
	require.NotEmpty(t, suggestions)
	for _, s := range suggestions {
		assert.False(t, strings.HasPrefix(s, "{"), "fallback must be plain guidance, not JSON")
	}
}
