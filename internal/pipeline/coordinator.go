// Package pipeline orchestrates one turn per captured frame: change
// detection, concurrent OCR and vision, problem detection, cache-first
// solution generation, sandboxed validation, event publication, and store
// writes. Stage failures degrade to fallbacks; the turn never panics.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"screensage/internal/changedetect"
	"screensage/internal/config"
	"screensage/internal/logging"
	"screensage/internal/solver"
	"screensage/internal/store"
	"screensage/internal/types"
	"screensage/internal/vision"
)

// topKExtractions bounds how many word rows are persisted per frame.
const topKExtractions = 100

// OCREngine is the text extraction stage contract.
type OCREngine interface {
	Extract(ctx context.Context, img image.Image) (*types.OcrResult, error)
}

// VisionAnalyzer is the screen classification stage contract.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, img image.Image, appHint string) (*types.ScreenAnalysis, error)
}

// ProblemDetector is the detection stage contract.
type ProblemDetector interface {
	Detect(ocr *types.OcrResult, analysis *types.ScreenAnalysis) []types.DetectedProblem
}

// SolutionGenerator is the generation stage contract.
type SolutionGenerator interface {
	Generate(ctx context.Context, problem *types.DetectedProblem) (*types.GeneratedSolution, error)
	Cache() *solver.SolutionCache
}

// SolutionValidator is the validation stage contract.
type SolutionValidator interface {
	Validate(ctx context.Context, solution *types.GeneratedSolution, cases []types.TestCase) []types.ValidationResult
	Report(results []types.ValidationResult) types.ValidationReport
}

// Result is everything one turn produced.
type Result struct {
	Report    *types.ChangeReport
	Ocr       *types.OcrResult
	Vision    *types.ScreenAnalysis
	Problems  []types.DetectedProblem
	Solutions []*types.GeneratedSolution
	Metrics   types.PerformanceMetrics
	Skipped   bool
}

// Coordinator owns one capture stream's pipeline state.
type Coordinator struct {
	cfg       *config.Config
	changes   *changedetect.Detector
	ocr       OCREngine
	vision    VisionAnalyzer
	detector  ProblemDetector
	generator SolutionGenerator
	validator SolutionValidator
	store     store.Store
	bus       *Bus
	sessionID string

	inFlight   atomic.Bool
	cancelMu   sync.Mutex
	cancelTurn context.CancelFunc

	// lastText is the previous turn's OCR text, fed to the change
	// detector as the current frame's best text estimate.
	lastText string
}

// NewCoordinator wires the pipeline stages. store may be nil (no
// persistence).
func NewCoordinator(cfg *config.Config, changes *changedetect.Detector, ocrEngine OCREngine, visionAnalyzer VisionAnalyzer, det ProblemDetector, gen SolutionGenerator, val SolutionValidator, st store.Store, bus *Bus) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		changes:   changes,
		ocr:       ocrEngine,
		vision:    visionAnalyzer,
		detector:  det,
		generator: gen,
		validator: val,
		store:     st,
		bus:       bus,
	}
}

// Bus returns the out-bound event bus.
func (c *Coordinator) Bus() *Bus {
	return c.bus
}

// StartSession creates the persistent session row when a store is wired.
func (c *Coordinator) StartSession(ctx context.Context, configSnapshot string) error {
	if c.store == nil {
		return nil
	}
	id, err := c.store.CreateSession(ctx, configSnapshot)
	if err != nil {
		return err
	}
	c.sessionID = id
	return nil
}

// Submit hands a frame to the pipeline honoring the back-pressure policy:
// when a turn is already in flight, the new frame is dropped (default) or
// the in-flight turn is canceled. Returns false if the frame was dropped.
func (c *Coordinator) Submit(ctx context.Context, frame *types.Frame) bool {
	if c.inFlight.Load() {
		if c.cfg.Coordinator.DropOnBackpressure {
			logging.PipelineDebug("dropping frame %s: turn in flight", frame.ID)
			c.bus.Publish(types.Event{
				Kind:      types.EventSkippedFrame,
				FrameID:   frame.ID,
				Timestamp: time.Now(),
				Message:   "dropped on backpressure",
			})
			return false
		}
		c.cancelMu.Lock()
		if c.cancelTurn != nil {
			c.cancelTurn()
		}
		c.cancelMu.Unlock()
	}
	go c.Process(ctx, frame)
	return true
}

// Process runs one full pipeline turn for the frame.
func (c *Coordinator) Process(ctx context.Context, frame *types.Frame) *Result {
	if !c.inFlight.CompareAndSwap(false, true) && c.cfg.Coordinator.DropOnBackpressure {
		c.bus.Publish(types.Event{
			Kind:      types.EventSkippedFrame,
			FrameID:   frame.ID,
			Timestamp: time.Now(),
			Message:   "dropped on backpressure",
		})
		return &Result{Skipped: true}
	}
	defer c.inFlight.Store(false)

	turnTimeout := time.Duration(c.cfg.Coordinator.TurnTimeoutMs) * time.Millisecond
	if turnTimeout <= 0 {
		turnTimeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()
	c.cancelMu.Lock()
	c.cancelTurn = cancel
	c.cancelMu.Unlock()

	start := time.Now()
	result := c.turn(ctx, frame)
	result.Metrics.TotalMs = time.Since(start).Milliseconds()
	result.Metrics.MeetsTargets = result.Metrics.TotalMs <= turnTimeout.Milliseconds()
	logging.Pipeline("turn for frame %s: %dms (skipped=%v, problems=%d, solutions=%d)",
		frame.ID, result.Metrics.TotalMs, result.Skipped, len(result.Problems), len(result.Solutions))
	return result
}

func (c *Coordinator) turn(ctx context.Context, frame *types.Frame) *Result {
	result := &Result{}
	if frame.Image == nil {
		frame.Image = image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	// 1. Change detection.
	report := c.changes.Detect(frame, c.lastText)
	result.Report = report
	if !report.Significant {
		result.Skipped = true
		c.bus.Publish(types.Event{
			Kind:      types.EventSkippedFrame,
			FrameID:   frame.ID,
			Timestamp: time.Now(),
			Message:   report.Summary,
		})
		c.persistFrame(frame, report)
		return result
	}

	// 2. OCR and vision run concurrently and are joined; each substitutes
	// its own fallback on failure.
	var ocrResult *types.OcrResult
	var visionResult *types.ScreenAnalysis
	g, stageCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		extracted, err := c.ocr.Extract(stageCtx, frame.Image)
		if err != nil {
			c.publishError("ocr", err)
		}
		ocrResult = extracted
		return nil
	})
	g.Go(func() error {
		analysis, err := c.vision.Analyze(stageCtx, frame.Image, frame.AppHint)
		if err != nil {
			c.publishError("vision", err)
		}
		visionResult = analysis
		return nil
	})
	g.Wait()

	if ocrResult == nil {
		ocrResult = &types.OcrResult{ConfidenceMap: map[string]float64{"overall": 0}}
	}
	if visionResult == nil {
		visionResult = vision.Fallback(frame.Image)
	}
	result.Ocr = ocrResult
	result.Vision = visionResult
	result.Metrics.OcrMs = ocrResult.ProcessingMs
	result.Metrics.VisionMs = visionResult.ProcessingMs
	c.lastText = ocrResult.RawText

	if err := ctx.Err(); err != nil {
		c.publishError("coordinator", err)
		c.persistFrame(frame, report)
		return result
	}

	// 3. Problem detection.
	detectStart := time.Now()
	result.Problems = c.detector.Detect(ocrResult, visionResult)
	result.Metrics.DetectionMs = time.Since(detectStart).Milliseconds()

	// 4. Solutions, sequential across problems to bound LLM load.
	llmStart := time.Now()
	solutionsByProblem := make(map[string]*types.GeneratedSolution)
	for i := range result.Problems {
		problem := &result.Problems[i]
		c.bus.Publish(types.Event{
			Kind:      types.EventProblemDetected,
			FrameID:   frame.ID,
			Timestamp: time.Now(),
			Problem:   problem,
		})

		cached, err := c.solve(ctx, problem)
		if err != nil {
			c.publishError("solution", err)
			continue
		}
		// Work on a copy so validation results never mutate the shared
		// cache entry, whose confidence stays completeness-only.
		solution := new(types.GeneratedSolution)
		*solution = *cached
		if len(problem.TestCases) > 0 {
			solution.TestResults = c.validator.Validate(ctx, solution, problem.TestCases)
			report := c.validator.Report(solution.TestResults)
			// The final score combines structural completeness with the
			// observed pass rate.
			solution.Confidence = (solution.Confidence + report.SuccessRate) / 2
		}
		solutionsByProblem[problem.ID] = solution
		result.Solutions = append(result.Solutions, solution)
		c.bus.Publish(types.Event{
			Kind:      types.EventSolutionReady,
			FrameID:   frame.ID,
			Timestamp: time.Now(),
			Problem:   problem,
			Solution:  solution,
		})
	}
	result.Metrics.LLMMs = time.Since(llmStart).Milliseconds()

	// 5. Persistence is fire-and-forget: failures are logged, never
	// surfaced to the turn.
	c.persistTurn(frame, report, ocrResult, result, solutionsByProblem)
	return result
}

// solve is cache-first across both tiers: the generator's LRU, then the
// store's persistent tier, then the LLM.
func (c *Coordinator) solve(ctx context.Context, problem *types.DetectedProblem) (*types.GeneratedSolution, error) {
	fingerprint := problem.Fingerprint()

	if cached, ok := c.generator.Cache().Get(fingerprint); ok {
		return cached, nil
	}
	if c.store != nil {
		if stored, err := c.store.LoadSolution(ctx, fingerprint); err == nil {
			c.generator.Cache().Put(fingerprint, stored)
			return stored, nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			logging.Get(logging.CategoryStore).Warn("solution cache read failed: %v", err)
		}
	}

	solution, err := c.generator.Generate(ctx, problem)
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.SaveSolution(ctx, fingerprint, solution); err != nil {
			logging.Get(logging.CategoryStore).Warn("solution cache write failed: %v", err)
		}
	}
	return solution, nil
}

func (c *Coordinator) persistFrame(frame *types.Frame, report *types.ChangeReport) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.SaveFrame(ctx, c.sessionID, frame, report); err != nil {
		logging.Get(logging.CategoryStore).Warn("frame write failed: %v", err)
	}
}

func (c *Coordinator) persistTurn(frame *types.Frame, report *types.ChangeReport, ocrResult *types.OcrResult, result *Result, solutions map[string]*types.GeneratedSolution) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.store.SaveFrame(ctx, c.sessionID, frame, report); err != nil {
		logging.Get(logging.CategoryStore).Warn("frame write failed: %v", err)
	}
	if err := c.store.SaveExtractions(ctx, frame.ID, topWords(ocrResult.Words, topKExtractions)); err != nil {
		logging.Get(logging.CategoryStore).Warn("extraction write failed: %v", err)
	}
	for i := range result.Problems {
		problem := &result.Problems[i]
		if err := c.store.SaveDetectedTask(ctx, frame.ID, problem, assistance(problem, solutions[problem.ID])); err != nil {
			logging.Get(logging.CategoryStore).Warn("task write failed: %v", err)
		}
	}
}

// topWords keeps the k highest-confidence words.
func topWords(words []types.Word, k int) []types.Word {
	if len(words) <= k {
		return words
	}
	sorted := make([]types.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	return sorted[:k]
}

// assistance is the serialized solution when one was generated; the canned
// per-type suggestions are only the fallback for problems that never got
// one.
func assistance(problem *types.DetectedProblem, solution *types.GeneratedSolution) []string {
	if solution != nil {
		if data, err := json.Marshal(solution); err == nil {
			return []string{string(data)}
		}
	}
	switch problem.Type {
	case types.ProblemAlgorithmChallenge:
		return []string{"Review the generated solution", "Compare complexity against the constraints"}
	case types.ProblemCompilationError, types.ProblemRuntimeError:
		return []string{"Apply the suggested fix", "Re-run the failing command"}
	case types.ProblemTestFailure:
		return []string{"Inspect the failing assertions", "Re-run the test suite"}
	default:
		return nil
	}
}

func (c *Coordinator) publishError(stage string, err error) {
	logging.Get(logging.CategoryPipeline).Warn("stage %s: %v", stage, err)
	c.bus.Publish(types.Event{
		Kind:      types.EventPipelineError,
		Timestamp: time.Now(),
		Stage:     stage,
		Message:   err.Error(),
	})
}
