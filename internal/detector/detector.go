// Package detector matches OCR and vision evidence against coding problem
// patterns: compiler/runtime errors, algorithm challenges from known
// platforms, and failing test runs. The detector is stateful across a small
// rolling buffer of screens so repeated sightings of the same problem are
// merged rather than re-emitted.
package detector

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"screensage/internal/config"
	"screensage/internal/logging"
	"screensage/internal/types"
)

type screenContext struct {
	at     time.Time
	ocr    *types.OcrResult
	vision *types.ScreenAnalysis
}

type seenProblem struct {
	at         time.Time
	confidence float64
}

// Detector holds detection configuration and per-stream state. Callers
// serialize Detect calls; the detector is owned by one pipeline task.
type Detector struct {
	cfg     config.DetectorConfig
	screens []screenContext
	seen    map[string]seenProblem
}

// New creates a detector.
func New(cfg config.DetectorConfig) *Detector {
	return &Detector{
		cfg:  cfg,
		seen: make(map[string]seenProblem),
	}
}

// Detect runs every enabled strategy against the frame's OCR and vision
// results and returns fresh problems above the confidence floor. Problems
// whose fingerprint was already emitted inside the rolling window are
// suppressed.
func (d *Detector) Detect(ocr *types.OcrResult, vision *types.ScreenAnalysis) []types.DetectedProblem {
	timer := logging.StartTimer(logging.CategoryDetector, "problem detection")
	defer timer.Stop()

	d.pushScreen(ocr, vision)

	var candidates []types.DetectedProblem
	if d.cfg.ErrorDetection {
		if p := d.detectError(ocr, vision); p != nil {
			candidates = append(candidates, *p)
		}
	}
	if d.cfg.AlgorithmDetection {
		if p := d.detectAlgorithmChallenge(ocr, vision); p != nil {
			candidates = append(candidates, *p)
		}
	}
	if d.cfg.TestFailureDetection {
		if p := d.detectTestFailure(ocr, vision); p != nil {
			candidates = append(candidates, *p)
		}
	}

	return d.dedupe(candidates)
}

// dedupe drops candidates whose fingerprint was seen inside the rolling
// window, keeping the highest confidence on record. Within one call,
// duplicate fingerprints collapse to the most confident candidate.
func (d *Detector) dedupe(candidates []types.DetectedProblem) []types.DetectedProblem {
	window := time.Duration(d.cfg.FingerprintWindowSecs) * time.Second
	if window <= 0 {
		window = 5 * time.Minute
	}
	now := time.Now()
	for fp, rec := range d.seen {
		if now.Sub(rec.at) > window {
			delete(d.seen, fp)
		}
	}

	var fresh []types.DetectedProblem
	local := make(map[string]int)
	for _, p := range candidates {
		fp := p.Fingerprint()
		if idx, ok := local[fp]; ok {
			if p.Confidence > fresh[idx].Confidence {
				// Highest confidence wins, earliest detection time stays.
				p.DetectedAt = fresh[idx].DetectedAt
				p.ID = fresh[idx].ID
				fresh[idx] = p
			}
			continue
		}
		if rec, ok := d.seen[fp]; ok {
			if p.Confidence > rec.confidence {
				d.seen[fp] = seenProblem{at: rec.at, confidence: p.Confidence}
			}
			logging.Get(logging.CategoryDetector).Debug("suppressed duplicate problem %s", fp)
			continue
		}
		d.seen[fp] = seenProblem{at: now, confidence: p.Confidence}
		local[fp] = len(fresh)
		fresh = append(fresh, p)
	}
	return fresh
}

func (d *Detector) pushScreen(ocr *types.OcrResult, vision *types.ScreenAnalysis) {
	size := d.cfg.ScreenBufferSize
	if size <= 0 {
		size = 10
	}
	if len(d.screens) >= size {
		d.screens = d.screens[1:]
	}
	d.screens = append(d.screens, screenContext{at: time.Now(), ocr: ocr, vision: vision})
}

// detectError looks for compiler and runtime error signatures.
func (d *Detector) detectError(ocr *types.OcrResult, vision *types.ScreenAnalysis) *types.DetectedProblem {
	var confidence float64
	var details *types.ErrorDetails
	var contextParts []string

	for _, para := range ocr.Paragraphs {
		lower := strings.ToLower(para.Text)
		hit := false

		for _, keyword := range errorMatcher.keywords {
			if strings.Contains(lower, keyword) {
				confidence += errorKeywordWeight
				hit = true
			}
		}
		for _, pattern := range errorMatcher.patterns {
			m := pattern.FindStringSubmatch(para.Text)
			if m == nil {
				continue
			}
			confidence += errorRegexWeight
			hit = true
			if details == nil && len(m) >= 3 {
				details = &types.ErrorDetails{
					Kind:    m[1],
					Message: strings.TrimSpace(m[2]),
				}
			}
		}
		if hit {
			contextParts = append(contextParts, para.Text)
		}
	}

	if confidence < d.cfg.MinConfidence {
		return nil
	}

	description := strings.TrimSpace(strings.Join(contextParts, "\n"))
	if details != nil {
		if m := errorLinePattern.FindStringSubmatch(description); m != nil {
			if n := atoiSafe(m[1]); n > 0 {
				details.Line = n
			}
		}
	}

	problemType := types.ProblemCompilationError
	if details != nil && strings.Contains(strings.ToLower(details.Kind), "syntax") {
		problemType = types.ProblemCompilationError
	} else if tracebackPattern.MatchString(description) {
		problemType = types.ProblemRuntimeError
	}

	codeContext := extractCodeContext(ocr)
	language := detectLanguage(codeContext.VisibleCode)
	if language == types.LangUnknown && tracebackPattern.MatchString(description) {
		// A Python traceback identifies the language even without code.
		if strings.Contains(strings.ToLower(description), "traceback") {
			language = types.LangPython
		}
	}

	title := "Compilation Error Detected"
	if problemType == types.ProblemRuntimeError {
		title = "Runtime Error Detected"
	}

	return &types.DetectedProblem{
		ID:           uuid.NewString(),
		Type:         problemType,
		Title:        title,
		Description:  description,
		CodeContext:  codeContext,
		ErrorDetails: details,
		Platform:     detectPlatform(vision),
		Language:     language,
		Confidence:   min(confidence, 1.0),
		DetectedAt:   time.Now(),
		ScreenRegion: problemRegion(ocr),
	}
}

type problemElements struct {
	description   []string
	sampleInputs  []string
	sampleOutputs []string
	constraints   []string
}

// detectAlgorithmChallenge scores platform-specific matchers and emits the
// argmax platform when its confidence clears the floor.
func (d *Detector) detectAlgorithmChallenge(ocr *types.OcrResult, vision *types.ScreenAnalysis) *types.DetectedProblem {
	elements := collectProblemElements(ocr)

	var bestPlatform types.Platform
	var bestConfidence float64
	for _, matcher := range platformMatchers {
		if matcher.platform == types.PlatformHackerRank && !d.cfg.HackerRankDetection {
			continue
		}
		if matcher.platform == types.PlatformLeetCode && !d.cfg.LeetCodeDetection {
			continue
		}

		var confidence float64
		for _, para := range ocr.Paragraphs {
			lower := strings.ToLower(para.Text)
			for _, keyword := range matcher.keywords {
				if strings.Contains(lower, keyword) {
					confidence += keywordWeight
				}
			}
			for _, pattern := range matcher.patterns {
				if pattern.MatchString(para.Text) {
					confidence += regexWeight
				}
			}
		}
		if confidence > bestConfidence {
			bestConfidence = confidence
			bestPlatform = matcher.platform
		}
	}

	if bestConfidence < d.cfg.MinConfidence {
		return nil
	}

	codeContext := extractCodeContext(ocr)
	starter := extractStarterCode(ocr)
	language := detectLanguage(codeContext.VisibleCode)
	if language == types.LangUnknown {
		language = detectLanguage(starter)
	}

	return &types.DetectedProblem{
		ID:           uuid.NewString(),
		Type:         types.ProblemAlgorithmChallenge,
		Title:        extractTitle(ocr),
		Description:  strings.TrimSpace(strings.Join(elements.description, "\n")),
		CodeContext:  codeContext,
		Platform:     bestPlatform,
		Language:     language,
		StarterCode:  starter,
		TestCases:    elements.testCases(),
		Constraints:  elements.constraints,
		Confidence:   min(bestConfidence, 1.0),
		DetectedAt:   time.Now(),
		ScreenRegion: problemRegion(ocr),
	}
}

func collectProblemElements(ocr *types.OcrResult) problemElements {
	var elements problemElements
	var longestProse string

	for _, para := range ocr.Paragraphs {
		lower := strings.ToLower(para.Text)

		if strings.Contains(lower, "problem statement") || strings.Contains(lower, "description") {
			elements.description = append(elements.description, para.Text)
		}
		if para.SemanticType == types.TextDocumentContent && len(para.Text) > len(longestProse) {
			longestProse = para.Text
		}

		if m := inputAnchor.FindStringSubmatch(para.Text); m != nil {
			if value := strings.TrimSpace(m[1]); value != "" {
				elements.sampleInputs = append(elements.sampleInputs, value)
			}
		}
		if m := outputAnchor.FindStringSubmatch(para.Text); m != nil {
			if value := strings.TrimSpace(m[1]); value != "" {
				elements.sampleOutputs = append(elements.sampleOutputs, value)
			}
		}
		if strings.Contains(lower, "constraint") {
			elements.constraints = append(elements.constraints, strings.TrimSpace(para.Text))
		}
	}

	// Without explicit anchors, the longest prose paragraph serves as the
	// problem description.
	if len(elements.description) == 0 && longestProse != "" {
		elements.description = append(elements.description, longestProse)
	}
	return elements
}

func (e *problemElements) testCases() []types.TestCase {
	var cases []types.TestCase
	for i, input := range e.sampleInputs {
		var expected string
		if i < len(e.sampleOutputs) {
			expected = e.sampleOutputs[i]
		}
		cases = append(cases, types.TestCase{Input: input, ExpectedOutput: expected})
	}
	return cases
}

// detectTestFailure looks for failing test runner output.
func (d *Detector) detectTestFailure(ocr *types.OcrResult, vision *types.ScreenAnalysis) *types.DetectedProblem {
	var confidence float64
	var failedParas []string

	for _, para := range ocr.Paragraphs {
		lower := strings.ToLower(para.Text)
		hits := 0
		for _, token := range testFailureTokens {
			if strings.Contains(lower, token) {
				hits++
			}
		}
		if hits > 0 {
			confidence += testTokenWeight * float64(hits)
			failedParas = append(failedParas, para.Text)
		}
	}

	if confidence < d.cfg.MinConfidence {
		return nil
	}

	codeContext := extractCodeContext(ocr)
	return &types.DetectedProblem{
		ID:           uuid.NewString(),
		Type:         types.ProblemTestFailure,
		Title:        "Test Failure Detected",
		Description:  strings.Join(failedParas, "\n"),
		CodeContext:  codeContext,
		Platform:     detectPlatform(vision),
		Language:     detectLanguage(codeContext.VisibleCode),
		TestCases:    failedTestCases(failedParas),
		Confidence:   min(confidence, 1.0),
		DetectedAt:   time.Now(),
		ScreenRegion: problemRegion(ocr),
	}
}

// failedTestCases parses "expected:"/"actual:" pairs out of runner output.
func failedTestCases(paras []string) []types.TestCase {
	var cases []types.TestCase
	failed := false
	for _, para := range paras {
		lower := strings.ToLower(para)
		if !strings.Contains(lower, "expected:") || !strings.Contains(lower, "actual:") {
			continue
		}
		tc := types.TestCase{Passed: &failed}
		for _, line := range strings.Split(para, "\n") {
			lowerLine := strings.ToLower(line)
			if idx := strings.Index(lowerLine, "expected:"); idx >= 0 {
				tc.ExpectedOutput = strings.TrimSpace(line[idx+len("expected:"):])
			} else if idx := strings.Index(lowerLine, "actual:"); idx >= 0 {
				tc.ActualOutput = strings.TrimSpace(line[idx+len("actual:"):])
			}
		}
		cases = append(cases, tc)
	}
	return cases
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
