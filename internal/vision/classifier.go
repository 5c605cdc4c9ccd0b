// Package vision identifies visible applications, the user's primary
// activity, and coarse visual traits of a captured frame. Classification is
// rule-based: each activity rule names required indicators, optional
// bonus indicators, exclusion patterns, and a confidence floor.
package vision

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"sort"
	"strings"
	"time"

	"screensage/internal/config"
	"screensage/internal/logging"
	"screensage/internal/types"
)

// appRule maps window-title/bundle hints to an application type.
type appRule struct {
	pattern *regexp.Regexp
	appType types.AppType
}

var appRules = []appRule{
	{regexp.MustCompile(`(?i)(vscode|visual studio|intellij|goland|pycharm|xcode|neovim|sublime)`), types.AppIDE},
	{regexp.MustCompile(`(?i)(terminal|iterm|alacritty|kitty|konsole|wezterm)`), types.AppTerminal},
	{regexp.MustCompile(`(?i)(chrome|safari|firefox|arc|edge|brave)`), types.AppBrowser},
	{regexp.MustCompile(`(?i)(zoom|meet|teams|webex)`), types.AppVideoCall},
	{regexp.MustCompile(`(?i)(slack|discord|telegram|messages)`), types.AppChat},
	{regexp.MustCompile(`(?i)(mail|outlook|thunderbird)`), types.AppEmail},
	{regexp.MustCompile(`(?i)(word|pages|docs|notion|obsidian)`), types.AppDocumentTool},
	{regexp.MustCompile(`(?i)(vlc|spotify|music|youtube)`), types.AppMediaPlayer},
}

// activityRule scores one activity from accumulated evidence.
type activityRule struct {
	activity  types.Activity
	required  []indicator
	optional  []indicator
	exclusion []indicator
	floor     float64
}

type indicator struct {
	evidenceType types.EvidenceType
	pattern      *regexp.Regexp
	weight       float64
}

var activityRules = []activityRule{
	{
		activity: types.ActivityCoding,
		required: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`IDE|Terminal`), 0.8},
		},
		optional: []indicator{
			{types.EvidenceVisualCue, regexp.MustCompile(`dark_theme`), 0.2},
		},
		floor: 0.6,
	},
	{
		activity: types.ActivityVideoConference,
		required: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`VideoCall`), 0.9},
		},
		optional: []indicator{
			{types.EvidenceVisualCue, regexp.MustCompile(`video_grid`), 0.3},
		},
		floor: 0.7,
	},
	{
		activity: types.ActivityWebBrowsing,
		required: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`Browser`), 0.8},
		},
		floor: 0.5,
	},
	{
		activity: types.ActivityCommunication,
		required: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`Chat|Email`), 0.8},
		},
		floor: 0.5,
	},
	{
		activity: types.ActivityDocumentation,
		required: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`DocumentTool`), 0.8},
		},
		exclusion: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`VideoCall`), 0},
		},
		floor: 0.5,
	},
	{
		activity: types.ActivityEntertainment,
		required: []indicator{
			{types.EvidenceAppPresence, regexp.MustCompile(`MediaPlayer`), 0.8},
		},
		floor: 0.5,
	},
}

// Classifier runs application and activity detection under a soft timeout.
type Classifier struct {
	cfg config.VisionConfig
}

// New creates a classifier with the given configuration.
func New(cfg config.VisionConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Analyze classifies the frame. appHint is the capture source's window
// title or bundle hint, possibly empty. On timeout the fallback analysis
// (one full-screen Browser app, Idle activity) is returned with an error
// for logging.
func (c *Classifier) Analyze(ctx context.Context, img image.Image, appHint string) (*types.ScreenAnalysis, error) {
	start := time.Now()

	timeout := time.Duration(c.cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *types.ScreenAnalysis, 1)
	go func() {
		done <- c.analyze(img, appHint)
	}()

	select {
	case <-ctx.Done():
		logging.Get(logging.CategoryVision).Warn("analysis timed out after %v", timeout)
		fb := Fallback(img)
		fb.ProcessingMs = time.Since(start).Milliseconds()
		return fb, fmt.Errorf("vision timed out: %w", ctx.Err())
	case analysis := <-done:
		analysis.ProcessingMs = time.Since(start).Milliseconds()
		return analysis, nil
	}
}

// Fallback is the analysis used when classification cannot run: a single
// Browser app covering the screen and an Idle activity.
func Fallback(img image.Image) *types.ScreenAnalysis {
	bounds := img.Bounds()
	full := types.BoundingBox{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	return &types.ScreenAnalysis{
		DetectedApps: []types.DetectedApp{
			{Type: types.AppBrowser, Confidence: 0.3, Region: full, WindowState: types.WindowFullScreen},
		},
		Activity: types.ActivityClassification{Primary: types.ActivityIdle, Confidence: 0.3},
		Layout: types.ScreenLayout{
			Resolution:    [2]int{bounds.Dx(), bounds.Dy()},
			EffectiveArea: full,
			Regions: []types.LayoutRegion{
				{ID: "main_content", RegionType: types.RegionMainContent, Box: full},
			},
		},
		Theme: types.ThemeUnknown,
	}
}

func (c *Classifier) analyze(img image.Image, appHint string) *types.ScreenAnalysis {
	bounds := img.Bounds()
	full := types.BoundingBox{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}

	theme := detectTheme(img)
	apps := detectApps(appHint, full)
	elements := detectVisualElements(img, theme)

	evidence := buildEvidence(apps, elements)
	activity := classifyActivity(evidence)
	indicators := contextIndicators(apps)

	return &types.ScreenAnalysis{
		DetectedApps:   apps,
		Activity:       activity,
		VisualElements: elements,
		Indicators:     indicators,
		Layout: types.ScreenLayout{
			Resolution:    [2]int{bounds.Dx(), bounds.Dy()},
			EffectiveArea: full,
			Regions: []types.LayoutRegion{
				{ID: "main_content", RegionType: types.RegionMainContent, Box: full},
			},
		},
		Theme: theme,
	}
}

func detectApps(appHint string, full types.BoundingBox) []types.DetectedApp {
	if appHint == "" {
		return nil
	}
	for _, rule := range appRules {
		if rule.pattern.MatchString(appHint) {
			return []types.DetectedApp{{
				Type:        rule.appType,
				Name:        appHint,
				Confidence:  0.9,
				Region:      full,
				WindowState: types.WindowFullScreen,
			}}
		}
	}
	return []types.DetectedApp{{
		Type:        types.AppUnknown,
		Name:        appHint,
		Confidence:  0.4,
		Region:      full,
		WindowState: types.WindowFullScreen,
	}}
}

// detectTheme samples the image's average luminance.
func detectTheme(img image.Image) types.Theme {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return types.ThemeUnknown
	}
	// Sample a 32x32 grid rather than every pixel.
	stepX := max(1, bounds.Dx()/32)
	stepY := max(1, bounds.Dy()/32)
	var sum, n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += int((299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000)
			n++
		}
	}
	if n == 0 {
		return types.ThemeUnknown
	}
	if sum/n < 96 {
		return types.ThemeDark
	}
	return types.ThemeLight
}

func detectVisualElements(img image.Image, theme types.Theme) []types.VisualElement {
	var elements []types.VisualElement
	bounds := img.Bounds()
	full := types.BoundingBox{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	if theme == types.ThemeDark {
		elements = append(elements, types.VisualElement{
			Kind:       "dark_theme",
			Box:        full,
			Confidence: 0.8,
		})
	}
	return elements
}

func buildEvidence(apps []types.DetectedApp, elements []types.VisualElement) []types.Evidence {
	var evidence []types.Evidence
	for _, app := range apps {
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceAppPresence,
			Description: string(app.Type),
			Confidence:  app.Confidence,
			Weight:      1.0,
		})
	}
	for _, el := range elements {
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceVisualCue,
			Description: el.Kind,
			Confidence:  el.Confidence,
			Weight:      0.5,
		})
	}
	return evidence
}

// classifyActivity scores every rule against the evidence; the highest
// weighted sum above its rule's floor wins, with up to three runners-up
// kept as secondary activities.
func classifyActivity(evidence []types.Evidence) types.ActivityClassification {
	type scored struct {
		activity types.Activity
		score    float64
	}
	var candidates []scored

	for _, rule := range activityRules {
		score, ok := evaluateRule(rule, evidence)
		if ok && score >= rule.floor {
			candidates = append(candidates, scored{rule.activity, score})
		}
	}

	if len(candidates) == 0 {
		primary := types.ActivityUnknown
		if len(evidence) == 0 {
			primary = types.ActivityIdle
		}
		return types.ActivityClassification{Primary: primary, Confidence: 0.3, Evidence: evidence}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var secondary []types.Activity
	for _, c := range candidates[1:] {
		if len(secondary) == 3 {
			break
		}
		secondary = append(secondary, c.activity)
	}

	return types.ActivityClassification{
		Primary:    candidates[0].activity,
		Secondary:  secondary,
		Confidence: min(candidates[0].score, 1.0),
		Evidence:   evidence,
	}
}

func evaluateRule(rule activityRule, evidence []types.Evidence) (float64, bool) {
	for _, excl := range rule.exclusion {
		if matchAny(excl, evidence) {
			return 0, false
		}
	}

	var score float64
	for _, req := range rule.required {
		if !matchAny(req, evidence) {
			return 0, false
		}
		score += req.weight
	}
	for _, opt := range rule.optional {
		if matchAny(opt, evidence) {
			score += opt.weight
		}
	}
	return score, true
}

func matchAny(ind indicator, evidence []types.Evidence) bool {
	for _, ev := range evidence {
		if ev.Type == ind.evidenceType && ind.pattern.MatchString(ev.Description) {
			return true
		}
	}
	return false
}

func contextIndicators(apps []types.DetectedApp) []types.ContextIndicator {
	var out []types.ContextIndicator
	for _, app := range apps {
		out = append(out, types.ContextIndicator{
			Type:       types.EvidenceAppPresence,
			Value:      strings.TrimSpace(string(app.Type) + " " + app.Name),
			Confidence: app.Confidence,
		})
	}
	return out
}
