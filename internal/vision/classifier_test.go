package vision

import (
	"context"
	"image"
	"image/color"
	"testing"

	"screensage/internal/config"
	"screensage/internal/types"
)

func solid(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestTerminalHintClassifiesCoding(t *testing.T) {
	c := New(config.DefaultConfig().Vision)
	img := solid(color.RGBA{20, 20, 20, 255}, 64, 64)

	analysis, err := c.Analyze(context.Background(), img, "iTerm2")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.DetectedApps) != 1 || analysis.DetectedApps[0].Type != types.AppTerminal {
		t.Fatalf("expected a Terminal app, got %+v", analysis.DetectedApps)
	}
	if analysis.Activity.Primary != types.ActivityCoding {
		t.Fatalf("expected Coding activity, got %s", analysis.Activity.Primary)
	}
	if analysis.Theme != types.ThemeDark {
		t.Fatalf("dark screen must classify as dark theme, got %s", analysis.Theme)
	}
}

func TestBrowserHint(t *testing.T) {
	c := New(config.DefaultConfig().Vision)
	img := solid(color.RGBA{250, 250, 250, 255}, 64, 64)

	analysis, err := c.Analyze(context.Background(), img, "Google Chrome - leetcode.com")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.DetectedApps[0].Type != types.AppBrowser {
		t.Fatalf("expected Browser, got %+v", analysis.DetectedApps)
	}
	if analysis.Activity.Primary != types.ActivityWebBrowsing {
		t.Fatalf("expected WebBrowsing, got %s", analysis.Activity.Primary)
	}
	if analysis.Theme != types.ThemeLight {
		t.Fatalf("bright screen must classify as light theme, got %s", analysis.Theme)
	}
}

func TestNoHintIsIdle(t *testing.T) {
	c := New(config.DefaultConfig().Vision)
	img := solid(color.RGBA{128, 128, 128, 255}, 32, 32)

	analysis, err := c.Analyze(context.Background(), img, "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.DetectedApps) != 0 {
		t.Fatalf("no hint should detect no apps: %+v", analysis.DetectedApps)
	}
	if analysis.Activity.Primary != types.ActivityIdle {
		t.Fatalf("expected Idle, got %s", analysis.Activity.Primary)
	}
}

func TestUnknownHintStillReported(t *testing.T) {
	c := New(config.DefaultConfig().Vision)
	img := solid(color.RGBA{128, 128, 128, 255}, 32, 32)

	analysis, err := c.Analyze(context.Background(), img, "SomeObscureApp")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.DetectedApps) != 1 || analysis.DetectedApps[0].Type != types.AppUnknown {
		t.Fatalf("unknown hint should yield an Unknown app: %+v", analysis.DetectedApps)
	}
	if analysis.Activity.Primary != types.ActivityUnknown {
		t.Fatalf("expected Unknown activity, got %s", analysis.Activity.Primary)
	}
}

func TestContextIndicatorsEmitted(t *testing.T) {
	c := New(config.DefaultConfig().Vision)
	img := solid(color.RGBA{30, 30, 30, 255}, 32, 32)

	analysis, err := c.Analyze(context.Background(), img, "Visual Studio Code")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Indicators) == 0 {
		t.Fatalf("expected context indicators for detected apps")
	}
	if analysis.Indicators[0].Type != types.EvidenceAppPresence {
		t.Fatalf("unexpected indicator: %+v", analysis.Indicators[0])
	}
}

func TestFallbackShape(t *testing.T) {
	img := solid(color.RGBA{0, 0, 0, 255}, 100, 50)
	fb := Fallback(img)

	if len(fb.DetectedApps) != 1 || fb.DetectedApps[0].Type != types.AppBrowser {
		t.Fatalf("fallback must carry a single Browser app: %+v", fb.DetectedApps)
	}
	if fb.Activity.Primary != types.ActivityIdle {
		t.Fatalf("fallback activity must be Idle: %+v", fb.Activity)
	}
	if fb.DetectedApps[0].Region.Width != 100 || fb.DetectedApps[0].Region.Height != 50 {
		t.Fatalf("fallback app must cover the full screen: %+v", fb.DetectedApps[0].Region)
	}
}

func TestSecondaryActivitiesBounded(t *testing.T) {
	evidence := []types.Evidence{
		{Type: types.EvidenceAppPresence, Description: "IDE", Confidence: 0.9, Weight: 1},
		{Type: types.EvidenceAppPresence, Description: "Browser", Confidence: 0.9, Weight: 1},
		{Type: types.EvidenceAppPresence, Description: "Chat", Confidence: 0.9, Weight: 1},
		{Type: types.EvidenceAppPresence, Description: "DocumentTool", Confidence: 0.9, Weight: 1},
		{Type: types.EvidenceAppPresence, Description: "MediaPlayer", Confidence: 0.9, Weight: 1},
	}
	got := classifyActivity(evidence)
	if got.Primary == types.ActivityUnknown {
		t.Fatalf("expected a concrete primary activity")
	}
	if len(got.Secondary) > 3 {
		t.Fatalf("secondary activities must be capped at 3, got %d", len(got.Secondary))
	}
}
