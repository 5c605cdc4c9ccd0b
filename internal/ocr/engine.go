package ocr

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

// Engine runs the word-level recognizer under a hard timeout and assembles
// the word/line/paragraph/region hierarchy.
type Engine struct {
	cfg        config.OCRConfig
	recognizer Recognizer
}

// NewEngine creates an engine around the given recognizer.
func NewEngine(cfg config.OCRConfig, recognizer Recognizer) *Engine {
	return &Engine{cfg: cfg, recognizer: recognizer}
}

// NewEngineFromConfig picks the recognizer backend named in the config.
func NewEngineFromConfig(cfg config.OCRConfig) *Engine {
	var rec Recognizer
	switch cfg.Engine {
	case "stub":
		rec = StubRecognizer{}
	default:
		rec = NewTesseractRecognizer("", cfg.DPITarget)
	}
	return NewEngine(cfg, rec)
}

// Extract runs OCR on the image. On timeout or recognizer failure it
// returns the stub result so the pipeline can continue; the error is
// reported alongside for logging.
func (e *Engine) Extract(ctx context.Context, img image.Image) (*types.OcrResult, error) {
	start := time.Now()

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return e.stubResult(0, 0, start), nil
	}

	timeout := time.Duration(e.cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prepared := e.preprocess(img)

	type outcome struct {
		words []RawWord
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		words, err := e.recognizer.Recognize(ctx, prepared)
		done <- outcome{words, err}
	}()

	select {
	case <-ctx.Done():
		logging.Get(logging.CategoryOCR).Warn("extraction timed out after %v", timeout)
		return e.stubResult(bounds.Dx(), bounds.Dy(), start), fmt.Errorf("ocr timed out: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			logging.Get(logging.CategoryOCR).Warn("recognizer failed: %v", out.err)
			return e.stubResult(bounds.Dx(), bounds.Dy(), start), fmt.Errorf("recognizer failed: %w", out.err)
		}
		result := e.assemble(out.words, bounds.Dx(), bounds.Dy())
		result.ProcessingMs = time.Since(start).Milliseconds()
		logging.Get(logging.CategoryOCR).Debug("extracted %d words, %d lines, %d paragraphs in %dms",
			len(result.Words), len(result.Lines), len(result.Paragraphs), result.ProcessingMs)
		return result, nil
	}
}

// stubResult is the minimal extraction: no text, one region covering the
// full image.
func (e *Engine) stubResult(width, height int, start time.Time) *types.OcrResult {
	full := types.BoundingBox{Width: float64(width), Height: float64(height)}
	return &types.OcrResult{
		Layout: types.ScreenLayout{
			Resolution:    [2]int{width, height},
			EffectiveArea: full,
			Regions: []types.LayoutRegion{
				{ID: "main_content", RegionType: types.RegionMainContent, Box: full},
			},
		},
		Regions: []types.TextRegion{
			{ID: "main_content", RegionType: types.RegionMainContent, Box: full},
		},
		ConfidenceMap: map[string]float64{"overall": 0},
		ProcessingMs:  time.Since(start).Milliseconds(),
	}
}

// assemble builds the hierarchy from raw words. Boxes are mapped back to
// screen coordinates when a scale factor was applied.
func (e *Engine) assemble(raw []RawWord, width, height int) *types.OcrResult {
	scale := e.cfg.ScaleFactor
	if scale <= 0 {
		scale = 1.0
	}

	var filtered []RawWord
	for _, w := range raw {
		if strings.TrimSpace(w.Text) == "" || w.Confidence < e.cfg.MinConfidence {
			continue
		}
		if scale != 1.0 {
			w.Box = types.BoundingBox{
				X:      w.Box.X / scale,
				Y:      w.Box.Y / scale,
				Width:  w.Box.Width / scale,
				Height: w.Box.Height / scale,
			}
		}
		filtered = append(filtered, w)
	}

	layout := defaultLayout(width, height)
	if len(filtered) == 0 {
		r := e.stubResult(width, height, time.Now())
		return r
	}

	lines := groupLines(filtered)
	paragraphs := groupParagraphs(lines)

	result := &types.OcrResult{
		Layout:        layout,
		ConfidenceMap: make(map[string]float64),
	}

	// Emit paragraphs in reading order: top-to-bottom, left-to-right.
	sort.Slice(paragraphs, func(i, j int) bool {
		if paragraphs[i].box.Y != paragraphs[j].box.Y {
			return paragraphs[i].box.Y < paragraphs[j].box.Y
		}
		return paragraphs[i].box.X < paragraphs[j].box.X
	})

	var rawParts []string
	for pi, para := range paragraphs {
		paraID := fmt.Sprintf("para_%d", pi)
		var lineIDs []string
		var paraTexts []string

		sort.Slice(para.lines, func(i, j int) bool {
			if para.lines[i].box.Y != para.lines[j].box.Y {
				return para.lines[i].box.Y < para.lines[j].box.Y
			}
			return para.lines[i].box.X < para.lines[j].box.X
		})

		for _, ln := range para.lines {
			lineID := fmt.Sprintf("line_%d", len(result.Lines))
			lineIDs = append(lineIDs, lineID)
			paraTexts = append(paraTexts, ln.text())

			fontSize := int(ln.box.Height * 0.75)
			result.Lines = append(result.Lines, types.Line{
				ID:            lineID,
				Text:          ln.text(),
				Box:           ln.box,
				AvgConfidence: ln.avgConfidence(),
				Alignment:     lineAlignment(ln, width),
				IsHeading:     isHeading(ln.text(), fontSize),
				FontSize:      fontSize,
			})

			for _, w := range ln.words {
				result.Words = append(result.Words, types.Word{
					Text:         w.Text,
					Box:          w.Box,
					Confidence:   w.Confidence,
					FontSize:     int(w.Box.Height * 0.75),
					LineID:       lineID,
					ParagraphID:  paraID,
					SemanticType: classifyWord(w.Text),
				})
			}
		}

		paraText := strings.Join(paraTexts, "\n")
		rawParts = append(rawParts, paraText)
		result.Paragraphs = append(result.Paragraphs, types.Paragraph{
			ID:           paraID,
			Text:         paraText,
			Box:          para.box,
			LineIDs:      lineIDs,
			SemanticType: ClassifyParagraph(paraText),
			ReadingOrder: pi,
		})
	}

	result.RawText = strings.Join(rawParts, "\n\n")
	result.Regions = partitionRegions(result.Paragraphs, layout)
	result.ConfidenceMap = confidenceMap(result.Words)
	return result
}

type lineGroup struct {
	words []RawWord
	box   types.BoundingBox
}

func (l *lineGroup) text() string {
	parts := make([]string, len(l.words))
	for i, w := range l.words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

func (l *lineGroup) avgConfidence() float64 {
	if len(l.words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range l.words {
		sum += w.Confidence
	}
	return sum / float64(len(l.words))
}

func (l *lineGroup) centerY() float64 {
	return l.box.Y + l.box.Height/2
}

// groupLines clusters words sharing a vertical band.
func groupLines(words []RawWord) []*lineGroup {
	sorted := make([]RawWord, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		ci := sorted[i].Box.Y + sorted[i].Box.Height/2
		cj := sorted[j].Box.Y + sorted[j].Box.Height/2
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	var lines []*lineGroup
	for _, w := range sorted {
		center := w.Box.Y + w.Box.Height/2
		var target *lineGroup
		if len(lines) > 0 {
			last := lines[len(lines)-1]
			tolerance := max(last.box.Height, w.Box.Height) * 0.6
			if tolerance == 0 {
				tolerance = 1
			}
			if abs(center-last.centerY()) <= tolerance {
				target = last
			}
		}
		if target == nil {
			lines = append(lines, &lineGroup{words: []RawWord{w}, box: w.Box})
			continue
		}
		target.words = append(target.words, w)
		target.box = target.box.Union(w.Box)
	}

	for _, ln := range lines {
		sort.Slice(ln.words, func(i, j int) bool { return ln.words[i].Box.X < ln.words[j].Box.X })
	}
	return lines
}

type paragraphGroup struct {
	lines []*lineGroup
	box   types.BoundingBox
}

// groupParagraphs buckets lines by vertical proximity (100px bands).
func groupParagraphs(lines []*lineGroup) []*paragraphGroup {
	buckets := make(map[int]*paragraphGroup)
	for _, ln := range lines {
		key := int(ln.box.Y / 100)
		para, ok := buckets[key]
		if !ok {
			para = &paragraphGroup{box: ln.box}
			buckets[key] = para
		}
		para.lines = append(para.lines, ln)
		para.box = para.box.Union(ln.box)
	}

	out := make([]*paragraphGroup, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, p)
	}
	return out
}

func lineAlignment(ln *lineGroup, screenWidth int) types.TextAlignment {
	if screenWidth == 0 {
		return types.AlignLeft
	}
	center := float64(screenWidth) / 2
	lineCenter := ln.box.X + ln.box.Width/2
	switch {
	case abs(lineCenter-center) < float64(screenWidth)*0.05:
		return types.AlignCenter
	case ln.box.X > float64(screenWidth)*0.6:
		return types.AlignRight
	default:
		return types.AlignLeft
	}
}

// isHeading flags short, large, shouty lines.
func isHeading(text string, fontSize int) bool {
	if len(text) == 0 || len(text) >= 100 || fontSize <= 16 {
		return false
	}
	upper := 0
	letters := 0
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			upper++
		}
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			letters++
		}
	}
	return letters > 0 && float64(upper)/float64(len(text)) > 0.3
}

// partitionRegions assigns each paragraph to the layout region its box
// overlaps by at least half.
func partitionRegions(paragraphs []types.Paragraph, layout types.ScreenLayout) []types.TextRegion {
	var regions []types.TextRegion
	for _, lr := range layout.Regions {
		var ids []string
		for _, p := range paragraphs {
			if p.Box.OverlapRatio(lr.Box) >= 0.5 {
				ids = append(ids, p.ID)
			}
		}
		regions = append(regions, types.TextRegion{
			ID:           lr.ID,
			RegionType:   lr.RegionType,
			Box:          lr.Box,
			ParagraphIDs: ids,
		})
	}
	return regions
}

func defaultLayout(width, height int) types.ScreenLayout {
	full := types.BoundingBox{Width: float64(width), Height: float64(height)}
	return types.ScreenLayout{
		Resolution:    [2]int{width, height},
		EffectiveArea: full,
		Regions: []types.LayoutRegion{
			{ID: "main_content", RegionType: types.RegionMainContent, Box: full},
		},
	}
}

func confidenceMap(words []types.Word) map[string]float64 {
	m := make(map[string]float64)
	if len(words) == 0 {
		m["overall"] = 0
		return m
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	var total float64
	for _, w := range words {
		total += w.Confidence
		key := string(w.SemanticType)
		sums[key] += w.Confidence
		counts[key]++
	}
	m["overall"] = total / float64(len(words))
	for key, sum := range sums {
		m[key] = sum / float64(counts[key])
	}
	return m
}

var (
	emailPattern    = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.]+\b`)
	codeIndicators  = []string{"def ", "function", "import", "const ", "=>", "::", "{", "};"}
	errorIndicators = []string{"error", "exception", "traceback", "panic:"}
)

// classifyWord assigns a coarse semantic type to a single token.
func classifyWord(text string) types.TextType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "exception"):
		return types.TextErrorMessage
	case emailPattern.MatchString(text):
		return types.TextEmailContent
	case strings.Contains(text, "()") || strings.Contains(text, "=>") || strings.Contains(text, "::"):
		return types.TextCodeSnippet
	default:
		return types.TextUIElement
	}
}

// ClassifyParagraph assigns a coarse semantic type to a paragraph's text.
func ClassifyParagraph(text string) types.TextType {
	lower := strings.ToLower(text)
	for _, ind := range errorIndicators {
		if strings.Contains(lower, ind) {
			return types.TextErrorMessage
		}
	}
	for _, ind := range codeIndicators {
		if strings.Contains(text, ind) {
			return types.TextCodeSnippet
		}
	}
	if emailPattern.MatchString(text) {
		return types.TextEmailContent
	}
	if len(text) > 200 {
		return types.TextDocumentContent
	}
	return types.TextUIElement
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
