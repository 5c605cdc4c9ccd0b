// Package changedetect decides whether a captured frame differs enough from
// recent frames to be worth analyzing. It combines a sampled pixel hash for
// sub-second deduplication, pixel/text/UI diffs against the most recent
// buffered frame, and an adaptive significance threshold that rises during
// high-motion periods.
package changedetect

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"screensage/internal/config"
	"screensage/internal/logging"
	"screensage/internal/types"
)

const (
	// pixelDistanceThreshold is the RGB Euclidean distance (0-255 scale)
	// above which a pixel counts as changed.
	pixelDistanceThreshold = 30

	// dedupWindow is how long an identical hash suppresses reprocessing.
	dedupWindow = time.Second

	// hashRetention bounds the dedup map; older entries are evicted on
	// every call.
	hashRetention = 5 * time.Minute

	// scoreWindow is the number of recent overall scores feeding the
	// adaptive threshold.
	scoreWindow = 20

	// scoreMinSamples is how many scores must accumulate before the
	// adaptive threshold activates.
	scoreMinSamples = 10
)

type bufferedFrame struct {
	frameID    string
	pixels     []uint8
	resolution [2]int
	appHint    string
	text       string
	hasText    bool
}

// Detector owns a sliding frame buffer and a hash dedup map. The buffer is
// owned by a single pipeline task; callers must serialize Detect calls. The
// hash map may be probed concurrently through IsDuplicate and is guarded by
// its own mutex.
type Detector struct {
	cfg config.ChangeDetectorConfig

	frames []bufferedFrame

	hashMu   sync.Mutex
	hashSeen map[uint64]time.Time

	recentScores []float64
	effective    float64
}

// New creates a detector with the given configuration.
func New(cfg config.ChangeDetectorConfig) *Detector {
	return &Detector{
		cfg:       cfg,
		hashSeen:  make(map[uint64]time.Time),
		effective: cfg.PixelDiffThreshold,
	}
}

// Detect compares frame against the most recent buffered frame and returns
// a change report. ocrText is the frame's extracted text when available;
// an empty string is treated as absent. Any failure to compute a diff
// fails open: the frame is reported as a complete change.
func (d *Detector) Detect(frame *types.Frame, ocrText string) *types.ChangeReport {
	start := time.Now()

	hash := d.imageHash(frame)
	frame.Hash = hash

	d.evictOldHashes()

	if d.cfg.HashComparison && d.seenRecently(hash) {
		d.rememberHash(hash)
		return &types.ChangeReport{
			FrameID:         frame.ID,
			PreviousFrameID: d.lastFrameID(),
			Overall:         0,
			Summary:         "Duplicate frame",
			ProcessingMs:    time.Since(start).Milliseconds(),
		}
	}

	entry := bufferedFrame{
		frameID:    frame.ID,
		resolution: frame.Resolution,
		appHint:    frame.AppHint,
		text:       ocrText,
		hasText:    ocrText != "",
	}
	if frame.Image != nil {
		entry.pixels = frame.Image.Pix
	}

	var report *types.ChangeReport
	if len(d.frames) == 0 {
		report = &types.ChangeReport{
			FrameID:     frame.ID,
			PixelDiff:   1.0,
			TextDiff:    1.0,
			UIDiff:      1.0,
			Overall:     1.0,
			Significant: true,
			Summary:     "Initial frame",
		}
	} else {
		report = d.compare(&entry, &d.frames[len(d.frames)-1])
	}

	d.push(entry)
	d.rememberHash(hash)
	if d.cfg.AdaptiveThreshold {
		d.updateThreshold(report.Overall)
	}

	report.ProcessingMs = time.Since(start).Milliseconds()
	logging.Get(logging.CategoryChange).Debug(
		"frame %s: overall=%.3f significant=%v threshold=%.3f",
		frame.ID, report.Overall, report.Significant, d.EffectiveThreshold())
	return report
}

func (d *Detector) compare(current, previous *bufferedFrame) *types.ChangeReport {
	pixelDiff := pixelDifference(current.pixels, previous.pixels)

	var textDiff float64
	if d.cfg.TextComparison {
		textDiff = textDifference(current.text, current.hasText, previous.text, previous.hasText)
	}

	var uiDiff float64
	var regions []types.ChangedRegion
	if d.cfg.RegionAnalysis {
		uiDiff, regions = d.uiDifference(current, previous)
	}

	overall := 0.4*pixelDiff + 0.4*textDiff + 0.2*uiDiff
	if overall > 1.0 {
		overall = 1.0
	}

	return &types.ChangeReport{
		FrameID:         current.frameID,
		PreviousFrameID: previous.frameID,
		PixelDiff:       pixelDiff,
		TextDiff:        textDiff,
		UIDiff:          uiDiff,
		Overall:         overall,
		Regions:         regions,
		Significant:     overall >= d.EffectiveThreshold(),
		Summary:         summarize(pixelDiff, textDiff, uiDiff, regions),
	}
}

// pixelDifference returns the fraction of pixels whose RGB distance exceeds
// the threshold. Mismatched buffer sizes (or a missing buffer) count as a
// complete change.
func pixelDifference(current, previous []uint8) float64 {
	if len(current) == 0 || len(previous) == 0 || len(current) != len(previous) {
		return 1.0
	}

	totalPixels := len(current) / 4
	if totalPixels == 0 {
		return 1.0
	}

	const threshSq = pixelDistanceThreshold * pixelDistanceThreshold
	different := 0
	for i := 0; i+3 < len(current); i += 4 {
		dr := int(current[i]) - int(previous[i])
		dg := int(current[i+1]) - int(previous[i+1])
		db := int(current[i+2]) - int(previous[i+2])
		if dr*dr+dg*dg+db*db > threshSq {
			different++
		}
	}
	return float64(different) / float64(totalPixels)
}

// textDifference is the Levenshtein distance between the two texts
// normalized by the longer length. A text present on exactly one side is a
// complete change.
func textDifference(current string, hasCurrent bool, previous string, hasPrevious bool) float64 {
	switch {
	case hasCurrent && hasPrevious:
		if current == previous {
			return 0
		}
		maxLen := max(len([]rune(current)), len([]rune(previous)))
		if maxLen == 0 {
			return 0
		}
		return float64(levenshtein(current, previous)) / float64(maxLen)
	case hasCurrent != hasPrevious:
		return 1.0
	default:
		return 0
	}
}

func (d *Detector) uiDifference(current, previous *bufferedFrame) (float64, []types.ChangedRegion) {
	var regions []types.ChangedRegion
	var uiDiff float64

	fullScreen := types.BoundingBox{
		Width:  float64(current.resolution[0]),
		Height: float64(current.resolution[1]),
	}

	if current.resolution != previous.resolution {
		regions = append(regions, types.ChangedRegion{
			RegionID:    "window",
			RegionType:  types.RegionMainContent,
			Box:         fullScreen,
			ChangeType:  types.ChangeWindowSize,
			Intensity:   1.0,
			Description: "Window size changed",
		})
		uiDiff = 0.5
	}

	if current.appHint != previous.appHint {
		regions = append(regions, types.ChangedRegion{
			RegionID:    "application",
			RegionType:  types.RegionMainContent,
			Box:         fullScreen,
			ChangeType:  types.ChangeApplication,
			Intensity:   1.0,
			Description: fmt.Sprintf("Application changed from %q to %q", previous.appHint, current.appHint),
		})
		uiDiff = 1.0
	}

	return uiDiff, regions
}

func summarize(pixelDiff, textDiff, uiDiff float64, regions []types.ChangedRegion) string {
	var parts []string

	if pixelDiff > 0.2 {
		parts = append(parts, fmt.Sprintf("Major visual change (%.1f%%)", pixelDiff*100))
	} else if pixelDiff > 0.05 {
		parts = append(parts, fmt.Sprintf("Minor visual change (%.1f%%)", pixelDiff*100))
	}
	if textDiff > 0.1 {
		parts = append(parts, fmt.Sprintf("Text content changed (%.1f%%)", textDiff*100))
	}
	if uiDiff > 0.1 {
		parts = append(parts, "UI layout changed")
	}
	for _, region := range regions {
		switch region.ChangeType {
		case types.ChangeApplication:
			parts = append(parts, "Application switched")
		case types.ChangeWindowSize:
			parts = append(parts, "Window resized")
		case types.ChangeScrolling:
			parts = append(parts, "Content scrolled")
		}
	}

	if len(parts) == 0 {
		return "No significant changes detected"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// imageHash samples every 16th pixel of the RGBA buffer into a 64-bit FNV
// digest.
func (d *Detector) imageHash(frame *types.Frame) uint64 {
	h := fnv.New64a()
	if frame.Image == nil {
		return h.Sum64()
	}
	pix := frame.Image.Pix
	for i := 0; i+3 < len(pix); i += 64 { // every 16th pixel * 4 bytes
		h.Write(pix[i : i+4])
	}
	return h.Sum64()
}

func (d *Detector) seenRecently(hash uint64) bool {
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	last, ok := d.hashSeen[hash]
	return ok && time.Since(last) < dedupWindow
}

// IsDuplicate reports whether the hash was seen within the dedup window.
// Safe for concurrent use.
func (d *Detector) IsDuplicate(hash uint64) bool {
	return d.seenRecently(hash)
}

func (d *Detector) rememberHash(hash uint64) {
	d.hashMu.Lock()
	d.hashSeen[hash] = time.Now()
	d.hashMu.Unlock()
}

func (d *Detector) evictOldHashes() {
	cutoff := time.Now().Add(-hashRetention)
	d.hashMu.Lock()
	for h, ts := range d.hashSeen {
		if ts.Before(cutoff) {
			delete(d.hashSeen, h)
		}
	}
	d.hashMu.Unlock()
}

func (d *Detector) push(entry bufferedFrame) {
	if len(d.frames) >= d.cfg.BufferSize {
		d.frames = d.frames[1:]
	}
	d.frames = append(d.frames, entry)
}

func (d *Detector) lastFrameID() string {
	if len(d.frames) == 0 {
		return ""
	}
	return d.frames[len(d.frames)-1].frameID
}

func (d *Detector) updateThreshold(score float64) {
	d.recentScores = append(d.recentScores, score)
	if len(d.recentScores) > scoreWindow {
		d.recentScores = d.recentScores[1:]
	}
	if len(d.recentScores) < scoreMinSamples {
		return
	}
	var sum float64
	for _, s := range d.recentScores {
		sum += s
	}
	mean := sum / float64(len(d.recentScores))
	d.effective = clamp(d.cfg.PixelDiffThreshold+0.5*mean, 0.01, 0.5)
}

// EffectiveThreshold returns the current significance threshold.
func (d *Detector) EffectiveThreshold() float64 {
	if !d.cfg.AdaptiveThreshold {
		return d.cfg.SignificantChangeThreshold
	}
	return d.effective
}

// BufferInfo returns the number of buffered frames and tracked hashes.
func (d *Detector) BufferInfo() (frames int, hashes int) {
	d.hashMu.Lock()
	hashes = len(d.hashSeen)
	d.hashMu.Unlock()
	return len(d.frames), hashes
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// levenshtein returns the edit distance between two strings, by runes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
