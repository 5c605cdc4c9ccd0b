// Package types holds the shared data model for the screensage pipeline:
// frames, change reports, OCR hierarchies, vision analyses, detected
// problems, generated solutions, and the events published to the overlay.
//
// The OCR hierarchy (word -> line -> paragraph -> region) is modeled with
// owning slices at each level and line_id/paragraph_id keys instead of
// back-pointers, so the whole result serializes cleanly.
package types

import (
	"image"
	"time"
)

// BoundingBox is an axis-aligned rectangle in screen pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether b fully contains other.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return other.X >= b.X && other.Y >= b.Y &&
		other.X+other.Width <= b.X+b.Width &&
		other.Y+other.Height <= b.Y+b.Height
}

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if b.Width == 0 && b.Height == 0 {
		return other
	}
	minX := min(b.X, other.X)
	minY := min(b.Y, other.Y)
	maxX := max(b.X+b.Width, other.X+other.Width)
	maxY := max(b.Y+b.Height, other.Y+other.Height)
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// OverlapRatio returns the overlapping area divided by b's own area.
func (b BoundingBox) OverlapRatio(other BoundingBox) float64 {
	overlapX := min(b.X+b.Width, other.X+other.Width) - max(b.X, other.X)
	overlapY := min(b.Y+b.Height, other.Y+other.Height) - max(b.Y, other.Y)
	if overlapX <= 0 || overlapY <= 0 {
		return 0
	}
	area := b.Width * b.Height
	if area <= 0 {
		return 0
	}
	return (overlapX * overlapY) / area
}

// Frame is one captured screen image plus metadata. Frames are immutable
// once handed to the change detector; Hash is filled in by the detector on
// first observation.
type Frame struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Image      *image.RGBA
	Resolution [2]int `json:"resolution"`
	Hash       uint64 `json:"image_hash"`
	AppHint    string `json:"app_hint,omitempty"`
	DisplayID  string `json:"display_id,omitempty"`
}

// ChangeType labels what kind of change a region exhibits.
type ChangeType string

const (
	ChangeText        ChangeType = "TextChange"
	ChangeUIElement   ChangeType = "UIElementChange"
	ChangeWindowSize  ChangeType = "WindowResize"
	ChangeApplication ChangeType = "ApplicationSwitch"
	ChangeScrolling   ChangeType = "ContentScrolling"
)

// RegionType labels a screen layout region.
type RegionType string

const (
	RegionMenuBar      RegionType = "MenuBar"
	RegionSidebar      RegionType = "Sidebar"
	RegionMainContent  RegionType = "MainContent"
	RegionStatusBar    RegionType = "StatusBar"
	RegionDialog       RegionType = "Dialog"
	RegionToolbar      RegionType = "Toolbar"
	RegionCodeEditor   RegionType = "CodeEditor"
	RegionTerminal     RegionType = "Terminal"
	RegionBrowser      RegionType = "Browser"
	RegionChatWindow   RegionType = "ChatWindow"
	RegionFileExplorer RegionType = "FileExplorer"
	RegionUnknown      RegionType = "Unknown"
)

// ChangedRegion describes one region of the screen that changed between
// consecutive frames.
type ChangedRegion struct {
	RegionID    string      `json:"region_id"`
	RegionType  RegionType  `json:"region_type"`
	Box         BoundingBox `json:"bounding_box"`
	ChangeType  ChangeType  `json:"change_type"`
	Intensity   float64     `json:"change_intensity"`
	Description string      `json:"description"`
}

// ChangeReport is the change detector's verdict for one frame.
// Overall is always 0.4*PixelDiff + 0.4*TextDiff + 0.2*UIDiff.
type ChangeReport struct {
	FrameID         string          `json:"frame_id"`
	PreviousFrameID string          `json:"previous_frame_id,omitempty"`
	PixelDiff       float64         `json:"pixel_diff"`
	TextDiff        float64         `json:"text_diff"`
	UIDiff          float64         `json:"ui_diff"`
	Overall         float64         `json:"overall"`
	Regions         []ChangedRegion `json:"regions,omitempty"`
	Significant     bool            `json:"significant"`
	Summary         string          `json:"summary"`
	ProcessingMs    int64           `json:"processing_time_ms"`
}
