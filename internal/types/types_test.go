package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}
	b := BoundingBox{X: 40, Y: 5, Width: 10, Height: 10}

	u := a.Union(b)
	if u.X != 10 || u.Y != 5 {
		t.Fatalf("unexpected union origin: %+v", u)
	}
	if u.Width != 40 || u.Height != 25 {
		t.Fatalf("unexpected union size: %+v", u)
	}

	// A zero box acts as the identity.
	var zero BoundingBox
	if got := zero.Union(a); got != a {
		t.Fatalf("zero union should return other box, got %+v", got)
	}
}

func TestBoundingBoxContains(t *testing.T) {
	outer := BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}
	inner := BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}

	if !outer.Contains(inner) {
		t.Fatalf("expected outer to contain inner")
	}
	if inner.Contains(outer) {
		t.Fatalf("inner must not contain outer")
	}
	if !outer.Contains(outer) {
		t.Fatalf("a box contains itself")
	}
}

func TestBoundingBoxOverlapRatio(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}
	b := BoundingBox{X: 5, Y: 0, Width: 10, Height: 10}

	if got := a.OverlapRatio(b); got != 0.5 {
		t.Fatalf("expected overlap 0.5, got %f", got)
	}
	far := BoundingBox{X: 100, Y: 100, Width: 5, Height: 5}
	if got := a.OverlapRatio(far); got != 0 {
		t.Fatalf("expected no overlap, got %f", got)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	p := DetectedProblem{
		Type:        ProblemAlgorithmChallenge,
		Description: "Given an array of integers nums and an integer target...",
		Language:    LangPython,
		StarterCode: "def twoSum(self, nums, target):",
	}
	q := p

	if p.Fingerprint() != q.Fingerprint() {
		t.Fatalf("identical problems must share a fingerprint")
	}

	q.Description = "something else"
	if p.Fingerprint() == q.Fingerprint() {
		t.Fatalf("different descriptions must not collide")
	}

	// Title and confidence are not identifying fields.
	r := p
	r.Title = "Two Sum"
	r.Confidence = 0.99
	if p.Fingerprint() != r.Fingerprint() {
		t.Fatalf("title/confidence must not affect the fingerprint")
	}
}

func TestDetectedProblemRoundTrip(t *testing.T) {
	passed := true
	p := DetectedProblem{
		ID:          "p1",
		Type:        ProblemAlgorithmChallenge,
		Title:       "Two Sum",
		Description: "Find indices of the two numbers that add up to target.",
		CodeContext: CodeContext{
			VisibleCode:     "def twoSum(self, nums, target):\n    pass",
			FocusedFunction: "twoSum",
			Imports:         []string{"from typing import List"},
		},
		Platform:    PlatformLeetCode,
		Language:    LangPython,
		StarterCode: "def twoSum(self, nums, target):",
		TestCases: []TestCase{
			{Input: "[2,7,11,15], target=9", ExpectedOutput: "[0,1]", Passed: &passed},
		},
		Constraints:  []string{"2 <= nums.length <= 10^4"},
		Confidence:   0.93,
		DetectedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ScreenRegion: BoundingBox{X: 0, Y: 0, Width: 1920, Height: 1080},
	}

	data, err := json.Marshal(&p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back DetectedProblem
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.ID != p.ID || back.Type != p.Type || back.Title != p.Title {
		t.Fatalf("identity fields did not survive: %+v", back)
	}
	if back.Fingerprint() != p.Fingerprint() {
		t.Fatalf("fingerprint changed across a round trip")
	}
	if len(back.TestCases) != 1 || back.TestCases[0].Passed == nil || !*back.TestCases[0].Passed {
		t.Fatalf("test case did not survive: %+v", back.TestCases)
	}
	if !back.DetectedAt.Equal(p.DetectedAt) {
		t.Fatalf("timestamp drift: %v vs %v", back.DetectedAt, p.DetectedAt)
	}
}

func TestOcrResultLookups(t *testing.T) {
	r := OcrResult{
		Lines:      []Line{{ID: "line_0", Text: "hello"}},
		Paragraphs: []Paragraph{{ID: "para_0", Text: "hello"}},
	}
	if r.LineByID("line_0") == nil || r.LineByID("line_9") != nil {
		t.Fatalf("line lookup broken")
	}
	if r.ParagraphByID("para_0") == nil || r.ParagraphByID("nope") != nil {
		t.Fatalf("paragraph lookup broken")
	}
}
