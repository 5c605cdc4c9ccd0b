package capture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"screensage/internal/types"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 0, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestLoadFrame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot@Terminal.png")
	writePNG(t, path)

	frame, err := LoadFrame(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if frame.Resolution != [2]int{8, 8} {
		t.Fatalf("unexpected resolution: %v", frame.Resolution)
	}
	if frame.AppHint != "Terminal" {
		t.Fatalf("hint not parsed from name: %q", frame.AppHint)
	}
	if frame.Image == nil || frame.ID == "" {
		t.Fatalf("frame incomplete: %+v", frame)
	}
}

func TestLoadFrameWithoutHint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.png")
	writePNG(t, path)

	frame, err := LoadFrame(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if frame.AppHint != "" {
		t.Fatalf("expected empty hint, got %q", frame.AppHint)
	}
}

func TestStaticSourceDrains(t *testing.T) {
	f1 := &types.Frame{ID: "a"}
	f2 := &types.Frame{ID: "b"}
	s := NewStaticSource(f1, f2)
	ctx := context.Background()

	got1, err := s.Next(ctx)
	if err != nil || got1.ID != "a" {
		t.Fatalf("first: %v %v", got1, err)
	}
	got2, err := s.Next(ctx)
	if err != nil || got2.ID != "b" {
		t.Fatalf("second: %v %v", got2, err)
	}
	if _, err := s.Next(ctx); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestDirectorySourceEmitsNewFrames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirectorySource(dir)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer s.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		writePNG(t, filepath.Join(dir, "frame1@Safari.png"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frame, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if frame.AppHint != "Safari" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestDirectorySourceIgnoresNonPNG(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirectorySource(dir)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline, got %v", err)
	}
}
