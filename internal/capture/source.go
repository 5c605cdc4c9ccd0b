// Package capture provides frame sources for the pipeline. The OS screen
// grabber is an external collaborator; this package adapts its output
// (image files dropped into a spool directory) and provides an in-memory
// source for tests and one-shot processing.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"screensage/internal/logging"
	"screensage/internal/types"
)

// FrameSource produces frames for the coordinator. Next blocks until a
// frame is available, the source is exhausted (io.EOF), or the context is
// canceled.
type FrameSource interface {
	Next(ctx context.Context) (*types.Frame, error)
	Close() error
}

// LoadFrame reads a PNG file into a Frame. The app hint is parsed from an
// optional "@hint" suffix in the file name ("shot@Terminal.png").
func LoadFrame(path string) (*types.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	rgba, ok := decoded.(*image.RGBA)
	if !ok {
		bounds := decoded.Bounds()
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, decoded, bounds.Min, draw.Src)
	}

	return &types.Frame{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Image:      rgba,
		Resolution: [2]int{rgba.Bounds().Dx(), rgba.Bounds().Dy()},
		AppHint:    hintFromName(path),
	}, nil
}

func hintFromName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.LastIndex(base, "@"); idx >= 0 && idx < len(base)-1 {
		return base[idx+1:]
	}
	return ""
}

// DirectorySource watches a spool directory and emits a frame for every
// PNG written into it.
type DirectorySource struct {
	watcher *fsnotify.Watcher
	frames  chan *types.Frame
	done    chan struct{}
	once    sync.Once
}

// NewDirectorySource starts watching dir. Existing files are not replayed;
// only newly written frames are emitted.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s := &DirectorySource{
		watcher: watcher,
		frames:  make(chan *types.Frame, 8),
		done:    make(chan struct{}),
	}
	go s.run()
	logging.Get(logging.CategoryCapture).Info("watching %s for frames", dir)
	return s, nil
}

func (s *DirectorySource) run() {
	defer close(s.frames)
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if strings.ToLower(filepath.Ext(event.Name)) != ".png" {
				continue
			}
			// The grabber may still be writing; give it a beat.
			time.Sleep(50 * time.Millisecond)
			frame, err := LoadFrame(event.Name)
			if err != nil {
				logging.Get(logging.CategoryCapture).Warn("skipping %s: %v", event.Name, err)
				continue
			}
			select {
			case s.frames <- frame:
			case <-s.done:
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryCapture).Warn("watcher error: %v", err)
		}
	}
}

// Next returns the next spooled frame.
func (s *DirectorySource) Next(ctx context.Context) (*types.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

// Close stops the watcher.
func (s *DirectorySource) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.watcher.Close()
}

// StaticSource replays a fixed list of frames, then reports io.EOF.
type StaticSource struct {
	mu     sync.Mutex
	frames []*types.Frame
}

// NewStaticSource creates a source over the given frames.
func NewStaticSource(frames ...*types.Frame) *StaticSource {
	return &StaticSource{frames: frames}
}

// Next pops the next frame.
func (s *StaticSource) Next(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

// Close implements FrameSource.
func (s *StaticSource) Close() error {
	return nil
}
