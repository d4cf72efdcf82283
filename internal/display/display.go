// Package display pushes rendered frames to an e-paper panel or a PNG file.
package display

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// Panel is an output device for landscape grayscale frames.
type Panel interface {
	// Bounds is the landscape frame size the panel expects.
	Bounds() image.Rectangle
	Show(ctx context.Context, frame *image.Gray) error
	// Clear cycles the panel through black and white to remove ghosting.
	Clear(ctx context.Context) error
	Close() error
}

// FilePanel writes each frame to a PNG file, for development without
// hardware and for previews.
type FilePanel struct {
	path   string
	bounds image.Rectangle

	mu     sync.Mutex
	frames int
	clears int
}

// NewFilePanel returns a FilePanel of width x height writing to path.
func NewFilePanel(path string, width, height int) *FilePanel {
	return &FilePanel{path: path, bounds: image.Rect(0, 0, width, height)}
}

// Bounds implements Panel.
func (p *FilePanel) Bounds() image.Rectangle {
	return p.bounds
}

// Path returns the output file.
func (p *FilePanel) Path() string {
	return p.path
}

// Show implements Panel.
func (p *FilePanel) Show(_ context.Context, frame *image.Gray) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := WritePNG(p.path, frame); err != nil {
		return err
	}
	p.frames++
	return nil
}

// Clear implements Panel by writing a white frame.
func (p *FilePanel) Clear(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	blank := image.NewGray(p.bounds)
	draw.Draw(blank, blank.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if err := WritePNG(p.path, blank); err != nil {
		return err
	}
	p.clears++
	return nil
}

// Counts returns how many frames and clears have been written.
func (p *FilePanel) Counts() (frames, clears int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames, p.clears
}

// Close implements Panel.
func (p *FilePanel) Close() error {
	return nil
}

// WritePNG encodes img to path, replacing any previous file atomically.
func WritePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".frame-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close png: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move png into place: %w", err)
	}
	return nil
}

// rotateToPortrait turns a landscape frame a quarter turn clockwise.
func rotateToPortrait(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			dst.SetGray(x, y, src.GrayAt(b.Min.X+y, b.Min.Y+h-1-x))
		}
	}
	return dst
}

func sameFrame(prev, curr *image.Gray) bool {
	if prev == nil || !prev.Rect.Eq(curr.Rect) {
		return false
	}
	return bytes.Equal(prev.Pix, curr.Pix)
}
