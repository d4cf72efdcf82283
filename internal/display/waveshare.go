package display

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"sync"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v2"
	"periph.io/x/host/v3"
)

// Waveshare drives a Waveshare 2.13" v2 e-paper HAT over SPI. The panel is
// mounted in portrait; frames are rendered in landscape and rotated.
type Waveshare struct {
	port spi.PortCloser
	dev  *waveshare2in13v2.Dev

	mu       sync.Mutex
	sleeping bool
	last     *image.Gray
}

// OpenWaveshare initializes the host, opens the default SPI port and clears
// the panel.
func OpenWaveshare() (*Waveshare, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init host: %w", err)
	}
	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("failed to open spi: %w", err)
	}
	opts := waveshare2in13v2.EPD2in13v2
	dev, err := waveshare2in13v2.NewHat(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to open panel: %w", err)
	}
	if err := dev.Init(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to init panel: %w", err)
	}
	if err := dev.Clear(color.White); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to clear panel: %w", err)
	}
	// Frames use partial updates; Clear switches to a full refresh.
	if err := dev.SetUpdateMode(waveshare2in13v2.Partial); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set update mode: %w", err)
	}
	return &Waveshare{port: port, dev: dev}, nil
}

// Bounds implements Panel with the landscape size of the panel.
func (w *Waveshare) Bounds() image.Rectangle {
	return landscape(w.dev.Bounds())
}

func landscape(b image.Rectangle) image.Rectangle {
	return image.Rect(0, 0, b.Dy(), b.Dx())
}

// Show implements Panel. Identical frames are skipped.
func (w *Waveshare) Show(_ context.Context, frame *image.Gray) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sameFrame(w.last, frame) {
		return nil
	}
	if err := w.wakeLocked(); err != nil {
		return err
	}
	portrait := rotateToPortrait(frame)
	img := image1bit.NewVerticalLSB(w.dev.Bounds())
	draw.Draw(img, img.Bounds(), portrait, image.Point{}, draw.Src)
	if err := w.dev.Draw(w.dev.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("failed to draw frame: %w", err)
	}
	w.last = frame
	w.sleepLocked()
	return nil
}

// Clear implements Panel.
func (w *Waveshare) Clear(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.wakeLocked(); err != nil {
		return err
	}
	if err := w.dev.SetUpdateMode(waveshare2in13v2.Full); err != nil {
		return fmt.Errorf("failed to set update mode: %w", err)
	}
	for _, c := range []color.Color{color.Black, color.White} {
		if err := w.dev.Clear(c); err != nil {
			return fmt.Errorf("failed to clear panel: %w", err)
		}
	}
	if err := w.dev.SetUpdateMode(waveshare2in13v2.Partial); err != nil {
		return fmt.Errorf("failed to set update mode: %w", err)
	}
	w.last = nil
	w.sleepLocked()
	return nil
}

// Close blanks the panel and releases the SPI port.
func (w *Waveshare) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.wakeLocked(); err == nil {
		if err := w.dev.Clear(color.White); err != nil {
			log.Printf("display: exit clear failed: %v", err)
		}
	}
	if err := w.dev.Halt(); err != nil {
		log.Printf("display: halt failed: %v", err)
	}
	return w.port.Close()
}

func (w *Waveshare) wakeLocked() error {
	if !w.sleeping {
		return nil
	}
	if err := w.dev.Init(); err != nil {
		return fmt.Errorf("failed to wake panel: %w", err)
	}
	w.sleeping = false
	return nil
}

func (w *Waveshare) sleepLocked() {
	if err := w.dev.Sleep(); err != nil {
		log.Printf("display: sleep failed: %v", err)
		return
	}
	w.sleeping = true
}
