// Package render draws verses into grayscale frames sized for the e-paper panel.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// Default frame size of the 7.5" Waveshare panel.
const (
	DefaultWidth  = 800
	DefaultHeight = 480
)

const (
	lineSpacing    = 1.2
	minFrameWidth  = 200
	minFrameHeight = 120
	minFontSize    = 8
)

// bodySizes are tried largest first until the text fits. They are scaled
// with the frame height.
var bodySizes = []float64{40, 34, 30, 26, 22, 18, 16, 14}

// layout holds pixel metrics scaled to the frame.
type layout struct {
	margin     int
	gap        int
	headerSize float64
	labelSize  float64
	footer     int
	bodySizes  []float64
}

func newLayout(width, height int) layout {
	scale := math.Min(float64(width)/DefaultWidth, float64(height)/DefaultHeight)
	px := func(v float64, floor int) int {
		return max(int(math.Round(v*scale)), floor)
	}
	pt := func(v float64) float64 {
		return math.Max(math.Round(v*scale), minFontSize)
	}
	l := layout{
		margin:     px(24, 4),
		gap:        px(24, 6),
		headerSize: pt(30),
		labelSize:  pt(20),
		footer:     px(20, basicfont.Face7x13.Height),
	}
	for _, size := range bodySizes {
		scaled := pt(size)
		if n := len(l.bodySizes); n == 0 || l.bodySizes[n-1] != scaled {
			l.bodySizes = append(l.bodySizes, scaled)
		}
	}
	return l
}

var (
	ink   = color.Gray{Y: 0}
	paper = color.Gray{Y: 255}
)

// Renderer turns verses into frames.
type Renderer struct {
	width   int
	height  int
	layout  layout
	regular *opentype.Font
	bold    *opentype.Font
}

// New parses the bundled Go fonts for a width x height frame.
func New(width, height int) (*Renderer, error) {
	if width < minFrameWidth || height < minFrameHeight {
		return nil, fmt.Errorf("frame %dx%d is too small", width, height)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &Renderer{width: width, height: height, layout: newLayout(width, height), regular: regular, bold: bold}, nil
}

// Bounds returns the frame rectangle.
func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.width, r.height)
}

func (r *Renderer) face(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create %.0fpt face: %w", size, err)
	}
	return face, nil
}

// Blank returns an all-white frame.
func (r *Renderer) Blank() *image.Gray {
	img := image.NewGray(r.Bounds())
	draw.Draw(img, img.Bounds(), &image.Uniform{C: paper}, image.Point{}, draw.Src)
	return img
}

// Render draws v. Parallel verses get two columns.
func (r *Renderer) Render(v model.Verse) (*image.Gray, error) {
	img := r.Blank()
	margin := r.layout.margin

	header, err := r.face(r.bold, r.layout.headerSize)
	if err != nil {
		return nil, err
	}
	defer header.Close()
	label, err := r.face(r.regular, r.layout.labelSize)
	if err != nil {
		return nil, err
	}
	defer label.Close()

	headerBase := margin + header.Metrics().Ascent.Ceil()
	drawText(img, header, margin, headerBase, v.Reference)
	if tag := translationTag(v); tag != "" {
		x := r.width - margin - font.MeasureString(label, tag).Ceil()
		drawText(img, label, x, headerBase, tag)
	}
	ruleY := headerBase + header.Metrics().Descent.Ceil() + margin/3
	hline(img, margin, r.width-margin, ruleY)

	bodyTop := ruleY + margin*2/3
	bodyBottom := r.height - margin - r.layout.footer
	if v.ParallelMode {
		err = r.drawColumns(img, v, bodyTop, bodyBottom)
	} else {
		err = r.drawBody(img, v.Text, margin, r.width-margin, bodyTop, bodyBottom, true)
	}
	if err != nil {
		return nil, err
	}

	if caption := Caption(v); caption != "" {
		drawText(img, basicfont.Face7x13, margin, r.height-margin, caption)
	}
	return img, nil
}

func (r *Renderer) drawColumns(img *image.Gray, v model.Verse, top, bottom int) error {
	mid := r.width / 2
	left, right := r.layout.margin, r.width-r.layout.margin
	columnGap := r.layout.gap
	vline(img, mid, top, bottom)

	label, err := r.face(r.bold, r.layout.labelSize)
	if err != nil {
		return err
	}
	defer label.Close()
	labelBase := top + label.Metrics().Ascent.Ceil()
	drawText(img, label, left, labelBase, v.PrimaryTranslation)
	drawText(img, label, mid+columnGap/2, labelBase, v.SecondaryTranslation)

	textTop := labelBase + label.Metrics().Descent.Ceil() + r.layout.margin/2
	size, err := r.fitSize([]string{v.Text, v.SecondaryText}, mid-columnGap/2-left, bottom-textTop)
	if err != nil {
		return err
	}
	if err := r.drawBodyAt(img, v.Text, size, left, mid-columnGap/2, textTop, bottom, false); err != nil {
		return err
	}
	return r.drawBodyAt(img, v.SecondaryText, size, mid+columnGap/2, right, textTop, bottom, false)
}

func (r *Renderer) drawBody(img *image.Gray, text string, x0, x1, top, bottom int, center bool) error {
	size, err := r.fitSize([]string{text}, x1-x0, bottom-top)
	if err != nil {
		return err
	}
	return r.drawBodyAt(img, text, size, x0, x1, top, bottom, center)
}

// fitSize returns the largest body size at which every text fits width x height.
func (r *Renderer) fitSize(texts []string, width, height int) (float64, error) {
	sizes := r.layout.bodySizes
	for _, size := range sizes {
		face, err := r.face(r.regular, size)
		if err != nil {
			return 0, err
		}
		fits := true
		lh := lineHeight(face)
		for _, text := range texts {
			if len(Wrap(face, text, width))*lh > height {
				fits = false
				break
			}
		}
		_ = face.Close()
		if fits {
			return size, nil
		}
	}
	return sizes[len(sizes)-1], nil
}

func (r *Renderer) drawBodyAt(img *image.Gray, text string, size float64, x0, x1, top, bottom int, center bool) error {
	face, err := r.face(r.regular, size)
	if err != nil {
		return err
	}
	defer face.Close()

	width := x1 - x0
	lh := lineHeight(face)
	lines := truncate(face, Wrap(face, text, width), max((bottom-top)/lh, 1), width)
	y := top
	if center {
		y += ((bottom - top) - len(lines)*lh) / 2
	}
	ascent := face.Metrics().Ascent.Ceil()
	for _, line := range lines {
		x := x0
		if center {
			x += (width - font.MeasureString(face, line).Ceil()) / 2
		}
		drawText(img, face, x, y+ascent, line)
		y += lh
	}
	return nil
}

// Caption is the footer line describing where the verse came from.
func Caption(v model.Verse) string {
	switch {
	case v.IsDateEvent && v.EventName != "":
		return v.EventName
	case v.IsDevotional:
		parts := []string{}
		for _, s := range []string{v.DevotionalTitle, v.Author} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " - ")
	case v.IsSummary && v.Book != "":
		return "Book summary: " + v.Book
	}
	return ""
}

func translationTag(v model.Verse) string {
	if v.ParallelMode {
		return ""
	}
	return v.Translation
}

func lineHeight(face font.Face) int {
	return int(float64(face.Metrics().Height.Ceil())*lineSpacing + 0.5)
}

func drawText(img *image.Gray, face font.Face, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func hline(img *image.Gray, x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		if image.Pt(x, y).In(img.Rect) {
			img.SetGray(x, y, ink)
		}
	}
}

func vline(img *image.Gray, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		if image.Pt(x, y).In(img.Rect) {
			img.SetGray(x, y, ink)
		}
	}
}
