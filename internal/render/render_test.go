package render

import (
	"image"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/verte-zerg/bibleclock/internal/model"
)

func darkPixels(img *image.Gray, rect image.Rectangle) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.GrayAt(x, y).Y < 128 {
				n++
			}
		}
	}
	return n
}

func TestWrapFitsWidth(t *testing.T) {
	face := basicfont.Face7x13
	text := "For God so loved the world, that he gave his only begotten Son"
	lines := Wrap(face, text, 70)
	if len(lines) < 2 {
		t.Fatalf("expected multiple lines, got %q", lines)
	}
	for _, line := range lines {
		if font.MeasureString(face, line) > fixed.I(70) {
			t.Fatalf("line %q wider than 70px", line)
		}
		if strings.HasPrefix(line, " ") || strings.HasSuffix(line, " ") {
			t.Fatalf("line %q has edge spaces", line)
		}
	}
	if strings.Join(lines, " ") != text {
		t.Fatalf("wrapping lost text: %q", lines)
	}
}

func TestWrapSplitsLongWord(t *testing.T) {
	lines := Wrap(basicfont.Face7x13, "Mahershalalhashbaz", 35)
	if len(lines) != 4 || lines[0] != "Maher" {
		t.Fatalf("unexpected split %q", lines)
	}
}

func TestWrapEmpty(t *testing.T) {
	if lines := Wrap(basicfont.Face7x13, "   ", 100); lines != nil {
		t.Fatalf("expected no lines, got %q", lines)
	}
}

func TestTruncateAddsEllipsis(t *testing.T) {
	face := basicfont.Face7x13
	lines := []string{"one two", "three four", "five six"}
	got := truncate(face, lines, 2, 70)
	if len(got) != 2 || !strings.HasSuffix(got[1], "…") {
		t.Fatalf("unexpected truncation %q", got)
	}
	if len(truncate(face, lines, 5, 70)) != 3 {
		t.Fatalf("short input should be unchanged")
	}
}

func TestRenderSingleColumn(t *testing.T) {
	r, err := New(DefaultWidth, DefaultHeight)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	img, err := r.Render(model.Verse{
		Reference:   "John 03:16",
		Text:        "For God so loved the world, that he gave his only begotten Son.",
		Translation: "KJV",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds() != r.Bounds() {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	header := image.Rect(0, 0, DefaultWidth, 60)
	body := image.Rect(0, 100, DefaultWidth, DefaultHeight-50)
	if darkPixels(img, header) == 0 || darkPixels(img, body) == 0 {
		t.Fatalf("expected ink in header and body")
	}
}

func TestRenderParallelDrawsSeparator(t *testing.T) {
	r, err := New(DefaultWidth, DefaultHeight)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	img, err := r.Render(model.Verse{
		Reference:            "Psalms 23:01",
		Text:                 "The LORD is my shepherd; I shall not want.",
		ParallelMode:         true,
		PrimaryTranslation:   "KJV",
		SecondaryTranslation: "AMP",
		SecondaryText:        "[AMP - unavailable]",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	mid := DefaultWidth / 2
	column := image.Rect(mid, 120, mid+1, 300)
	if got := darkPixels(img, column); got != column.Dy() {
		t.Fatalf("expected solid separator, got %d of %d", got, column.Dy())
	}
	if darkPixels(img, image.Rect(mid+20, 80, DefaultWidth-20, 300)) == 0 {
		t.Fatalf("expected secondary column text")
	}
}

func TestRenderTooSmall(t *testing.T) {
	if _, err := New(10, 10); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestCaption(t *testing.T) {
	tests := []struct {
		verse model.Verse
		want  string
	}{
		{model.Verse{IsDateEvent: true, EventName: "Christmas Day"}, "Christmas Day"},
		{model.Verse{IsDevotional: true, DevotionalTitle: "Morning", Author: "Bible Clock"}, "Morning - Bible Clock"},
		{model.Verse{IsDevotional: true, DevotionalTitle: "Morning"}, "Morning"},
		{model.Verse{IsSummary: true, Book: "Ruth"}, "Book summary: Ruth"},
		{model.Verse{Reference: "John 03:16"}, ""},
	}
	for _, tt := range tests {
		if got := Caption(tt.verse); got != tt.want {
			t.Fatalf("Caption(%+v) = %q, want %q", tt.verse, got, tt.want)
		}
	}
}

func TestRenderSmallPanel(t *testing.T) {
	r, err := New(250, 122)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if r.layout.headerSize < minFontSize || r.layout.margin < 4 {
		t.Fatalf("layout not clamped: %+v", r.layout)
	}
	img, err := r.Render(model.Verse{
		Reference:   "09:00 AM",
		Text:        "Ruth is a story of loyalty and redemption in the days of the judges.",
		Translation: "KJV",
		IsSummary:   true,
		Book:        "Ruth",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if darkPixels(img, img.Bounds()) == 0 {
		t.Fatalf("expected ink on a small frame")
	}
}
