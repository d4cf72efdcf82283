package stats

import (
	"testing"

	"github.com/verte-zerg/bibleclock/internal/model"
)

func TestTopBooks(t *testing.T) {
	counts := []model.BookCount{
		{Book: "John", Count: 3},
		{Book: "Acts", Count: 3},
		{Book: "Psalms", Count: 5},
	}
	top := TopBooks(counts, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 books, got %d", len(top))
	}
	if top[0].Book != "Psalms" || top[1].Book != "Acts" {
		t.Fatalf("unexpected order: %v", top)
	}
	if counts[0].Book != "John" {
		t.Fatalf("input slice must not be reordered")
	}
	if TopBooks(counts, 0) != nil {
		t.Fatalf("expected nil for n=0")
	}
}
