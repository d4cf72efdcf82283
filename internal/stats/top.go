package stats

import (
	"sort"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// TopBooks returns the n most displayed books, ties broken by name.
func TopBooks(counts []model.BookCount, n int) []model.BookCount {
	if n <= 0 || len(counts) == 0 {
		return nil
	}
	items := make([]model.BookCount, len(counts))
	copy(items, counts)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Book < items[j].Book
		}
		return items[i].Count > items[j].Count
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
