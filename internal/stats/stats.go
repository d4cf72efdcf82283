// Package stats tracks runtime counters, aggregates status snapshots and
// renders display history reports.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/bibleclock/internal/model"
)

const (
	dayLayout  = "2006-01-02"
	sparkChars = " .:-=+*#%@"
)

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// DayCounts converts daily activity into plottable values.
func DayCounts(days []model.DayCount) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = float64(d.Count)
	}
	return out
}

// RenderSummary prints totals for the report.
func RenderSummary(w io.Writer, r Report) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No verses displayed yet.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Verses displayed: %d", r.Total),
		fmt.Sprintf("Books seen: %d", r.BooksSeen),
	}
	if len(r.Days) > 0 {
		counts := DayCounts(r.Days)
		var sum float64
		for _, c := range counts {
			sum += c
		}
		lines = append(lines,
			fmt.Sprintf("Avg per day (%d days): %.1f", len(r.Days), sum/float64(len(r.Days))),
			fmt.Sprintf("Activity: %s", Sparkline(counts)),
		)
	}
	for _, line := range append(lines, "") {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderModeTable prints display counts per mode, in mode order.
func RenderModeTable(w io.Writer, r Report) error {
	if len(r.Modes) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Modes"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(r.Modes))
	for _, mode := range model.DisplayModes {
		count, ok := r.Modes[mode]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(mode), fmt.Sprintf("%d", count), percent(count, r.Total)})
	}
	return writeTable(w, []string{"Mode", "Verses", "Share"}, rows, map[int]bool{1: true, 2: true})
}

// RenderBookTable prints the most displayed books.
func RenderBookTable(w io.Writer, r Report) error {
	if len(r.Books) == 0 {
		_, err := fmt.Fprintln(w, "No book stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Top Books"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(r.Books))
	for i, b := range r.Books {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), b.Book, fmt.Sprintf("%d", b.Count), percent(b.Count, r.Total)})
	}
	return writeTable(w, []string{"#", "Book", "Verses", "Share"}, rows, map[int]bool{0: true, 2: true, 3: true})
}

// RenderDailyCurve plots verses per day with a moving average.
func RenderDailyCurve(w io.Writer, days []model.DayCount, window, totalWidth, height int, useColor bool) error {
	if len(days) == 0 {
		return nil
	}
	counts := DayCounts(days)
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	title := fmt.Sprintf("Verses per day (%s to %s)", days[0].Day, days[len(days)-1].Day)
	return PlotSeries(w, title, []Series{
		{Name: "Verses", Values: counts},
		{Name: fmt.Sprintf("%d-day average", window), Values: MovingAverage(counts, window)},
	}, width, height, useColor)
}

// SortedModes returns modes by descending count, ties in mode order.
func SortedModes(counts map[model.DisplayMode]int) []model.DisplayMode {
	modes := make([]model.DisplayMode, 0, len(counts))
	for mode := range counts {
		modes = append(modes, mode)
	}
	order := map[model.DisplayMode]int{}
	for i, m := range model.DisplayModes {
		order[m] = i
	}
	sort.Slice(modes, func(i, j int) bool {
		if counts[modes[i]] == counts[modes[j]] {
			return order[modes[i]] < order[modes[j]]
		}
		return counts[modes[i]] > counts[modes[j]]
	})
	return modes
}

func percent(count, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
