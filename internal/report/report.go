// Package report renders label summaries as Markdown and bar charts.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/KaramelBytes/labelsift/internal/dataset"
)

// Summary describes a dataset and, optionally, the view filtered from it.
type Summary struct {
	Name      string
	Columns   dataset.Columns
	Rows      int
	Selection []string
	Matched   int
	Counts    []dataset.LabelCount
	Samples   []dataset.Record
	Warnings  []string
}

// Summarize builds a Summary of ds. view may be nil when nothing is selected.
// Labels outside vocab are reported as warnings when vocab is non-empty.
func Summarize(ds, view *dataset.Dataset, vocab dataset.Vocabulary, samples int) *Summary {
	s := &Summary{
		Name:    ds.Name,
		Columns: ds.Columns,
		Rows:    ds.Len(),
		Counts:  ds.Counts(),
	}
	src := ds
	if view != nil {
		s.Selection = view.Selection
		s.Matched = view.Len()
		src = view
	}
	if samples > src.Len() {
		samples = src.Len()
	}
	if samples > 0 {
		s.Samples = append([]dataset.Record(nil), src.Records[:samples]...)
	}

	empty := 0
	for _, r := range ds.Records {
		if dataset.LabelKey(r.Sentiment) == "" {
			empty++
		}
	}
	if empty > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d rows have an empty label", empty))
	}
	if len(vocab) > 0 {
		var unknown []string
		for _, c := range s.Counts {
			if !vocab.Contains(c.Label) {
				unknown = append(unknown, c.Label)
			}
		}
		if len(unknown) > 0 {
			s.Warnings = append(s.Warnings, fmt.Sprintf("labels outside the vocabulary (%s): %s", strings.Join(vocab, ", "), strings.Join(unknown, ", ")))
		}
	}
	return s
}

// CountLine is the one-line result shown above a filtered table.
func (s *Summary) CountLine() string {
	return fmt.Sprintf("Rows labeled %s: %d", strings.Join(s.Selection, ", "), s.Matched)
}

// Markdown renders a compact report.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", s.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", s.Rows)
	fmt.Fprintf(&b, "Columns: %s, %s\n", s.Columns.Text, s.Columns.Label)

	b.WriteString("\n[LABELS]\n")
	if len(s.Counts) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, c := range s.Counts {
		pct := 0.0
		if s.Rows > 0 {
			pct = float64(c.Count) * 100.0 / float64(s.Rows)
		}
		fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", c.Label, c.Count, pct)
	}

	if len(s.Selection) > 0 {
		b.WriteString("\n[SELECTION]\n")
		b.WriteString(s.CountLine())
		b.WriteString("\n")
	}
	if len(s.Samples) > 0 {
		b.WriteString("\n[SAMPLES]\n")
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", s.Columns.Label, s.Columns.Text)
		for _, r := range s.Samples {
			fmt.Fprintf(&b, "| %s | %s |\n", safeVal(r.Sentiment), safeVal(r.Comment))
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range s.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// BarChart writes a PNG bar chart of per-label totals to w.
func BarChart(w io.Writer, counts []dataset.LabelCount) error {
	if len(counts) == 0 {
		return errors.New("no labels to chart")
	}
	bars := make([]chart.Value, 0, len(counts))
	top := 0
	for _, c := range counts {
		bars = append(bars, chart.Value{Value: float64(c.Count), Label: c.Label})
		if c.Count > top {
			top = c.Count
		}
	}
	width := 120 * len(bars)
	if width < 480 {
		width = 480
	}
	ch := chart.BarChart{
		Title:      "Rows per label",
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		Width:      width,
		Height:     360,
		BarWidth:   60,
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: float64(top) * 1.1}},
		Bars:       bars,
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
