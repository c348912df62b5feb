package dataset

import "sort"

// Default canonical column names.
const (
	DefaultTextColumn  = "comment"
	DefaultLabelColumn = "sentiment"
)

// Columns names the two canonical output columns of a Dataset.
type Columns struct {
	Text  string
	Label string
}

// DefaultColumns returns the built-in canonical names.
func DefaultColumns() Columns {
	return Columns{Text: DefaultTextColumn, Label: DefaultLabelColumn}
}

func (c Columns) withDefaults() Columns {
	if c.Text == "" {
		c.Text = DefaultTextColumn
	}
	if c.Label == "" {
		c.Label = DefaultLabelColumn
	}
	return c
}

// Record is one normalized row.
type Record struct {
	Comment   string `json:"comment"`
	Sentiment string `json:"sentiment"`
}

// Dataset is an ordered, normalized table of comment/label pairs read from
// one source. A filtered view is also a Dataset; Selection records the
// labels that produced it.
type Dataset struct {
	Name      string
	Columns   Columns
	Records   []Record
	Selection []string
}

// New builds a Dataset from already-normalized records.
func New(name string, cols Columns, records []Record) *Dataset {
	return &Dataset{Name: name, Columns: cols.withDefaults(), Records: records}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Comments returns the text column in row order.
func (d *Dataset) Comments() []string {
	out := make([]string, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Comment
	}
	return out
}

// WithSentiments returns a copy of d whose label column is replaced by
// labels. The caller guarantees len(labels) == d.Len().
func (d *Dataset) WithSentiments(labels []string) *Dataset {
	recs := make([]Record, len(d.Records))
	for i, r := range d.Records {
		recs[i] = Record{Comment: r.Comment, Sentiment: labels[i]}
	}
	return &Dataset{Name: d.Name, Columns: d.Columns, Records: recs}
}

// Labels returns the distinct non-empty labels in first-seen order, with
// their original spelling. These are the options of a multi-select control.
func (d *Dataset) Labels() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range d.Records {
		if LabelKey(r.Sentiment) == "" {
			continue
		}
		if _, ok := seen[r.Sentiment]; ok {
			continue
		}
		seen[r.Sentiment] = struct{}{}
		out = append(out, r.Sentiment)
	}
	return out
}

// LabelCount is a per-label total.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Counts tallies rows per comparison key, most frequent first.
// Empty labels are not counted.
func (d *Dataset) Counts() []LabelCount {
	idx := make(map[string]int)
	var out []LabelCount
	for _, r := range d.Records {
		key := LabelKey(r.Sentiment)
		if key == "" {
			continue
		}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, LabelCount{Label: key})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
