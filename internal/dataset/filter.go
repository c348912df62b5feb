package dataset

import (
	"fmt"
	"strings"
)

// Filter returns the rows whose label matches target case-insensitively.
// The result is a new Dataset; d is not modified.
func (d *Dataset) Filter(target string) *Dataset {
	return d.FilterAny([]string{target})
}

// FilterAny returns the rows whose label matches any of targets. An empty
// target set selects nothing.
func (d *Dataset) FilterAny(targets []string) *Dataset {
	want := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		want[LabelKey(t)] = struct{}{}
	}
	out := &Dataset{
		Name:      d.Name,
		Columns:   d.Columns,
		Records:   make([]Record, 0),
		Selection: append([]string(nil), targets...),
	}
	for _, r := range d.Records {
		if _, ok := want[LabelKey(r.Sentiment)]; ok {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// DefaultVocabulary is the fixed label set offered by single-choice selection.
var DefaultVocabulary = Vocabulary{"positif", "netral", "negatif"}

// Vocabulary is an ordered set of allowed single-choice labels.
type Vocabulary []string

// Contains reports whether label is in v, ignoring case.
func (v Vocabulary) Contains(label string) bool {
	key := LabelKey(label)
	for _, l := range v {
		if LabelKey(l) == key {
			return true
		}
	}
	return false
}

// Check returns an error naming the allowed labels when label is not in v.
func (v Vocabulary) Check(label string) error {
	if v.Contains(label) {
		return nil
	}
	return fmt.Errorf("unknown label %q (choose one of: %s)", label, strings.Join(v, ", "))
}

// Match returns the vocabulary entry equal to s ignoring case.
func (v Vocabulary) Match(s string) (string, bool) {
	key := LabelKey(s)
	for _, l := range v {
		if LabelKey(l) == key {
			return l, true
		}
	}
	return "", false
}
