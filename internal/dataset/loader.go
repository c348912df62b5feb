package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Candidates holds ordered header names accepted for each role. Earlier
// names win when several are present.
type Candidates struct {
	Text  []string `mapstructure:"text" yaml:"text"`
	Label []string `mapstructure:"label" yaml:"label"`
}

// DefaultCandidates returns the built-in header names.
func DefaultCandidates() Candidates {
	return Candidates{
		Text:  []string{"english_tweet", "komentar", "comment", "text", "tweet", "ulasan", "review", "content"},
		Label: []string{"label", "sentimen", "sentiment", "kategori", "category", "class"},
	}
}

// Loader reads a tabular source and normalizes it to a two-column Dataset.
type Loader struct {
	Candidates Candidates
	Columns    Columns
	// Delimiter for CSV. If 0, sniffed from the header line.
	Delimiter rune
}

// NewLoader returns a Loader; nil candidate lists fall back to the defaults.
func NewLoader(c Candidates, cols Columns) *Loader {
	def := DefaultCandidates()
	if c.Text == nil {
		c.Text = def.Text
	}
	if c.Label == nil {
		c.Label = def.Label
	}
	return &Loader{Candidates: c, Columns: cols.withDefaults()}
}

// LoadFile reads and normalizes the file at path.
func (l *Loader) LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return l.Load(filepath.Base(path), f)
}

// Load reads r once and normalizes it. name selects the format by extension
// and appears in error messages.
func (l *Loader) Load(name string, r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	return l.LoadBytes(name, data)
}

// LoadBytes normalizes an in-memory source.
func (l *Loader) LoadBytes(name string, data []byte) (*Dataset, error) {
	header, rows, err := formatFor(name).Read(name, data, l.Delimiter)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	return l.normalize(name, header, rows)
}

func (l *Loader) normalize(name string, header []string, rows [][]string) (*Dataset, error) {
	cols := l.Columns.withDefaults()
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = normalizeHeader(h)
	}

	textAccepted := acceptedNames(l.Candidates.Text, cols.Text)
	labelAccepted := acceptedNames(l.Candidates.Label, cols.Label)
	ti := findColumn(names, textAccepted)
	li := findColumn(names, labelAccepted)

	if ti < 0 || li < 0 {
		serr := &SchemaError{Source: name, Headers: names}
		if ti < 0 {
			serr.Missing = append(serr.Missing, MissingColumn{Role: RoleText, Accepted: textAccepted})
		}
		if li < 0 {
			serr.Missing = append(serr.Missing, MissingColumn{Role: RoleLabel, Accepted: labelAccepted})
		}
		return nil, serr
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		records = append(records, Record{Comment: cell(row, ti), Sentiment: cell(row, li)})
	}
	return &Dataset{Name: name, Columns: cols, Records: records}, nil
}

// acceptedNames lowercases the candidates and appends the canonical name
// so that exported files load back.
func acceptedNames(candidates []string, canonical string) []string {
	out := make([]string, 0, len(candidates)+1)
	seen := make(map[string]struct{}, len(candidates)+1)
	for _, c := range append(append([]string(nil), candidates...), canonical) {
		n := normalizeHeader(c)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// findColumn returns the index of the first candidate present in header,
// scanning candidates in priority order.
func findColumn(header []string, candidates []string) int {
	for _, cand := range candidates {
		for i, h := range header {
			if h == cand {
				return i
			}
		}
	}
	return -1
}

// cell pads short rows with empty values. CRLF line breaks inside a cell
// become LF, as encoding/csv already does for quoted CSV fields, so cells
// from any format survive an export and reload unchanged.
func cell(row []string, i int) string {
	if i < len(row) {
		return strings.ReplaceAll(row[i], "\r\n", "\n")
	}
	return ""
}
