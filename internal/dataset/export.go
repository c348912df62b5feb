package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// WriteCSV writes the canonical columns as UTF-8 CSV with a header row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := d.Columns.withDefaults()
	if err := cw.Write([]string{cols.Text, cols.Label}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range d.Records {
		if err := cw.Write([]string{r.Comment, r.Sentiment}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportName derives a download file name from the selection. When source is
// non-empty its stem prefixes the name, for use with user-selected sources.
func ExportName(source string, selection []string) string {
	parts := make([]string, 0, len(selection))
	for _, s := range selection {
		if p := safeToken(s); p != "" {
			parts = append(parts, p)
		}
	}
	sel := "none"
	if len(parts) > 0 {
		sel = strings.Join(parts, "-")
	}
	name := "label_" + sel + ".csv"
	if source == "" {
		return name
	}
	stem := safeToken(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	if stem == "" {
		return name
	}
	return stem + "_" + name
}

func safeToken(s string) string {
	s = LabelKey(s)
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			return r
		case r == '_' || unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, s)
}
