package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var errNoHeader = errors.New("no header row")

// Format reads one tabular file type into a header and raw rows.
type Format interface {
	CanRead(name string) bool
	Read(name string, data []byte, delim rune) (header []string, rows [][]string, err error)
}

var formats []Format

// RegisterFormat adds a format. Formats are tried in registration order;
// a name none of them claims is read as delimited text.
func RegisterFormat(f Format) {
	formats = append(formats, f)
}

func formatFor(name string) Format {
	for _, f := range formats {
		if f.CanRead(name) {
			return f
		}
	}
	return csvFormat{}
}

func init() {
	RegisterFormat(csvFormat{})
	RegisterFormat(xlsxFormat{})
}

type csvFormat struct{}

func (csvFormat) CanRead(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".tsv" || ext == ".txt"
}

func (csvFormat) Read(name string, data []byte, delim rune) ([]string, [][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, nil, err
	}
	if delim == 0 {
		delim = sniffDelimiter(name, text)
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errNoHeader
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// sniffDelimiter picks the most frequent of , ; and tab on the header line.
func sniffDelimiter(name string, text []byte) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

type xlsxFormat struct{}

func (xlsxFormat) CanRead(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// metadataSheets are skipped when picking the data sheet.
var metadataSheets = map[string]bool{
	"info":     true,
	"metadata": true,
	"about":    true,
	"readme":   true,
	"notes":    true,
}

func (xlsxFormat) Read(_ string, data []byte, _ rune) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[len(sheets)-1]
	for _, s := range sheets {
		if !metadataSheets[strings.ToLower(s)] {
			sheet = s
			break
		}
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(all) == 0 {
		return nil, nil, errNoHeader
	}
	header := all[0]
	rows := all[1:]
	for i, row := range rows {
		if len(row) > len(header) {
			rows[i] = row[:len(header)]
		}
	}
	return header, rows, nil
}
