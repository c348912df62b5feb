package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadDetectsColumnsAnyCase(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"lower", "label,english_tweet"},
		{"title", "Label,English_Tweet"},
		{"upper", "LABEL,ENGLISH_TWEET"},
		{"padded", " Label , english_tweet "},
		{"extra columns", "id,English_Tweet,retweets,Label"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cols := strings.Split(tc.header, ",")
			var rows []string
			rows = append(rows, tc.header)
			for _, r := range [][2]string{{"good", "Positif"}, {"bad", "negatif"}} {
				cells := make([]string, len(cols))
				for i, c := range cols {
					switch strings.ToLower(strings.TrimSpace(c)) {
					case "english_tweet":
						cells[i] = r[0]
					case "label":
						cells[i] = r[1]
					default:
						cells[i] = "x"
					}
				}
				rows = append(rows, strings.Join(cells, ","))
			}
			ds, err := NewLoader(Candidates{}, Columns{}).LoadBytes("data.csv", []byte(strings.Join(rows, "\n")))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if ds.Columns != DefaultColumns() {
				t.Fatalf("columns = %+v", ds.Columns)
			}
			want := []Record{{Comment: "good", Sentiment: "Positif"}, {Comment: "bad", Sentiment: "negatif"}}
			if len(ds.Records) != len(want) {
				t.Fatalf("rows = %d, want %d", len(ds.Records), len(want))
			}
			for i := range want {
				if ds.Records[i] != want[i] {
					t.Fatalf("row %d = %+v, want %+v", i, ds.Records[i], want[i])
				}
			}
		})
	}
}

func TestLoadKomentarSentimen(t *testing.T) {
	l := NewLoader(Candidates{Text: []string{"komentar"}, Label: []string{"sentimen"}}, Columns{})
	ds, err := l.LoadBytes("ulasan.csv", []byte("Komentar,Sentimen\nbagus sekali,Positif\nbiasa,Netral\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d", ds.Len())
	}
	if ds.Records[0].Comment != "bagus sekali" || ds.Records[1].Sentiment != "Netral" {
		t.Fatalf("unexpected records: %+v", ds.Records)
	}
}

func TestLoadCandidatePriority(t *testing.T) {
	l := NewLoader(Candidates{Text: []string{"komentar", "text"}, Label: []string{"label"}}, Columns{})
	ds, err := l.LoadBytes("p.csv", []byte("text,komentar,label\nfrom text,from komentar,positif\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ds.Records[0].Comment; got != "from komentar" {
		t.Fatalf("comment = %q, want the higher-priority candidate", got)
	}
}

func TestLoadSchemaErrors(t *testing.T) {
	l := NewLoader(Candidates{Text: []string{"komentar"}, Label: []string{"sentimen"}}, Columns{})

	_, err := l.LoadBytes("foo.csv", []byte("foo,bar\n1,2\n"))
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if !serr.MissingRole(RoleText) || !serr.MissingRole(RoleLabel) {
		t.Fatalf("expected both roles missing: %+v", serr.Missing)
	}
	msg := serr.Error()
	for _, want := range []string{"missing text column", "komentar", "missing label column", "sentimen", "foo, bar"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}

	ds, err := l.LoadBytes("half.csv", []byte("komentar,score\nok,1\n"))
	if ds != nil {
		t.Fatalf("expected no partial dataset, got %+v", ds)
	}
	if !errors.As(err, &serr) || serr.MissingRole(RoleText) || !serr.MissingRole(RoleLabel) {
		t.Fatalf("expected only the label role missing, got %v", err)
	}
}

func TestLoadParseErrors(t *testing.T) {
	l := NewLoader(Candidates{}, Columns{})
	cases := map[string][]byte{
		"bare quote":      []byte("comment,label\n\"unterminated,positif\n"),
		"too many fields": []byte("comment,label\na,positif,extra\n"),
		"invalid utf8":    []byte("comment,label\n\xff\xfe\xfd,positif\n"),
		"empty":           {},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			ds, err := l.LoadBytes("bad.csv", data)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Source != "bad.csv" || perr.Unwrap() == nil {
				t.Fatalf("unexpected error fields: %+v", perr)
			}
			if ds != nil {
				t.Fatalf("expected nil dataset")
			}
		})
	}
}

func TestLoadHeaderOnly(t *testing.T) {
	ds, err := NewLoader(Candidates{}, Columns{}).LoadBytes("h.csv", []byte("komentar,label\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 0 {
		t.Fatalf("rows = %d, want 0", ds.Len())
	}
}

func TestLoadShortRowsPadded(t *testing.T) {
	ds, err := NewLoader(Candidates{}, Columns{}).LoadBytes("s.csv", []byte("comment,note,label\nhello\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Records[0] != (Record{Comment: "hello"}) {
		t.Fatalf("record = %+v", ds.Records[0])
	}
}

func TestLoadBOMAndSemicolon(t *testing.T) {
	data := []byte("\xef\xbb\xbfKomentar;Label\nenak; positif\n")
	ds, err := NewLoader(Candidates{}, Columns{}).LoadBytes("semi.csv", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Records[0].Comment != "enak" || ds.Records[0].Sentiment != " positif" {
		t.Fatalf("cells must be kept verbatim: %+v", ds.Records[0])
	}
}

func TestLoadTSVByExtension(t *testing.T) {
	ds, err := NewLoader(Candidates{}, Columns{}).LoadBytes("d.tsv", []byte("text\tlabel\na, b\tnetral\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Records[0].Comment != "a, b" {
		t.Fatalf("comment = %q", ds.Records[0].Comment)
	}
}

func TestLoadCustomCanonicalNames(t *testing.T) {
	l := NewLoader(Candidates{}, Columns{Text: "teks", Label: "kelas"})
	ds, err := l.LoadBytes("c.csv", []byte("tweet,sentiment\nhi,positif\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Columns.Text != "teks" || ds.Columns.Label != "kelas" {
		t.Fatalf("columns = %+v", ds.Columns)
	}
	// canonical names are always accepted
	if _, err := l.LoadBytes("c2.csv", []byte("teks,kelas\nhi,positif\n")); err != nil {
		t.Fatalf("reload canonical: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "hasil_klasifikasi.csv")
	if err := os.WriteFile(p, []byte("label,english_tweet\nPositif,good\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := NewLoader(Candidates{}, Columns{}).LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Name != "hasil_klasifikasi.csv" || ds.Len() != 1 {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
	if _, err := NewLoader(Candidates{}, Columns{}).LoadFile(filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	cells := [][]any{
		{"Komentar", "Sentimen"},
		{"mantap", "Positif"},
		{"jelek", "Negatif"},
	}
	for i, row := range cells {
		for j, v := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue("Sheet1", name, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	ds, err := NewLoader(Candidates{}, Columns{}).LoadBytes("ulasan.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 2 || ds.Records[1] != (Record{Comment: "jelek", Sentiment: "Negatif"}) {
		t.Fatalf("unexpected records: %+v", ds.Records)
	}
}

func TestFormatFor(t *testing.T) {
	cases := map[string]Format{
		"ulasan.csv":  csvFormat{},
		"ulasan.TSV":  csvFormat{},
		"ulasan.xlsx": xlsxFormat{},
		"download":    csvFormat{},
		"ulasan.dat":  csvFormat{},
	}
	for name, want := range cases {
		if got := formatFor(name); got != want {
			t.Errorf("formatFor(%q) = %T, want %T", name, got, want)
		}
	}
}

func TestXLSXLineBreaksRoundTrip(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for cell, v := range map[string]string{
		"A1": "Komentar", "B1": "Sentimen",
		"A2": "baris satu\r\nbaris dua", "B2": "positif",
	} {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("set cell: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	l := NewLoader(Candidates{}, Columns{})
	ds, err := l.LoadBytes("ulasan.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ds.Records[0].Comment; got != "baris satu\nbaris dua" {
		t.Fatalf("comment = %q", got)
	}

	var out strings.Builder
	if err := ds.WriteCSV(&out); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := l.LoadBytes("label_positif.csv", []byte(out.String()))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Records[0] != ds.Records[0] {
		t.Fatalf("round trip changed record: %+v != %+v", back.Records[0], ds.Records[0])
	}
}
