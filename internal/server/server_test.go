package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/KaramelBytes/labelsift/internal/classify"
	"github.com/KaramelBytes/labelsift/internal/dataset"
)

const sampleCSV = "Comment,Sentiment\n" +
	"bagus sekali,positif\n" +
	"biasa saja,netral\n" +
	"jelek,negatif\n" +
	"lumayan,NETRAL\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func writeModel(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(classify.Snapshot{
		ClassDocCounts: map[string]int{"positif": 2, "negatif": 2},
		ClassWordCounts: map[string]map[string]int{
			"positif": {"bagus": 3, "suka": 2},
			"negatif": {"jelek": 3, "benci": 2},
		},
		ClassTotalWords: map[string]int{"positif": 5, "negatif": 5},
		Vocabulary:      []string{"bagus", "suka", "jelek", "benci"},
		TotalDocs:       4,
	})
	if err != nil {
		t.Fatalf("marshal model: %v", err)
	}
	return writeFile(t, "model.json", string(b))
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Source == "" {
		opts.Source = writeFile(t, "hasil_klasifikasi.csv", sampleCSV)
	}
	return New(opts)
}

func do(t *testing.T, s *Server, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRowsSingleLabel(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/datasets/default/rows?mode=single&label=netral", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[rowsResponse](t, rec)
	if got.Count != 2 || got.Rows[0].Comment != "biasa saja" || got.Rows[1].Sentiment != "NETRAL" {
		t.Fatalf("rows = %+v", got)
	}
}

func TestRowsSingleModeValidation(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, target := range []string{
		"/datasets/default/rows?mode=single",
		"/datasets/default/rows?mode=single&label=netral&label=positif",
		"/datasets/default/rows?mode=single&label=senang",
	} {
		if rec := do(t, s, http.MethodGet, target, nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestRowsMultiSelect(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/datasets/default/rows?label=positif&label=negatif", nil, "")
	if got := decode[rowsResponse](t, rec); got.Count != 2 {
		t.Fatalf("count = %d", got.Count)
	}
	rec = do(t, s, http.MethodGet, "/datasets/default/rows", nil, "")
	got := decode[rowsResponse](t, rec)
	if rec.Code != http.StatusOK || got.Count != 0 || got.Rows == nil {
		t.Fatalf("empty selection: status %d, %+v", rec.Code, got)
	}
}

func TestUnknownDataset(t *testing.T) {
	s := newTestServer(t, Options{})
	if rec := do(t, s, http.MethodGet, "/datasets/nope/rows", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSchemaErrorIs422(t *testing.T) {
	src := writeFile(t, "bad.csv", "judul,skor\na,b\n")
	s := newTestServer(t, Options{Source: src})
	rec := do(t, s, http.MethodGet, "/datasets/default/counts", nil, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "comment") {
		t.Fatalf("error should name the missing column: %s", rec.Body)
	}
}

func TestExportDefaultSource(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/datasets/default/export?mode=single&label=netral", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="label_netral.csv"`) {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "comment" || rows[2][1] != "NETRAL" {
		t.Fatalf("rows = %v", rows)
	}
}

func upload(t *testing.T, s *Server, name, content string, redirect bool) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	if redirect {
		mw.WriteField("redirect", "1")
	}
	mw.Close()
	return do(t, s, http.MethodPost, "/datasets", &body, mw.FormDataContentType())
}

func TestUploadThenExport(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := upload(t, s, "ulasan.csv", "komentar;sentimen\nenak;positif\nhambar;negatif\n", false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	ds := decode[datasetResponse](t, rec)
	if ds.ID == "" || ds.Rows != 2 || ds.Name != "ulasan.csv" {
		t.Fatalf("upload = %+v", ds)
	}

	rec = do(t, s, http.MethodGet, "/datasets/"+ds.ID+"/export?label=negatif", nil, "")
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "ulasan_label_negatif.csv") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "hambar,negatif") {
		t.Fatalf("export body = %q", rec.Body)
	}
}

func TestUploadSameBytesUnderAnotherName(t *testing.T) {
	s := newTestServer(t, Options{})
	content := "komentar,sentimen\nenak,positif\n"
	alpha := decode[datasetResponse](t, upload(t, s, "alpha.csv", content, false))
	beta := decode[datasetResponse](t, upload(t, s, "beta.csv", content, false))
	if alpha.Name != "alpha.csv" || beta.Name != "beta.csv" {
		t.Fatalf("names = %q, %q", alpha.Name, beta.Name)
	}
	rec := do(t, s, http.MethodGet, "/datasets/"+beta.ID+"/export?label=positif", nil, "")
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="beta_label_positif.csv"`) {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	// the same name again reuses the parsed dataset
	again := decode[datasetResponse](t, upload(t, s, "beta.csv", content, false))
	if again.ID == beta.ID {
		t.Fatalf("uploads should get fresh handles")
	}
	if st := s.store.Stats(); st.Datasets != 2 || st.Hits != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestUploadRedirect(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := upload(t, s, "ulasan.csv", sampleCSV, true)
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/?id=") {
		t.Fatalf("status = %d, location %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, Options{MaxUploadBytes: 16})
	rec := upload(t, s, "big.csv", sampleCSV, false)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUploadParseError(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := upload(t, s, "empty.csv", "", false)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestCounts(t *testing.T) {
	s := newTestServer(t, Options{})
	got := decode[countsResponse](t, do(t, s, http.MethodGet, "/datasets/default/counts", nil, ""))
	if len(got.Counts) != 3 || got.Counts[0] != (dataset.LabelCount{Label: "netral", Count: 2}) {
		t.Fatalf("counts = %+v", got.Counts)
	}
	if len(got.Labels) != 4 {
		t.Fatalf("labels = %v", got.Labels)
	}
}

func TestChart(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/datasets/default/chart.png", nil, "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("status = %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestPredictAndClassify(t *testing.T) {
	s := newTestServer(t, Options{Model: writeModel(t)})

	rec := do(t, s, http.MethodPost, "/predict", bytes.NewBufferString(`{"text":"bagus, suka"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[predictResponse](t, rec); got.Label != "positif" {
		t.Fatalf("label = %q", got.Label)
	}

	rec = do(t, s, http.MethodPost, "/predict", bytes.NewBufferString(`{"text":"  "}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty text status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/datasets/default/classify", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("classify status = %d, body %s", rec.Code, rec.Body)
	}
	labeled := decode[datasetResponse](t, rec)
	if labeled.Rows != 4 {
		t.Fatalf("labeled = %+v", labeled)
	}
	rows := decode[rowsResponse](t, do(t, s, http.MethodGet, "/datasets/"+labeled.ID+"/rows?label=negatif", nil, ""))
	var comments []string
	for _, r := range rows.Rows {
		comments = append(comments, r.Comment)
	}
	if !slices.Contains(comments, "jelek") || slices.Contains(comments, "bagus sekali") {
		t.Fatalf("negatif rows = %v", comments)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/predict", bytes.NewBufferString(`{"text":"bagus"}`), "application/json")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBrokenModelIs503(t *testing.T) {
	s := newTestServer(t, Options{Model: writeFile(t, "model.json", "{")})
	rec := do(t, s, http.MethodPost, "/datasets/default/classify", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/?mode=single&label=netral", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Rows labeled netral: 2", "biasa saja", "lumayan", "export?label=netral&amp;mode=single"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "bagus sekali") {
		t.Errorf("page shows unselected rows")
	}

	rec = do(t, s, http.MethodGet, "/?mode=single&label=senang", nil, "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "positif, netral, negatif") {
		t.Fatalf("invalid label: status %d", rec.Code)
	}
}

func TestIndexEscapesCells(t *testing.T) {
	src := writeFile(t, "x.csv", "comment,sentiment\n<script>alert(1)</script>,netral\n")
	s := newTestServer(t, Options{Source: src})
	rec := do(t, s, http.MethodGet, "/?label=netral", nil, "")
	if strings.Contains(rec.Body.String(), "<script>alert(1)") {
		t.Fatalf("cell content was not escaped")
	}
}

func TestDefaultSourceIsCached(t *testing.T) {
	s := newTestServer(t, Options{})
	for i := 0; i < 3; i++ {
		do(t, s, http.MethodGet, "/datasets/default/counts", nil, "")
	}
	if st := s.store.Stats(); st.Datasets != 1 || st.Misses != 1 || st.Hits != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRemoteDefaultSourceIsFetchedOnce(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer remote.Close()

	s := newTestServer(t, Options{Source: remote.URL + "/hasil_klasifikasi.csv"})
	for i := 0; i < 3; i++ {
		if rec := do(t, s, http.MethodGet, "/datasets/default/counts", nil, ""); rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("remote fetched %d times", n)
	}
	if st := s.store.Stats(); st.Misses != 1 || st.Hits != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDefaultSourceReloadsAfterEdit(t *testing.T) {
	path := writeFile(t, "hasil_klasifikasi.csv", sampleCSV)
	s := newTestServer(t, Options{Source: path})
	do(t, s, http.MethodGet, "/datasets/default/counts", nil, "")

	if err := os.WriteFile(path, []byte(sampleCSV+"mantap,positif\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	rec := do(t, s, http.MethodGet, "/datasets/default/rows?label=positif", nil, "")
	if got := decode[rowsResponse](t, rec); got.Count != 2 {
		t.Fatalf("rows after edit = %+v", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Options{})
	if rec := do(t, s, http.MethodGet, "/health", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	do(t, s, http.MethodGet, "/datasets/default/counts", nil, "")
	rec := do(t, s, http.MethodGet, "/metrics", nil, "")
	body := rec.Body.String()
	for _, want := range []string{
		`labelsift_http_requests_total{route="GET /datasets/{id}/counts",status="200"} 1`,
		`labelsift_dataset_loads_total{result="ok"} 1`,
		"labelsift_cache_datasets 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
