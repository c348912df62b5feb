package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/KaramelBytes/labelsift/internal/classify"
	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/report"
	"github.com/KaramelBytes/labelsift/internal/source"
)

// multipart framing allowance on top of the file limit
const uploadOverhead = 1 << 20

type datasetResponse struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Rows    int                  `json:"rows"`
	Columns dataset.Columns      `json:"columns"`
	Counts  []dataset.LabelCount `json:"counts"`
}

type rowsResponse struct {
	ID        string           `json:"id"`
	Selection []string         `json:"selection"`
	Count     int              `json:"count"`
	Rows      []dataset.Record `json:"rows"`
}

type countsResponse struct {
	ID     string               `json:"id"`
	Labels []string             `json:"labels"`
	Counts []dataset.LabelCount `json:"counts"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+uploadOverhead)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if !errors.As(err, &mbe) {
			err = badRequestf("missing upload field %q: %v", "file", err)
		}
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	src, err := source.FromUpload(hdr.Filename, f, s.opts.MaxUploadBytes)
	if err != nil {
		var mbe *http.MaxBytesError
		if !errors.As(err, &mbe) {
			err = &badRequest{msg: err.Error()}
		}
		s.fail(w, r, err)
		return
	}
	ds, err := s.load(src.Key, func() (*source.Source, error) { return src, nil })
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := s.store.Put(ds)
	s.logger.Info().Str("id", id).Str("source", src.Name).Int("rows", ds.Len()).Msg("dataset uploaded")

	if r.FormValue("redirect") != "" {
		http.Redirect(w, r, "/?id="+url.QueryEscape(id), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, datasetResponse{
		ID:      id,
		Name:    ds.Name,
		Rows:    ds.Len(),
		Columns: ds.Columns,
		Counts:  ds.Counts(),
	})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := s.view(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		ID:        id,
		Selection: nonNil(view.Selection),
		Count:     view.Len(),
		Rows:      nonNilRecords(view.Records),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := s.view(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := dataset.ExportName(s.exportSource(id, view), view.Selection)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := view.WriteCSV(w); err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("export failed")
	}
}

// exportSource is the name that prefixes export files: uploads carry their
// own file name, the configured source does not.
func (s *Server) exportSource(id string, ds *dataset.Dataset) string {
	if id == DefaultID {
		return ""
	}
	return ds.Name
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ds, err := s.dataset(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse{ID: id, Labels: nonNil(ds.Labels()), Counts: ds.Counts()})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ds, err := s.dataset(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts := ds.Counts()
	if len(counts) == 0 {
		s.fail(w, r, badRequestf("dataset %s has no labels to chart", id))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.BarChart(w, counts); err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("chart render failed")
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ds, err := s.dataset(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	clf, err := s.configuredClassifier(r)
	if err != nil {
		s.metrics.observePrediction("batch", err)
		s.fail(w, r, err)
		return
	}
	labeled, err := classify.Apply(r.Context(), clf, ds)
	s.metrics.observePrediction("batch", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	newID := s.store.Put(labeled)
	s.logger.Info().Str("id", id).Str("labeled_id", newID).Str("model", s.opts.Model).Int("rows", labeled.Len()).Msg("dataset classified")
	writeJSON(w, http.StatusCreated, datasetResponse{
		ID:      newID,
		Name:    labeled.Name,
		Rows:    labeled.Len(),
		Columns: labeled.Columns,
		Counts:  labeled.Counts(),
	})
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Label string `json:"label"`
	Model string `json:"model"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			s.fail(w, r, badRequestf("invalid JSON body: %v", err))
			return
		}
	} else {
		req.Text = r.FormValue("text")
	}
	label, err := s.predict(r, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Label: label, Model: s.opts.Model})
}

func (s *Server) predict(r *http.Request, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", badRequestf("text is empty")
	}
	clf, err := s.configuredClassifier(r)
	if err == nil {
		var label string
		label, err = classify.One(r.Context(), clf, text)
		s.metrics.observePrediction("single", err)
		return label, err
	}
	s.metrics.observePrediction("single", err)
	return "", err
}

// configuredClassifier loads the server's model. Requests cannot choose a
// different one.
func (s *Server) configuredClassifier(r *http.Request) (classify.Classifier, error) {
	if strings.TrimSpace(s.opts.Model) == "" {
		return nil, &classify.ModelLoadError{Err: errors.New("no model configured (set model in the config file or LABELSIFT_MODEL)")}
	}
	return s.classifier(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"datasets": st.Datasets,
		"handles":  st.Handles,
		"model":    s.opts.Model != "",
	})
}

// view resolves id and applies the label selection from the query.
func (s *Server) view(r *http.Request, id string) (*dataset.Dataset, error) {
	sel, err := parseSelection(r, s.opts.Vocabulary)
	if err != nil {
		return nil, err
	}
	ds, err := s.dataset(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return sel.apply(ds), nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := s.logger.Debug()
	if status >= 500 {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilRecords(r []dataset.Record) []dataset.Record {
	if r == nil {
		return []dataset.Record{}
	}
	return r
}
