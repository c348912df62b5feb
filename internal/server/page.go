package server

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/report"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>labelsift</title>
<style>
body { font-family: sans-serif; margin: 2rem; max-width: 72rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: .3rem .5rem; text-align: left; vertical-align: top; }
.error { color: #a00; }
.warn { color: #a60; }
form { margin: 1rem 0; }
</style>
</head>
<body>
<h1>labelsift</h1>

<form method="post" action="/datasets" enctype="multipart/form-data">
  <input type="hidden" name="redirect" value="1">
  <label>Dataset (CSV, TSV or XLSX) <input type="file" name="file" required></label>
  <button type="submit">Upload</button>
</form>

{{if .Error}}<p class="error">✗ {{.Error}}</p>{{end}}

{{with .Summary}}
<h2>{{.Name}}</h2>
<p>{{.Rows}} rows, columns <code>{{.Columns.Text}}</code> / <code>{{.Columns.Label}}</code></p>
{{range .Warnings}}<p class="warn">⚠ {{.}}</p>{{end}}
{{end}}

{{if .Summary}}
<form method="get" action="/">
  <input type="hidden" name="id" value="{{.ID}}">
  <fieldset>
    <legend>Selection</legend>
    <label><input type="radio" name="mode" value="single" {{if .Single}}checked{{end}}> one label</label>
    <label><input type="radio" name="mode" value="multi" {{if not .Single}}checked{{end}}> any of</label>
    <br>
    {{range .Options}}
    <label><input type="checkbox" name="label" value="{{.Value}}" {{if .Checked}}checked{{end}}> {{.Value}}</label>
    {{end}}
  </fieldset>
  <button type="submit">Filter</button>
</form>

<img src="/datasets/{{.ID}}/chart.png" alt="label counts" height="240">

{{if .View}}
<p><strong>{{.Summary.CountLine}}</strong> · <a href="{{.ExportURL}}">Download CSV</a></p>
<table>
<thead><tr><th>#</th><th>{{.Summary.Columns.Text}}</th><th>{{.Summary.Columns.Label}}</th></tr></thead>
<tbody>
{{range $i, $r := .View.Records}}<tr><td>{{$i}}</td><td>{{$r.Comment}}</td><td>{{$r.Sentiment}}</td></tr>
{{end}}
</tbody>
</table>
{{end}}
{{end}}

{{if .HasModel}}
<h2>Predict</h2>
<form method="get" action="/">
  {{if .ID}}<input type="hidden" name="id" value="{{.ID}}">{{end}}
  <textarea name="text" rows="3" cols="80">{{.Text}}</textarea><br>
  <button type="submit">Predict</button>
</form>
{{if .Prediction}}<p>Predicted label: <strong>{{.Prediction}}</strong></p>{{end}}
{{end}}
</body>
</html>
`))

type labelOption struct {
	Value   string
	Checked bool
}

type indexData struct {
	ID         string
	Error      string
	Summary    *report.Summary
	Single     bool
	Options    []labelOption
	View       *dataset.Dataset
	ExportURL  string
	HasModel   bool
	Text       string
	Prediction string
}

// handleIndex renders the filter page. Errors are shown inline; the status
// code still reflects them.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := indexData{
		ID:       q.Get("id"),
		Single:   q.Get("mode") == "single",
		HasModel: s.opts.Model != "",
		Text:     q.Get("text"),
	}
	if data.ID == "" && s.opts.Source != "" {
		data.ID = DefaultID
	}
	status := http.StatusOK
	setErr := func(err error) {
		if data.Error == "" {
			data.Error = err.Error()
			status = statusFor(err)
		}
	}

	if data.ID != "" {
		if ds, err := s.dataset(r.Context(), data.ID); err != nil {
			setErr(err)
		} else {
			s.fillSelection(r, ds, &data, setErr)
		}
	}

	if data.HasModel && data.Text != "" {
		label, err := s.predict(r, data.Text)
		if err != nil {
			setErr(err)
		}
		data.Prediction = label
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Msg("render index")
	}
}

func (s *Server) fillSelection(r *http.Request, ds *dataset.Dataset, data *indexData, setErr func(error)) {
	q := r.URL.Query()
	var options []string
	if data.Single {
		options = s.opts.Vocabulary
	} else {
		options = ds.Labels()
	}
	checked := make(map[string]bool)
	for _, l := range q["label"] {
		checked[dataset.LabelKey(l)] = true
	}
	for _, o := range options {
		data.Options = append(data.Options, labelOption{Value: o, Checked: checked[dataset.LabelKey(o)]})
	}

	var view *dataset.Dataset
	if q.Has("label") || q.Has("mode") {
		sel, err := parseSelection(r, s.opts.Vocabulary)
		if err != nil {
			setErr(err)
		} else {
			view = sel.apply(ds)
			data.View = view
			data.ExportURL = "/datasets/" + url.PathEscape(data.ID) + "/export?" + exportQuery(sel)
		}
	}
	data.Summary = report.Summarize(ds, view, s.vocabularyFor(data.Single), 0)
}

// vocabularyFor returns the vocabulary used for warnings: only single mode
// restricts labels.
func (s *Server) vocabularyFor(single bool) dataset.Vocabulary {
	if single {
		return s.opts.Vocabulary
	}
	return nil
}

func exportQuery(sel selection) string {
	v := url.Values{}
	if sel.single {
		v.Set("mode", "single")
	}
	for _, l := range sel.labels {
		v.Add("label", l)
	}
	return v.Encode()
}
