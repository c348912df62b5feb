// Package server is the web shell: it serves the filter page and a small
// JSON/CSV API over the dataset pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/labelsift/internal/ai"
	"github.com/KaramelBytes/labelsift/internal/cache"
	"github.com/KaramelBytes/labelsift/internal/classify"
	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/source"
)

// DefaultID addresses the configured source.
const DefaultID = "default"

// Options configures a Server.
type Options struct {
	// Source is the configured dataset reference served under DefaultID.
	Source     string
	Loader     *dataset.Loader
	Opener     *source.Opener
	Vocabulary dataset.Vocabulary
	// Model is the classifier reference; empty disables prediction.
	Model   string
	Runtime ai.RuntimeConfig
	// MaxUploadBytes bounds multipart uploads.
	MaxUploadBytes int64
	Store          *cache.Store
	Logger         *zerolog.Logger
}

// Server holds the request handlers and their shared state.
type Server struct {
	opts    Options
	store   *cache.Store
	logger  *zerolog.Logger
	metrics *metrics
	mux     *http.ServeMux
}

// New builds a Server, filling unset options with defaults.
func New(opts Options) *Server {
	if opts.Loader == nil {
		opts.Loader = dataset.NewLoader(dataset.Candidates{}, dataset.Columns{})
	}
	if opts.Opener == nil {
		opts.Opener = source.NewOpener(source.Options{})
	}
	if len(opts.Vocabulary) == 0 {
		opts.Vocabulary = dataset.DefaultVocabulary
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = source.DefaultMaxBytes
	}
	if opts.Store == nil {
		opts.Store = cache.New()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	s := &Server{
		opts:    opts,
		store:   opts.Store,
		logger:  opts.Logger,
		metrics: newMetrics(opts.Store),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /datasets", s.handleUpload)
	s.mux.HandleFunc("GET /datasets/{id}/rows", s.handleRows)
	s.mux.HandleFunc("GET /datasets/{id}/export", s.handleExport)
	s.mux.HandleFunc("GET /datasets/{id}/counts", s.handleCounts)
	s.mux.HandleFunc("GET /datasets/{id}/chart.png", s.handleChart)
	s.mux.HandleFunc("POST /datasets/{id}/classify", s.handleClassify)
	s.mux.HandleFunc("POST /predict", s.handlePredict)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.handler())
}

// ServeHTTP records per-route metrics and logs every request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	s.metrics.observeRequest(route, rec.status, start)
	ev := s.logger.Debug()
	if rec.status >= 500 {
		ev = s.logger.Warn()
	}
	ev.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Str("source", s.opts.Source).Msg("listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// errNotFound marks an unknown dataset handle.
var errNotFound = errors.New("dataset not found")

// badRequest is a client input error.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error { return &badRequest{msg: fmt.Sprintf(format, args...)} }

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		perr *dataset.ParseError
		serr *dataset.SchemaError
		merr *classify.ModelLoadError
		berr *badRequest
		mbe  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &berr):
		return http.StatusBadRequest
	case errors.As(err, &perr), errors.As(err, &serr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &merr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// dataset resolves a handle. DefaultID loads the configured source through
// the cache, keyed by its identity so a cached remote source is not fetched
// again.
func (s *Server) dataset(ctx context.Context, id string) (*dataset.Dataset, error) {
	if id == DefaultID {
		ref := strings.TrimSpace(s.opts.Source)
		if ref == "" {
			return nil, errNotFound
		}
		key, err := s.opts.Opener.Identity(ref)
		if err != nil {
			return nil, err
		}
		return s.load(key, func() (*source.Source, error) { return s.opts.Opener.Open(ctx, ref) })
	}
	ds, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotFound, id)
	}
	return ds, nil
}

// load parses the source fetched by fetch, unless key is already cached.
func (s *Server) load(key string, fetch func() (*source.Source, error)) (*dataset.Dataset, error) {
	return s.store.Dataset(key, func() (*dataset.Dataset, error) {
		src, err := fetch()
		if err != nil {
			return nil, err
		}
		ds, err := s.opts.Loader.LoadBytes(src.Name, src.Data)
		s.metrics.observeLoad(ds, err)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", src.Name).Msg("dataset load failed")
			return nil, err
		}
		s.logger.Info().Str("source", src.Name).Int("rows", ds.Len()).Msg("dataset loaded")
		return ds, nil
	})
}

func (s *Server) classifier(ctx context.Context) (classify.Classifier, error) {
	ref := s.opts.Model
	return s.store.Classifier(ref, func() (classify.Classifier, error) {
		clf, err := classify.Load(ctx, ref, classify.Options{Runtime: s.opts.Runtime, Vocabulary: s.opts.Vocabulary})
		if err != nil {
			s.logger.Error().Err(err).Str("model", ref).Msg("model load failed")
			return nil, err
		}
		s.logger.Info().Str("model", ref).Strs("classes", classify.Classes(clf)).Msg("model loaded")
		return clf, nil
	})
}

// selection reads the label query parameters. In single mode exactly one
// vocabulary label is required.
type selection struct {
	single bool
	labels []string
}

func parseSelection(r *http.Request, vocab dataset.Vocabulary) (selection, error) {
	sel := selection{single: r.URL.Query().Get("mode") == "single"}
	for _, l := range r.URL.Query()["label"] {
		if strings.TrimSpace(l) != "" {
			sel.labels = append(sel.labels, l)
		}
	}
	if !sel.single {
		return sel, nil
	}
	if len(sel.labels) != 1 {
		return sel, badRequestf("single mode needs exactly one label (choose one of: %s)", strings.Join(vocab, ", "))
	}
	if err := vocab.Check(sel.labels[0]); err != nil {
		return sel, &badRequest{msg: err.Error()}
	}
	return sel, nil
}

func (sel selection) apply(ds *dataset.Dataset) *dataset.Dataset {
	if sel.single {
		return ds.Filter(sel.labels[0])
	}
	return ds.FilterAny(sel.labels)
}
