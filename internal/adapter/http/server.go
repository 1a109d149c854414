// Package http serves the dashboard API alongside health, readiness and
// metrics endpoints.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/sire-dashboard/internal/dataset"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/pipeline"
	"github.com/couchcryptid/sire-dashboard/internal/render"
)

// writeWorkbook renders export workbooks; tests replace it.
var writeWorkbook = render.WriteXLSX

// Dashboard runs render cycles for the API.
type Dashboard interface {
	Render(ctx context.Context, view pipeline.View, req pipeline.Request) (*pipeline.Result, error)
	Options(ctx context.Context) (*pipeline.Options, error)
	MicroRegions() []domain.MicroRegion
}

// ChartRenderer draws one indicator series.
type ChartRenderer interface {
	Render(s domain.IndicatorSeries, mode domain.Mode) ([]byte, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Ready     sharedobs.ReadinessChecker
	Dashboard Dashboard
	Snapshots pipeline.SnapshotSource
	Charts    ChartRenderer
	Unserved  []string
	Logger    *slog.Logger
}

// gzipHandler compresses API responses of at least 256 bytes.
var gzipHandler = func() func(http.Handler) http.HandlerFunc {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(256))
	if err != nil {
		panic(err)
	}
	return wrap
}()

// Server exposes the dashboard API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes. API responses are gzip-compressed when the client accepts it.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: deps.Logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/glossary", s.handleGlossary)
	api.HandleFunc("GET /api/v1/options", s.handleOptions)
	api.HandleFunc("GET /api/v1/{view}", s.handleView)
	api.HandleFunc("GET /api/v1/{view}/charts/{indicator}", s.handleChart)
	api.HandleFunc("GET /api/v1/{view}/map", s.handleMap)
	api.HandleFunc("GET /api/v1/{view}/export", s.handleExport)
	mux.Handle("/api/", gzipHandler(api))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleGlossary lists glossary entries ordered by indicator code, limited
// to the requested indicators when any are given.
func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Snapshots.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var codes []string
	if q := r.URL.Query()["indicator"]; len(q) > 0 {
		codes = q
	}
	entries := snap.Glossary.Entries(codes)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.deps.Dashboard.Options(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	res, ok := s.render(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	indicator := r.PathValue("indicator")
	r.URL.RawQuery = withIndicator(r, indicator)
	res, ok := s.render(w, r)
	if !ok {
		return
	}
	if len(res.Series) != 1 {
		s.writeError(w, r, errNotFound)
		return
	}
	img, err := s.deps.Charts.Render(res.Series[0], modeOf(res))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	res, ok := s.render(w, r)
	if !ok {
		return
	}
	snap, err := s.deps.Snapshots.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var layer any
	if res.View == pipeline.ViewRegions {
		layer, err = render.RegionMap(snap.Boundaries, s.deps.Dashboard.MicroRegions(), res.Entities, res.Aggregated)
	} else {
		layer, err = render.MunicipalityMap(snap.Boundaries, res.Entities, res.Filtered, s.deps.Unserved)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(layer) //nolint:errcheck // headers already sent
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.render(w, r)
	if !ok {
		return
	}
	snap, err := s.deps.Snapshots.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cols := render.MunicipalityColumns
	if res.View == pipeline.ViewRegions {
		cols = render.RegionColumns
	}
	var buf bytes.Buffer
	if err := writeWorkbook(&buf, render.Workbook{
		Columns:  cols,
		Rows:     res.Table,
		Glossary: snap.Glossary.Entries(res.Indicators),
	}); err != nil {
		s.logger.Error("export failed", "error", err, "render_id", res.RenderID)
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="sire-`+string(res.View)+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// render parses the view and query and runs the render cycle, writing the
// error response itself when it fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	view, err := pipeline.ParseView(r.PathValue("view"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	res, err := s.deps.Dashboard.Render(r.Context(), view, req)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return res, true
}

var errNotFound = errors.New("not found")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "path", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var badReq *requestError
	switch {
	case errors.Is(err, dataset.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrUnknownView), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.As(err, &badReq), errors.Is(err, domain.ErrUnknownMonth), errors.Is(err, domain.ErrInvalidYear):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func modeOf(res *pipeline.Result) domain.Mode {
	if res.Mode == domain.ModeAnnual.String() {
		return domain.ModeAnnual
	}
	return domain.ModeMonthly
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
