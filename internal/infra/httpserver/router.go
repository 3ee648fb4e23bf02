package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/automaton-ingest/internal/application/ingest"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/middleware"
)

// multipart parts above this size are spooled to disk by net/http
const multipartMemory = 32 << 20

// Options configures the ingest API. Zero values disable the matching feature.
type Options struct {
	// MaxUploadBytes caps the whole request body, multipart envelope included.
	MaxUploadBytes int64
	APIKeys        map[string]string
	Limiter        *middleware.RateLimiter
	CORSOrigins    []string
	Checkers       map[string]middleware.HealthChecker
	Logger         *slog.Logger
}

type Router struct {
	ingestSvc *ingest.Service
	maxUpload int64
}

// NewRouter returns the producer API plus the ops endpoints.
func NewRouter(svc *ingest.Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{ingestSvc: svc, maxUpload: opts.MaxUploadBytes}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Metrics)
	mux.Use(middleware.Logging(logger))
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	MountOps(mux, opts.Checkers)

	mux.Route("/v1/{owner}", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		rt.Use(middleware.RequireOwner)
		if opts.Limiter != nil {
			rt.Use(middleware.RateLimit(opts.Limiter))
		}
		rt.Post("/files", r.wrap(r.handleUpload))
		rt.Get("/files", r.wrap(r.handleList))
		rt.Get("/files/{id}", r.wrap(r.handleGet))
	})

	return mux
}

// NewOpsRouter is the health and metrics surface for the worker and the
// replicator, which have no API of their own.
func NewOpsRouter(checkers map[string]middleware.HealthChecker) http.Handler {
	mux := chi.NewRouter()
	MountOps(mux, checkers)
	return mux
}

// MountOps registers /health, /ready, /live and /metrics.
func MountOps(mux chi.Router, checkers map[string]middleware.HealthChecker) {
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler(checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// statusError carries a client-facing message and code.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func badRequest(msg string) error { return &statusError{code: http.StatusBadRequest, msg: msg} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var se *statusError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &se):
			writeJSON(w, se.code, map[string]string{"error": se.msg})
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
		case errors.Is(err, items.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		case errors.Is(err, ingest.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			slog.ErrorContext(req.Context(), "request failed",
				"path", req.URL.Path,
				"request_id", chimw.GetReqID(req.Context()),
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
	}
}

// POST /v1/{owner}/files
// Body: multipart/form-data with the file in field "file".
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	owner := chi.URLParam(req, "owner")
	if r.maxUpload > 0 {
		if req.ContentLength > r.maxUpload {
			return &statusError{code: http.StatusRequestEntityTooLarge, msg: "file too large"}
		}
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("expected multipart/form-data body")
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest(`missing form field "file"`)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	it, err := r.ingestSvc.Ingest(req.Context(), ingest.IngestCommand{
		Owner:    owner,
		FileName: header.Filename,
		Data:     data,
	})
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, it)
	return nil
}

// GET /v1/{owner}/files?status=&limit=20
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	owner := chi.URLParam(req, "owner")
	status, err := middleware.ParseStatus(req.URL.Query().Get("status"))
	if err != nil {
		return badRequest(err.Error())
	}
	limit := middleware.ParseLimit(req.URL.Query().Get("limit"))

	list, err := r.ingestSvc.List(req.Context(), owner, status, limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*items.Item{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{owner}/files/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	owner := chi.URLParam(req, "owner")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateItemID(id); err != nil {
		return badRequest(err.Error())
	}

	it, err := r.ingestSvc.Get(req.Context(), owner, items.ID(id))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, it)
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
