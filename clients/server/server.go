// Package server provides the carousel web editor and its HTTP API.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xob0t/GoCarousel/internal/config"
	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/export"
	"github.com/xob0t/GoCarousel/pkg/render"
)

//go:embed web/*
var webContent embed.FS

// ── Server ──

// Server holds the session store and the shared render/export pipeline.
type Server struct {
	cfg      config.Settings
	renderer *render.Renderer
	packager *export.Packager
	sessions *sessionStore
	limiter  *rate.Limiter
	exports  *semaphore.Weighted
	logger   *zap.Logger
}

// New creates a server. A nil logger disables logging.
func New(cfg config.Settings, r *render.Renderer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Server.ExportInterval
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Server{
		cfg:      cfg,
		renderer: r,
		packager: export.NewPackager(r, logger.Named("export")),
		sessions: newSessionStore(cfg.Server.SessionTTL),
		limiter:  rate.NewLimiter(limit, max(cfg.Server.ExportBurst, 1)),
		exports:  semaphore.NewWeighted(max(cfg.Server.MaxConcurrentExports, 1)),
		logger:   logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	webFS, err := fs.Sub(webContent, "web")
	if err != nil {
		return nil, fmt.Errorf("embed web: %w", err)
	}

	mux := http.NewServeMux()

	// Projects.
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("PUT /api/projects/{id}/settings", s.handleSettings)

	// Layers.
	mux.HandleFunc("POST /api/projects/{id}/images", s.handleAddImage)
	mux.HandleFunc("PATCH /api/projects/{id}/images/{imageID}", s.handleUpdateImage)
	mux.HandleFunc("DELETE /api/projects/{id}/images/{imageID}", s.handleDeleteImage)
	mux.HandleFunc("POST /api/projects/{id}/images/{imageID}/order", s.handleReorderImage)

	// Rendering and export.
	mux.HandleFunc("GET /api/projects/{id}/preview.png", s.handlePreview)
	mux.HandleFunc("GET /api/projects/{id}/slices", s.handleSlices)
	mux.HandleFunc("POST /api/projects/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/projects/{id}/export/ws", s.handleExportWS)
	mux.HandleFunc("DELETE /api/projects/{id}/export", s.handleCancelExport)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Static files.
	mux.Handle("/", http.FileServer(http.FS(webFS)))

	return mux, nil
}

// RunServe starts the editor on cfg.Server.Port and blocks until ctx is
// cancelled, then shuts down gracefully.
func RunServe(ctx context.Context, cfg config.Settings, logger *zap.Logger, browser bool) error {
	interp, err := render.ParseInterpolator(cfg.Render.Interpolator)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(
		render.WithInterpolator(interp),
		render.WithFontPath(cfg.Render.FontPath),
		render.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	s := New(cfg, r, logger)
	h, err := s.Handler()
	if err != nil {
		return err
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	logger.Info("carousel editor listening", zap.String("url", "http://localhost"+addr))
	if browser {
		go openBrowser("http://localhost" + addr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// ── Responses ──

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, carousel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, carousel.ErrInvalidConfig), errors.Is(err, carousel.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, carousel.ErrEmptyComposition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrExportInProgress), errors.Is(err, context.Canceled):
		return http.StatusConflict
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}

// ── Helpers ──

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Start()
}
