// export.go - Export endpoints: direct download, websocket progress stream
// and cancellation. Exports are admitted through a rate limiter and a
// concurrency semaphore shared by all sessions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/export"
)

var errRateLimited = errors.New("too many exports, try again shortly")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// wsMessage is a JSON frame on the export websocket. The archive itself
// follows the "done" frame as a single binary message.
type wsMessage struct {
	Type     string           `json:"type"` // progress | done | error
	Progress *export.Progress `json:"progress,omitempty"`
	Name     string           `json:"name,omitempty"`
	Files    []string         `json:"files,omitempty"`
	Error    string           `json:"error,omitempty"`
	Status   int              `json:"status,omitempty"`
}

// admit reserves an export slot. The returned release must be called once
// the export finishes.
func (s *Server) admit() (release func(), err error) {
	if !s.limiter.Allow() {
		exportsTotal.WithLabelValues("rejected").Inc()
		return nil, errRateLimited
	}
	if !s.exports.TryAcquire(1) {
		exportsTotal.WithLabelValues("rejected").Inc()
		return nil, errRateLimited
	}
	return func() { s.exports.Release(1) }, nil
}

// exportOptions merges request options over the configured defaults.
func (s *Server) exportOptions(req export.Options) export.Options {
	opts := s.cfg.Export
	if req.ScaleFactor != 0 {
		opts.ScaleFactor = req.ScaleFactor
	}
	if req.Format != "" {
		opts.Format = req.Format
	}
	if req.Quality != 0 {
		opts.Quality = req.Quality
	}
	if req.Folder != "" {
		opts.Folder = req.Folder
	}
	return opts
}

// runExport runs one admitted export for sess and records metrics.
func (s *Server) runExport(ctx context.Context, sess *session, opts export.Options, progress export.ProgressFunc) (*export.Archive, error) {
	start := time.Now()
	a, err := sess.exporter.Run(ctx, sess.comp, opts, func(p export.Progress) {
		slidesRendered.Inc()
		if progress != nil {
			progress(p)
		}
	})

	switch {
	case err == nil:
		exportsTotal.WithLabelValues("ok").Inc()
		exportDuration.WithLabelValues(string(opts.Format)).Observe(time.Since(start).Seconds())
		s.logger.Info("export complete",
			zap.String("project", sess.id),
			zap.String("archive", a.Name),
			zap.Int("slides", len(a.Files)),
			zap.Duration("took", time.Since(start)))
	case errors.Is(err, context.Canceled):
		exportsTotal.WithLabelValues("cancelled").Inc()
		s.logger.Info("export cancelled", zap.String("project", sess.id))
	case errors.Is(err, export.ErrExportInProgress):
		exportsTotal.WithLabelValues("rejected").Inc()
	default:
		exportsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("export failed", zap.String("project", sess.id), zap.Error(err))
	}
	return a, err
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req export.Options
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	release, err := s.admit()
	if err != nil {
		writeError(w, err)
		return
	}
	defer release()

	a, err := s.runExport(r.Context(), sess, s.exportOptions(req), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Write(a.Data)
}

// handleExportWS streams progress frames, then the archive. Options come
// from the query string (scale, format, quality, folder). Closing the socket
// cancels the export.
func (s *Server) handleExportWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	req, err := optionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader loop: any read error (including a client close) cancels.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	fail := func(err error) {
		conn.WriteJSON(wsMessage{Type: "error", Error: err.Error(), Status: statusFor(err)})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}

	release, err := s.admit()
	if err != nil {
		fail(err)
		return
	}
	defer release()

	a, err := s.runExport(ctx, sess, s.exportOptions(req), func(p export.Progress) {
		conn.WriteJSON(wsMessage{Type: "progress", Progress: &p})
	})
	if err != nil {
		fail(err)
		return
	}

	if err := conn.WriteJSON(wsMessage{Type: "done", Name: a.Name, Files: a.Files}); err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, a.Data); err != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cancelled := sess.exporter.Cancel()
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"state":     sess.exporter.State().String(),
	})
}

func optionsFromQuery(r *http.Request) (export.Options, error) {
	q := r.URL.Query()
	var opts export.Options
	if v := q.Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: scale %q", carousel.ErrInvalidConfig, v)
		}
		opts.ScaleFactor = f
	}
	if v := q.Get("quality"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: quality %q", carousel.ErrInvalidConfig, v)
		}
		opts.Quality = n
	}
	opts.Format = export.Format(q.Get("format"))
	opts.Folder = q.Get("folder")
	return opts, nil
}
