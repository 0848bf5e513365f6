// projects.go - Project, settings and layer endpoints.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/export"
	"github.com/xob0t/GoCarousel/pkg/render"
	"github.com/xob0t/GoCarousel/pkg/slicer"
)

// ── Views ──

type layerView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Rotation      float64 `json:"rotation"`
	NaturalWidth  int     `json:"naturalWidth"`
	NaturalHeight int     `json:"naturalHeight"`
	Format        string  `json:"format"`
}

type projectView struct {
	ID           string      `json:"id"`
	SlideCount   int         `json:"slideCount"`
	Size         string      `json:"size"`
	Layout       string      `json:"layout"`
	Background   string      `json:"background"`
	Gap          int         `json:"gap"`
	SlideWidth   int         `json:"slideWidth"`
	SlideHeight  int         `json:"slideHeight"`
	CanvasWidth  int         `json:"canvasWidth"`
	CanvasHeight int         `json:"canvasHeight"`
	Export       string      `json:"exportState"`
	Images       []layerView `json:"images"`
}

func newLayerView(l carousel.ImageLayer) layerView {
	v := layerView{
		ID:       l.ID,
		Name:     l.Name,
		X:        l.X,
		Y:        l.Y,
		Width:    l.Width,
		Height:   l.Height,
		Rotation: l.Rotation,
	}
	if l.Source != nil {
		v.NaturalWidth, v.NaturalHeight, v.Format = l.Source.Width, l.Source.Height, l.Source.Format
	}
	return v
}

func newProjectView(sess *session) projectView {
	cfg := sess.comp.Config()
	v := projectView{
		ID:           sess.id,
		SlideCount:   cfg.SlideCount,
		Size:         string(cfg.Size),
		Layout:       string(cfg.Layout),
		Background:   cfg.Background,
		Gap:          cfg.Gap,
		SlideWidth:   cfg.SlideWidth(),
		SlideHeight:  cfg.SlideHeight(),
		CanvasWidth:  cfg.CanvasWidth(),
		CanvasHeight: cfg.CanvasHeight(),
		Export:       sess.exporter.State().String(),
		Images:       make([]layerView, 0, len(cfg.Images)),
	}
	for _, l := range cfg.Images {
		v.Images = append(v.Images, newLayerView(l))
	}
	return v
}

// ── Settings ──

type settingsRequest struct {
	SlideCount *int    `json:"slideCount"`
	Size       *string `json:"size"`
	Layout     *string `json:"layout"`
	Background *string `json:"background"`
	Gap        *int    `json:"gap"`
}

// apply runs the setters in a fixed order. The layout goes before the
// slide count so an explicit count wins over the layout's recalculation.
func (req settingsRequest) apply(c *carousel.Composition) error {
	if req.Size != nil {
		if err := c.SetSizePreset(*req.Size); err != nil {
			return err
		}
	}
	if req.Layout != nil {
		if err := c.SetLayout(*req.Layout); err != nil {
			return err
		}
	}
	if req.SlideCount != nil {
		if err := c.SetSlideCount(*req.SlideCount); err != nil {
			return err
		}
	}
	if req.Background != nil {
		if err := c.SetBackground(*req.Background); err != nil {
			return err
		}
	}
	if req.Gap != nil {
		if err := c.SetGap(*req.Gap); err != nil {
			return err
		}
	}
	return nil
}

// applyAtomically validates req against a scratch copy first so a bad field
// never leaves the session half-updated.
func (req settingsRequest) applyAtomically(c *carousel.Composition) error {
	scratch, err := carousel.FromConfig(c.Config())
	if err != nil {
		return err
	}
	if err := req.apply(scratch); err != nil {
		return err
	}
	return req.apply(c)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode request: %v", carousel.ErrInvalidConfig, err)
	}
	return nil
}

// ── Projects ──

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	comp := carousel.New()
	if err := req.apply(comp); err != nil {
		writeError(w, err)
		return
	}

	sess := s.sessions.create(comp, export.NewExporter(s.packager))
	s.logger.Info("project created", zap.String("project", sess.id), zap.Int("sessions", s.sessions.len()))
	writeJSON(w, http.StatusCreated, newProjectView(sess))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(sess))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.applyAtomically(sess.comp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(sess))
}

// ── Layers ──

func (s *Server) handleAddImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	limit := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, err)
			return
		}
		writeError(w, fmt.Errorf("%w: multipart form: %v", carousel.ErrInvalidConfig, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: no file uploaded", carousel.ErrDecode))
		return
	}
	defer file.Close()

	var placement *carousel.Placement
	if raw := r.FormValue("placement"); raw != "" {
		placement = &carousel.Placement{}
		if err := json.Unmarshal([]byte(raw), placement); err != nil {
			writeError(w, fmt.Errorf("%w: placement: %v", carousel.ErrInvalidConfig, err))
			return
		}
	}

	layer, err := sess.comp.AddImageData(file, header.Filename, placement)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Debug("image added",
		zap.String("project", sess.id),
		zap.String("layer", layer.ID),
		zap.Int("width", layer.Source.Width),
		zap.Int("height", layer.Source.Height))
	writeJSON(w, http.StatusCreated, newLayerView(layer))
}

func (s *Server) handleUpdateImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var patch carousel.LayerPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("imageID")
	if err := sess.comp.UpdateImage(id, patch); err != nil {
		writeError(w, err)
		return
	}
	layer, err := sess.comp.Layer(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLayerView(layer))
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.comp.DeleteImage(r.PathValue("imageID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderRequest struct {
	Index     *int               `json:"index"`
	Direction carousel.Direction `json:"direction"`
}

func (s *Server) handleReorderImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := r.PathValue("imageID")
	var err error
	switch {
	case req.Index != nil:
		err = sess.comp.ReorderImage(id, *req.Index)
	case req.Direction != "":
		err = sess.comp.MoveImage(id, req.Direction)
	default:
		err = fmt.Errorf("%w: index or direction required", carousel.ErrInvalidConfig)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(sess))
}

// ── Preview ──

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cfg := sess.comp.Config()

	q := r.URL.Query().Get("guides")
	show := q == "1" || q == "true"
	img, err := s.renderer.RenderPreview(cfg, render.Guides{Dividers: show, Labels: show})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		s.logger.Warn("preview encode failed", zap.String("project", sess.id), zap.Error(err))
	}
}

func (s *Server) handleSlices(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	slices, err := slicer.ComputeSlices(sess.comp.Config())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slices)
}
