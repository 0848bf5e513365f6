//go:build js && wasm

// GoCarousel WASM - Client-side compositing and export.
// Compiled with: GOOS=js GOARCH=wasm go build -o gocarousel.wasm ./clients/wasm/
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/disintegration/imaging"

	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/export"
	"github.com/xob0t/GoCarousel/pkg/render"
)

// One editor per page.
var (
	mu       sync.Mutex
	comp     = carousel.New()
	renderer *render.Renderer
	exporter *export.Exporter
)

func main() {
	var err error
	renderer, err = render.NewRenderer()
	if err != nil {
		fmt.Println("GoCarousel WASM: renderer:", err)
		return
	}
	exporter = export.NewExporter(export.NewPackager(renderer, nil))
	fmt.Println("GoCarousel WASM loaded")

	// Register JS-callable functions.
	js.Global().Set("goCarouselNew", js.FuncOf(newProject))
	js.Global().Set("goCarouselAddImage", js.FuncOf(addImage))
	js.Global().Set("goCarouselUpdateImage", js.FuncOf(updateImage))
	js.Global().Set("goCarouselDeleteImage", js.FuncOf(deleteImage))
	js.Global().Set("goCarouselReorder", js.FuncOf(reorder))
	js.Global().Set("goCarouselSettings", js.FuncOf(settings))
	js.Global().Set("goCarouselState", js.FuncOf(state))
	js.Global().Set("goCarouselPreview", js.FuncOf(preview))
	js.Global().Set("goCarouselExport", js.FuncOf(exportZip))
	js.Global().Set("goCarouselCancelExport", js.FuncOf(cancelExport))
	js.Global().Set("goReady", js.ValueOf(true))

	// Block forever (WASM must not exit).
	select {}
}

func current() *carousel.Composition {
	mu.Lock()
	defer mu.Unlock()
	return comp
}

func errValue(err error) js.Value {
	return js.ValueOf("error: " + err.Error())
}

// ignoreStale drops NotFound from callbacks that raced a deletion.
func ignoreStale(err error) js.Value {
	if err == nil || errors.Is(err, carousel.ErrNotFound) {
		return js.ValueOf("ok")
	}
	return errValue(err)
}

func configJSON(c *carousel.Composition) js.Value {
	cfg := c.Config()
	type layer struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		carousel.Placement
		NaturalWidth  int `json:"naturalWidth"`
		NaturalHeight int `json:"naturalHeight"`
	}
	out := struct {
		SlideCount   int     `json:"slideCount"`
		Size         string  `json:"size"`
		Layout       string  `json:"layout"`
		Background   string  `json:"background"`
		Gap          int     `json:"gap"`
		CanvasWidth  int     `json:"canvasWidth"`
		CanvasHeight int     `json:"canvasHeight"`
		Export       string  `json:"exportState"`
		Images       []layer `json:"images"`
	}{
		SlideCount:   cfg.SlideCount,
		Size:         string(cfg.Size),
		Layout:       string(cfg.Layout),
		Background:   cfg.Background,
		Gap:          cfg.Gap,
		CanvasWidth:  cfg.CanvasWidth(),
		CanvasHeight: cfg.CanvasHeight(),
		Export:       exporter.State().String(),
		Images:       make([]layer, 0, len(cfg.Images)),
	}
	for _, l := range cfg.Images {
		out.Images = append(out.Images, layer{l.ID, l.Name, l.Placement, l.Source.Width, l.Source.Height})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return errValue(err)
	}
	return js.ValueOf(string(data))
}

// goCarouselNew() - start an empty project.
func newProject(this js.Value, args []js.Value) interface{} {
	exporter.Cancel()
	mu.Lock()
	comp = carousel.New()
	mu.Unlock()
	return configJSON(current())
}

// goCarouselAddImage(base64Data, name, [placementJSON]) - returns the layer id.
func addImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: need base64Data")
	}
	data, err := base64.StdEncoding.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf("error: invalid base64: " + err.Error())
	}
	name := ""
	if len(args) > 1 && args[1].Type() == js.TypeString {
		name = args[1].String()
	}
	var placement *carousel.Placement
	if len(args) > 2 && args[2].Type() == js.TypeString && args[2].String() != "" {
		placement = &carousel.Placement{}
		if err := json.Unmarshal([]byte(args[2].String()), placement); err != nil {
			return js.ValueOf("error: parse placement: " + err.Error())
		}
	}

	layer, err := current().AddImageData(bytes.NewReader(data), name, placement)
	if err != nil {
		return errValue(err)
	}
	return js.ValueOf(layer.ID)
}

// goCarouselUpdateImage(id, patchJSON)
func updateImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("error: need id, patchJSON")
	}
	var patch carousel.LayerPatch
	if err := json.Unmarshal([]byte(args[1].String()), &patch); err != nil {
		return js.ValueOf("error: parse patch: " + err.Error())
	}
	return ignoreStale(current().UpdateImage(args[0].String(), patch))
}

// goCarouselDeleteImage(id)
func deleteImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: need id")
	}
	return ignoreStale(current().DeleteImage(args[0].String()))
}

// goCarouselReorder(id, indexOrDirection) - a number moves to that index,
// a string is one of front, back, forward, backward.
func reorder(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("error: need id, index or direction")
	}
	id := args[0].String()
	if args[1].Type() == js.TypeNumber {
		return ignoreStale(current().ReorderImage(id, args[1].Int()))
	}
	return ignoreStale(current().MoveImage(id, carousel.Direction(args[1].String())))
}

// goCarouselSettings(json) - any of slideCount, size, layout, background, gap.
func settings(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: need settingsJSON")
	}
	var req struct {
		SlideCount *int    `json:"slideCount"`
		Size       *string `json:"size"`
		Layout     *string `json:"layout"`
		Background *string `json:"background"`
		Gap        *int    `json:"gap"`
	}
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return js.ValueOf("error: parse settings: " + err.Error())
	}

	c := current()
	steps := []func() error{}
	if req.Size != nil {
		steps = append(steps, func() error { return c.SetSizePreset(*req.Size) })
	}
	if req.Layout != nil {
		steps = append(steps, func() error { return c.SetLayout(*req.Layout) })
	}
	if req.SlideCount != nil {
		steps = append(steps, func() error { return c.SetSlideCount(*req.SlideCount) })
	}
	if req.Background != nil {
		steps = append(steps, func() error { return c.SetBackground(*req.Background) })
	}
	if req.Gap != nil {
		steps = append(steps, func() error { return c.SetGap(*req.Gap) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return errValue(err)
		}
	}
	return configJSON(c)
}

// goCarouselState() - current config as JSON.
func state(this js.Value, args []js.Value) interface{} {
	return configJSON(current())
}

// goCarouselPreview([guides]) - base64 PNG of the virtual canvas.
func preview(this js.Value, args []js.Value) interface{} {
	guides := len(args) > 0 && args[0].Truthy()
	img, err := renderer.RenderPreview(current().Config(), render.Guides{Dividers: guides, Labels: guides})
	if err != nil {
		return errValue(err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return errValue(err)
	}
	return js.ValueOf(base64.StdEncoding.EncodeToString(buf.Bytes()))
}

// goCarouselExport(optionsJSON, [onProgress]) - returns a Promise resolving
// to {name, data} where data is the base64 ZIP.
func exportZip(this js.Value, args []js.Value) interface{} {
	var opts export.Options
	if len(args) > 0 && args[0].Type() == js.TypeString && args[0].String() != "" {
		if err := json.Unmarshal([]byte(args[0].String()), &opts); err != nil {
			return js.ValueOf("error: parse options: " + err.Error())
		}
	}
	// The js/wasm runtime is single-threaded.
	opts.Workers = 1

	var onProgress js.Value
	if len(args) > 1 && args[1].Type() == js.TypeFunction {
		onProgress = args[1]
	}

	c := current()
	handler := js.FuncOf(func(this js.Value, p []js.Value) interface{} {
		resolve, reject := p[0], p[1]
		go func() {
			a, err := exporter.Run(context.Background(), c, opts, func(pr export.Progress) {
				if !onProgress.IsUndefined() {
					onProgress.Invoke(pr.Done, pr.Total, pr.Index)
				}
			})
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(map[string]interface{}{
				"name": a.Name,
				"data": base64.StdEncoding.EncodeToString(a.Data),
			})
		}()
		return nil
	})
	defer handler.Release()

	return js.Global().Get("Promise").New(handler)
}

// goCarouselCancelExport() - true if an export was running.
func cancelExport(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(exporter.Cancel())
}
