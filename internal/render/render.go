// Package render draws an editor scene onto a raster surface. The drawing
// order and text styling live in Draw; the pixels are produced by a
// Surface, normally a gg-backed Canvas.
package render

import (
	"image"
	"math"

	"github.com/mikequentel/memeboard/internal/editor"
)

// Outline styles.
const (
	StrokeColor         = "#000000"
	SelectedStrokeColor = "#00ff00"
)

// Surface is a drawing target sized to the canvas.
type Surface interface {
	editor.Measurer

	Clear()
	// DrawImage draws img scaled to cover the whole surface.
	DrawImage(img image.Image)
	// DrawText draws s centered on (x, y): the outline first, then the fill.
	DrawText(s string, x, y, size float64, fill, stroke string, strokeWidth float64)
}

// Scene is everything a render pass needs.
type Scene struct {
	Background image.Image
	Lines      []editor.TextLine
	// Selected gets the highlight outline; editor.None for no highlight.
	Selected int
}

// SceneOf captures the current state of e. With highlight false the
// selected line is drawn like the others, as used for export.
func SceneOf(e *editor.Editor, bg image.Image, highlight bool) Scene {
	sc := Scene{Background: bg, Lines: e.Lines, Selected: editor.None}
	if highlight {
		sc.Selected = e.Selected
	}
	return sc
}

// StrokeWidth returns the outline width for a line of the given size.
func StrokeWidth(size float64, selected bool) float64 {
	if selected {
		return math.Max(3, size/15)
	}
	return math.Max(2, size/20)
}

// Draw renders sc onto s. Without a background nothing is drawn.
func Draw(s Surface, sc Scene) {
	if sc.Background == nil {
		return
	}
	s.Clear()
	s.DrawImage(sc.Background)
	for i, l := range sc.Lines {
		if l.Text == "" {
			continue
		}
		sel := i == sc.Selected
		stroke := StrokeColor
		if sel {
			stroke = SelectedStrokeColor
		}
		s.DrawText(l.Text, l.X, l.Y, l.Size, l.Color, stroke, StrokeWidth(l.Size, sel))
	}
}
