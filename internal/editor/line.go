// Package editor holds the text-layer state of a meme being composed: the
// ordered list of text lines, the current size and color controls, the
// selected line and the drag state. Everything here is pure state; drawing
// and text measurement are injected by the caller.
package editor

import (
	"encoding/json"
	"strings"

	"github.com/mikequentel/memeboard/internal/model"
)

const (
	MinSize     = 20
	MaxSize     = 100
	DefaultSize = 40

	DefaultColor = "#ffffff"

	// LineSpacing is the vertical advance of a new line, in multiples of
	// the current size.
	LineSpacing = 1.2

	// DragPadding keeps a dragged line center this far from every edge.
	DragPadding = 20

	// Canvas size assumed before any image has been loaded.
	DefaultWidth  = 800
	DefaultHeight = 600

	// None is the index reported when no line is selected or hit.
	None = -1
)

type Point struct {
	X, Y float64
}

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// TextLine is one overlay text element. X and Y are the center of the
// rendered text in canvas pixels.
type TextLine struct {
	Text  string
	X, Y  float64
	Size  float64
	Color string

	// DragOffset is pointer minus center at press time; only meaningful
	// while the line is being dragged.
	DragOffset Point
}

func (l TextLine) Center() Point { return Point{l.X, l.Y} }

// Config returns the persisted layout of the line.
func (l TextLine) Config() model.LineConfig {
	return model.LineConfig{X: l.X, Y: l.Y, Size: l.Size, Color: l.Color}
}

// SplitInput splits a text field value into lines. An empty value is one
// empty line.
func SplitInput(value string) []string {
	return strings.Split(value, "\n")
}

// Style carries the control values that Synchronize applies.
type Style struct {
	Size     float64
	Color    string
	Selected int

	// Canvas size; zero means not sized yet.
	Width, Height float64
}

func (s Style) origin() Point {
	if s.Width <= 0 || s.Height <= 0 {
		return Point{DefaultWidth / 2, DefaultHeight / 2}
	}
	return Point{s.Width / 2, s.Height / 2}
}

// Synchronize reconciles lines against a text field value and returns a
// new slice with exactly one TextLine per input line. Positions of lines
// that already exist are kept. Every kept line takes st.Size; it takes
// st.Color only when it is the selected line or nothing is selected. New
// lines are stacked under the previous last line, or placed at the canvas
// center when there is none. The input slice is not modified.
func Synchronize(lines []TextLine, value string, st Style) []TextLine {
	texts := SplitInput(value)
	out := make([]TextLine, 0, len(texts))
	for i, t := range texts {
		if i < len(lines) {
			l := lines[i]
			l.Text = t
			l.Size = st.Size
			if st.Selected == None || i == st.Selected {
				l.Color = st.Color
			}
			out = append(out, l)
			continue
		}
		pos := st.origin()
		if len(out) > 0 {
			last := out[len(out)-1]
			pos = Point{last.X, last.Y + st.Size*LineSpacing}
		}
		out = append(out, TextLine{
			Text:  t,
			X:     pos.X,
			Y:     pos.Y,
			Size:  st.Size,
			Color: st.Color,
		})
	}
	return out
}

// Configs returns the persisted layout of every line, in order.
func Configs(lines []TextLine) []model.LineConfig {
	out := make([]model.LineConfig, len(lines))
	for i, l := range lines {
		out[i] = l.Config()
	}
	return out
}

// EncodeConfig serializes the per-line layout as stored in Meme.TextConfig.
func EncodeConfig(lines []TextLine) (string, error) {
	b, err := json.Marshal(Configs(lines))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
