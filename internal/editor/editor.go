package editor

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Cursor is the pointer shape the view should show over the canvas.
type Cursor string

const (
	CursorDefault  Cursor = "default"
	CursorGrab     Cursor = "grab"
	CursorGrabbing Cursor = "grabbing"
)

// Editor is the state of one meme being composed. It is not safe for
// concurrent use; callers serialize events.
type Editor struct {
	Lines []TextLine
	Input string

	Size  float64
	Color string

	// Selected scopes color edits; None applies them to every line.
	Selected int
	// Dragging is the index of the line under an active drag, or None.
	Dragging int

	// Canvas size in pixels. Zero until an image is loaded.
	Width, Height float64
	HasImage      bool
}

func New() *Editor {
	return &Editor{
		Size:     DefaultSize,
		Color:    DefaultColor,
		Selected: None,
		Dragging: None,
	}
}

// SetCanvas records a loaded image of the given canvas size.
func (e *Editor) SetCanvas(w, h float64) {
	e.Width, e.Height = w, h
	e.HasImage = w > 0 && h > 0
}

func (e *Editor) style() Style {
	return Style{
		Size:     e.Size,
		Color:    e.Color,
		Selected: e.Selected,
		Width:    e.Width,
		Height:   e.Height,
	}
}

// SetInput applies a new text field value. Edits arriving during a drag
// are dropped and SetInput reports false.
func (e *Editor) SetInput(value string) bool {
	if e.IsDragging() {
		return false
	}
	e.Input = value
	e.Lines = Synchronize(e.Lines, value, e.style())
	if e.Selected >= len(e.Lines) {
		e.Selected = None
	}
	return true
}

// ClampSize limits n to the slider range.
func ClampSize(n float64) float64 {
	if math.IsNaN(n) {
		return DefaultSize
	}
	return math.Max(MinSize, math.Min(MaxSize, n))
}

// SetSize sets the global size and resizes every existing line.
func (e *Editor) SetSize(n float64) {
	e.Size = ClampSize(n)
	for i := range e.Lines {
		e.Lines[i].Size = e.Size
	}
}

var (
	reHex6 = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	reHex3 = regexp.MustCompile(`^#[0-9a-fA-F]{3}$`)
)

// NormalizeColor returns c as lowercase #rrggbb. #rgb is expanded.
func NormalizeColor(c string) (string, error) {
	c = strings.TrimSpace(c)
	switch {
	case reHex6.MatchString(c):
		return strings.ToLower(c), nil
	case reHex3.MatchString(c):
		r, g, b := c[1:2], c[2:3], c[3:4]
		return strings.ToLower("#" + r + r + g + g + b + b), nil
	}
	return "", fmt.Errorf("invalid color %q", c)
}

// SetColor recolors the selected line, or every current line when nothing
// is selected. Lines added later are not affected beyond receiving the new
// current color.
func (e *Editor) SetColor(c string) error {
	col, err := NormalizeColor(c)
	if err != nil {
		return err
	}
	e.Color = col
	if e.Selected >= 0 && e.Selected < len(e.Lines) {
		e.Lines[e.Selected].Color = col
		return nil
	}
	for i := range e.Lines {
		e.Lines[i].Color = col
	}
	return nil
}

// Select makes i the selected line and moves the color control to its
// color. An out of range index clears the selection.
func (e *Editor) Select(i int) {
	if i < 0 || i >= len(e.Lines) {
		e.Selected = None
		return
	}
	e.Selected = i
	e.Color = e.Lines[i].Color
}

func (e *Editor) IsDragging() bool { return e.Dragging != None }

// PointerDown starts a drag on the line under p, or clears the selection
// when p hits nothing. It reports whether the state changed.
func (e *Editor) PointerDown(p Point, m Measurer) bool {
	if !e.HasImage || len(e.Lines) == 0 || e.IsDragging() {
		return false
	}
	i := HitTest(e.Lines, p, m)
	if i == None {
		changed := e.Selected != None
		e.Selected = None
		return changed
	}
	e.Select(i)
	e.Dragging = i
	e.Lines[i].DragOffset = p.Sub(e.Lines[i].Center())
	return true
}

// PointerMove moves the dragged line so the grabbed point stays under p,
// keeping its center DragPadding inside the canvas.
func (e *Editor) PointerMove(p Point) bool {
	if !e.HasImage || !e.IsDragging() {
		return false
	}
	if e.Dragging >= len(e.Lines) {
		e.Dragging = None
		return false
	}
	l := &e.Lines[e.Dragging]
	if l.Text == "" {
		return false
	}
	l.X = clamp(p.X-l.DragOffset.X, DragPadding, e.Width-DragPadding)
	l.Y = clamp(p.Y-l.DragOffset.Y, DragPadding, e.Height-DragPadding)
	return true
}

// PointerUp ends any drag regardless of where the pointer is.
func (e *Editor) PointerUp() bool {
	if !e.IsDragging() {
		return false
	}
	if e.Dragging < len(e.Lines) {
		e.Lines[e.Dragging].DragOffset = Point{}
	}
	e.Dragging = None
	return true
}

// Pointer dispatches a normalized event and reports whether a redraw is
// needed.
func (e *Editor) Pointer(ev PointerEvent, m Measurer) bool {
	switch ev.Phase {
	case Down:
		return e.PointerDown(ev.Point(), m)
	case Move:
		return e.PointerMove(ev.Point())
	case Up, Cancel:
		return e.PointerUp()
	}
	return false
}

// Cursor returns the pointer shape for a pointer hovering at p.
func (e *Editor) Cursor(p Point, m Measurer) Cursor {
	if e.IsDragging() {
		return CursorGrabbing
	}
	if e.HasImage && HitTest(e.Lines, p, m) != None {
		return CursorGrab
	}
	return CursorDefault
}

// ColorLabel describes what a color edit will apply to.
func (e *Editor) ColorLabel() string {
	if e.Selected != None {
		return fmt.Sprintf("(Line %d of %d)", e.Selected+1, len(e.Lines))
	}
	return "(All lines)"
}

// Reset clears text, selection and image but keeps the size and color
// controls, as after a successful post.
func (e *Editor) Reset() {
	e.Lines = nil
	e.Input = ""
	e.Selected = None
	e.Dragging = None
	e.Width, e.Height = 0, 0
	e.HasImage = false
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		// canvas narrower than twice the padding
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}
