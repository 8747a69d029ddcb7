package editor

// Measurer reports the advance width of s rendered at size pixels.
type Measurer interface {
	MeasureText(s string, size float64) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(s string, size float64) float64

func (f MeasureFunc) MeasureText(s string, size float64) float64 { return f(s, size) }

// Box is an axis-aligned rectangle in canvas pixels.
type Box struct {
	Left, Top, Right, Bottom float64
}

// Contains reports whether p lies inside b, edges included.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

// Bounds returns the box of l: measured width by font size, centered on
// the line's position.
func Bounds(l TextLine, m Measurer) Box {
	w := m.MeasureText(l.Text, l.Size)
	h := l.Size
	return Box{
		Left:   l.X - w/2,
		Right:  l.X + w/2,
		Top:    l.Y - h/2,
		Bottom: l.Y + h/2,
	}
}

// HitTest returns the index of the topmost line whose box contains p, or
// None. Later lines are drawn on top, so they win on overlap. Empty lines
// cannot be hit.
func HitTest(lines []TextLine, p Point, m Measurer) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].Text == "" {
			continue
		}
		if Bounds(lines[i], m).Contains(p) {
			return i
		}
	}
	return None
}
