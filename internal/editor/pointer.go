package editor

import "fmt"

type PointerKind int

const (
	Mouse PointerKind = iota
	Touch
)

func (k PointerKind) String() string {
	switch k {
	case Mouse:
		return "mouse"
	case Touch:
		return "touch"
	}
	return fmt.Sprintf("PointerKind(%d)", int(k))
}

type Phase int

const (
	Down Phase = iota
	Move
	Up
	Cancel // also used for the pointer leaving the canvas
)

func (p Phase) String() string {
	switch p {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Cancel:
		return "cancel"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// PointerEvent is a mouse or touch event in canvas pixel coordinates.
type PointerEvent struct {
	Kind  PointerKind
	Phase Phase
	X, Y  float64
}

func (e PointerEvent) Point() Point { return Point{e.X, e.Y} }

// ParseKind accepts "mouse" and "touch".
func ParseKind(s string) (PointerKind, error) {
	switch s {
	case "mouse", "":
		return Mouse, nil
	case "touch":
		return Touch, nil
	}
	return 0, fmt.Errorf("unknown pointer kind %q", s)
}

// ParsePhase accepts down/up/move/cancel and the DOM event names that map
// onto them.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "down", "mousedown", "touchstart":
		return Down, nil
	case "move", "mousemove", "touchmove":
		return Move, nil
	case "up", "mouseup", "touchend":
		return Up, nil
	case "cancel", "leave", "mouseleave", "touchcancel":
		return Cancel, nil
	}
	return 0, fmt.Errorf("unknown pointer phase %q", s)
}

// Viewport is the on-screen rectangle a canvas is displayed in. The
// displayed size can differ from the canvas pixel size.
type Viewport struct {
	Left, Top     float64
	Width, Height float64
}

// Normalize maps client coordinates to canvas pixels for a canvas of
// canvasW x canvasH displayed in vp. A viewport with no size is treated as
// unscaled.
func Normalize(kind PointerKind, phase Phase, clientX, clientY float64, vp Viewport, canvasW, canvasH float64) PointerEvent {
	sx, sy := 1.0, 1.0
	if vp.Width > 0 && canvasW > 0 {
		sx = canvasW / vp.Width
	}
	if vp.Height > 0 && canvasH > 0 {
		sy = canvasH / vp.Height
	}
	return PointerEvent{
		Kind:  kind,
		Phase: phase,
		X:     (clientX - vp.Left) * sx,
		Y:     (clientY - vp.Top) * sy,
	}
}
