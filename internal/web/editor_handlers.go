package web

import (
	"bytes"
	"errors"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/mikequentel/memeboard/internal/editor"
	"github.com/mikequentel/memeboard/internal/model"
	"github.com/mikequentel/memeboard/internal/publish"
	"github.com/mikequentel/memeboard/internal/render"
)

type lineState struct {
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

type editorState struct {
	ID         string      `json:"id"`
	Input      string      `json:"input"`
	Lines      []lineState `json:"lines"`
	Size       float64     `json:"size"`
	Color      string      `json:"color"`
	ColorLabel string      `json:"colorLabel"`
	Selected   int         `json:"selected"`
	Dragging   bool        `json:"dragging"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	HasImage   bool        `json:"hasImage"`
	Cursor     string      `json:"cursor,omitempty"`
	Redraw     bool        `json:"redraw,omitempty"`
}

func stateOf(es *editorSession) editorState {
	e := es.draft.Editor
	st := editorState{
		ID:         es.id,
		Input:      e.Input,
		Lines:      make([]lineState, len(e.Lines)),
		Size:       e.Size,
		Color:      e.Color,
		ColorLabel: e.ColorLabel(),
		Selected:   e.Selected,
		Dragging:   e.IsDragging(),
		Width:      e.Width,
		Height:     e.Height,
		HasImage:   e.HasImage,
	}
	for i, l := range e.Lines {
		st.Lines[i] = lineState{Text: l.Text, X: l.X, Y: l.Y, Size: l.Size, Color: l.Color}
	}
	return st
}

// withEditor runs fn on the requested editor session while holding its
// lock. Only the signed-in owner may reach a session.
func (s *Server) withEditor(w http.ResponseWriter, r *http.Request, fn func(es *editorSession, userID string) error) {
	sess, err := s.viewer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	es, release, err := s.editors.acquire(r.PathValue("id"), sess.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer release()
	if err := fn(es, sess.UserID); err != nil {
		s.fail(w, r, err)
	}
}

// readImage decodes the image of a request: a multipart "image" upload or
// a "template" name from the catalog. It returns nil when neither is given.
func (s *Server) readImage(r *http.Request) (image.Image, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, badRequest{"Malformed upload."}
		}
		if f, hdr, err := r.FormFile("image"); err == nil {
			defer f.Close()
			return render.Decode(f, hdr.Filename)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, badRequest{"Malformed form."}
	}
	name := r.FormValue("template")
	if name == "" {
		return nil, nil
	}
	f, err := s.templates.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return render.Decode(f, name)
}

// loadImage puts img behind the draft. The canvas takes the image size
// fitted into the maximum canvas; lines keep their positions.
func loadImage(d *publish.Draft, img image.Image) {
	b := img.Bounds()
	w, h := render.Fit(b.Dx(), b.Dy())
	d.Background = img
	d.Editor.SetCanvas(float64(w), float64(h))
}

func (s *Server) handleNewEditor(w http.ResponseWriter, r *http.Request) {
	sess, err := s.viewer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := s.readImage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	es := s.editors.create(sess.UserID)
	es.mu.Lock()
	defer es.mu.Unlock()
	if img != nil {
		loadImage(&es.draft, img)
	}
	writeJSON(w, http.StatusCreated, stateOf(es))
}

func (s *Server) handleEditorState(w http.ResponseWriter, r *http.Request) {
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		writeJSON(w, http.StatusOK, stateOf(es))
		return nil
	})
}

func (s *Server) handleDiscardEditor(w http.ResponseWriter, r *http.Request) {
	sess, err := s.viewer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.editors.remove(r.PathValue("id"), sess.UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEditorImage replaces the draft's image. A bad image leaves the
// draft untouched.
func (s *Server) handleEditorImage(w http.ResponseWriter, r *http.Request) {
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		img, err := s.readImage(r)
		if err != nil {
			return err
		}
		if img == nil {
			return badRequest{"Choose a template or upload an image."}
		}
		loadImage(&es.draft, img)
		writeJSON(w, http.StatusOK, stateOf(es))
		return nil
	})
}

func (s *Server) handleEditorText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		applied := es.draft.Editor.SetInput(req.Value)
		st := stateOf(es)
		st.Redraw = applied
		writeJSON(w, http.StatusOK, st)
		return nil
	})
}

func (s *Server) handleEditorSize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Size float64 `json:"size"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		es.draft.Editor.SetSize(req.Size)
		writeJSON(w, http.StatusOK, stateOf(es))
		return nil
	})
}

func (s *Server) handleEditorColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		if err := es.draft.Editor.SetColor(req.Color); err != nil {
			return badRequest{"Colors must look like #rrggbb."}
		}
		writeJSON(w, http.StatusOK, stateOf(es))
		return nil
	})
}

func (s *Server) handleEditorSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		es.draft.Editor.Select(req.Index)
		writeJSON(w, http.StatusOK, stateOf(es))
		return nil
	})
}

type pointerRequest struct {
	Kind    string  `json:"kind"`
	Phase   string  `json:"phase"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	// Displayed canvas rectangle, as from getBoundingClientRect.
	Left          float64 `json:"left"`
	Top           float64 `json:"top"`
	DisplayWidth  float64 `json:"displayWidth"`
	DisplayHeight float64 `json:"displayHeight"`
}

func (s *Server) handleEditorPointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	kind, err := editor.ParseKind(req.Kind)
	if err != nil {
		s.fail(w, r, badRequest{err.Error()})
		return
	}
	phase, err := editor.ParsePhase(req.Phase)
	if err != nil {
		s.fail(w, r, badRequest{err.Error()})
		return
	}
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		e := es.draft.Editor
		vp := editor.Viewport{Left: req.Left, Top: req.Top, Width: req.DisplayWidth, Height: req.DisplayHeight}
		ev := editor.Normalize(kind, phase, req.ClientX, req.ClientY, vp, e.Width, e.Height)
		redraw := e.Pointer(ev, s.fonts)
		st := stateOf(es)
		st.Redraw = redraw
		st.Cursor = string(e.Cursor(ev.Point(), s.fonts))
		writeJSON(w, http.StatusOK, st)
		return nil
	})
}

func writePNG(w http.ResponseWriter, png []byte, attachment string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if attachment != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+attachment+`"`)
	}
	io.Copy(w, bytes.NewReader(png))
}

// handleEditorCanvas renders the draft as the editor shows it, with the
// selected line outlined.
func (s *Server) handleEditorCanvas(w http.ResponseWriter, r *http.Request) {
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		d := &es.draft
		if !d.Ready() {
			return model.ErrNoImage
		}
		png, err := render.RenderPNG(d.Scene(true), int(d.Editor.Width), int(d.Editor.Height), s.fonts)
		if err != nil {
			return err
		}
		writePNG(w, png, "")
		return nil
	})
}

func (s *Server) handleEditorDownload(w http.ResponseWriter, r *http.Request) {
	s.withEditor(w, r, func(es *editorSession, _ string) error {
		var buf bytes.Buffer
		if err := s.publish.Export(&buf, &es.draft); err != nil {
			return err
		}
		writePNG(w, buf.Bytes(), "meme.png")
		return nil
	})
}

func (s *Server) handleEditorPost(w http.ResponseWriter, r *http.Request) {
	s.withEditor(w, r, func(es *editorSession, userID string) error {
		meme, err := s.publish.Post(r.Context(), userID, &es.draft)
		if err != nil {
			var pe *model.PersistenceWriteError
			if errors.As(err, &pe) {
				s.log.Warn("post failed, draft kept", "editor", es.id, "err", err)
			}
			return err
		}
		writeJSON(w, http.StatusCreated, meme)
		return nil
	})
}
