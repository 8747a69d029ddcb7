package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/mikequentel/memeboard/internal/feed"
	"github.com/mikequentel/memeboard/internal/templates"
)

type feedResponse struct {
	Memes []feed.Item `json:"memes"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	items, err := s.feed.List(r.Context(), s.viewerID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{Memes: items})
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	sess, err := s.viewer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.feed.ToggleUpvote(r.Context(), sess.UserID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if isFormPost(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// isFormPost reports whether r came from a plain HTML form rather than
// an API client.
func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (s *Server) handleMeme(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Meme(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleEvents streams a "change" event after every committed write so
// feed pages can refetch.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported.")
		return
	}
	changes, cancel := s.store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if _, err := io.WriteString(w, "event: change\ndata: "+strings.Join(c.Collections, ",")+"\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type templatesResponse struct {
	Templates []templates.Template `json:"templates"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	items := s.templates.Items
	if items == nil {
		items = []templates.Template{}
	}
	writeJSON(w, http.StatusOK, templatesResponse{Templates: items})
}

func (s *Server) handleTemplateImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, err := s.templates.Open(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.ServeContent(w, r, name, fi.ModTime(), f)
}
