// Package web is the HTTP surface: JSON API, editor sessions, the HTML
// feed page and a live change stream.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mikequentel/memeboard/internal/auth"
	"github.com/mikequentel/memeboard/internal/feed"
	"github.com/mikequentel/memeboard/internal/publish"
	"github.com/mikequentel/memeboard/internal/render"
	"github.com/mikequentel/memeboard/internal/store"
	"github.com/mikequentel/memeboard/internal/templates"
)

const (
	CookieName = "memeboard_session"

	defaultEditorTTL = 30 * time.Minute
	maxUploadBytes   = 20 << 20
)

// Config wires the services the handlers call.
type Config struct {
	Auth      *auth.Service
	Store     *store.Store
	Feed      *feed.Service
	Publish   *publish.Service
	Templates *templates.Catalog
	Fonts     *render.Fonts

	// BlobDir is served under /blobs/ when set.
	BlobDir string
	AppID   string
	// Secure marks the session cookie Secure.
	Secure bool

	EditorTTL time.Duration
	Log       *slog.Logger
	Now       func() time.Time
}

type Server struct {
	auth      *auth.Service
	store     *store.Store
	feed      *feed.Service
	publish   *publish.Service
	templates *templates.Catalog
	fonts     *render.Fonts
	blobDir   string
	appID     string
	secure    bool
	editors   *registry
	log       *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.DiscardHandler)
	}
	if cfg.EditorTTL <= 0 {
		cfg.EditorTTL = defaultEditorTTL
	}
	if cfg.Templates == nil {
		cfg.Templates = &templates.Catalog{}
	}
	return &Server{
		auth:      cfg.Auth,
		store:     cfg.Store,
		feed:      cfg.Feed,
		publish:   cfg.Publish,
		templates: cfg.Templates,
		fonts:     cfg.Fonts,
		blobDir:   cfg.BlobDir,
		appID:     cfg.AppID,
		secure:    cfg.Secure,
		editors:   newRegistry(cfg.EditorTTL, cfg.Now),
		log:       cfg.Log,
		closing:   make(chan struct{}),
	}
}

// Handler returns the routed handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/code", s.handleSendCode)
	mux.HandleFunc("POST /api/auth/verify", s.handleVerify)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	mux.HandleFunc("GET /api/me", s.handleMe)

	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /templates/{name}", s.handleTemplateImage)

	mux.HandleFunc("GET /api/memes", s.handleFeed)
	mux.HandleFunc("GET /api/memes/events", s.handleEvents)
	mux.HandleFunc("GET /api/memes/{id}", s.handleMeme)
	mux.HandleFunc("POST /api/memes/{id}/upvote", s.handleUpvote)

	mux.HandleFunc("POST /api/editor", s.handleNewEditor)
	mux.HandleFunc("GET /api/editor/{id}", s.handleEditorState)
	mux.HandleFunc("DELETE /api/editor/{id}", s.handleDiscardEditor)
	mux.HandleFunc("POST /api/editor/{id}/image", s.handleEditorImage)
	mux.HandleFunc("PUT /api/editor/{id}/text", s.handleEditorText)
	mux.HandleFunc("PUT /api/editor/{id}/size", s.handleEditorSize)
	mux.HandleFunc("PUT /api/editor/{id}/color", s.handleEditorColor)
	mux.HandleFunc("POST /api/editor/{id}/select", s.handleEditorSelect)
	mux.HandleFunc("POST /api/editor/{id}/pointer", s.handleEditorPointer)
	mux.HandleFunc("GET /api/editor/{id}/canvas.png", s.handleEditorCanvas)
	mux.HandleFunc("GET /api/editor/{id}/download", s.handleEditorDownload)
	mux.HandleFunc("POST /api/editor/{id}/post", s.handleEditorPost)

	mux.HandleFunc("GET /{$}", s.handlePage)
	if s.blobDir != "" {
		mux.Handle("GET /blobs/", http.StripPrefix("/blobs/", http.FileServer(http.Dir(s.blobDir))))
	}

	return Chain(mux, logRequests(s.log), recoverPanics(s.log))
}

// CloseStreams ends every open change stream. http.Server.Shutdown waits
// for active responses and a stream only ends with its request, so
// register this with RegisterOnShutdown.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// SweepEditors drops idle editor sessions every interval until ctx ends.
func (s *Server) SweepEditors(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.editors.sweep(); n > 0 {
				s.log.Debug("expired editor sessions", "count", n)
			}
		}
	}
}

// viewer returns the session of the signed-in requester. Requests without a
// valid cookie get auth.ErrSessionNotFound.
func (s *Server) viewer(r *http.Request) (auth.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	return s.auth.Session(r.Context(), c.Value)
}

// viewerID is viewer for pages that also serve anonymous users.
func (s *Server) viewerID(r *http.Request) string {
	sess, err := s.viewer(r)
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) {
			s.log.Warn("resolve session", "err", err)
		}
		return ""
	}
	return sess.UserID
}
