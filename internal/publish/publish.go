// Package publish turns an editor draft into a posted meme or an exported
// PNG.
package publish

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikequentel/memeboard/internal/editor"
	"github.com/mikequentel/memeboard/internal/model"
	"github.com/mikequentel/memeboard/internal/render"
	"github.com/mikequentel/memeboard/internal/store"
)

// Draft is an editor together with the image it composes over.
type Draft struct {
	Editor     *editor.Editor
	Background image.Image
}

// Ready reports whether the draft has an image to render.
func (d *Draft) Ready() bool {
	return d != nil && d.Editor != nil && d.Editor.HasImage && d.Background != nil
}

// Scene is the draft as drawn on screen, with the selected line outlined
// when highlight is set.
func (d *Draft) Scene(highlight bool) render.Scene {
	return render.SceneOf(d.Editor, d.Background, highlight)
}

// Backend is the part of the store publishing writes to.
type Backend interface {
	Transact(ctx context.Context, ops ...store.Op) error
}

// Syndicator cross-posts a published meme somewhere else.
type Syndicator interface {
	Post(ctx context.Context, text string, png []byte) (string, error)
}

type Options struct {
	// AppID prefixes blob paths when set.
	AppID      string
	Syndicator Syndicator
	Now        func() time.Time
}

type Service struct {
	backend Backend
	blobs   store.BlobStore
	synd    Syndicator
	appID   string
	log     *slog.Logger
	now     func() time.Time
	render  func(sc render.Scene, w, h int) ([]byte, error)
}

// New returns a Service. blobs may be nil, in which case every post embeds
// its image as a data URI.
func New(b Backend, blobs store.BlobStore, fonts *render.Fonts, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		backend: b,
		blobs:   blobs,
		synd:    opts.Syndicator,
		appID:   strings.Trim(opts.AppID, "/"),
		log:     log,
		now:     opts.Now,
		render: func(sc render.Scene, w, h int) ([]byte, error) {
			return render.RenderPNG(sc, w, h, fonts)
		},
	}
}

// PNG renders the draft for export, without the selection outline.
func (s *Service) PNG(d *Draft) ([]byte, error) {
	if !d.Ready() {
		return nil, model.ErrNoImage
	}
	return s.render(d.Scene(false), int(d.Editor.Width), int(d.Editor.Height))
}

// Export writes the draft as PNG to w. Nothing is persisted.
func (s *Service) Export(w io.Writer, d *Draft) error {
	png, err := s.PNG(d)
	if err != nil {
		return err
	}
	if _, err := w.Write(png); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// blobName is where the image of a post made at t is stored.
func (s *Service) blobName(t time.Time) string {
	name := fmt.Sprintf("memes/%d-%s.png", t.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	if s.appID != "" {
		name = s.appID + "/" + name
	}
	return name
}

// Post publishes the draft as a meme by userID. The image goes to the blob
// store; if that fails it is embedded as a data URI instead. The draft is
// reset only after the meme is written.
func (s *Service) Post(ctx context.Context, userID string, d *Draft) (model.Meme, error) {
	if userID == "" {
		return model.Meme{}, model.ErrNotSignedIn
	}
	png, err := s.PNG(d)
	if err != nil {
		return model.Meme{}, err
	}
	config, err := editor.EncodeConfig(d.Editor.Lines)
	if err != nil {
		return model.Meme{}, fmt.Errorf("encode text config: %w", err)
	}

	now := s.now()
	url := ""
	if s.blobs != nil {
		name := s.blobName(now)
		url, err = s.blobs.Upload(ctx, name, png)
		if err != nil {
			s.log.Warn("image upload failed, embedding data URI", "blob", name, "err", err)
			url = ""
		}
	}
	if url == "" {
		url = render.DataURI(png)
	}

	meme := model.Meme{
		ID:          uuid.NewString(),
		ImageURL:    url,
		Text:        d.Editor.Input,
		TextConfig:  config,
		CreatedAt:   now.UnixMilli(),
		UserID:      userID,
		UpvoteCount: 0,
	}
	if err := s.backend.Transact(ctx, store.CreateMeme{Meme: meme}); err != nil {
		var pe *model.PersistenceWriteError
		if !errors.As(err, &pe) {
			err = &model.PersistenceWriteError{Op: "create meme", Err: err}
		}
		return model.Meme{}, err
	}
	s.log.Info("meme posted", "meme", meme.ID, "user", userID, "lines", len(d.Editor.Lines))

	d.Editor.Reset()
	d.Background = nil

	if s.synd != nil {
		if id, err := s.synd.Post(ctx, meme.Text, png); err != nil {
			s.log.Warn("syndication failed", "meme", meme.ID, "err", err)
		} else if id != "" {
			s.log.Info("meme syndicated", "meme", meme.ID, "tweet", id)
		}
	}
	return meme, nil
}
