package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/gg"

	"github.com/mikequentel/memeboard/internal/auth"
	"github.com/mikequentel/memeboard/internal/config"
	"github.com/mikequentel/memeboard/internal/feed"
	"github.com/mikequentel/memeboard/internal/publish"
	"github.com/mikequentel/memeboard/internal/render"
	"github.com/mikequentel/memeboard/internal/store"
	"github.com/mikequentel/memeboard/internal/syndicate"
	"github.com/mikequentel/memeboard/internal/templates"
	"github.com/mikequentel/memeboard/internal/web"
)

var (
	configPath = flag.String("config", os.Getenv("MEMEBOARD_CONFIG"), "TOML config file")
	verifyX    = flag.Bool("verify-x", false, "check the X credentials and exit")
)

func main() {
	flag.Parse()

	// --- Config (file + env) ---
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := cfg.NewLogger()
	slog.SetDefault(log)
	gg.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- X syndication (optional) ---
	var synd publish.Syndicator
	if cfg.Syndicate() {
		poster := syndicate.New(cfg.X.Credentials(), cfg.X.DryRun, log.With("component", "syndicate"))
		if !cfg.X.DryRun {
			name, err := poster.Verify()
			must(log, err)
			log.Info("X credentials verified", "screen_name", name)
		}
		synd = poster
	}
	if *verifyX {
		if synd == nil {
			must(log, errors.New("no X credentials configured"))
		}
		return
	}

	// --- DB init ---
	db, err := store.OpenDB(cfg.DB)
	must(log, err)
	defer db.Close()

	st, err := store.New(ctx, db, log.With("component", "store"))
	must(log, err)

	editorTTL, sessionTTL, codeTTL := cfg.Durations()
	au, err := auth.New(ctx, db, newMailer(cfg, log), log.With("component", "auth"), auth.Options{
		CodeTTL:    codeTTL,
		SessionTTL: sessionTTL,
	})
	must(log, err)

	// --- Rendering and templates ---
	fonts, err := render.LoadFonts(cfg.Font)
	must(log, err)
	defer fonts.Close()
	log.Debug("font loaded", "name", fonts.Name())

	catalog, err := loadCatalog(cfg.Templates)
	must(log, err)
	log.Info("templates loaded", "dir", catalog.Dir, "count", len(catalog.Items))

	blobs := store.DirBlobs{Dir: cfg.BlobDir, BaseURL: strings.TrimRight(cfg.BaseURL, "/") + "/blobs"}
	pub := publish.New(st, blobs, fonts, log.With("component", "publish"), publish.Options{
		AppID:      cfg.AppID,
		Syndicator: synd,
	})

	srv := web.New(web.Config{
		Auth:      au,
		Store:     st,
		Feed:      feed.New(st, log.With("component", "feed")),
		Publish:   pub,
		Templates: catalog,
		Fonts:     fonts,
		BlobDir:   cfg.BlobDir,
		AppID:     cfg.AppID,
		Secure:    strings.HasPrefix(cfg.BaseURL, "https://"),
		EditorTTL: editorTTL,
		Log:       log.With("component", "web"),
	})
	go srv.SweepEditors(ctx, time.Minute)
	go purgeExpired(ctx, au, log)

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	hs.RegisterOnShutdown(srv.CloseStreams)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "err", err)
		}
	}()

	log.Info("listening", "addr", cfg.Addr, "base_url", cfg.BaseURL, "syndicate", synd != nil)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		must(log, err)
	}
	log.Info("stopped")
}

func must(log *slog.Logger, err error) {
	if err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newMailer(cfg config.Config, log *slog.Logger) auth.Mailer {
	if cfg.SMTP.Addr == "" {
		log.Warn("no SMTP relay configured, sign-in codes are logged")
		return auth.LogMailer{Log: log.With("component", "mailer")}
	}
	return auth.SMTPMailer{
		Addr:     cfg.SMTP.Addr,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}
}

// loadCatalog reads templates from a directory, or from an HTML gallery
// page whose images live next to it.
func loadCatalog(path string) (*templates.Catalog, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".html" && ext != ".htm" {
		return templates.LoadDir(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return templates.ParseGallery(f, filepath.Dir(path))
}

func purgeExpired(ctx context.Context, au *auth.Service, log *slog.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := au.PurgeExpired(ctx); err != nil {
				log.Warn("purge expired sessions", "err", err)
			}
		}
	}
}
