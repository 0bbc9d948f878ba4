// cmd/web/main.go
//
// Formpipe – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Vault client (only when VAULT_ADDR is set) and config load; `vault:`
//     values are resolved here.
//
//  3. Daily rotating file logger under <root>/logs.
//
//  4. Database pool, submission and upload stores.
//
//  5. Form definitions from the configured directories.
//
//  6. Collaborators: CAPTCHA verifier, mailer, CSRF signer, GeoIP enricher.
//
//  7. Field registry and processor.
//
//  8. Router: /forms routes, /metrics, /healthz.  Request info and security
//     headers wrap everything; HTTPS enforcement is optional.
//
//  9. Serve until SIGINT or SIGTERM.  SIGHUP reloads form definitions.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/formpipe/internal/captcha"
	"github.com/yanizio/formpipe/internal/config"
	"github.com/yanizio/formpipe/internal/csrf"
	"github.com/yanizio/formpipe/internal/database"
	"github.com/yanizio/formpipe/internal/form"
	"github.com/yanizio/formpipe/internal/formdef"
	"github.com/yanizio/formpipe/internal/logger"
	"github.com/yanizio/formpipe/internal/message"
	"github.com/yanizio/formpipe/internal/middleware"
	"github.com/yanizio/formpipe/internal/requestinfo"
	"github.com/yanizio/formpipe/internal/server"
	"github.com/yanizio/formpipe/internal/store"
	"github.com/yanizio/formpipe/internal/vault"
	"github.com/yanizio/formpipe/internal/web"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("formpipe: %v", err)
	}
}

func run(ctx context.Context) error {
	//
	// ── 1.  Bootstrap logger ────────────────────────────────────────────
	//
	boot, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(boot)

	//
	// ── 2.  Secrets and config ──────────────────────────────────────────
	//
	var secrets config.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, boot.Sugar())
		if err != nil {
			return err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return err
	}

	//
	// ── 3.  File logger ─────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Paths.Root, logger.Options{Tee: runningInTTY()})
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 4.  Database and stores ─────────────────────────────────────────
	//
	db, err := database.OpenWithOptions(ctx, cfg.Database.ConnString(), database.Options{
		MaxOpen: cfg.Database.MaxOpen,
		MaxIdle: cfg.Database.MaxIdle,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logOut.Infow("database online")

	submissions := store.NewSubmissions(db)
	uploads := store.NewUploads(db, cfg.Uploads.Dir, cfg.Uploads.BaseURL)

	//
	// ── 5.  Collaborators ───────────────────────────────────────────────
	//
	verifier := captcha.New(captcha.Options{
		Endpoint: cfg.Recaptcha.Endpoint,
		Timeout:  cfg.Recaptcha.Timeout,
		RetryMax: cfg.Recaptcha.RetryMax,
		Logger:   logOut,
	})

	var mailer form.Mailer = message.LogMailer{Log: logOut}
	if cfg.Mail.Host != "" {
		mailer = message.NewSMTP(message.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, logOut)
	}

	signer, err := newSigner(cfg.CSRF)
	if err != nil {
		return err
	}

	enricher, err := requestinfo.New(requestinfo.Options{
		GeoDB:      cfg.GeoIP.CountryDB,
		TrustProxy: cfg.HTTP.TrustProxy,
		Logger:     logOut,
	})
	if err != nil {
		return err
	}
	defer enricher.Close()

	//
	// ── 6.  Registry, definitions, and processor ────────────────────────
	//
	registry := form.NewRegistry(form.Deps{Uploads: uploads, Captcha: verifier})

	opts := form.DefaultOptions()
	opts.SiteName = cfg.Site.Name

	defs := formdef.New(logOut, registry.KnownTypes(opts)...)
	if _, err := defs.Load(cfg.Forms.Dirs...); err != nil {
		return err
	}
	proc, err := form.NewProcessor(form.Config{
		Registry:    registry,
		Forms:       defs,
		Nonces:      signer,
		Submissions: submissions,
		Uploads:     uploads,
		Mailer:      mailer,
		Errors:      form.NewErrorStore(cfg.Forms.ErrorCache),
		Options:     opts,
		Logger:      logOut,
	})
	if err != nil {
		return err
	}

	go reloadOnHUP(ctx, defs, cfg.Forms.Dirs, logOut)

	//
	// ── 7.  Router ──────────────────────────────────────────────────────
	//
	forms := web.NewHandler(proc, signer, web.Options{
		MaxBodyBytes: int64(cfg.HTTP.MaxBodyMB) << 20,
		Logger:       logOut,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(enricher.Middleware)
	r.Use(middleware.Security)
	r.Mount("/forms", forms.Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	var root http.Handler = r
	if cfg.HTTP.ForceHTTPS {
		root = middleware.ForceHTTPS(root)
	}

	//
	// ── 8.  Serve ───────────────────────────────────────────────────────
	//
	return server.Run(ctx, server.New(cfg.HTTP.ListenAddr, root), logOut)
}

// newSigner builds the nonce signer from config.  An empty key yields a
// per-process random key.
func newSigner(c config.CSRF) (*csrf.Signer, error) {
	if c.Key == "" {
		zap.S().Warnw("csrf.key is empty; nonces will not survive a restart")
		return csrf.NewRandom()
	}
	key, err := csrf.DecodeKey(c.Key)
	if err != nil {
		return nil, err
	}
	return csrf.New(key, c.MaxAge)
}

// reloadOnHUP re-reads form definitions on SIGHUP.  Forms are replaced one
// file at a time; a broken file stops the walk and older copies of the
// remaining forms stay live.
func reloadOnHUP(ctx context.Context, defs *formdef.Store, dirs []string, logOut *zap.SugaredLogger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			n, err := defs.Load(dirs...)
			if err != nil {
				logOut.Errorw("form reload failed", "error", err, "loaded", n)
				continue
			}
			logOut.Infow("forms reloaded", "forms", n)
		}
	}
}
