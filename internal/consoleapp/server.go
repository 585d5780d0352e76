package consoleapp

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/middleware"
	"github.com/phillip-england/estatecrm/internal/session"
)

const sessionCookieName = "estatecrm_session"

//go:embed templates/admin.html templates/login.html assets/app.css
var templatesFS embed.FS

type server struct {
	cfg    Config
	client *crmapi.Client
	gate   *session.Gate
	spaces *workspaces
	logger *slog.Logger

	adminTmpl *template.Template
	loginTmpl *template.Template
}

// NewHandler wires the console router against the CRM API at
// cfg.APIBaseURL, keeping tokens in store.
func NewHandler(cfg Config, store session.Store, logger *slog.Logger) (http.Handler, error) {
	s, err := newServer(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	return s.routes(), nil
}

func newServer(cfg Config, store session.Store, logger *slog.Logger) (*server, error) {
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = crmapi.DefaultTimeout
	}

	client := crmapi.New(cfg.APIBaseURL, &http.Client{Timeout: timeout})
	s := &server{
		cfg:       cfg,
		client:    client,
		gate:      session.NewGate(client, store, logger),
		spaces:    newWorkspaces(cfg.SessionTTL, logger),
		logger:    logger,
		adminTmpl: template.Must(template.ParseFS(templatesFS, "templates/admin.html")),
		loginTmpl: template.Must(template.ParseFS(templatesFS, "templates/login.html")),
	}
	return s, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, middleware.RequestLogger(s.logger), chimw.Recoverer)

	r.Get("/", s.loginPage)
	r.Post("/", s.login)
	r.Post("/logout", s.logout)
	r.Get("/healthz", s.health)
	r.Get("/assets/app.css", s.appCSSFile)

	r.Route(session.DashboardPath, func(r chi.Router) {
		if s.cfg.RequireSession {
			r.Use(s.requireAdmin)
		}
		r.Get("/", s.adminPage)
		r.Post("/view/{view}", s.selectView)
		r.Post("/form", s.toggleForm)
		r.Post("/records", s.createRecord)
		r.Post("/records/{id}", s.openRecord)
		r.Post("/records/{id}/delete", s.requestDelete)
		r.Post("/records/{id}/delete/confirm", s.confirmDelete)
		r.Post("/records/{id}/delete/cancel", s.cancelDelete)
		r.Post("/detail/close", s.closeDetail)
		r.Post("/detail/assign", s.beginAssign)
		r.Post("/agents/{id}/assign-lead", s.assignLead)
		r.Post("/leads/{id}", s.updateLead)
		r.Post("/sellers/{id}", s.updateSeller)
		r.Post("/notices/{id}/dismiss", s.dismissNotice)
		r.Get("/export.xlsx", s.exportRecords)
		r.Post("/leads/import", s.importLeads)
	})

	csp := strings.Join([]string{
		"default-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return middleware.Chain(
		r,
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	)
}

func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close session store failed", "error", err)
		}
	}()

	handler, err := NewHandler(cfg, store, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("console listening", "addr", "http://localhost"+cfg.Addr, "api", cfg.APIBaseURL, "sessions", cfg.SessionBackend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// sessionID returns the browser's session id, issuing a new cookie when
// there is none or it is malformed.
func (s *server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if _, err := ulid.ParseStrict(c.Value); err == nil {
			return c.Value
		}
	}
	sid := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// workspace resolves the caller's workspace and binds it to their token.
// Without a token the calls go out unauthenticated.
func (s *server) workspace(w http.ResponseWriter, r *http.Request) (*workspace, string) {
	sid := s.sessionID(w, r)
	token := s.gate.Token(r.Context(), sid)
	return s.spaces.get(sid, s.client.WithToken(token)), token
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil || s.gate.Token(r.Context(), c.Value) == "" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *server) appCSSFile(w http.ResponseWriter, r *http.Request) {
	data, err := templatesFS.ReadFile("assets/app.css")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}

func backToDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, session.DashboardPath, http.StatusSeeOther)
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(buf.Bytes())
	return err
}
