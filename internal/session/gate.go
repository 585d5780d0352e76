package session

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phillip-england/estatecrm/internal/crmapi"
)

const (
	DashboardPath = "/admindashboard"

	msgInvalidCredentials = "Invalid credentials"
	msgServerError        = "Server error"
)

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Outcome is what the login page does next. Redirect is set on success;
// otherwise Error is shown and the form keeps Email.
type Outcome struct {
	Redirect string
	Error    string
	Email    string
}

type Gate struct {
	auth   Authenticator
	store  Store
	logger *slog.Logger
}

func NewGate(auth Authenticator, store Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{auth: auth, store: store, logger: logger}
}

func (g *Gate) Login(ctx context.Context, sid, email, password string) Outcome {
	token, err := g.auth.Login(ctx, email, password)
	if err != nil {
		if crmapi.IsTransport(err) {
			g.logger.ErrorContext(ctx, "login failed", "error", err)
			return Outcome{Error: msgServerError, Email: email}
		}
		g.logger.WarnContext(ctx, "login rejected", "status", crmapi.StatusCode(err), "error", err)
		return Outcome{Error: crmapi.UserMessage(err, msgInvalidCredentials), Email: email}
	}

	if err := g.store.Set(ctx, sid, TokenKey, token); err != nil {
		g.logger.ErrorContext(ctx, "store token failed", "error", err)
		return Outcome{Error: msgServerError, Email: email}
	}
	g.logger.InfoContext(ctx, "operator signed in", "subject", Subject(token))
	return Outcome{Redirect: DashboardPath}
}

// Token returns the stored bearer token, or "" when there is none.
func (g *Gate) Token(ctx context.Context, sid string) string {
	if sid == "" {
		return ""
	}
	token, err := g.store.Get(ctx, sid, TokenKey)
	if err != nil {
		g.logger.WarnContext(ctx, "read token failed", "error", err)
		return ""
	}
	return token
}

func (g *Gate) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return g.store.Clear(ctx, sid)
}

// Subject reads the sub claim of a JWT without verifying it. Tokens are
// opaque to the console; this is only used for display.
func Subject(token string) string {
	if token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
