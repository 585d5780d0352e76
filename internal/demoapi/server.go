package demoapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/phillip-england/estatecrm/internal/envutil"
	"github.com/phillip-england/estatecrm/internal/logging"
	"github.com/phillip-england/estatecrm/internal/middleware"
)

type Config struct {
	Addr          string
	AdminEmail    string
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:          envutil.OrDefault("API_ADDR", ":8080"),
		AdminEmail:    envutil.OrDefault("ADMIN_EMAIL", "admin"),
		AdminPassword: envutil.OrDefault("ADMIN_PASSWORD", "admin"),
		JWTSecret:     envutil.OrDefault("JWT_SECRET", "supersecretkey"),
		TokenTTL:      envutil.Duration("JWT_TTL", 15*time.Minute),
		CORSOrigins:   strings.Split(envutil.OrDefault("API_CORS_ORIGINS", "*"), ","),
	}
}

type server struct {
	store  *Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewHandler seeds a fresh store with the configured admin and returns the
// API router together with the store it serves.
func NewHandler(cfg Config, logger *slog.Logger) (http.Handler, *Store, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil, nil, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}
	if cfg.JWTSecret == "" {
		return nil, nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Discard()
	}

	store := NewStore()
	if err := store.AddAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, nil, fmt.Errorf("seed admin: %w", err)
	}
	s := &server{store: store, secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL, now: time.Now}
	return s.routes(cfg, logger), store, nil
}

func (s *server) routes(cfg Config, logger *slog.Logger) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP, middleware.RequestLogger(logger), chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.TraceHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Post("/auth/login", s.login)

	r.Get("/agents", s.listAgents)
	r.Post("/agents", s.createAgent)
	r.Post("/agents/{id}/assign-lead", s.assignLead)
	r.Delete("/agents/{id}", s.deleteAgent)

	r.Get("/leads", s.listLeads)
	r.Post("/leads", s.createLead)
	r.Put("/leads/{id}", s.updateLead)
	r.Delete("/leads/{id}", s.deleteLead)

	r.Get("/buyers", s.listBuyers)
	r.Post("/buyers", s.createBuyer)
	r.Delete("/buyers/{id}", s.deleteBuyer)

	r.Get("/sellers", s.listSellers)
	r.Post("/sellers", s.createSeller)
	r.Put("/sellers/{id}", s.updateSeller)
	r.Delete("/sellers/{id}", s.deleteSeller)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/top-locations", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.TopLocations())
		})
		r.Get("/average-property-values", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.AveragePropertyValues())
		})
		r.Get("/leads-pipeline", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.LeadsPipeline())
		})
		r.Get("/buyer-insights", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.BuyerInsights())
		})
		r.Get("/seller-insights", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.SellerInsights())
		})
		r.Get("/market-demand-vs-supply", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.DemandVsSupply())
		})
		r.Get("/market-value", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.MarketValue())
		})
		r.Get("/conversion-rate", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.store.ConversionRate())
		})
	})
	return r
}

func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	handler, _, err := NewHandler(cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("demo api listening", "addr", "http://localhost"+cfg.Addr)
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

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	adminID, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	now := s.now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   adminID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}).SignedString(s.secret)
	if err != nil {
		logging.FromContext(r.Context()).Error("sign token failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to sign token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (s *server) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Agents())
}

func (s *server) createAgent(w http.ResponseWriter, r *http.Request) {
	var in AgentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	agent, err := s.store.CreateAgent(in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *server) assignLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadID string `json:"leadId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.store.AssignLead(chi.URLParam(r, "id"), req.LeadID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Lead assigned successfully")
}

func (s *server) deleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAgent(chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Agent deleted successfully")
}

func (s *server) listLeads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Leads())
}

func (s *server) createLead(w http.ResponseWriter, r *http.Request) {
	var in LeadInput
	if !decodeJSON(w, r, &in) {
		return
	}
	lead, err := s.store.CreateLead(in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (s *server) updateLead(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if !decodeJSON(w, r, &patch) {
		return
	}
	lead, err := s.store.UpdateLead(chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *server) deleteLead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteLead(chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Lead deleted successfully")
}

func (s *server) listBuyers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Buyers())
}

func (s *server) createBuyer(w http.ResponseWriter, r *http.Request) {
	var in BuyerInput
	if !decodeJSON(w, r, &in) {
		return
	}
	buyer, err := s.store.CreateBuyer(in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, buyer)
}

func (s *server) deleteBuyer(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBuyer(chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Buyer deleted successfully")
}

func (s *server) listSellers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Sellers())
}

func (s *server) createSeller(w http.ResponseWriter, r *http.Request) {
	var in SellerInput
	if !decodeJSON(w, r, &in) {
		return
	}
	seller, err := s.store.CreateSeller(in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seller)
}

func (s *server) updateSeller(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if !decodeJSON(w, r, &patch) {
		return
	}
	seller, err := s.store.UpdateSeller(chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seller)
}

func (s *server) deleteSeller(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSeller(chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Seller deleted successfully")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		logging.FromContext(r.Context()).Warn("request rejected", "status", apiErr.status, "msg", apiErr.msg)
		writeMessage(w, apiErr.status, apiErr.msg)
		return
	}
	logging.FromContext(r.Context()).Error("request failed", "error", err)
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
