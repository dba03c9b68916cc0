// Package handler serves the login endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"grc/internal/auth"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/httputil"
	mwauth "grc/pkg/platform/middleware/auth"
	"grc/pkg/requestcontext"
)

// Service defines the login operations used by the handler.
type Service interface {
	DevLogin(ctx context.Context) (*auth.LoginResult, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	SetPassword(ctx context.Context, personID int64, password string) error
}

// Handler wires the login endpoints to the service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	secureCookie bool
}

// New constructs a login handler. secureCookie marks the session cookie
// Secure.
func New(service Service, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{service: service, logger: logger, secureCookie: secureCookie}
}

// Register mounts the public login endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/login", h.HandleDevLogin)
	r.Post("/login", h.HandleLogin)
	r.Get("/logout", h.HandleLogout)
}

// RegisterProtected mounts endpoints that need a session.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Put("/api/people/{id}/password", h.HandleSetPassword)
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	if !govalidator.StringLength(r.Email, "1", "255") || !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "invalid email format")
	}
	return nil
}

// PasswordRequest is the body of PUT /api/people/{id}/password.
type PasswordRequest struct {
	Password string `json:"password"`
}

func (r *PasswordRequest) Normalize() {}

func (r *PasswordRequest) Validate() error {
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

// LoginResponse describes the started session.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Person    PersonSummary `json:"person"`
}

type PersonSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleDevLogin handles GET /login.
func (h *Handler) HandleDevLogin(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.DevLogin(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "development login failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, result)
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, result)
}

func (h *Handler) respond(w http.ResponseWriter, result *auth.LoginResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     mwauth.SessionCookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
		Person: PersonSummary{
			ID:    result.Person.ID,
			Email: result.Person.Email,
			Name:  result.Person.Name,
		},
	})
}

// HandleLogout handles GET /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Logout(ctx, mwauth.TokenFromRequest(r)); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     mwauth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleSetPassword handles PUT /api/people/{id}/password.
func (h *Handler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[PasswordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetPassword(ctx, id, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
