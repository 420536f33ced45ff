package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/session"
)

// Sessions logs users in and out.
type Sessions interface {
	Authenticator
	Login(ctx context.Context, login, password string) (*domain.Session, error)
	Register(ctx context.Context, in session.RegisterInput) (*domain.Session, error)
	Current(ctx context.Context, userID string) (*domain.Session, error)
	Logout(ctx context.Context, userID string) error
}

type AuthHandler struct {
	sessions Sessions
	timeout  time.Duration
}

func NewAuthHandler(sessions Sessions, timeout time.Duration) *AuthHandler {
	return &AuthHandler{sessions: sessions, timeout: timeout}
}

type LoginRequestDTO struct {
	// Login is an email or a username.
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.sessions.Login(ctx, req.Login, req.Password)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type RegisterRequestDTO struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	Avatar    string `json:"avatar" validate:"omitempty,url"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RegisterRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.sessions.Register(ctx, session.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Avatar:    req.Avatar,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.sessions.Current(ctx, getUserID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session.User)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.Logout(ctx, getUserID(r.Context())); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
