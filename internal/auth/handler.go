package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stagepass/backend/internal/middleware"
	"github.com/stagepass/backend/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type AccountResponse struct {
	Address      string `json:"address"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	BalanceCents int64  `json:"balance_cents"`
	IsActive     bool   `json:"is_active"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "missing username or password", http.StatusBadRequest)
		return
	}
	acc, err := h.svc.RegisterCustomer(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateUsername):
			http.Error(w, "username already taken", http.StatusConflict)
		case errors.Is(err, ErrWeakPassword):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error("register failed", "error", err)
			http.Error(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(AccountToResponse(acc))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "missing username or password", http.StatusBadRequest)
		return
	}
	token, acc, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredential):
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, ErrAccountSuspended):
			http.Error(w, "account suspended", http.StatusForbidden)
		default:
			h.log.Error("login failed", "error", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{Token: token, Account: AccountToResponse(acc)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(AccountToResponse(acc))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), acc, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredential):
			http.Error(w, "current password is wrong", http.StatusUnauthorized)
		case errors.Is(err, ErrWeakPassword):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error("change password failed", "error", err)
			http.Error(w, "change password failed", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func AccountToResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		Address:      a.Address,
		Username:     a.Username,
		Role:         string(a.Role),
		BalanceCents: a.BalanceCents,
		IsActive:     a.IsActive,
	}
}
