package wallet

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/stagepass/backend/internal/authz"
	"github.com/stagepass/backend/internal/middleware"
	"github.com/stagepass/backend/internal/models"
	"github.com/stagepass/backend/internal/repository"
	"github.com/stagepass/backend/internal/services"
)

type Handler struct {
	transfers *services.TransferService
	ledgerR   *repository.LedgerRepo
	log       *slog.Logger
}

func NewHandler(transfers *services.TransferService, ledgerR *repository.LedgerRepo, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{transfers: transfers, ledgerR: ledgerR, log: log}
}

type MovementRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type BalanceResponse struct {
	BalanceCents int64 `json:"balance_cents"`
}

// POST /api/v1/wallet/topup
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	balance, err := h.transfers.TopUp(r.Context(), acc, req.AmountCents)
	if err != nil {
		h.fail(w, "topup", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{BalanceCents: balance})
}

// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	balance, err := h.transfers.Withdraw(r.Context(), acc, req.AmountCents)
	if err != nil {
		h.fail(w, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{BalanceCents: balance})
}

type EntryResponse struct {
	ID          int64     `json:"id"`
	TxID        string    `json:"tx_id"`
	TicketID    *int64    `json:"ticket_id,omitempty"`
	EventLabel  string    `json:"event_label"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	AmountCents int64     `json:"amount_cents"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// GET /api/v1/wallet/statement
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	entries, err := h.ledgerR.ListByAddress(r.Context(), acc.Address)
	if err != nil {
		h.fail(w, "statement", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":       acc.Address,
		"balance_cents": acc.BalanceCents,
		"entries":       EntriesToResponse(entries),
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	WriteServiceError(w, h.log, op, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteServiceError maps transfer-engine errors onto HTTP statuses. Shared
// by the market and dashboard handlers so every surface reports the same
// way.
func WriteServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	var denial *authz.Denial
	switch {
	case errors.As(err, &denial):
		http.Error(w, denial.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrDuplicateUsername),
		errors.Is(err, services.ErrDeleteBlocked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrWeakPassword):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error(op+" failed", "error", err)
		http.Error(w, op+" failed", http.StatusInternalServerError)
	}
}

func EntriesToResponse(entries []*models.LedgerEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:          e.ID,
			TxID:        e.TxID.String(),
			TicketID:    e.TicketID,
			EventLabel:  e.EventLabel,
			FromAddress: e.FromAddress,
			ToAddress:   e.ToAddress,
			AmountCents: e.AmountCents,
			Kind:        e.Kind,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
