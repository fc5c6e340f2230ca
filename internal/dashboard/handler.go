package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/stagepass/backend/internal/auth"
	"github.com/stagepass/backend/internal/middleware"
	"github.com/stagepass/backend/internal/models"
	"github.com/stagepass/backend/internal/repository"
	"github.com/stagepass/backend/internal/services"
	"github.com/stagepass/backend/internal/wallet"
)

const ledgerTailLimit = 50

type Handler struct {
	accountSvc *services.AccountService
	eventR     *repository.EventRepo
	ticketR    *repository.TicketRepo
	ledgerR    *repository.LedgerRepo
	log        *slog.Logger
}

func NewHandler(accountSvc *services.AccountService, eventR *repository.EventRepo, ticketR *repository.TicketRepo, ledgerR *repository.LedgerRepo, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accountSvc: accountSvc, eventR: eventR, ticketR: ticketR, ledgerR: ledgerR, log: log}
}

type CreateStaffRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// POST /api/v1/staff
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req CreateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}
	created, err := h.accountSvc.CreateStaff(r.Context(), acc, req.Username, req.Password, role)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "create staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, auth.AccountToResponse(created))
}

// GET /api/v1/staff
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	staff, err := h.accountSvc.Staff(r.Context(), acc)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "list staff", err)
		return
	}
	out := make([]auth.AccountResponse, 0, len(staff))
	for _, s := range staff {
		out = append(out, auth.AccountToResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/v1/staff/{address}/toggle
func (h *Handler) ToggleStaff(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	address := pathSegment(r.URL.Path, 1)
	target, err := h.accountSvc.ToggleActive(r.Context(), acc, address)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "toggle staff", err)
		return
	}
	writeJSON(w, http.StatusOK, auth.AccountToResponse(target))
}

// DELETE /api/v1/staff/{address}
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	address := pathSegment(r.URL.Path, 0)
	if err := h.accountSvc.Delete(r.Context(), acc, address); err != nil {
		wallet.WriteServiceError(w, h.log, "delete staff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/dashboard serves the role-specific overview: organizers see
// per-event supply and sales, resellers and customers their holdings.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	resp := map[string]any{
		"account": auth.AccountToResponse(acc),
	}
	switch acc.Role {
	case models.RoleAdmin:
		staff, err := h.accountSvc.Staff(r.Context(), acc)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		roster := make([]auth.AccountResponse, 0, len(staff))
		for _, s := range staff {
			roster = append(roster, auth.AccountToResponse(s))
		}
		resp["organizers"] = roster
	case models.RoleOrganizer:
		events, err := h.eventR.ListByOrganizer(r.Context(), acc.Address)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		stats, err := h.ticketR.SupplyStats(r.Context(), acc.Address)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		staff, err := h.accountSvc.Staff(r.Context(), acc)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		roster := make([]auth.AccountResponse, 0, len(staff))
		for _, s := range staff {
			roster = append(roster, auth.AccountToResponse(s))
		}
		resp["events"] = events
		resp["supply"] = stats
		resp["resellers"] = roster
	case models.RoleReseller:
		holdings, err := h.ticketR.HoldingsByOwner(r.Context(), acc.Address)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		listings, err := h.ticketR.ListedInventory(r.Context(), acc.Address)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		resp["holdings"] = holdings
		resp["listings"] = listings
		if acc.ParentAddress != nil {
			events, err := h.eventR.ListByOrganizer(r.Context(), *acc.ParentAddress)
			if err != nil {
				wallet.WriteServiceError(w, h.log, "dashboard", err)
				return
			}
			resp["events"] = events
		}
	default:
		holdings, err := h.ticketR.HoldingsByOwner(r.Context(), acc.Address)
		if err != nil {
			wallet.WriteServiceError(w, h.log, "dashboard", err)
			return
		}
		resp["holdings"] = holdings
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/ledger is the public tail of the ledger, newest first.
func (h *Handler) LedgerTail(w http.ResponseWriter, r *http.Request) {
	limit := ledgerTailLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.ledgerR.Tail(r.Context(), limit)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "ledger tail", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet.EntriesToResponse(entries))
}

// pathSegment returns the nth path segment counting back from the end.
func pathSegment(path string, fromEnd int) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	idx := len(parts) - 1 - fromEnd
	if idx < 0 {
		return ""
	}
	return parts[idx]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
