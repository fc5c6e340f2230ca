package market

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagepass/backend/internal/middleware"
	"github.com/stagepass/backend/internal/models"
	"github.com/stagepass/backend/internal/repository"
	"github.com/stagepass/backend/internal/services"
	"github.com/stagepass/backend/internal/wallet"
)

type Handler struct {
	transfers *services.TransferService
	eventR    *repository.EventRepo
	ticketR   *repository.TicketRepo
	ledgerR   *repository.LedgerRepo
	log       *slog.Logger
}

func NewHandler(transfers *services.TransferService, eventR *repository.EventRepo, ticketR *repository.TicketRepo, ledgerR *repository.LedgerRepo, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{transfers: transfers, eventR: eventR, ticketR: ticketR, ledgerR: ledgerR, log: log}
}

type CreateEventRequest struct {
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Date           string `json:"date"`
	WholesaleCents int64  `json:"wholesale_cents"`
	MaxResaleCents int64  `json:"max_resale_cents"`
	Supply         int    `json:"supply"`
}

type EventResponse struct {
	ID               int64     `json:"id"`
	OrganizerAddress string    `json:"organizer_address"`
	Name             string    `json:"name"`
	Symbol           string    `json:"symbol"`
	Date             string    `json:"date"`
	WholesaleCents   int64     `json:"wholesale_cents"`
	MaxResaleCents   int64     `json:"max_resale_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

// POST /api/v1/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Symbol == "" || req.Date == "" {
		http.Error(w, "missing name, symbol or date", http.StatusBadRequest)
		return
	}
	ev, err := h.transfers.CreateEvent(r.Context(), acc, req.Name, req.Symbol, req.Date, req.WholesaleCents, req.MaxResaleCents, req.Supply)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, eventToResponse(ev))
}

// GET /api/v1/events lists the events issued by the caller's organizer:
// their own for organizers, the parent's for resellers.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	organizer := acc.Address
	if acc.Role == models.RoleReseller && acc.ParentAddress != nil {
		organizer = *acc.ParentAddress
	}
	events, err := h.eventR.ListByOrganizer(r.Context(), organizer)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "list events", err)
		return
	}
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventToResponse(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

type AcquireRequest struct {
	EventID  int64 `json:"event_id"`
	Quantity int   `json:"quantity"`
}

// POST /api/v1/wholesale/acquire
func (h *Handler) AcquireWholesale(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	orderID, err := h.transfers.AcquireWholesale(r.Context(), acc, req.EventID, req.Quantity)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "wholesale acquire", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID.String()})
}

type ListRequest struct {
	EventID    int64 `json:"event_id"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

// POST /api/v1/listings
func (h *Handler) ListForResale(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	listed, err := h.transfers.ListForResale(r.Context(), acc, req.EventID, req.Quantity, req.PriceCents)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "list for resale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requested": req.Quantity,
		"listed":    listed,
	})
}

type MarketListingResponse struct {
	EventID        int64  `json:"event_id"`
	EventName      string `json:"event_name"`
	Symbol         string `json:"symbol"`
	Date           string `json:"date"`
	MaxResaleCents int64  `json:"max_resale_cents"`
	SellerAddress  string `json:"seller_address"`
	PriceCents     int64  `json:"price_cents"`
	Available      int    `json:"available"`
}

// GET /api/v1/market
func (h *Handler) Market(w http.ResponseWriter, r *http.Request) {
	listings, err := h.ticketR.MarketListings(r.Context())
	if err != nil {
		wallet.WriteServiceError(w, h.log, "market view", err)
		return
	}
	out := make([]MarketListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, MarketListingResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

type CartLineRequest struct {
	EventID        int64  `json:"event_id"`
	SellerAddress  string `json:"seller_address"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

type CartLineResponse struct {
	ID             int64  `json:"id"`
	EventID        int64  `json:"event_id"`
	SellerAddress  string `json:"seller_address"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// POST /api/v1/cart
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	var req CartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.SellerAddress == "" {
		http.Error(w, "missing seller_address", http.StatusBadRequest)
		return
	}
	line, err := h.transfers.AddCartLine(r.Context(), acc, req.EventID, req.SellerAddress, req.UnitPriceCents, req.Quantity)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "add to cart", err)
		return
	}
	writeJSON(w, http.StatusCreated, cartLineToResponse(line))
}

// GET /api/v1/cart
func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	lines, total, err := h.transfers.CartContents(r.Context(), acc)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "view cart", err)
		return
	}
	out := make([]CartLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLineToResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines":       out,
		"total_cents": total,
	})
}

// DELETE /api/v1/cart/{id}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	idStr := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid cart line id", http.StatusBadRequest)
		return
	}
	if err := h.transfers.RemoveCartLine(r.Context(), acc, id); err != nil {
		wallet.WriteServiceError(w, h.log, "remove from cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/cart/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	orderID, total, err := h.transfers.Checkout(r.Context(), acc)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":    orderID.String(),
		"total_cents": total,
	})
}

type OrderResponse struct {
	OrderID    string    `json:"order_id"`
	EventLabel string    `json:"event_label"`
	Units      int       `json:"units"`
	TotalCents int64     `json:"total_cents"`
	PlacedAt   time.Time `json:"placed_at"`
}

// GET /api/v1/orders
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	orders, err := h.ledgerR.OrdersByBuyer(r.Context(), acc.Address)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "orders", err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderResponse{
			OrderID:    o.TxID.String(),
			EventLabel: o.EventLabel,
			Units:      o.Units,
			TotalCents: o.TotalCents,
			PlacedAt:   o.PlacedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/v1/orders/{id} returns the per-unit entries of one order.
func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	idStr := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	orderID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	entries, err := h.ledgerR.ListByTxID(r.Context(), orderID)
	if err != nil {
		wallet.WriteServiceError(w, h.log, "order detail", err)
		return
	}
	// Only a party to the order may read it.
	visible := false
	for _, e := range entries {
		if e.FromAddress == acc.Address || e.ToAddress == acc.Address {
			visible = true
			break
		}
	}
	if !visible {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wallet.EntriesToResponse(entries))
}

func eventToResponse(ev *models.Event) EventResponse {
	return EventResponse{
		ID:               ev.ID,
		OrganizerAddress: ev.OrganizerAddress,
		Name:             ev.Name,
		Symbol:           ev.Symbol,
		Date:             ev.Date,
		WholesaleCents:   ev.WholesaleCents,
		MaxResaleCents:   ev.MaxResaleCents,
		CreatedAt:        ev.CreatedAt,
	}
}

func cartLineToResponse(l *models.CartLine) CartLineResponse {
	return CartLineResponse{
		ID:             l.ID,
		EventID:        l.EventID,
		SellerAddress:  l.SellerAddress,
		UnitPriceCents: l.UnitPriceCents,
		Quantity:       l.Quantity,
		SubtotalCents:  l.SubtotalCents(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
