package router

import (
	"net/http"
	"strings"

	"github.com/stagepass/backend/internal/auth"
	"github.com/stagepass/backend/internal/dashboard"
	"github.com/stagepass/backend/internal/market"
	"github.com/stagepass/backend/internal/wallet"
)

// New returns an http.Handler that serves the API under /api/v1. Routes
// behind authed require a valid bearer token.
func New(
	authHandler *auth.Handler,
	walletHandler *wallet.Handler,
	marketHandler *market.Handler,
	dashHandler *dashboard.Handler,
	authed func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc(base+"/auth/register", methodPOST(authHandler.Register))
	mux.HandleFunc(base+"/auth/login", methodPOST(authHandler.Login))
	mux.HandleFunc(base+"/ledger", methodGET(dashHandler.LedgerTail))
	mux.HandleFunc(base+"/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	protected := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.Handle(base+"/auth/me", protected(methodGET(authHandler.Me)))
	mux.Handle(base+"/auth/password", protected(methodPOST(authHandler.ChangePassword)))

	mux.Handle(base+"/wallet/topup", protected(methodPOST(walletHandler.TopUp)))
	mux.Handle(base+"/wallet/withdraw", protected(methodPOST(walletHandler.Withdraw)))
	mux.Handle(base+"/wallet/statement", protected(methodGET(walletHandler.Statement)))

	mux.Handle(base+"/events", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			marketHandler.ListEvents(w, r)
		case http.MethodPost:
			marketHandler.CreateEvent(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle(base+"/wholesale/acquire", protected(methodPOST(marketHandler.AcquireWholesale)))
	mux.Handle(base+"/listings", protected(methodPOST(marketHandler.ListForResale)))
	mux.Handle(base+"/market", protected(methodGET(marketHandler.Market)))

	mux.Handle(base+"/cart", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			marketHandler.ViewCart(w, r)
		case http.MethodPost:
			marketHandler.AddToCart(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle(base+"/cart/checkout", protected(methodPOST(marketHandler.Checkout)))
	mux.Handle(base+"/cart/", protected(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && strings.Count(r.URL.Path, "/") >= 4 {
			marketHandler.RemoveFromCart(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}))

	mux.Handle(base+"/orders", protected(methodGET(marketHandler.Orders)))
	mux.Handle(base+"/orders/", protected(methodGET(marketHandler.OrderDetail)))

	mux.Handle(base+"/dashboard", protected(methodGET(dashHandler.Overview)))
	mux.Handle(base+"/staff", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dashHandler.ListStaff(w, r)
		case http.MethodPost:
			dashHandler.CreateStaff(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle(base+"/staff/", protected(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/toggle"):
			dashHandler.ToggleStaff(w, r)
		case r.Method == http.MethodDelete:
			dashHandler.DeleteStaff(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	return mux
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodPOST(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
