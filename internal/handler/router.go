package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/giftfutures/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if len(h.opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.opts.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/markets", h.GetMarkets)
		r.Post("/ton/webhook", h.TonWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.GetMe)
			r.Post("/me/wallet", h.ConnectWallet)
			r.Delete("/me/wallet", h.DisconnectWallet)
			r.Get("/me/balances", h.GetBalances)
			r.Get("/me/ledger", h.GetLedger)
			r.Get("/me/deposit-instruction", h.GetDepositInstruction)
			r.Post("/me/withdraw", h.Withdraw)
			r.Get("/me/withdrawals", h.GetWithdrawals)

			r.Get("/futures/offers", h.ListOffers)
			r.Post("/futures/offers", h.CreateOffer)
			r.Post("/futures/offers/{id}/take", h.TakeOffer)
			r.Get("/futures/{id}", h.GetContract)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommiddleware.AdminMiddleware(h.opts.AdminToken))

			r.Post("/balances/adjust", h.AdjustBalance)
			r.Patch("/gifts/{id}", h.ToggleGift)
			r.Patch("/expiries/{id}", h.ToggleExpiry)
			r.Patch("/markets/{id}", h.ToggleMarket)
			r.Post("/markets/prices/bulk", h.BulkUpdatePrices)
			r.Post("/futures/{id}/settle", h.SettleContract)
			r.Post("/futures/{id}/liquidate", h.LiquidateContract)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
