package handlers

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/wagers", h.PlaceWagerHandler)
			r.Get("/groups/{groupID}/rounds/current", h.CurrentRoundHandler)
			r.Get("/groups/{groupID}/catalog", h.CatalogHandler)
			r.Post("/rounds/{roundID}/cancel", h.CancelRoundHandler)
			r.Get("/rounds/{roundID}/wagers", h.RoundWagersHandler)
			r.Get("/players/{playerID}", h.PlayerHandler)
			r.Get("/players/{playerID}/ledger", h.LedgerHandler)
			r.Post("/players/{playerID}/adjustments", h.AdjustBalanceHandler)
		})
	})
}

func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
}
