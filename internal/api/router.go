/**
 * @description
 * This file sets up the HTTP router for the economy-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// EconomyRoutes creates and returns a new router for the economy service.
func EconomyRoutes(h *EconomyHandlers, jwksURL, issuer, audience, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Routes callable by authenticated application traffic.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL, issuer, audience))

		r.Get("/users/{userID}/earning-stats", h.GetEarningStatsHandler)
		r.Get("/campaigns/{campaignID}/budget", h.GetCampaignBudgetHandler)
		r.Post("/awards/preview", h.PreviewAwardHandler)
		r.Post("/awards", h.CreateAwardHandler)
	})

	// Operator-only routes, guarded by the internal API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Get("/overview", h.PlatformOverviewHandler)
		r.Post("/adjustments", h.ManualAdjustmentHandler)
		r.Post("/campaigns/{campaignID}/emergency-control", h.EmergencyControlHandler)
		r.Post("/campaigns/sweep", h.SweepHandler)
	})

	return r
}
