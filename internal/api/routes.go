package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/ghl"
)

func RegisterRoutes(app *fiber.App, h *Handler, st auth.SessionStore) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"session_store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["session_store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	// OAuth flow
	app.Get("/", h.Index)
	app.Get("/login", h.Login)
	app.Get("/callback", h.Callback)
	app.Post("/oauth/refresh", h.RefreshToken)

	// Proxy routes (paths preserved from the service this replaces)
	app.Get("/search_locations",
		h.proxyGET("locations_search", ghl.VersionDefault, "/locations/search"))
	app.Get("/get_campaigns",
		h.proxyGET("campaigns", ghl.VersionDefault, "/campaigns",
			locationField("locationId", "locationId")))
	app.Get("/get_opportunities",
		h.proxyGET("opportunities_search", ghl.VersionDefault, "/opportunities/search",
			locationField("location_id", "location_id")))
	app.Get("/get_pipelines",
		h.proxyGET("pipelines", ghl.VersionDefault, "/opportunities/pipelines",
			locationField("locationId", "locationId")))
	app.Get("/get_users",
		h.proxyGET("users_search", ghl.VersionDefault, "/users/search",
			companyField(),
			locationField("locationId", "locationId")))

	// Body-based search; GET kept for callers of the old service
	app.Post("/search_contacts", h.SearchContacts)
	app.Get("/search_contacts", h.SearchContacts)

	// Composites
	app.Get("/get_conversations_with_details", h.ConversationsWithDetails)
	app.Get("/search_location_and_get_campaigns", h.SearchLocationAndCampaigns)
	app.Get("/profile", h.Profile)
}
