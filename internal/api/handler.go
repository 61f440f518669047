package api

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/ghl"
)

// Handler serves the OAuth endpoints and the authenticated proxy routes.
type Handler struct {
	logger  *zap.Logger
	manager *auth.Manager
	store   auth.SessionStore
	client  *ghl.Client
	service *ghl.Service
}

// NewHandler creates a new Handler.
func NewHandler(logger *zap.Logger, manager *auth.Manager, store auth.SessionStore, client *ghl.Client, service *ghl.Service) *Handler {
	return &Handler{
		logger:  logger,
		manager: manager,
		store:   store,
		client:  client,
		service: service,
	}
}

// Index describes the service and where to start the OAuth flow.
func (h *Handler) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "ghl-adapter",
		"login":   "/login",
	})
}

// Login redirects the browser to the hosted consent page.
func (h *Handler) Login(c *fiber.Ctx) error {
	return c.Redirect(h.manager.AuthURL(), fiber.StatusFound)
}

// Callback receives the authorization redirect. Depending on state it
// surfaces the provider error, exchanges the code, refreshes an expired
// session, or just echoes the current grant.
func (h *Handler) Callback(c *fiber.Ctx) error {
	if errParam := c.Query("error"); errParam != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "authorization failed: " + errParam,
		})
	}

	code := c.Query("code")
	redirectLocationID := c.Query("locationId")

	sid := sessionID(c)
	var rec *auth.Record
	if sid != "" {
		var err error
		rec, err = h.store.Get(c.Context(), sid)
		if err != nil {
			h.logger.Error("api.callback.store_failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session lookup failed"})
		}
	}
	hasSession := rec != nil && rec.AccessToken != ""

	switch {
	case !hasSession && code == "":
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no code provided and no valid session exists",
		})

	case !hasSession:
		sid = ensureSessionID(c)
		var err error
		rec, err = h.manager.ExchangeCode(c.Context(), sid, code, redirectLocationID)
		if err != nil {
			return writeAuthError(c, err)
		}

	default:
		if rec.Expired(time.Now()) {
			var err error
			rec, err = h.manager.Refresh(c.Context(), sid)
			if err != nil {
				return writeAuthError(c, err)
			}
		}
	}

	return c.JSON(auth.NewGrant(rec, time.Now()))
}

// refreshRequest is the body of the server-to-server refresh endpoint.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	LocationID   string `json:"location_id"`
}

// RefreshToken performs the refresh grant with a caller-supplied refresh
// token, independent of any session.
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token is required"})
	}

	rec, err := h.manager.RefreshWith(c.Context(), req.RefreshToken, req.LocationID)
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(auth.NewGrant(rec, time.Now()))
}

// proxyGET builds a pass-through handler: resolve the access token, resolve
// any required tenant identifiers, forward the remaining query parameters
// upstream, relay the envelope. Every plain read endpoint is this handler
// with different arguments.
func (h *Handler) proxyGET(op, version, path string, tenants ...tenantField) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := h.resolveToken(c)
		if err != nil {
			return writeAuthError(c, err)
		}

		params := queryParams(c)
		for _, f := range tenants {
			v, err := h.resolveTenant(c, f, nil)
			if err != nil {
				return writeAuthError(c, err)
			}
			params.Del(f.queryKey)
			params.Set(f.upstreamKey, v)
		}

		env := h.client.Get(c.Context(), op, token, version, path, params)
		return writeEnvelope(c, env)
	}
}

// SearchContacts forwards a body-based contact search. The locationId is
// resolved through the full precedence chain and injected into the body.
func (h *Handler) SearchContacts(c *fiber.Ctx) error {
	token, err := h.resolveToken(c)
	if err != nil {
		return writeAuthError(c, err)
	}

	body := map[string]any{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}
	}

	locationID, err := h.resolveTenant(c, locationField("locationId", "locationId"), body)
	if err != nil {
		return writeAuthError(c, err)
	}
	body["locationId"] = locationID

	env := h.client.Post(c.Context(), "contacts_search", token, ghl.VersionDefault, "/contacts/search", body)
	return writeEnvelope(c, env)
}

// ConversationsWithDetails runs the search-then-enrich composite.
func (h *Handler) ConversationsWithDetails(c *fiber.Ctx) error {
	token, err := h.resolveToken(c)
	if err != nil {
		return writeAuthError(c, err)
	}

	locationID, err := h.resolveTenant(c, locationField("locationId", "locationId"), nil)
	if err != nil {
		return writeAuthError(c, err)
	}

	params := queryParams(c)
	params.Set("locationId", locationID)

	env := h.service.ConversationsWithDetails(c.Context(), token, params)
	return writeEnvelope(c, env)
}

// locationSearchKeys are the only query parameters forwarded to the
// location search leg of the search-and-campaigns composite.
var locationSearchKeys = []string{"companyId", "email", "limit", "order", "skip"}

// SearchLocationAndCampaigns searches locations and lists campaigns for
// the first match.
func (h *Handler) SearchLocationAndCampaigns(c *fiber.Ctx) error {
	token, err := h.resolveToken(c)
	if err != nil {
		return writeAuthError(c, err)
	}

	searchParams := url.Values{}
	for _, k := range locationSearchKeys {
		if v := c.Query(k); v != "" {
			searchParams.Set(k, v)
		}
	}

	env := h.service.SearchLocationAndCampaigns(c.Context(), token, searchParams, c.Query("status"))
	return writeEnvelope(c, env)
}

// Profile aggregates location, campaigns and contacts for the resolved
// location.
func (h *Handler) Profile(c *fiber.Ctx) error {
	token, err := h.resolveToken(c)
	if err != nil {
		return writeAuthError(c, err)
	}

	locationID, err := h.resolveTenant(c, locationField("locationId", "locationId"), nil)
	if err != nil {
		return writeAuthError(c, err)
	}

	env := h.service.Profile(c.Context(), token, locationID)
	return writeEnvelope(c, env)
}
