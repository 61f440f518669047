package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/ghl"
)

// writeEnvelope relays a normalized upstream envelope to the caller.
func writeEnvelope(c *fiber.Ctx, env *ghl.Envelope) error {
	return c.Status(env.Status).JSON(env.Body)
}

// errorStatus maps the auth error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	var tenantErr *auth.MissingTenantError
	if errors.As(err, &tenantErr) {
		return fiber.StatusBadRequest
	}
	if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrMissingRefreshToken) {
		return fiber.StatusUnauthorized
	}
	var upstreamErr *auth.UpstreamError
	if errors.As(err, &upstreamErr) {
		if upstreamErr.Status >= 400 {
			return upstreamErr.Status
		}
		return fiber.StatusBadGateway
	}
	var netErr *auth.NetworkError
	if errors.As(err, &netErr) {
		return fiber.StatusBadGateway
	}
	if errors.Is(err, auth.ErrMalformedTokenResponse) {
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// writeAuthError shapes a lifecycle/tenant failure into the error envelope.
// Upstream rejections keep the raw authorization-server body in detail.
func writeAuthError(c *fiber.Ctx, err error) error {
	resp := fiber.Map{"error": err.Error()}
	var upstreamErr *auth.UpstreamError
	if errors.As(err, &upstreamErr) {
		resp["detail"] = upstreamErr.Body
		resp["status_code"] = upstreamErr.Status
	}
	return c.Status(errorStatus(err)).JSON(resp)
}
