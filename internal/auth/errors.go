package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession means no credential record exists for the session.
	// Every capability requiring auth fails closed in this state.
	ErrNoSession = errors.New("no authorized session")

	// ErrMissingRefreshToken means the stored record cannot self-heal;
	// the caller must re-initiate the authorization-code flow.
	ErrMissingRefreshToken = errors.New("no refresh token stored; re-authorization required")

	// ErrMalformedTokenResponse means the token endpoint answered 2xx but
	// the body was missing access_token or was not valid JSON.
	ErrMalformedTokenResponse = errors.New("token response missing access_token")
)

// UpstreamError is a non-2xx answer from the authorization server.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("authorization server returned %d", e.Status)
}

// NetworkError is a transport-level failure (DNS, connect, timeout) talking
// to the authorization server.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("authorization server unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MissingTenantError means a request could not resolve a required tenant
// identifier through any tier (query param, body field, session).
type MissingTenantError struct {
	Which string // "locationId" or "companyId"
}

func (e *MissingTenantError) Error() string {
	return fmt.Sprintf("no %s found in request or session", e.Which)
}
