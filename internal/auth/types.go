package auth

import (
	"context"
	"time"
)

// Record is the credential set for one logical session: bearer tokens, the
// tenant identifiers they are scoped to, and the absolute expiry instant.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	LocationID   string    `json:"location_id,omitempty"`
	CompanyID    string    `json:"company_id,omitempty"`
}

// Expired reports whether the access token must be treated as invalid at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ExpiresIn returns the remaining validity in whole seconds, floored at zero.
func (r *Record) ExpiresIn(now time.Time) int64 {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}

// Grant is the envelope returned by the callback and refresh endpoints.
type Grant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	LocationID   string `json:"location_id"`
	CompanyID    string `json:"company_id"`
}

// NewGrant builds the caller-facing envelope from a stored record.
func NewGrant(r *Record, now time.Time) *Grant {
	return &Grant{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn(now),
		TokenType:    "bearer",
		LocationID:   r.LocationID,
		CompanyID:    r.CompanyID,
	}
}

// tokenResponse is the wire shape of the GoHighLevel token endpoint. The
// tenant identifiers ride on the token response, not in the JWT.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	LocationID   string `json:"locationId"`
	CompanyID    string `json:"companyId"`
}

// SessionStore maps session IDs to credential records. Implementations live
// in internal/store; Get returns (nil, nil) when no record exists.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*Record, error)
	Put(ctx context.Context, sessionID string, rec *Record) error
	Delete(ctx context.Context, sessionID string) error
	HealthCheck(ctx context.Context) error
}

// EventSink receives auth lifecycle notifications. Implementations must not
// block the token path; failures are theirs to log.
type EventSink interface {
	AuthEvent(ctx context.Context, event, sessionID string, rec *Record)
}

// GrantRecorder persists an audit row for every issued grant.
type GrantRecorder interface {
	RecordGrant(ctx context.Context, sessionID, grantType string, rec *Record) error
}

// Lifecycle event names emitted through the EventSink.
const (
	EventGrantIssued    = "grant_issued"
	EventTokenRefreshed = "token_refreshed"
	EventRefreshFailed  = "refresh_failed"
)
