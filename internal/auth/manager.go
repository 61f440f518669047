package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadbridge/ghl-adapter/internal/metrics"
)

const (
	// expirySafetyMargin is subtracted from the server-declared lifetime so
	// we never race the authorization server's own clock.
	expirySafetyMargin = 30 * time.Second

	// defaultExpiresIn applies when the token response omits expires_in.
	defaultExpiresIn = 3600
)

// scopes requested on the consent page. All read-only.
var scopes = []string{
	"locations.readonly",
	"campaigns.readonly",
	"users.readonly",
	"conversations.readonly",
	"contacts.readonly",
	"opportunities.readonly",
}

// Config carries the registered app credentials and endpoint URLs.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthBaseURL  string
	TokenURL     string
}

// Manager owns the OAuth2 exchange and refresh calls against the
// authorization server and guarantees that a caller asking for a valid
// access token either gets one or gets a typed failure, never a stale or
// empty token. Refresh is lazy: it happens on demand, at most once per
// expired access, with concurrent accesses to one session collapsed behind
// a per-session lock.
type Manager struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client
	store  SessionStore
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // sessionID → refresh serialization lock

	events EventSink     // optional
	audit  GrantRecorder // optional
}

// NewManager constructs the token lifecycle manager.
func NewManager(logger *zap.Logger, cfg Config, store SessionStore) *Manager {
	return &Manager{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		store:  store,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetEventSink attaches an optional lifecycle event sink.
func (m *Manager) SetEventSink(sink EventSink) { m.events = sink }

// SetGrantRecorder attaches an optional grant audit recorder.
func (m *Manager) SetGrantRecorder(rec GrantRecorder) { m.audit = rec }

// AuthURL returns the hosted consent page URL the browser is redirected to.
func (m *Manager) AuthURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", m.cfg.ClientID)
	q.Set("redirect_uri", m.cfg.RedirectURI)
	q.Set("scope", strings.Join(scopes, " "))
	return m.cfg.AuthBaseURL + "?" + q.Encode()
}

// ExchangeCode performs the authorization_code grant and replaces the
// session's credential record wholesale. An explicit locationId from the
// authorization redirect wins over the one embedded in the token response.
func (m *Manager) ExchangeCode(ctx context.Context, sessionID, code, redirectLocationID string) (*Record, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}

	lk := m.sessionLock(sessionID)
	lk.Lock()
	defer lk.Unlock()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {m.cfg.RedirectURI},
	}

	tr, err := m.requestToken(ctx, form)
	if err != nil {
		metrics.IncTokenGrant("authorization_code", "error")
		m.logger.Error("auth.exchange_failed", zap.String("session", sessionID), zap.Error(err))
		return nil, err
	}

	locationID := redirectLocationID
	if locationID == "" {
		locationID = tr.LocationID
	}

	rec := &Record{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expirySafetyMargin),
		LocationID:   locationID,
		CompanyID:    tr.CompanyID,
	}

	if err := m.store.Put(ctx, sessionID, rec); err != nil {
		return nil, fmt.Errorf("store credential record: %w", err)
	}

	metrics.IncTokenGrant("authorization_code", "ok")
	m.recordGrant(ctx, sessionID, "authorization_code", rec)
	m.emit(ctx, EventGrantIssued, sessionID, rec)

	m.logger.Info("auth.grant_issued",
		zap.String("session", sessionID),
		zap.String("location_id", rec.LocationID),
		zap.String("company_id", rec.CompanyID),
		zap.Time("expires_at", rec.ExpiresAt))

	return rec, nil
}

// GetValidAccessToken returns a currently-valid access token for the
// session, refreshing first when the stored one has expired. The caller
// blocks for the duration of any refresh.
func (m *Manager) GetValidAccessToken(ctx context.Context, sessionID string) (string, error) {
	lk := m.sessionLock(sessionID)
	lk.Lock()
	defer lk.Unlock()

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.AccessToken == "" {
		return "", ErrNoSession
	}
	if !rec.Expired(m.now()) {
		return rec.AccessToken, nil
	}

	rec, err = m.refreshLocked(ctx, sessionID, rec)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// Refresh forces a refresh_token grant for the session and updates the
// stored record in place.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (*Record, error) {
	lk := m.sessionLock(sessionID)
	lk.Lock()
	defer lk.Unlock()

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.AccessToken == "" {
		return nil, ErrNoSession
	}
	return m.refreshLocked(ctx, sessionID, rec)
}

// RefreshWith performs a refresh_token grant with a caller-supplied refresh
// token, independent of any session. Nothing is stored; the result is
// handed straight back.
func (m *Manager) RefreshWith(ctx context.Context, refreshToken, locationID string) (*Record, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	tr, err := m.requestToken(ctx, m.refreshForm(refreshToken))
	if err != nil {
		metrics.IncTokenGrant("refresh_token", "error")
		return nil, err
	}

	if locationID == "" {
		locationID = tr.LocationID
	}

	rec := &Record{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expirySafetyMargin),
		LocationID:   locationID,
		CompanyID:    tr.CompanyID,
	}
	if rec.RefreshToken == "" {
		// Providers that do not rotate keep the token the caller already has.
		rec.RefreshToken = refreshToken
	}

	metrics.IncTokenGrant("refresh_token", "ok")
	return rec, nil
}

// refreshLocked performs the refresh grant for an existing record. The
// session lock must be held. Tenant identifiers and the refresh token are
// preserved unless the response supplies replacements.
func (m *Manager) refreshLocked(ctx context.Context, sessionID string, rec *Record) (*Record, error) {
	if rec.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	tr, err := m.requestToken(ctx, m.refreshForm(rec.RefreshToken))
	if err != nil {
		metrics.IncTokenGrant("refresh_token", "error")
		m.emit(ctx, EventRefreshFailed, sessionID, rec)
		m.logger.Warn("auth.refresh_failed", zap.String("session", sessionID), zap.Error(err))
		return nil, err
	}

	rec.AccessToken = tr.AccessToken
	rec.ExpiresAt = m.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expirySafetyMargin)
	if tr.RefreshToken != "" {
		rec.RefreshToken = tr.RefreshToken
	}
	if tr.LocationID != "" {
		rec.LocationID = tr.LocationID
	}
	if tr.CompanyID != "" {
		rec.CompanyID = tr.CompanyID
	}

	if err := m.store.Put(ctx, sessionID, rec); err != nil {
		return nil, fmt.Errorf("store credential record: %w", err)
	}

	metrics.IncTokenGrant("refresh_token", "ok")
	m.recordGrant(ctx, sessionID, "refresh_token", rec)
	m.emit(ctx, EventTokenRefreshed, sessionID, rec)

	m.logger.Info("auth.token_refreshed",
		zap.String("session", sessionID),
		zap.Time("expires_at", rec.ExpiresAt))

	return rec, nil
}

func (m *Manager) refreshForm(refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
	}
}

// requestToken POSTs a form-encoded grant request to the token endpoint and
// parses the response. No retries: a failed grant is reported immediately.
func (m *Manager) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err)
	}
	if tr.AccessToken == "" {
		return nil, ErrMalformedTokenResponse
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = defaultExpiresIn
	}
	return &tr, nil
}

// sessionLock returns the mutex serializing grant operations for a session,
// so two requests that both observe an expired token trigger one refresh.
func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.locks[sessionID]
	if !ok {
		lk = &sync.Mutex{}
		m.locks[sessionID] = lk
	}
	return lk
}

func (m *Manager) emit(ctx context.Context, event, sessionID string, rec *Record) {
	if m.events == nil {
		return
	}
	m.events.AuthEvent(ctx, event, sessionID, rec)
}

func (m *Manager) recordGrant(ctx context.Context, sessionID, grantType string, rec *Record) {
	if m.audit == nil {
		return
	}
	if err := m.audit.RecordGrant(ctx, sessionID, grantType, rec); err != nil {
		m.logger.Warn("auth.audit_write_failed", zap.String("session", sessionID), zap.Error(err))
	}
}
