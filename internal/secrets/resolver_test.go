package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	pkgsecrets "github.com/leadbridge/ghl-adapter/pkg/secrets"
)

// fakeProvider serves canned secrets and counts fetches.
type fakeProvider struct {
	secrets map[string]map[string]string
	err     error
	calls   int
}

func (f *fakeProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.secrets[key]
	if !ok {
		return nil, errors.New("secret not found")
	}
	return m, nil
}

func (f *fakeProvider) ListSecrets(context.Context, string) ([]string, error) {
	return nil, nil
}

func newTestResolver(p pkgsecrets.Provider) *Resolver {
	cache := pkgsecrets.NewCache[AppCredentials](time.Minute)
	return NewResolver(zap.NewNop(), p, cache, "prod/ghl/app")
}

func TestResolver_Resolve(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/ghl/app": {
			"client_id":     "cid-1",
			"client_secret": "sec-1",
			"redirect_uri":  "https://example.com/callback",
		},
	}}
	r := newTestResolver(p)

	creds, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if creds.ClientID != "cid-1" {
		t.Errorf("expected client id cid-1, got %s", creds.ClientID)
	}
	if creds.RedirectURI != "https://example.com/callback" {
		t.Errorf("unexpected redirect uri: %s", creds.RedirectURI)
	}
}

func TestResolver_CachesAcrossCalls(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/ghl/app": {"client_id": "cid-1", "client_secret": "sec-1"},
	}}
	r := newTestResolver(p)

	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 provider fetch, got %d", p.calls)
	}
}

func TestResolver_RedirectURIOptional(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/ghl/app": {"client_id": "cid-1", "client_secret": "sec-1"},
	}}
	r := newTestResolver(p)

	creds, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if creds.RedirectURI != "" {
		t.Errorf("expected empty redirect uri, got %s", creds.RedirectURI)
	}
}

func TestResolver_MissingRequiredField(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/ghl/app": {"client_id": "cid-1"},
	}}
	r := newTestResolver(p)

	if _, err := r.Resolve(context.Background()); err == nil {
		t.Fatal("expected error for missing client_secret")
	}
}

func TestResolver_ProviderFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("aws unavailable")}
	r := newTestResolver(p)

	if _, err := r.Resolve(context.Background()); err == nil {
		t.Fatal("expected error when provider fails")
	}
	if p.calls != 1 {
		t.Errorf("expected 1 provider fetch, got %d", p.calls)
	}
}
