package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/leadbridge/ghl-adapter/pkg/secrets"
)

// AppCredentials is the GoHighLevel app registration: the values the proxy
// needs to run the authorization-code and refresh grants.
type AppCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Resolver fetches the app credential set from AWS Secrets Manager, caching
// it locally so token grants never wait on a secrets round trip. The secret
// is a JSON map: {"client_id": ..., "client_secret": ..., "redirect_uri": ...}.
type Resolver struct {
	logger     *zap.Logger
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[AppCredentials]
	secretName string
}

// NewResolver constructs a resolver for the named secret.
func NewResolver(
	logger *zap.Logger,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[AppCredentials],
	secretName string,
) *Resolver {
	return &Resolver{
		logger:     logger,
		provider:   provider,
		cache:      cache,
		secretName: secretName,
	}
}

// Resolve fetches or returns the cached app credentials.
func (r *Resolver) Resolve(ctx context.Context) (AppCredentials, error) {
	if creds, ok := r.cache.Get(r.secretName); ok {
		return creds, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", r.secretName),
			zap.Error(err))
		return AppCredentials{}, fmt.Errorf("resolve app credentials: %w", err)
	}

	creds, err := parseAppCredentials(secretMap)
	if err != nil {
		return AppCredentials{}, fmt.Errorf("parse secret %q: %w", r.secretName, err)
	}

	r.cache.Put(r.secretName, creds)

	r.logger.Info("aws.app_credentials_resolved", zap.String("secret", r.secretName))
	return creds, nil
}

// parseAppCredentials extracts the credential set from the raw secret map.
// redirect_uri may come from the environment instead, so only the client
// pair is required here.
func parseAppCredentials(m map[string]string) (AppCredentials, error) {
	creds := AppCredentials{
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
		RedirectURI:  m["redirect_uri"],
	}
	if creds.ClientID == "" {
		return AppCredentials{}, fmt.Errorf("missing 'client_id' in secret")
	}
	if creds.ClientSecret == "" {
		return AppCredentials{}, fmt.Errorf("missing 'client_secret' in secret")
	}
	return creds, nil
}
