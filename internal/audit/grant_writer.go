package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/leadbridge/ghl-adapter/internal/auth"
)

// GrantWriter records every issued token grant into auth.token_grant. It
// stores tenant identifiers and expiry, never token material. A nil pool
// turns every write into a no-op so the audit log stays optional.
type GrantWriter struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	source string
}

// NewGrantWriter constructs a writer. source identifies the service
// instance writing the record (e.g. "ghl-adapter").
func NewGrantWriter(db *pgxpool.Pool, logger *zap.Logger, source string) *GrantWriter {
	return &GrantWriter{
		db:     db,
		logger: logger,
		source: source,
	}
}

// RecordGrant inserts one audit row for an issued grant.
func (w *GrantWriter) RecordGrant(ctx context.Context, sessionID, grantType string, rec *auth.Record) error {
	if w.db == nil || rec == nil {
		return nil
	}

	const query = `
		INSERT INTO auth.token_grant (
			s_id_session,
			s_grant_type,
			s_id_location,
			s_id_company,
			dt_expires,
			s_source,
			dt_recorded
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW());
	`

	_, err := w.db.Exec(ctx, query,
		sessionID,      // s_id_session
		grantType,      // s_grant_type
		rec.LocationID, // s_id_location
		rec.CompanyID,  // s_id_company
		rec.ExpiresAt,  // dt_expires
		w.source,       // s_source
	)
	if err != nil {
		w.logger.Error("audit.grant_insert_failed",
			zap.String("session", sessionID),
			zap.String("grant", grantType),
			zap.Error(err))
	}
	return err
}
