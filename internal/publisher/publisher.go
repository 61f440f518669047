package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/metrics"
	"github.com/leadbridge/ghl-adapter/pkg/logger"
)

// AuthEventPayload is the wire shape of an auth lifecycle event. Token
// material never rides in events; session identity, tenant scope and
// expiry are enough for downstream consumers.
type AuthEventPayload struct {
	ID         uuid.UUID `json:"id"`
	Event      string    `json:"event"`
	SessionID  string    `json:"session_id"`
	LocationID string    `json:"location_id,omitempty"`
	CompanyID  string    `json:"company_id,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher wraps a NATS connection and publishes auth lifecycle events
// over JetStream.
type Publisher struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
	service       string
}

// New creates a new Publisher with JetStream enabled if available.
// subjectPrefix is e.g. "evt.ghl.auth"; event subjects append ".<event>.v1".
func New(nc *nats.Conn, subjectPrefix, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:            nc,
		js:            js,
		subjectPrefix: subjectPrefix,
		service:       service,
	}, nil
}

// AuthEvent implements auth.EventSink. Publish failures are logged and
// counted but never propagated into the token path.
func (p *Publisher) AuthEvent(ctx context.Context, event, sessionID string, rec *auth.Record) {
	payload := AuthEventPayload{
		ID:        uuid.New(),
		Event:     event,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
	if rec != nil {
		payload.LocationID = rec.LocationID
		payload.CompanyID = rec.CompanyID
		payload.ExpiresAt = rec.ExpiresAt
	}

	subject := p.subjectPrefix + "." + event + ".v1"
	if err := p.publish(ctx, subject, sessionID, payload); err != nil {
		logger.S().Warnw("publisher.auth_event_failed",
			"subject", subject,
			"event", event,
			"session", sessionID,
			"error", err,
		)
	}
}

func (p *Publisher) publish(ctx context.Context, subject, sessionID string, payload AuthEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{payload.Event},
			"correlation_id": []string{payload.ID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"session_id":     []string{sessionID},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"event", payload.Event,
	)

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
