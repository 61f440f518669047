package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/leadbridge/ghl-adapter/internal/auth"
)

// --- mock types ---

// mockJetStream implements a minimal JetStreamContext for testing
type mockJetStream struct {
	published []*nats.Msg
	fail      bool
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.published = append(m.published, msg)
	return &nats.PubAck{Stream: "mock-stream"}, nil
}

// Implement remaining JetStreamContext interface methods as no-ops for testing
func (m *mockJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	return nil, nil
}
func (m *mockJetStream) PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error) {
	return nil, nil
}
func (m *mockJetStream) PublishMsgAsync(msg *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error) {
	return nil, nil
}
func (m *mockJetStream) PublishAsyncPending() int { return 0 }
func (m *mockJetStream) PublishAsyncComplete() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockJetStream) CleanupPublisher() {}
func (m *mockJetStream) Subscribe(subj string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) SubscribeSync(subj string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) ChanSubscribe(subj string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) ChanQueueSubscribe(subj, queue string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) QueueSubscribe(subj, queue string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) QueueSubscribeSync(subj, queue string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) PullSubscribe(subj, durable string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	return nil, nil
}
func (m *mockJetStream) UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteStream(name string, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	return nil, nil
}
func (m *mockJetStream) Streams(opts ...nats.JSOpt) <-chan *nats.StreamInfo {
	ch := make(chan *nats.StreamInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) PurgeStream(name string, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) StreamsInfo(opts ...nats.JSOpt) <-chan *nats.StreamInfo {
	ch := make(chan *nats.StreamInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) StreamNames(opts ...nats.JSOpt) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) GetMsg(name string, seq uint64, opts ...nats.JSOpt) (*nats.RawStreamMsg, error) {
	return nil, nil
}
func (m *mockJetStream) GetLastMsg(name, subj string, opts ...nats.JSOpt) (*nats.RawStreamMsg, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteMsg(name string, seq uint64, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) SecureDeleteMsg(name string, seq uint64, opts ...nats.JSOpt) error {
	return nil
}
func (m *mockJetStream) AddConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	return nil, nil
}
func (m *mockJetStream) UpdateConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteConsumer(stream, consumer string, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) ConsumerInfo(stream, name string, opts ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	return nil, nil
}
func (m *mockJetStream) Consumers(stream string, opts ...nats.JSOpt) <-chan *nats.ConsumerInfo {
	ch := make(chan *nats.ConsumerInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) ConsumersInfo(stream string, opts ...nats.JSOpt) <-chan *nats.ConsumerInfo {
	ch := make(chan *nats.ConsumerInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) ConsumerNames(stream string, opts ...nats.JSOpt) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) AccountInfo(opts ...nats.JSOpt) (*nats.AccountInfo, error) { return nil, nil }
func (m *mockJetStream) StreamNameBySubject(string, ...nats.JSOpt) (string, error) { return "", nil }
func (m *mockJetStream) KeyValue(bucket string) (nats.KeyValue, error)             { return nil, nil }
func (m *mockJetStream) CreateKeyValue(cfg *nats.KeyValueConfig) (nats.KeyValue, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteKeyValue(bucket string) error { return nil }
func (m *mockJetStream) KeyValueStoreNames() <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) KeyValueStores() <-chan nats.KeyValueStatus {
	ch := make(chan nats.KeyValueStatus)
	close(ch)
	return ch
}
func (m *mockJetStream) ObjectStore(bucket string) (nats.ObjectStore, error) { return nil, nil }
func (m *mockJetStream) CreateObjectStore(cfg *nats.ObjectStoreConfig) (nats.ObjectStore, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteObjectStore(bucket string) error { return nil }
func (m *mockJetStream) ObjectStoreNames(opts ...nats.ObjectOpt) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) ObjectStores(opts ...nats.ObjectOpt) <-chan nats.ObjectStoreStatus {
	ch := make(chan nats.ObjectStoreStatus)
	close(ch)
	return ch
}

// --- helper ---

func newTestPublisher(fail bool) *Publisher {
	js := &mockJetStream{fail: fail}
	return &Publisher{
		nc:            nil,
		js:            js,
		subjectPrefix: "evt.ghl.auth",
		service:       "ghl-adapter",
	}
}

// --- tests ---

func TestAuthEvent_PublishesToVersionedSubject(t *testing.T) {
	pub := newTestPublisher(false)
	rec := &auth.Record{
		AccessToken:  "at-secret",
		RefreshToken: "rt-secret",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		LocationID:   "loc-1",
		CompanyID:    "co-1",
	}

	pub.AuthEvent(context.Background(), auth.EventGrantIssued, "sess-1", rec)

	js := pub.js.(*mockJetStream)
	if len(js.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(js.published))
	}

	msg := js.published[0]
	if msg.Subject != "evt.ghl.auth.grant_issued.v1" {
		t.Errorf("unexpected subject: %s", msg.Subject)
	}

	// verify headers
	if msg.Header.Get("event_type") != auth.EventGrantIssued {
		t.Errorf("expected header event_type=%s, got %s", auth.EventGrantIssued, msg.Header.Get("event_type"))
	}
	if msg.Header.Get("service") != "ghl-adapter" {
		t.Errorf("expected header service=ghl-adapter, got %s", msg.Header.Get("service"))
	}
	if msg.Header.Get("session_id") != "sess-1" {
		t.Errorf("expected header session_id=sess-1, got %s", msg.Header.Get("session_id"))
	}

	// verify payload round-trip
	var payload AuthEventPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload.SessionID != "sess-1" {
		t.Errorf("expected session_id=sess-1, got %s", payload.SessionID)
	}
	if payload.LocationID != "loc-1" {
		t.Errorf("expected location_id=loc-1, got %s", payload.LocationID)
	}
	if !payload.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("expires_at mismatch: %v", payload.ExpiresAt)
	}
}

func TestAuthEvent_NeverCarriesTokenMaterial(t *testing.T) {
	pub := newTestPublisher(false)
	rec := &auth.Record{
		AccessToken:  "super-secret-access",
		RefreshToken: "super-secret-refresh",
		ExpiresAt:    time.Now(),
	}

	pub.AuthEvent(context.Background(), auth.EventTokenRefreshed, "sess-1", rec)

	js := pub.js.(*mockJetStream)
	if len(js.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(js.published))
	}
	data := string(js.published[0].Data)
	if strings.Contains(data, "super-secret") {
		t.Errorf("token material leaked into event payload: %s", data)
	}
}

func TestAuthEvent_PublishFailureIsSwallowed(t *testing.T) {
	pub := newTestPublisher(true)

	// Must not panic or propagate: events never block the token path
	pub.AuthEvent(context.Background(), auth.EventRefreshFailed, "sess-1", nil)

	js := pub.js.(*mockJetStream)
	if len(js.published) != 0 {
		t.Errorf("expected no published messages, got %d", len(js.published))
	}
}

func TestAuthEvent_NilRecord(t *testing.T) {
	pub := newTestPublisher(false)

	pub.AuthEvent(context.Background(), auth.EventRefreshFailed, "sess-1", nil)

	js := pub.js.(*mockJetStream)
	if len(js.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(js.published))
	}
	var payload AuthEventPayload
	if err := json.Unmarshal(js.published[0].Data, &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload.LocationID != "" {
		t.Errorf("expected empty location_id, got %s", payload.LocationID)
	}
}
