package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

const (
	// SubjectWaterBodyCached carries a WaterBodyCachedEvent for every new cache entry.
	SubjectWaterBodyCached = "aquaripple.waterbody.cached"

	streamName = "WATER_BODIES"
)

// WaterBodyCachedEvent is published after a confirmed water body is cached.
type WaterBodyCachedEvent struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Name      *string   `json:"name"`
	WaterType *string   `json:"water_type,omitempty"`
	CachedAt  time.Time `json:"cached_at"`
}

// NewWaterBodyCachedEvent builds the event for entry.
func NewWaterBodyCachedEvent(e *domain.CacheEntry) WaterBodyCachedEvent {
	return WaterBodyCachedEvent{
		ID:        e.ID,
		Latitude:  e.Location.Latitude,
		Longitude: e.Location.Longitude,
		Name:      e.Name,
		WaterType: e.WaterType,
		CachedAt:  e.CachedAt,
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"aquaripple.waterbody.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishWaterBodyCached announces a new cache entry.
func (p *Publisher) PublishWaterBodyCached(ctx context.Context, e *domain.CacheEntry) error {
	data, err := json.Marshal(NewWaterBodyCachedEvent(e))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectWaterBodyCached, data, nats.Context(ctx))
	return err
}

// Conn returns the underlying connection, shared with the WebSocket relay.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// IsConnected reports connection health for readiness checks.
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("aquaripple-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
