// Package events publishes domain events about lots and reservations.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
	"github.com/stwalsh4118/parcela/internal/config"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/metrics"
)

// Subjects, relative to the configured prefix.
const (
	SubjectReservationCreated       = "reservation.created"
	SubjectReservationStatusChanged = "reservation.status_changed"
	SubjectLotStatusChanged         = "lot.status_changed"
)

// Event is the payload of every subject.
type Event struct {
	Type          string    `json:"type"`
	LotID         string    `json:"lot_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Handler receives events for a subscription.
type Handler func(Event)

// Bus publishes and delivers events.
type Bus interface {
	Publish(ctx context.Context, subject string, ev Event) error
	Subscribe(subject string, fn Handler) (func(), error)
	Close() error
}

// LocalBus delivers events synchronously within the process.
type LocalBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]Handler)}
}

func (b *LocalBus) Publish(ctx context.Context, subject string, ev Event) error {
	if ev.Type == "" {
		ev.Type = subject
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[subject]))
	for _, h := range b.subs[subject] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

func (b *LocalBus) Subscribe(subject string, fn Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[subject] == nil {
		b.subs[subject] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[subject][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[subject], id)
	}, nil
}

func (b *LocalBus) Close() error { return nil }

// NATSBus publishes to NATS behind a circuit breaker so a broker outage
// fails fast instead of stalling reservation requests.
type NATSBus struct {
	conn    *nats.Conn
	prefix  string
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// NewNATSBus connects to the broker. The connection keeps retrying in the
// background if the broker is not up yet.
func NewNATSBus(cfg config.NATSConfig, log *logger.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("parcela-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nats-publish",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &NATSBus{conn: conn, prefix: cfg.SubjectPrefix, breaker: breaker, log: log}, nil
}

func (b *NATSBus) subject(s string) string {
	if b.prefix == "" {
		return s
	}
	return b.prefix + "." + s
}

func (b *NATSBus) Publish(ctx context.Context, subject string, ev Event) error {
	if ev.Type == "" {
		ev.Type = subject
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.conn.Publish(b.subject(subject), data)
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

func (b *NATSBus) Subscribe(subject string, fn Handler) (func(), error) {
	sub, err := b.conn.Subscribe(b.subject(subject), func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.log.Warn("Dropping malformed event", map[string]interface{}{
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains pending messages before closing the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}

// New returns a NATS bus when a URL is configured and a LocalBus otherwise.
func New(cfg config.NATSConfig, log *logger.Logger) Bus {
	if cfg.URL == "" {
		log.Info("Event broker not configured, using in-process bus", nil)
		return NewLocalBus()
	}
	bus, err := NewNATSBus(cfg, log)
	if err != nil {
		log.Warn("NATS unavailable, using in-process bus", map[string]interface{}{"error": err.Error()})
		return NewLocalBus()
	}
	log.Info("Connected to NATS", map[string]interface{}{"url": cfg.URL})
	return bus
}
