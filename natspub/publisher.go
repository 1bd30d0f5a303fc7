// Package natspub bridges registry visibility events onto NATS so that
// out-of-process consumers (UIs, indexers) can follow which sources are
// available. It is an ordinary notification subscriber; the registry
// core has no knowledge of it.
package natspub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/sourceregistry/source"
)

// Event kinds
const (
	KindShown  = "shown"
	KindHidden = "hidden"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "sourceregistry"

// Event is the wire representation of a visibility change
type Event struct {
	Kind      string   `json:"kind"` // "shown" or "hidden"
	SourceID  string   `json:"source_id"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags,omitempty"`
	Timestamp string   `json:"timestamp"` // RFC3339Nano
}

// Publisher publishes visibility events to NATS. It implements
// source.Subscriber. A nil connection disables publishing entirely,
// which keeps embedders and tests free of a live NATS dependency.
//
// Publish failures stay inside the publisher's own fault domain: they
// are logged and dropped, never surfaced to the notification cycle.
type Publisher struct {
	nc      *nats.Conn
	prefix  string
	logger  *slog.Logger
	enabled bool
}

// New creates a publisher for the given connection and subject prefix.
// Events go to "<prefix>.source.shown" and "<prefix>.source.hidden".
func New(nc *nats.Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		nc:      nc,
		prefix:  prefix,
		logger:  logger,
		enabled: nc != nil,
	}
}

// Enabled reports whether the publisher has a connection to publish on
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// SourceShown implements source.Subscriber
func (p *Publisher) SourceShown(s *source.Source) {
	p.publish(KindShown, s)
}

// SourceHidden implements source.Subscriber
func (p *Publisher) SourceHidden(s *source.Source) {
	p.publish(KindHidden, s)
}

// Subject returns the subject an event kind is published on
func (p *Publisher) Subject(kind string) string {
	return fmt.Sprintf("%s.source.%s", p.prefix, kind)
}

func (p *Publisher) publish(kind string, s *source.Source) {
	if !p.enabled {
		return
	}

	event := Event{
		Kind:      kind,
		SourceID:  s.ID(),
		Name:      s.Name(),
		Tags:      s.Tags(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal visibility event", "error", err, "source", s.ID())
		return
	}

	subject := p.Subject(kind)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish visibility event",
			"error", err, "subject", subject, "source", s.ID())
	}
}
