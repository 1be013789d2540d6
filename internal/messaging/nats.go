// Package messaging connects relay instances over NATS so a frame broadcast
// on one instance is fanned out by every other instance as well. Each
// instance publishes its outbound frames on a shared subject tagged with its
// own name and ignores the frames it published itself.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectFrames is the subject carrying broadcast frames between instances.
const SubjectFrames = "relay.frames"

// envelope wraps a broadcast frame with the publishing instance's name.
type envelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // instance name, used for origin filtering
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "relay-1",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Relay is the NATS-backed cross-instance frame bus.
type Relay struct {
	conn *nats.Conn
	name string
	sub  *nats.Subscription
}

// NewRelay connects to NATS with the given config and returns a ready relay.
// It returns an error if the initial connection fails.
func NewRelay(config Config) (*Relay, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("messaging: nats disconnected: %v", err)
			} else {
				log.Printf("messaging: nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("messaging: nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("messaging: nats connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	log.Printf("messaging: connected to %s as %q", nc.ConnectedUrl(), config.Name)
	return &Relay{conn: nc, name: config.Name}, nil
}

// PublishFrame publishes one broadcast frame for delivery by other instances.
func (r *Relay) PublishFrame(frame []byte) error {
	data, err := json.Marshal(envelope{Origin: r.name, Frame: frame})
	if err != nil {
		return fmt.Errorf("messaging: marshal envelope: %w", err)
	}
	if err := r.conn.Publish(SubjectFrames, data); err != nil {
		return fmt.Errorf("messaging: publish: %w", err)
	}
	return nil
}

// SubscribeFrames registers a handler for frames published by other
// instances. Frames this instance published itself are filtered out.
func (r *Relay) SubscribeFrames(handler func(frame []byte)) error {
	sub, err := r.conn.Subscribe(SubjectFrames, func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("messaging: bad envelope: %v", err)
			return
		}
		if env.Origin == r.name {
			return // our own frame, already delivered locally
		}
		handler(env.Frame)
	})
	if err != nil {
		return fmt.Errorf("messaging: subscribe %s: %w", SubjectFrames, err)
	}
	r.sub = sub
	return nil
}

// Close drains the subscription and the connection.
func (r *Relay) Close() {
	if r.sub != nil {
		if err := r.sub.Drain(); err != nil {
			log.Printf("messaging: drain subscription: %v", err)
		}
	}
	if err := r.conn.Drain(); err != nil {
		log.Printf("messaging: drain connection: %v", err)
	}
	log.Printf("messaging: relay closed")
}
