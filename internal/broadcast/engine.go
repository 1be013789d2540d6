// Package broadcast implements the event-broadcast engine: it consumes typed
// events from any session, mutates registry state when required, persists
// chat messages best-effort, and fans each resulting frame out to every live
// session.
package broadcast

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/parley/chat-relay/internal/chatlog"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/registry"
)

// MaxMessageBytes caps chat message content. Oversized messages are dropped
// like empty ones: logged, no frame, no persistence.
const MaxMessageBytes = 4096

// persistTimeout bounds one message log append so a stalled database cannot
// stall the sender's read loop.
const persistTimeout = 3 * time.Second

// Publisher forwards broadcast frames to other relay instances.
type Publisher interface {
	PublishFrame(frame []byte) error
}

// MessageLimiter throttles chat messages per session.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, sessionID string) bool
}

// Engine is the broadcast engine. It owns no connection state itself; the
// registry is the single source of truth for liveness.
type Engine struct {
	reg     *registry.Registry
	log     chatlog.Log
	pub     Publisher      // optional cross-instance relay
	limiter MessageLimiter // optional per-session message throttle

	now func() time.Time // clock, replaced in tests
}

// NewEngine creates an engine over the given registry and message log.
func NewEngine(reg *registry.Registry, msgLog chatlog.Log) *Engine {
	return &Engine{reg: reg, log: msgLog, now: time.Now}
}

// SetPublisher wires an optional cross-instance frame publisher.
func (e *Engine) SetPublisher(pub Publisher) {
	e.pub = pub
}

// SetLimiter wires an optional per-session message rate limiter.
func (e *Engine) SetLimiter(limiter MessageLimiter) {
	e.limiter = limiter
}

// Join admits a connection under the given identity and broadcasts a
// user_joined frame. The count in the frame is the registry size at the
// instant of admission, so concurrent joins never report a torn count.
func (e *Engine) Join(handle registry.Handle, identity string) *registry.Session {
	sess, count := e.reg.Admit(handle, identity, identity)
	metrics.ConnectionsActive.Set(float64(count))

	log.Printf("broadcast: session joined id=%s name=%q (total=%d)", sess.ID, identity, count)
	e.emit(protocol.TypeUserJoined, protocol.UserJoinedData{Username: identity, Count: count})
	return sess
}

// Leave evicts a session and broadcasts a user_left frame. It is safe to
// call more than once for the same ID; duplicate disconnect signals are
// absorbed by the registry and produce no second frame.
func (e *Engine) Leave(id string) {
	sess, count, ok := e.reg.Evict(id)
	if !ok {
		return
	}
	metrics.ConnectionsActive.Set(float64(count))

	name := sess.Name()
	log.Printf("broadcast: session left id=%s name=%q (total=%d)", id, name, count)
	e.emit(protocol.TypeUserLeft, protocol.UserLeftData{Username: name, Count: count})
}

// Dispatch handles one decoded inbound event from a session. Events from a
// single session arrive here in receive order because each connection has
// exactly one read loop.
func (e *Engine) Dispatch(sess *registry.Session, ev protocol.Event) {
	switch ev.Type {
	case protocol.TypeSetUsername:
		e.handleSetUsername(sess, ev.Content)
	case protocol.TypeTyping:
		e.handleTyping(sess)
	case protocol.TypeMessage:
		e.handleMessage(sess, ev.Content)
	default:
		// DecodeEvent never produces other types.
		log.Printf("broadcast: unknown event type %q from session=%s", ev.Type, sess.ID)
	}
}

// handleSetUsername trims the requested name, substitutes the anonymous
// default for an empty result, renames the session and announces the change
// to everyone, sender included. Display names are a claim, not a verified
// identity: nothing stops a session from claiming another user's visible
// name. Only the identity fixed at admission is authenticated.
func (e *Engine) handleSetUsername(sess *registry.Session, requested string) {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = protocol.DefaultUsername
	}

	old, ok := e.reg.Rename(sess.ID, name)
	if !ok {
		return // already evicted
	}
	metrics.EventsTotal.WithLabelValues(protocol.TypeSetUsername).Inc()

	e.emit(protocol.TypeUsernameChanged, protocol.UsernameChangedData{
		OldUsername: old,
		NewUsername: name,
	})
}

// handleTyping relays a typing indicator under the sender's current display
// name. No persistence, no registry mutation.
func (e *Engine) handleTyping(sess *registry.Session) {
	metrics.EventsTotal.WithLabelValues(protocol.TypeTyping).Inc()
	e.emit(protocol.TypeTyping, protocol.TypingData{Username: sess.Name()})
}

// handleMessage persists the message best-effort and broadcasts it. An empty
// or oversized message is dropped silently; a persistence failure is logged
// and the broadcast still proceeds, so history is at-most-once.
func (e *Engine) handleMessage(sess *registry.Session, text string) {
	if strings.TrimSpace(text) == "" {
		metrics.FramesDroppedTotal.WithLabelValues("empty").Inc()
		return
	}
	if len(text) > MaxMessageBytes {
		metrics.FramesDroppedTotal.WithLabelValues("oversized").Inc()
		log.Printf("broadcast: dropping oversized message session=%s len=%d", sess.ID, len(text))
		return
	}

	if e.limiter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		allowed := e.limiter.AllowMessage(ctx, sess.ID)
		cancel()
		if !allowed {
			metrics.FramesDroppedTotal.WithLabelValues("rate_limited").Inc()
			log.Printf("broadcast: rate limited session=%s", sess.ID)
			return
		}
	}

	metrics.EventsTotal.WithLabelValues(protocol.TypeMessage).Inc()

	// Persisted history is attributed to the display name at send time, not
	// the identity from admission. That is a product decision: history reads
	// back exactly what other users saw.
	name := sess.Name()
	ts := e.now()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	err := e.log.Append(ctx, chatlog.Record{Username: name, Text: text, Timestamp: ts})
	cancel()
	if err != nil {
		metrics.PersistFailuresTotal.Inc()
		log.Printf("broadcast: persist failed session=%s: %v", sess.ID, err)
	}

	e.emit(protocol.TypeMessage, protocol.MessageData{
		Username:  name,
		Text:      text,
		Timestamp: ts,
	})
}

// DeliverRemote fans out a frame that arrived from another relay instance.
// It is not re-published, so frames never loop between instances.
func (e *Engine) DeliverRemote(frame []byte) {
	e.fanOut(frame)
}

// emit encodes a frame, fans it out locally and publishes it for other
// instances.
func (e *Engine) emit(frameType string, payload interface{}) {
	frame, err := protocol.NewFrame(frameType, payload)
	if err != nil {
		log.Printf("broadcast: build %q frame: %v", frameType, err)
		return
	}

	e.fanOut(frame)

	if e.pub != nil {
		if err := e.pub.PublishFrame(frame); err != nil {
			log.Printf("broadcast: publish %q frame: %v", frameType, err)
		}
	}
}

// fanOut delivers one frame to every session in a point-in-time snapshot of
// the registry. A failed send is logged and isolated: it neither aborts the
// loop nor evicts the peer. Eviction is driven solely by the peer's own read
// loop terminating.
func (e *Engine) fanOut(frame []byte) {
	start := time.Now()
	for _, s := range e.reg.Snapshot() {
		if err := s.Send(frame); err != nil {
			metrics.DeliveryFailuresTotal.Inc()
			log.Printf("broadcast: delivery failed session=%s: %v", s.ID, err)
		}
	}
	metrics.BroadcastLatency.Observe(time.Since(start).Seconds())
}
