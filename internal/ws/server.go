// Package ws handles WebSocket connection management: upgrading HTTP
// connections, gating them on an optional session token, running one read
// loop per connection, and feeding decoded events to the broadcast engine.
package ws

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/parley/chat-relay/internal/broadcast"
	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/registry"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxConnections: 100000,
		WriteTimeout:   10 * time.Second,
	}
}

// TokenVerifier validates a session token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ConnectLimiter throttles connection attempts per client IP.
type ConnectLimiter interface {
	AllowConnect(ctx context.Context, ip string) bool
}

// Server upgrades HTTP requests to WebSocket connections, applies the session
// gate, and runs one goroutine per connection that reads frames and
// dispatches decoded events to the broadcast engine.
type Server struct {
	config   ServerConfig
	engine   *broadcast.Engine
	reg      *registry.Registry
	verifier TokenVerifier
	limiter  ConnectLimiter // optional
}

// NewServer creates a Server over the given engine, registry and token
// verifier.
func NewServer(config ServerConfig, engine *broadcast.Engine, reg *registry.Registry, verifier TokenVerifier) *Server {
	return &Server{
		config:   config,
		engine:   engine,
		reg:      reg,
		verifier: verifier,
	}
}

// SetConnectLimiter wires an optional per-IP connection rate limiter.
func (s *Server) SetConnectLimiter(limiter ConnectLimiter) {
	s.limiter = limiter
}

// ServeHTTP handles the /ws endpoint: it enforces the connection cap and the
// per-IP rate limit, upgrades to WebSocket, applies the session gate, and on
// admission starts the connection's read loop.
//
// Gate policy: an absent token admits the session as anonymous. A present
// but invalid token refuses the connection with a policy-violation close
// before any event exchange, so a rejected session is never visible to
// others: no admission, no user_joined frame.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.reg.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if s.limiter != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		allowed := s.limiter.AllowConnect(ctx, clientIP(r))
		cancel()
		if !allowed {
			http.Error(w, "connection rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	// The token is read before the upgrade; the gate decision is delivered
	// after it, as a WebSocket close code. Only an absent parameter admits
	// anonymously: a present token, empty included, must verify.
	query := r.URL.Query()
	tokenPresent := query.Has("token")
	tokenParam := query.Get("token")

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	conn := newConnection(netConn, s.config.WriteTimeout)

	identity := protocol.DefaultUsername
	if tokenPresent {
		subject, err := s.verifier.Verify(tokenParam)
		if err != nil {
			log.Printf("ws: rejecting connection: invalid token")
			_ = conn.writeClose(ws.StatusPolicyViolation, "invalid token")
			_ = conn.Close()
			return
		}
		identity = subject
	}

	sess := s.engine.Join(conn, identity)
	go s.readLoop(conn, sess)
}

// readLoop reads frames from one connection until it closes, dispatching
// decoded events to the engine in arrival order. However the loop ends, the
// session is evicted exactly once: the deferred Leave runs once per loop and
// the registry absorbs any duplicate.
func (s *Server) readLoop(conn *Connection, sess *registry.Session) {
	defer func() {
		s.engine.Leave(sess.ID)
		_ = conn.Close()
	}()

	for {
		header, reader, err := wsutil.NextReader(conn.conn, ws.StateServerSide)
		if err != nil {
			return // dead connection or protocol error
		}

		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			// Ping/pong: drain the payload, nothing else to do.
			if header.Length > 0 {
				if _, err := io.Copy(io.Discard, reader); err != nil {
					return
				}
			}
			continue
		}

		data, err := io.ReadAll(reader)
		if err != nil {
			return
		}
		if header.OpCode != ws.OpText {
			continue
		}

		ev, ok := protocol.DecodeEvent(data)
		if !ok {
			continue // empty or whitespace-only frame
		}
		s.engine.Dispatch(sess, ev)
	}
}

// clientIP extracts the client address without the port, for the per-IP
// connection limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
