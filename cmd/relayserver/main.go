package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/chat-relay/internal/api"
	"github.com/parley/chat-relay/internal/auth"
	"github.com/parley/chat-relay/internal/broadcast"
	"github.com/parley/chat-relay/internal/chatlog"
	"github.com/parley/chat-relay/internal/db"
	"github.com/parley/chat-relay/internal/messaging"
	"github.com/parley/chat-relay/internal/ratelimit"
	"github.com/parley/chat-relay/internal/registry"
	"github.com/parley/chat-relay/internal/token"
	"github.com/parley/chat-relay/internal/ws"
)

func main() {
	listenAddr := ":8080"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		listenAddr = v
	}

	wsConfig := ws.DefaultServerConfig()
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			wsConfig.MaxConnections = n
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			wsConfig.WriteTimeout = d
		}
	}

	// --- Token service ---
	secret := []byte(os.Getenv("TOKEN_SECRET"))
	if len(secret) == 0 {
		// Ephemeral secret: tokens do not survive a restart.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("failed to generate token secret: %v", err)
		}
		secret = []byte(hex.EncodeToString(buf))
		log.Printf("TOKEN_SECRET not set, generated an ephemeral secret")
	}
	tokenTTL := 24 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			tokenTTL = d
		}
	}
	tokens, err := token.NewService(secret, tokenTTL)
	if err != nil {
		log.Fatalf("failed to create token service: %v", err)
	}

	// --- Persistence: PostgreSQL when configured, in-memory otherwise ---
	var (
		msgLog   chatlog.Log
		authRepo auth.Repository
	)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		handle, err := db.Open(dsn)
		if err != nil {
			log.Fatalf("failed to connect to PostgreSQL: %v", err)
		}
		defer handle.Close()
		if err := db.Migrate(handle); err != nil {
			log.Fatalf("failed to migrate schema: %v", err)
		}
		msgLog = chatlog.NewPostgresLog(handle)
		authRepo = auth.NewPostgresRepository(handle)
	} else {
		log.Printf("DATABASE_URL not set, using in-memory storage")
		msgLog = chatlog.NewMemoryLog()
		authRepo = auth.NewMemoryRepository()
	}

	reg := registry.New()
	engine := broadcast.NewEngine(reg, msgLog)
	wsServer := ws.NewServer(wsConfig, engine, reg, tokens)

	// --- Redis rate limiting (optional) ---
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer rdb.Close()

		limiter := ratelimit.NewLimiter(rdb)
		engine.SetLimiter(limiter)
		wsServer.SetConnectLimiter(limiter)
		log.Printf("rate limiting enabled via Redis at %s", redisAddr)
	}

	// --- NATS cross-instance relay (optional) ---
	var natsRelay *messaging.Relay
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = natsURL
		if name, _ := os.Hostname(); name != "" {
			natsConfig.Name = name
		}
		if v := os.Getenv("SERVER_NAME"); v != "" {
			natsConfig.Name = v
		}

		natsRelay, err = messaging.NewRelay(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		if err := natsRelay.SubscribeFrames(engine.DeliverRemote); err != nil {
			log.Fatalf("failed to subscribe to NATS frames: %v", err)
		}
		engine.SetPublisher(natsRelay)
	}

	authService := auth.NewService(authRepo, tokens)
	router := api.NewHandler(authService, msgLog, reg).Router()
	router.Handle("/ws", wsServer)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	log.Printf("chat relay starting")
	log.Printf("  listen_addr:     %s", listenAddr)
	log.Printf("  max_connections: %d", wsConfig.MaxConnections)
	log.Printf("  write_timeout:   %s", wsConfig.WriteTimeout)
	log.Printf("  token_ttl:       %s", tokenTTL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		if natsRelay != nil {
			natsRelay.Close()
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("chat relay stopped")
}
