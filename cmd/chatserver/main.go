package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trackline/chat-core/internal/auth"
	"github.com/trackline/chat-core/internal/broadcast"
	"github.com/trackline/chat-core/internal/chat"
	"github.com/trackline/chat-core/internal/config"
	"github.com/trackline/chat-core/internal/httpapi"
	"github.com/trackline/chat-core/internal/messaging"
	"github.com/trackline/chat-core/internal/metrics"
	"github.com/trackline/chat-core/internal/moderation"
	"github.com/trackline/chat-core/internal/protocol"
	"github.com/trackline/chat-core/internal/ratelimit"
	"github.com/trackline/chat-core/internal/registry"
	"github.com/trackline/chat-core/internal/ws"
)

func main() {
	initLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := chat.OpenPostgres(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	if err := store.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(ctx).Err()
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
	}

	policy := moderation.NewPolicy(moderation.NewMuteStore(redisClient))
	limiter := ratelimit.NewLimiter(redisClient)
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTTTL)
	reg := registry.New()

	dispatcher := ws.NewMessageDispatcher()
	server := ws.NewServer(ws.ServerConfig{
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}, verifier, limiter, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	bcast := broadcast.NewDispatcher(reg, server)

	var natsClient *messaging.NATSClient
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsClient, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connection failed")
		}
		if err := bcast.AttachRelay(natsClient); err != nil {
			log.Fatal().Err(err).Msg("nats relay subscription failed")
		}
	}

	svc := chat.NewService(store, store, policy, bcast, cfg.MaxMessageChars)
	reactions := chat.NewReactions(store, store, policy, bcast)

	// join: subscribe the connection to a channel and announce presence.
	dispatcher.Register(protocol.TypeJoin, func(conn *ws.Connection, msg interface{}) {
		joinMsg, ok := msg.(protocol.JoinMsg)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := store.Channel(ctx, joinMsg.ChannelID); err != nil {
			dispatcher.SendError(conn, "not_found", "channel not found")
			return
		}
		member, err := store.IsMember(ctx, joinMsg.ChannelID, conn.UserID)
		if err != nil {
			log.Error().Err(err).Int64("channel_id", joinMsg.ChannelID).Msg("membership lookup failed")
			dispatcher.SendError(conn, "internal_error", "membership lookup failed")
			return
		}
		if !member {
			dispatcher.SendError(conn, "access_denied", "not a channel member")
			return
		}

		if !subscribeIfLive(reg, server.Connections(), conn.ID, joinMsg.ChannelID, conn.UserID) {
			return
		}
		metrics.ActiveChannels.Set(float64(reg.ChannelCount()))

		if err := bcast.Broadcast(joinMsg.ChannelID, protocol.TypeUserJoined, protocol.UserJoinedMsg{
			ChannelID:   joinMsg.ChannelID,
			UserID:      conn.UserID,
			UserName:    conn.UserName,
			UserRole:    conn.UserRole,
			OnlineUsers: reg.OnlineUsers(joinMsg.ChannelID),
		}); err != nil {
			log.Warn().Err(err).Int64("channel_id", joinMsg.ChannelID).Msg("join broadcast failed")
		}
	})

	// message: run the full posting pipeline. Failures are reported back on
	// the same connection without closing it.
	dispatcher.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		chatMsg, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		allowed, _ := limiter.Allow(ctx, strconv.FormatInt(conn.UserID, 10), ratelimit.RuleMessage)
		if !allowed {
			dispatcher.SendError(conn, "rate_limited", "too many messages")
			return
		}

		if _, err := svc.PostMessage(ctx, chatMsg.ChannelID, conn.UserID, chatMsg.Body); err != nil {
			dispatcher.SendError(conn, errorCode(err), err.Error())
		}
	})

	// Presence cleanup: release every subscription held by the connection
	// and announce the departure per channel.
	server.SetOnDisconnect(func(conn *ws.Connection) {
		left := reg.UnsubscribeAll(conn.ID)
		metrics.ActiveChannels.Set(float64(reg.ChannelCount()))
		for _, channelID := range left {
			if err := bcast.Broadcast(channelID, protocol.TypeUserLeft, protocol.UserLeftMsg{
				ChannelID:   channelID,
				UserID:      conn.UserID,
				OnlineUsers: reg.OnlineUsers(channelID),
			}); err != nil {
				log.Warn().Err(err).Int64("channel_id", channelID).Msg("leave broadcast failed")
			}
		}
	})

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("websocket server start failed")
	}

	router := httpapi.NewRouter(&httpapi.API{
		Messages:  svc,
		Reactions: reactions,
		Verifier:  verifier,
		Limiter:   limiter,
		WSHandler: server.HandleUpgrade,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("websocket shutdown error")
	}
	if natsClient != nil {
		natsClient.Close()
	}
	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close error")
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("postgres close error")
	}
	log.Info().Msg("server stopped")
}

// subscribeIfLive records the subscription only if the connection is still
// attached to the transport. The join lookups can suspend long enough for
// the heartbeat or a read error to evict the connection; the manager drops
// it before the disconnect callback releases subscriptions, so a
// subscription recorded after that point would never be cleaned up. Rolling
// it back here closes that window.
func subscribeIfLive(reg *registry.Registry, conns *ws.ConnectionManager, connID string, channelID, userID int64) bool {
	reg.Subscribe(connID, channelID, userID)
	if conns.Get(connID) == nil {
		reg.UnsubscribeAll(connID)
		return false
	}
	return true
}

// errorCode maps domain errors to the wire-level error codes sent on socket
// frames.
func errorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrUserMuted):
		return "user_muted"
	case errors.Is(err, chat.ErrChatDisabled):
		return "chat_disabled"
	case errors.Is(err, chat.ErrChannelLocked):
		return "channel_locked"
	case errors.Is(err, chat.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, chat.ErrNotFound):
		return "not_found"
	case errors.Is(err, chat.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal_error"
	}
}

func initLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("APP_ENV") == "dev" {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(cw).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
