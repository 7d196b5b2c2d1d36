package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-core/internal/config"
	"chat-core/internal/db"
	"chat-core/internal/dispatch"
	"chat-core/internal/handlers"
	"chat-core/internal/logging"
	"chat-core/internal/middleware"
	"chat-core/internal/observability"
	"chat-core/internal/presence"
	"chat-core/internal/rabbitmq"
	"chat-core/internal/registry"
	"chat-core/internal/repositories"
	"chat-core/internal/services"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

const serviceName = "chat-core"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(true)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.IsDevelopment())

	if cfg.OTLPEndpoint != "" {
		shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to set up tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("tracing shutdown failed")
			}
		}()
	}

	var (
		messageStore repositories.MessageStore
		membership   repositories.GroupMembership
	)
	if cfg.DBDSN != "" {
		database, err := db.Connect(cfg.DBDSN, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to db")
		}
		defer database.Close()
		messageStore = repositories.NewMessageRepo(database)
		membership = repositories.NewGroupRepo(database)
	} else {
		logger.Warn().Msg("DB_DSN is empty, using in-memory stores")
		messageStore = repositories.NewMemoryMessageStore()
		membership = repositories.NewMemoryGroupStore()
	}

	var presenceStore repositories.PresenceStore
	if cfg.RedisURL != "" {
		redisStore, err := repositories.NewRedisPresenceStore(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory presence")
			presenceStore = repositories.NewMemoryPresenceStore()
		} else {
			presenceStore = redisStore
		}
	} else {
		presenceStore = repositories.NewMemoryPresenceStore()
	}

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		logger.Warn().Err(err).Msg("event publishing disabled")
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer auditPublisher.Close()
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(auditPublisher)).
		Str("reason", rabbitmq.PublisherNoopReason(auditPublisher)).
		Msg("audit publisher ready")

	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Env, logger)

	reg := registry.New()
	hub := ws.NewHub()
	tracker := presence.NewTracker(presenceStore, logger)
	direct := services.NewDirectMessageService(messageStore, reg, hub, logger)
	group := services.NewGroupFanoutService(messageStore, membership, reg, hub, logger)
	dispatcher := dispatch.New(reg, tracker, direct, group, messageStore, logger)

	chatHandler := handlers.NewChatHandler(dispatcher, hub, audit)
	sessionHandler := ws.NewSessionHandler(hub, dispatcher, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	identity := middleware.Identity()

	router.POST("/messages/direct", identity, chatHandler.SendDirect)
	router.POST("/messages/group", identity, chatHandler.SendGroup)
	router.GET("/rooms/:friend_id/messages", identity, chatHandler.GetRoomMessages)
	router.GET("/groups/:group_id/messages", identity, chatHandler.GetGroupMessages)
	router.GET("/messages/unread", identity, chatHandler.UnreadCounts)
	router.POST("/messages/read", identity, chatHandler.MarkRead)
	router.DELETE("/rooms/:friend_id/me", identity, chatHandler.ClearRoomForMe)
	router.DELETE("/messages/:message_id", identity, chatHandler.DeleteMessage)
	router.GET("/presence", identity, chatHandler.OnlineStatus)

	router.GET("/ws", identity, sessionHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	hub.CloseAll()
}
