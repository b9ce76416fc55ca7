package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"studio-chat/internal/chat"
	"studio-chat/internal/config"
	"studio-chat/internal/db"
	"studio-chat/internal/identity"
	"studio-chat/internal/logger"
	myMiddleware "studio-chat/internal/middleware"
	"studio-chat/internal/scope"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	log.Info("connected to postgres")

	if err := database.AutoMigrate(); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("database schema initialized")

	// 3. Connect to Redis (Platform Layer)
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	log.Info("connected to redis")

	// 4. Identity Feature
	identityRepo := identity.NewRepository(database.Conn)
	identityService := identity.NewService(identityRepo, cfg.JWTSecret)
	identityHandler := identity.NewHandler(identityService)

	// 5. Chat Feature
	// The transport is constructed here and injected; nothing in the chat
	// core reaches for an ambient client.
	transport := chat.NewRedisTransport(redisClient, log)
	chatRepo := chat.NewRepository(database.Conn)
	scopeRepo := scope.NewRepository(database.Conn)

	hub := chat.NewHub(log)
	go hub.Run(ctx)

	chatHandler := chat.NewHandler(hub, chatRepo, scopeRepo, transport, log, chat.SessionOptions{
		HistorySize: cfg.HistorySize,
		EchoTimeout: cfg.EchoTimeout,
	})

	authMiddleware := myMiddleware.NewAuthMiddleware(identityService)

	// 6. Routes
	r := chi.NewRouter()
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	// Public Routes
	r.Post("/register", identityHandler.Register)
	r.Post("/login", identityHandler.Login)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", identityHandler.SearchUsers)

		// WebSocket (Real-time)
		r.Get("/ws", chatHandler.ServeWs)

		r.Get("/api/messages", chatHandler.GetChatHistory)
		r.Get("/api/clients", chatHandler.ListClients)
		r.Get("/api/suggestions", chatHandler.GetSuggestions)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Info("server starting", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("listen and serve", zap.Error(err))
	}
}
