package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatify/infrastructure/cache"
	"chatify/infrastructure/db"
	"chatify/infrastructure/events"
	"chatify/infrastructure/media"
	"chatify/infrastructure/translate"
	"chatify/infrastructure/ws"
	httpHandler "chatify/internal/delivery/http"
	"chatify/internal/delivery/websocket"
	"chatify/internal/repository"
	"chatify/internal/usecase"
	"chatify/pkg/config"
	"chatify/pkg/jwt"
	"chatify/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const devJWTSecret = "dev-secret-change-me"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer logger.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoDb, err := db.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoDb.Close(closeCtx)
	}()
	if err := mongoDb.EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Info("connected to mongodb", zap.String("database", cfg.Mongo.Database))

	userRepo := repository.NewUserRepository(mongoDb.DB)
	messageRepo := repository.NewMessageRepository(mongoDb.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(mongoDb.DB)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if cfg.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		secret = devJWTSecret
		log.Warn("using the development JWT secret, set JWT_SECRET")
	}
	jwtManager := jwt.NewManager(secret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	// Presence and unread counters live in Redis when it is configured so
	// that several instances can share them.
	var (
		hub         ws.IHub
		unreadStore usecase.UnreadStore
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info("using redis hub", zap.String("addr", cfg.Redis.Addr), zap.String("serverId", cfg.ServerId))
		hub = ws.NewRedisHub(redisClient, cfg.ServerId, log)
		unreadStore = cache.NewRedisUnreadStore(redisClient, cfg.ViewingTTL)
	} else {
		log.Info("using in-memory hub")
		memCache := cache.NewMemCache(time.Minute)
		defer memCache.Close()
		hub = ws.NewHub(log)
		unreadStore = cache.NewUnreadStore(memCache, cfg.ViewingTTL)
	}
	bus := ws.NewBus(hub, log)

	var translator usecase.Translator
	if cfg.Translate.APIKey != "" {
		gemini, err := translate.NewGeminiTranslator(ctx, cfg.Translate.APIKey, cfg.Translate.Model)
		if err != nil {
			return err
		}
		defer gemini.Close()
		translator = gemini
	} else {
		log.Warn("translation disabled, GEMINI_API_KEY is not set")
	}

	var mediaStore usecase.MediaStore
	if cfg.Media.Endpoint != "" {
		store, err := media.NewMinIOStore(ctx, media.Options{
			Endpoint:  cfg.Media.Endpoint,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			Bucket:    cfg.Media.Bucket,
			UseSSL:    cfg.Media.UseSSL,
			PublicURL: cfg.Media.PublicURL,
			MaxBytes:  cfg.Media.MaxImageBytes,
		}, log)
		if err != nil {
			return err
		}
		mediaStore = store
	} else {
		log.Warn("image messages disabled, MINIO_ENDPOINT is not set")
	}

	var eventPublisher usecase.EventPublisher = events.NopPublisher{}
	if cfg.Events.URL != "" {
		conn, err := events.DialWithRetry(ctx, cfg.Events.URL, 5, 2*time.Second, log)
		if err != nil {
			return err
		}
		publisher, err := events.NewRabbitPublisher(conn, cfg.Events.Exchange, log)
		if err != nil {
			_ = conn.Close()
			return err
		}
		defer publisher.Close()
		eventPublisher = publisher
	}

	authUc := usecase.NewAuthUsecase(userRepo, refreshTokenRepo, jwtManager, log)
	unreadUc := usecase.NewUnreadUsecase(unreadStore, bus, log)
	userUc := usecase.NewUserUseCase(userRepo, messageRepo, hub, unreadUc, mediaStore, log)
	messageUc := usecase.NewMessageUseCase(usecase.MessageUsecaseDeps{
		MessageRepo: messageRepo,
		UserRepo:    userRepo,
		Annotator:   usecase.NewTranslationAnnotator(translator, cfg.Translate.Timeout, log),
		Media:       mediaStore,
		Bus:         bus,
		Unread:      unreadUc,
		Events:      eventPublisher,
		Log:         log,
	})

	websocketH := websocket.NewWebsocketHandler(hub, bus, authUc, messageUc, unreadUc, cfg.CorsAllowedOrigins, log)
	hub.SetOnClientUnregister(websocketH.HandleUnregisterClient)
	go hub.Run()
	defer hub.Close()

	router := httpHandler.NewRouter(httpHandler.RouterDeps{
		HttpHandler:      httpHandler.NewHttpHandler(messageUc, userUc, unreadUc, cfg.Media.MaxImageBytes*2, log),
		AuthHandler:      httpHandler.NewAuthHandler(authUc, cfg.IsProduction(), cfg.Auth.RefreshTokenTTL, log),
		WebsocketHandler: websocketH,
		AuthMiddleware:   httpHandler.NewAuthMiddleware(authUc),
		AllowedOrigins:   cfg.CorsAllowedOrigins,
		HealthCheck:      healthCheck(mongoDb),
		Log:              log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func healthCheck(store *db.MongoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "mongodb unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
