package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/cache"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/idgen"
	"github.com/cwrk-planet/chat-service/internal/logger"
	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Level:     logger.ParseLevel(cfg.Logging.Level),
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver)

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ids := idgen.New(cfg.IDGen.MachineID)
	if !ids.Sonyflake() {
		slog.Warn("sonyflake unavailable, using time+uuid message ids")
	}

	// --- storage ---
	var (
		store service.MessageStore
		users service.UserDirectory
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		mem := memstore.New(ids)
		store, users = mem, mem
		slog.Warn("in-memory storage: messages are lost on restart")
	default:
		pool, err := postgres.NewPool(ctx, cfg.Postgres.ToPGConfig())
		if err != nil {
			slog.Error("failed to init postgres", slog.Any("err", err))
			os.Exit(1)
		}
		defer pool.Close()
		slog.Info("connected to postgres")

		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				slog.Error("failed to migrate", slog.Any("err", err))
				os.Exit(1)
			}
		}
		store = postgres.NewMessageRepository(pool, ids)
		users = postgres.NewUserRepository(pool)
	}

	// --- profile cache ---
	var profiles service.ProfileLookup
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to init redis", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx); err != nil {
			// кэш не обязателен, Directory сам уходит в базу при ошибках
			slog.Warn("redis ping failed", slog.Any("err", err))
		}
		profiles = cache.NewDirectory(users, rdb, cfg.Redis.ProfileTTL)
	}

	// --- push events ---
	hub := ws.NewHub()
	hub.OnDrop(metrics.EventsDropped.Inc)

	var publisher events.Publisher = events.NewLocal(hub)
	if cfg.NATS.URL != "" {
		bridge, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, hub)
		if err != nil {
			slog.Error("failed to connect nats", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() { _ = bridge.Close() }()
		publisher = bridge
		slog.Info("nats bridge up", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	// --- services ---
	chatSvc := service.NewMessageService(store, users,
		service.WithPublisher(publisher),
		service.WithProfileCache(profiles),
		service.WithMaxContentBytes(cfg.Chat.MaxContentBytes),
		service.WithDefaultPageLimit(cfg.Chat.PageLimit),
	)

	verifier, err := security.NewVerifier(security.VerifierConfig{
		Alg:           cfg.Auth.Alg,
		Secret:        cfg.Auth.Secret,
		PublicKeyPath: cfg.Auth.PublicKeyPath,
		Issuer:        cfg.Auth.Issuer,
		Claim:         cfg.Auth.Claim,
		ClockSkew:     cfg.Auth.ClockSkew,
	})
	if err != nil {
		slog.Error("failed to init token verifier", slog.Any("err", err))
		os.Exit(1)
	}

	// --- HTTP ---
	wsServer := ws.NewServer(hub, verifier)
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(chatSvc),
		Verifier:       verifier,
		WS:             wsServer.HandleWS,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		BodyLimit:      cfg.HTTP.BodyLimit,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := httpx.NewServer(httpx.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		errCh <- httpSrv.Run(ctx)
	}()

	// --- gRPC ---
	if cfg.GRPC.Addr != "" {
		grpcServer := grpcx.NewGRPCServer(grpcx.NewServer(chatSvc), verifier)
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			slog.Error("grpc listen failed", slog.Any("err", err))
			os.Exit(1)
		}
		go func() {
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		defer grpcServer.GracefulStop()
	}

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		<-errCh
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", slog.Any("err", err))
		}
		stop()
	}

	slog.Info("chat-service stopped")
}
