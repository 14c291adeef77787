package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"hrms.org/internal/auth"
	"hrms.org/internal/config"
	"hrms.org/internal/department"
	"hrms.org/internal/httpapi"
	"hrms.org/internal/obs"
	"hrms.org/internal/seed"
	"hrms.org/internal/store/memory"
	"hrms.org/internal/store/pg"
)

var version = "0.1.0"

type backend interface {
	auth.Store
	department.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)
	obs.SetLogger(logger)

	// metrics and build_info
	obs.Init()
	obs.InitBuildInfo(version, obs.Commit)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, inMemory, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hasher := auth.NewPasswordHasher(cfg.PasswordHash, cfg.BcryptCost)
	codec, err := auth.NewTokenCodec(cfg.SecretKey, cfg.Algorithm, cfg.AccessTTL())
	if err != nil {
		return err
	}
	svc, err := auth.NewService(store, hasher, codec, auth.WithLogger(logger))
	if err != nil {
		return err
	}
	rbac, err := auth.NewRBACService(store, hasher)
	if err != nil {
		return err
	}
	departments, err := department.NewService(store)
	if err != nil {
		return err
	}

	seeder := seed.NewSeeder(store, rbac, logger)
	if inMemory {
		// the memory store starts empty on every boot
		manifest, err := seed.LoadManifest(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seeder.Permissions(ctx, manifest); err != nil {
			return err
		}
	}
	if _, err := seeder.Superuser(ctx, cfg.SuperuserUsername, cfg.SuperuserPassword); err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{DB: store}
	api := httpapi.New(probe, version, svc, rbac, departments,
		httpapi.WithLoginRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithTrustProxy(cfg.TrustProxy),
	)
	go api.Limiter().Run(ctx)

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcServer = grpc.NewServer()
		health := httpapi.NewHealthServer(probe)
		health.Register(grpcServer)
		go health.Run(ctx, 10*time.Second)
		go func() {
			logger.Info("grpc health listening", slog.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("grpc serve", slog.String("error", err.Error()))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting hrms-api", slog.String("version", version), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, logger *slog.Logger) (backend, bool, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		logger.Warn("database is not configured, using the in-memory store")
		return memory.New(), true, nil
	}
	store, err := pg.Open(dsn)
	if err != nil {
		return nil, false, err
	}
	return store, false, nil
}
