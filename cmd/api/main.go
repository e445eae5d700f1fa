package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/catalog"
	"schedulehub.org/internal/config"
	"schedulehub.org/internal/httpapi"
	"schedulehub.org/internal/obs"
	"schedulehub.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type readiness interface {
	Check(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Инициализация observability (регистрация метрик, build_info)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		credentials auth.CredentialStore
		records     catalog.Store
		ready       readiness = httpapi.ReadyProbe{}
		closeStore  = func() {}
	)
	if cfg.DatabaseURL != "" {
		store, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		credentials, records, ready = store, store, store
		closeStore = func() { _ = store.Close() }
	} else {
		obs.Log("warn", "no SCHEDULE_PG_DSN configured, using in-memory stores", nil)
		faculties := cfg.MemoryFaculties()
		credentials = auth.NewMemoryStore(faculties...)
		records = catalog.NewMemoryStore(faculties...)
	}

	if err := bootstrapSuperAdmin(context.Background(), credentials, cfg); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret,
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL))
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	authSvc, err := auth.NewService(credentials, tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	directory, err := auth.NewDirectory(credentials)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	catalogSvc, err := catalog.NewService(records)
	if err != nil {
		log.Fatalf("catalog service: %v", err)
	}

	// HTTP API
	api := httpapi.New(ready, version, httpapi.Services{
		Auth:      authSvc,
		Directory: directory,
		Catalog:   catalogSvc,
	},
		httpapi.WithRateLimit(cfg.RateLimitBurst, cfg.RateLimitPerSec),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithTrustedProxies(proxies),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// gRPC health
	grpcSrv := httpapi.NewGRPCServer(ready, authSvc).Server()
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	log.Printf("Starting schedule-api %s on %s (grpc %s)", version, srv.Addr, cfg.GRPCAddr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	closeStore()
	log.Println("Stopped")
}
