package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"google.golang.org/grpc"

	"petit-storefront/internal/api"
	"petit-storefront/internal/backend"
	"petit-storefront/internal/catalog"
	"petit-storefront/internal/chat"
	"petit-storefront/internal/checkout"
	"petit-storefront/internal/config"
	"petit-storefront/internal/events"
	"petit-storefront/internal/housekeeping"
	"petit-storefront/internal/management"
	"petit-storefront/internal/media"
	"petit-storefront/internal/reconcile"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

const (
	defaultAppName = "PetitStorefront" // App name for logger
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}
	logger := log.New(os.Stdout, fmt.Sprintf("[%s] ", defaultAppName), log.LstdFlags|log.Lshortfile|log.Lmicroseconds)
	logger.Println("INFO: Starting service...")

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("FATAL: Error loading configuration: %v", err)
	}
	logger.Printf("INFO: Configuration loaded for APP_ENV: %s, LogLevel: %s", cfg.AppEnv, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Client Storage ---
	storage, err := openStorage(ctx, logger, cfg.Storage)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize client storage: %v", err)
	}

	// --- Media Hosting ---
	uploader, closeMedia, err := openMedia(ctx, logger, cfg.Media)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize media host: %v", err)
	}
	hoster := media.NewHoster(uploader)

	// --- PayPal ---
	var gateway checkout.PayPalGateway
	if cfg.PayPal.Enabled() {
		pp, err := checkout.NewPayPal(ctx, cfg.PayPal)
		if err != nil {
			logger.Fatalf("FATAL: Failed to initialize PayPal client: %v", err)
		}
		gateway = pp
		logger.Printf("INFO: PayPal checkout enabled in %s mode.", cfg.PayPal.Mode)
	} else {
		logger.Println("WARN: PAYPAL_CLIENT_ID or PAYPAL_SECRET unset, PayPal checkout disabled.")
	}

	// --- Services ---
	mc := backend.NewManagementClient(cfg.Backend.ManagementURL, cfg.Backend.Timeout)
	sc := backend.NewSellerClient(cfg.Backend.SellerURL, cfg.Backend.Timeout)
	logger.Printf("INFO: Backends: management=%s seller=%s", cfg.Backend.ManagementURL, cfg.Backend.SellerURL)

	httpAPIHandler := api.NewHTTPHandler(api.Deps{
		Storage:      storage,
		Bus:          events.NewBus(),
		Session:      session.NewService(mc, hoster),
		Management:   management.NewService(mc, sc, reconcile.New(mc), hoster),
		Catalog:      catalog.NewService(mc),
		Checkout:     checkout.NewService(mc, gateway, checkout.NoticeHooks()),
		Chat:         chat.NewService(sc),
		CookieSecure: cfg.HttpServer.CookieSecure,
	})

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Printf("INFO: HTTP server listening on port %s", cfg.HttpServer.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("FATAL: HTTP server ListenAndServe error: %v", err)
		}
		logger.Println("INFO: HTTP server has stopped.")
	}()

	// --- Setup & Start gRPC Health Server ---
	grpcServer := api.NewGRPCServer(storage, cfg.GrpcServer.ProbeInterval)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.Fatalf("FATAL: Failed to listen for gRPC on port %s: %v", cfg.GrpcServer.Port, err)
	}
	go grpcServer.RunProbes(ctx)

	go func() {
		logger.Printf("INFO: gRPC server listening on port %s", cfg.GrpcServer.Port)
		if err := grpcServer.Server.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatalf("FATAL: gRPC server Serve error: %v", err)
		}
		logger.Println("INFO: gRPC server has stopped.")
	}()

	// --- Idle Storage Purge ---
	purger := housekeeping.NewPurger(storage, cfg.Storage.IdleTTL)
	scheduler, err := purger.Schedule(cfg.Storage.PurgeSchedule)
	if err != nil {
		logger.Fatalf("FATAL: Invalid STORAGE_PURGE_SCHEDULE %q: %v", cfg.Storage.PurgeSchedule, err)
	}
	scheduler.Start()
	logger.Printf("INFO: Idle storage purge scheduled (%s, ttl %s).", cfg.Storage.PurgeSchedule, cfg.Storage.IdleTTL)

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, cancel, httpServer, grpcServer, scheduler, storage, closeMedia, shutdownComplete)

	<-shutdownComplete
	logger.Println("INFO: Service shutdown sequence finished.")
}

func openStorage(ctx context.Context, logger *log.Logger, cfg config.StorageConfig) (store.ClientStorer, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Println("INFO: Database connection established and client_storage schema ready.")
		return pg, nil
	case "mongo":
		ms, err := store.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		logger.Printf("INFO: MongoDB connection established (database %s).", cfg.Mongo.Database)
		return ms, nil
	default:
		logger.Println("WARN: Using in-memory client storage; carts and sessions are lost on restart.")
		return store.NewMemoryStore(), nil
	}
}

// openMedia returns a nil uploader when hosting is off. The returned close
// func is never nil.
func openMedia(ctx context.Context, logger *log.Logger, cfg config.MediaConfig) (media.Uploader, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "cloudinary":
		up, err := media.NewCloudinary(cfg.CloudinaryURL, cfg.Folder)
		if err != nil {
			return nil, noop, err
		}
		logger.Println("INFO: Images are hosted on Cloudinary.")
		return up, noop, nil
	case "gcs":
		up, err := media.NewGCS(ctx, cfg.GCSBucket, cfg.Folder)
		if err != nil {
			return nil, noop, err
		}
		logger.Printf("INFO: Images are hosted in GCS bucket %s.", cfg.GCSBucket)
		return up, up.Close, nil
	default:
		logger.Println("INFO: Media hosting disabled, data URIs are sent as is.")
		return nil, noop, nil
	}
}

func setupBaseMiddleware(router *chi.Mux, logger *log.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	// request timeouts are applied per route group; the event stream has none
	logger.Println("INFO: Base HTTP middleware registered.")
}

func waitForShutdown(
	logger *log.Logger,
	cancel context.CancelFunc,
	httpServer *http.Server,
	grpcServer *api.GRPCServer,
	scheduler *cron.Cron,
	storage store.ClientStorer,
	closeMedia func() error,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Printf("INFO: Received signal: %s. Starting graceful shutdown...", receivedSignal)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// stop probes first so health reports NOT_SERVING while draining
	cancel()
	grpcServer.Shutdown()

	logger.Println("INFO: Attempting to gracefully shut down gRPC server...")
	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.Server.GracefulStop()
		close(stoppedGrpc)
	}()

	logger.Println("INFO: Attempting to gracefully shut down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("WARN: HTTP server graceful shutdown failed: %v", err)
	} else {
		logger.Println("INFO: HTTP server gracefully shut down.")
	}

	select {
	case <-stoppedGrpc:
		logger.Println("INFO: gRPC server gracefully shut down.")
	case <-shutdownCtx.Done():
		logger.Printf("WARN: gRPC server graceful shutdown timed out: %v", shutdownCtx.Err())
		grpcServer.Server.Stop()
		logger.Println("INFO: gRPC server forced stop.")
	}

	select {
	case <-scheduler.Stop().Done():
		logger.Println("INFO: Purge scheduler stopped.")
	case <-shutdownCtx.Done():
		logger.Println("WARN: Purge job still running at shutdown.")
	}

	if err := closeMedia(); err != nil {
		logger.Printf("WARN: Error closing media client: %v", err)
	}
	if err := storage.Close(); err != nil {
		logger.Printf("WARN: Error closing client storage: %v", err)
	}

	logger.Println("INFO: Graceful shutdown sequence completed.")
}
