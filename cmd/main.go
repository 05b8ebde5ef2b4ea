package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/senyabanana/instant-call-service/internal/auth"
	"github.com/senyabanana/instant-call-service/internal/db"
	"github.com/senyabanana/instant-call-service/internal/handlers"
	"github.com/senyabanana/instant-call-service/internal/live"
	"github.com/senyabanana/instant-call-service/internal/notify"
	"github.com/senyabanana/instant-call-service/internal/repository"
	"github.com/senyabanana/instant-call-service/internal/repository/memory"
	"github.com/senyabanana/instant-call-service/internal/router"
	"github.com/senyabanana/instant-call-service/internal/router/config"
	"github.com/senyabanana/instant-call-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type storage struct {
	tx            repository.Transactor
	requests      repository.RequestRepository
	estimates     repository.EstimateRepository
	notifications repository.NotificationRepository
	availability  repository.AvailabilityRepository
	sessions      auth.SessionLookup
	close         func()
}

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("error initializing storage: %v", err)
	}
	defer store.close()

	tokenCache := auth.NewTokenCache(store.sessions, cfg.TokenCacheTTL, cfg.TokenCacheSize)
	authenticator := auth.NewAuthenticator(tokenCache, logger)
	hub := live.NewHub(authenticator, logger, cfg.LiveBufferSize)
	delivery := notify.NewDelivery(store.notifications, hub, logger)

	requestService := services.NewRequestService(store.requests, store.availability, store.tx, delivery)
	estimateService := services.NewEstimateService(store.requests, store.estimates, store.tx, delivery)
	selectionService := services.NewSelectionService(store.requests, store.estimates, store.tx, delivery)
	notificationService := services.NewNotificationService(store.notifications, cfg.PullLimitDefault)

	sweeper := services.NewExpirySweeper(store.requests, selectionService, cfg.RequestTTL, cfg.ExpiryInterval, logger)
	sweeper.Start(ctx)

	requestHandler := handlers.NewRequestHandler(requestService, selectionService, logger, cfg.HandlerTimeout)
	estimateHandler := handlers.NewEstimateHandler(estimateService, logger, cfg.HandlerTimeout)
	notificationHandler := handlers.NewNotificationHandler(notificationService, logger, cfg.HandlerTimeout)

	routes := router.InitRoutes(authenticator, hub, requestHandler, estimateHandler, notificationHandler)

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("server is listening on %s (storage: %s)...", cfg.ServerAddress, cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.MemoryDriver:
		store := memory.NewStore()
		if cfg.SeedFile != "" {
			seed, err := memory.LoadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			store.ApplySeed(seed)
		}
		return &storage{
			tx:            store,
			requests:      store,
			estimates:     store,
			notifications: store,
			availability:  store,
			sessions:      store,
			close:         func() {},
		}, nil

	case config.PostgresDriver:
		runDBMigration(cfg.MigrationURL, cfg.DatabaseURL())

		dbPool, err := db.InitDb(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &storage{
			tx:            repository.NewPostgresTransactor(dbPool),
			requests:      repository.NewPostgresRequestRepository(dbPool),
			estimates:     repository.NewPostgresEstimateRepository(dbPool),
			notifications: repository.NewPostgresNotificationRepository(dbPool),
			availability:  repository.NewPostgresAvailabilityRepository(dbPool),
			sessions:      repository.NewPostgresSessionRepository(dbPool),
			close:         dbPool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
