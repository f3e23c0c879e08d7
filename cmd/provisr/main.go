package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/provisr/internal/adapter/cluster"
	"github.com/neomorfeo/provisr/internal/adapter/fsm"
	"github.com/neomorfeo/provisr/internal/adapter/manifest"
	provisrnats "github.com/neomorfeo/provisr/internal/adapter/nats"
	"github.com/neomorfeo/provisr/internal/adapter/otel"
	"github.com/neomorfeo/provisr/internal/adapter/realm"
	"github.com/neomorfeo/provisr/internal/adapter/registry"
	"github.com/neomorfeo/provisr/internal/adapter/ristretto"
	provisrriver "github.com/neomorfeo/provisr/internal/adapter/river"
	"github.com/neomorfeo/provisr/internal/adapter/sqlite"
	"github.com/neomorfeo/provisr/internal/app"
	"github.com/neomorfeo/provisr/internal/config"
	"github.com/neomorfeo/provisr/internal/domain"

	handler "github.com/neomorfeo/provisr/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer shutdownProviders(providers)

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	identityStore, err := sqlite.NewFromDB(db)
	if err != nil {
		return err
	}
	var identity domain.IdentityStore = otel.NewTracingIdentityStore(identityStore)

	registryStore, err := registry.New(cfg.Registry.Root)
	if err != nil {
		return err
	}

	activation, err := ristretto.New(cfg.Cache.Sweep)
	if err != nil {
		return err
	}
	defer activation.Close()

	var clusterOpts []cluster.Option
	if cfg.Cluster.Token != "" {
		clusterOpts = append(clusterOpts, cluster.WithToken(cfg.Cluster.Token))
	}
	if cfg.Cluster.Timeout > 0 {
		clusterOpts = append(clusterOpts, cluster.WithTimeout(cfg.Cluster.Timeout))
	}
	orchestrator := cluster.New(cfg.Cluster.URL, clusterOpts...)

	var broadcaster domain.Broadcaster = provisrnats.Nop{}
	var receiver *provisrnats.Receiver
	if cfg.NATS.URL != "" {
		bus, err := provisrnats.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer bus.Close()
		broadcaster = otel.NewTracingBroadcaster(bus)

		receiver = provisrnats.NewReceiver(bus, activation, registryStore, registryStore)
		if err := receiver.Start(); err != nil {
			return err
		}
		defer receiver.Stop()
	}

	jobs, err := provisrriver.Setup(ctx, db, provisrriver.LogNotifier{})
	if err != nil {
		return err
	}

	// --- Application ---
	persistor := app.NewPersistor(identity, registryStore, app.PersistorConfig{
		UsernameUniqueAcrossTenants: cfg.Tenancy.UsernameUniqueAcrossTenants,
		DefaultServices:             cfg.Tenancy.DefaultServices,
		CompulsoryServices:          cfg.Tenancy.CompulsoryServices,
	})

	lifecycle := app.NewLifecycleService(
		identity,
		persistor,
		realm.New(cfg.Realm.StoreType, cfg.Realm.Connection, cfg.Realm.Properties),
		registryStore,
		registryStore,
		broadcaster,
		app.NewListenerRegistry(),
		fsm.New(),
		activation,
		provisrriver.NewPublisher(jobs),
		app.LifecycleConfig{
			RootDomain:        cfg.Tenancy.RootDomain,
			PublicMultiDomain: cfg.Tenancy.PublicMultiDomain,
			DeletionEnabled:   cfg.Tenancy.DeletionEnabled,
			DefaultPageSize:   cfg.Paging.DefaultLimit,
			MaxPageSize:       cfg.Paging.MaxLimit,
		},
	)

	deployments := app.NewDeploymentService(manifest.New(cfg.Manifests.Root), orchestrator)
	tenancy := app.NewTenancyService(orchestrator)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("provisr", otelchi.WithChiRoutes(router)))
	router.Use(handler.CallerContext)

	api := humachi.New(router, huma.DefaultConfig("provisr", "0.1.0"))
	handler.RegisterTenants(api, lifecycle)
	handler.RegisterDeployments(api, deployments)
	handler.RegisterTenancy(api, tenancy)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := jobs.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return jobs.Stop(stopCtx)
	})

	group.Go(func() error {
		slog.Info("provisr listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	slog.Info("stopped")
	return err
}

func shutdownProviders(p *otel.Providers) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		slog.Error("otel shutdown", "error", err)
	}
}
