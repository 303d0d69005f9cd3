package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"schoolboard/internal/adapters/driven/imagestore"
	"schoolboard/internal/adapters/driven/jsonrepo"
	"schoolboard/internal/adapters/driving/httpadapter"
	"schoolboard/internal/assets"
	"schoolboard/internal/config"
	"schoolboard/internal/core/domain"
	"schoolboard/internal/core/service/resource"
	"strings"
	"syscall"
	"time"
)

// resourceUnit is everything wired for one resource
type resourceUnit struct {
	service resource.Service
	repo    *jsonrepo.JsonRepository
}

func main() {
	fmt.Println(assets.BannerString)
	log.Printf("Starting school board server...")

	// load the config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded: Server Address=%s, Data Directory=%s, Public Directory=%s, Public Path=%s",
		cfg.ServerAddr, cfg.DataDir, cfg.PublicDir, cfg.PublicPath)
	log.Printf("Configuration loaded: Max Upload Size=%d, Validate All Uploads=%t, Allowed Origins=%s",
		cfg.MaxUploadSize, cfg.ValidateAllUploads, strings.Join(cfg.AllowOrigins, ","))

	units, err := buildResources(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to set up resources: %v", err)
	}

	// create the context
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := run(appCtx, cfg, units); err != nil {
		log.Fatalf("FATAL: Application run failed: %v", err)
	}

	log.Println("Server exiting gracefully...")
}

// setupSignalHandler configures a listener for OS signals to trigger a graceful shutdown.
func setupSignalHandler(cancelFunc context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM) // listen to OS interrupt signal

	// clean shutdown sequence
	go func() {
		<-quit
		log.Println("Shutdown signal received...")
		cancelFunc()
	}()
}

// applyOverrides folds the deployment switches into the built-in resource definitions
func applyOverrides(spec domain.ResourceSpec, cfg *config.Config) domain.ResourceSpec {
	if cfg.ValidateAllUploads {
		spec.ValidateImages = true
	}
	if spec.Name == domain.Radio.Name {
		spec.IDStrategy = cfg.RadioIDStrategy
	}
	return spec
}

func buildResources(cfg *config.Config) ([]resourceUnit, error) {
	var units []resourceUnit

	for _, spec := range domain.Catalog() {
		spec = applyOverrides(spec, cfg)

		repo, err := jsonrepo.NewJsonRepository(cfg.DataDir, spec)
		if err != nil {
			return nil, fmt.Errorf("%s repository: %w", spec.Name, err)
		}

		images, err := imagestore.New(filepath.Join(cfg.PublicDir, spec.Name))
		if err != nil {
			return nil, fmt.Errorf("%s image store: %w", spec.Name, err)
		}

		log.Printf("INFO: Resource '%s' backed by %s, uploads in %s", spec.Name, repo.Filename(), images.Dir())

		units = append(units, resourceUnit{
			service: resource.NewService(spec, repo, images, cfg.MaxUploadSize),
			repo:    repo,
		})
	}

	return units, nil
}

// startSweeper cleans orphaned uploads once now and again whenever the document changes on disk
func startSweeper(ctx context.Context, unit resourceUnit, grace time.Duration) {
	sweep := func() {
		if _, err := unit.service.SweepOrphans(ctx, grace); err != nil {
			log.Printf("WARN: Orphan sweep failed: %v", err)
		}
	}

	sweep()

	if err := unit.repo.Watch(ctx, sweep); err != nil {
		log.Printf("WARN: Could not watch %s, orphans are only swept at startup: %v", unit.repo.Filename(), err)
	}
}

func run(appCtx context.Context, cfg *config.Config, units []resourceUnit) error {
	services := make([]resource.Service, 0, len(units))
	for _, unit := range units {
		services = append(services, unit.service)

		if cfg.SweepOrphans {
			startSweeper(appCtx, unit, cfg.OrphanGrace)
		}
	}

	apiHandler := httpadapter.NewHandler(services, httpadapter.Options{
		PublicPath:     cfg.PublicPath,
		PublicDir:      cfg.PublicDir,
		MaxUploadSize:  cfg.MaxUploadSize,
		AllowOrigins:   cfg.AllowOrigins,
		TrustProxy:     cfg.TrustProxy,
		RequestTimeout: cfg.RequestTimeout,
	})

	// config the server, leave room past the handler timeout for slow uploads
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           apiHandler.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + 5*time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
	}

	serverErr := make(chan error, 1)

	// start the server
	go func() {
		log.Printf("Server starting on %s", cfg.ServerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// listen for context cancellation
	select {
	case <-appCtx.Done():
		log.Println("Context cancelled, initiating server shutdown.")
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}
