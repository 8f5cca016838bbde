package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/doc-audio-service/internal/api"
	"github.com/lexiqai/doc-audio-service/internal/config"
	"github.com/lexiqai/doc-audio-service/internal/events"
	"github.com/lexiqai/doc-audio-service/internal/jobs"
	"github.com/lexiqai/doc-audio-service/internal/observability"
	"github.com/lexiqai/doc-audio-service/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Container health check: `server healthcheck`
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(cfg))
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server exited gracefully")
}

func run(cfg *config.Config) error {
	logger := observability.GetLogger()
	logger.Info().
		Str("port", cfg.Port).
		Str("grpc_port", cfg.GRPCPort).
		Str("tts_provider", cfg.TTSProvider).
		Int("max_chunk_size", cfg.MaxChunkSize).
		Int("min_chunk_size", cfg.MinChunkSize).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Document audio service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	voices, err := tts.LoadVoices(cfg.VoicesFile)
	if err != nil {
		return err
	}

	store, err := jobs.OpenStore(ctx, cfg.JobStorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := jobs.NewRegistry(store)
	if n, err := registry.Load(ctx); err != nil {
		return fmt.Errorf("load jobs: %w", err)
	} else if n > 0 {
		logger.Info().Int("jobs", n).Msg("Restored job records")
	}

	pipeline, err := jobs.NewPipeline(cfg)
	if err != nil {
		return err
	}

	managerCfg := jobs.ManagerConfig{
		UploadDir:   cfg.UploadPath,
		OutputDir:   cfg.AudioOutputPath,
		MaxFileSize: cfg.MaxFileSizeBytes(),
		TTL:         time.Duration(cfg.JobTTLMinutes) * time.Minute,
	}
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, time.Duration(cfg.NATSTimeoutMs)*time.Millisecond)
		if err != nil {
			return err
		}
		defer publisher.Close()
		managerCfg.Notifier = publisher
	}

	manager, err := jobs.NewManager(registry, pipeline.Converter, managerCfg)
	if err != nil {
		return err
	}

	// Checks are built here to avoid import cycles
	checks := []observability.DependencyCheck{
		{Name: "job_store", Check: manager.Healthy},
		{Name: "ffmpeg", Check: func(ctx context.Context) (bool, error) {
			if !pipeline.FFmpeg.Available(ctx) {
				return false, errors.New("ffmpeg not found, merging falls back to header-skip concatenation")
			}
			return true, nil
		}, Optional: true},
	}
	if publisher != nil {
		checks = append(checks, observability.DependencyCheck{Name: "nats", Check: publisher.Healthy, Optional: true})
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Manager:        manager,
		Voices:         voices,
		DefaultVoice:   jobs.DefaultVoice(cfg),
		MaxFileSize:    cfg.MaxFileSizeBytes(),
		AllowedOrigins: cfg.Origins(),
		MetricsEnabled: cfg.MetricsEnabled,
		Checks:         checks,
	})

	// No write timeout: downloads and progress streams can be long lived
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/api/convert", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var grpcHealth *observability.GRPCHealth
	if cfg.GRPCPort != "0" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcHealth = observability.NewGRPCHealth(checks...)
		g.Go(func() error { return grpcHealth.Serve(lis) })
		g.Go(func() error {
			grpcHealth.Watch(gctx, 30*time.Second)
			return nil
		})
	}

	g.Go(func() error {
		manager.RunJanitor(gctx, time.Duration(cfg.JanitorInterval)*time.Second)
		return nil
	})

	// Wait for a signal or a failed listener, then shut everything down
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if grpcHealth != nil {
			grpcHealth.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := manager.Wait(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Conversions still running at shutdown")
		}
		return nil
	})

	return g.Wait()
}

func healthcheck(cfg *config.Config) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := observability.ProbeGRPC(ctx, "127.0.0.1:"+cfg.GRPCPort); err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		return 1
	}
	return 0
}
