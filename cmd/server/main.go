package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skybrief/turbcast/internal/advisory"
	"github.com/skybrief/turbcast/internal/advisory/gemini"
	"github.com/skybrief/turbcast/internal/api"
	"github.com/skybrief/turbcast/internal/config"
	"github.com/skybrief/turbcast/internal/flightdata"
	"github.com/skybrief/turbcast/internal/forecast"
	"github.com/skybrief/turbcast/internal/metrics"
	"github.com/skybrief/turbcast/internal/pireps"
	"github.com/skybrief/turbcast/internal/route"
	"github.com/skybrief/turbcast/internal/severity"
	"github.com/skybrief/turbcast/internal/websocket"
	"github.com/skybrief/turbcast/pkg/logger"
)

// Version is set at build time
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Secrets may live in a .env file during development
	_ = godotenv.Load()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting turbcast server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Error("Failed to register metrics", logger.Error(err))
		os.Exit(1)
	}

	// Route providers, in fallback order
	providerTimeout := time.Duration(cfg.RouteData.RequestTimeoutSeconds) * time.Second
	var providers []flightdata.Provider
	if cfg.RouteData.PrimaryBaseURL != "" {
		providers = append(providers, flightdata.NewAeroDataBoxProvider(
			cfg.RouteData.PrimaryBaseURL,
			cfg.RouteData.PrimaryAPIHost,
			cfg.RouteData.PrimaryAPIKey,
			providerTimeout,
			log,
		))
	}
	if cfg.RouteData.SecondaryBaseURL != "" {
		providers = append(providers, flightdata.NewAviationStackProvider(
			cfg.RouteData.SecondaryBaseURL,
			cfg.RouteData.SecondaryAPIKey,
			providerTimeout,
			log,
		))
	}

	var staticProvider *flightdata.StaticProvider
	var airportLookup flightdata.AirportLookup
	if cfg.RouteData.StaticDBPath != "" {
		staticProvider, err = flightdata.NewStaticProvider(cfg.RouteData.StaticDBPath, log)
		if err != nil {
			log.Error("Failed to open static route database", logger.Error(err))
			os.Exit(1)
		}
		defer staticProvider.Close()
		providers = append(providers, staticProvider)
		airportLookup = staticProvider
	}

	if len(providers) == 0 {
		log.Error("No route data providers configured")
		os.Exit(1)
	}

	resolver := flightdata.NewResolver(providers, airportLookup, flightdata.BreakerConfig{
		FailureThreshold: uint32(cfg.RouteData.BreakerFailureThreshold),
		OpenTimeout:      time.Duration(cfg.RouteData.BreakerOpenSeconds) * time.Second,
	}, log)

	segmenter := route.NewSegmenter(route.Config{
		SegmentCount:         cfg.Forecast.SegmentCount,
		GroundspeedKmh:       cfg.Forecast.GroundspeedKmh,
		MinDuration:          time.Duration(cfg.Forecast.MinDurationMinutes) * time.Minute,
		CruiseAltitudeFt:     cfg.Forecast.CruiseAltitudeFt,
		TransitionAltitudeFt: cfg.Forecast.TransitionAltitudeFt,
	}, log)

	// Observation feed; optional, the forecast degrades without it
	var observations forecast.ObservationSource
	if cfg.Observations.BaseURL != "" {
		pirepClient := pireps.NewClient(
			cfg.Observations.BaseURL,
			time.Duration(cfg.Observations.RequestTimeoutSeconds)*time.Second,
			cfg.Observations.MaxRetries,
			log,
		)
		observations = pireps.NewSource(
			pirepClient,
			cfg.Observations.MaxDistanceKm,
			cfg.Observations.MaxAgeMinutes,
			log,
		)
	} else {
		log.Info("No observation feed configured, forecasts will be route-only")
	}

	// WebSocket hub for forecast push
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	cache := forecast.NewCache(forecast.CacheConfig{
		BasicTTL:   time.Duration(cfg.Cache.BasicTTLMinutes) * time.Minute,
		FullTTL:    time.Duration(cfg.Cache.FullTTLMinutes) * time.Minute,
		MaxEntries: cfg.Cache.MaxEntries,
	}, log)

	forecastService := forecast.NewService(
		resolver,
		segmenter,
		observations,
		severity.NewEngine(log),
		cache,
		websocket.NewForecastNotifier(wsServer),
		log,
	)
	if err := forecastService.Start(time.Duration(cfg.Cache.SweepIntervalMinutes) * time.Minute); err != nil {
		log.Error("Failed to start forecast service", logger.Error(err))
		os.Exit(1)
	}

	// Optional plain-language advisory
	var advisoryService *advisory.Service
	if cfg.Advisory.Enabled {
		geminiClient := gemini.NewClient(
			cfg.Advisory.APIKey,
			time.Duration(cfg.Advisory.TimeoutSeconds)*time.Second,
			log,
		)
		advisoryService = advisory.NewService(geminiClient, advisory.ChatConfig{
			Model:       cfg.Advisory.Model,
			Temperature: cfg.Advisory.Temperature,
			MaxTokens:   cfg.Advisory.MaxTokens,
		}, log)
		log.Info("Advisory service enabled", logger.String("model", cfg.Advisory.Model))
	} else {
		log.Info("Advisory service disabled in configuration")
	}

	handler := api.NewHandler(forecastService, advisoryService, wsServer, cfg, log)
	router := api.NewRouter(handler)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	log.Info("Stopping forecast service...")
	forecastService.Stop()
	log.Info("Forecast service stopped.")

	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}
