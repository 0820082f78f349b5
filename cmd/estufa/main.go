// Estufa Core - greenhouse broker bridge
//
// This is the main entry point for the Estufa Core service. It keeps a
// resilient link to the greenhouse MQTT broker, persists telemetry, device
// status and alerts to SQLite, publishes manual commands, and serves the
// HTTP API and live WebSocket feed used by the web tier.
//
// The process runs without a broker: when the connection settings are
// incomplete the link is reported as not_configured and only the API runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/estufa-core/migrations"

	"github.com/nerrad567/estufa-core/internal/api"
	"github.com/nerrad567/estufa-core/internal/bridge"
	"github.com/nerrad567/estufa-core/internal/device"
	"github.com/nerrad567/estufa-core/internal/infrastructure/config"
	"github.com/nerrad567/estufa-core/internal/infrastructure/database"
	"github.com/nerrad567/estufa-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/estufa-core/internal/infrastructure/logging"
	"github.com/nerrad567/estufa-core/internal/infrastructure/metrics"
	"github.com/nerrad567/estufa-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/estufa-core/internal/link"
	"github.com/nerrad567/estufa-core/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupCheckTimeout bounds the initial database health check.
const startupCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Estufa Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	checkCtx, cancelCheck := context.WithTimeout(ctx, startupCheckTimeout)
	err = db.HealthCheck(checkCtx)
	cancelCheck()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	st := store.New(db)
	m := metrics.New()

	influxClient := connectInflux(ctx, cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	apiLog := log.With("component", "api")
	hub := api.NewHub(cfg.WebSocket, apiLog, m)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	recorder := link.NewRecorder(st, cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)

	var (
		publisher device.Publisher
		bridgeWG  sync.WaitGroup
	)
	if cfg.MQTT.Configured() {
		client, clientErr := mqtt.New(cfg.MQTT, mqtt.WithLogger(log.With("component", "mqtt")))
		if clientErr != nil {
			return fmt.Errorf("creating MQTT client: %w", clientErr)
		}
		publisher = client

		opts := bridge.Options{
			Transport:    client,
			Store:        st,
			Recorder:     recorder,
			Hub:          hub,
			Logger:       log.With("component", "bridge"),
			Metrics:      m,
			InitialDelay: time.Duration(cfg.MQTT.Reconnect.InitialDelay) * time.Second,
			RetryDelay:   time.Duration(cfg.MQTT.Reconnect.RetryDelay) * time.Second,
		}
		if influxClient != nil {
			opts.Mirror = influxClient
		}
		b, bridgeErr := bridge.New(opts)
		if bridgeErr != nil {
			return fmt.Errorf("creating bridge: %w", bridgeErr)
		}

		bridgeWG.Add(1)
		go func() {
			defer bridgeWG.Done()
			if runErr := b.Run(ctx); runErr != nil {
				log.Error("bridge stopped with error", "error", runErr)
			}
		}()
		log.Info("broker bridge started",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", client.ClientID(),
		)
	} else {
		missing := cfg.MQTT.Missing()
		log.Warn("MQTT broker not configured, running API only", "missing", missing)
		cause := fmt.Errorf("missing broker settings: %v", missing)
		if _, trErr := recorder.Transition(ctx, link.StateNotConfigured, cause); trErr != nil {
			log.Warn("recording link state", "error", trErr)
		}
	}
	// Wait for the bridge before the deferred database close.
	defer bridgeWG.Wait()

	dispatcher := device.NewDispatcher(publisher, st, device.DispatcherConfig{
		MaxFailures: cfg.MQTT.Breaker.MaxFailures,
		OpenTimeout: time.Duration(cfg.MQTT.Breaker.OpenTimeout) * time.Second,
	},
		device.WithDispatcherLogger(log.With("component", "dispatcher")),
		device.WithDispatcherMetrics(m),
	)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   apiLog,
		Readings: st,
		Statuses: st,
		Alerts:   st,
		Link:     recorder,
		Commands: dispatcher,
		DB:       db,
		Hub:      hub,
		Metrics:  m,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, bridge (which
	// closes the broker link and records the stopped state), WebSocket
	// hub, InfluxDB, database.
	return nil
}

// connectInflux opens the optional InfluxDB mirror. Any failure other than
// "disabled" is logged and the service runs without the mirror.
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(ctx, cfg)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		return nil
	case err != nil:
		log.Warn("InfluxDB unavailable, continuing without mirror", "url", cfg.URL, "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// getConfigPath returns the configuration file path.
// Uses ESTUFA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ESTUFA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
