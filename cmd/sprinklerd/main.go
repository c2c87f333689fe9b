// Sprinkler Core - Irrigation Controller
//
// This is the main entry point for the Sprinkler Core daemon. It connects
// to the MQTT broker as the privileged host client, arms the watering
// scheduler from the persisted device configs, and serves the operator
// HTTP API and dashboard WebSocket stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	_ "github.com/verdantlabs/sprinkler-core/migrations"

	"github.com/verdantlabs/sprinkler-core/internal/api"
	"github.com/verdantlabs/sprinkler-core/internal/auth"
	"github.com/verdantlabs/sprinkler-core/internal/broker"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/config"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/database"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/influxdb"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/logging"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/mqtt"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/ntp"
	"github.com/verdantlabs/sprinkler-core/internal/sprinkler"
	"github.com/verdantlabs/sprinkler-core/internal/topic"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// mqttConnectTimeout bounds the initial broker connect retries.
const mqttConnectTimeout = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // linear wiring sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sprinkler Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker with exponential backoff; the broker often
	// comes up alongside this daemon and needs a moment.
	mqttClient, err := connectMQTT(cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Core domain components
	store := sprinkler.NewSQLiteRepository(db.DB)
	creds := auth.NewCredentials(db.DB)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("loading scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	scheduler := sprinkler.NewScheduler(loc, mqttClient, store)
	scheduler.SetLogger(log)
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.LoadAll(ctx); err != nil {
		return fmt.Errorf("arming schedules: %w", err)
	}
	log.Info("watering schedules armed", "timezone", cfg.Scheduler.Timezone)

	router := sprinkler.NewRouter(store, mqttClient, scheduler, sprinkler.Defaults{
		Cron:       cfg.Scheduler.DefaultCron,
		DurationMs: cfg.Scheduler.DefaultDurationMs,
	})
	router.SetLogger(log)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		telemetry := influxdb.NewTelemetry(influxClient)
		telemetry.SetLogger(log)
		router.SetTelemetry(telemetry)

		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// NTP time service (optional): devices set their clocks here before
	// arming local schedules
	if cfg.NTP.Enabled {
		ntpServer, ntpErr := ntp.Listen(cfg.NTP)
		if ntpErr != nil {
			return fmt.Errorf("starting NTP service: %w", ntpErr)
		}
		ntpServer.SetLogger(log)
		defer func() {
			log.Info("closing NTP service")
			if closeErr := ntpServer.Close(); closeErr != nil {
				log.Error("error closing NTP service", "error", closeErr)
			}
		}()
		log.Info("NTP service listening", "address", ntpServer.Addr().String())
	}

	// Broker integration: session registry, authorization gate, hooks
	registry := broker.NewRegistry()
	registry.SetLogger(log)
	hooks := broker.NewHooks(registry, broker.NewAuthorizer(registry), creds)
	hooks.SetLogger(log)
	hooks.SetSinks(router, router)

	if err := subscribeRoutes(mqttClient, hooks, registry, log); err != nil {
		return fmt.Errorf("subscribing to device topics: %w", err)
	}

	// Start HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Store:     store,
		Sessions:  registry,
		Creds:     creds,
		Router:    router,
		Scheduler: scheduler,
		MQTT:      mqttClient,
		DB:        db,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. Scheduler
	// 4. MQTT
	// 5. Database

	log.Info("Sprinkler Core stopped")
	return nil
}

// connectMQTT dials the broker, retrying transient failures with
// exponential backoff.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = mqttConnectTimeout

	var client *mqtt.Client
	err := backoff.Retry(func() error {
		var connectErr error
		client, connectErr = mqtt.Connect(cfg)
		if connectErr != nil {
			log.Warn("MQTT connect attempt failed", "error", connectErr)
		}
		return connectErr
	}, bo)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// subscribeRoutes wires the host client's subscriptions into the broker
// hook surface. The device id embedded in the topic (or, for the init
// topic, the payload) identifies the sender; every message passes the
// publish authorization gate before reaching the router, so a
// misbehaving broker cannot smuggle host-reserved commands through.
//
// The broker echoes our own publishes back through these
// subscriptions. Echoes are mapped to the empty loopback sender so the
// router only logs them; acting on them would loop (the scheduler's
// status publishes would re-register sessions for devices that are
// gone).
func subscribeRoutes(client *mqtt.Client, hooks *broker.Hooks, registry *broker.Registry, log *logging.Logger) error {
	topics := mqtt.Topics{}
	routes := &messageRoutes{hooks: hooks, registry: registry, log: log}

	subscriptions := []struct {
		pattern string
		handler mqtt.InboundHandler
	}{
		{mqtt.TopicInit, routes.route},
		{topics.AllHeartbeats(), routes.heartbeat},
		{topics.AllWateringLogs(), routes.route},
		{topics.AllSystemLogs(), routes.route},
		{topics.AllStatuses(), routes.status},
	}

	for _, sub := range subscriptions {
		if err := client.SubscribeInbound(sub.pattern, 1, sub.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", sub.pattern, err)
		}
	}
	return nil
}

// messageRoutes holds the inbound message handlers bridging MQTT
// subscriptions to the broker hook surface.
type messageRoutes struct {
	hooks    *broker.Hooks
	registry *broker.Registry
	log      *logging.Logger
}

// route passes one message through the publish authorization gate and,
// if accepted, to the router. The sender is the device id embedded in
// the topic (the payload for esp/init); loopback echoes map to the
// empty sender, which the router logs without acting on.
func (m *messageRoutes) route(msg mqtt.Message) error {
	sender := topic.Parse(msg.Topic).DeviceID
	if msg.Topic == mqtt.TopicInit {
		sender = string(msg.Payload)
	}
	if msg.Loopback {
		sender = ""
	}

	if err := m.hooks.OnPublishAttempt(sender, msg.Topic, msg.Payload); err != nil {
		m.log.Warn("publish rejected", "sender", sender, "topic", msg.Topic, "error", err)
		return nil
	}
	m.hooks.OnPublishAccepted(sender, msg.Topic, msg.Payload)
	return nil
}

// heartbeat doubles as session recovery: heartbeats are device-only
// and never retained, so a ping from an unregistered device means the
// registry missed its birth message.
func (m *messageRoutes) heartbeat(msg mqtt.Message) error {
	deviceID := topic.Parse(msg.Topic).DeviceID
	if !msg.Loopback && !msg.Retained && !m.registry.IsDevice(deviceID) {
		if err := m.registry.Register(deviceID, true); err != nil {
			m.log.Warn("duplicate device session", "device_id", deviceID)
		}
	}
	return m.route(msg)
}

// status drives the session registry from birth/LWT messages: ALIVE
// registers the device, DEAD runs the full disconnect path. Only live
// device publishes count. Loopback echoes are the host's own state
// mirroring, and retained replays after a restart describe a
// connection that may be long gone.
func (m *messageRoutes) status(msg mqtt.Message) error {
	if msg.Loopback {
		return m.route(msg)
	}
	if msg.Retained {
		m.log.Debug("retained status replay ignored", "topic", msg.Topic)
		return nil
	}

	deviceID := topic.Parse(msg.Topic).DeviceID
	switch sprinkler.Status(msg.Payload) {
	case sprinkler.StatusAlive:
		if err := m.registry.Register(deviceID, true); err != nil {
			m.log.Warn("duplicate device session", "device_id", deviceID)
			return nil
		}
	case sprinkler.StatusDead:
		m.hooks.OnDisconnect(deviceID, false)
		return nil
	}

	return m.route(msg)
}

// getConfigPath returns the configuration file path.
// Uses SPRINKLER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SPRINKLER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
