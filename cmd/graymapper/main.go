// Gray Logic Mapper - cloud operation mapper for edge gateways
//
// This is the main entry point of the mapper. It bridges operation traffic
// on the local MQTT bus to the cloud SmartREST protocol:
//   - Capability metadata becomes supported-operations announcements
//   - Command states become cloud status records
//   - File transfers and operation logs move through the cloud HTTP proxy
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-mapper/migrations"

	"github.com/nerrad567/gray-logic-mapper/internal/api"
	"github.com/nerrad567/gray-logic-mapper/internal/capability"
	"github.com/nerrad567/gray-logic-mapper/internal/cloudhttp"
	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/mapper"
	"github.com/nerrad567/gray-logic-mapper/internal/metrics"
	"github.com/nerrad567/gray-logic-mapper/internal/operations"
	"github.com/nerrad567/gray-logic-mapper/internal/oplog"
	"github.com/nerrad567/gray-logic-mapper/internal/transfer"
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

// drainTimeout bounds how long shutdown waits for running operations.
const drainTimeout = 30 * time.Second

const dirPermissions = 0750

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Mapper",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", conversion.ConfigFailure(err))
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "external_id", cfg.Device.ExternalID)

	if dirErr := prepareDirs(cfg.Mapper.OperationsDir, cfg.Mapper.FileTransferDir); dirErr != nil {
		return dirErr
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "schema_version", schema)

	topics := mqtt.NewTopics(cfg.MQTT.LocalPrefix, cfg.Cloud.TopicPrefix)

	entities := entity.NewRegistry(entity.Options{
		Repo:           entity.NewSQLiteRepository(db.DB),
		MainExternalID: cfg.Device.ExternalID,
		ChildType:      cfg.Device.ChildType,
		AutoRegister:   cfg.Mapper.AutoRegister,
		Topics:         topics,
	})
	entities.SetLogger(log.Component("entity"))
	if refreshErr := entities.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entity registry: %w", refreshErr)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	promMetrics := metrics.New()
	sinks := observers{promMetrics}
	recorders := operations.Recorders{promMetrics}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB, cfg.Device.ExternalID)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		sinks = append(sinks, influxClient)
		recorders = append(recorders, influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	handler, err := newHandler(cfg, mqttClient, topics, sinks, recorders, log)
	if err != nil {
		return err
	}
	promMetrics.TrackInFlight(handler.InFlight)

	registrar := capability.NewRegistrar(capability.Options{
		OperationsDir: cfg.Mapper.OperationsDir,
		Observer:      sinks,
	})
	registrar.SetLogger(log.Component("capability"))

	converter, err := mapper.NewConverter(mapper.Options{
		Client:         mqttClient,
		Entities:       entities,
		Capabilities:   registrar,
		Dispatcher:     handler,
		Observer:       promMetrics,
		Topics:         topics,
		MaxPayloadSize: cfg.Mapper.MaxPayloadSize,
	})
	if err != nil {
		return fmt.Errorf("creating converter: %w", err)
	}
	converter.SetLogger(log.Component("mapper"))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Mapper.WatchOperations {
		watcher := capability.NewWatcher(capability.WatcherOptions{
			Root:     cfg.Mapper.OperationsDir,
			OnChange: converter.Reannounce,
		})
		watcher.SetLogger(log.Component("watcher"))
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if err := converter.Start(gctx); err != nil {
		return fmt.Errorf("starting converter: %w", err)
	}

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:       cfg.API,
			Logger:       log.Component("api"),
			Version:      version,
			MQTT:         mqttClient,
			Database:     db,
			Operations:   handler,
			Entities:     entities,
			Capabilities: registrar,
			Metrics:      promMetrics.Handler(),
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	drainOperations(handler, log)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("background task failed: %w", err)
	}

	log.Info("Gray Logic Mapper stopped")
	return nil
}

// newHandler wires the operation handler to its transfer and cloud collaborators.
func newHandler(cfg *config.Config, client *mqtt.Client, topics mqtt.Topics, sinks observers, recorders operations.Recorders, log *logging.Logger) (*operations.Handler, error) {
	transfers, err := transfer.NewHTTPClient(transfer.Options{
		CloudURL:     cfg.Cloud.HTTPURL,
		Username:     cfg.Cloud.Username,
		Password:     cfg.Cloud.Password,
		MaxTransfers: cfg.Mapper.MaxTransfers,
		Timeout:      cfg.GetOperationTimeout(),
		Observer:     sinks,
	})
	if err != nil {
		return nil, fmt.Errorf("creating transfer client: %w", err)
	}
	transfers.SetLogger(log.Component("transfer"))

	cloud, err := cloudhttp.NewClient(cloudhttp.Options{
		BaseURL:  cfg.Cloud.HTTPURL,
		Username: cfg.Cloud.Username,
		Password: cfg.Cloud.Password,
		Timeout:  cfg.GetCloudRequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating cloud client: %w", err)
	}

	handler := operations.NewHandler(operations.Options{
		Publisher:       client,
		Uploader:        transfers,
		Downloader:      transfers,
		Cloud:           cloud,
		Logs:            oplog.NewStore(oplog.DefaultMaxSize),
		Recorder:        recorders,
		Topics:          topics,
		AutoLogUpload:   cfg.Mapper.AutoLogUpload,
		SoftwareAPI:     cfg.Mapper.SoftwareManagementAPI,
		FileTransferDir: cfg.Mapper.FileTransferDir,
		FileTransferURL: cfg.Mapper.FileTransferURL,
		Timeout:         cfg.GetOperationTimeout(),
	})
	handler.SetLogger(log.Component("operations"))
	return handler, nil
}

// drainOperations waits for running operations, giving up after drainTimeout.
// Operations still running are abandoned; their commands stay retained on
// the bus.
func drainOperations(handler *operations.Handler, log *logging.Logger) {
	done := make(chan struct{})
	go func() {
		handler.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := handler.Abandoned(); n > 0 {
			log.Warn("timed out routines still running", "abandoned", n)
		}
	case <-time.After(drainTimeout):
		log.Warn("abandoning running operations",
			"in_flight", handler.InFlight(), "abandoned", handler.Abandoned())
	}
}

// prepareDirs creates the marker and file transfer directories.
func prepareDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("preparing %s: %w", dir, conversion.IOFailure(err))
		}
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYMAPPER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYMAPPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// observer receives transfer and capability observations.
type observer interface {
	ObserveTransfer(direction string, ok bool, bytes int64)
	ObserveCapabilities(externalID string, operations int)
}

// observers fans observations out to the metrics registry and InfluxDB.
type observers []observer

func (o observers) ObserveTransfer(direction string, ok bool, bytes int64) {
	for _, s := range o {
		s.ObserveTransfer(direction, ok, bytes)
	}
}

func (o observers) ObserveCapabilities(externalID string, operations int) {
	for _, s := range o {
		s.ObserveCapabilities(externalID, operations)
	}
}
