// Package influxdb provides InfluxDB connectivity for operation telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// The mapper records a point per finished operation (kind, device,
// outcome, duration), per capability announcement, and per file transfer.
// Telemetry is optional: when influxdb.enabled is false, Connect returns
// ErrDisabled and the mapper runs without it.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Device.ExternalID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.ObserveOperation("restart", "gateway-0001", "successful", 4*time.Second)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write errors are delivered asynchronously via SetOnError.
// Connection and health check errors are returned directly.
package influxdb
