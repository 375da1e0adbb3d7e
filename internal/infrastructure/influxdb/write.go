package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementOperations   = "mapper_operations"
	measurementCapabilities = "mapper_capabilities"
	measurementTransfers    = "mapper_transfers"
)

// ObserveOperation records one finished operation routine.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - kind: Operation kind (e.g., "restart", "log_upload")
//   - externalID: Cloud identity of the target device
//   - outcome: "successful", "failed", "error" or "timeout"
//   - elapsed: Wall time spent in the routine
func (c *Client) ObserveOperation(kind, externalID, outcome string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(operationPoint(kind, externalID, outcome, elapsed, time.Now()))
}

// ObserveCapabilities records a capability announcement for a device.
func (c *Client) ObserveCapabilities(externalID string, operations int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementCapabilities,
		map[string]string{"device": externalID},
		map[string]any{"operations": operations},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// ObserveTransfer records one upload or download.
//
// Parameters:
//   - direction: "upload" or "download"
//   - ok: Whether the transfer succeeded
//   - bytes: Payload size, 0 if unknown
func (c *Client) ObserveTransfer(direction string, ok bool, bytes int64) {
	if !c.IsConnected() {
		return
	}

	status := "ok"
	if !ok {
		status = "failed"
	}

	point := write.NewPoint(
		measurementTransfers,
		map[string]string{"direction": direction, "status": status},
		map[string]any{"bytes": bytes, "count": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// operationPoint builds the point for one finished operation.
func operationPoint(kind, externalID, outcome string, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementOperations,
		map[string]string{
			"kind":    kind,
			"device":  externalID,
			"outcome": outcome,
		},
		map[string]any{
			"duration_ms": elapsed.Milliseconds(),
			"count":       1,
		},
		ts,
	)
}
