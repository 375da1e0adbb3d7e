// Package api implements the local HTTP status API of the cloud mapper.
//
// This package provides:
//   - Liveness of the bus client and entity store (/api/v1/health)
//   - Process status and in-flight operation count (/api/v1/status)
//   - Registered entities and their announced capabilities (/api/v1/entities)
//   - Prometheus exposition (/metrics)
//
// The API is read-only and binds to the loopback interface by default.
// It exists for operators and supervisors on the gateway; nothing here is
// reachable from the cloud.
package api
