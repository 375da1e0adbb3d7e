package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

// Health states reported by /health.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// HealthResponse is the body of /api/v1/health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is the body of /api/v1/status.
type StatusResponse struct {
	Version            string `json:"version"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	ExternalID         string `json:"external_id"`
	Entities           int    `json:"entities"`
	OperationsInFlight int    `json:"operations_in_flight"`
}

// EntityResponse describes one registered entity.
type EntityResponse struct {
	TopicID      string `json:"topic_id"`
	ExternalID   string `json:"external_id"`
	PublishTopic string `json:"publish_topic"`
}

// OperationsResponse lists the capabilities of one entity.
type OperationsResponse struct {
	ExternalID string              `json:"external_id"`
	Operations []string            `json:"operations"`
	ValueLists map[string][]string `json:"value_lists,omitempty"`
}

// valueListOperations carry a types list next to their capability.
var valueListOperations = []smartrest.Operation{
	smartrest.OpLogfileRequest,
	smartrest.OpUploadConfigFile,
	smartrest.OpDownloadConfigFile,
}

// handleHealth probes the bus client and the entity store.
// Any failing probe turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: statusOK, Checks: make(map[string]string)}
	for name, checker := range map[string]HealthChecker{"mqtt": s.mqtt, "database": s.db} {
		if checker == nil {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			resp.Status = statusDegraded
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = statusOK
	}

	status := http.StatusOK
	if resp.Status != statusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Version:            s.version,
		UptimeSeconds:      int64(time.Since(s.startTime).Seconds()),
		ExternalID:         s.entities.MainExternalID(),
		Entities:           s.entities.Count(),
		OperationsInFlight: s.operations.InFlight(),
	})
}

// handleListEntities returns the main device followed by its children.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	main, err := s.entities.SnapshotByExternalID(s.entities.MainExternalID())
	if err != nil {
		writeInternalError(w, "main device not registered")
		return
	}

	out := []EntityResponse{entityResponse(main)}
	for _, child := range s.entities.Children() {
		out = append(out, entityResponse(child))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEntityOperations(w http.ResponseWriter, r *http.Request) {
	xid := chi.URLParam(r, "xid")

	snap, err := s.entities.SnapshotByExternalID(xid)
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			writeNotFound(w, "entity not found: "+xid)
			return
		}
		writeInternalError(w, "entity lookup failed")
		return
	}

	ops, err := s.capabilities.SupportedOperations(snap)
	if err != nil {
		s.logger.Error("failed to list capabilities", "external_id", xid, "error", err)
		writeInternalError(w, "cannot read capability markers")
		return
	}

	resp := OperationsResponse{ExternalID: xid, Operations: ops}
	for _, op := range valueListOperations {
		if types := s.capabilities.ValueTypes(xid, op); len(types) > 0 {
			if resp.ValueLists == nil {
				resp.ValueLists = make(map[string][]string)
			}
			resp.ValueLists[string(op)] = types
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func entityResponse(snap entity.Snapshot) EntityResponse {
	return EntityResponse{
		TopicID:      snap.TopicID.String(),
		ExternalID:   snap.ExternalID,
		PublishTopic: snap.PublishTopic,
	}
}
