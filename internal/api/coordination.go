package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mededge/treatment-core/internal/coordination"
)

// ─── Device Groups ─────────────────────────────────────────────────

// handleListGroups returns the active device groups at a station.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	if stationID == "" || len(stationID) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	groups, err := s.coordinator.ListStationGroups(r.Context(), stationID)
	if err != nil {
		s.logger.Error("list groups failed", "station_id", stationID, "error", err)
		writeInternalError(w, "failed to list groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

// handleCreateGroup creates a device group at a station.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	if stationID == "" || len(stationID) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	var req coordination.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.StationID = stationID

	group, err := s.coordinator.CreateGroup(r.Context(), req)
	if err != nil {
		writeCoordinationError(w, err, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// handleUpdateGroup replaces the mutable fields of a device group.
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" || len(groupID) > maxURLParamLen {
		writeBadRequest(w, "invalid group ID")
		return
	}

	var req coordination.UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	group, err := s.coordinator.UpdateGroup(r.Context(), groupID, req)
	if err != nil {
		writeCoordinationError(w, err, "failed to update group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// handleDeleteGroup deactivates a device group.
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" || len(groupID) > maxURLParamLen {
		writeBadRequest(w, "invalid group ID")
		return
	}

	if err := s.coordinator.DeleteGroup(r.Context(), groupID); err != nil {
		writeCoordinationError(w, err, "failed to delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Command Execution ─────────────────────────────────────────────

// handleExecute starts a coordinated command. Dispatch is asynchronous;
// the response is 202 Accepted with the pending command record and
// per-device outcomes arrive via polling or WebSocket.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req coordination.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.RequestedBy == "" {
		req.RequestedBy = s.requesterFromClaims(r)
	}

	cmd, err := s.coordinator.ExecuteCommand(r.Context(), req)
	if err != nil {
		writeCoordinationError(w, err, "failed to execute command")
		return
	}
	writeJSON(w, http.StatusAccepted, cmd)
}

// handleGetCommand returns a command with its per-device outcomes.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid command ID")
		return
	}

	cmd, err := s.coordinator.GetCommand(r.Context(), id)
	if err != nil {
		writeCoordinationError(w, err, "failed to get command")
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// handleListStationCommands returns a station's command history,
// newest first.
func (s *Server) handleListStationCommands(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	if stationID == "" || len(stationID) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "invalid limit")
			return
		}
		limit = parsed
	}

	commands, err := s.coordinator.ListStationCommands(r.Context(), stationID, limit)
	if err != nil {
		s.logger.Error("list commands failed", "station_id", stationID, "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": commands, "count": len(commands)})
}

// handleCancelCommand cancels a command that has not started dispatching.
func (s *Server) handleCancelCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid command ID")
		return
	}

	if err := s.coordinator.CancelCommand(r.Context(), id); err != nil {
		writeCoordinationError(w, err, "failed to cancel command")
		return
	}

	cmd, err := s.coordinator.GetCommand(r.Context(), id)
	if err != nil {
		writeCoordinationError(w, err, "failed to get command")
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// ─── Station-Wide Operations ───────────────────────────────────────

// syncParametersRequest is the request body for POST .../sync-parameters.
type syncParametersRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// handleStartAll starts treatment on every device at a station.
func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	s.handleStationOperation(w, r, s.coordinator.StartAll)
}

// handleStopAll stops treatment on every device at a station.
func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.handleStationOperation(w, r, s.coordinator.StopAll)
}

// handleEmergencyStop halts every device at a station immediately.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.handleStationOperation(w, r, s.coordinator.EmergencyStop)
}

// handleSyncParameters pushes a shared parameter set to every device at
// a station.
func (s *Server) handleSyncParameters(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	if stationID == "" || len(stationID) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	var req syncParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Parameters) == 0 {
		writeBadRequest(w, "parameters are required")
		return
	}

	cmd, devices, err := s.coordinator.SyncParameters(r.Context(), stationID, req.Parameters)
	if err != nil {
		writeCoordinationError(w, err, "failed to sync parameters")
		return
	}
	writeStationOperationAccepted(w, cmd, devices)
}

// stationOperation is the shared signature of the coordinator's
// station-wide bulk operations.
type stationOperation func(ctx context.Context, stationID, requestedBy string) (*coordination.Command, map[string]string, error)

// handleStationOperation runs a station-wide operation and writes the
// 202 Accepted response.
func (s *Server) handleStationOperation(w http.ResponseWriter, r *http.Request, op stationOperation) {
	stationID := chi.URLParam(r, "stationID")
	if stationID == "" || len(stationID) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	cmd, devices, err := op(r.Context(), stationID, s.requesterFromClaims(r))
	if err != nil {
		writeCoordinationError(w, err, "failed to execute station operation")
		return
	}
	writeStationOperationAccepted(w, cmd, devices)
}

// writeStationOperationAccepted writes the async-accepted response for
// station-wide operations.
func writeStationOperationAccepted(w http.ResponseWriter, cmd *coordination.Command, devices map[string]string) {
	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id": cmd.ID,
		"operation":  cmd.Operation,
		"status":     "accepted",
		"devices":    devices,
	})
}

// requesterFromClaims returns the authenticated username for audit
// attribution, or "api" when no claims are present.
func (s *Server) requesterFromClaims(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil && claims.Username != "" {
		return claims.Username
	}
	return "api"
}

// writeCoordinationError maps coordination errors to HTTP responses.
func writeCoordinationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, coordination.ErrStationNotFound),
		errors.Is(err, coordination.ErrGroupNotFound),
		errors.Is(err, coordination.ErrCommandNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, coordination.ErrInvalidGroupName),
		errors.Is(err, coordination.ErrInvalidGroupType),
		errors.Is(err, coordination.ErrDeviceNotAtStation),
		errors.Is(err, coordination.ErrInvalidOperation):
		writeBadRequest(w, err.Error())
	case errors.Is(err, coordination.ErrNotCancellable):
		writeConflict(w, err.Error())
	default:
		writeInternalError(w, fallback)
	}
}
