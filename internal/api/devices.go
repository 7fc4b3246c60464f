package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mededge/treatment-core/internal/device"
)

// handleListDevices returns all registered devices, optionally filtered
// by station.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		if len(stationID) > maxURLParamLen {
			writeBadRequest(w, "station_id exceeds maximum length")
			return
		}
		devices, err := s.registry.GetDevicesByStation(ctx, stationID)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var d device.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if d.Status == "" {
		d.Status = device.StatusActive
	}

	if err := s.registry.CreateDevice(r.Context(), &d); err != nil {
		if errors.Is(err, device.ErrMissingExternalID) || errors.Is(err, device.ErrInvalidStatus) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, device.ErrDuplicateExternalID) {
			writeConflict(w, err.Error())
			return
		}
		s.logger.Error("create device failed", "error", err)
		writeInternalError(w, "failed to create device")
		return
	}

	created, err := s.registry.GetDevice(r.Context(), d.ID)
	if err != nil {
		writeInternalError(w, "failed to load created device")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	d, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice partially updates a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	existing, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	// Decode partial update onto the existing device
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.registry.UpdateDevice(r.Context(), existing); err != nil {
		if errors.Is(err, device.ErrMissingExternalID) || errors.Is(err, device.ErrInvalidStatus) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, device.ErrDuplicateExternalID) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
