package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mededge/treatment-core/internal/station"
)

// maxURLParamLen limits URL and query parameter length to prevent DoS via
// oversized params.
const maxURLParamLen = 100

// ─── Treatment Areas ───────────────────────────────────────────────

// handleListAreas returns all treatment areas.
func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.stations.ListAreas(r.Context())
	if err != nil {
		s.logger.Error("list areas failed", "error", err)
		writeInternalError(w, "failed to list areas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas, "count": len(areas)})
}

// handleCreateArea creates a new treatment area.
func (s *Server) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var area station.TreatmentArea
	if err := json.NewDecoder(r.Body).Decode(&area); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if area.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if area.AreaType == "" {
		area.AreaType = station.AreaTypeGeneral
	}
	if area.ID == "" {
		area.ID = "area-" + uuid.New().String()[:8]
	}
	area.Active = true

	if err := s.stations.CreateArea(r.Context(), &area); err != nil {
		if errors.Is(err, station.ErrInvalidAreaType) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("create area failed", "error", err)
		writeInternalError(w, "failed to create area")
		return
	}

	created, err := s.stations.GetArea(r.Context(), area.ID)
	if err != nil {
		writeInternalError(w, "failed to load created area")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetArea returns a single treatment area by ID.
func (s *Server) handleGetArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid area ID")
		return
	}

	area, err := s.stations.GetArea(r.Context(), id)
	if err != nil {
		if errors.Is(err, station.ErrAreaNotFound) {
			writeNotFound(w, "area not found")
			return
		}
		writeInternalError(w, "failed to get area")
		return
	}
	writeJSON(w, http.StatusOK, area)
}

// handleDeleteArea removes a treatment area. Areas that still contain
// stations cannot be deleted.
func (s *Server) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid area ID")
		return
	}

	if err := s.stations.DeleteArea(r.Context(), id); err != nil {
		if errors.Is(err, station.ErrAreaNotFound) {
			writeNotFound(w, "area not found")
			return
		}
		if errors.Is(err, station.ErrAreaHasStations) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to delete area")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Treatment Stations ────────────────────────────────────────────

// handleListStations returns all stations, optionally filtered by area.
func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if areaID := r.URL.Query().Get("area_id"); areaID != "" {
		if len(areaID) > maxURLParamLen {
			writeBadRequest(w, "area_id exceeds maximum length")
			return
		}
		stations, err := s.stations.ListStationsByArea(ctx, areaID)
		if err != nil {
			writeInternalError(w, "failed to list stations")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stations": stations, "count": len(stations)})
		return
	}

	stations, err := s.stations.ListStations(ctx)
	if err != nil {
		writeInternalError(w, "failed to list stations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations, "count": len(stations)})
}

// handleCreateStation creates a new treatment station.
func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	var st station.Station
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if st.StationNumber == "" || st.AreaID == "" {
		writeBadRequest(w, "station_number and area_id are required")
		return
	}
	if st.Status == "" {
		st.Status = station.StatusAvailable
	}
	if st.ID == "" {
		st.ID = "st-" + uuid.New().String()[:8]
	}

	// Verify the parent area exists before inserting
	if _, err := s.stations.GetArea(r.Context(), st.AreaID); err != nil {
		if errors.Is(err, station.ErrAreaNotFound) {
			writeBadRequest(w, "area not found")
			return
		}
		writeInternalError(w, "failed to verify area")
		return
	}

	if err := s.stations.CreateStation(r.Context(), &st); err != nil {
		if errors.Is(err, station.ErrInvalidStatus) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, station.ErrDuplicateStationNumber) {
			writeConflict(w, err.Error())
			return
		}
		s.logger.Error("create station failed", "error", err)
		writeInternalError(w, "failed to create station")
		return
	}

	created, err := s.stations.GetStation(r.Context(), st.ID)
	if err != nil {
		writeInternalError(w, "failed to load created station")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetStation returns a single station by ID.
func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	st, err := s.stations.GetStation(r.Context(), id)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			writeNotFound(w, "station not found")
			return
		}
		writeInternalError(w, "failed to get station")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleUpdateStation partially updates a station.
func (s *Server) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	existing, err := s.stations.GetStation(r.Context(), id)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			writeNotFound(w, "station not found")
			return
		}
		writeInternalError(w, "failed to get station")
		return
	}

	// Decode partial update onto the existing station
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.stations.UpdateStation(r.Context(), existing); err != nil {
		if errors.Is(err, station.ErrInvalidStatus) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, station.ErrDuplicateStationNumber) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update station")
		return
	}

	updated, err := s.stations.GetStation(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to load updated station")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteStation removes a station by ID.
func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid station ID")
		return
	}

	if err := s.stations.DeleteStation(r.Context(), id); err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			writeNotFound(w, "station not found")
			return
		}
		writeInternalError(w, "failed to delete station")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
