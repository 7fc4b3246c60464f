package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mededge/treatment-core/internal/device"
	"github.com/mededge/treatment-core/internal/station"
)

// ─── Treatment Areas ───────────────────────────────────────────────

func TestAreaLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create
	body := `{"name": "Dialysis Bay A", "area_type": "dialysis", "capacity": 12}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/areas", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}

	var area station.TreatmentArea
	if err := json.Unmarshal(w.Body.Bytes(), &area); err != nil {
		t.Fatalf("unmarshal area: %v", err)
	}
	if area.ID == "" {
		t.Fatal("expected area ID to be generated")
	}
	if !area.Active {
		t.Error("expected created area to be active")
	}

	// Get
	w = env.do(t, http.MethodGet, "/api/v1/areas/"+area.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// List
	w = env.do(t, http.MethodGet, "/api/v1/areas", "")
	var listResp struct {
		Areas []station.TreatmentArea `json:"areas"`
		Count int                     `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listResp.Count != 1 {
		t.Errorf("count = %d, want 1", listResp.Count)
	}

	// Delete
	w = env.doAdmin(t, http.MethodDelete, "/api/v1/areas/"+area.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/areas/"+area.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateArea_ClinicianForbidden(t *testing.T) {
	env := newTestEnv(t)

	body := `{"name": "Dialysis Bay A", "area_type": "dialysis"}`
	w := env.do(t, http.MethodPost, "/api/v1/areas", body)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusForbidden, w.Body.String())
	}
}

func TestCreateArea_InvalidType(t *testing.T) {
	env := newTestEnv(t)

	body := `{"name": "Warehouse", "area_type": "warehouse"}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/areas", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestDeleteArea_WithStations(t *testing.T) {
	env := newTestEnv(t)
	env.seedStation(t, "area-1", "st-1")

	w := env.doAdmin(t, http.MethodDelete, "/api/v1/areas/area-1", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}
}

// ─── Treatment Stations ────────────────────────────────────────────

func TestStationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedStation(t, "area-1", "st-seed")

	// Create
	body := `{"station_number": "D-07", "area_id": "area-1", "physical_location": "Bay A, window side"}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/stations", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}

	var st station.Station
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal station: %v", err)
	}
	if st.Status != station.StatusAvailable {
		t.Errorf("status = %q, want available default", st.Status)
	}

	// Patch status
	w = env.doAdmin(t, http.MethodPatch, "/api/v1/stations/"+st.ID, `{"status": "occupied"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body: %s", w.Code, w.Body.String())
	}
	var patched station.Station
	if err := json.Unmarshal(w.Body.Bytes(), &patched); err != nil {
		t.Fatalf("unmarshal patched: %v", err)
	}
	if patched.Status != station.StatusOccupied {
		t.Errorf("patched status = %q, want occupied", patched.Status)
	}
	if patched.StationNumber != "D-07" {
		t.Errorf("station_number = %q, want unchanged D-07", patched.StationNumber)
	}

	// Filter by area
	w = env.do(t, http.MethodGet, "/api/v1/stations?area_id=area-1", "")
	var listResp struct {
		Stations []station.Station `json:"stations"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listResp.Count != 2 {
		t.Errorf("count = %d, want 2", listResp.Count)
	}

	// Delete
	w = env.doAdmin(t, http.MethodDelete, "/api/v1/stations/"+st.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
}

func TestCreateStation_UnknownArea(t *testing.T) {
	env := newTestEnv(t)

	body := `{"station_number": "D-01", "area_id": "area-nope"}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/stations", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateStation_DuplicateNumber(t *testing.T) {
	env := newTestEnv(t)
	env.seedStation(t, "area-1", "st-1")

	body := `{"station_number": "N-st-1", "area_id": "area-1"}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/stations", body)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestDeviceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedStation(t, "area-1", "st-1")

	// Create
	body := `{"external_device_id": "PUMP-A-017", "station_id": "st-1", "manufacturer": "Fresenius", "model": "5008S"}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/devices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}

	var d device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal device: %v", err)
	}
	if d.ID == "" {
		t.Fatal("expected device ID to be generated")
	}
	if d.Status != device.StatusActive {
		t.Errorf("status = %q, want active default", d.Status)
	}

	// Get
	w = env.do(t, http.MethodGet, "/api/v1/devices/"+d.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// Patch
	w = env.doAdmin(t, http.MethodPatch, "/api/v1/devices/"+d.ID, `{"status": "maintenance"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body: %s", w.Code, w.Body.String())
	}
	var patched device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &patched); err != nil {
		t.Fatalf("unmarshal patched: %v", err)
	}
	if patched.Status != device.StatusMaintenance {
		t.Errorf("patched status = %q, want maintenance", patched.Status)
	}

	// Filter by station
	w = env.do(t, http.MethodGet, "/api/v1/devices?station_id=st-1", "")
	var listResp struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listResp.Count != 1 {
		t.Errorf("count = %d, want 1", listResp.Count)
	}

	// Delete
	w = env.doAdmin(t, http.MethodDelete, "/api/v1/devices/"+d.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/devices/"+d.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateDevice_DuplicateExternalID(t *testing.T) {
	env := newTestEnv(t)
	env.seedStation(t, "area-1", "st-1")
	env.seedDevice(t, "dev-1", "PUMP-A-017", "st-1")

	body := `{"external_device_id": "PUMP-A-017"}`
	w := env.doAdmin(t, http.MethodPost, "/api/v1/devices", body)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}
}

func TestCreateDevice_MissingExternalID(t *testing.T) {
	env := newTestEnv(t)

	w := env.doAdmin(t, http.MethodPost, "/api/v1/devices", `{"manufacturer": "Baxter"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}
