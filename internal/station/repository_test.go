package station

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the treatment_areas
// and stations tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE treatment_areas (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			area_type TEXT NOT NULL DEFAULT 'general',
			capacity INTEGER NOT NULL DEFAULT 10,
			parent_area_id TEXT,
			description TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE stations (
			id TEXT PRIMARY KEY,
			station_number TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'available',
			area_id TEXT NOT NULL,
			current_patient_id TEXT,
			current_treatment_id TEXT,
			physical_location TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (area_id) REFERENCES treatment_areas(id)
		) STRICT;

		INSERT INTO treatment_areas (id, name, area_type, capacity, display_order) VALUES
			('area-dialysis', 'Dialysis Bay A', 'dialysis', 12, 0),
			('area-icu', 'ICU West Wing', 'icu', 8, 1);

		INSERT INTO stations (id, station_number, status, area_id, display_order) VALUES
			('st-01', 'D-01', 'available', 'area-dialysis', 0),
			('st-02', 'D-02', 'occupied', 'area-dialysis', 1),
			('st-03', 'ICU-01', 'occupied', 'area-icu', 0);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestListAreas(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	areas, err := repo.ListAreas(context.Background())
	if err != nil {
		t.Fatalf("ListAreas: %v", err)
	}

	if len(areas) != 2 {
		t.Fatalf("expected 2 areas, got %d", len(areas))
	}

	// Should be sorted by display_order
	if areas[0].Name != "Dialysis Bay A" {
		t.Errorf("first area: got %q, want %q", areas[0].Name, "Dialysis Bay A")
	}
	if areas[1].Name != "ICU West Wing" {
		t.Errorf("second area: got %q, want %q", areas[1].Name, "ICU West Wing")
	}
}

func TestGetArea(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	area, err := repo.GetArea(context.Background(), "area-dialysis")
	if err != nil {
		t.Fatalf("GetArea: %v", err)
	}
	if area.AreaType != AreaTypeDialysis {
		t.Errorf("area type: got %q, want %q", area.AreaType, AreaTypeDialysis)
	}
	if area.Capacity != 12 {
		t.Errorf("capacity: got %d, want 12", area.Capacity)
	}
	if !area.Active {
		t.Error("area should be active")
	}
}

func TestGetAreaNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetArea(context.Background(), "area-nope")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestCreateArea(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	area := &TreatmentArea{
		ID:       "area-general",
		Name:     "General Ward",
		AreaType: AreaTypeGeneral,
		Capacity: 20,
		Active:   true,
	}
	if err := repo.CreateArea(context.Background(), area); err != nil {
		t.Fatalf("CreateArea: %v", err)
	}

	got, err := repo.GetArea(context.Background(), "area-general")
	if err != nil {
		t.Fatalf("GetArea after create: %v", err)
	}
	if got.Name != "General Ward" {
		t.Errorf("name: got %q, want %q", got.Name, "General Ward")
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should be set by the schema default")
	}
}

func TestCreateAreaInvalidType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	area := &TreatmentArea{ID: "area-x", Name: "X", AreaType: "warehouse"}
	err := repo.CreateArea(context.Background(), area)
	if !errors.Is(err, ErrInvalidAreaType) {
		t.Errorf("expected ErrInvalidAreaType, got %v", err)
	}
}

func TestUpdateArea(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	area, err := repo.GetArea(context.Background(), "area-icu")
	if err != nil {
		t.Fatalf("GetArea: %v", err)
	}
	area.Capacity = 10
	area.Description = "expanded wing"
	if err := repo.UpdateArea(context.Background(), area); err != nil {
		t.Fatalf("UpdateArea: %v", err)
	}

	got, err := repo.GetArea(context.Background(), "area-icu")
	if err != nil {
		t.Fatalf("GetArea after update: %v", err)
	}
	if got.Capacity != 10 {
		t.Errorf("capacity: got %d, want 10", got.Capacity)
	}
	if got.Description != "expanded wing" {
		t.Errorf("description: got %q, want %q", got.Description, "expanded wing")
	}
}

func TestUpdateAreaNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	area := &TreatmentArea{ID: "area-nope", Name: "Nope", AreaType: AreaTypeGeneral}
	if err := repo.UpdateArea(context.Background(), area); !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestDeleteAreaWithStations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.DeleteArea(context.Background(), "area-dialysis")
	if !errors.Is(err, ErrAreaHasStations) {
		t.Errorf("expected ErrAreaHasStations, got %v", err)
	}
}

func TestDeleteArea(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	// Remove the stations first, then the area.
	for _, id := range []string{"st-03"} {
		if err := repo.DeleteStation(context.Background(), id); err != nil {
			t.Fatalf("DeleteStation(%s): %v", id, err)
		}
	}
	if err := repo.DeleteArea(context.Background(), "area-icu"); err != nil {
		t.Fatalf("DeleteArea: %v", err)
	}

	_, err := repo.GetArea(context.Background(), "area-icu")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("expected ErrAreaNotFound after delete, got %v", err)
	}
}

func TestListStationsByArea(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	stations, err := repo.ListStationsByArea(context.Background(), "area-dialysis")
	if err != nil {
		t.Fatalf("ListStationsByArea: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].StationNumber != "D-01" {
		t.Errorf("first station: got %q, want %q", stations[0].StationNumber, "D-01")
	}

	// Non-existent area returns empty
	stations, err = repo.ListStationsByArea(context.Background(), "area-nope")
	if err != nil {
		t.Fatalf("ListStationsByArea non-existent: %v", err)
	}
	if len(stations) != 0 {
		t.Errorf("expected 0 stations, got %d", len(stations))
	}
}

func TestGetStation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	st, err := repo.GetStation(context.Background(), "st-02")
	if err != nil {
		t.Fatalf("GetStation: %v", err)
	}
	if st.Status != StatusOccupied {
		t.Errorf("status: got %q, want %q", st.Status, StatusOccupied)
	}
	if st.AreaID != "area-dialysis" {
		t.Errorf("area_id: got %q, want %q", st.AreaID, "area-dialysis")
	}
}

func TestGetStationNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetStation(context.Background(), "st-nope")
	if !errors.Is(err, ErrStationNotFound) {
		t.Errorf("expected ErrStationNotFound, got %v", err)
	}
}

func TestCreateStationDuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	st := &Station{
		ID:            "st-dup",
		StationNumber: "D-01",
		Status:        StatusAvailable,
		AreaID:        "area-dialysis",
	}
	err := repo.CreateStation(context.Background(), st)
	if !errors.Is(err, ErrDuplicateStationNumber) {
		t.Errorf("expected ErrDuplicateStationNumber, got %v", err)
	}
}

func TestUpdateStationStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	if err := repo.UpdateStationStatus(context.Background(), "st-01", StatusMaintenance); err != nil {
		t.Fatalf("UpdateStationStatus: %v", err)
	}

	st, err := repo.GetStation(context.Background(), "st-01")
	if err != nil {
		t.Fatalf("GetStation: %v", err)
	}
	if st.Status != StatusMaintenance {
		t.Errorf("status: got %q, want %q", st.Status, StatusMaintenance)
	}
}

func TestUpdateStationStatusInvalid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.UpdateStationStatus(context.Background(), "st-01", "broken")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestStationNullableFields(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(`INSERT INTO stations (id, station_number, status, area_id, current_patient_id, current_treatment_id)
		VALUES ('st-full', 'D-99', 'occupied', 'area-dialysis', 'patient-7', 'treat-19')`)
	if err != nil {
		t.Fatalf("insert station: %v", err)
	}

	repo := NewSQLiteRepository(db)
	st, err := repo.GetStation(context.Background(), "st-full")
	if err != nil {
		t.Fatalf("GetStation: %v", err)
	}

	if st.CurrentPatientID == nil || *st.CurrentPatientID != "patient-7" {
		t.Errorf("current_patient_id: got %v, want %q", st.CurrentPatientID, "patient-7")
	}
	if st.CurrentTreatmentID == nil || *st.CurrentTreatmentID != "treat-19" {
		t.Errorf("current_treatment_id: got %v, want %q", st.CurrentTreatmentID, "treat-19")
	}
}
