package station

import "time"

// Area types describe the clinical function of a treatment area.
const (
	AreaTypeDialysis = "dialysis"
	AreaTypeICU      = "icu"
	AreaTypeGeneral  = "general"
)

// Station statuses.
const (
	StatusAvailable   = "available"
	StatusOccupied    = "occupied"
	StatusMaintenance = "maintenance"
	StatusCleaning    = "cleaning"
	StatusOffline     = "offline"
)

// TreatmentArea represents a physical ward section containing treatment
// stations (a dialysis bay, an ICU wing).
type TreatmentArea struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AreaType     string    `json:"area_type"`
	Capacity     int       `json:"capacity"`
	ParentAreaID *string   `json:"parent_area_id,omitempty"`
	Description  string    `json:"description,omitempty"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Station represents a single treatment position (bed or chair) within an
// area. Devices are assigned to stations and commands fan out per station.
type Station struct {
	ID                 string    `json:"id"`
	StationNumber      string    `json:"station_number"`
	Status             string    `json:"status"`
	AreaID             string    `json:"area_id"`
	CurrentPatientID   *string   `json:"current_patient_id,omitempty"`
	CurrentTreatmentID *string   `json:"current_treatment_id,omitempty"`
	PhysicalLocation   string    `json:"physical_location,omitempty"`
	DisplayOrder       int       `json:"display_order"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ValidAreaType reports whether the given area type is recognised.
func ValidAreaType(t string) bool {
	switch t {
	case AreaTypeDialysis, AreaTypeICU, AreaTypeGeneral:
		return true
	}
	return false
}

// ValidStatus reports whether the given station status is recognised.
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusMaintenance, StatusCleaning, StatusOffline:
		return true
	}
	return false
}
