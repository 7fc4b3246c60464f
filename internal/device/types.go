package device

import (
	"time"

	"github.com/google/uuid"
)

// Device statuses.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
	StatusFault       = "fault"
)

// Device represents a medical device registered with the coordinator.
//
// ID is the internal database identifier. ExternalDeviceID is the
// identifier the device answers to on the ward network; MQTT command
// topics are built from it.
type Device struct {
	ID                string    `json:"id"`
	ExternalDeviceID  string    `json:"external_device_id"`
	StationID         *string   `json:"station_id,omitempty"`
	Manufacturer      string    `json:"manufacturer,omitempty"`
	Model             string    `json:"model,omitempty"`
	SerialNumber      string    `json:"serial_number,omitempty"`
	Status            string    `json:"status"`
	AssignedPatientID *string   `json:"assigned_patient_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DeepCopy returns a copy of the device with no shared pointers.
// Used by the registry so cached entries cannot be mutated by callers.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	if d.StationID != nil {
		v := *d.StationID
		cp.StationID = &v
	}
	if d.AssignedPatientID != nil {
		v := *d.AssignedPatientID
		cp.AssignedPatientID = &v
	}
	return &cp
}

// ValidStatus reports whether the given device status is recognised.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusFault:
		return true
	}
	return false
}

// GenerateID creates a new unique device identifier.
func GenerateID() string {
	return uuid.New().String()
}
