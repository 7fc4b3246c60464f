package coordination

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GroupType categorises a device group by its clinical purpose.
type GroupType string

// Valid group types.
const (
	GroupTypeTreatment  GroupType = "treatment"
	GroupTypeMonitoring GroupType = "monitoring"
	GroupTypeSupport    GroupType = "support"
)

// ValidGroupType reports whether t is a recognised group type.
func ValidGroupType(t GroupType) bool {
	switch t {
	case GroupTypeTreatment, GroupTypeMonitoring, GroupTypeSupport:
		return true
	}
	return false
}

// Status is the lifecycle state of a coordination command.
type Status string

// Command lifecycle states.
//
// A command moves pending → executing → completed or completed_with_errors.
// A structural fault during dispatch moves it to failed; a cancel request
// accepted while still pending moves it to cancelled. Terminal states are
// never left.
const (
	StatusPending             Status = "pending"
	StatusExecuting           Status = "executing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
)

// Standard operations dispatched by the bulk station endpoints.
// ExecuteCommand also accepts free-form operation names for
// device-specific commands.
const (
	OperationStartAll       = "start-all"
	OperationStopAll        = "stop-all"
	OperationEmergencyStop  = "emergency-stop"
	OperationSyncParameters = "sync-parameters"
)

// Per-device dispatch outcomes recorded in Command.DeviceResults.
const (
	// OutcomePending marks a device whose command has been accepted but
	// not yet dispatched.
	OutcomePending = "pending"

	// OutcomeSent marks a successfully published command.
	OutcomeSent = "sent"

	// OutcomeDeviceNotFound marks a target that could not be resolved to
	// a registered device.
	OutcomeDeviceNotFound = "failed: device not found"

	// OutcomeNotConnected marks a publish skipped because the broker
	// connection was down.
	OutcomeNotConnected = "failed: mqtt not connected"
)

// failedOutcome renders a publish error as a device outcome string.
func failedOutcome(err error) string {
	return "failed: " + err.Error()
}

// DeviceGroup is a named set of devices at one station that are commanded
// together. Membership is a snapshot of device IDs; the group does not
// track devices moved to other stations after creation.
type DeviceGroup struct {
	ID                string            `json:"id"`
	StationID         string            `json:"station_id"`
	Name              string            `json:"name"`
	GroupType         GroupType         `json:"group_type"`
	DeviceIDs         []string          `json:"device_ids"`
	CoordinationRules map[string]string `json:"coordination_rules,omitempty"`
	Description       *string           `json:"description,omitempty"`
	Active            bool              `json:"active"`
	DisplayOrder      int               `json:"display_order"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Command is one coordinated multi-device command and its audit record.
// TargetDevices is frozen at acceptance time; DeviceResults maps each
// target to its dispatch outcome once execution finishes.
type Command struct {
	ID                     string            `json:"id"`
	StationID              string            `json:"station_id"`
	Operation              string            `json:"operation"`
	Parameters             map[string]any    `json:"parameters,omitempty"`
	TargetDevices          []string          `json:"target_devices"`
	TargetGroups           []string          `json:"target_groups,omitempty"`
	ScheduledExecutionTime time.Time         `json:"scheduled_execution_time"`
	ActualExecutionTime    *time.Time        `json:"actual_execution_time,omitempty"`
	Status                 Status            `json:"status"`
	ResultSummary          *string           `json:"result_summary,omitempty"`
	DeviceResults          map[string]string `json:"device_results,omitempty"`
	ErrorMessage           *string           `json:"error_message,omitempty"`
	RequestedBy            *string           `json:"requested_by,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
}

// Terminal reports whether the command has reached a final state.
func (c *Command) Terminal() bool {
	switch c.Status {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// GenerateCommandID returns a new command identifier, e.g. CMD-3FA85F64.
func GenerateCommandID() string {
	return "CMD-" + idSuffix()
}

// GenerateGroupID returns a new device group identifier, e.g. DG-0A1B2C3D.
func GenerateGroupID() string {
	return "DG-" + idSuffix()
}

// idSuffix returns the first eight hex characters of a fresh UUID,
// uppercased. Short enough to read aloud over a ward phone, random
// enough to never collide in practice.
func idSuffix() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:8])
}
