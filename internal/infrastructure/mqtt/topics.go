package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the MedEdge MQTT namespace.
//
// Device-facing topics use the flat scheme: treatment/{category}/{device_id}
// where device_id is the device's external identifier as known on the ward
// network, not the internal database ID.
const (
	// TopicPrefixTreatment is the base for all device-facing topics.
	TopicPrefixTreatment = "treatment"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "mededge/system"
)

// Topics provides builders for MedEdge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("PUMP-A-017")
//	// Returns: "treatment/command/PUMP-A-017"
type Topics struct{}

// DeviceCommand returns the topic for commands addressed to a single device.
//
// Example: treatment/command/PUMP-A-017
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixTreatment, deviceID)
}

// DeviceTelemetry returns the topic a device publishes vital signs on.
//
// Example: treatment/telemetry/MON-B-042
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefixTreatment, deviceID)
}

// DeviceStatus returns the topic a device publishes operational status on.
//
// Example: treatment/status/MON-B-042
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixTreatment, deviceID)
}

// SystemStatus returns the coordinator's own status topic.
// Used for the LWT message and graceful online/offline announcements.
//
// Example: mededge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceTelemetry returns a pattern matching telemetry from every device.
//
// Pattern: treatment/telemetry/+
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/telemetry/+", TopicPrefixTreatment)
}

// AllDeviceStatus returns a pattern matching status updates from every device.
//
// Pattern: treatment/status/+
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/status/+", TopicPrefixTreatment)
}

// DeviceIDFromTopic extracts the trailing device identifier from a
// device-facing topic. Returns an empty string if the topic does not
// match the expected three-segment shape.
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefixTreatment || parts[2] == "" {
		return ""
	}
	return parts[2]
}
