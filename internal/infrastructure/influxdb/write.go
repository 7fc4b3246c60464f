package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteVitalSign records a single vital sign reading from a bedside device.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: External device identifier (e.g., "MON-B-042")
//   - stationID: Treatment station the device is assigned to (may be empty)
//   - metric: The vital sign name (e.g., "heart_rate", "spo2", "arterial_pressure")
//   - value: The numeric reading
//
// Example:
//
//	client.WriteVitalSign("MON-B-042", "ST-12", "heart_rate", 72)
func (c *Client) WriteVitalSign(deviceID, stationID, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"metric":    metric,
	}
	if stationID != "" {
		tags["station_id"] = stationID
	}

	point := write.NewPoint(
		"vital_signs",
		tags,
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceEvent records a device lifecycle event such as an alarm or a
// status transition.
//
// Parameters:
//   - deviceID: External device identifier
//   - eventType: Event class (e.g., "alarm", "status_change")
//   - detail: Free-form event detail
func (c *Client) WriteDeviceEvent(deviceID, eventType, detail string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_events",
		map[string]string{
			"device_id":  deviceID,
			"event_type": eventType,
		},
		map[string]interface{}{
			"detail": detail,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the reading carries its own timestamp (e.g., buffered data
// a device uploads after reconnecting).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
