// Package telemetry ingests live device reports from the MQTT broker.
//
// Devices publish vital signs on treatment/telemetry/{id} and operational
// status on treatment/status/{id}, addressed by their external device
// identifier. The Ingestor resolves each report against the device
// registry, records numeric vitals to InfluxDB, and forwards events to
// WebSocket subscribers scoped by device, station, and area.
package telemetry
