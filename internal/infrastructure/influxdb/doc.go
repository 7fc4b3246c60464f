// Package influxdb provides time-series storage for device telemetry.
//
// Vital signs and device events stream in over MQTT at high frequency;
// SQLite holds the operational state while InfluxDB holds the history.
// Writes are batched and non-blocking so a slow or unreachable InfluxDB
// never stalls telemetry ingestion.
//
// The integration is optional: when influxdb.enabled is false in config,
// Connect returns ErrDisabled and the caller runs without history storage.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteVitalSign("MON-B-042", "ST-12", "heart_rate", 72)
package influxdb
