// Package device manages the medical device inventory: bedside monitors,
// infusion pumps, ventilators and dialysis machines registered with the
// coordinator. Devices carry an external identifier used to address them
// on the MQTT network and may be assigned to a treatment station.
package device
