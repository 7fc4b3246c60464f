// Package config loads and validates MedEdge Treatment Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// MEDEDGE_* environment variable overrides. Secrets (JWT signing key,
// broker credentials, InfluxDB token) should come from the environment
// rather than the file in production deployments.
package config
