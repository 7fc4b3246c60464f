// Package coordination implements multi-device command orchestration at
// treatment stations.
//
// A coordinated command addresses a set of devices at one station: an
// explicit device list, the union of named device groups, or every device
// registered at the station. The Coordinator persists each command as an
// auditable record, dispatches per-device MQTT commands asynchronously
// with a throttling pause between publishes, and records a per-device
// outcome map plus an aggregate status when dispatch finishes.
//
// Callers get the pending command back immediately. The command then
// moves through its lifecycle in the background:
//
//	pending → executing → completed | completed_with_errors
//	pending → cancelled                  (cancel before dispatch)
//	executing → failed                   (structural fault only)
//
// Device groups are station-scoped named sets used as command targets.
// Deleting a group is a soft-delete; commands that already targeted it
// keep their frozen device lists.
package coordination
