package coordination

import "context"

// resolveTargets determines the device list a command will address.
//
// Precedence: an explicit device list wins outright; otherwise the union
// of the named groups' members; otherwise every device registered at the
// station. Unknown, inactive and foreign-station groups are skipped
// silently so a stale group reference degrades a command rather than
// rejecting it. The result is deduplicated preserving first-seen order
// and may be empty.
func (c *Coordinator) resolveTargets(ctx context.Context, req ExecuteRequest) ([]string, error) {
	if len(req.TargetDevices) > 0 {
		return dedupeOrdered(req.TargetDevices), nil
	}

	if len(req.TargetGroups) > 0 {
		var targets []string
		for _, groupID := range req.TargetGroups {
			group, err := c.groups.GetByID(ctx, groupID)
			if err != nil {
				continue
			}
			if !group.Active || group.StationID != req.StationID {
				continue
			}
			targets = append(targets, group.DeviceIDs...)
		}
		return dedupeOrdered(targets), nil
	}

	devices, err := c.devices.GetDevicesAtStation(ctx, req.StationID)
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(devices))
	for _, dev := range devices {
		targets = append(targets, dev.ID)
	}
	return dedupeOrdered(targets), nil
}

// dedupeOrdered removes duplicate IDs preserving first occurrence order.
func dedupeOrdered(ids []string) []string {
	if len(ids) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
