package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mededge/treatment-core/internal/infrastructure/mqtt"
)

// DeviceInfo holds the minimal device information the coordinator needs
// for routing. ExternalDeviceID is the identity the device answers to on
// the ward MQTT network; StationID places it for group validation.
type DeviceInfo struct {
	ID               string
	ExternalDeviceID string
	StationID        *string
}

// Directory is the interface the coordinator needs from the device package.
// It provides device information for MQTT command routing.
type Directory interface {
	// GetDevice retrieves device info for routing commands.
	GetDevice(ctx context.Context, id string) (DeviceInfo, error)

	// GetDevicesAtStation lists every device assigned to a station.
	GetDevicesAtStation(ctx context.Context, stationID string) ([]DeviceInfo, error)
}

// StationDirectory verifies station identifiers before commands and
// groups are accepted against them.
type StationDirectory interface {
	StationExists(ctx context.Context, id string) (bool, error)
}

// Publisher is the interface for publishing commands to device gateways.
type Publisher interface {
	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the minimal logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// commandQoS is the delivery level for device command publishes.
// At-least-once: gateways deduplicate on commandId.
const commandQoS byte = 1

// maxDispatchTime is the hard limit for a single command dispatch.
// Even a full station (tens of devices with the inter-device pause)
// finishes well inside this window. Prevents goroutine accumulation
// from a wedged store or broker.
const maxDispatchTime = 5 * time.Minute

// defaultDispatchPause is the gap between per-device publishes when no
// pause is configured. Medical device gateways are slow consumers; a
// burst of simultaneous commands has been observed to drop frames.
const defaultDispatchPause = 100 * time.Millisecond

// Config carries the coordinator's dispatch tuning.
type Config struct {
	// DispatchPause is the deliberate gap between per-device publishes.
	// Zero selects the default; negative disables the pause.
	DispatchPause time.Duration
}

// Coordinator orchestrates multi-device commands at treatment stations.
//
// It resolves command targets (explicit devices, device groups, or the
// whole station), persists an auditable command record, and dispatches
// per-device MQTT commands asynchronously. Callers get the pending
// command back immediately; outcome tracking happens in the background.
//
// Thread Safety: all methods are safe for concurrent use.
type Coordinator struct {
	commands  CommandRepository
	groups    GroupRepository
	devices   Directory
	stations  StationDirectory
	publisher Publisher
	logger    Logger
	topics    mqtt.Topics

	dispatchPause time.Duration

	// mu serializes the pending→executing transition against cancellation
	// so the store never records both.
	mu sync.Mutex

	wg sync.WaitGroup

	doneMu sync.Mutex
	done   map[string]chan struct{}
}

// NewCoordinator creates a new station command coordinator.
//
// Parameters:
//   - commands: repository for the command audit trail
//   - groups: repository for device group definitions
//   - devices: device directory for routing (external ID lookup)
//   - stations: station directory for target validation
//   - publisher: MQTT client for publishing commands to gateways
//   - logger: logger instance (may be nil)
func NewCoordinator(commands CommandRepository, groups GroupRepository, devices Directory, stations StationDirectory, publisher Publisher, logger Logger, cfg Config) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	pause := cfg.DispatchPause
	if pause == 0 {
		pause = defaultDispatchPause
	}
	if pause < 0 {
		pause = 0
	}
	return &Coordinator{
		commands:      commands,
		groups:        groups,
		devices:       devices,
		stations:      stations,
		publisher:     publisher,
		logger:        logger,
		dispatchPause: pause,
		done:          make(map[string]chan struct{}),
	}
}

// Close waits for all in-flight dispatches to finish.
func (c *Coordinator) Close() {
	c.wg.Wait()
}

// ─── Device Groups ──────────────────────────────────────────────────────────

// CreateGroupRequest carries the fields for a new device group.
type CreateGroupRequest struct {
	StationID         string            `json:"station_id"`
	Name              string            `json:"name"`
	GroupType         GroupType         `json:"group_type"`
	DeviceIDs         []string          `json:"device_ids"`
	CoordinationRules map[string]string `json:"coordination_rules,omitempty"`
	Description       *string           `json:"description,omitempty"`
	DisplayOrder      int               `json:"display_order"`
}

// UpdateGroupRequest carries the mutable fields of a device group.
type UpdateGroupRequest struct {
	Name              string            `json:"name"`
	GroupType         GroupType         `json:"group_type"`
	DeviceIDs         []string          `json:"device_ids"`
	CoordinationRules map[string]string `json:"coordination_rules,omitempty"`
	Description       *string           `json:"description,omitempty"`
	DisplayOrder      int               `json:"display_order"`
}

// ListStationGroups returns the active groups at a station.
func (c *Coordinator) ListStationGroups(ctx context.Context, stationID string) ([]DeviceGroup, error) {
	return c.groups.ListByStation(ctx, stationID)
}

// CreateGroup creates a device group after verifying the station exists
// and every member device is assigned to it.
func (c *Coordinator) CreateGroup(ctx context.Context, req CreateGroupRequest) (*DeviceGroup, error) {
	if req.Name == "" {
		return nil, ErrInvalidGroupName
	}
	if req.GroupType == "" {
		req.GroupType = GroupTypeTreatment
	}
	if !ValidGroupType(req.GroupType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroupType, req.GroupType)
	}

	if err := c.requireStation(ctx, req.StationID); err != nil {
		return nil, err
	}
	if err := c.verifyDevicesAtStation(ctx, req.StationID, req.DeviceIDs); err != nil {
		return nil, err
	}

	group := &DeviceGroup{
		ID:                GenerateGroupID(),
		StationID:         req.StationID,
		Name:              req.Name,
		GroupType:         req.GroupType,
		DeviceIDs:         dedupeOrdered(req.DeviceIDs),
		CoordinationRules: req.CoordinationRules,
		Description:       req.Description,
		Active:            true,
		DisplayOrder:      req.DisplayOrder,
	}

	if err := c.groups.Create(ctx, group); err != nil {
		return nil, err
	}

	c.logger.Info("device group created",
		"group_id", group.ID,
		"station_id", group.StationID,
		"devices", len(group.DeviceIDs),
	)
	return group, nil
}

// UpdateGroup rewrites a group's mutable fields. Membership is
// re-validated against the group's station.
func (c *Coordinator) UpdateGroup(ctx context.Context, groupID string, req UpdateGroupRequest) (*DeviceGroup, error) {
	if req.Name == "" {
		return nil, ErrInvalidGroupName
	}
	if req.GroupType == "" {
		req.GroupType = GroupTypeTreatment
	}
	if !ValidGroupType(req.GroupType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroupType, req.GroupType)
	}

	group, err := c.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := c.verifyDevicesAtStation(ctx, group.StationID, req.DeviceIDs); err != nil {
		return nil, err
	}

	group.Name = req.Name
	group.GroupType = req.GroupType
	group.DeviceIDs = dedupeOrdered(req.DeviceIDs)
	group.CoordinationRules = req.CoordinationRules
	group.Description = req.Description
	group.DisplayOrder = req.DisplayOrder

	if err := c.groups.Update(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup soft-deletes a group. Commands that already targeted the
// group keep their frozen device lists.
func (c *Coordinator) DeleteGroup(ctx context.Context, groupID string) error {
	return c.groups.Deactivate(ctx, groupID)
}

func (c *Coordinator) requireStation(ctx context.Context, stationID string) error {
	exists, err := c.stations.StationExists(ctx, stationID)
	if err != nil {
		return fmt.Errorf("checking station %q: %w", stationID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrStationNotFound, stationID)
	}
	return nil
}

func (c *Coordinator) verifyDevicesAtStation(ctx context.Context, stationID string, deviceIDs []string) error {
	for _, deviceID := range deviceIDs {
		dev, err := c.devices.GetDevice(ctx, deviceID)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrDeviceNotAtStation, deviceID)
		}
		if dev.StationID == nil || *dev.StationID != stationID {
			return fmt.Errorf("%w: %q", ErrDeviceNotAtStation, deviceID)
		}
	}
	return nil
}

// ─── Coordinated Commands ───────────────────────────────────────────────────

// ExecuteRequest carries the fields for a coordinated command.
type ExecuteRequest struct {
	StationID              string         `json:"station_id"`
	Operation              string         `json:"operation"`
	Parameters             map[string]any `json:"parameters,omitempty"`
	TargetDevices          []string       `json:"target_devices,omitempty"`
	TargetGroups           []string       `json:"target_groups,omitempty"`
	ScheduledExecutionTime *time.Time     `json:"scheduled_execution_time,omitempty"`
	RequestedBy            string         `json:"requested_by,omitempty"`
}

// commandPayload is the JSON message published to each target device's
// command topic.
type commandPayload struct {
	CommandID  string         `json:"commandId"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ExecuteCommand accepts a coordinated command for a station.
//
// It validates the station, resolves the target device list (explicit
// devices beat groups beat whole-station), persists the command as
// pending, and starts an asynchronous dispatch. The returned command is
// the pending record; callers poll GetCommand or wait on Done for the
// outcome.
//
// Returns:
//   - *Command: the accepted command with its frozen target list
//   - error: nil on acceptance, or:
//   - ErrStationNotFound if the station doesn't exist
//   - ErrInvalidOperation if the operation is empty
func (c *Coordinator) ExecuteCommand(ctx context.Context, req ExecuteRequest) (*Command, error) {
	if req.Operation == "" {
		return nil, ErrInvalidOperation
	}
	if err := c.requireStation(ctx, req.StationID); err != nil {
		return nil, err
	}

	targets, err := c.resolveTargets(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolving targets: %w", err)
	}

	now := time.Now().UTC()
	scheduled := now
	if req.ScheduledExecutionTime != nil {
		scheduled = req.ScheduledExecutionTime.UTC()
	}
	params := req.Parameters
	if params == nil {
		params = make(map[string]any)
	}

	cmd := &Command{
		ID:                     GenerateCommandID(),
		StationID:              req.StationID,
		Operation:              req.Operation,
		Parameters:             params,
		TargetDevices:          targets,
		TargetGroups:           req.TargetGroups,
		ScheduledExecutionTime: scheduled,
		Status:                 StatusPending,
		CreatedAt:              now,
	}
	if req.RequestedBy != "" {
		cmd.RequestedBy = &req.RequestedBy
	}

	if err := c.commands.Create(ctx, cmd); err != nil {
		return nil, fmt.Errorf("persisting command: %w", err)
	}

	c.logger.Info("command accepted",
		"command_id", cmd.ID,
		"station_id", cmd.StationID,
		"operation", cmd.Operation,
		"targets", len(cmd.TargetDevices),
	)

	c.startDispatch(cmd)
	return cmd, nil
}

// GetCommand retrieves a command and its current outcome.
func (c *Coordinator) GetCommand(ctx context.Context, commandID string) (*Command, error) {
	return c.commands.GetByID(ctx, commandID)
}

// ListStationCommands returns a station's command history, newest first.
func (c *Coordinator) ListStationCommands(ctx context.Context, stationID string, limit int) ([]Command, error) {
	return c.commands.ListByStation(ctx, stationID, limit)
}

// CancelCommand cancels a command that has not started dispatching.
//
// Only pending commands can be cancelled. Once dispatch has begun the
// command runs to completion; cancellation then returns ErrNotCancellable.
func (c *Coordinator) CancelCommand(ctx context.Context, commandID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, err := c.commands.GetByID(ctx, commandID)
	if err != nil {
		return err
	}
	if cmd.Status != StatusPending {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, cmd.Status)
	}

	cmd.Status = StatusCancelled
	if err := c.commands.Update(ctx, cmd); err != nil {
		return fmt.Errorf("cancelling command: %w", err)
	}

	c.logger.Info("command cancelled", "command_id", commandID)
	return nil
}

// Done returns a channel that closes when the command's dispatch has
// finished. For commands that are unknown or already terminal the
// returned channel is closed.
func (c *Coordinator) Done(commandID string) <-chan struct{} {
	c.doneMu.Lock()
	defer c.doneMu.Unlock()
	if ch, ok := c.done[commandID]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// ─── Bulk Operations ────────────────────────────────────────────────────────

// StartAll commands every device at a station to begin treatment.
// Returns the accepted command and each device's initial pending outcome.
func (c *Coordinator) StartAll(ctx context.Context, stationID, requestedBy string) (*Command, map[string]string, error) {
	return c.executeBulk(ctx, stationID, OperationStartAll, nil, requestedBy)
}

// StopAll commands every device at a station to stop treatment.
func (c *Coordinator) StopAll(ctx context.Context, stationID, requestedBy string) (*Command, map[string]string, error) {
	return c.executeBulk(ctx, stationID, OperationStopAll, nil, requestedBy)
}

// EmergencyStop commands every device at a station to halt immediately.
func (c *Coordinator) EmergencyStop(ctx context.Context, stationID, requestedBy string) (*Command, map[string]string, error) {
	c.logger.Warn("EMERGENCY STOP requested", "station_id", stationID, "requested_by", requestedBy)
	return c.executeBulk(ctx, stationID, OperationEmergencyStop, nil, requestedBy)
}

// SyncParameters pushes a shared parameter set to every device at a
// station.
func (c *Coordinator) SyncParameters(ctx context.Context, stationID string, parameters map[string]any) (*Command, map[string]string, error) {
	return c.executeBulk(ctx, stationID, OperationSyncParameters, parameters, "System")
}

func (c *Coordinator) executeBulk(ctx context.Context, stationID, operation string, parameters map[string]any, requestedBy string) (*Command, map[string]string, error) {
	cmd, err := c.ExecuteCommand(ctx, ExecuteRequest{
		StationID:   stationID,
		Operation:   operation,
		Parameters:  parameters,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return nil, nil, err
	}

	results := make(map[string]string, len(cmd.TargetDevices))
	for _, deviceID := range cmd.TargetDevices {
		results[deviceID] = OutcomePending
	}
	return cmd, results, nil
}

// ─── Dispatch ───────────────────────────────────────────────────────────────

// startDispatch registers the command's completion channel and launches
// the dispatch goroutine.
func (c *Coordinator) startDispatch(cmd *Command) {
	ch := make(chan struct{})
	c.doneMu.Lock()
	c.done[cmd.ID] = ch
	c.doneMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer func() {
			c.doneMu.Lock()
			delete(c.done, cmd.ID)
			c.doneMu.Unlock()
			close(ch)
			c.wg.Done()
		}()
		c.dispatch(cmd)
	}()
}

// dispatch publishes the command to each target device in turn and
// records the aggregate outcome. One device's failure never aborts the
// remaining devices; only a structural fault (a panic, or a store that
// cannot record the dispatch start) marks the whole command failed.
func (c *Coordinator) dispatch(cmd *Command) {
	ctx, cancel := context.WithTimeout(context.Background(), maxDispatchTime)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("dispatch panic: %v", r)
			cmd.Status = StatusFailed
			cmd.ErrorMessage = &msg
			if err := c.commands.Update(ctx, cmd); err != nil {
				c.logger.Error("failed to record command failure", "command_id", cmd.ID, "error", err)
			}
			c.logger.Error("command dispatch failed", "command_id", cmd.ID, "panic", r)
		}
	}()

	if !c.markExecuting(ctx, cmd) {
		return
	}

	results := make(map[string]string, len(cmd.TargetDevices))
	for i, deviceID := range cmd.TargetDevices {
		results[deviceID] = c.dispatchOne(ctx, cmd, deviceID)

		if c.dispatchPause > 0 && i < len(cmd.TargetDevices)-1 {
			select {
			case <-time.After(c.dispatchPause):
			case <-ctx.Done():
			}
		}
	}

	sent := 0
	for _, outcome := range results {
		if outcome == OutcomeSent {
			sent++
		}
	}

	now := time.Now().UTC()
	cmd.DeviceResults = results
	cmd.ActualExecutionTime = &now
	if sent == len(results) {
		cmd.Status = StatusCompleted
	} else {
		cmd.Status = StatusCompletedWithErrors
	}
	summary := fmt.Sprintf("%d of %d commands sent successfully", sent, len(results))
	cmd.ResultSummary = &summary

	if err := c.commands.Update(ctx, cmd); err != nil {
		c.logger.Error("failed to record command outcome", "command_id", cmd.ID, "error", err)
	}

	c.logger.Info("command completed",
		"command_id", cmd.ID,
		"status", cmd.Status,
		"summary", summary,
	)
}

// markExecuting transitions the command from pending to executing.
// Returns false when the command was cancelled before dispatch began,
// or when the store could not record the transition (the command is then
// marked failed and nothing is published). The transition shares a mutex
// with CancelCommand so the store never sees both writes.
func (c *Coordinator) markExecuting(ctx context.Context, cmd *Command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh, err := c.commands.GetByID(ctx, cmd.ID)
	if err == nil && fresh.Status != StatusPending {
		c.logger.Info("dispatch skipped", "command_id", cmd.ID, "status", fresh.Status)
		return false
	}

	now := time.Now().UTC()
	cmd.Status = StatusExecuting
	cmd.ActualExecutionTime = &now
	if err := c.commands.Update(ctx, cmd); err != nil {
		// The stored record is the only truth callers can observe. If the
		// store cannot acknowledge the transition, no device may act on a
		// command it still shows as pending.
		c.logger.Error("failed to record dispatch start", "command_id", cmd.ID, "error", err)
		msg := fmt.Sprintf("recording dispatch start: %v", err)
		cmd.Status = StatusFailed
		cmd.ErrorMessage = &msg
		if failErr := c.commands.Update(ctx, cmd); failErr != nil {
			c.logger.Error("failed to record command failure", "command_id", cmd.ID, "error", failErr)
		}
		return false
	}
	return true
}

// dispatchOne publishes the command to a single device and returns its
// outcome string.
func (c *Coordinator) dispatchOne(ctx context.Context, cmd *Command, deviceID string) string {
	dev, err := c.devices.GetDevice(ctx, deviceID)
	if err != nil || dev.ExternalDeviceID == "" {
		return OutcomeDeviceNotFound
	}

	if c.publisher == nil || !c.publisher.IsConnected() {
		return OutcomeNotConnected
	}

	payload, err := json.Marshal(commandPayload{
		CommandID:  cmd.ID,
		Operation:  cmd.Operation,
		Parameters: cmd.Parameters,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return failedOutcome(err)
	}

	topic := c.topics.DeviceCommand(dev.ExternalDeviceID)
	if err := c.publisher.Publish(topic, payload, commandQoS, false); err != nil {
		c.logger.Error("failed to send command to device",
			"command_id", cmd.ID,
			"device_id", deviceID,
			"error", err,
		)
		return failedOutcome(err)
	}

	c.logger.Debug("command published",
		"command_id", cmd.ID,
		"device_id", deviceID,
		"topic", topic,
	)
	return OutcomeSent
}
