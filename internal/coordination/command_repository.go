package coordination

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CommandRepository defines the interface for command persistence.
// Every lifecycle transition is written through here so the command
// table doubles as the dispatch audit trail.
type CommandRepository interface {
	Create(ctx context.Context, cmd *Command) error
	GetByID(ctx context.Context, id string) (*Command, error)
	// ListByStation returns a station's commands newest first.
	ListByStation(ctx context.Context, stationID string, limit int) ([]Command, error)
	Update(ctx context.Context, cmd *Command) error
}

// commandColumns is the SELECT column list for command queries.
const commandColumns = `id, station_id, operation, parameters, target_devices,
			target_groups, scheduled_execution_time, actual_execution_time, status,
			result_summary, device_results, error_message, requested_by, created_at`

// defaultCommandLimit bounds unpaged station history queries.
const defaultCommandLimit = 50

// SQLiteCommandRepository implements CommandRepository using SQLite.
type SQLiteCommandRepository struct {
	db *sql.DB
}

// NewSQLiteCommandRepository creates a new SQLite-backed command repository.
func NewSQLiteCommandRepository(db *sql.DB) *SQLiteCommandRepository {
	return &SQLiteCommandRepository{db: db}
}

// Create inserts a new command record.
func (r *SQLiteCommandRepository) Create(ctx context.Context, cmd *Command) error {
	parametersJSON, err := marshalObject(cmd.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}
	targetsJSON, err := json.Marshal(cmd.TargetDevices)
	if err != nil {
		return fmt.Errorf("marshalling target devices: %w", err)
	}
	groupsJSON, err := marshalList(cmd.TargetGroups)
	if err != nil {
		return fmt.Errorf("marshalling target groups: %w", err)
	}
	resultsJSON, err := marshalObject(cmd.DeviceResults)
	if err != nil {
		return fmt.Errorf("marshalling device results: %w", err)
	}

	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO coordination_commands (
			id, station_id, operation, parameters, target_devices,
			target_groups, scheduled_execution_time, actual_execution_time, status,
			result_summary, device_results, error_message, requested_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		cmd.ID,
		cmd.StationID,
		cmd.Operation,
		parametersJSON,
		string(targetsJSON),
		groupsJSON,
		cmd.ScheduledExecutionTime.Format(time.RFC3339),
		nullableTime(cmd.ActualExecutionTime),
		string(cmd.Status),
		nullableString(cmd.ResultSummary),
		resultsJSON,
		nullableString(cmd.ErrorMessage),
		nullableString(cmd.RequestedBy),
		cmd.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command: %w", err)
	}
	return nil
}

// GetByID retrieves a command by its unique identifier.
func (r *SQLiteCommandRepository) GetByID(ctx context.Context, id string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM coordination_commands WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("querying command by id: %w", err)
	}
	return cmd, nil
}

// ListByStation retrieves a station's command history, newest first.
func (r *SQLiteCommandRepository) ListByStation(ctx context.Context, stationID string, limit int) ([]Command, error) {
	if limit <= 0 {
		limit = defaultCommandLimit
	}

	query := `SELECT ` + commandColumns + ` FROM coordination_commands
		WHERE station_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		cmd, scanErr := scanCommandFromRows(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning command: %w", scanErr)
		}
		commands = append(commands, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return commands, nil
}

// Update rewrites the mutable lifecycle fields of an existing command.
// Identity and targeting fields are frozen at Create and never change.
func (r *SQLiteCommandRepository) Update(ctx context.Context, cmd *Command) error {
	resultsJSON, err := marshalObject(cmd.DeviceResults)
	if err != nil {
		return fmt.Errorf("marshalling device results: %w", err)
	}

	query := `
		UPDATE coordination_commands SET
			actual_execution_time = ?, status = ?, result_summary = ?,
			device_results = ?, error_message = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		nullableTime(cmd.ActualExecutionTime),
		string(cmd.Status),
		nullableString(cmd.ResultSummary),
		resultsJSON,
		nullableString(cmd.ErrorMessage),
		cmd.ID,
	)
	if err != nil {
		return fmt.Errorf("updating command: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// marshalObject serialises a map column, storing NULL when empty.
func marshalObject[V any](m map[string]V) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// marshalList serialises a slice column, storing NULL when empty.
func marshalList(items []string) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// nullableTime converts a *time.Time to a driver-friendly RFC3339 value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// scanCommand scans a single sql.Row into a Command.
func scanCommand(row *sql.Row) (*Command, error) {
	return scanCommandRow(row)
}

// scanCommandFromRows scans a sql.Rows result into a Command.
func scanCommandFromRows(rows *sql.Rows) (*Command, error) {
	return scanCommandRow(rows)
}

func scanCommandRow(scanner rowScanner) (*Command, error) {
	var c Command
	var parametersJSON, groupsJSON, resultsJSON sql.NullString
	var actualExecution, resultSummary, errorMessage, requestedBy sql.NullString
	var targetsJSON, scheduledExecution, status, createdAt string

	err := scanner.Scan(
		&c.ID,
		&c.StationID,
		&c.Operation,
		&parametersJSON,
		&targetsJSON,
		&groupsJSON,
		&scheduledExecution,
		&actualExecution,
		&status,
		&resultSummary,
		&resultsJSON,
		&errorMessage,
		&requestedBy,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = Status(status)

	if resultSummary.Valid {
		c.ResultSummary = &resultSummary.String
	}
	if errorMessage.Valid {
		c.ErrorMessage = &errorMessage.String
	}
	if requestedBy.Valid {
		c.RequestedBy = &requestedBy.String
	}

	if parametersJSON.Valid && parametersJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(parametersJSON.String), &c.Parameters); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling parameters: %w", jsonErr)
		}
	}
	if targetsJSON != "" && targetsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(targetsJSON), &c.TargetDevices); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling target devices: %w", jsonErr)
		}
	}
	if c.TargetDevices == nil {
		c.TargetDevices = []string{}
	}
	if groupsJSON.Valid && groupsJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(groupsJSON.String), &c.TargetGroups); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling target groups: %w", jsonErr)
		}
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(resultsJSON.String), &c.DeviceResults); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling device results: %w", jsonErr)
		}
	}

	if t, parseErr := time.Parse(time.RFC3339, scheduledExecution); parseErr == nil {
		c.ScheduledExecutionTime = t
	}
	if actualExecution.Valid {
		if t, parseErr := time.Parse(time.RFC3339, actualExecution.String); parseErr == nil {
			c.ActualExecutionTime = &t
		}
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		c.CreatedAt = t
	}

	return &c, nil
}
