package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mededge/treatment-core/internal/auth"
	"github.com/mededge/treatment-core/internal/coordination"
	"github.com/mededge/treatment-core/internal/device"
	"github.com/mededge/treatment-core/internal/infrastructure/config"
	"github.com/mededge/treatment-core/internal/infrastructure/logging"
	"github.com/mededge/treatment-core/internal/station"
)

// testPassword is the password for the seeded test user.
const testPassword = "correct-horse-battery"

// testEnv bundles the server under test with direct handles on its
// backing stores for seeding.
type testEnv struct {
	srv       *Server
	router    http.Handler
	registry   *device.Registry
	stations   station.Repository
	publisher  *fakePublisher
	token      string // clinician account
	adminToken string
}

// fakePublisher records MQTT publishes without a broker.
type fakePublisher struct {
	connected bool
	published []string // topics, in publish order
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) Publish(topic string, _ []byte, _ byte, _ bool) error {
	p.published = append(p.published, topic)
	return nil
}

// registryDirectory adapts the device registry to the coordinator's
// routing directory.
type registryDirectory struct {
	registry *device.Registry
}

func (d registryDirectory) GetDevice(ctx context.Context, id string) (coordination.DeviceInfo, error) {
	dev, err := d.registry.GetDevice(ctx, id)
	if err != nil {
		return coordination.DeviceInfo{}, err
	}
	return coordination.DeviceInfo{ID: dev.ID, ExternalDeviceID: dev.ExternalDeviceID, StationID: dev.StationID}, nil
}

func (d registryDirectory) GetDevicesAtStation(ctx context.Context, stationID string) ([]coordination.DeviceInfo, error) {
	devices, err := d.registry.GetDevicesByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	infos := make([]coordination.DeviceInfo, len(devices))
	for i, dev := range devices {
		infos[i] = coordination.DeviceInfo{ID: dev.ID, ExternalDeviceID: dev.ExternalDeviceID, StationID: dev.StationID}
	}
	return infos, nil
}

// stationDirectory adapts the station repository to the coordinator's
// existence check.
type stationDirectory struct {
	repo station.Repository
}

func (d stationDirectory) StationExists(ctx context.Context, id string) (bool, error) {
	if _, err := d.repo.GetStation(ctx, id); err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE treatment_areas (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			area_type TEXT NOT NULL DEFAULT 'general',
			capacity INTEGER NOT NULL DEFAULT 10,
			parent_area_id TEXT,
			description TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE stations (
			id TEXT PRIMARY KEY,
			station_number TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'available',
			area_id TEXT NOT NULL,
			current_patient_id TEXT,
			current_treatment_id TEXT,
			physical_location TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			external_device_id TEXT NOT NULL UNIQUE,
			station_id TEXT,
			manufacturer TEXT,
			model TEXT,
			serial_number TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			assigned_patient_id TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE device_groups (
			id TEXT PRIMARY KEY,
			station_id TEXT NOT NULL,
			name TEXT NOT NULL,
			group_type TEXT NOT NULL DEFAULT 'treatment',
			device_ids TEXT NOT NULL,
			coordination_rules TEXT,
			description TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			display_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE coordination_commands (
			id TEXT PRIMARY KEY,
			station_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			parameters TEXT,
			target_devices TEXT NOT NULL,
			target_groups TEXT,
			scheduled_execution_time TEXT NOT NULL,
			actual_execution_time TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			result_summary TEXT,
			device_results TEXT,
			error_message TEXT,
			requested_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'clinician',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestEnv creates a Server backed by in-memory SQLite with one seeded
// clinician account and a logged-in token.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)

	deviceRepo := device.NewSQLiteRepository(db)
	registry := device.NewRegistry(deviceRepo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	stationRepo := station.NewSQLiteRepository(db)
	userRepo := auth.NewUserRepository(db)
	publisher := &fakePublisher{connected: true}

	coordinator := coordination.NewCoordinator(
		coordination.NewSQLiteCommandRepository(db),
		coordination.NewSQLiteGroupRepository(db),
		registryDirectory{registry: registry},
		stationDirectory{repo: stationRepo},
		publisher,
		nil,
		coordination.Config{DispatchPause: -1},
	)
	t.Cleanup(coordinator.Close)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         "test-secret-key-at-least-32-characters-long",
				AccessTokenTTL: 15,
			},
		},
		Logger:      log,
		Registry:    registry,
		Stations:    stationRepo,
		Coordinator: coordinator,
		Users:       userRepo,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	// Seed a clinician and an admin account
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	for _, u := range []*auth.User{
		{Username: "nurse1", PasswordHash: hash, Role: auth.RoleClinician, Active: true},
		{Username: "charge1", PasswordHash: hash, Role: auth.RoleAdmin, Active: true},
	} {
		if err := userRepo.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	env := &testEnv{
		srv:       srv,
		router:    srv.buildRouter(),
		registry:  registry,
		stations:  stationRepo,
		publisher: publisher,
	}
	env.token = env.login(t, "nurse1", testPassword)
	env.adminToken = env.login(t, "charge1", testPassword)
	return env
}

// login obtains an access token via POST /auth/login.
func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username": %q, "password": %q}`, username, password)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	return resp.AccessToken
}

// do performs a request authenticated as the clinician account.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.token, method, path, body)
}

// doAdmin performs a request authenticated as the admin account.
func (e *testEnv) doAdmin(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.adminToken, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// seedStation creates an area and a station for coordination tests.
func (e *testEnv) seedStation(t *testing.T, areaID, stationID string) {
	t.Helper()

	area := &station.TreatmentArea{
		ID: areaID, Name: "Bay " + areaID, AreaType: station.AreaTypeDialysis, Capacity: 8, Active: true,
	}
	if err := e.stations.CreateArea(context.Background(), area); err != nil {
		t.Fatalf("seed area: %v", err)
	}
	st := &station.Station{
		ID: stationID, StationNumber: "N-" + stationID, Status: station.StatusOccupied, AreaID: areaID,
	}
	if err := e.stations.CreateStation(context.Background(), st); err != nil {
		t.Fatalf("seed station: %v", err)
	}
}

// seedDevice registers a device assigned to a station.
func (e *testEnv) seedDevice(t *testing.T, id, externalID, stationID string) {
	t.Helper()

	d := &device.Device{ID: id, ExternalDeviceID: externalID, StationID: &stationID, Status: device.StatusActive}
	if err := e.registry.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("seed device %s: %v", id, err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	body := `{"username": "nurse1", "password": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestProtectedRoute_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestProtectedRoute_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestProtectedRoute_AcceptsValidToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Errorf("status with token = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestWSTicket_Issued(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ticket, _ := resp["ticket"].(string) //nolint:errcheck // zero value fails the check below
	if ticket == "" {
		t.Fatal("expected non-empty ticket")
	}

	// Ticket validates exactly once
	if _, ok := env.srv.tickets.validate(ticket); !ok {
		t.Error("expected ticket to validate")
	}
	if _, ok := env.srv.tickets.validate(ticket); ok {
		t.Error("expected ticket to be single-use")
	}
}

func TestWebSocket_RejectsMissingTicket(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
