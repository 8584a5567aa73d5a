package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fleetwear/internal/auth"
	"fleetwear/internal/backend"
	"fleetwear/internal/db"
	"fleetwear/internal/fleet"
	"fleetwear/internal/monitor"
	"fleetwear/internal/wearout"
)

type fakeFleet struct {
	trucks   []fleet.Truck
	trailers []fleet.Trailer
	trailErr error
	tires    []fleet.Tire
	trips    map[string][]fleet.Trip
	cfg      fleet.MaintenanceConfig
	cfgErr   error
	err      error
	truckGet int
}

func (f *fakeFleet) Trucks(context.Context, backend.Session) ([]fleet.Truck, error) {
	f.truckGet++
	return f.trucks, f.err
}

func (f *fakeFleet) Trailers(context.Context, backend.Session) ([]fleet.Trailer, error) {
	return f.trailers, f.trailErr
}

func (f *fakeFleet) Tires(context.Context, backend.Session) ([]fleet.Tire, error) {
	return f.tires, f.err
}

func (f *fakeFleet) Trips(_ context.Context, _ backend.Session, driverID string) ([]fleet.Trip, error) {
	return f.trips[driverID], f.err
}

func (f *fakeFleet) Trip(_ context.Context, _ backend.Session, id string) (*fleet.Trip, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, trips := range f.trips {
		for _, trip := range trips {
			if trip.ID == id {
				return &trip, nil
			}
		}
	}
	return nil, &backend.APIError{Status: http.StatusNotFound, Message: "Trip not found"}
}

func (f *fakeFleet) MaintenanceConfig(context.Context, backend.Session) (fleet.MaintenanceConfig, error) {
	return f.cfg, f.cfgErr
}

type fakeResolver map[string]fleet.User

func (f fakeResolver) Me(_ context.Context, s backend.Session) (*fleet.User, error) {
	u, ok := f[s.Token]
	if !ok {
		return nil, backend.ErrUnauthorized
	}
	return &u, nil
}

type fakeScanner struct {
	report *monitor.Report
	err    error
	calls  int
}

func (f *fakeScanner) ScanOnce(context.Context) (*monitor.Report, error) {
	f.calls++
	return f.report, f.err
}

type recordingSender struct {
	mu   sync.Mutex
	urls []string
	msgs []string
	err  error
}

func (s *recordingSender) Send(url, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	s.msgs = append(s.msgs, message)
	return s.err
}

func f64(v float64) *float64 { return &v }

func sampleFleet() *fakeFleet {
	t1 := fleet.Truck{ID: "t1", LicensePlate: "AB-123-CD", CurrentMileage: 14000, NextMaintenanceMileage: f64(15000), Status: fleet.StatusOnTrip}
	t2 := fleet.Truck{ID: "t2", LicensePlate: "EF-456-GH", CurrentMileage: 5000, NextMaintenanceMileage: f64(15000), Status: fleet.StatusAvailable}
	r1 := fleet.Trailer{ID: "r1", LicensePlate: "TR-77"}
	d1 := fleet.RefID[fleet.User]("d1")
	return &fakeFleet{
		trucks:   []fleet.Truck{t1, t2},
		trailers: []fleet.Trailer{r1},
		tires: []fleet.Tire{
			{ID: "tr1", SerialNumber: "SN-1", Status: "in_use", TreadDepth: 2, AssignedTo: "t1", AssignedToModel: "Truck"},
			{ID: "tr2", SerialNumber: "SN-2", Status: "in_use", TreadDepth: 10, AssignedTo: "r1", AssignedToModel: "Trailer"},
			{ID: "tr3", SerialNumber: "SN-3", Status: "scrap", TreadDepth: 0, AssignedTo: "t1", AssignedToModel: "Truck"},
		},
		trips: map[string][]fleet.Trip{
			"d1": {
				{ID: "p1", TripNumber: "TRP-1", Driver: d1, Status: fleet.TripInProgress, Truck: fleet.RefTo("t1", &t1), Trailer: fleet.RefTo("r1", &r1)},
				{ID: "p2", Driver: d1, Status: fleet.TripPlanned, Truck: fleet.RefID[fleet.Truck]("t2")},
				{ID: "p3", Driver: d1, Status: fleet.TripPlanned, Truck: fleet.RefID[fleet.Truck]("t1")},
				{ID: "p4", Driver: d1, Status: fleet.TripCompleted, Truck: fleet.RefID[fleet.Truck]("t9")},
			},
			"d2": {
				{ID: "p9", Driver: fleet.RefID[fleet.User]("d2"), Status: fleet.TripPlanned, Truck: fleet.RefID[fleet.Truck]("t2")},
			},
		},
	}
}

func users() fakeResolver {
	return fakeResolver{
		"admin-tok":  {ID: "a1", Name: "Admin", Role: fleet.RoleAdmin, Status: "active"},
		"driver-tok": {ID: "d1", Name: "Driver", Role: fleet.RoleDriver, Status: "active"},
		"user-tok":   {ID: "u1", Name: "Viewer", Role: fleet.RoleUser, Status: "active"},
	}
}

type testEnv struct {
	api     *API
	fleet   *fakeFleet
	sender  *recordingSender
	scanner *fakeScanner
	handler http.Handler
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		fleet:   sampleFleet(),
		sender:  &recordingSender{},
		scanner: &fakeScanner{report: &monitor.Report{Vehicles: make([]wearout.VehicleWear, 4)}},
	}
	env.api = &API{
		DB:      newTestDB(t),
		Fleet:   env.fleet,
		Sender:  env.sender,
		Scanner: env.scanner,
	}
	env.handler = NewRouter(env.api, Routes{Auth: auth.NewAuthenticator(users(), 0)})
	return env
}

// do sends a request as the holder of token and returns the recorder.
func (e *testEnv) do(method, target, token, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
