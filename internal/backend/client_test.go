package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/"})
}

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/auth/me", r.URL.Path)
		w.Write([]byte(`{"_id":"u1","name":"Ana","email":"ana@example.com","role":"driver","status":"active"}`))
	})

	u, err := c.Me(context.Background(), Session{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "u1", u.ID)
	assert.EqualValues(t, "driver", u.Role)
}

func TestClient_TrucksDecodesRefs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"_id":"t1","licensePlate":"AB-1","currentMileage":120000,"nextMaintenanceMileage":125000,"assignedDriver":"u1"},
			{"_id":"t2","licensePlate":"AB-2","currentMileage":50,"assignedDriver":{"_id":"u2","name":"Sam"}}
		]`))
	})

	trucks, err := c.Trucks(context.Background(), Session{Token: "tok"})
	require.NoError(t, err)
	require.Len(t, trucks, 2)
	assert.Equal(t, "u1", trucks[0].AssignedDriver.ID())
	require.NotNil(t, trucks[0].NextMaintenanceMileage)
	assert.Equal(t, 125000.0, *trucks[0].NextMaintenanceMileage)

	drv, ok := trucks[1].AssignedDriver.Resolved()
	require.True(t, ok)
	assert.Equal(t, "Sam", drv.Name)
	assert.Nil(t, trucks[1].NextMaintenanceMileage)
}

func TestClient_TripsFiltersByDriver(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trips", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("driver"))
		w.Write([]byte(`[{"_id":"trip1","status":"in_progress","driver":"u1","truck":{"_id":"t1","licensePlate":"AB-1"}}]`))
	})

	trips, err := c.Trips(context.Background(), Session{Token: "tok"}, "u1")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "t1", trips[0].Truck.ID())
}

func TestClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Not authorized, token failed"}`))
	})

	_, err := c.Me(context.Background(), Session{Token: "expired"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Not authorized, token failed", apiErr.Message)
}

func TestClient_ServerErrorIsNotUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Tires(context.Background(), Session{Token: "tok"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Contains(t, err.Error(), "HTTP 500: boom")
}

func TestClient_MaintenanceConfig(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maintenance/config", r.URL.Path)
		w.Write([]byte(`{"oilChangeIntervalKm":20000}`))
	})

	cfg, err := c.MaintenanceConfig(context.Background(), Session{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, 20000.0, cfg.OilChangeIntervalKm)
	assert.Zero(t, cfg.TireRotationIntervalKm)
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Trailers(ctx, Session{Token: "tok"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{BaseURL: "https://fleet.example.com/api"}, false},
		{"missing", Config{}, true},
		{"no scheme", Config{BaseURL: "fleet.example.com"}, true},
		{"ftp", Config{BaseURL: "ftp://fleet.example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:5000/api/"}
	cfg.SetDefaults()
	assert.Equal(t, "http://localhost:5000/api", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}
