package handlers

import (
	"net/http"

	"fleetwear/internal/auth"
	"fleetwear/internal/fleet"
)

// Routes holds what NewRouter mounts besides the API handlers.
type Routes struct {
	Auth *auth.Authenticator
	// Live serves the wear WebSocket feed; omitted when nil.
	Live http.HandlerFunc
	// Metrics serves the Prometheus exposition; omitted when nil.
	Metrics http.Handler
}

// NewRouter registers every endpoint on a fresh ServeMux.
func NewRouter(a *API, rt Routes) *http.ServeMux {
	mux := http.NewServeMux()

	signedIn := rt.Auth.Middleware
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return signedIn(auth.RequireRole(h, fleet.RoleAdmin))
	}
	driver := func(h http.HandlerFunc) http.HandlerFunc {
		return signedIn(auth.RequireRole(h, fleet.RoleDriver))
	}

	mux.HandleFunc("GET /health", a.Health)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	// Wear
	mux.HandleFunc("POST /api/wear/compute", signedIn(a.ComputeWear))
	mux.HandleFunc("GET /api/wear/fleet", admin(a.FleetWear))
	mux.HandleFunc("GET /api/wear/mine", driver(a.MyWear))
	mux.HandleFunc("GET /api/wear/trips/{id}", signedIn(auth.RequireRole(a.TripWear, fleet.RoleAdmin, fleet.RoleDriver)))
	mux.HandleFunc("GET /api/wear/latest", admin(a.LatestWear))
	mux.HandleFunc("GET /api/wear/history", admin(a.WearHistory))
	mux.HandleFunc("GET /api/wear/trend", admin(a.WearTrend))
	mux.HandleFunc("POST /api/wear/scan", admin(a.ScanNow))

	// Notifications
	mux.HandleFunc("GET /api/notifications/services", admin(a.ListNotificationServices))
	mux.HandleFunc("POST /api/notifications/services", admin(a.CreateNotificationService))
	mux.HandleFunc("GET /api/notifications/services/{id}", admin(a.GetNotificationService))
	mux.HandleFunc("PUT /api/notifications/services/{id}", admin(a.UpdateNotificationService))
	mux.HandleFunc("DELETE /api/notifications/services/{id}", admin(a.DeleteNotificationService))
	mux.HandleFunc("PUT /api/notifications/services/{id}/rules", admin(a.UpdateEventRules))
	mux.HandleFunc("PUT /api/notifications/services/{id}/quiet-hours", admin(a.UpdateQuietHours))
	mux.HandleFunc("DELETE /api/notifications/services/{id}/quiet-hours", admin(a.ClearQuietHours))
	mux.HandleFunc("POST /api/notifications/services/{id}/test", admin(a.TestNotificationService))
	mux.HandleFunc("GET /api/notifications/history", admin(a.NotificationHistory))

	if rt.Live != nil {
		mux.HandleFunc("GET /ws/wear", signedIn(rt.Live))
	}

	return mux
}
