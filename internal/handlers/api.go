package handlers

import (
	"context"
	"database/sql"

	"fleetwear/internal/backend"
	"fleetwear/internal/fleet"
	"fleetwear/internal/monitor"
	"fleetwear/internal/notify"
)

// FleetReader is the part of the backend client the handlers use.
type FleetReader interface {
	Trucks(ctx context.Context, s backend.Session) ([]fleet.Truck, error)
	Trailers(ctx context.Context, s backend.Session) ([]fleet.Trailer, error)
	Tires(ctx context.Context, s backend.Session) ([]fleet.Tire, error)
	Trips(ctx context.Context, s backend.Session, driverID string) ([]fleet.Trip, error)
	Trip(ctx context.Context, s backend.Session, id string) (*fleet.Trip, error)
	MaintenanceConfig(ctx context.Context, s backend.Session) (fleet.MaintenanceConfig, error)
}

// Scanner triggers an immediate fleet scan.
type Scanner interface {
	ScanOnce(ctx context.Context) (*monitor.Report, error)
}

// API holds the dependencies of the HTTP handlers.
type API struct {
	DB    *sql.DB
	Fleet FleetReader
	// Maintenance fills service intervals the backend leaves unset.
	Maintenance fleet.MaintenanceConfig
	// Sender delivers test notifications; nil uses Shoutrrr.
	Sender notify.Sender
	// Scanner is optional; without it POST /api/wear/scan returns 503.
	Scanner Scanner
}

func (a *API) sender() notify.Sender {
	if a.Sender == nil {
		return notify.ShoutrrrSender{}
	}
	return a.Sender
}

// maintenanceConfig fetches the fleet-wide intervals, falling back to the
// configured defaults when the backend cannot provide them.
func (a *API) maintenanceConfig(ctx context.Context, s backend.Session) fleet.MaintenanceConfig {
	cfg, err := a.Fleet.MaintenanceConfig(ctx, s)
	if err != nil {
		cfg = fleet.MaintenanceConfig{}
	}
	return cfg.WithDefaults(a.Maintenance)
}
