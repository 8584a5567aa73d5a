package handlers

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"fleetwear/internal/auth"
	"fleetwear/internal/backend"
	"fleetwear/internal/fleet"
	"fleetwear/internal/logging"
	"fleetwear/internal/wearout"
)

// maxBatch bounds the number of inputs accepted by ComputeWear.
const maxBatch = 500

// ComputeWear evaluates one calculator input, or an array of them.
// POST /api/wear/compute
func (a *API) ComputeWear(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		JSONError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var inputs []wearout.Input
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			JSONError(w, "Invalid input array", http.StatusBadRequest)
			return
		}
		if len(inputs) > maxBatch {
			JSONError(w, "Too many inputs", http.StatusRequestEntityTooLarge)
			return
		}
		results := make([]wearout.Result, len(inputs))
		for i, in := range inputs {
			results[i] = wearout.Compute(in)
		}
		JSONResponse(w, map[string]any{"results": results, "count": len(results)})
		return
	}

	var in wearout.Input
	if err := json.Unmarshal(raw, &in); err != nil {
		JSONError(w, "Invalid input", http.StatusBadRequest)
		return
	}
	JSONResponse(w, wearout.Compute(in))
}

// FleetWear assesses every truck and tire live from the backend.
// GET /api/wear/fleet?kind=truck|tire&severity=warning|critical
func (a *API) FleetWear(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	ctx := r.Context()

	trucks, err := a.Fleet.Trucks(ctx, p.Session)
	if err != nil {
		backendError(w, err)
		return
	}
	tires, err := a.Fleet.Tires(ctx, p.Session)
	if err != nil {
		backendError(w, err)
		return
	}
	trailers, err := a.Fleet.Trailers(ctx, p.Session)
	if err != nil {
		lg := logging.Component("http")
		lg.Warn().Err(err).Msg("trailers unavailable, tires keep unlabelled mounts")
	}
	cfg := a.maintenanceConfig(ctx, p.Session)

	vehicles := filterVehicles(wearout.AssessFleet(trucks, trailers, tires, cfg),
		r.URL.Query().Get("kind"), r.URL.Query().Get("severity"))

	JSONResponse(w, map[string]any{
		"vehicles":    vehicles,
		"count":       len(vehicles),
		"summary":     summarize(vehicles),
		"maintenance": cfg,
	})
}

// MyWear assesses the trucks on the calling driver's active trips.
// GET /api/wear/mine
func (a *API) MyWear(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	ctx := r.Context()

	trips, err := a.Fleet.Trips(ctx, p.Session, p.User.ID)
	if err != nil {
		backendError(w, err)
		return
	}

	var (
		seen     = make(map[string]bool)
		trucks   []fleet.Truck
		byID     map[string]fleet.Truck
		unloaded = true
	)
	for _, trip := range trips {
		if !trip.Active() {
			continue
		}
		id := trip.Truck.ID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if doc, ok := trip.Truck.Resolved(); ok {
			trucks = append(trucks, *doc)
			continue
		}
		if unloaded {
			all, err := a.Fleet.Trucks(ctx, p.Session)
			if err != nil {
				backendError(w, err)
				return
			}
			byID = make(map[string]fleet.Truck, len(all))
			for _, t := range all {
				byID[t.ID] = t
			}
			unloaded = false
		}
		if t, ok := byID[id]; ok {
			trucks = append(trucks, t)
		}
	}

	cfg := a.maintenanceConfig(ctx, p.Session)
	vehicles := make([]wearout.VehicleWear, 0, len(trucks))
	for _, t := range trucks {
		vehicles = append(vehicles, wearout.AssessTruck(t, cfg))
	}

	JSONResponse(w, map[string]any{
		"vehicles": vehicles,
		"count":    len(vehicles),
		"summary":  summarize(vehicles),
	})
}

// TripWear assesses the truck of one trip and the tires fitted to its truck
// and trailer. Drivers only see their own trips.
// GET /api/wear/trips/{id}
func (a *API) TripWear(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	ctx := r.Context()

	trip, err := a.Fleet.Trip(ctx, p.Session, r.PathValue("id"))
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		JSONError(w, "Trip not found", http.StatusNotFound)
		return
	}
	if err != nil {
		backendError(w, err)
		return
	}
	if p.User.Role != fleet.RoleAdmin && trip.Driver.ID() != p.User.ID {
		JSONError(w, "Trip not found", http.StatusNotFound)
		return
	}

	var truck *fleet.Truck
	if doc, ok := trip.Truck.Resolved(); ok {
		truck = doc
	} else if id := trip.Truck.ID(); id != "" {
		trucks, err := a.Fleet.Trucks(ctx, p.Session)
		if err != nil {
			backendError(w, err)
			return
		}
		if i := slices.IndexFunc(trucks, func(t fleet.Truck) bool { return t.ID == id }); i >= 0 {
			truck = &trucks[i]
		}
	}

	tires, err := a.Fleet.Tires(ctx, p.Session)
	if err != nil {
		backendError(w, err)
		return
	}

	cfg := a.maintenanceConfig(ctx, p.Session)
	var vehicles []wearout.VehicleWear
	var truckWear *wearout.VehicleWear
	if truck != nil {
		vw := wearout.AssessTruck(*truck, cfg)
		truckWear = &vw
		vehicles = append(vehicles, vw)
	}

	mounts := map[string]string{
		"Truck/" + trip.Truck.ID():     "",
		"Trailer/" + trip.Trailer.ID(): "",
	}
	if truck != nil {
		mounts["Truck/"+truck.ID] = truck.DisplayName()
	}
	if doc, ok := trip.Trailer.Resolved(); ok {
		mounts["Trailer/"+doc.ID] = doc.DisplayName()
	}
	tireWear := []wearout.VehicleWear{}
	for _, t := range tires {
		if !t.Mounted() || t.Status == "scrap" {
			continue
		}
		name, ok := mounts[t.AssignedToModel+"/"+t.AssignedTo]
		if !ok {
			continue
		}
		vw := wearout.AssessTire(t, cfg)
		vw.MountedOn = cmp.Or(name, t.AssignedTo)
		tireWear = append(tireWear, vw)
		vehicles = append(vehicles, vw)
	}

	JSONResponse(w, map[string]any{
		"trip": map[string]any{
			"id":          trip.ID,
			"trip_number": trip.TripNumber,
			"status":      trip.Status,
		},
		"truck":   truckWear,
		"tires":   tireWear,
		"summary": summarize(vehicles),
	})
}

// LatestWear returns the most recent stored reading of every vehicle metric.
// GET /api/wear/latest?kind=truck|tire
func (a *API) LatestWear(w http.ResponseWriter, r *http.Request) {
	snapshots, err := wearout.GetAllLatestSnapshots(a.DB)
	if err != nil {
		JSONError(w, "Failed to retrieve wear data: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		snapshots = slices.DeleteFunc(snapshots, func(s wearout.Snapshot) bool { return s.VehicleKind != kind })
	}
	if snapshots == nil {
		snapshots = []wearout.Snapshot{}
	}

	JSONResponse(w, map[string]any{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// WearHistory returns stored readings of one vehicle metric.
// GET /api/wear/history?kind=&vehicle_id=&metric=&days=
func (a *API) WearHistory(w http.ResponseWriter, r *http.Request) {
	kind, vehicleID, metric, ok := readingKey(w, r)
	if !ok {
		return
	}
	days := queryInt(r, "days", 90, 3650)

	history, err := wearout.GetSnapshotHistory(a.DB, kind, vehicleID, metric, days)
	if err != nil {
		JSONError(w, "Failed to retrieve wear history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []wearout.Snapshot{}
	}

	JSONResponse(w, map[string]any{
		"kind":        kind,
		"vehicle_id":  vehicleID,
		"metric":      metric,
		"days":        days,
		"history":     history,
		"data_points": len(history),
	})
}

// WearTrend projects when a vehicle metric reaches 0%.
// GET /api/wear/trend?kind=&vehicle_id=&metric=
func (a *API) WearTrend(w http.ResponseWriter, r *http.Request) {
	kind, vehicleID, metric, ok := readingKey(w, r)
	if !ok {
		return
	}

	history, err := wearout.GetSnapshotHistory(a.DB, kind, vehicleID, metric, 365)
	if err != nil {
		JSONError(w, "Failed to retrieve wear history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var current float64
	if len(history) > 0 {
		current = history[len(history)-1].Percentage
	}

	JSONResponse(w, map[string]any{
		"kind":               kind,
		"vehicle_id":         vehicleID,
		"metric":             metric,
		"current_percentage": current,
		"prediction":         wearout.PredictTrend(history),
		"data_points":        len(history),
	})
}

// ScanNow runs a fleet scan immediately.
// POST /api/wear/scan
func (a *API) ScanNow(w http.ResponseWriter, r *http.Request) {
	if a.Scanner == nil {
		JSONError(w, "Scanner is disabled", http.StatusServiceUnavailable)
		return
	}
	report, err := a.Scanner.ScanOnce(r.Context())
	if err != nil {
		lg := logging.Component("http")
		lg.Error().Err(err).Msg("manual scan failed")
		JSONError(w, "Scan failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	JSONResponse(w, report)
}

func readingKey(w http.ResponseWriter, r *http.Request) (kind, vehicleID, metric string, ok bool) {
	q := r.URL.Query()
	kind, vehicleID, metric = q.Get("kind"), q.Get("vehicle_id"), q.Get("metric")
	if kind == "" || vehicleID == "" || metric == "" {
		JSONError(w, "Missing kind, vehicle_id or metric", http.StatusBadRequest)
		return "", "", "", false
	}
	return kind, vehicleID, metric, true
}

// filterVehicles keeps vehicles of kind whose worst severity is at least
// minSeverity. Empty arguments match everything.
func filterVehicles(vs []wearout.VehicleWear, kind, minSeverity string) []wearout.VehicleWear {
	out := make([]wearout.VehicleWear, 0, len(vs))
	min := wearout.Severity(minSeverity)
	for _, v := range vs {
		if kind != "" && v.Kind != kind {
			continue
		}
		if minSeverity != "" && v.Worst.Rank() < min.Rank() {
			continue
		}
		out = append(out, v)
	}
	return out
}

func summarize(vs []wearout.VehicleWear) map[wearout.Severity]int {
	out := map[wearout.Severity]int{
		wearout.SeverityOK:       0,
		wearout.SeverityWarning:  0,
		wearout.SeverityCritical: 0,
	}
	for _, v := range vs {
		out[v.Worst]++
	}
	return out
}
