package wearout

import "fleetwear/internal/fleet"

// AssessTruck derives the oil-life and (when scheduled) tire-rotation
// readings of a truck. A truck without a next-maintenance mileage still gets
// an oil-life reading, in ModeNone.
func AssessTruck(t fleet.Truck, cfg fleet.MaintenanceConfig) VehicleWear {
	cfg = cfg.WithDefaults(fleet.MaintenanceConfig{})

	oil := Input{Current: t.CurrentMileage, Target: t.NextMaintenanceMileage, Unit: "km"}
	if oil.Target != nil {
		oil.Interval = ptr(cfg.OilChangeIntervalKm)
	}

	readings := []Reading{{Metric: MetricOilLife, Label: "Oil Life", Result: Compute(oil)}}

	if t.NextTireRotationMileage != nil {
		in := Countdown(t.CurrentMileage, *t.NextTireRotationMileage, cfg.TireRotationIntervalKm, "km")
		readings = append(readings, Reading{Metric: MetricTireRotation, Label: "Tire Health", Result: Compute(in)})
	}

	return VehicleWear{
		Kind:     KindTruck,
		ID:       t.ID,
		Name:     t.DisplayName(),
		Status:   t.Status,
		Flags:    t.MaintenanceFlags,
		Readings: readings,
		Worst:    worst(readings),
	}
}

// AssessTire derives the tread-depth reading of a tire.
func AssessTire(t fleet.Tire, cfg fleet.MaintenanceConfig) VehicleWear {
	cfg = cfg.WithDefaults(fleet.MaintenanceConfig{})

	readings := []Reading{{
		Metric: MetricTreadDepth,
		Label:  "Tread Depth",
		Result: Compute(Absolute(t.TreadDepth, cfg.TreadDepthNewMm, "mm")),
	}}

	return VehicleWear{
		Kind:     KindTire,
		ID:       t.ID,
		Name:     t.DisplayName(),
		Status:   t.Status,
		Readings: readings,
		Worst:    worst(readings),
	}
}

// AssessFleet assesses every truck and every tire that is not scrapped.
// Mounted tires are labelled with the plate of their truck or trailer.
func AssessFleet(trucks []fleet.Truck, trailers []fleet.Trailer, tires []fleet.Tire, cfg fleet.MaintenanceConfig) []VehicleWear {
	out := make([]VehicleWear, 0, len(trucks)+len(tires))
	names := make(map[string]string, len(trucks)+len(trailers))
	for _, t := range trucks {
		names["Truck/"+t.ID] = t.DisplayName()
		out = append(out, AssessTruck(t, cfg))
	}
	for _, t := range trailers {
		names["Trailer/"+t.ID] = t.DisplayName()
	}
	for _, t := range tires {
		if t.Status == "scrap" {
			continue
		}
		vw := AssessTire(t, cfg)
		if t.Mounted() {
			vw.MountedOn = names[t.AssignedToModel+"/"+t.AssignedTo]
		}
		out = append(out, vw)
	}
	return out
}

// worst returns the most severe tier among readings that have data.
// Readings in ModeNone are ignored unless nothing else is present.
func worst(readings []Reading) Severity {
	result := SeverityOK
	seen := false
	for _, r := range readings {
		if r.Mode == ModeNone {
			continue
		}
		seen = true
		if r.Severity.Rank() > result.Rank() {
			result = r.Severity
		}
	}
	if !seen {
		return SeverityCritical
	}
	return result
}
