package fleet

// Interval defaults used when the backend leaves maintenance settings unset.
const (
	DefaultOilChangeIntervalKm    = 15000
	DefaultTireRotationIntervalKm = 50000
	DefaultTreadDepthNewMm        = 12
)

// MaintenanceConfig holds the service intervals configured on the backend.
type MaintenanceConfig struct {
	OilChangeIntervalKm    float64 `json:"oilChangeIntervalKm" koanf:"oil_change_interval_km"`
	TireRotationIntervalKm float64 `json:"tireRotationIntervalKm" koanf:"tire_rotation_interval_km"`
	TreadDepthNewMm        float64 `json:"treadDepthNewMm" koanf:"tread_depth_new_mm"`
}

// WithDefaults returns a copy where zero or negative values are replaced by
// fallback, and anything still unset by the package defaults.
func (c MaintenanceConfig) WithDefaults(fallback MaintenanceConfig) MaintenanceConfig {
	pick := func(v, fb, def float64) float64 {
		if v > 0 {
			return v
		}
		if fb > 0 {
			return fb
		}
		return def
	}
	return MaintenanceConfig{
		OilChangeIntervalKm:    pick(c.OilChangeIntervalKm, fallback.OilChangeIntervalKm, DefaultOilChangeIntervalKm),
		TireRotationIntervalKm: pick(c.TireRotationIntervalKm, fallback.TireRotationIntervalKm, DefaultTireRotationIntervalKm),
		TreadDepthNewMm:        pick(c.TreadDepthNewMm, fallback.TreadDepthNewMm, DefaultTreadDepthNewMm),
	}
}
