package wearout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwear/internal/fleet"
)

func TestAssessTruck_OilOnly(t *testing.T) {
	truck := fleet.Truck{ID: "k1", LicensePlate: "AB-123", CurrentMileage: 14000, NextMaintenanceMileage: ptr(15000)}

	got := AssessTruck(truck, fleet.MaintenanceConfig{})

	require.Len(t, got.Readings, 1)
	oil := got.Readings[0]
	assert.Equal(t, MetricOilLife, oil.Metric)
	assert.Equal(t, "Oil Life", oil.Label)
	assert.Equal(t, "1,000 km left", oil.DisplayValue)
	assert.Equal(t, SeverityCritical, oil.Severity)
	assert.Equal(t, SeverityCritical, got.Worst)
	assert.Equal(t, "AB-123", got.Name)
	assert.Equal(t, KindTruck, got.Kind)
}

func TestAssessTruck_TireRotationUsesConfiguredInterval(t *testing.T) {
	truck := fleet.Truck{
		ID:                      "k1",
		CurrentMileage:          10000,
		NextMaintenanceMileage:  ptr(20000),
		NextTireRotationMileage: ptr(40000),
	}

	got := AssessTruck(truck, fleet.MaintenanceConfig{OilChangeIntervalKm: 20000, TireRotationIntervalKm: 60000})

	require.Len(t, got.Readings, 2)
	assert.InDelta(t, 50, got.Readings[0].Percentage, 0.01)
	assert.Equal(t, MetricTireRotation, got.Readings[1].Metric)
	assert.InDelta(t, 50, got.Readings[1].Percentage, 0.01)
	assert.Equal(t, "30,000 km left", got.Readings[1].DisplayValue)
	assert.Equal(t, SeverityOK, got.Worst)
}

func TestAssessTruck_NoServiceScheduled(t *testing.T) {
	got := AssessTruck(fleet.Truck{ID: "k1", CurrentMileage: 5000}, fleet.MaintenanceConfig{})

	require.Len(t, got.Readings, 1)
	assert.Equal(t, ModeNone, got.Readings[0].Mode)
	assert.Equal(t, "", got.Readings[0].DisplayValue)
	assert.Equal(t, SeverityCritical, got.Worst)
}

func TestAssessTire_DefaultNewTread(t *testing.T) {
	got := AssessTire(fleet.Tire{ID: "t1", SerialNumber: "SN-9", TreadDepth: 9}, fleet.MaintenanceConfig{})

	require.Len(t, got.Readings, 1)
	assert.Equal(t, "9 mm", got.Readings[0].DisplayValue)
	assert.InDelta(t, 75, got.Readings[0].Percentage, 0.01)
	assert.Equal(t, SeverityOK, got.Worst)
	assert.Equal(t, "SN-9", got.Name)
}

func TestAssessFleet_SkipsScrappedTires(t *testing.T) {
	trucks := []fleet.Truck{{ID: "k1", NextMaintenanceMileage: ptr(15000)}}
	tires := []fleet.Tire{
		{ID: "t1", TreadDepth: 8, Status: "in_use"},
		{ID: "t2", TreadDepth: 1, Status: "scrap"},
	}

	got := AssessFleet(trucks, nil, tires, fleet.MaintenanceConfig{})

	require.Len(t, got, 2)
	assert.Equal(t, "k1", got[0].ID)
	assert.Equal(t, "t1", got[1].ID)
}

func TestAssessFleet_NamesMountingVehicle(t *testing.T) {
	trucks := []fleet.Truck{{ID: "k1", LicensePlate: "AB-123-CD"}}
	trailers := []fleet.Trailer{{ID: "r1", LicensePlate: "TR-77"}, {ID: "r2"}}
	tires := []fleet.Tire{
		{ID: "t1", TreadDepth: 8, AssignedTo: "k1", AssignedToModel: "Truck"},
		{ID: "t2", TreadDepth: 8, AssignedTo: "r1", AssignedToModel: "Trailer"},
		{ID: "t3", TreadDepth: 8, AssignedTo: "r2", AssignedToModel: "Trailer"},
		{ID: "t4", TreadDepth: 8, Status: "spare"},
		{ID: "t5", TreadDepth: 8, AssignedTo: "gone", AssignedToModel: "Trailer"},
		// Same ID as the truck, but assigned to a trailer.
		{ID: "t6", TreadDepth: 8, AssignedTo: "k1", AssignedToModel: "Trailer"},
	}

	got := AssessFleet(trucks, trailers, tires, fleet.MaintenanceConfig{})

	mounted := make(map[string]string)
	for _, vw := range got[1:] {
		mounted[vw.ID] = vw.MountedOn
	}
	assert.Equal(t, map[string]string{
		"t1": "AB-123-CD",
		"t2": "TR-77",
		"t3": "r2",
		"t4": "",
		"t5": "",
		"t6": "",
	}, mounted)
}

func TestWorst_IgnoresReadingsWithoutData(t *testing.T) {
	readings := []Reading{
		{Result: Result{Severity: SeverityCritical, Mode: ModeNone}},
		{Result: Result{Severity: SeverityWarning, Mode: ModeCountdown}},
	}
	assert.Equal(t, SeverityWarning, worst(readings))
}
