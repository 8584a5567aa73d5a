// Package fleet holds the records served by the fleet-management backend,
// decoded into Go types at the data-access boundary.
package fleet

import "time"

// Role is a user's dashboard role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
	RoleUser   Role = "user"
)

// User is a backend account.
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Status       string    `json:"status"` // "active", "inactive"
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Vehicle status values shared by trucks and trailers.
const (
	StatusAvailable   = "available"
	StatusOnTrip      = "on_trip"
	StatusMaintenance = "maintenance"
	StatusInactive    = "inactive"
)

// Truck is a tractor unit. Mileages are odometer readings in km.
type Truck struct {
	ID                      string    `json:"_id"`
	LicensePlate            string    `json:"licensePlate"`
	Brand                   string    `json:"brand"`
	VehicleModel            string    `json:"vehicleModel"`
	Year                    int       `json:"year"`
	VIN                     string    `json:"vin,omitempty"`
	CurrentMileage          float64   `json:"currentMileage"`
	FuelType                string    `json:"fuelType"`
	FuelCapacity            float64   `json:"fuelCapacity"`
	AssignedDriver          Ref[User] `json:"assignedDriver,omitzero"`
	Status                  string    `json:"status"`
	LastMaintenanceDate     string    `json:"lastMaintenanceDate,omitempty"`
	NextMaintenanceMileage  *float64  `json:"nextMaintenanceMileage,omitempty"`
	NextTireRotationMileage *float64  `json:"nextTireRotationMileage,omitempty"`
	InsuranceExpiry         string    `json:"insuranceExpiry,omitempty"`
	RegistrationExpiry      string    `json:"registrationExpiry,omitempty"`
	MaintenanceFlags        []string  `json:"maintenanceFlags"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// DisplayName is how dashboards label a truck.
func (t Truck) DisplayName() string {
	if t.LicensePlate != "" {
		return t.LicensePlate
	}
	return t.ID
}

// DisplayName is how dashboards label a trailer.
func (t Trailer) DisplayName() string {
	if t.LicensePlate != "" {
		return t.LicensePlate
	}
	return t.ID
}

// Dimensions of a trailer in metres.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Trailer is a towed unit.
type Trailer struct {
	ID                  string      `json:"_id"`
	LicensePlate        string      `json:"licensePlate"`
	Type                string      `json:"type"` // flatbed, refrigerated, box, tanker, other
	CapacityWeight      float64     `json:"capacityWeight"`
	CapacityVolume      float64     `json:"capacityVolume,omitempty"`
	Brand               string      `json:"brand"`
	Year                int         `json:"year"`
	VIN                 string      `json:"vin,omitempty"`
	Dimensions          *Dimensions `json:"dimensions,omitempty"`
	Status              string      `json:"status"`
	AssignedTruck       Ref[Truck]  `json:"assignedTruck,omitzero"`
	LastMaintenanceDate string      `json:"lastMaintenanceDate,omitempty"`
	NextMaintenanceDate string      `json:"nextMaintenanceDate,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// Tire is a single tracked tire. TreadDepth is in millimetres.
type Tire struct {
	ID              string    `json:"_id"`
	SerialNumber    string    `json:"serialNumber"`
	Brand           string    `json:"brand"`
	Size            string    `json:"size"`
	Status          string    `json:"status"`    // in_use, spare, maintenance, scrap
	Condition       string    `json:"condition"` // new, good, worn, damaged
	TreadDepth      float64   `json:"treadDepth"`
	PurchaseDate    string    `json:"purchaseDate,omitempty"`
	AssignedTo      string    `json:"assignedTo,omitempty"`
	AssignedToModel string    `json:"assignedToModel,omitempty"` // "Truck" or "Trailer"
	Position        string    `json:"position,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Mounted reports whether the tire is fitted to a truck or trailer.
func (t Tire) Mounted() bool {
	return t.AssignedTo != "" && (t.AssignedToModel == "Truck" || t.AssignedToModel == "Trailer")
}

// DisplayName is how dashboards label a tire.
func (t Tire) DisplayName() string {
	if t.SerialNumber != "" {
		return t.SerialNumber
	}
	return t.ID
}

// Trip status values.
const (
	TripPlanned    = "planned"
	TripInProgress = "in_progress"
	TripCompleted  = "completed"
	TripCancelled  = "cancelled"
)

// Expense is a cost booked against a trip.
type Expense struct {
	ID          string  `json:"_id,omitempty"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	ReceiptURL  string  `json:"receiptUrl,omitempty"`
}

// Trip is a scheduled or completed run of a truck.
type Trip struct {
	ID                string       `json:"_id"`
	TripNumber        string       `json:"tripNumber"`
	Driver            Ref[User]    `json:"driver"`
	Truck             Ref[Truck]   `json:"truck"`
	Trailer           Ref[Trailer] `json:"trailer,omitzero"`
	StartLocation     string       `json:"startLocation"`
	EndLocation       string       `json:"endLocation"`
	ScheduledDate     string       `json:"scheduledDate"`
	StartDate         string       `json:"startDate,omitempty"`
	EndDate           string       `json:"endDate,omitempty"`
	StartMileage      *float64     `json:"startMileage,omitempty"`
	EndMileage        *float64     `json:"endMileage,omitempty"`
	FuelAdded         *float64     `json:"fuelAdded,omitempty"`
	Status            string       `json:"status"`
	EstimatedDistance *float64     `json:"estimatedDistance,omitempty"`
	ActualDistance    *float64     `json:"actualDistance,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	Expenses          []Expense    `json:"expenses,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// Active reports whether the trip still occupies its truck.
func (t Trip) Active() bool {
	return t.Status == TripPlanned || t.Status == TripInProgress
}
