package domain

import "time"

// Vehicle is a fleet vehicle as seen by the reconciliation core.
type Vehicle struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	Plate           string     `json:"plate"`
	NormalizedPlate string     `json:"normalizedPlate"`
	DisposedAt      *time.Time `json:"disposedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Active reports whether the vehicle is still in service.
func (v *Vehicle) Active() bool {
	return v.DisposedAt == nil
}

// FuelRecord is an existing fuel consumption record.
type FuelRecord struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	VehicleID string    `json:"vehicleId"`
	Date      time.Time `json:"date"`
	Quantity  float64   `json:"quantity"`
	TotalCost float64   `json:"totalCost"`
	FuelType  string    `json:"fuelType"`
	Odometer  *int64    `json:"odometer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Candidate returns the matching snapshot of the record.
func (r *FuelRecord) Candidate() FuelRecordCandidate {
	return FuelRecordCandidate{
		ID:        r.ID,
		Date:      r.Date,
		Quantity:  r.Quantity,
		TotalCost: r.TotalCost,
		FuelType:  r.FuelType,
	}
}

// DateRange is an inclusive time window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}
