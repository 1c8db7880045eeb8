package models

import (
	"time"

	"gorm.io/gorm"
)

// Driver dispatch statuses
const (
	DriverStatusAvailable = "AVAILABLE"
	DriverStatusBusy      = "BUSY"
	DriverStatusOnTrip    = "ON_TRIP"
)

// DriverProfile carries the mutable dispatch attributes of a driver.
// current_load_weight is the sum of weights of all active orders; the
// driver is AVAILABLE iff that weight is zero. The last-known position
// columns are a cache written only by location ingestion.
type DriverProfile struct {
	gorm.Model
	DriverID          uint       `json:"driverId" gorm:"not null;uniqueIndex"`
	CurrentLoadWeight float64    `json:"currentLoadWeight" gorm:"not null;default:0"`
	Status            string     `json:"status" gorm:"not null;default:'AVAILABLE'"`
	TotalTrips        int        `json:"totalTrips" gorm:"not null;default:0"`
	LastLat           float64    `json:"lastLat"`
	LastLng           float64    `json:"lastLng"`
	LastSeen          *time.Time `json:"lastSeen,omitempty"`
}

// TableName specifies the table name
func (DriverProfile) TableName() string {
	return "driver_profiles"
}

// AddLoadWeight reserves capacity for an order and flips the driver to
// BUSY.
func (d *DriverProfile) AddLoadWeight(weightKg float64) {
	d.CurrentLoadWeight += weightKg
	d.Status = DriverStatusBusy
}

// ReleaseLoadWeight releases capacity reserved for an order. The status
// becomes AVAILABLE only when no other active order holds weight.
func (d *DriverProfile) ReleaseLoadWeight(weightKg float64) {
	d.CurrentLoadWeight -= weightKg
	if d.CurrentLoadWeight <= 0 {
		d.CurrentLoadWeight = 0
		d.Status = DriverStatusAvailable
	} else {
		d.Status = DriverStatusBusy
	}
}
