package models

import (
	"time"
)

// DriverLocation is one append-only position ping. Rows are never
// mutated; the retention janitor purges rows past the configured
// horizon.
type DriverLocation struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	DriverID   uint      `json:"driverId" gorm:"not null;index"`
	RouteID    *uint     `json:"routeId,omitempty" gorm:"index"`
	Latitude   float64   `json:"lat" gorm:"not null"`
	Longitude  float64   `json:"lng" gorm:"not null"`
	AccuracyM  *float64  `json:"accuracyM,omitempty"`
	SpeedKph   *float64  `json:"speedKph,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recordedAt" gorm:"not null;index"`
}

// TableName specifies the table name
func (DriverLocation) TableName() string {
	return "driver_locations"
}
