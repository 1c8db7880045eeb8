package models

import (
	"time"

	"gorm.io/gorm"
)

// Route statuses
const (
	RouteStatusActive    = "active"
	RouteStatusCompleted = "completed"
	RouteStatusCancelled = "cancelled"
)

// Tracking lifecycle flags
const (
	TrackingStatusActive    = "active"
	TrackingStatusCompleted = "completed"
)

// DriverRoute is an ordered multi-stop plan combining several picked-up
// orders for one driver. The polyline is an opaque artifact from the
// directions provider; it is empty when the provider was unavailable
// and the local ordering heuristic was used alone.
type DriverRoute struct {
	gorm.Model
	TrackingRef     string      `json:"trackingRef" gorm:"not null;uniqueIndex"`
	DriverID        uint        `json:"driverId" gorm:"not null;index"`
	Status          string      `json:"status" gorm:"not null;default:'active'"`
	OriginLat       float64     `json:"originLat" gorm:"not null"`
	OriginLng       float64     `json:"originLng" gorm:"not null"`
	Polyline        string      `json:"polyline,omitempty"`
	EtaMinutes      int         `json:"etaMinutes"`
	TotalDistanceKm float64     `json:"totalDistanceKm"`
	Stops           []RouteStop `json:"stops,omitempty" gorm:"foreignKey:RouteID"`
}

// TableName specifies the table name
func (DriverRoute) TableName() string {
	return "driver_routes"
}

// RouteStop attaches one order to a route at a visiting position. An
// order belongs to at most one active route; that rule is enforced when
// the route is built.
type RouteStop struct {
	gorm.Model
	RouteID  uint    `json:"routeId" gorm:"not null;index;uniqueIndex:idx_route_position"`
	OrderID  uint    `json:"orderId" gorm:"not null;index"`
	Position int     `json:"position" gorm:"not null;uniqueIndex:idx_route_position"`
	Lat      float64 `json:"lat" gorm:"not null"`
	Lng      float64 `json:"lng" gorm:"not null"`
	Address  string  `json:"address"`
}

// TableName specifies the table name
func (RouteStop) TableName() string {
	return "route_stops"
}

// RouteTracking is the derived progress record, one-to-one with a route
// while it is active. Progress is caller-supplied; the store only
// persists it.
type RouteTracking struct {
	gorm.Model
	RouteID              uint       `json:"routeId" gorm:"not null;uniqueIndex"`
	TraversedPath        string     `json:"traversedPath,omitempty"`
	RemainingPath        string     `json:"remainingPath,omitempty"`
	DistanceCoveredKm    float64    `json:"distanceCoveredKm" gorm:"not null;default:0"`
	TotalDistanceKm      float64    `json:"totalDistanceKm" gorm:"not null;default:0"`
	ProgressPercentage   float64    `json:"progressPercentage" gorm:"not null;default:0"`
	EstimatedArrivalTime *time.Time `json:"estimatedArrivalTime,omitempty"`
	LastUpdatedEta       *time.Time `json:"lastUpdatedEta,omitempty"`
	Status               string     `json:"status" gorm:"not null;default:'active'"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}

// TableName specifies the table name
func (RouteTracking) TableName() string {
	return "route_trackings"
}
