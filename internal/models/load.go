package models

import (
	"gorm.io/gorm"
)

// Load statuses
const (
	LoadStatusDraft     = "DRAFT"
	LoadStatusBidding   = "BIDDING"
	LoadStatusAssigned  = "ASSIGNED"
	LoadStatusCompleted = "COMPLETED"
	LoadStatusCancelled = "CANCELLED"
)

// Load is a shipment request posted by a shipper or broker.
// assigned_driver is set iff an accepted bid exists for the load.
type Load struct {
	gorm.Model
	ShipperID        uint     `json:"shipperId" gorm:"not null;index"`
	PickupAddress    string   `json:"pickupAddress" gorm:"not null"`
	PickupLat        float64  `json:"pickupLat" gorm:"not null"`
	PickupLng        float64  `json:"pickupLng" gorm:"not null"`
	DropAddress      string   `json:"dropAddress" gorm:"not null"`
	DropLat          float64  `json:"dropLat" gorm:"not null"`
	DropLng          float64  `json:"dropLng" gorm:"not null"`
	GoodsType        string   `json:"goodsType" gorm:"not null"`
	WeightKg         float64  `json:"weightKg" gorm:"not null"`
	VehicleTypes     string   `json:"vehicleTypes"` // comma-separated requested vehicle types
	Status           string   `json:"status" gorm:"not null;default:'DRAFT'"`
	AcceptedBidID    *uint    `json:"acceptedBidId,omitempty"`
	AssignedDriverID *uint    `json:"assignedDriverId,omitempty"`
	BidCount         int      `json:"bidCount" gorm:"not null;default:0"`
	LowestBid        *float64 `json:"lowestBid,omitempty"`
}

// TableName specifies the table name
func (Load) TableName() string {
	return "loads"
}

// IsOpenForBidding reports whether new bids may be placed against the load.
func (l *Load) IsOpenForBidding() bool {
	return l.Status == LoadStatusBidding
}
