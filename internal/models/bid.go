package models

import (
	"gorm.io/gorm"
)

// Bid statuses
const (
	BidStatusPending  = "PENDING"
	BidStatusAccepted = "ACCEPTED"
	BidStatusRejected = "REJECTED"
)

// Bid is a driver's priced offer against a load. The amount is immutable
// once the bid is placed; only the status transitions.
type Bid struct {
	gorm.Model
	LoadID   uint    `json:"loadId" gorm:"not null;index"`
	DriverID uint    `json:"driverId" gorm:"not null;index"`
	Amount   float64 `json:"amount" gorm:"not null"`
	Status   string  `json:"status" gorm:"not null;default:'PENDING'"`
	Load     *Load   `json:"load,omitempty" gorm:"foreignKey:LoadID"`
}

// TableName specifies the table name
func (Bid) TableName() string {
	return "bids"
}
