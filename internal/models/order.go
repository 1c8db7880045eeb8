package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusBidAccepted    = "BID_ACCEPTED"
	OrderStatusDriverAccepted = "DRIVER_ACCEPTED"
	OrderStatusPickedUp       = "PICKED_UP"
	OrderStatusInTransit      = "IN_TRANSIT"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCompleted      = "COMPLETED"
	OrderStatusDriverRejected = "DRIVER_REJECTED"
	OrderStatusCanceled       = "CANCELED"
	OrderStatusDeliveryFailed = "DELIVERY_FAILED"
)

// Order is the contract created the instant a bid is accepted. The unique
// index on bid_id guarantees at most one order per accepted bid at the
// constraint level, not just in application code.
type Order struct {
	gorm.Model
	LoadID      uint       `json:"loadId" gorm:"not null;index"`
	BidID       uint       `json:"bidId" gorm:"not null;uniqueIndex"`
	DriverID    uint       `json:"driverId" gorm:"not null;index"`
	OrderNumber string     `json:"orderNumber" gorm:"not null;uniqueIndex"`
	Status      string     `json:"status" gorm:"not null;default:'BID_ACCEPTED'"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	PayoutDone  bool       `json:"payoutDone" gorm:"not null;default:false"`
	Load        *Load      `json:"load,omitempty" gorm:"foreignKey:LoadID"`
	Bid         *Bid       `json:"bid,omitempty" gorm:"foreignKey:BidID"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// OrderTransition is one row of the append-only status history kept for
// every order. The current status lives on the order itself; this log
// answers "when did each hop happen" without a pile of nullable
// timestamp columns.
type OrderTransition struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	OrderID    uint      `json:"orderId" gorm:"not null;index"`
	FromStatus string    `json:"fromStatus" gorm:"not null"`
	ToStatus   string    `json:"toStatus" gorm:"not null"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (OrderTransition) TableName() string {
	return "order_transitions"
}

// BuildOrderNumber derives the human-readable order number from the
// creation year and the numeric id fragment.
func BuildOrderNumber(createdAt time.Time, id uint) string {
	return fmt.Sprintf("FRT-%d-%06d", createdAt.Year(), id)
}

// orderFlow lists the valid next statuses for each order status.
var orderFlow = map[string][]string{
	OrderStatusBidAccepted: {
		OrderStatusDriverAccepted,
		OrderStatusDriverRejected,
	},
	OrderStatusDriverAccepted: {
		OrderStatusPickedUp,
		OrderStatusCanceled,
		OrderStatusDeliveryFailed,
		OrderStatusDriverRejected,
	},
	OrderStatusPickedUp: {
		OrderStatusInTransit,
		OrderStatusCanceled,
		OrderStatusDeliveryFailed,
		OrderStatusDriverRejected,
	},
	OrderStatusInTransit: {
		OrderStatusDelivered,
		OrderStatusCanceled,
		OrderStatusDeliveryFailed,
	},
	OrderStatusDelivered: {
		OrderStatusCompleted,
	},
}

// CanTransition reports whether an order may move from one status to
// another. Terminal statuses have no outgoing edges.
func CanTransition(from, to string) bool {
	for _, next := range orderFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether no further transitions are
// possible from the given status.
func IsTerminalOrderStatus(status string) bool {
	return len(orderFlow[status]) == 0
}

// HasDriverCapacityReserved reports whether the driver's load weight was
// increased for an order currently in the given status. Capacity is
// reserved on driver acceptance and released on delivery, cancellation
// or failure, so only the in-between statuses hold a reservation.
func HasDriverCapacityReserved(status string) bool {
	switch status {
	case OrderStatusDriverAccepted, OrderStatusPickedUp, OrderStatusInTransit:
		return true
	}
	return false
}
