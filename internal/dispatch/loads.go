package dispatch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/internal/services"
)

// LoadInput carries the shipper-supplied fields of a new load.
type LoadInput struct {
	PickupAddress string  `json:"pickupAddress" binding:"required"`
	PickupLat     float64 `json:"pickupLat" binding:"required"`
	PickupLng     float64 `json:"pickupLng" binding:"required"`
	DropAddress   string  `json:"dropAddress" binding:"required"`
	DropLat       float64 `json:"dropLat" binding:"required"`
	DropLng       float64 `json:"dropLng" binding:"required"`
	GoodsType     string  `json:"goodsType" binding:"required"`
	WeightKg      float64 `json:"weightKg" binding:"required,gt=0"`
	VehicleTypes  string  `json:"vehicleTypes"`
}

// CreateLoad records a new load in DRAFT.
func (e *Engine) CreateLoad(ctx context.Context, shipperID uint, input LoadInput) (*models.Load, error) {
	load := models.Load{
		ShipperID:     shipperID,
		PickupAddress: input.PickupAddress,
		PickupLat:     input.PickupLat,
		PickupLng:     input.PickupLng,
		DropAddress:   input.DropAddress,
		DropLat:       input.DropLat,
		DropLng:       input.DropLng,
		GoodsType:     input.GoodsType,
		WeightKg:      input.WeightKg,
		VehicleTypes:  input.VehicleTypes,
		Status:        models.LoadStatusDraft,
	}

	if err := e.db.WithContext(ctx).Create(&load).Error; err != nil {
		return nil, err
	}

	return &load, nil
}

// PublishLoad opens a DRAFT load for bidding.
func (e *Engine) PublishLoad(ctx context.Context, loadID, shipperID uint) (*models.Load, error) {
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLoad(tx, loadID, &load); err != nil {
			return err
		}
		if load.ShipperID != shipperID {
			return ErrForbidden
		}
		if load.Status != models.LoadStatusDraft {
			return &TransitionError{Entity: "load", ID: load.ID, Current: load.Status, Required: models.LoadStatusDraft}
		}

		load.Status = models.LoadStatusBidding
		return tx.Save(&load).Error
	})
	if err != nil {
		return nil, err
	}

	e.hub.BroadcastEvent("load_published", &load, load.ShipperID)
	return &load, nil
}

// CancelLoad withdraws a load that has no committed order against it.
func (e *Engine) CancelLoad(ctx context.Context, loadID, shipperID uint) (*models.Load, error) {
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLoad(tx, loadID, &load); err != nil {
			return err
		}
		if load.ShipperID != shipperID {
			return ErrForbidden
		}
		if load.Status != models.LoadStatusDraft && load.Status != models.LoadStatusBidding {
			return &TransitionError{Entity: "load", ID: load.ID, Current: load.Status, Required: models.LoadStatusBidding}
		}

		load.Status = models.LoadStatusCancelled
		return tx.Save(&load).Error
	})
	if err != nil {
		return nil, err
	}

	return &load, nil
}

// PlaceBid records a driver's offer against a load open for bidding and
// refreshes the load's cached bid stats.
func (e *Engine) PlaceBid(ctx context.Context, loadID, driverID uint, amount float64) (*models.Bid, error) {
	var bid models.Bid
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLoad(tx, loadID, &load); err != nil {
			return err
		}
		if !load.IsOpenForBidding() {
			return &TransitionError{Entity: "load", ID: load.ID, Current: load.Status, Required: models.LoadStatusBidding}
		}

		bid = models.Bid{
			LoadID:   loadID,
			DriverID: driverID,
			Amount:   amount,
			Status:   models.BidStatusPending,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return err
		}

		if err := refreshBidStats(tx, &load); err != nil {
			return err
		}
		return tx.Save(&load).Error
	})
	if err != nil {
		return nil, err
	}

	e.hub.SendEvent(load.ShipperID, "bid_placed", services.BidEvent{
		LoadID:   load.ID,
		BidID:    bid.ID,
		DriverID: driverID,
		Amount:   amount,
	})

	return &bid, nil
}

// AcceptBid is the pivot of the marketplace: atomically marks the bid
// ACCEPTED, moves the load to ASSIGNED and creates the order in
// BID_ACCEPTED with a confirmation deadline. The expiry timer is armed
// only after the transaction commits.
func (e *Engine) AcceptBid(ctx context.Context, bidID, shipperID uint) (*models.Order, error) {
	var bid models.Bid
	var load models.Load
	var order models.Order

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&bid, bidID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if bid.Status != models.BidStatusPending {
			return &TransitionError{Entity: "bid", ID: bid.ID, Current: bid.Status, Required: models.BidStatusPending}
		}

		if err := lockLoad(tx, bid.LoadID, &load); err != nil {
			return err
		}
		if load.ShipperID != shipperID {
			return ErrForbidden
		}
		if load.Status != models.LoadStatusBidding || load.AcceptedBidID != nil {
			return &TransitionError{Entity: "load", ID: load.ID, Current: load.Status, Required: models.LoadStatusBidding}
		}

		bid.Status = models.BidStatusAccepted
		if err := tx.Save(&bid).Error; err != nil {
			return err
		}

		load.Status = models.LoadStatusAssigned
		load.AcceptedBidID = &bid.ID
		load.AssignedDriverID = &bid.DriverID
		if err := tx.Save(&load).Error; err != nil {
			return err
		}

		expiresAt := time.Now().Add(e.confirmWindow)
		order = models.Order{
			LoadID:    load.ID,
			BidID:     bid.ID,
			DriverID:  bid.DriverID,
			Status:    models.OrderStatusBidAccepted,
			ExpiresAt: &expiresAt,
		}
		// The unique index on bid_id rejects a second order for an
		// already-accepted bid at the constraint level.
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		order.OrderNumber = models.BuildOrderNumber(order.CreatedAt, order.ID)
		if err := tx.Model(&order).Update("order_number", order.OrderNumber).Error; err != nil {
			return err
		}

		return recordTransition(tx, order.ID, "", models.OrderStatusBidAccepted, "bid accepted")
	})
	if err != nil {
		return nil, err
	}

	e.scheduler.Schedule(order.ID, *order.ExpiresAt)
	e.notifyOrderStatus(ctx, &order, &load, "bid accepted, awaiting driver confirmation")

	return &order, nil
}

// RejectBid declines a pending bid and refreshes the load's bid stats.
func (e *Engine) RejectBid(ctx context.Context, bidID, shipperID uint) (*models.Bid, error) {
	var bid models.Bid
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&bid, bidID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if bid.Status != models.BidStatusPending {
			return &TransitionError{Entity: "bid", ID: bid.ID, Current: bid.Status, Required: models.BidStatusPending}
		}

		if err := lockLoad(tx, bid.LoadID, &load); err != nil {
			return err
		}
		if load.ShipperID != shipperID {
			return ErrForbidden
		}

		bid.Status = models.BidStatusRejected
		if err := tx.Save(&bid).Error; err != nil {
			return err
		}

		if err := refreshBidStats(tx, &load); err != nil {
			return err
		}
		return tx.Save(&load).Error
	})
	if err != nil {
		return nil, err
	}

	e.hub.SendEvent(bid.DriverID, "bid_rejected", services.BidEvent{
		LoadID:   bid.LoadID,
		BidID:    bid.ID,
		DriverID: bid.DriverID,
		Amount:   bid.Amount,
	})

	return &bid, nil
}

func lockLoad(tx *gorm.DB, loadID uint, load *models.Load) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(load, loadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
