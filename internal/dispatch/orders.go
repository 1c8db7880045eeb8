package dispatch

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haulbase/dispatch-backend/internal/models"
)

// DriverAccept confirms the reservation: the order moves to
// DRIVER_ACCEPTED, the driver's capacity is charged with the load's
// weight, and the pending expiry timer is cancelled. Racing against the
// expiry job is resolved by the row lock: whoever commits first wins
// and the loser's status re-check no-ops.
func (e *Engine) DriverAccept(ctx context.Context, orderID, driverID uint) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.DriverID != driverID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusBidAccepted {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusBidAccepted}
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}

		profile, err := lockDriverProfile(tx, driverID)
		if err != nil {
			return err
		}
		profile.AddLoadWeight(load.WeightKg)
		if err := tx.Save(profile).Error; err != nil {
			return err
		}

		load.AssignedDriverID = &driverID
		if err := tx.Save(&load).Error; err != nil {
			return err
		}

		return e.transitionOrder(tx, &order, models.OrderStatusDriverAccepted, "driver confirmed")
	})
	if err != nil {
		return nil, err
	}

	e.scheduler.Cancel(order.ID)
	e.notifyOrderStatus(ctx, &order, &load, "driver confirmed the order")

	return &order, nil
}

// DriverReject declines an order the driver never confirmed, reverting
// the load to BIDDING.
func (e *Engine) DriverReject(ctx context.Context, orderID, driverID uint) (*models.Order, error) {
	return e.rejectOrder(ctx, orderID, driverID, true, "driver rejected")
}

// MarkAsRejected performs the same compensation as DriverReject but is
// kept as a distinct entry point for rejections applied after partial
// progress, so the audit trail names the actor. The caller must be a
// party to the order, driver or shipper.
func (e *Engine) MarkAsRejected(ctx context.Context, orderID, callerID uint, note string) (*models.Order, error) {
	if note == "" {
		note = "rejected by operator"
	}
	return e.rejectOrder(ctx, orderID, callerID, false, note)
}

func (e *Engine) rejectOrder(ctx context.Context, orderID, callerID uint, driverOnly bool, note string) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !models.CanTransition(order.Status, models.OrderStatusDriverRejected) {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusBidAccepted}
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}
		if driverOnly {
			if order.DriverID != callerID {
				return ErrForbidden
			}
		} else if !isOrderParty(&order, &load, callerID) {
			return ErrForbidden
		}

		if err := e.releaseDriver(tx, &order, load.WeightKg); err != nil {
			return err
		}

		bid := models.Bid{}
		if err := tx.First(&bid, order.BidID).Error; err != nil {
			return err
		}
		bid.Status = models.BidStatusRejected
		if err := tx.Save(&bid).Error; err != nil {
			return err
		}

		if err := e.revertLoadToBidding(tx, &load); err != nil {
			return err
		}

		return e.transitionOrder(tx, &order, models.OrderStatusDriverRejected, note)
	})
	if err != nil {
		return nil, err
	}

	// Harmless when no timer is pending.
	e.scheduler.Cancel(order.ID)
	e.notifyOrderStatus(ctx, &order, &load, note)

	return &order, nil
}

// Pickup marks the goods collected and puts the driver ON_TRIP.
func (e *Engine) Pickup(ctx context.Context, orderID, driverID uint) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.DriverID != driverID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusDriverAccepted {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusDriverAccepted}
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}

		profile, err := lockDriverProfile(tx, driverID)
		if err != nil {
			return err
		}
		profile.Status = models.DriverStatusOnTrip
		if err := tx.Save(profile).Error; err != nil {
			return err
		}

		return e.transitionOrder(tx, &order, models.OrderStatusPickedUp, "goods picked up")
	})
	if err != nil {
		return nil, err
	}

	e.notifyOrderStatus(ctx, &order, &load, "goods picked up")
	return &order, nil
}

// MarkInTransit moves a picked-up order into transit. Route building
// invokes the same transition implicitly for every attached order.
func (e *Engine) MarkInTransit(ctx context.Context, orderID, driverID uint) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.DriverID != driverID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusPickedUp {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusPickedUp}
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}

		return e.transitionOrder(tx, &order, models.OrderStatusInTransit, "in transit")
	})
	if err != nil {
		return nil, err
	}

	e.notifyOrderStatus(ctx, &order, &load, "order in transit")
	return &order, nil
}

// Deliver completes the carriage: the order moves to DELIVERED, the
// driver's capacity is released and trip counter incremented, and the
// load closes as COMPLETED. Commission distribution runs best-effort
// after commit; its failure never blocks delivery.
func (e *Engine) Deliver(ctx context.Context, orderID, driverID uint) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.DriverID != driverID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusInTransit {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusInTransit}
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}

		profile, err := lockDriverProfile(tx, driverID)
		if err != nil {
			return err
		}
		profile.ReleaseLoadWeight(load.WeightKg)
		profile.TotalTrips++
		if err := tx.Save(profile).Error; err != nil {
			return err
		}

		load.Status = models.LoadStatusCompleted
		load.AssignedDriverID = nil
		if err := tx.Save(&load).Error; err != nil {
			return err
		}

		return e.transitionOrder(tx, &order, models.OrderStatusDelivered, "delivered")
	})
	if err != nil {
		return nil, err
	}

	e.notifyOrderStatus(ctx, &order, &load, "order delivered")

	go func() {
		if err := e.commission.Distribute(context.Background(), order.ID); err != nil {
			e.log.WithError(err).WithField("orderId", order.ID).Error("commission distribution failed")
		}
	}()

	return &order, nil
}

// ConfirmDelivery is the shipper's sign-off, closing the order as
// COMPLETED and flagging it for payout.
func (e *Engine) ConfirmDelivery(ctx context.Context, orderID, shipperID uint) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}
		if load.ShipperID != shipperID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusDelivered {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusDelivered}
		}

		order.PayoutDone = true
		return e.transitionOrder(tx, &order, models.OrderStatusCompleted, "delivery confirmed")
	})
	if err != nil {
		return nil, err
	}

	e.notifyOrderStatus(ctx, &order, &load, "delivery confirmed")
	return &order, nil
}

// Cancel aborts an order after acceptance, releasing the driver and
// closing the load as CANCELLED. Only a party to the order may cancel.
func (e *Engine) Cancel(ctx context.Context, orderID, callerID uint, note string) (*models.Order, error) {
	return e.terminateOrder(ctx, orderID, callerID, models.OrderStatusCanceled, note)
}

// DeliveryFailed records a failed delivery with the same compensation
// as Cancel but a distinct terminal status for audit.
func (e *Engine) DeliveryFailed(ctx context.Context, orderID, callerID uint, note string) (*models.Order, error) {
	return e.terminateOrder(ctx, orderID, callerID, models.OrderStatusDeliveryFailed, note)
}

func (e *Engine) terminateOrder(ctx context.Context, orderID, callerID uint, terminal, note string) (*models.Order, error) {
	var order models.Order
	var load models.Load

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !models.CanTransition(order.Status, terminal) {
			return &TransitionError{Entity: "order", ID: order.ID, Current: order.Status, Required: models.OrderStatusDriverAccepted}
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}
		if !isOrderParty(&order, &load, callerID) {
			return ErrForbidden
		}

		if err := e.releaseDriver(tx, &order, load.WeightKg); err != nil {
			return err
		}

		load.Status = models.LoadStatusCancelled
		load.AssignedDriverID = nil
		load.AcceptedBidID = nil
		if err := tx.Save(&load).Error; err != nil {
			return err
		}

		return e.transitionOrder(tx, &order, terminal, note)
	})
	if err != nil {
		return nil, err
	}

	e.scheduler.Cancel(order.ID)
	e.notifyOrderStatus(ctx, &order, &load, note)

	return &order, nil
}

// ExpireOrder is the expiry job body. If the driver never confirmed, the
// acceptance unwinds: bid back to PENDING, load back to BIDDING with
// stats recomputed, order removed. Firing on an order that has moved on
// or already expired is a no-op.
func (e *Engine) ExpireOrder(ctx context.Context, orderID uint) error {
	var order models.Order
	var load models.Load
	expired := false

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		// Re-check under lock: a concurrent driver_accept that committed
		// first makes this a no-op.
		if order.Status != models.OrderStatusBidAccepted {
			return nil
		}

		if err := lockLoad(tx, order.LoadID, &load); err != nil {
			return err
		}

		bid := models.Bid{}
		if err := tx.First(&bid, order.BidID).Error; err != nil {
			return err
		}
		bid.Status = models.BidStatusPending
		if err := tx.Save(&bid).Error; err != nil {
			return err
		}

		if err := e.revertLoadToBidding(tx, &load); err != nil {
			return err
		}

		// Hard delete so the bid can be accepted again without tripping
		// the unique index on bid_id.
		if err := tx.Unscoped().Where("order_id = ?", order.ID).Delete(&models.OrderTransition{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&order).Error; err != nil {
			return err
		}

		expired = true
		return nil
	})
	if err != nil {
		return err
	}

	if expired {
		e.log.WithField("orderId", orderID).Info("order expired, acceptance reverted")
		e.hub.SendEvent(load.ShipperID, "order_expired", map[string]interface{}{
			"orderId": orderID,
			"loadId":  load.ID,
		})
		e.hub.SendEvent(order.DriverID, "order_expired", map[string]interface{}{
			"orderId": orderID,
			"loadId":  load.ID,
		})
	}

	return nil
}

// transitionOrder updates the order status and appends to the history
// log inside the caller's transaction.
func (e *Engine) transitionOrder(tx *gorm.DB, order *models.Order, to, note string) error {
	from := order.Status
	order.Status = to
	if err := tx.Save(order).Error; err != nil {
		return err
	}
	return recordTransition(tx, order.ID, from, to, note)
}

// isOrderParty reports whether the caller is the order's driver or the
// load's shipper. Terminations are restricted to these two parties.
func isOrderParty(order *models.Order, load *models.Load, callerID uint) bool {
	return order.DriverID == callerID || load.ShipperID == callerID
}

// releaseDriver gives back capacity reserved for the order, if any was
// reserved at its current status.
func (e *Engine) releaseDriver(tx *gorm.DB, order *models.Order, weightKg float64) error {
	profile, err := lockDriverProfile(tx, order.DriverID)
	if err != nil {
		return err
	}
	if models.HasDriverCapacityReserved(order.Status) {
		profile.ReleaseLoadWeight(weightKg)
	} else if profile.CurrentLoadWeight == 0 {
		profile.Status = models.DriverStatusAvailable
	}
	return tx.Save(profile).Error
}

// revertLoadToBidding reopens a load for bidding after a rejected or
// expired acceptance, recomputing the cached bid stats.
func (e *Engine) revertLoadToBidding(tx *gorm.DB, load *models.Load) error {
	load.Status = models.LoadStatusBidding
	load.AcceptedBidID = nil
	load.AssignedDriverID = nil
	if err := refreshBidStats(tx, load); err != nil {
		return err
	}
	return tx.Save(load).Error
}

func lockOrder(tx *gorm.DB, orderID uint, order *models.Order) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// lockDriverProfile fetches the driver's dispatch profile under a row
// lock, creating it on first contact.
func lockDriverProfile(tx *gorm.DB, driverID uint) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("driver_id = ?", driverID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.DriverProfile{
			DriverID: driverID,
			Status:   models.DriverStatusAvailable,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
