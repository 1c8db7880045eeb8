package dispatch

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/internal/services"
)

// DefaultConfirmWindow is how long a driver has to confirm an accepted
// bid before the acceptance is reverted.
const DefaultConfirmWindow = 30 * time.Minute

// Engine owns every Load/Bid/Order transition, route building and the
// tracking store. Each multi-entity transition runs inside one database
// transaction; side effects (websocket push, Redis publish, commission)
// fire only after the transaction commits.
type Engine struct {
	db            *gorm.DB
	hub           *services.Hub
	scheduler     *services.ExpiryScheduler
	directions    services.Directions
	commission    services.CommissionEngine
	log           *logrus.Logger
	confirmWindow time.Duration
}

// NewEngine wires the dispatch engine and its expiry scheduler.
func NewEngine(db *gorm.DB, hub *services.Hub, directions services.Directions, commission services.CommissionEngine, log *logrus.Logger) *Engine {
	e := &Engine{
		db:            db,
		hub:           hub,
		directions:    directions,
		commission:    commission,
		log:           log,
		confirmWindow: confirmWindowFromEnv(),
	}
	e.scheduler = services.NewExpiryScheduler(func(orderID uint) {
		if err := e.ExpireOrder(context.Background(), orderID); err != nil {
			log.WithError(err).WithField("orderId", orderID).Error("order expiry failed")
		}
	}, log)
	return e
}

// Scheduler exposes the expiry scheduler for lifecycle management.
func (e *Engine) Scheduler() *services.ExpiryScheduler {
	return e.scheduler
}

func confirmWindowFromEnv() time.Duration {
	if raw := os.Getenv("BID_CONFIRM_WINDOW_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return DefaultConfirmWindow
}

// RescheduleExpiries re-arms expiry timers for orders still awaiting
// driver confirmation. Called once at startup so that pending
// acceptances survive a process restart.
func (e *Engine) RescheduleExpiries() error {
	var orders []models.Order
	if err := e.db.Where("status = ?", models.OrderStatusBidAccepted).Find(&orders).Error; err != nil {
		return err
	}

	for _, order := range orders {
		if order.ExpiresAt != nil {
			e.scheduler.Schedule(order.ID, *order.ExpiresAt)
		}
	}

	if len(orders) > 0 {
		e.log.WithField("count", len(orders)).Info("re-armed pending order expiries")
	}
	return nil
}

// recordTransition appends one row to the order's status history.
func recordTransition(tx *gorm.DB, orderID uint, from, to, note string) error {
	return tx.Create(&models.OrderTransition{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	}).Error
}

// ComputeBidStats derives a load's cached bid_count and lowest_bid from
// its bids: the count of non-rejected bids and the minimum amount among
// those still pending.
func ComputeBidStats(bids []models.Bid) (count int, lowest *float64) {
	for i := range bids {
		if bids[i].Status == models.BidStatusRejected {
			continue
		}
		count++
		if bids[i].Status != models.BidStatusPending {
			continue
		}
		if lowest == nil || bids[i].Amount < *lowest {
			amount := bids[i].Amount
			lowest = &amount
		}
	}
	return count, lowest
}

// refreshBidStats recomputes a load's cached bid stats inside the
// caller's transaction.
func refreshBidStats(tx *gorm.DB, load *models.Load) error {
	var bids []models.Bid
	if err := tx.Where("load_id = ?", load.ID).Find(&bids).Error; err != nil {
		return err
	}

	load.BidCount, load.LowestBid = ComputeBidStats(bids)
	return nil
}

// notifyOrderStatus pushes an order status event to both parties and
// publishes it on Redis. Strictly post-commit, never inside a
// transaction.
func (e *Engine) notifyOrderStatus(ctx context.Context, order *models.Order, load *models.Load, message string) {
	event := services.OrderStatusEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		LoadID:      order.LoadID,
		Status:      order.Status,
		Message:     message,
	}

	e.hub.SendEvent(load.ShipperID, "order_status", event)
	e.hub.SendEvent(order.DriverID, "order_status", event)

	if err := services.PublishOrderUpdate(ctx, order.ID, order.Status, map[string]interface{}{
		"orderNumber": order.OrderNumber,
		"loadId":      order.LoadID,
	}); err != nil {
		e.log.WithError(err).WithField("orderId", order.ID).Warn("failed to publish order update")
	}
}
