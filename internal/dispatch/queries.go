package dispatch

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/haulbase/dispatch-backend/internal/models"
)

// OpenLoads returns loads currently accepting bids, newest first.
func (e *Engine) OpenLoads(ctx context.Context) ([]models.Load, error) {
	var loads []models.Load
	err := e.db.WithContext(ctx).
		Where("status = ?", models.LoadStatusBidding).
		Order("created_at DESC").
		Find(&loads).Error
	return loads, err
}

// ShipperLoads returns all loads posted by a shipper.
func (e *Engine) ShipperLoads(ctx context.Context, shipperID uint) ([]models.Load, error) {
	var loads []models.Load
	err := e.db.WithContext(ctx).
		Where("shipper_id = ?", shipperID).
		Order("created_at DESC").
		Find(&loads).Error
	return loads, err
}

// GetLoad fetches a single load.
func (e *Engine) GetLoad(ctx context.Context, loadID uint) (*models.Load, error) {
	var load models.Load
	if err := e.db.WithContext(ctx).First(&load, loadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &load, nil
}

// LoadBids returns every bid against a load, cheapest first.
func (e *Engine) LoadBids(ctx context.Context, loadID uint) ([]models.Bid, error) {
	var bids []models.Bid
	err := e.db.WithContext(ctx).
		Where("load_id = ?", loadID).
		Order("amount ASC").
		Find(&bids).Error
	return bids, err
}

// DriverOrders returns a driver's orders with loads preloaded, newest
// first.
func (e *Engine) DriverOrders(ctx context.Context, driverID uint) ([]models.Order, error) {
	var orders []models.Order
	err := e.db.WithContext(ctx).
		Preload("Load").
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// GetOrder fetches an order with its load and status history.
func (e *Engine) GetOrder(ctx context.Context, orderID uint) (*models.Order, []models.OrderTransition, error) {
	var order models.Order
	if err := e.db.WithContext(ctx).Preload("Load").Preload("Bid").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	var transitions []models.OrderTransition
	if err := e.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&transitions).Error; err != nil {
		return nil, nil, err
	}

	return &order, transitions, nil
}

// DriverDispatchStatus returns the driver's dispatch profile, creating
// a default one on first contact.
func (e *Engine) DriverDispatchStatus(ctx context.Context, driverID uint) (*models.DriverProfile, error) {
	var profile models.DriverProfile
	err := e.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.DriverProfile{DriverID: driverID, Status: models.DriverStatusAvailable}
		if err := e.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
