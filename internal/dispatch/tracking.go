package dispatch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/internal/services"
)

// LocationPing is one inbound driver position update.
type LocationPing struct {
	Lat        float64    `json:"lat" binding:"required"`
	Lng        float64    `json:"lng" binding:"required"`
	RouteID    *uint      `json:"routeId,omitempty"`
	AccuracyM  *float64   `json:"accuracyM,omitempty"`
	SpeedKph   *float64   `json:"speedKph,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	RecordedAt *time.Time `json:"recordedAt,omitempty"`
}

// TrackingUpdate carries a sparse route-tracking update; nil fields are
// left untouched.
type TrackingUpdate struct {
	TraversedPath        *string    `json:"traversedPath,omitempty"`
	RemainingPath        *string    `json:"remainingPath,omitempty"`
	DistanceCoveredKm    *float64   `json:"distanceCoveredKm,omitempty"`
	TotalDistanceKm      *float64   `json:"totalDistanceKm,omitempty"`
	ProgressPercentage   *float64   `json:"progressPercentage,omitempty"`
	EstimatedArrivalTime *time.Time `json:"estimatedArrivalTime,omitempty"`
}

// RecordLocation appends one ping to the location log and refreshes the
// driver's cached last-known position; nothing else writes that cache.
// Fan-out and the Redis mirror are best-effort and never block the
// ingest path.
func (e *Engine) RecordLocation(ctx context.Context, driverID uint, ping LocationPing) (*models.DriverLocation, error) {
	recordedAt := time.Now()
	if ping.RecordedAt != nil {
		recordedAt = *ping.RecordedAt
	}

	location := models.DriverLocation{
		DriverID:   driverID,
		RouteID:    ping.RouteID,
		Latitude:   ping.Lat,
		Longitude:  ping.Lng,
		AccuracyM:  ping.AccuracyM,
		SpeedKph:   ping.SpeedKph,
		Heading:    ping.Heading,
		RecordedAt: recordedAt,
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&location).Error; err != nil {
			return err
		}

		profile, err := lockDriverProfile(tx, driverID)
		if err != nil {
			return err
		}
		// Last write wins: an out-of-order ping older than the cache is
		// kept in the log but does not move the cache backwards.
		if profile.LastSeen == nil || !recordedAt.Before(*profile.LastSeen) {
			profile.LastLat = ping.Lat
			profile.LastLng = ping.Lng
			profile.LastSeen = &recordedAt
			if err := tx.Save(profile).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := services.SetDriverPosition(ctx, driverID, ping.Lat, ping.Lng, recordedAt); err != nil {
		e.log.WithError(err).WithField("driverId", driverID).Warn("failed to cache driver position")
	}
	if err := services.PublishDriverPosition(ctx, driverID, ping.Lat, ping.Lng); err != nil {
		e.log.WithError(err).WithField("driverId", driverID).Warn("failed to publish driver position")
	}

	e.hub.BroadcastEvent("driver_position", services.DriverPositionEvent{
		DriverID: driverID,
		RouteID:  ping.RouteID,
		Lat:      ping.Lat,
		Lng:      ping.Lng,
		Heading:  ping.Heading,
	}, driverID)

	return &location, nil
}

// LocationHistory returns a driver's pings within the last `hours`,
// newest first.
func (e *Engine) LocationHistory(ctx context.Context, driverID uint, hours int) ([]models.DriverLocation, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	var pings []models.DriverLocation
	err := e.db.WithContext(ctx).
		Where("driver_id = ? AND recorded_at >= ?", driverID, since).
		Order("recorded_at DESC").
		Find(&pings).Error
	return pings, err
}

// UpdateRouteTracking upserts the route's tracking record, applying only
// the supplied fields. Supplying an ETA stamps last_updated_eta.
// Progress is caller-supplied; the store persists, it does not compute.
// A completed record is immutable.
func (e *Engine) UpdateRouteTracking(ctx context.Context, routeID uint, update TrackingUpdate) (*models.RouteTracking, error) {
	var tracking models.RouteTracking
	var route models.DriverRoute

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoute(tx, routeID, &route); err != nil {
			return err
		}

		err := tx.Where("route_id = ?", routeID).First(&tracking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tracking = models.RouteTracking{
				RouteID: routeID,
				Status:  models.TrackingStatusActive,
			}
		} else if err != nil {
			return err
		}

		if err := applyTrackingUpdate(&tracking, update, time.Now()); err != nil {
			return err
		}

		return tx.Save(&tracking).Error
	})
	if err != nil {
		return nil, err
	}

	e.hub.BroadcastEvent("route_progress", services.RouteProgressEvent{
		RouteID:            route.ID,
		TrackingRef:        route.TrackingRef,
		ProgressPercentage: tracking.ProgressPercentage,
		DistanceCoveredKm:  tracking.DistanceCoveredKm,
		EtaMinutes:         route.EtaMinutes,
	}, 0)

	return &tracking, nil
}

// applyTrackingUpdate copies the supplied fields onto the record,
// stamping last_updated_eta when an ETA arrives. A record already
// stamped completed refuses further updates so progress cannot regress
// past the terminal mark.
func applyTrackingUpdate(tracking *models.RouteTracking, update TrackingUpdate, now time.Time) error {
	if tracking.Status == models.TrackingStatusCompleted {
		return &TransitionError{Entity: "tracking", ID: tracking.RouteID, Current: tracking.Status, Required: models.TrackingStatusActive}
	}

	if update.TraversedPath != nil {
		tracking.TraversedPath = *update.TraversedPath
	}
	if update.RemainingPath != nil {
		tracking.RemainingPath = *update.RemainingPath
	}
	if update.DistanceCoveredKm != nil {
		tracking.DistanceCoveredKm = *update.DistanceCoveredKm
	}
	if update.TotalDistanceKm != nil {
		tracking.TotalDistanceKm = *update.TotalDistanceKm
	}
	if update.ProgressPercentage != nil {
		tracking.ProgressPercentage = *update.ProgressPercentage
	}
	if update.EstimatedArrivalTime != nil {
		tracking.EstimatedArrivalTime = update.EstimatedArrivalTime
		tracking.LastUpdatedEta = &now
	}

	return nil
}

// CompleteRouteTracking terminates the tracking record: progress 100,
// completed flag, completion time. Idempotent.
func (e *Engine) CompleteRouteTracking(ctx context.Context, routeID uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return completeTracking(tx, routeID)
	})
}

// OrderTrackingSnapshot combines the order, its active route and the
// route's tracking record.
type OrderTrackingSnapshot struct {
	Order    *models.Order         `json:"order"`
	Route    *models.DriverRoute   `json:"route,omitempty"`
	Tracking *models.RouteTracking `json:"tracking,omitempty"`
}

// GetOrderTracking returns the current tracking snapshot for an order.
// Route and tracking are nil when the order is not on an active route.
func (e *Engine) GetOrderTracking(ctx context.Context, orderID uint) (*OrderTrackingSnapshot, error) {
	var order models.Order
	if err := e.db.WithContext(ctx).Preload("Load").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	snapshot := &OrderTrackingSnapshot{Order: &order}

	var stop models.RouteStop
	err := e.db.WithContext(ctx).
		Joins("JOIN driver_routes ON driver_routes.id = route_stops.route_id").
		Where("route_stops.order_id = ? AND driver_routes.status = ?", orderID, models.RouteStatusActive).
		First(&stop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snapshot, nil
	}
	if err != nil {
		return nil, err
	}

	var route models.DriverRoute
	if err := e.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("route_stops.position") }).
		First(&route, stop.RouteID).Error; err != nil {
		return nil, err
	}
	snapshot.Route = &route

	var tracking models.RouteTracking
	err = e.db.WithContext(ctx).Where("route_id = ?", route.ID).First(&tracking).Error
	if err == nil {
		snapshot.Tracking = &tracking
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return snapshot, nil
}
