package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/internal/services"
	"github.com/haulbase/dispatch-backend/pkg/utils"
)

// RouteSummary is the caller-facing result of a successful build.
type RouteSummary struct {
	RouteID         uint    `json:"routeId"`
	TrackingRef     string  `json:"trackingRef"`
	StopCount       int     `json:"stopCount"`
	TotalDistanceKm float64 `json:"totalDistanceKm"`
	EtaMinutes      int     `json:"etaMinutes,omitempty"`
	HasPolyline     bool    `json:"hasPolyline"`
}

// BuildRoute assembles a multi-stop route for a driver from a set of
// picked-up orders. Every order must be in PICKED_UP and on no other
// active route; any violation rejects the whole request naming the
// offending ids. Stop order comes from the local heuristic, overridden
// by the directions provider's re-ordering when one is returned. On
// success every attached order moves to IN_TRANSIT.
func (e *Engine) BuildRoute(ctx context.Context, driverID uint, originLat, originLng float64, orderIDs []uint) (*models.DriverRoute, *RouteSummary, error) {
	if len(orderIDs) == 0 {
		return nil, nil, &RoutePreconditionError{}
	}

	origin := utils.Point{Lat: originLat, Lng: originLng}

	var route models.DriverRoute
	var orders []models.Order

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		orders, err = e.routableOrders(tx, driverID, orderIDs)
		if err != nil {
			return err
		}

		stops := make([]utils.Point, len(orders))
		for i, order := range orders {
			stops[i] = utils.Point{Lat: order.Load.DropLat, Lng: order.Load.DropLng}
		}

		visitOrder := utils.OptimizeStopOrder(origin, stops)

		polyline := ""
		etaMinutes := 0

		// The provider is authoritative when reachable; its re-ordering
		// replaces the local heuristic's. Unreachable is not an error;
		// the local ordering stands, with no path artifact and no ETA.
		orderedStops := applyOrder(stops, visitOrder)
		plan, err := e.directions.Route(ctx, origin, orderedStops)
		switch {
		case err == nil:
			polyline = plan.Polyline
			etaMinutes = plan.EtaMinutes
			if len(plan.WaypointOrder) > 0 {
				visitOrder = composeOrder(visitOrder, plan.WaypointOrder)
			}
		case errors.Is(err, services.ErrDirectionsUnavailable):
			e.log.WithError(err).Warn("directions provider unavailable, using local stop order")
		default:
			e.log.WithError(err).Warn("directions provider failed, using local stop order")
		}

		totalKm := utils.RouteLength(origin, stops, visitOrder)

		route = models.DriverRoute{
			TrackingRef:     uuid.NewString(),
			DriverID:        driverID,
			Status:          models.RouteStatusActive,
			OriginLat:       originLat,
			OriginLng:       originLng,
			Polyline:        polyline,
			EtaMinutes:      etaMinutes,
			TotalDistanceKm: totalKm,
		}
		if err := tx.Create(&route).Error; err != nil {
			return err
		}

		for position, idx := range visitOrder {
			stop := models.RouteStop{
				RouteID:  route.ID,
				OrderID:  orders[idx].ID,
				Position: position,
				Lat:      stops[idx].Lat,
				Lng:      stops[idx].Lng,
				Address:  orders[idx].Load.DropAddress,
			}
			if err := tx.Create(&stop).Error; err != nil {
				return err
			}
			route.Stops = append(route.Stops, stop)
		}

		tracking := models.RouteTracking{
			RouteID:         route.ID,
			TotalDistanceKm: totalKm,
			Status:          models.TrackingStatusActive,
		}
		return tx.Create(&tracking).Error
	})
	if err != nil {
		return nil, nil, err
	}

	// The persisted route is the source of truth for attachment; a
	// failed status flip on one order is logged and does not unwind the
	// route.
	for i := range orders {
		if err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order models.Order
			if err := lockOrder(tx, orders[i].ID, &order); err != nil {
				return err
			}
			if order.Status != models.OrderStatusPickedUp {
				return nil
			}
			return e.transitionOrder(tx, &order, models.OrderStatusInTransit, "route built")
		}); err != nil {
			e.log.WithError(err).WithFields(map[string]interface{}{
				"orderId": orders[i].ID,
				"routeId": route.ID,
			}).Error("failed to mark routed order in transit")
		}
	}

	summary := &RouteSummary{
		RouteID:         route.ID,
		TrackingRef:     route.TrackingRef,
		StopCount:       len(route.Stops),
		TotalDistanceKm: route.TotalDistanceKm,
		EtaMinutes:      route.EtaMinutes,
		HasPolyline:     route.Polyline != "",
	}

	e.hub.SendEvent(driverID, "route_built", summary)

	return &route, summary, nil
}

// routableOrders loads and validates the requested orders under row
// locks, returning them with their loads preloaded.
func (e *Engine) routableOrders(tx *gorm.DB, driverID uint, orderIDs []uint) ([]models.Order, error) {
	var orders []models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Load").
		Where("id IN ?", orderIDs).
		Find(&orders).Error; err != nil {
		return nil, err
	}

	found := make(map[uint]*models.Order, len(orders))
	for i := range orders {
		found[orders[i].ID] = &orders[i]
	}

	// Re-checked inside the transaction so concurrent builds touching
	// the same order serialize on the row locks above.
	var routed []uint
	if err := tx.Model(&models.RouteStop{}).
		Joins("JOIN driver_routes ON driver_routes.id = route_stops.route_id").
		Where("route_stops.order_id IN ? AND driver_routes.status = ?", orderIDs, models.RouteStatusActive).
		Pluck("route_stops.order_id", &routed).Error; err != nil {
		return nil, err
	}

	if violation := validateRoutable(driverID, orderIDs, found, routed); violation != nil {
		return nil, violation
	}

	// Preserve request order for stable indexing.
	result := make([]models.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *found[id])
	}
	return result, nil
}

// validateRoutable applies the route preconditions to the fetched
// orders, returning nil when every order is eligible. A repeated id
// would attach the same order to the route twice, so duplicates are
// violations rather than silently collapsed.
func validateRoutable(driverID uint, orderIDs []uint, found map[uint]*models.Order, routed []uint) *RoutePreconditionError {
	violation := &RoutePreconditionError{AlreadyRouted: routed}

	seen := make(map[uint]bool, len(orderIDs))
	for _, id := range orderIDs {
		if seen[id] {
			violation.Duplicate = append(violation.Duplicate, id)
			continue
		}
		seen[id] = true

		order, ok := found[id]
		if !ok {
			violation.Missing = append(violation.Missing, id)
			continue
		}
		if order.DriverID != driverID {
			violation.NotOwned = append(violation.NotOwned, id)
			continue
		}
		if order.Status != models.OrderStatusPickedUp {
			violation.WrongStatus = append(violation.WrongStatus, id)
		}
	}

	if violation.HasViolations() {
		return violation
	}
	return nil
}

// applyOrder returns stops re-arranged by the given index order.
func applyOrder(stops []utils.Point, order []int) []utils.Point {
	out := make([]utils.Point, len(order))
	for i, idx := range order {
		out[i] = stops[idx]
	}
	return out
}

// composeOrder maps the provider's re-ordering (indices into the
// submitted, already-ordered stops) back onto original stop indices.
func composeOrder(local []int, provider []int) []int {
	if len(provider) != len(local) {
		return local
	}
	out := make([]int, len(provider))
	for i, idx := range provider {
		if idx < 0 || idx >= len(local) {
			return local
		}
		out[i] = local[idx]
	}
	return out
}

// CompleteRoute closes an active route and its tracking record.
func (e *Engine) CompleteRoute(ctx context.Context, routeID, driverID uint) (*models.DriverRoute, error) {
	var route models.DriverRoute

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoute(tx, routeID, &route); err != nil {
			return err
		}
		if route.DriverID != driverID {
			return ErrForbidden
		}
		if route.Status != models.RouteStatusActive {
			return &TransitionError{Entity: "route", ID: route.ID, Current: route.Status, Required: models.RouteStatusActive}
		}

		route.Status = models.RouteStatusCompleted
		if err := tx.Save(&route).Error; err != nil {
			return err
		}

		return completeTracking(tx, route.ID)
	})
	if err != nil {
		return nil, err
	}

	return &route, nil
}

// CancelRoute abandons an active route. Attached orders keep their
// current status; follow-up transitions go through the order lifecycle.
func (e *Engine) CancelRoute(ctx context.Context, routeID, driverID uint) (*models.DriverRoute, error) {
	var route models.DriverRoute

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoute(tx, routeID, &route); err != nil {
			return err
		}
		if route.DriverID != driverID {
			return ErrForbidden
		}
		if route.Status != models.RouteStatusActive {
			return &TransitionError{Entity: "route", ID: route.ID, Current: route.Status, Required: models.RouteStatusActive}
		}

		route.Status = models.RouteStatusCancelled
		if err := tx.Save(&route).Error; err != nil {
			return err
		}

		return completeTracking(tx, route.ID)
	})
	if err != nil {
		return nil, err
	}

	return &route, nil
}

// DriverRouteHistory returns a driver's routes, newest first, with
// stops preloaded.
func (e *Engine) DriverRouteHistory(ctx context.Context, driverID uint) ([]models.DriverRoute, error) {
	var routes []models.DriverRoute
	err := e.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("route_stops.position") }).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Find(&routes).Error
	return routes, err
}

func lockRoute(tx *gorm.DB, routeID uint, route *models.DriverRoute) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(route, routeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// completeTracking terminates the route's tracking record. Idempotent:
// an already-completed record is stamped once and left alone after.
func completeTracking(tx *gorm.DB, routeID uint) error {
	var tracking models.RouteTracking
	err := tx.Where("route_id = ?", routeID).First(&tracking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tracking.Status == models.TrackingStatusCompleted {
		return nil
	}

	now := time.Now()
	tracking.Status = models.TrackingStatusCompleted
	tracking.ProgressPercentage = 100
	tracking.CompletedAt = &now
	return tx.Save(&tracking).Error
}
