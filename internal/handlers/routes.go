package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/haulbase/dispatch-backend/internal/dispatch"
	"github.com/haulbase/dispatch-backend/internal/models"
)

// BuildRoute assembles a multi-stop route from the driver's picked-up orders
func BuildRoute(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can build routes"})
			return
		}

		var input struct {
			Lat      float64 `json:"lat" binding:"required"`
			Lng      float64 `json:"lng" binding:"required"`
			OrderIDs []uint  `json:"orderIds" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.Lat < -90 || input.Lat > 90 {
			c.JSON(400, gin.H{"error": "Invalid latitude"})
			return
		}
		if input.Lng < -180 || input.Lng > 180 {
			c.JSON(400, gin.H{"error": "Invalid longitude"})
			return
		}

		route, summary, err := engine.BuildRoute(c.Request.Context(), driverID, input.Lat, input.Lng, input.OrderIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"route":   route,
			"summary": summary,
		})
	}
}

// CompleteRoute closes an active route and its tracking
func CompleteRoute(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		routeID, err := parseID(c, "routeId")
		if err != nil {
			return
		}

		route, err := engine.CompleteRoute(c.Request.Context(), routeID, driverID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Route completed",
			"routeId": route.ID,
			"status":  route.Status,
		})
	}
}

// CancelRoute abandons an active route
func CancelRoute(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		routeID, err := parseID(c, "routeId")
		if err != nil {
			return
		}

		route, err := engine.CancelRoute(c.Request.Context(), routeID, driverID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Route cancelled",
			"routeId": route.ID,
			"status":  route.Status,
		})
	}
}

// GetRouteHistory lists the caller's routes, newest first
func GetRouteHistory(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		routes, err := engine.DriverRouteHistory(c.Request.Context(), driverID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"routes": routes, "count": len(routes)})
	}
}

// UpdateRouteTracking applies a sparse tracking update to a route
func UpdateRouteTracking(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		routeID, err := parseID(c, "routeId")
		if err != nil {
			return
		}

		var update dispatch.TrackingUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		tracking, err := engine.UpdateRouteTracking(c.Request.Context(), routeID, update)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, tracking)
	}
}

// GetOrderTracking returns the tracking snapshot for an order
func GetOrderTracking(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseID(c, "orderId")
		if err != nil {
			return
		}

		snapshot, err := engine.GetOrderTracking(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, snapshot)
	}
}
