package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/haulbase/dispatch-backend/internal/dispatch"
	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/internal/services"
)

// IngestLocation records a driver position ping
func IngestLocation(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can report location"})
			return
		}

		var ping dispatch.LocationPing
		if err := c.ShouldBindJSON(&ping); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Validate coordinates
		if ping.Lat < -90 || ping.Lat > 90 {
			c.JSON(400, gin.H{"error": "Invalid latitude"})
			return
		}
		if ping.Lng < -180 || ping.Lng > 180 {
			c.JSON(400, gin.H{"error": "Invalid longitude"})
			return
		}

		location, err := engine.RecordLocation(c.Request.Context(), driverID, ping)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"message": "Location recorded",
			"location": gin.H{
				"lat":        location.Latitude,
				"lng":        location.Longitude,
				"recordedAt": location.RecordedAt,
			},
		})
	}
}

// GetLocationHistory returns the caller's pings within an hours window
func GetLocationHistory(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
		if err != nil || hours <= 0 {
			c.JSON(400, gin.H{"error": "Invalid hours"})
			return
		}

		pings, err := engine.LocationHistory(c.Request.Context(), driverID, hours)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"locations": pings, "count": len(pings)})
	}
}

// GetDriverStatus combines the Redis-cached position with the dispatch
// profile, falling back to database values when the cache misses
func GetDriverStatus(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can check status"})
			return
		}

		profile, err := engine.DriverDispatchStatus(c.Request.Context(), driverID)
		if err != nil {
			respondError(c, err)
			return
		}

		lat, lng, recordedAt, err := services.GetDriverPosition(c.Request.Context(), driverID)
		if err != nil {
			// Fallback to database values
			lat = profile.LastLat
			lng = profile.LastLng
			if profile.LastSeen != nil {
				recordedAt = *profile.LastSeen
			}
		}

		c.JSON(200, gin.H{
			"driverId":          driverID,
			"status":            profile.Status,
			"currentLoadWeight": profile.CurrentLoadWeight,
			"totalTrips":        profile.TotalTrips,
			"location": gin.H{
				"lat":        lat,
				"lng":        lng,
				"recordedAt": recordedAt,
			},
		})
	}
}
