package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/haulbase/dispatch-backend/internal/dispatch"
	"github.com/haulbase/dispatch-backend/internal/models"
)

// CreateLoad posts a new load in DRAFT
func CreateLoad(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeShipper) {
			c.JSON(403, gin.H{"error": "Only shippers can post loads"})
			return
		}

		var input dispatch.LoadInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		load, err := engine.CreateLoad(c.Request.Context(), shipperID, input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, load)
	}
}

// PublishLoad opens a draft load for bidding
func PublishLoad(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")

		loadID, err := parseID(c, "loadId")
		if err != nil {
			return
		}

		load, err := engine.PublishLoad(c.Request.Context(), loadID, shipperID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Load published for bidding",
			"loadId":  load.ID,
			"status":  load.Status,
		})
	}
}

// CancelLoad withdraws a load before any order is committed
func CancelLoad(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")

		loadID, err := parseID(c, "loadId")
		if err != nil {
			return
		}

		load, err := engine.CancelLoad(c.Request.Context(), loadID, shipperID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Load cancelled",
			"loadId":  load.ID,
			"status":  load.Status,
		})
	}
}

// GetOpenLoads lists loads currently accepting bids
func GetOpenLoads(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		loads, err := engine.OpenLoads(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"loads": loads, "count": len(loads)})
	}
}

// GetShipperLoads lists the caller's posted loads
func GetShipperLoads(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")

		loads, err := engine.ShipperLoads(c.Request.Context(), shipperID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"loads": loads, "count": len(loads)})
	}
}

// GetLoad returns a single load
func GetLoad(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		loadID, err := parseID(c, "loadId")
		if err != nil {
			return
		}

		load, err := engine.GetLoad(c.Request.Context(), loadID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, load)
	}
}

// GetLoadBids lists every bid against a load, cheapest first
func GetLoadBids(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		loadID, err := parseID(c, "loadId")
		if err != nil {
			return
		}

		bids, err := engine.LoadBids(c.Request.Context(), loadID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"bids": bids, "count": len(bids)})
	}
}

// parseID reads a uint path parameter, responding 400 on garbage.
func parseID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid " + name})
		return 0, err
	}
	return uint(id), nil
}
