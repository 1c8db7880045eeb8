package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/haulbase/dispatch-backend/internal/dispatch"
	"github.com/haulbase/dispatch-backend/internal/models"
)

// PlaceBid records a driver's offer against an open load
func PlaceBid(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can bid on loads"})
			return
		}

		loadID, err := parseID(c, "loadId")
		if err != nil {
			return
		}

		var input struct {
			Amount float64 `json:"amount" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		bid, err := engine.PlaceBid(c.Request.Context(), loadID, driverID, input.Amount)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, bid)
	}
}

// AcceptBid accepts a bid, creating the order and arming its expiry
func AcceptBid(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeShipper) {
			c.JSON(403, gin.H{"error": "Only shippers can accept bids"})
			return
		}

		bidID, err := parseID(c, "bidId")
		if err != nil {
			return
		}

		order, err := engine.AcceptBid(c.Request.Context(), bidID, shipperID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"message":     "Bid accepted",
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"status":      order.Status,
			"expiresAt":   order.ExpiresAt,
		})
	}
}

// RejectBid declines a pending bid
func RejectBid(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeShipper) {
			c.JSON(403, gin.H{"error": "Only shippers can reject bids"})
			return
		}

		bidID, err := parseID(c, "bidId")
		if err != nil {
			return
		}

		bid, err := engine.RejectBid(c.Request.Context(), bidID, shipperID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Bid rejected",
			"bidId":   bid.ID,
			"status":  bid.Status,
		})
	}
}
