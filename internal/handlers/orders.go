package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/haulbase/dispatch-backend/internal/dispatch"
	"github.com/haulbase/dispatch-backend/internal/models"
)

// DriverAcceptOrder confirms the order within the expiry window
func DriverAcceptOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return driverTransition(engine, "Order confirmed",
		func(ctx context.Context, e *dispatch.Engine, orderID, driverID uint) (*models.Order, error) {
			return e.DriverAccept(ctx, orderID, driverID)
		})
}

// DriverRejectOrder declines the order, reopening the load for bidding
func DriverRejectOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return driverTransition(engine, "Order rejected",
		func(ctx context.Context, e *dispatch.Engine, orderID, driverID uint) (*models.Order, error) {
			return e.DriverReject(ctx, orderID, driverID)
		})
}

// PickupOrder marks the goods collected
func PickupOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return driverTransition(engine, "Goods picked up",
		func(ctx context.Context, e *dispatch.Engine, orderID, driverID uint) (*models.Order, error) {
			return e.Pickup(ctx, orderID, driverID)
		})
}

// MarkOrderInTransit moves a picked-up order into transit
func MarkOrderInTransit(engine *dispatch.Engine) gin.HandlerFunc {
	return driverTransition(engine, "Order in transit",
		func(ctx context.Context, e *dispatch.Engine, orderID, driverID uint) (*models.Order, error) {
			return e.MarkInTransit(ctx, orderID, driverID)
		})
}

// DeliverOrder completes the carriage and releases the driver
func DeliverOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return driverTransition(engine, "Order delivered",
		func(ctx context.Context, e *dispatch.Engine, orderID, driverID uint) (*models.Order, error) {
			return e.Deliver(ctx, orderID, driverID)
		})
}

// driverTransition wraps the shared shape of driver-initiated order
// transitions: auth check, id parse, engine call, uniform response.
func driverTransition(engine *dispatch.Engine, message string, op func(context.Context, *dispatch.Engine, uint, uint) (*models.Order, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can update orders"})
			return
		}

		orderID, err := parseID(c, "orderId")
		if err != nil {
			return
		}

		order, err := op(c.Request.Context(), engine, orderID, driverID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":     message,
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"status":      order.Status,
		})
	}
}

// ConfirmDelivery is the shipper's sign-off on a delivered order
func ConfirmDelivery(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipperID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeShipper) {
			c.JSON(403, gin.H{"error": "Only shippers can confirm delivery"})
			return
		}

		orderID, err := parseID(c, "orderId")
		if err != nil {
			return
		}

		order, err := engine.ConfirmDelivery(c.Request.Context(), orderID, shipperID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":    "Delivery confirmed",
			"orderId":    order.ID,
			"status":     order.Status,
			"payoutDone": order.PayoutDone,
		})
	}
}

// CancelOrder aborts an order after acceptance
func CancelOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return orderTermination(engine, "Order cancelled",
		func(ctx context.Context, e *dispatch.Engine, orderID, callerID uint, note string) (*models.Order, error) {
			return e.Cancel(ctx, orderID, callerID, note)
		})
}

// FailDelivery records a failed delivery attempt
func FailDelivery(engine *dispatch.Engine) gin.HandlerFunc {
	return orderTermination(engine, "Delivery marked failed",
		func(ctx context.Context, e *dispatch.Engine, orderID, callerID uint, note string) (*models.Order, error) {
			return e.DeliveryFailed(ctx, orderID, callerID, note)
		})
}

// RejectOrder applies operator-level rejection with full compensation
func RejectOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return orderTermination(engine, "Order rejected",
		func(ctx context.Context, e *dispatch.Engine, orderID, callerID uint, note string) (*models.Order, error) {
			return e.MarkAsRejected(ctx, orderID, callerID, note)
		})
}

// orderTermination wraps the terminal transitions available to either
// party; the engine checks the caller against the order's driver and
// the load's shipper.
func orderTermination(engine *dispatch.Engine, message string, op func(context.Context, *dispatch.Engine, uint, uint, string) (*models.Order, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := c.GetUint("userId")

		orderID, err := parseID(c, "orderId")
		if err != nil {
			return
		}

		var input struct {
			Reason string `json:"reason"`
		}
		// Reason is optional; ignore bind errors on an empty body.
		_ = c.ShouldBindJSON(&input)

		order, err := op(c.Request.Context(), engine, orderID, callerID, input.Reason)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": message,
			"orderId": order.ID,
			"status":  order.Status,
		})
	}
}

// GetOrder returns the order with its load, bid and status history
func GetOrder(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseID(c, "orderId")
		if err != nil {
			return
		}

		order, transitions, err := engine.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"order":   order,
			"history": transitions,
		})
	}
}

// GetDriverOrders lists the caller's orders
func GetDriverOrders(engine *dispatch.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		orders, err := engine.DriverOrders(c.Request.Context(), driverID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"orders": orders, "count": len(orders)})
	}
}
