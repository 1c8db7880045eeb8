package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/haulbase/dispatch-backend/internal/dispatch"
)

// respondError maps engine errors onto HTTP responses. Transition
// violations carry the current and required states so the caller knows
// exactly why the request was refused.
func respondError(c *gin.Context, err error) {
	var transition *dispatch.TransitionError
	var precondition *dispatch.RoutePreconditionError

	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		c.JSON(404, gin.H{"error": "Not found"})
	case errors.Is(err, dispatch.ErrForbidden):
		c.JSON(403, gin.H{"error": "Not allowed"})
	case errors.As(err, &transition):
		c.JSON(409, gin.H{
			"error":    transition.Error(),
			"entity":   transition.Entity,
			"id":       transition.ID,
			"current":  transition.Current,
			"required": transition.Required,
		})
	case errors.As(err, &precondition):
		c.JSON(422, gin.H{
			"error":         precondition.Error(),
			"missing":       precondition.Missing,
			"notOwned":      precondition.NotOwned,
			"wrongStatus":   precondition.WrongStatus,
			"alreadyRouted": precondition.AlreadyRouted,
			"duplicate":     precondition.Duplicate,
		})
	default:
		c.JSON(500, gin.H{"error": "Internal error"})
	}
}
