package handlers

import (
	"errors"
	"log"
	"net/http"

	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	var batch *services.BatchValidationError
	switch {
	case errors.As(err, &batch):
		items := make([]map[string]string, len(batch.Items))
		for i, item := range batch.Items {
			items[i] = map[string]string{}
			if item != nil {
				items[i] = item.Fields
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": batch.Error(), "items": items})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrDuplicateRoad):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"fields": map[string]string{"non_field_errors": "The fields name, segment must make a unique set."},
		})
	case errors.Is(err, services.ErrCarNotRecognized):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Car not recognized."})
	case errors.Is(err, services.ErrSensorInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "sensor is referenced by plate reads and cannot be deleted"})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// requireFields rejects a PUT body that omits fields a full update needs.
func requireFields(c *gin.Context, present map[string]bool) bool {
	if c.Request.Method != http.MethodPut {
		return true
	}
	missing := map[string]string{}
	for field, ok := range present {
		if !ok {
			missing[field] = "This field is required."
		}
	}
	if len(missing) == 0 {
		return true
	}
	respondError(c, &services.ValidationError{Fields: missing})
	return false
}
