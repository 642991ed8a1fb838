package handlers

import (
	"net/http"

	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ClassificationHandler struct {
	thresholds *services.ThresholdService
}

func NewClassificationHandler(thresholds *services.ThresholdService) *ClassificationHandler {
	return &ClassificationHandler{thresholds: thresholds}
}

type ThresholdRequest struct {
	MinValue *decimal.Decimal `json:"min_value"`
	MaxValue *decimal.Decimal `json:"max_value"`
}

// List returns the active threshold row, as a one element array.
func (h *ClassificationHandler) List(c *gin.Context) {
	rows, err := h.thresholds.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Update serves PUT and PATCH on the active row only.
func (h *ClassificationHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	current, err := h.thresholds.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if current == nil || current.ID != id {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireFields(c, map[string]bool{"min_value": req.MinValue != nil, "max_value": req.MaxValue != nil}) {
		return
	}
	t, err := h.thresholds.Update(c.Request.Context(), id, services.ThresholdPatch{MinValue: req.MinValue, MaxValue: req.MaxValue})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
