package handlers

import (
	"net/http"
	"strconv"
	"time"

	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ReadsHandler struct {
	reads *services.ReadService
	cache *services.CacheService
}

func NewReadsHandler(reads *services.ReadService, cache *services.CacheService) *ReadsHandler {
	return &ReadsHandler{reads: reads, cache: cache}
}

type ReadRequest struct {
	Road      *uint            `json:"road"`
	ReadValue *decimal.Decimal `json:"read_value"`
}

func (h *ReadsHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	var filter services.ReadFilter
	if roadStr := c.Query("road"); roadStr != "" {
		id, err := strconv.ParseUint(roadStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid road parameter"})
			return
		}
		roadID := uint(id)
		filter.RoadID = &roadID
	}

	rows, hasMore, err := h.reads.List(c.Request.Context(), filter, p.TimePage())
	if err != nil {
		respondError(c, err)
		return
	}
	var (
		last   time.Time
		lastID uint
	)
	if len(rows) > 0 {
		last, lastID = rows[len(rows)-1].ReadAt, rows[len(rows)-1].ID
	}
	c.JSON(http.StatusOK, CursorResponse{Data: rows, NextCursor: timeCursor(hasMore, last, lastID), HasMore: hasMore})
}

func (h *ReadsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, err := h.reads.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ReadsHandler) Create(c *gin.Context) {
	var req ReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.reads.Create(c.Request.Context(), services.ReadInput{RoadID: req.Road, ReadValue: req.ReadValue})
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.PublishLive(c.Request.Context(), "read", r)
	c.JSON(http.StatusCreated, r)
}

func (h *ReadsHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireFields(c, map[string]bool{"road": req.Road != nil, "read_value": req.ReadValue != nil}) {
		return
	}
	r, err := h.reads.Update(c.Request.Context(), id, services.ReadInput{RoadID: req.Road, ReadValue: req.ReadValue})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ReadsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.reads.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
