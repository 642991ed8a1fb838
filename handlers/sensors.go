package handlers

import (
	"net/http"

	"traffic-telemetry-api/models"
	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SensorsHandler struct {
	sensors *services.SensorService
}

func NewSensorsHandler(sensors *services.SensorService) *SensorsHandler {
	return &SensorsHandler{sensors: sensors}
}

type SensorRequest struct {
	UUID *uuid.UUID `json:"uuid"`
	Name *string    `json:"name"`
}

func (h *SensorsHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	rows, hasMore, err := h.sensors.List(c.Request.Context(), p.IDPage())
	if err != nil {
		respondError(c, err)
		return
	}
	var lastID uint
	if len(rows) > 0 {
		lastID = rows[len(rows)-1].ID
	}
	c.JSON(http.StatusOK, CursorResponse{Data: rows, NextCursor: idCursor(hasMore, lastID), HasMore: hasMore})
}

func (h *SensorsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s, err := h.sensors.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SensorsHandler) Create(c *gin.Context) {
	var req SensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.sensors.Create(c.Request.Context(), services.SensorInput{UUID: req.UUID, Name: req.Name})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *SensorsHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireFields(c, map[string]bool{"name": req.Name != nil}) {
		return
	}
	s, err := h.sensors.Update(c.Request.Context(), id, services.SensorInput{UUID: req.UUID, Name: req.Name})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SensorsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.sensors.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sensorSummary struct {
	ID   uint      `json:"id"`
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
}

func summarizeSensor(s *models.Sensor) *sensorSummary {
	if s == nil {
		return nil
	}
	return &sensorSummary{ID: s.ID, UUID: s.UUID, Name: s.Name}
}
