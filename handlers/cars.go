package handlers

import (
	"net/http"
	"strings"

	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
)

type CarsHandler struct {
	cars *services.CarService
}

func NewCarsHandler(cars *services.CarService) *CarsHandler {
	return &CarsHandler{cars: cars}
}

type CarRequest struct {
	LicensePlate *string `json:"license_plate"`
}

func (h *CarsHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	rows, hasMore, err := h.cars.List(c.Request.Context(), p.IDPage())
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

func (h *CarsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	car, err := h.cars.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, car)
}

func (h *CarsHandler) Create(c *gin.Context) {
	var req CarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	car, err := h.cars.Create(c.Request.Context(), services.CarInput{LicensePlate: req.LicensePlate})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, car)
}

func (h *CarsHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req CarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireFields(c, map[string]bool{"license_plate": req.LicensePlate != nil}) {
		return
	}
	car, err := h.cars.Update(c.Request.Context(), id, services.CarInput{LicensePlate: req.LicensePlate})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, car)
}

func (h *CarsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.cars.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PassBy lists the plate reads of one car over the last 24 hours.
func (h *CarsHandler) PassBy(c *gin.Context) {
	plate := strings.TrimSpace(c.Query("license_plate"))
	if plate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing license_plate parameter."})
		return
	}
	reads, err := h.cars.RecentPasses(c.Request.Context(), plate)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]PlateReadResponse, 0, len(reads))
	for _, pr := range reads {
		out = append(out, toPlateReadResponse(pr))
	}
	c.JSON(http.StatusOK, out)
}
