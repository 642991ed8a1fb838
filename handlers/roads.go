package handlers

import (
	"net/http"
	"time"

	"traffic-telemetry-api/models"
	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
)

type RoadsHandler struct {
	roads *services.RoadService
}

func NewRoadsHandler(roads *services.RoadService) *RoadsHandler {
	return &RoadsHandler{roads: roads}
}

type RoadResponse struct {
	ID         uint                `json:"id"`
	Name       string              `json:"name"`
	Length     float64             `json:"length"`
	Segment    *models.LineString  `json:"segment,omitempty"`
	TotalReads int64               `json:"total_reads"`
	Intensity  *services.Intensity `json:"intensity"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

type RoadRequest struct {
	Name    *string            `json:"name"`
	Segment *models.LineString `json:"segment"`
	Length  *float64           `json:"length"`
}

func (r RoadRequest) input() services.RoadInput {
	return services.RoadInput{Name: r.Name, Segment: r.Segment, Length: r.Length}
}

func toRoadResponse(v services.RoadView, detail bool) RoadResponse {
	resp := RoadResponse{
		ID:         v.Road.ID,
		Name:       v.Road.Name,
		Length:     v.Road.Length,
		TotalReads: v.TotalReads,
		Intensity:  v.Intensity,
		CreatedAt:  v.Road.CreatedAt,
		UpdatedAt:  v.Road.UpdatedAt,
	}
	if detail {
		seg := v.Road.Segment.Data()
		resp.Segment = &seg
	}
	return resp
}

func (h *RoadsHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	filter := services.RoadFilter{Intensity: c.Query("intensity")}

	views, hasMore, err := h.roads.List(c.Request.Context(), filter, p.IDPage())
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]RoadResponse, 0, len(views))
	for _, v := range views {
		data = append(data, toRoadResponse(v, false))
	}
	var lastID uint
	if len(views) > 0 {
		lastID = views[len(views)-1].Road.ID
	}
	c.JSON(http.StatusOK, CursorResponse{Data: data, NextCursor: idCursor(hasMore, lastID), HasMore: hasMore})
}

func (h *RoadsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	v, err := h.roads.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoadResponse(v, true))
}

func (h *RoadsHandler) Create(c *gin.Context) {
	var req RoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.roads.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRoadResponse(v, true))
}

// Update serves both PUT and PATCH.
func (h *RoadsHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !requireFields(c, map[string]bool{"name": req.Name != nil, "segment": req.Segment != nil}) {
		return
	}
	v, err := h.roads.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoadResponse(v, true))
}

func (h *RoadsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.roads.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoadsHandler) Stats(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	stats, err := h.roads.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
