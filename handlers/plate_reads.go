package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"traffic-telemetry-api/models"
	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
)

type PlateReadsHandler struct {
	plateReads *services.PlateReadService
	cache      *services.CacheService
}

func NewPlateReadsHandler(plateReads *services.PlateReadService, cache *services.CacheService) *PlateReadsHandler {
	return &PlateReadsHandler{plateReads: plateReads, cache: cache}
}

// PlateReadRequest is the ALPR wire format. road_segment may be a number or a string.
type PlateReadRequest struct {
	SensorUUID   *string         `json:"sensor__uuid"`
	LicensePlate *string         `json:"car__license_plate"`
	RoadSegment  json.RawMessage `json:"road_segment"`
	Timestamp    *string         `json:"timestamp"`
}

func (r PlateReadRequest) Input() services.PlateReadInput {
	in := services.PlateReadInput{
		SensorUUID:   r.SensorUUID,
		LicensePlate: r.LicensePlate,
		Timestamp:    r.Timestamp,
	}
	raw := strings.TrimSpace(string(r.RoadSegment))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(r.RoadSegment, &s); err == nil {
			in.RoadSegment = &s
		} else {
			in.RoadSegment = &raw
		}
	default:
		in.RoadSegment = &raw
	}
	return in
}

type carSummary struct {
	ID           uint   `json:"id"`
	LicensePlate string `json:"license_plate"`
}

// roadSummary is the road context of a plate read, present when the road was loaded.
type roadSummary struct {
	ID     uint    `json:"id"`
	Name   string  `json:"name"`
	Length float64 `json:"length"`
}

type PlateReadResponse struct {
	ID          uint           `json:"id"`
	RoadSegment uint           `json:"road_segment"`
	Road        *roadSummary   `json:"road,omitempty"`
	Car         *carSummary    `json:"car"`
	Sensor      *sensorSummary `json:"sensor"`
	Timestamp   time.Time      `json:"timestamp"`
}

func toPlateReadResponse(pr models.PlateRead) PlateReadResponse {
	resp := PlateReadResponse{
		ID:          pr.ID,
		RoadSegment: pr.RoadSegmentID,
		Sensor:      summarizeSensor(pr.Sensor),
		Timestamp:   pr.ReadAt.UTC(),
	}
	if pr.RoadSegment != nil {
		resp.Road = &roadSummary{ID: pr.RoadSegment.ID, Name: pr.RoadSegment.Name, Length: pr.RoadSegment.Length}
	}
	if pr.Car != nil {
		resp.Car = &carSummary{ID: pr.Car.ID, LicensePlate: pr.Car.LicensePlate}
	}
	return resp
}

// DecodePlateReads accepts a single object or an array of objects and reports
// which form was sent.
func DecodePlateReads(body []byte) ([]PlateReadRequest, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []PlateReadRequest
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, true, err
		}
		return many, true, nil
	}
	var one PlateReadRequest
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, false, err
	}
	return []PlateReadRequest{one}, false, nil
}

func (h *PlateReadsHandler) Create(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	reqs, isMany, err := DecodePlateReads(body)
	if err != nil {
		badRequest(c, err)
		return
	}

	inputs := make([]services.PlateReadInput, len(reqs))
	for i, r := range reqs {
		inputs[i] = r.Input()
	}
	stored, err := h.plateReads.Ingest(c.Request.Context(), inputs)
	if err != nil {
		var batch *services.BatchValidationError
		if !isMany && errors.As(err, &batch) && len(batch.Items) == 1 {
			respondError(c, batch.Items[0])
			return
		}
		respondError(c, err)
		return
	}

	out := make([]PlateReadResponse, 0, len(stored))
	for _, pr := range stored {
		resp := toPlateReadResponse(pr)
		h.cache.PublishLive(c.Request.Context(), "plate_read", resp)
		out = append(out, resp)
	}
	if isMany {
		c.JSON(http.StatusCreated, out)
		return
	}
	c.JSON(http.StatusCreated, out[0])
}

func (h *PlateReadsHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	rows, hasMore, err := h.plateReads.List(c.Request.Context(), p.TimePage())
	if err != nil {
		respondError(c, err)
		return
	}
	data := make([]PlateReadResponse, 0, len(rows))
	for _, pr := range rows {
		data = append(data, toPlateReadResponse(pr))
	}
	var (
		last   time.Time
		lastID uint
	)
	if len(rows) > 0 {
		last, lastID = rows[len(rows)-1].ReadAt, rows[len(rows)-1].ID
	}
	c.JSON(http.StatusOK, CursorResponse{Data: data, NextCursor: timeCursor(hasMore, last, lastID), HasMore: hasMore})
}

func (h *PlateReadsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	pr, err := h.plateReads.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlateReadResponse(pr))
}

func (h *PlateReadsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.plateReads.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
