package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type PaginationParams struct {
	Limit    int
	Before   *time.Time
	BeforeID uint
}

type CursorResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// ParsePagination reads limit, before and before_id. before is either an RFC3339Nano
// time or the "<time>_<id>" cursor returned by time-ordered lists. Malformed values
// fall back to the defaults.
func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if beforeStr := c.Query("before"); beforeStr != "" {
		if t, id, ok := parseTimeCursor(beforeStr); ok {
			p.Before = &t
			p.BeforeID = id
		}
	}

	if idStr := c.Query("before_id"); idStr != "" {
		if id, err := strconv.ParseUint(idStr, 10, 64); err == nil {
			p.BeforeID = uint(id)
		}
	}

	return p
}

func (p PaginationParams) IDPage() services.IDPage {
	return services.IDPage{Limit: p.Limit, BeforeID: p.BeforeID}
}

func (p PaginationParams) TimePage() services.TimePage {
	return services.TimePage{Limit: p.Limit, Before: p.Before, BeforeID: p.BeforeID}
}

func idCursor(hasMore bool, lastID uint) string {
	if !hasMore {
		return ""
	}
	return strconv.FormatUint(uint64(lastID), 10)
}

// timeCursor encodes the last row's position so rows sharing its read_at stay reachable.
func timeCursor(hasMore bool, last time.Time, lastID uint) string {
	if !hasMore {
		return ""
	}
	return last.UTC().Format(time.RFC3339Nano) + "_" + strconv.FormatUint(uint64(lastID), 10)
}

func parseTimeCursor(raw string) (time.Time, uint, bool) {
	ts, idStr, hasID := strings.Cut(raw, "_")
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, 0, false
	}
	if !hasID {
		return t, 0, true
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		return time.Time{}, 0, false
	}
	return t, uint(id), true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return uint(id), true
}
