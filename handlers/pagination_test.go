package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestTimeCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 30, 0, 123456789, time.UTC)
	cursor := timeCursor(true, at, 42)
	if cursor != "2025-01-15T10:30:00.123456789Z_42" {
		t.Fatalf("timeCursor() = %q", cursor)
	}
	if got := timeCursor(false, at, 42); got != "" {
		t.Errorf("timeCursor(no more) = %q, want empty", got)
	}

	gotAt, gotID, ok := parseTimeCursor(cursor)
	if !ok || !gotAt.Equal(at) || gotID != 42 {
		t.Errorf("parseTimeCursor(%q) = %v, %d, %v", cursor, gotAt, gotID, ok)
	}
}

func TestParseTimeCursor(t *testing.T) {
	tests := []struct {
		raw    string
		wantID uint
		wantOK bool
	}{
		{"2025-01-15T10:30:00Z", 0, true},
		{"2025-01-15T10:30:00Z_7", 7, true},
		{"2025-01-15T10:30:00Z_", 0, false},
		{"2025-01-15T10:30:00Z_x", 0, false},
		{"2025-01-15T10:30:00Z_0", 0, false},
		{"yesterday_7", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, id, ok := parseTimeCursor(tt.raw)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("parseTimeCursor(%q) = %d, %v, want %d, %v", tt.raw, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestParsePaginationTimeCursor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/plates-read?limit=500&before=2025-01-15T10:30:00Z_9", nil)

	p := ParsePagination(c)
	if p.Limit != MaxLimit {
		t.Errorf("Limit = %d, want %d", p.Limit, MaxLimit)
	}
	page := p.TimePage()
	if page.Before == nil || page.BeforeID != 9 {
		t.Errorf("TimePage() = %+v, want before set and id 9", page)
	}
}
