package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveWebSocket relays live events and intensity snapshots from redis. The last
// snapshot is sent as soon as the client connects.
func LiveWebSocket(cache *services.CacheService, authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
			return
		}
		if _, err := authService.ValidateToken(tokenStr); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if !cache.Available() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		var snapshot json.RawMessage
		if found, err := cache.Get(ctx, services.SnapshotKey, &snapshot); err != nil {
			log.Printf("load intensity snapshot: %v", err)
		} else if found {
			if err := conn.WriteJSON(gin.H{"type": "intensity_snapshot", "data": snapshot}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}

		pubsub := cache.Subscribe(ctx, services.LiveChannel, services.IntensityChannel)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				kind := "traffic_update"
				if msg.Channel == services.IntensityChannel {
					kind = "intensity_snapshot"
				}
				err := conn.WriteJSON(gin.H{
					"type": kind,
					"data": json.RawMessage(msg.Payload),
				})
				if err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			}
		}
	}
}
