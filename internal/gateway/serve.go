// Package gateway – HTTP upgrade endpoint.
package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot forge the Authorization header / token query used by
	// the auth middleware, so the origin check stays permissive here and
	// cross-origin policy is enforced at the CORS layer for the REST surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS returns the Gin handler that upgrades an authenticated request to
// a websocket connection and registers it with the hub. The auth middleware
// must run first; the connection identity comes from the verified token,
// never from the client payload.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			id:     uuid.NewString(),
			userID: userID,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			hub:    hub,
			log:    log.With().Str("component", "gateway.client").Str("user_id", userID).Logger(),
			rooms:  make(map[string]struct{}),
		}

		hub.register <- client
		go client.writePump()
		go client.readPump()
	}
}
