package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades GET /api/games/:id/ws. exists reports whether the game is
// known; unknown ids are refused before the upgrade.
func Handler(hub *Hub, allowedOrigin string, exists func(*gin.Context, uuid.UUID) bool) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": "invalid game id"})
			return
		}
		if !exists(c, id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "NotFound", "message": "game not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("ws upgrade failed", "error", err)
			return
		}

		NewClient(id, conn, hub).Run()
	}
}
