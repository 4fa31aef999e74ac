package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/wheelster-backend/internal/middleware"
	"github.com/chachabrian/wheelster-backend/internal/services"
)

// WebSocketHandler streams booking events concerning the caller
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		services.HandleWebSocket(hub, c.Writer, c.Request, middleware.CurrentUserID(c), middleware.CurrentRole(c))
	}
}
