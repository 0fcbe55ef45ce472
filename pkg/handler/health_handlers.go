package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cadenza-chat/cadenza/pkg/ws"
)

// HealthHandler exposes operational state of the chat gateway.
type HealthHandler struct {
	cleanup *ws.CleanupTable
}

func NewHealthHandler(cleanup *ws.CleanupTable) *HealthHandler {
	return &HealthHandler{cleanup: cleanup}
}

// Connections serves GET /api/health/connections: the cleanup table's view of
// live connections and their tracked registries.
func (h *HealthHandler) Connections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": h.cleanup.Status()})
}
