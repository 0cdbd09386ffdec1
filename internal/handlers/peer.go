package handlers

import (
	"errors"

	"nasmon/internal/engine"
	"nasmon/internal/ha"
	"nasmon/internal/registry"

	"github.com/gin-gonic/gin"
)

// PeerHandler serves the RPC surface the other controller's coordinator
// calls during its ticks.
type PeerHandler struct {
	engine *engine.Engine
	system ha.System
}

func NewPeerHandler(eng *engine.Engine, system ha.System) *PeerHandler {
	return &PeerHandler{engine: eng, system: system}
}

func (h *PeerHandler) Version(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"version": h.system.Version()})
}

func (h *PeerHandler) State(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"state": h.system.State()})
}

func (h *PeerHandler) Status(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"status": h.system.HAStatus()})
}

func (h *PeerHandler) Uptime(ctx *gin.Context) {
	uptime, err := h.system.Uptime()
	if err != nil {
		ctx.JSON(500, gin.H{"error": "Failed to read uptime", "details": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"uptime_seconds": int64(uptime.Seconds())})
}

// RunSource answers a peer-initiated source run. An unavailable source
// maps to 503 so the caller absorbs it as an empty result instead of
// raising a failed-on-peer alert.
func (h *PeerHandler) RunSource(ctx *gin.Context) {
	alerts, err := h.engine.RunSource(ctx.Request.Context(), ctx.Param("name"))
	if err != nil {
		if errors.Is(err, registry.ErrSourceUnavailable) {
			ctx.JSON(503, gin.H{"error": "Alert source unavailable"})
			return
		}
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"alerts": alerts})
}
