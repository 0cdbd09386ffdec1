package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"nasmon/internal/engine"
	"nasmon/internal/models"
	"nasmon/internal/registry"

	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	engine *engine.Engine
}

func NewAlertHandler(eng *engine.Engine) *AlertHandler {
	return &AlertHandler{engine: eng}
}

func (h *AlertHandler) List(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"alerts": h.engine.List()})
}

func (h *AlertHandler) Dismiss(ctx *gin.Context) {
	if err := h.engine.Dismiss(ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"status": "dismissed"})
}

func (h *AlertHandler) Restore(ctx *gin.Context) {
	if err := h.engine.Restore(ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"status": "restored"})
}

type oneshotCreateRequest struct {
	Class string                 `json:"klass"`
	Args  map[string]interface{} `json:"args"`
}

func (h *AlertHandler) OneshotCreate(ctx *gin.Context) {
	var request oneshotCreateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}

	if err := h.engine.OneshotCreate(request.Class, request.Args); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"status": "created"})
}

type oneshotDeleteRequest struct {
	Classes []string               `json:"klasses"`
	Query   map[string]interface{} `json:"query"`
}

func (h *AlertHandler) OneshotDelete(ctx *gin.Context) {
	var request oneshotDeleteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}

	if err := h.engine.OneshotDelete(request.Classes, request.Query); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"status": "deleted"})
}

func (h *AlertHandler) RunSource(ctx *gin.Context) {
	alerts, err := h.engine.RunSource(ctx.Request.Context(), ctx.Param("name"))
	if err != nil {
		if errors.Is(err, registry.ErrSourceUnavailable) {
			ctx.JSON(503, gin.H{"error": "Alert source unavailable"})
			return
		}
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"alerts": alerts})
}

type blockSourceRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

func (h *AlertHandler) BlockSource(ctx *gin.Context) {
	// Body is optional; the default TTL applies without one.
	var request blockSourceRequest
	_ = ctx.ShouldBindJSON(&request)

	ttl := engine.DefaultLockTTL
	if request.TTLSeconds > 0 {
		ttl = time.Duration(request.TTLSeconds) * time.Second
	}

	id, err := h.engine.BlockSource(ctx.Param("name"), ttl)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"lock": id})
}

func (h *AlertHandler) UnblockSource(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid lock id"})
		return
	}
	if err := h.engine.UnblockSource(id); err != nil {
		ctx.JSON(404, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"status": "unblocked"})
}

func (h *AlertHandler) BlockedSources(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"sources": h.engine.BlockedSources()})
}

func (h *AlertHandler) Flush(ctx *gin.Context) {
	h.engine.FlushAlerts()
	ctx.JSON(200, gin.H{"status": "flushed"})
}

func (h *AlertHandler) SourcesStats(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"sources": h.engine.SourcesStats()})
}

// respondError maps engine errors to HTTP codes: validation errors are
// the caller's fault, "unknown X" means not found, the rest is on us.
func respondError(ctx *gin.Context, err error) {
	if verr, ok := models.AsValidationError(err); ok {
		ctx.JSON(400, gin.H{"error": verr.Message, "field": verr.Field})
		return
	}
	if strings.Contains(err.Error(), "unknown") {
		ctx.JSON(404, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(500, gin.H{"error": "Operation failed", "details": err.Error()})
}
