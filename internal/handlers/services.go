package handlers

import (
	"strconv"

	"nasmon/internal/engine"
	"nasmon/internal/models"
	"nasmon/internal/services"

	"github.com/gin-gonic/gin"
)

type ServiceHandler struct {
	manager *services.Manager
	engine  *engine.Engine
}

func NewServiceHandler(manager *services.Manager, eng *engine.Engine) *ServiceHandler {
	return &ServiceHandler{manager: manager, engine: eng}
}

func (h *ServiceHandler) List(ctx *gin.Context) {
	rows, err := h.manager.List(ctx.Request.Context())
	if err != nil {
		ctx.JSON(500, gin.H{"error": "Failed to retrieve alert services", "details": err.Error()})
		return
	}
	ctx.JSON(200, gin.H{"services": rows})
}

func (h *ServiceHandler) Create(ctx *gin.Context) {
	var request models.AlertService
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}

	created, err := h.manager.Create(ctx.Request.Context(), request)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(201, created)
}

func (h *ServiceHandler) Update(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid service id"})
		return
	}

	var request models.AlertService
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}
	request.ID = id

	if err := h.manager.Update(ctx.Request.Context(), request); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, request)
}

func (h *ServiceHandler) Delete(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid service id"})
		return
	}

	if err := h.manager.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"status": "deleted"})
}

// Test pushes one synthetic alert through an unsaved service config so
// an operator can verify a channel before enabling it.
func (h *ServiceHandler) Test(ctx *gin.Context) {
	var request models.AlertService
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}

	if err := h.manager.Test(request, h.engine.BuildTestAlert()); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"status": "sent"})
}
