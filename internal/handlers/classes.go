package handlers

import (
	"nasmon/internal/engine"
	"nasmon/internal/models"
	"nasmon/internal/registry"

	"github.com/gin-gonic/gin"
)

type ClassHandler struct {
	engine  *engine.Engine
	classes *registry.ClassRegistry
	product string
}

func NewClassHandler(eng *engine.Engine, classes *registry.ClassRegistry, product string) *ClassHandler {
	return &ClassHandler{engine: eng, classes: classes, product: product}
}

func (h *ClassHandler) Categories(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"categories": h.classes.Categories(h.product)})
}

func (h *ClassHandler) Policies(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"policies": models.PolicyNames})
}

func (h *ClassHandler) List(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"classes": h.engine.ClassConfigs()})
}

func (h *ClassHandler) Get(ctx *gin.Context) {
	view, err := h.engine.ClassConfig(ctx.Param("class"))
	if err != nil {
		ctx.JSON(404, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, view)
}

type classConfigRequest struct {
	Level            *string `json:"level"`
	Policy           string  `json:"policy"`
	ProactiveSupport *bool   `json:"proactive_support"`
}

func (h *ClassHandler) Update(ctx *gin.Context) {
	var request classConfigRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(400, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}

	cfg := models.ClassConfig{
		Class:            ctx.Param("class"),
		Policy:           request.Policy,
		ProactiveSupport: request.ProactiveSupport,
	}
	if request.Level != nil {
		level, err := models.ParseLevel(*request.Level)
		if err != nil {
			ctx.JSON(400, gin.H{"error": err.Error(), "field": "level"})
			return
		}
		cfg.Level = &level
	}

	if err := h.engine.UpdateClassConfig(ctx.Request.Context(), cfg); err != nil {
		respondError(ctx, err)
		return
	}

	view, err := h.engine.ClassConfig(cfg.Class)
	if err != nil {
		ctx.JSON(404, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, view)
}
