package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"home-service-server/middleware"
	"home-service-server/models"
	"home-service-server/services"
	"home-service-server/types"
)

// PaymentHandler serves customer payments
type PaymentHandler struct {
	settlement *services.SettlementService
}

func NewPaymentHandler(settlement *services.SettlementService) *PaymentHandler {
	return &PaymentHandler{settlement: settlement}
}

func (h *PaymentHandler) RegisterPaymentRoutes(router *gin.RouterGroup) {
	router.Use(middleware.RequireRole(types.RoleCustomer))

	router.POST("/groups/:group_id/pay", h.payGroup)
	router.GET("/obligations", h.getObligations)
	router.GET("/obligations/:id", h.getObligation)
	router.POST("/obligations/:id/pay", h.payObligation)
}

func (h *PaymentHandler) payGroup(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	var body models.PayGroupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	if body.Amount == nil {
		badRequest(c, "amount", "is required")
		return
	}

	receipt, err := h.settlement.PayGroup(c.Request.Context(), actor, c.Param("group_id"), *body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment completed",
		"receipt": receipt,
	})
}

func (h *PaymentHandler) payObligation(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	receipt, err := h.settlement.PayObligation(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment completed",
		"receipt": receipt,
	})
}

func (h *PaymentHandler) getObligations(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	obs, err := h.settlement.ListObligations(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"obligations": nonNil(obs),
		"total":       len(obs),
	})
}

func (h *PaymentHandler) getObligation(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ob, err := h.settlement.GetObligation(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": ob})
}
