package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"home-service-server/middleware"
	"home-service-server/models"
	"home-service-server/services"
	"home-service-server/types"
)

// ServiceRequestHandler serves the customer side of a request
type ServiceRequestHandler struct {
	dispatch  *services.DispatchService
	lifecycle *services.LifecycleService
}

func NewServiceRequestHandler(dispatch *services.DispatchService, lifecycle *services.LifecycleService) *ServiceRequestHandler {
	return &ServiceRequestHandler{dispatch: dispatch, lifecycle: lifecycle}
}

// RegisterServiceRequestRoutes registers all service request-related routes
func (h *ServiceRequestHandler) RegisterServiceRequestRoutes(router *gin.RouterGroup) {
	router.GET("/:id", h.getServiceRequest)

	customer := router.Group("", middleware.RequireRole(types.RoleCustomer))
	{
		customer.POST("", h.createServiceRequest)
		customer.POST("/checkout", h.checkout)
		customer.GET("/my-requests", h.getMyServiceRequests)
		customer.POST("/:id/withdraw", h.withdrawServiceRequest)
	}
}

func (h *ServiceRequestHandler) createServiceRequest(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	var body models.ServiceRequestCreate
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	req, err := h.dispatch.CreateRequest(c.Request.Context(), actor, body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         "Service request created successfully",
		"service_request": req.ToResponse(),
	})
}

type checkoutBody struct {
	PaymentGroupID string                        `json:"payment_group_id"`
	Items          []models.ServiceRequestCreate `json:"items"`
}

func (h *ServiceRequestHandler) checkout(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	if body.PaymentGroupID != "" {
		for i := range body.Items {
			if body.Items[i].PaymentGroupID == "" {
				body.Items[i].PaymentGroupID = body.PaymentGroupID
			}
		}
	}

	reqs, err := h.dispatch.Checkout(c.Request.Context(), actor, body.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]models.ServiceRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ToResponse())
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":          "Checkout completed",
		"payment_group_id": reqs[0].PaymentGroupID,
		"service_requests": out,
	})
}

func (h *ServiceRequestHandler) getMyServiceRequests(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	reqs, err := h.dispatch.ListCustomerRequests(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"service_requests": toResponses(reqs),
		"total":            len(reqs),
	})
}

func (h *ServiceRequestHandler) getServiceRequest(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	req, err := h.dispatch.GetRequest(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"service_request": req.ToResponse()})
}

func (h *ServiceRequestHandler) withdrawServiceRequest(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	req, err := h.lifecycle.Withdraw(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Service request withdrawn",
		"service_request": req.ToResponse(),
	})
}

func toResponses(reqs []models.ServiceRequest) []models.ServiceRequestResponse {
	out := make([]models.ServiceRequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, reqs[i].ToResponse())
	}
	return out
}
