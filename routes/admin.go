package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"home-service-server/middleware"
	"home-service-server/models"
	"home-service-server/repository"
	"home-service-server/services"
	"home-service-server/types"
)

// AdminHandler serves read-only oversight endpoints
type AdminHandler struct {
	dispatch *services.DispatchService
}

func NewAdminHandler(dispatch *services.DispatchService) *AdminHandler {
	return &AdminHandler{dispatch: dispatch}
}

func (h *AdminHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.Use(middleware.RequireRole(types.RoleAdmin))
	router.GET("/service-requests", h.getAllServiceRequests)
}

func (h *AdminHandler) getAllServiceRequests(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := repository.RequestFilter{
		Stage: models.Stage(c.Query("stage")),
		City:  c.Query("city"),
	}
	if v, err := strconv.ParseUint(c.Query("customer_id"), 10, 64); err == nil {
		filter.CustomerID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("serviceman_id"), 10, 64); err == nil {
		filter.ServicemanID = uint(v)
	}

	reqs, total, err := h.dispatch.ListAllRequests(c.Request.Context(), actor, page, pageSize, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"service_requests": toResponses(reqs),
		"total":            total,
		"page":             page,
		"page_size":        pageSize,
	})
}
