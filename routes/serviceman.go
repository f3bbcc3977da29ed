package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"home-service-server/middleware"
	"home-service-server/models"
	"home-service-server/services"
	"home-service-server/types"
)

// ServicemanHandler serves job discovery and field progress for servicemen
type ServicemanHandler struct {
	dispatch   *services.DispatchService
	assignment *services.AssignmentService
	lifecycle  *services.LifecycleService
	settlement *services.SettlementService
}

func NewServicemanHandler(
	dispatch *services.DispatchService,
	assignment *services.AssignmentService,
	lifecycle *services.LifecycleService,
	settlement *services.SettlementService,
) *ServicemanHandler {
	return &ServicemanHandler{
		dispatch:   dispatch,
		assignment: assignment,
		lifecycle:  lifecycle,
		settlement: settlement,
	}
}

// RegisterServicemanRoutes registers serviceman routes
func (h *ServicemanHandler) RegisterServicemanRoutes(router *gin.RouterGroup) {
	router.Use(middleware.RequireRole(types.RoleServiceman))

	router.PUT("/location", h.updateLocation)

	jobs := router.Group("/jobs")
	{
		jobs.GET("", h.getMyJobs)
		jobs.GET("/nearby", h.getNearbyJobs)
		jobs.POST("/:id/claim", h.claimJob)
		jobs.POST("/:id/reject", h.rejectJob)
		jobs.POST("/:id/status", h.advanceStatus)
		jobs.POST("/:id/price", h.setFinalPrice)
	}
}

func (h *ServicemanHandler) updateLocation(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	var body models.LocationUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		badRequest(c, "location", "latitude and longitude are required")
		return
	}

	sm, err := h.dispatch.UpdateLocation(c.Request.Context(), actor, *body.Latitude, *body.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":             "Location updated successfully",
		"latitude":            sm.Latitude,
		"longitude":           sm.Longitude,
		"location_updated_at": sm.LocationUpdatedAt,
	})
}

func (h *ServicemanHandler) getNearbyJobs(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	var radius float64
	if raw := c.Query("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			badRequest(c, "radius_km", "must be a positive number")
			return
		}
		radius = v
	}

	jobs, err := h.dispatch.ListNearbyJobs(c.Request.Context(), actor, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *ServicemanHandler) getMyJobs(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	reqs, err := h.dispatch.ListServicemanJobs(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	var active, history []models.ServiceRequestResponse
	for i := range reqs {
		resp := reqs[i].ToResponse()
		if resp.Status == models.RequestStatusAssigned {
			active = append(active, resp)
		} else {
			history = append(history, resp)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"active":  nonNil(active),
		"history": nonNil(history),
	})
}

func (h *ServicemanHandler) claimJob(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	req, err := h.assignment.Claim(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Job claimed successfully",
		"service_request": req.ToResponse(),
	})
}

func (h *ServicemanHandler) rejectJob(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.assignment.Reject(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job hidden from your list"})
}

type advanceBody struct {
	JobStatus string `json:"job_status"`
}

func (h *ServicemanHandler) advanceStatus(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body advanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	status, valid := services.ParseJobStatus(body.JobStatus)
	if !valid {
		respondError(c, fmt.Errorf("%w: unknown job status %q", services.ErrInvalidTransition, body.JobStatus))
		return
	}

	req, err := h.lifecycle.Advance(c.Request.Context(), actor, id, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Job status updated",
		"service_request": req.ToResponse(),
	})
}

type priceBody struct {
	Amount   *float64 `json:"amount"`
	Finalize *bool    `json:"finalize"`
}

func (h *ServicemanHandler) setFinalPrice(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body priceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	if body.Amount == nil {
		badRequest(c, "amount", "is required")
		return
	}
	finalize := true
	if body.Finalize != nil {
		finalize = *body.Finalize
	}

	req, err := h.settlement.SetPrice(c.Request.Context(), actor, id, *body.Amount, finalize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Price recorded",
		"service_request": req.ToResponse(),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
