package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"home-service-server/middleware"
	"home-service-server/services"
	ws "home-service-server/websocket"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Dispatch      *services.DispatchService
	Assignment    *services.AssignmentService
	Lifecycle     *services.LifecycleService
	Settlement    *services.SettlementService
	Notifications *services.NotificationService
}

// Options carries the auth and realtime settings for RegisterRoutes
type Options struct {
	JWTSecret string
	JWTIssuer string
	Hub       *ws.Hub
	Upgrader  *gorillaws.Upgrader
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, svc Services, opts Options) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Home Service Server is running",
			"time":    time.Now().UTC(),
		})
	})

	api := router.Group("/api/v1")

	if opts.Hub != nil && opts.Upgrader != nil {
		api.GET("/ws", middleware.WebSocketAuthMiddleware(opts.JWTSecret, opts.JWTIssuer), func(c *gin.Context) {
			actor, _ := middleware.ActorFrom(c)
			ws.ServeWebSocket(opts.Hub, opts.Upgrader, c.Writer, c.Request, actor.String())
		})
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(opts.JWTSecret, opts.JWTIssuer))
	{
		NewServiceRequestHandler(svc.Dispatch, svc.Lifecycle).
			RegisterServiceRequestRoutes(protected.Group("/service-requests"))

		NewServicemanHandler(svc.Dispatch, svc.Assignment, svc.Lifecycle, svc.Settlement).
			RegisterServicemanRoutes(protected.Group("/serviceman"))

		NewPaymentHandler(svc.Settlement).
			RegisterPaymentRoutes(protected.Group("/payments"))

		NewNotificationHandler(svc.Notifications).
			RegisterNotificationRoutes(protected.Group("/notifications"))

		NewAdminHandler(svc.Dispatch).
			RegisterAdminRoutes(protected.Group("/admin"))
	}
}
