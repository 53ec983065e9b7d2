package leave

import (
	"leavedesk/internal/identity"
	"leavedesk/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RegisterRoutes mounts the leave lifecycle endpoints. Mutations live under
// /leave and reads under /leaves so /leaves/stats never collides with an id
// parameter.
func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rdb *redis.Client,
) {
	mutations := r.Group("/leave")
	mutations.Use(middleware.AuthMiddleware())
	{
		mutations.POST("",
			middleware.RateLimitByUser(rate.Limit(2), 5),
			middleware.Idempotency(rdb),
			handler.Apply,
		)
		mutations.PUT("/:id/status",
			middleware.RoleMiddleware(identity.RoleAdmin, identity.RoleManager),
			handler.Decide,
		)
		mutations.PUT("/:id/cancel", handler.Cancel)
	}

	reads := r.Group("/leaves")
	reads.Use(middleware.AuthMiddleware())
	{
		reads.GET("", handler.List)
		reads.GET("/pending",
			middleware.RoleMiddleware(identity.RoleAdmin, identity.RoleManager),
			handler.ListPending,
		)
		reads.GET("/stats", handler.MyStats)
		reads.GET("/stats/:employeeId",
			middleware.RoleMiddleware(identity.RoleAdmin, identity.RoleManager),
			handler.EmployeeStats,
		)
	}
}
