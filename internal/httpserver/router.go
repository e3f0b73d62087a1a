package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"projectflow/internal/handler"
	"projectflow/pkg/rbac"
)

// Pinger 就绪检查依赖，*pgxpool.Pool 满足
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Tasks         *handler.TaskHandler
	Todos         *handler.TodoHandler
	Organizations *handler.OrganizationHandler
	Admin         *handler.AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, jwtSecret, serviceName string, db Pinger) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if db == nil {
			c.JSON(200, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/tasks", RequirePermission(rbac.PermissionCreateTask), h.Tasks.CreateTask)
		auth.GET("/tasks/:id", RequirePermission(rbac.PermissionReadTask), h.Tasks.GetTask)
		auth.PATCH("/tasks/:id", RequirePermission(rbac.PermissionUpdateTask), h.Tasks.UpdateTask)

		auth.POST("/todos", RequirePermission(rbac.PermissionCreateTodo), h.Todos.CreateTodo)

		auth.DELETE("/organization/members/:id", RequirePermission(rbac.PermissionRemoveMember), h.Organizations.RemoveMember)

		admin := auth.Group("/admin")
		admin.Use(RequirePermission(rbac.PermissionReplayOutbox))
		{
			admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
			admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}
