package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/curricula-backend/internal/handlers"
	"github.com/yungbote/curricula-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware  *middleware.AuthMiddleware
	ImportHandler   *handlers.ImportHandler
	DocumentHandler *handlers.DocumentHandler
	AllowOrigins    []string
	ServiceName     string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5174"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Api-Key", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Sources and catalog
	api.GET("/import/sources", cfg.ImportHandler.GetSources)
	api.GET("/import/sources/:source_id", cfg.ImportHandler.GetSource)
	api.GET("/import/sources/:source_id/courses", cfg.ImportHandler.GetCourses)
	api.GET("/import/sources/:source_id/search", cfg.ImportHandler.SearchCourses)
	api.GET("/import/sources/:source_id/courses/:course_id", cfg.ImportHandler.GetCourseDetail)

	// Import jobs
	api.POST("/import/jobs", cfg.ImportHandler.StartImport)
	api.GET("/import/jobs", cfg.ImportHandler.ListImports)
	api.GET("/import/jobs/:id", cfg.ImportHandler.GetImport)
	api.DELETE("/import/jobs/:id", cfg.ImportHandler.CancelImport)
	api.GET("/import/jobs/:id/events", cfg.ImportHandler.StreamImportEvents)

	// Documents
	api.GET("/documents", cfg.DocumentHandler.ListDocuments)
	api.GET("/documents/:id", cfg.DocumentHandler.GetDocument)
	api.DELETE("/documents/:id", cfg.AuthMiddleware.RequireAdmin(), cfg.DocumentHandler.DeleteDocument)

	return router
}
