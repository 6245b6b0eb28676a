package app

import (
	"mcq_tutor_backend/docs"
	"mcq_tutor_backend/internal/config"
	"mcq_tutor_backend/internal/middleware"
	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/me", c.auth.Me)

		// 讲义
		authGroup.GET("/lectures", c.lecture.List)
		authGroup.GET("/lectures/:id", c.lecture.Get)
		authGroup.POST("/lectures/upload", middleware.RoleMiddleware(model.Teacher), c.lecture.Upload)
		authGroup.DELETE("/lectures/:id", middleware.RoleMiddleware(model.Teacher), c.lecture.Delete)

		// 题目
		authGroup.POST("/mcq/generate", middleware.RoleMiddleware(model.Teacher), c.mcq.Generate)
		authGroup.GET("/questions", c.mcq.List)
		authGroup.GET("/questions/:id", c.mcq.Get)

		// 解释与会话
		authGroup.POST("/xai/explain", c.xai.Explain)
		authGroup.POST("/xai/chat", c.xai.Chat)
	}
}
