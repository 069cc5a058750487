package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

type routeHandlers struct {
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	catalog    *handler.CatalogHandler
	timetables *handler.TimetableHandler
	enrollment *handler.EnrollmentHandler
	dashboards *handler.DashboardHandler
	grades     *handler.GradeHandler
	metrics    *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers, tokens middleware.TokenValidator) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", middleware.OptionalJWT(tokens), h.auth.Signup)
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)
	auth.POST("/request-reset", h.auth.RequestReset)
	auth.POST("/reset-password", h.auth.ResetPassword)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/users", admin, h.users.List)

	secured.POST("/courses", admin, h.catalog.CreateCourse)
	secured.GET("/courses", h.catalog.ListCourses)
	secured.GET("/courses/:id", h.catalog.GetCourse)
	secured.POST("/classes", admin, h.catalog.CreateClass)
	secured.GET("/classes", h.catalog.ListClasses)
	secured.GET("/classes/:id/students", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.catalog.ListClassStudents)
	secured.POST("/units", admin, h.catalog.CreateUnit)
	secured.GET("/units", h.catalog.ListUnits)

	secured.GET("/timetables", h.timetables.List)
	secured.GET("/timetables/export", h.timetables.Export)
	secured.POST("/timetables", admin, h.timetables.Create)
	secured.PUT("/timetables/:id", admin, h.timetables.Update)
	secured.DELETE("/timetables/:id", admin, h.timetables.Delete)

	secured.POST("/enrollments", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.enrollment.Enroll)

	self := middleware.RBAC(string(models.RoleAdmin), middleware.Self)
	secured.GET("/dashboards/students/:id", self, h.dashboards.Student)
	secured.GET("/dashboards/teachers/:id", self, h.dashboards.Teacher)

	secured.POST("/grades", middleware.RequireRoles(models.RoleTeacher), h.grades.Upload)
	secured.GET("/grades/students/:id", self, h.grades.ListForStudent)
}
