package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/iufc-admission-api/api/swagger"
	"github.com/noah-isme/iufc-admission-api/internal/handler"
	"github.com/noah-isme/iufc-admission-api/internal/middleware"
	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/pkg/config"
	"github.com/noah-isme/iufc-admission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/iufc-admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/iufc-admission-api/pkg/middleware/requestid"
)

type routes struct {
	auth       *handler.AuthHandler
	admissions *handler.AdmissionHandler
	files      *handler.FileHandler
	trainings  *handler.TrainingHandler
	prospects  *handler.ProspectHandler
	addresses  *handler.AddressHandler
	exports    *handler.ExportHandler
	users      *handler.UserHandler
	metrics    *handler.MetricsHandler

	tokens   middleware.TokenValidator
	audit    middleware.AuditWriter
	observer middleware.RequestObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(h.observer))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/refresh", h.auth.Refresh)
	api.POST("/prospects", middleware.OptionalJWT(h.tokens), h.prospects.Create)
	// The signed token is the credential here.
	api.GET("/files/:id/download", h.files.Download)

	authed := api.Group("", middleware.JWT(h.tokens))
	authed.GET("/auth/me", h.auth.Me)
	authed.POST("/auth/logout", h.auth.Logout)
	authed.POST("/auth/change-password", h.auth.ChangePassword)

	authed.GET("/countries", h.addresses.Countries)
	authed.GET("/municipalities", h.addresses.Municipalities)

	authed.GET("/trainings", h.trainings.List)
	authed.GET("/trainings/:id", h.trainings.Get)

	authed.GET("/admissions", h.admissions.List)
	authed.POST("/admissions", h.admissions.Create)
	authed.GET("/admissions/:id", h.admissions.Get)
	authed.PUT("/admissions/:id", h.admissions.Update)
	authed.PUT("/admissions/:id/registration", h.admissions.UpdateRegistration)
	authed.PATCH("/admissions/:id/state",
		middleware.Audit(h.audit, logr, models.AuditActionAdmissionState, "admission"),
		h.admissions.ChangeState)
	authed.GET("/admissions/:id/choices", h.admissions.Choices)
	authed.GET("/admissions/:id/history", h.admissions.History)
	authed.GET("/admissions/:id/sheet", h.exports.AdmissionSheet)
	authed.POST("/admissions/delete",
		middleware.Audit(h.audit, logr, models.AuditActionAdmissionDelete, "admission"),
		h.admissions.DeleteDrafts)

	authed.GET("/admissions/:id/files", h.files.List)
	authed.POST("/admissions/:id/files", h.files.Upload)
	authed.GET("/files/:id/url", h.files.DownloadURL)
	authed.DELETE("/files/:id", h.files.Delete)

	staff := authed.Group("", middleware.RequireStaff())
	staff.POST("/admissions/archive", h.admissions.Archive)
	staff.POST("/admissions/unarchive", h.admissions.Unarchive)
	staff.PATCH("/trainings/:id", h.trainings.Update)
	staff.GET("/exports/:kind", h.exports.Export)

	validators := authed.Group("", middleware.RequireRegistrationValidator())
	validators.POST("/admissions/:id/inject",
		middleware.Audit(h.audit, logr, models.AuditActionEPCInject, "admission"),
		h.admissions.Inject)

	managers := authed.Group("", middleware.RequireRoles(models.RoleManager))
	managers.GET("/prospects", h.prospects.List)
	managers.POST("/trainings", h.trainings.Create)
	managers.POST("/trainings/:id/managers", h.trainings.AddManager)
	managers.DELETE("/trainings/:id/managers/:personId", h.trainings.RemoveManager)
	managers.GET("/users", h.users.List)
	managers.POST("/users", h.users.Create)
	managers.GET("/users/:id", h.users.Get)
	managers.PATCH("/users/:id", h.users.Update)
	managers.DELETE("/users/:id", h.users.Delete)

	return r
}
