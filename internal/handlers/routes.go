package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/middleware"
)

// Routes bundles the handler groups mounted under /v1
type Routes struct {
	Providers *ProviderHandlers
	PSV       *PSVHandlers
	Committee *CommitteeHandlers
	System    *SystemHandlers

	Auditor      middleware.AuditLogger
	ReviewerRole string
	AdminRole    string
	VerifierRole string
}

// Register mounts the v1 API. Everything but health requires a bearer token.
func (r Routes) Register(router *gin.Engine) {
	v1 := router.Group("/v1")
	v1.GET("/health", r.System.HealthCheck)

	api := v1.Group("")
	api.Use(middleware.AuthMiddleware(), middleware.AuditContext(), middleware.AuditMiddleware(r.Auditor))
	{
		api.GET("/providers", r.Providers.ListProviders)
		api.POST("/providers", r.Providers.CreateProvider)
		api.GET("/providers/:id", r.Providers.GetProvider)
		api.PUT("/providers/:id", r.Providers.UpdateProvider)
		api.POST("/providers/:id/validate", r.Providers.ValidateProvider)
		api.POST("/intake/files", r.Providers.UploadRoster)

		api.POST("/providers/:id/psv", r.PSV.DispatchAll)
		api.POST("/providers/:id/psv/:check", r.PSV.DispatchCheck)
		api.DELETE("/providers/:id/psv/:check", r.PSV.CancelCheck)
		api.POST("/providers/:id/psv/:check/result", middleware.RequireRole(r.VerifierRole, r.AdminRole), r.PSV.RecordResult)
		api.GET("/psv/reports", r.PSV.PSVReport)

		api.POST("/providers/:id/decision", middleware.RequireRole(r.ReviewerRole, r.AdminRole), r.Committee.SubmitDecision)
		api.GET("/providers/:id/decisions", r.Committee.GetDecisions)
		api.GET("/committee/queue", r.Committee.Queue)

		api.GET("/dashboard/stats", r.System.DashboardStats)
	}
}
