package handlers

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/backup"
	"propertyhub/internal/caching"
	"propertyhub/internal/middleware"
	"propertyhub/internal/models"
	"propertyhub/internal/services"
	"propertyhub/pkg/database"
)

// Dependencies is everything the HTTP API serves from.
type Dependencies struct {
	Store    *database.Store
	Cache    caching.CacheService
	Backups  *backup.Service
	Services *services.Registry
	Version  string
	Clock    clockwork.Clock
}

// RegisterRoutes mounts the health endpoints on e and the API under /v1.
// auth must authenticate the caller and attach their user context.
func RegisterRoutes(e *echo.Echo, deps Dependencies, auth []echo.MiddlewareFunc, log *zap.Logger) {
	svc := deps.Services
	policies := middleware.NewPolicyMiddleware(svc.Authz, log)
	member := policies.Require(services.PolicyOrgMember)

	health := NewHealthHandlers(deps.Store, deps.Cache, deps.Version, deps.Clock, log)
	e.GET("/health", health.HealthCheck)
	e.GET("/health/ready", health.ReadinessCheck)

	v1 := e.Group("/v1", auth...)

	orgs := NewOrganizationHandlers(svc.Users, svc.Organizations, log)
	v1.GET("/me", orgs.Me)
	v1.GET("/organizations", orgs.ListOrganizations)
	v1.POST("/organizations", orgs.CreateOrganization)
	v1.POST("/organizations/:id/switch", orgs.SwitchOrganization)
	v1.GET("/organizations/members", orgs.ListMembers, member)
	v1.POST("/organizations/members", orgs.AddMember, policies.RequirePermission(services.PermMembersManage))
	v1.DELETE("/organizations/members/:userId", orgs.RemoveMember, policies.RequirePermission(services.PermMembersManage))

	NewEntityHandlers[models.Property](svc.Properties, "properties", log).
		Register(v1, "/properties", member, policies.RequirePermission(services.PermPropertiesManage))
	NewEntityHandlers[models.Resident](svc.Residents, "residents", log).
		Register(v1, "/residents", member, policies.RequirePermission(services.PermPropertiesManage))
	NewEntityHandlers[models.Lease](svc.Leases, "leases", log).
		Register(v1, "/leases", member, policies.RequirePermission(services.PermLeasesManage))
	NewEntityHandlers[models.Invoice](svc.Invoices, "invoices", log).
		Register(v1, "/invoices", member, policies.RequirePermission(services.PermBillingManage))
	NewEntityHandlers[models.Payment](svc.Payments, "payments", log).
		Register(v1, "/payments", member, policies.RequirePermission(services.PermBillingManage))
	NewMaintenanceHandlers(svc.Maintenance, log).
		Register(v1, "/maintenance-requests", member, policies.RequirePermission(services.PermMaintenanceManage))

	backups := NewBackupHandlers(deps.Backups, log)
	admin := v1.Group("/admin", policies.RequirePermission(services.PermBackupsManage))
	admin.GET("/backups", backups.ListBackups)
	admin.POST("/backups", backups.CreateBackup)
	admin.POST("/backups/restore", backups.StageRestore)
}
