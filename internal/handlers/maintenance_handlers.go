package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/services"
)

type MaintenanceHandlers struct {
	*EntityHandlers[models.MaintenanceRequest, *models.MaintenanceRequest]
	svc *services.MaintenanceService
}

func NewMaintenanceHandlers(svc *services.MaintenanceService, log *zap.Logger) *MaintenanceHandlers {
	return &MaintenanceHandlers{
		EntityHandlers: NewEntityHandlers[models.MaintenanceRequest](svc, "maintenance_requests", log),
		svc:            svc,
	}
}

// Register mounts the CRUD routes plus the open queue.
func (h *MaintenanceHandlers) Register(g *echo.Group, path string, read, write echo.MiddlewareFunc) {
	g.GET(path+"/open", h.Open, read)
	h.EntityHandlers.Register(g, path, read, write)
}

// Open godoc
// @Summary  Open maintenance requests, most urgent first
// @Tags     maintenance
// @Produce  json
// @Success  200  {array}  models.MaintenanceRequest
// @Security BearerAuth
// @Router   /maintenance-requests/open [get]
func (h *MaintenanceHandlers) Open(c echo.Context) error {
	open, err := h.svc.OpenRequests(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"maintenance_requests": open,
		"count":                len(open),
	})
}
