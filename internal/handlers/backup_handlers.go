package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/backup"
	"propertyhub/internal/common"
	"propertyhub/pkg/logger"
)

// BackupHandlers administers file backups. backups is nil in server mode.
type BackupHandlers struct {
	backups *backup.Service
	log     *zap.Logger
}

func NewBackupHandlers(backups *backup.Service, log *zap.Logger) *BackupHandlers {
	return &BackupHandlers{backups: backups, log: log}
}

// StageRestoreRequest names a backup in the backup directory.
type StageRestoreRequest struct {
	Name string `json:"name"`
}

// ListBackups godoc
// @Summary  Backups, newest first
// @Tags     admin
// @Produce  json
// @Success  200  {array}   backup.Info
// @Failure  503  {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /admin/backups [get]
func (h *BackupHandlers) ListBackups(c echo.Context) error {
	if h.backups == nil {
		return h.unsupported(c)
	}
	list, err := h.backups.ListBackups()
	if err != nil {
		return h.fail(c, "ListBackups", err)
	}
	if list == nil {
		list = []backup.Info{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"backups": list,
		"count":   len(list),
	})
}

// CreateBackup godoc
// @Summary  Take a manual backup
// @Tags     admin
// @Produce  json
// @Success  201  {object}  map[string]string
// @Failure  503  {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /admin/backups [post]
func (h *BackupHandlers) CreateBackup(c echo.Context) error {
	if h.backups == nil {
		return h.unsupported(c)
	}
	path, err := h.backups.CreateBackup(c.Request().Context(), backup.ReasonManual)
	if err != nil {
		return h.fail(c, "CreateBackup", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"name": filepath.Base(path),
		"path": path,
	})
}

// StageRestore godoc
// @Summary      Stage a restore
// @Description  The backup replaces the store on the next start.
// @Tags         admin
// @Accept       json
// @Param        body  body  StageRestoreRequest  true  "backup"
// @Success      202
// @Failure      404  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /admin/backups/restore [post]
func (h *BackupHandlers) StageRestore(c echo.Context) error {
	if h.backups == nil {
		return h.unsupported(c)
	}
	var req StageRestoreRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || name != filepath.Base(name) {
		return common.SendValidationError(c, "name", "name must be a backup file name")
	}
	if err := h.backups.StageRestore(filepath.Join(h.backups.Dir(), name)); err != nil {
		return h.fail(c, "StageRestore", err)
	}
	logger.FromContext(c.Request().Context(), h.log).Info("Restore staged for next start", zap.String("backup", name))
	return c.NoContent(http.StatusAccepted)
}

func (h *BackupHandlers) unsupported(c echo.Context) error {
	return common.SendError(c, common.Unavailable("BackupHandlers", backup.ErrUnsupported))
}

func (h *BackupHandlers) fail(c echo.Context, op string, err error) error {
	op = "BackupHandlers." + op
	switch {
	case errors.Is(err, backup.ErrNotFound):
		return common.SendError(c, common.NotFound(op, "backup not found"))
	case errors.Is(err, backup.ErrUnsupported):
		return common.SendError(c, common.Unavailable(op, err))
	}
	logger.FromContext(c.Request().Context(), h.log).Error("Backup operation failed", zap.String("operation", op), zap.Error(err))
	return common.SendError(c, common.Internal(op, err))
}
