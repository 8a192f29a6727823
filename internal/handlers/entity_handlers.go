package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/logger"
)

// EntityService is the CRUD surface shared by every business service.
type EntityService[T any, PT models.EntityPtr[T]] interface {
	GetByID(ctx context.Context, id uuid.UUID) (PT, error)
	GetAll(ctx context.Context) ([]PT, error)
	GetPage(ctx context.Context, limit, offset int) ([]PT, error)
	Create(ctx context.Context, entity PT) (PT, error)
	Update(ctx context.Context, entity PT) (PT, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// EntityHandlers exposes one business entity over REST.
type EntityHandlers[T any, PT models.EntityPtr[T]] struct {
	svc    EntityService[T, PT]
	plural string
	log    *zap.Logger
}

// NewEntityHandlers creates handlers for svc. plural names the collection in
// list responses.
func NewEntityHandlers[T any, PT models.EntityPtr[T]](svc EntityService[T, PT], plural string, log *zap.Logger) *EntityHandlers[T, PT] {
	return &EntityHandlers[T, PT]{svc: svc, plural: plural, log: log}
}

// Register mounts the collection under g at path. read guards the GET
// routes, write guards the rest.
func (h *EntityHandlers[T, PT]) Register(g *echo.Group, path string, read, write echo.MiddlewareFunc) {
	g.GET(path, h.List, read)
	g.GET(path+"/:id", h.Get, read)
	g.POST(path, h.Create, write)
	g.PUT(path+"/:id", h.Update, write)
	g.DELETE(path+"/:id", h.Delete, write)
}

// List returns one page of the collection, selected by the limit and offset
// query parameters.
func (h *EntityHandlers[T, PT]) List(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return common.SendValidationError(c, "limit", err.Error())
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}
	limit, offset = common.ValidatePaginationParams(limit, offset)

	items, err := h.svc.GetPage(c.Request().Context(), limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		h.plural: items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func (h *EntityHandlers[T, PT]) Get(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	entity, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, entity)
}

func (h *EntityHandlers[T, PT]) Create(c echo.Context) error {
	var entity T
	if err := c.Bind(&entity); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}
	created, err := h.svc.Create(c.Request().Context(), PT(&entity))
	if err != nil {
		return common.SendError(c, err)
	}
	logger.FromContext(c.Request().Context(), h.log).Info("Record created",
		zap.String("entity", h.plural),
		zap.String("id", created.GetID().String()))
	return c.JSON(http.StatusCreated, created)
}

// Update replaces the record named by the path. The id in the body is ignored.
func (h *EntityHandlers[T, PT]) Update(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var entity T
	if err := c.Bind(&entity); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}
	pt := PT(&entity)
	pt.SetID(id)

	updated, err := h.svc.Update(c.Request().Context(), pt)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *EntityHandlers[T, PT]) Delete(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	deleted, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return common.SendError(c, err)
	}
	if !deleted {
		return common.SendNotFoundError(c, "Record")
	}
	return c.NoContent(http.StatusNoContent)
}
