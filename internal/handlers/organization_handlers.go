package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/services"
	"propertyhub/pkg/logger"
)

// OrganizationHandlers serves the caller's profile and organization management.
type OrganizationHandlers struct {
	users services.UserService
	orgs  services.OrganizationService
	log   *zap.Logger
}

func NewOrganizationHandlers(users services.UserService, orgs services.OrganizationService, log *zap.Logger) *OrganizationHandlers {
	return &OrganizationHandlers{users: users, orgs: orgs, log: log}
}

// CreateOrganizationRequest is the body of POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// Me godoc
// @Summary      Current user
// @Description  Returns the caller, their active organization, role and memberships.
// @Tags         users
// @Produce      json
// @Success      200  {object}  services.Profile
// @Failure      401  {object}  common.ErrorResponse
// @Security     BearerAuth
// @Router       /me [get]
func (h *OrganizationHandlers) Me(c echo.Context) error {
	profile, err := h.users.Me(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// ListOrganizations godoc
// @Summary  Organizations the caller belongs to
// @Tags     organizations
// @Produce  json
// @Success  200  {array}   models.OrganizationSummary
// @Security BearerAuth
// @Router   /organizations [get]
func (h *OrganizationHandlers) ListOrganizations(c echo.Context) error {
	orgs, err := h.orgs.ListMine(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"organizations": orgs,
		"count":         len(orgs),
	})
}

// CreateOrganization godoc
// @Summary  Create an organization owned by the caller
// @Tags     organizations
// @Accept   json
// @Produce  json
// @Param    body  body      CreateOrganizationRequest  true  "organization"
// @Success  201   {object}  models.Organization
// @Failure  400   {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /organizations [post]
func (h *OrganizationHandlers) CreateOrganization(c echo.Context) error {
	var req CreateOrganizationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}
	org, err := h.orgs.Create(c.Request().Context(), req.Name)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, org)
}

// SwitchOrganization godoc
// @Summary  Make an organization the caller's active one
// @Tags     organizations
// @Param    id   path  string  true  "organization id"
// @Success  204
// @Failure  403  {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /organizations/{id}/switch [post]
func (h *OrganizationHandlers) SwitchOrganization(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	ctx := c.Request().Context()
	switched, err := h.orgs.Switch(ctx, id)
	if err != nil {
		return common.SendError(c, err)
	}
	if !switched {
		logger.FromContext(ctx, h.log).Info("Organization switch refused", zap.String("organization_id", id.String()))
		return common.SendError(c, common.Forbidden("OrganizationHandlers.Switch", "not a member of this organization"))
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMembers godoc
// @Summary  Members of the active organization
// @Tags     organizations
// @Produce  json
// @Success  200  {array}   models.Membership
// @Failure  403  {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /organizations/members [get]
func (h *OrganizationHandlers) ListMembers(c echo.Context) error {
	members, err := h.orgs.ListMembers(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// AddMember godoc
// @Summary  Add a user to the active organization
// @Tags     organizations
// @Accept   json
// @Produce  json
// @Param    body  body      services.AddMemberRequest  true  "member"
// @Success  201   {object}  models.Membership
// @Failure  400   {object}  common.ErrorResponse
// @Failure  403   {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /organizations/members [post]
func (h *OrganizationHandlers) AddMember(c echo.Context) error {
	var req services.AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request body")
	}
	m, err := h.orgs.AddMember(c.Request().Context(), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// RemoveMember godoc
// @Summary  Deactivate a member of the active organization
// @Tags     organizations
// @Param    userId  path  string  true  "user id"
// @Success  204
// @Failure  404  {object}  common.ErrorResponse
// @Failure  409  {object}  common.ErrorResponse
// @Security BearerAuth
// @Router   /organizations/members/{userId} [delete]
func (h *OrganizationHandlers) RemoveMember(c echo.Context) error {
	userID, err := common.ValidateUUID(c.Param("userId"), "userId")
	if err != nil {
		return common.SendValidationError(c, "userId", err.Error())
	}
	removed, err := h.orgs.RemoveMember(c.Request().Context(), userID)
	if err != nil {
		return common.SendError(c, err)
	}
	if !removed {
		return common.SendNotFoundError(c, "Member")
	}
	return c.NoContent(http.StatusNoContent)
}
