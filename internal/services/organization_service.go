package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/logger"
)

type AddMemberRequest struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   models.Role `json:"role"`
}

type OrganizationService interface {
	// Create makes the caller Owner of a new organization. It becomes the
	// caller's active organization when they have none.
	Create(ctx context.Context, name string) (*models.Organization, error)
	ListMine(ctx context.Context) ([]*models.OrganizationSummary, error)
	Switch(ctx context.Context, orgID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context) ([]*models.Membership, error)
	AddMember(ctx context.Context, req *AddMemberRequest) (*models.Membership, error)
	RemoveMember(ctx context.Context, userID uuid.UUID) (bool, error)
}

type organizationService struct {
	orgs     repositories.OrganizationRepository
	members  repositories.MembershipRepository
	users    repositories.UserRepository
	contexts *UserContextFactory
	authz    AuthorizationService
	log      *zap.Logger
}

func NewOrganizationService(
	orgs repositories.OrganizationRepository,
	members repositories.MembershipRepository,
	users repositories.UserRepository,
	contexts *UserContextFactory,
	authz AuthorizationService,
	log *zap.Logger,
) OrganizationService {
	return &organizationService{
		orgs:     orgs,
		members:  members,
		users:    users,
		contexts: contexts,
		authz:    authz,
		log:      log,
	}
}

func (s *organizationService) Create(ctx context.Context, name string) (*models.Organization, error) {
	const op = "OrganizationService.Create"
	uc := s.contexts.For(ctx)
	userID, err := uc.RequireUserID()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := invalid(op, common.ValidateRequiredString(name, "name")); err != nil {
		return nil, err
	}

	active, err := uc.ActiveOrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	org := &models.Organization{Name: name, OwnerID: userID}
	if _, err := s.orgs.CreateWithOwner(ctx, org); err != nil {
		logger.FromContext(ctx, s.log).Error("Failed to create organization", zap.Error(err))
		return nil, common.Internal(op, err)
	}

	if active == nil {
		if err := s.users.SetActiveOrganization(ctx, userID, &org.ID); err != nil {
			return nil, err
		}
		if err := uc.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	logger.FromContext(ctx, s.log).Info("Organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("owner_id", userID.String()))
	return org, nil
}

func (s *organizationService) ListMine(ctx context.Context) ([]*models.OrganizationSummary, error) {
	uc := s.contexts.For(ctx)
	userID, err := uc.RequireUserID()
	if err != nil {
		return nil, err
	}
	active, err := uc.ActiveOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	orgs, err := s.members.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		o.IsActive = active != nil && o.ID == *active
	}
	if orgs == nil {
		orgs = []*models.OrganizationSummary{}
	}
	return orgs, nil
}

func (s *organizationService) Switch(ctx context.Context, orgID uuid.UUID) (bool, error) {
	return s.contexts.For(ctx).SwitchOrganization(ctx, orgID)
}

func (s *organizationService) ListMembers(ctx context.Context) ([]*models.Membership, error) {
	const op = "OrganizationService.ListMembers"
	allowed, err := s.authz.Evaluate(ctx, PolicyOrgMember)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, common.Forbidden(op, "organization membership required")
	}
	orgID, err := s.contexts.For(ctx).RequireActiveOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	return s.members.ListMembers(ctx, orgID)
}

func (s *organizationService) AddMember(ctx context.Context, req *AddMemberRequest) (*models.Membership, error) {
	const op = "OrganizationService.AddMember"
	uc, orgID, err := s.manage(ctx, op)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() || req.Role == models.RoleOwner {
		return nil, common.Invalid(op, "role must be one of Administrator, PropertyManager, MaintenanceTech, User")
	}
	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if common.IsNotFound(err) {
			return nil, common.Invalid(op, "user does not exist")
		}
		return nil, err
	}

	actor, _ := uc.UserID()
	m := &models.Membership{OrganizationID: orgID, UserID: req.UserID, Role: req.Role}
	m.CreatedBy = actor
	if err := s.members.Add(ctx, m); err != nil {
		return nil, common.Internal(op, err)
	}
	return m, nil
}

func (s *organizationService) RemoveMember(ctx context.Context, userID uuid.UUID) (bool, error) {
	const op = "OrganizationService.RemoveMember"
	uc, orgID, err := s.manage(ctx, op)
	if err != nil {
		return false, err
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return false, err
	}
	if org.OwnerID == userID {
		return false, common.Conflict(op, "the owner cannot be removed")
	}
	actor, _ := uc.UserID()
	return s.members.Deactivate(ctx, orgID, userID, actor)
}

// manage checks the members.manage permission in the active organization.
func (s *organizationService) manage(ctx context.Context, op string) (UserContext, uuid.UUID, error) {
	uc := s.contexts.For(ctx)
	orgID, err := uc.RequireActiveOrganizationID(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	allowed, err := s.authz.HasPermission(ctx, PermMembersManage)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !allowed {
		return nil, uuid.Nil, common.Forbidden(op, "not allowed to manage members")
	}
	return uc, orgID, nil
}
