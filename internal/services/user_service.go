package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
)

// Profile is the caller as seen by the API.
type Profile struct {
	User                 *models.User                  `json:"user"`
	ActiveOrganizationID *uuid.UUID                    `json:"active_organization_id,omitempty"`
	Role                 models.Role                   `json:"role,omitempty"`
	Organizations        []*models.OrganizationSummary `json:"organizations"`
}

type UserService interface {
	// Provision creates or refreshes the user record from token claims.
	Provision(ctx context.Context, p *common.Principal) error
	Me(ctx context.Context) (*Profile, error)
}

type userService struct {
	users    repositories.UserRepository
	orgs     OrganizationService
	contexts *UserContextFactory
	log      *zap.Logger
}

func NewUserService(users repositories.UserRepository, orgs OrganizationService, contexts *UserContextFactory, log *zap.Logger) UserService {
	return &userService{users: users, orgs: orgs, contexts: contexts, log: log}
}

func (s *userService) Provision(ctx context.Context, p *common.Principal) error {
	if p == nil || p.UserID == uuid.Nil {
		return common.Unauthorized("UserService.Provision", "authentication required")
	}
	display := p.DisplayName
	if display == "" {
		display = p.Email
	}

	existing, err := s.users.FindByID(ctx, p.UserID)
	if err != nil && !common.IsNotFound(err) {
		return err
	}
	if existing != nil && existing.Email == p.Email && existing.DisplayName == display {
		return nil
	}
	if existing == nil {
		s.log.Info("Provisioning user", zap.String("user_id", p.UserID.String()))
	}
	return s.users.Upsert(ctx, &models.User{
		ID:          p.UserID,
		Email:       p.Email,
		DisplayName: display,
	})
}

func (s *userService) Me(ctx context.Context) (*Profile, error) {
	uc := s.contexts.For(ctx)
	userID, err := uc.RequireUserID()
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := uc.ActiveOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	role, _, err := uc.Role(ctx)
	if err != nil {
		return nil, err
	}
	orgs, err := s.orgs.ListMine(ctx)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, ActiveOrganizationID: active, Role: role, Organizations: orgs}, nil
}
