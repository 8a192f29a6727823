package services

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/logger"
)

const (
	// PolicyOrgMember allows any active member of the active organization.
	PolicyOrgMember = "OrgMember"
	// PolicyOrgRolePrefix starts a role list policy, e.g. "OrgRole:Owner,Administrator".
	PolicyOrgRolePrefix = "OrgRole:"
)

// Permissions understood by HasPermission.
const (
	PermOrganizationsDelete = "organizations.delete"
	PermOrganizationsUpdate = "organizations.update"
	PermMembersManage       = "members.manage"
	PermBackupsManage       = "backups.manage"
	PermPropertiesManage    = "properties.manage"
	PermLeasesManage        = "leases.manage"
	PermBillingManage       = "billing.manage"
	PermMaintenanceManage   = "maintenance.manage"
)

var permissionRoles = map[string][]models.Role{
	PermOrganizationsDelete: {models.RoleOwner},
	PermOrganizationsUpdate: {models.RoleOwner, models.RoleAdministrator},
	PermMembersManage:       {models.RoleOwner, models.RoleAdministrator},
	PermBackupsManage:       {models.RoleOwner},
	PermPropertiesManage:    {models.RoleOwner, models.RoleAdministrator, models.RolePropertyManager},
	PermLeasesManage:        {models.RoleOwner, models.RoleAdministrator, models.RolePropertyManager},
	PermBillingManage:       {models.RoleOwner, models.RoleAdministrator, models.RolePropertyManager},
	PermMaintenanceManage: {
		models.RoleOwner, models.RoleAdministrator, models.RolePropertyManager, models.RoleMaintenanceTech,
	},
}

// Policy is a parsed policy name.
type Policy struct {
	Name string
	// Organization policies need a role in the active organization.
	Organization bool
	// Roles restricts the allowed roles. Empty means any member.
	Roles []models.Role
}

// ParsePolicy turns a policy name into a Policy. Unknown names resolve to the
// default policy, which only requires an authenticated user.
func ParsePolicy(name string) Policy {
	switch {
	case name == PolicyOrgMember:
		return Policy{Name: name, Organization: true}
	case strings.HasPrefix(name, PolicyOrgRolePrefix):
		var roles []models.Role
		for _, r := range strings.Split(strings.TrimPrefix(name, PolicyOrgRolePrefix), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, models.Role(r))
			}
		}
		return Policy{Name: name, Organization: true, Roles: roles}
	default:
		return Policy{Name: name}
	}
}

// OrgRolePolicy builds the policy name requiring one of roles.
func OrgRolePolicy(roles ...models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return PolicyOrgRolePrefix + strings.Join(names, ",")
}

type AuthorizationService interface {
	// Evaluate reports whether the caller satisfies the named policy. Missing
	// membership is a denial, never an error.
	Evaluate(ctx context.Context, policy string) (bool, error)
	HasPermission(ctx context.Context, permission string) (bool, error)
	IsOwnerOfAnyOrganization(ctx context.Context) (bool, error)
}

type authorizationService struct {
	contexts *UserContextFactory
	members  repositories.MembershipRepository
	log      *zap.Logger
}

func NewAuthorizationService(contexts *UserContextFactory, members repositories.MembershipRepository, log *zap.Logger) AuthorizationService {
	return &authorizationService{contexts: contexts, members: members, log: log}
}

func (s *authorizationService) Evaluate(ctx context.Context, name string) (bool, error) {
	policy := ParsePolicy(name)
	uc := s.contexts.For(ctx)

	if _, ok := uc.UserID(); !ok {
		return false, nil
	}
	if !policy.Organization {
		return true, nil
	}

	role, ok, err := uc.Role(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.FromContext(ctx, s.log).Debug("Policy denied, no role in an active organization",
			zap.String("policy", name))
		return false, nil
	}
	if len(policy.Roles) == 0 {
		return true, nil
	}
	return slices.Contains(policy.Roles, role), nil
}

func (s *authorizationService) HasPermission(ctx context.Context, permission string) (bool, error) {
	roles, known := permissionRoles[permission]
	if !known {
		return false, nil
	}
	return s.Evaluate(ctx, OrgRolePolicy(roles...))
}

func (s *authorizationService) IsOwnerOfAnyOrganization(ctx context.Context) (bool, error) {
	userID, ok := s.contexts.For(ctx).UserID()
	if !ok {
		return false, nil
	}
	return s.members.IsOwnerOfAny(ctx, userID)
}
