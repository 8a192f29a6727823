package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"propertyhub/internal/caching"
	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/logger"
)

// UserContext resolves who is calling and on behalf of which organization.
// One instance serves one logical session.
type UserContext interface {
	UserID() (uuid.UUID, bool)
	// ActiveOrganizationID returns nil when the caller is anonymous or has no
	// usable active organization. Nil means "no scoped data", not a failure.
	ActiveOrganizationID(ctx context.Context) (*uuid.UUID, error)
	// Role is the caller's role in the active organization.
	Role(ctx context.Context) (models.Role, bool, error)
	Refresh(ctx context.Context) error
	// SwitchOrganization returns false without an error when the caller is
	// not an active member of orgID.
	SwitchOrganization(ctx context.Context, orgID uuid.UUID) (bool, error)
	RequireUserID() (uuid.UUID, error)
	RequireActiveOrganizationID(ctx context.Context) (uuid.UUID, error)
}

type userContextKey struct{}

// WithUserContext attaches a resolver to ctx so every service in the request
// shares its cache.
func WithUserContext(ctx context.Context, uc UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, uc)
}

// UserContextFactory builds resolvers. It is shared by the whole process.
type UserContextFactory struct {
	users   repositories.UserRepository
	members repositories.MembershipRepository
	cache   caching.CacheService
	log     *zap.Logger
}

// NewUserContextFactory wires the resolver dependencies. cache may be nil.
func NewUserContextFactory(users repositories.UserRepository, members repositories.MembershipRepository, cache caching.CacheService, log *zap.Logger) *UserContextFactory {
	return &UserContextFactory{users: users, members: members, cache: cache, log: log}
}

// New returns a resolver for p. A nil principal gives an anonymous resolver.
func (f *UserContextFactory) New(p *common.Principal) *UserContextService {
	return &UserContextService{factory: f, principal: p}
}

// For returns the resolver attached to ctx, or a fresh one for the
// principal on ctx.
func (f *UserContextFactory) For(ctx context.Context) UserContext {
	if uc, ok := ctx.Value(userContextKey{}).(UserContext); ok && uc != nil {
		return uc
	}
	p, _ := common.GetPrincipalFromContext(ctx)
	return f.New(p)
}

// UserContextService is the default resolver. Fields are derived lazily and
// kept until Refresh.
type UserContextService struct {
	factory   *UserContextFactory
	principal *common.Principal

	mu     sync.Mutex
	loaded bool
	snap   caching.UserSnapshot
}

func (s *UserContextService) UserID() (uuid.UUID, bool) {
	if s.principal == nil || s.principal.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return s.principal.UserID, true
}

func (s *UserContextService) RequireUserID() (uuid.UUID, error) {
	id, ok := s.UserID()
	if !ok {
		return uuid.Nil, common.Unauthorized("UserContext.RequireUserID", "authentication required")
	}
	return id, nil
}

func (s *UserContextService) ActiveOrganizationID(ctx context.Context) (*uuid.UUID, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ActiveOrganizationID, nil
}

func (s *UserContextService) RequireActiveOrganizationID(ctx context.Context) (uuid.UUID, error) {
	if _, err := s.RequireUserID(); err != nil {
		return uuid.Nil, err
	}
	orgID, err := s.ActiveOrganizationID(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if orgID == nil {
		return uuid.Nil, common.Unauthorized("UserContext.RequireActiveOrganizationID", "no active organization")
	}
	return *orgID, nil
}

func (s *UserContextService) Role(ctx context.Context) (models.Role, bool, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return "", false, err
	}
	if snap.ActiveOrganizationID == nil || snap.Role == "" {
		return "", false, nil
	}
	return snap.Role, true, nil
}

func (s *UserContextService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loaded = false
	s.snap = caching.UserSnapshot{}
	s.mu.Unlock()

	if key := s.sessionKey(); key != "" && s.factory.cache != nil {
		if err := s.factory.cache.DeleteUserContext(ctx, key); err != nil {
			s.logger(ctx).Warn("Failed to drop cached user context", zap.Error(err))
		}
	}
	return nil
}

func (s *UserContextService) SwitchOrganization(ctx context.Context, orgID uuid.UUID) (bool, error) {
	userID, err := s.RequireUserID()
	if err != nil {
		return false, err
	}
	member, err := s.factory.members.IsActiveMember(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	if !member {
		s.logger(ctx).Info("Organization switch refused",
			zap.String("user_id", userID.String()),
			zap.String("organization_id", orgID.String()))
		return false, nil
	}
	if err := s.factory.users.SetActiveOrganization(ctx, userID, &orgID); err != nil {
		return false, err
	}
	return true, s.Refresh(ctx)
}

func (s *UserContextService) sessionKey() string {
	if s.principal == nil {
		return ""
	}
	return s.principal.SessionID
}

func (s *UserContextService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.factory.log)
}

func (s *UserContextService) load(ctx context.Context) (caching.UserSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.snap, nil
	}

	userID, ok := s.UserID()
	if !ok {
		s.loaded = true
		return s.snap, nil
	}

	key := s.sessionKey()
	cache := s.factory.cache
	if key != "" && cache != nil {
		cached, err := cache.GetUserContext(ctx, key)
		if err != nil {
			s.logger(ctx).Warn("User context cache unavailable", zap.Error(err))
		} else if cached != nil && cached.UserID == userID {
			s.snap, s.loaded = *cached, true
			return s.snap, nil
		}
	}

	snap := caching.UserSnapshot{UserID: userID}
	user, err := s.factory.users.FindByID(ctx, userID)
	switch {
	case common.IsNotFound(err):
		// not provisioned yet, so there is no active organization
	case err != nil:
		return caching.UserSnapshot{}, err
	default:
		snap.Email = user.Email
		snap.DisplayName = user.DisplayName
		if user.ActiveOrganizationID != nil {
			role, member, err := s.factory.members.GetRole(ctx, userID, *user.ActiveOrganizationID)
			if err != nil {
				return caching.UserSnapshot{}, err
			}
			// a stale active organization counts as none
			if member {
				orgID := *user.ActiveOrganizationID
				snap.ActiveOrganizationID = &orgID
				snap.Role = role
			}
		}
	}

	s.snap, s.loaded = snap, true
	if key != "" && cache != nil {
		if err := cache.SetUserContext(ctx, key, &snap); err != nil {
			s.logger(ctx).Warn("Failed to cache user context", zap.Error(err))
		}
	}
	return s.snap, nil
}
