package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"propertyhub/internal/caching"
	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/testhelpers"
)

type UserContextServiceTestSuite struct {
	serviceSuite
}

func TestUserContextServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserContextServiceTestSuite))
}

func (s *UserContextServiceTestSuite) TestAnonymous() {
	uc := s.f.contexts.New(nil)
	ctx := context.Background()

	_, ok := uc.UserID()
	s.False(ok)

	orgID, err := uc.ActiveOrganizationID(ctx)
	s.NoError(err)
	s.Nil(orgID)

	_, err = uc.RequireUserID()
	s.True(common.IsUnauthorized(err))

	_, err = uc.RequireActiveOrganizationID(ctx)
	s.True(common.IsUnauthorized(err))
}

func (s *UserContextServiceTestSuite) TestResolvesActiveOrganizationAndRole() {
	ctx := s.f.as(s.f.ownerA.ID)
	uc := s.f.contexts.For(ctx)

	orgID, err := uc.ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(orgID)
	s.Equal(s.f.orgA.ID, *orgID)

	role, ok, err := uc.Role(ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(models.RoleOwner, role)
}

func (s *UserContextServiceTestSuite) TestNoActiveOrganizationIsNotAnError() {
	newcomer := testhelpers.SetupTestUser(s.T(), s.f.store, "new@example.com")
	ctx := s.f.as(newcomer.ID)
	uc := s.f.contexts.For(ctx)

	orgID, err := uc.ActiveOrganizationID(ctx)
	s.NoError(err)
	s.Nil(orgID)

	_, ok, err := uc.Role(ctx)
	s.NoError(err)
	s.False(ok)

	_, err = uc.RequireActiveOrganizationID(ctx)
	s.True(common.IsUnauthorized(err))
}

func (s *UserContextServiceTestSuite) TestUnprovisionedUserHasNoOrganization() {
	ctx := s.f.as(uuid.New())
	orgID, err := s.f.contexts.For(ctx).ActiveOrganizationID(ctx)
	s.NoError(err)
	s.Nil(orgID)
}

func (s *UserContextServiceTestSuite) TestStaleActiveOrganizationCountsAsNone() {
	member := testhelpers.SetupTestUser(s.T(), s.f.store, "m@example.com")
	testhelpers.AddTestMember(s.T(), s.f.store, s.f.orgA.ID, member.ID, models.RoleUser)
	testhelpers.SetActiveOrganization(s.T(), s.f.store, member.ID, s.f.orgA.ID)

	ok, err := s.f.members.Deactivate(context.Background(), s.f.orgA.ID, member.ID, s.f.ownerA.ID)
	s.Require().NoError(err)
	s.Require().True(ok)

	ctx := s.f.as(member.ID)
	orgID, err := s.f.contexts.For(ctx).ActiveOrganizationID(ctx)
	s.NoError(err)
	s.Nil(orgID)
}

func (s *UserContextServiceTestSuite) TestCachedUntilRefresh() {
	member := testhelpers.SetupTestUser(s.T(), s.f.store, "m@example.com")
	testhelpers.AddTestMember(s.T(), s.f.store, s.f.orgA.ID, member.ID, models.RoleUser)
	testhelpers.SetActiveOrganization(s.T(), s.f.store, member.ID, s.f.orgA.ID)

	ctx := s.f.as(member.ID)
	uc := s.f.contexts.For(ctx)
	role, _, err := uc.Role(ctx)
	s.Require().NoError(err)
	s.Equal(models.RoleUser, role)

	promoted := &models.Membership{OrganizationID: s.f.orgA.ID, UserID: member.ID, Role: models.RoleAdministrator}
	promoted.CreatedBy = s.f.ownerA.ID
	s.Require().NoError(s.f.members.Add(context.Background(), promoted))

	role, _, err = uc.Role(ctx)
	s.Require().NoError(err)
	s.Equal(models.RoleUser, role, "resolver should keep the cached role")

	s.Require().NoError(uc.Refresh(ctx))
	role, _, err = uc.Role(ctx)
	s.Require().NoError(err)
	s.Equal(models.RoleAdministrator, role)
}

func (s *UserContextServiceTestSuite) TestSwitchOrganization() {
	ctx := s.f.as(s.f.ownerB.ID)
	uc := s.f.contexts.For(ctx)

	// not a member of A
	ok, err := uc.SwitchOrganization(ctx, s.f.orgA.ID)
	s.NoError(err)
	s.False(ok)

	orgID, err := uc.ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Equal(s.f.orgB.ID, *orgID)

	testhelpers.AddTestMember(s.T(), s.f.store, s.f.orgA.ID, s.f.ownerB.ID, models.RolePropertyManager)
	ok, err = uc.SwitchOrganization(ctx, s.f.orgA.ID)
	s.Require().NoError(err)
	s.True(ok)

	orgID, err = uc.ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Equal(s.f.orgA.ID, *orgID)

	// durable on the user record
	user, err := s.f.users.FindByID(context.Background(), s.f.ownerB.ID)
	s.Require().NoError(err)
	s.Require().NotNil(user.ActiveOrganizationID)
	s.Equal(s.f.orgA.ID, *user.ActiveOrganizationID)

	role, _, err := uc.Role(ctx)
	s.Require().NoError(err)
	s.Equal(models.RolePropertyManager, role)
}

func (s *UserContextServiceTestSuite) TestSwitchOrganizationUnauthenticated() {
	ok, err := s.f.contexts.New(nil).SwitchOrganization(context.Background(), s.f.orgA.ID)
	s.False(ok)
	s.True(common.IsUnauthorized(err))
}

func (s *UserContextServiceTestSuite) TestSessionCacheHit() {
	cache := &MockCacheService{}
	cache.Test(s.T())
	defer cache.AssertExpectations(s.T())

	factory := NewUserContextFactory(s.f.users, s.f.members, cache, s.f.log)
	ctx := testhelpers.AuthenticatedContext(s.f.ownerA.ID)
	p, _ := common.GetPrincipalFromContext(ctx)

	cachedOrg := uuid.New()
	cache.On("GetUserContext", ctx, p.SessionID).Return(&caching.UserSnapshot{
		UserID:               s.f.ownerA.ID,
		ActiveOrganizationID: &cachedOrg,
		Role:                 models.RoleAdministrator,
	}, nil).Once()

	uc := factory.New(p)
	orgID, err := uc.ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Equal(cachedOrg, *orgID)

	// the second read is served from memory
	role, _, err := uc.Role(ctx)
	s.Require().NoError(err)
	s.Equal(models.RoleAdministrator, role)
}

func (s *UserContextServiceTestSuite) TestSessionCacheMissPopulates() {
	cache := &MockCacheService{}
	cache.Test(s.T())
	defer cache.AssertExpectations(s.T())

	factory := NewUserContextFactory(s.f.users, s.f.members, cache, s.f.log)
	ctx := testhelpers.AuthenticatedContext(s.f.ownerA.ID)
	p, _ := common.GetPrincipalFromContext(ctx)

	cache.On("GetUserContext", ctx, p.SessionID).Return(nil, nil).Once()
	cache.On("SetUserContext", ctx, p.SessionID, mock.MatchedBy(func(snap *caching.UserSnapshot) bool {
		return snap.UserID == s.f.ownerA.ID &&
			snap.ActiveOrganizationID != nil && *snap.ActiveOrganizationID == s.f.orgA.ID &&
			snap.Role == models.RoleOwner
	})).Return(nil).Once()
	cache.On("DeleteUserContext", ctx, p.SessionID).Return(nil).Once()

	uc := factory.New(p)
	orgID, err := uc.ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Equal(s.f.orgA.ID, *orgID)
	s.Require().NoError(uc.Refresh(ctx))
}

func (s *UserContextServiceTestSuite) TestSessionCacheErrorsFallBackToStore() {
	cache := &MockCacheService{}
	cache.Test(s.T())

	factory := NewUserContextFactory(s.f.users, s.f.members, cache, s.f.log)
	ctx := testhelpers.AuthenticatedContext(s.f.ownerA.ID)
	p, _ := common.GetPrincipalFromContext(ctx)

	cache.On("GetUserContext", ctx, p.SessionID).Return(nil, errors.New("connection refused"))
	cache.On("SetUserContext", ctx, p.SessionID, mock.Anything).Return(errors.New("connection refused"))

	orgID, err := factory.New(p).ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Equal(s.f.orgA.ID, *orgID)
}

func (s *UserContextServiceTestSuite) TestCachedSnapshotOfAnotherUserIsIgnored() {
	cache := &MockCacheService{}
	cache.Test(s.T())

	factory := NewUserContextFactory(s.f.users, s.f.members, cache, s.f.log)
	ctx := testhelpers.AuthenticatedContext(s.f.ownerA.ID)
	p, _ := common.GetPrincipalFromContext(ctx)

	cache.On("GetUserContext", ctx, p.SessionID).Return(&caching.UserSnapshot{
		UserID:               s.f.ownerB.ID,
		ActiveOrganizationID: &s.f.orgB.ID,
		Role:                 models.RoleOwner,
	}, nil)
	cache.On("SetUserContext", ctx, p.SessionID, mock.Anything).Return(nil)

	orgID, err := factory.New(p).ActiveOrganizationID(ctx)
	s.Require().NoError(err)
	s.Equal(s.f.orgA.ID, *orgID)
}
