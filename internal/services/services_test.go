package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"propertyhub/internal/caching"
	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/database"
	"propertyhub/testhelpers"
)

var testEpoch = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetUserContext(ctx context.Context, sessionID string) (*caching.UserSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*caching.UserSnapshot), args.Error(1)
}

func (m *MockCacheService) SetUserContext(ctx context.Context, sessionID string, snap *caching.UserSnapshot) error {
	args := m.Called(ctx, sessionID, snap)
	return args.Error(0)
}

func (m *MockCacheService) DeleteUserContext(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fixture is a migrated store with two organizations, A and B, each with an
// owner whose active organization is their own.
type fixture struct {
	store    *database.Store
	clock    *clockwork.FakeClock
	log      *zap.Logger
	users    repositories.UserRepository
	members  repositories.MembershipRepository
	orgs     repositories.OrganizationRepository
	contexts *UserContextFactory
	authz    AuthorizationService

	ownerA, ownerB *models.User
	orgA, orgB     *models.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := database.NewTestStore(t)
	log := zaptest.NewLogger(t)

	f := &fixture{
		store:   store,
		clock:   clockwork.NewFakeClockAt(testEpoch),
		log:     log,
		users:   repositories.NewUserRepo(store),
		members: repositories.NewMembershipRepo(store),
		orgs:    repositories.NewOrganizationRepo(store),
	}
	f.contexts = NewUserContextFactory(f.users, f.members, nil, log)
	f.authz = NewAuthorizationService(f.contexts, f.members, log)

	f.ownerA = testhelpers.SetupTestUser(t, store, "a@example.com")
	f.ownerB = testhelpers.SetupTestUser(t, store, "b@example.com")
	f.orgA = testhelpers.SetupTestOrganization(t, store, f.ownerA.ID, "Org A")
	f.orgB = testhelpers.SetupTestOrganization(t, store, f.ownerB.ID, "Org B")
	testhelpers.SetActiveOrganization(t, store, f.ownerA.ID, f.orgA.ID)
	testhelpers.SetActiveOrganization(t, store, f.ownerB.ID, f.orgB.ID)
	return f
}

func (f *fixture) options(softDelete bool) EntityOptions {
	return EntityOptions{SoftDelete: softDelete, Clock: f.clock}
}

// as returns a context acting as userID with a request scoped resolver.
func (f *fixture) as(userID uuid.UUID) context.Context {
	ctx := testhelpers.AuthenticatedContext(userID)
	p, _ := common.GetPrincipalFromContext(ctx)
	return WithUserContext(ctx, f.contexts.New(p))
}

type serviceSuite struct {
	suite.Suite
	f *fixture
}

func (s *serviceSuite) SetupTest() {
	s.f = newFixture(s.T())
}

func (s *serviceSuite) newProperty(ctx context.Context, name string) *models.Property {
	svc := NewPropertyService(s.f.store, s.f.contexts, s.f.options(true), s.f.log)
	p, err := svc.Create(ctx, &models.Property{Name: name, Address: "1 Main St", Units: 4})
	s.Require().NoError(err)
	return p
}
