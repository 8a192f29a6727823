package repositories

import (
	"context"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
	"propertyhub/testhelpers"
)

type RepositoriesTestSuite struct {
	suite.Suite
	store   *database.Store
	ctx     context.Context
	owner   *models.User
	orgA    *models.Organization
	orgB    *models.Organization
	members MembershipRepository
	users   UserRepository
}

func (suite *RepositoriesTestSuite) SetupTest() {
	suite.store = database.NewTestStore(suite.T())
	suite.ctx = context.Background()
	suite.owner = testhelpers.SetupTestUser(suite.T(), suite.store, "owner@example.com")
	suite.orgA = testhelpers.SetupTestOrganization(suite.T(), suite.store, suite.owner.ID, "Alpha Rentals")
	suite.orgB = testhelpers.SetupTestOrganization(suite.T(), suite.store, suite.owner.ID, "Beta Homes")
	suite.members = NewMembershipRepo(suite.store)
	suite.users = NewUserRepo(suite.store)
}

func TestRepositoriesTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoriesTestSuite))
}

func (suite *RepositoriesTestSuite) newProperty(orgID uuid.UUID, name string) *models.Property {
	p := &models.Property{Name: name, Address: "1 Main St", PropertyType: "residential", Units: 4}
	p.ID = uuid.New()
	p.OrganizationID = orgID
	p.MarkCreated(suite.owner.ID, time.Now().UTC())
	return p
}

func (suite *RepositoriesTestSuite) TestEntityStore_InsertGetReplaceRemove() {
	properties := NewEntityStore[models.Property](suite.store)
	assert.True(suite.T(), properties.Scoped())
	assert.Equal(suite.T(), "properties", properties.Table())

	p := suite.newProperty(suite.orgA.ID, "Maple Court")
	require.NoError(suite.T(), properties.Insert(suite.ctx, p))

	got, err := properties.Get(suite.ctx, p.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Maple Court", got.Name)
	assert.Equal(suite.T(), suite.orgA.ID, got.OrganizationID)
	assert.Equal(suite.T(), models.StateActive, got.State)
	assert.Nil(suite.T(), got.ModifiedBy)

	got.Name = "Maple Court East"
	got.MarkModified(suite.owner.ID, time.Now().UTC())
	require.NoError(suite.T(), properties.Replace(suite.ctx, got))

	again, err := properties.Get(suite.ctx, p.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Maple Court East", again.Name)
	require.NotNil(suite.T(), again.ModifiedBy)
	assert.Equal(suite.T(), suite.owner.ID, *again.ModifiedBy)

	removed, err := properties.Remove(suite.ctx, p.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), removed)

	_, err = properties.Get(suite.ctx, p.ID)
	assert.True(suite.T(), common.IsNotFound(err))

	removed, err = properties.Remove(suite.ctx, p.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), removed)
}

func (suite *RepositoriesTestSuite) TestEntityStore_FindWithPredicates() {
	properties := NewEntityStore[models.Property](suite.store)
	a1 := suite.newProperty(suite.orgA.ID, "A1")
	a2 := suite.newProperty(suite.orgA.ID, "A2")
	a2.State = models.StateDeleted
	b1 := suite.newProperty(suite.orgB.ID, "B1")
	for _, p := range []*models.Property{a1, a2, b1} {
		require.NoError(suite.T(), properties.Insert(suite.ctx, p))
	}

	list, err := properties.Find(suite.ctx, ActivePredicate, OrganizationPredicate(suite.orgA.ID))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), a1.ID, list[0].ID)

	all, err := properties.Find(suite.ctx, sq.Eq{"units": 4})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 3)
}

func (suite *RepositoriesTestSuite) TestMembership_OnlyActiveRowsCount() {
	member := testhelpers.SetupTestUser(suite.T(), suite.store, "admin@example.com")
	testhelpers.AddTestMember(suite.T(), suite.store, suite.orgA.ID, member.ID, models.RoleAdministrator)

	role, ok, err := suite.members.GetRole(suite.ctx, member.ID, suite.orgA.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), models.RoleAdministrator, role)

	_, ok, err = suite.members.GetRole(suite.ctx, member.ID, suite.orgB.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)

	deactivated, err := suite.members.Deactivate(suite.ctx, suite.orgA.ID, member.ID, suite.owner.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), deactivated)

	_, ok, err = suite.members.GetRole(suite.ctx, member.ID, suite.orgA.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)

	// adding again reactivates with the new role
	require.NoError(suite.T(), suite.members.Add(suite.ctx, &models.Membership{
		OrganizationID: suite.orgA.ID,
		UserID:         member.ID,
		Role:           models.RolePropertyManager,
		Base:           models.Base{CreatedBy: suite.owner.ID},
	}))
	role, ok, err = suite.members.GetRole(suite.ctx, member.ID, suite.orgA.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), models.RolePropertyManager, role)
}

func (suite *RepositoriesTestSuite) TestMembership_IsOwnerOfAnyAndList() {
	isOwner, err := suite.members.IsOwnerOfAny(suite.ctx, suite.owner.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), isOwner)

	other := testhelpers.SetupTestUser(suite.T(), suite.store, "tech@example.com")
	testhelpers.AddTestMember(suite.T(), suite.store, suite.orgB.ID, other.ID, models.RoleMaintenanceTech)
	isOwner, err = suite.members.IsOwnerOfAny(suite.ctx, other.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), isOwner)

	orgs, err := suite.members.ListForUser(suite.ctx, suite.owner.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orgs, 2)
	assert.Equal(suite.T(), "Alpha Rentals", orgs[0].Name)
	assert.Equal(suite.T(), models.RoleOwner, orgs[0].Role)

	members, err := suite.members.ListMembers(suite.ctx, suite.orgB.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), members, 2)
}

func (suite *RepositoriesTestSuite) TestUsers_UpsertKeepsActiveOrganization() {
	id := uuid.New()
	require.NoError(suite.T(), suite.users.Upsert(suite.ctx, &models.User{ID: id, Email: "new@example.com", DisplayName: "New"}))
	require.NoError(suite.T(), suite.users.SetActiveOrganization(suite.ctx, id, &suite.orgA.ID))

	require.NoError(suite.T(), suite.users.Upsert(suite.ctx, &models.User{ID: id, Email: "renamed@example.com", DisplayName: "Renamed"}))

	user, err := suite.users.FindByID(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "renamed@example.com", user.Email)
	require.NotNil(suite.T(), user.ActiveOrganizationID)
	assert.Equal(suite.T(), suite.orgA.ID, *user.ActiveOrganizationID)

	_, err = suite.users.FindByID(suite.ctx, uuid.New())
	assert.True(suite.T(), common.IsNotFound(err))
	assert.True(suite.T(), common.IsNotFound(suite.users.SetActiveOrganization(suite.ctx, uuid.New(), nil)))
}

func (suite *RepositoriesTestSuite) TestOrganizations_CreateWithOwner() {
	orgs := NewOrganizationRepo(suite.store)
	org := &models.Organization{Name: "Gamma", OwnerID: suite.owner.ID}

	member, err := orgs.CreateWithOwner(suite.ctx, org)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RoleOwner, member.Role)

	got, err := orgs.GetByID(suite.ctx, org.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Gamma", got.Name)

	role, ok, err := suite.members.GetRole(suite.ctx, suite.owner.ID, org.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), models.RoleOwner, role)
}

func (suite *RepositoriesTestSuite) TestSchemaVersions() {
	versions := NewSchemaVersionRepo(suite.store)

	latest, err := versions.Latest(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), latest)

	_, err = versions.Record(suite.ctx, "3", "first")
	require.NoError(suite.T(), err)
	time.Sleep(2 * time.Millisecond)
	_, err = versions.Record(suite.ctx, "4", "second")
	require.NoError(suite.T(), err)

	latest, err = versions.Latest(suite.ctx)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), latest)
	assert.Equal(suite.T(), "4", latest.Version)
}

func (suite *RepositoriesTestSuite) TestInvoiceSweep_MarkOverdue() {
	resident := &models.Resident{FirstName: "Ana", LastName: "Lopez"}
	resident.ID = uuid.New()
	resident.OrganizationID = suite.orgA.ID
	resident.MarkCreated(suite.owner.ID, time.Now().UTC())
	require.NoError(suite.T(), NewEntityStore[models.Resident](suite.store).Insert(suite.ctx, resident))

	property := suite.newProperty(suite.orgA.ID, "Elm")
	require.NoError(suite.T(), NewEntityStore[models.Property](suite.store).Insert(suite.ctx, property))

	now := time.Now().UTC()
	lease := &models.Lease{
		PropertyID:  property.ID,
		ResidentID:  resident.ID,
		StartDate:   now.AddDate(-1, 0, 0),
		EndDate:     now.AddDate(1, 0, 0),
		MonthlyRent: 1200,
		Status:      models.LeaseStatusActive,
	}
	lease.ID = uuid.New()
	lease.OrganizationID = suite.orgA.ID
	lease.MarkCreated(suite.owner.ID, now)
	require.NoError(suite.T(), NewEntityStore[models.Lease](suite.store).Insert(suite.ctx, lease))

	invoices := NewEntityStore[models.Invoice](suite.store)
	newInvoice := func(number string, due time.Time, status string) *models.Invoice {
		inv := &models.Invoice{LeaseID: lease.ID, Number: number, Amount: 1200, DueDate: due, Status: status}
		inv.ID = uuid.New()
		inv.OrganizationID = suite.orgA.ID
		inv.MarkCreated(suite.owner.ID, now)
		require.NoError(suite.T(), invoices.Insert(suite.ctx, inv))
		return inv
	}
	late := newInvoice("INV-1", now.Add(-48*time.Hour), models.InvoiceStatusUnpaid)
	newInvoice("INV-2", now.Add(48*time.Hour), models.InvoiceStatusUnpaid)
	newInvoice("INV-3", now.Add(-48*time.Hour), models.InvoiceStatusPaid)

	n, err := NewInvoiceSweepRepo(suite.store).MarkOverdue(suite.ctx, now)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)

	got, err := invoices.Get(suite.ctx, late.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceStatusOverdue, got.Status)
}
