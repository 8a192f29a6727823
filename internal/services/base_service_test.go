package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/testhelpers"
)

type BaseServiceTestSuite struct {
	serviceSuite
	properties *PropertyService
	ctxA, ctxB context.Context
}

func TestBaseServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BaseServiceTestSuite))
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.properties = NewPropertyService(s.f.store, s.f.contexts, s.f.options(true), s.f.log)
	s.ctxA = s.f.as(s.f.ownerA.ID)
	s.ctxB = s.f.as(s.f.ownerB.ID)
}

func (s *BaseServiceTestSuite) stateOf(id uuid.UUID) (models.Lifecycle, bool) {
	db, err := s.f.store.Conn()
	s.Require().NoError(err)
	var states []models.Lifecycle
	s.Require().NoError(db.Select(&states, `SELECT lifecycle_state FROM properties WHERE id = ?`, id))
	if len(states) == 0 {
		return "", false
	}
	return states[0], true
}

func (s *BaseServiceTestSuite) TestCreateStampsCallerAndOrganization() {
	foreign := uuid.New()
	input := &models.Property{Name: "Elm Court", Address: "12 Elm St", Units: 6}
	input.OrganizationID = foreign
	input.CreatedBy = uuid.New()

	created, err := s.properties.Create(s.ctxA, input)
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, created.ID)
	s.Equal(s.f.orgA.ID, created.OrganizationID)
	s.Equal(s.f.ownerA.ID, created.CreatedBy)
	s.True(testEpoch.Equal(created.CreatedOn))
	s.Equal(models.StateActive, created.State)

	stored, err := s.properties.GetByID(s.ctxA, created.ID)
	s.Require().NoError(err)
	s.Equal(s.f.orgA.ID, stored.OrganizationID)
	s.Equal(s.f.ownerA.ID, stored.CreatedBy)
	s.True(testEpoch.Equal(stored.CreatedOn))
	s.Equal("residential", stored.PropertyType)
}

func (s *BaseServiceTestSuite) TestCreateKeepsSuppliedID() {
	id := uuid.New()
	input := &models.Property{Name: "Oak", Address: "3 Oak Ave"}
	input.ID = id
	created, err := s.properties.Create(s.ctxA, input)
	s.Require().NoError(err)
	s.Equal(id, created.ID)
}

func (s *BaseServiceTestSuite) TestTenantIsolation() {
	p := s.newProperty(s.ctxA, "Maple")

	_, err := s.properties.GetByID(s.ctxB, p.ID)
	s.True(common.IsNotFound(err))

	all, err := s.properties.GetAll(s.ctxB)
	s.Require().NoError(err)
	s.Empty(all)

	all, err = s.properties.GetAll(s.ctxA)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(p.ID, all[0].ID)
}

func (s *BaseServiceTestSuite) TestSwitchOrganizationRevealsProperty() {
	p := s.newProperty(s.ctxA, "Birch")

	_, err := s.properties.GetByID(s.ctxB, p.ID)
	s.Require().True(common.IsNotFound(err))

	testhelpers.AddTestMember(s.T(), s.f.store, s.f.orgA.ID, s.f.ownerB.ID, models.RoleUser)
	ok, err := s.f.contexts.For(s.ctxB).SwitchOrganization(s.ctxB, s.f.orgA.ID)
	s.Require().NoError(err)
	s.Require().True(ok)

	got, err := s.properties.GetByID(s.ctxB, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal("Birch", got.Name)
}

func (s *BaseServiceTestSuite) TestUpdateCannotHijackOrganization() {
	p := s.newProperty(s.ctxA, "Cedar")
	created := p.CreatedOn

	s.f.clock.Advance(time.Hour)
	p.Name = "Cedar Heights"
	p.OrganizationID = s.f.orgB.ID
	p.CreatedBy = s.f.ownerB.ID

	updated, err := s.properties.Update(s.ctxA, p)
	s.Require().NoError(err)
	s.Equal(s.f.orgA.ID, updated.OrganizationID)

	stored, err := s.properties.GetByID(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.Equal("Cedar Heights", stored.Name)
	s.Equal(s.f.orgA.ID, stored.OrganizationID)
	s.Equal(s.f.ownerA.ID, stored.CreatedBy)
	s.True(created.Equal(stored.CreatedOn))
	s.Require().NotNil(stored.ModifiedBy)
	s.Equal(s.f.ownerA.ID, *stored.ModifiedBy)
	s.Require().NotNil(stored.ModifiedOn)
	s.True(testEpoch.Add(time.Hour).Equal(*stored.ModifiedOn))

	_, err = s.properties.GetByID(s.ctxB, p.ID)
	s.True(common.IsNotFound(err))
}

func (s *BaseServiceTestSuite) TestUpdateIsAFullReplace() {
	p := s.newProperty(s.ctxA, "Spruce")

	replacement := &models.Property{Name: "Spruce", Address: "9 Spruce Rd"}
	replacement.ID = p.ID
	_, err := s.properties.Update(s.ctxA, replacement)
	s.Require().NoError(err)

	stored, err := s.properties.GetByID(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.Equal(0, stored.Units)
	s.Equal("9 Spruce Rd", stored.Address)
}

func (s *BaseServiceTestSuite) TestUpdateCrossTenantOrMissingIsUnauthorized() {
	p := s.newProperty(s.ctxA, "Pine")

	intruder := *p
	intruder.Name = "Taken"
	_, err := s.properties.Update(s.ctxB, &intruder)
	s.True(common.IsUnauthorized(err))

	missing := &models.Property{Name: "Ghost", Address: "nowhere"}
	missing.ID = uuid.New()
	_, err = s.properties.Update(s.ctxA, missing)
	s.True(common.IsUnauthorized(err))

	stored, err := s.properties.GetByID(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.Equal("Pine", stored.Name)
}

func (s *BaseServiceTestSuite) TestSoftDelete() {
	p := s.newProperty(s.ctxA, "Willow")

	ok, err := s.properties.Delete(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.properties.GetByID(s.ctxA, p.ID)
	s.True(common.IsNotFound(err))
	all, err := s.properties.GetAll(s.ctxA)
	s.Require().NoError(err)
	s.Empty(all)

	state, found := s.stateOf(p.ID)
	s.True(found, "soft deleted row should remain in the table")
	s.Equal(models.StateDeleted, state)

	// a second delete finds nothing
	ok, err = s.properties.Delete(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.False(ok)

	// updates cannot resurrect it
	_, err = s.properties.Update(s.ctxA, p)
	s.True(common.IsUnauthorized(err))
}

func (s *BaseServiceTestSuite) TestHardDelete() {
	hard := NewPropertyService(s.f.store, s.f.contexts, s.f.options(false), s.f.log)
	p := s.newProperty(s.ctxA, "Aspen")

	ok, err := hard.Delete(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.True(ok)

	_, found := s.stateOf(p.ID)
	s.False(found)
}

func (s *BaseServiceTestSuite) TestDeleteCrossTenantIsUnauthorized() {
	p := s.newProperty(s.ctxA, "Poplar")

	ok, err := s.properties.Delete(s.ctxB, p.ID)
	s.False(ok)
	s.True(common.IsUnauthorized(err))

	state, _ := s.stateOf(p.ID)
	s.Equal(models.StateActive, state)
}

func (s *BaseServiceTestSuite) TestDeleteCrossTenantIgnoresRowState() {
	p := s.newProperty(s.ctxA, "Larch")
	ok, err := s.properties.Delete(s.ctxA, p.ID)
	s.Require().NoError(err)
	s.Require().True(ok)

	// another organization gets the same answer for a deleted row as for a live one
	ok, err = s.properties.Delete(s.ctxB, p.ID)
	s.False(ok)
	s.True(common.IsUnauthorized(err))
}

func (s *BaseServiceTestSuite) TestDeleteMissingReturnsFalse() {
	ok, err := s.properties.Delete(s.ctxA, uuid.New())
	s.NoError(err)
	s.False(ok)
}

func (s *BaseServiceTestSuite) TestUnauthenticatedCallsFail() {
	ctx := context.Background()

	_, err := s.properties.GetAll(ctx)
	s.True(common.IsUnauthorized(err))
	_, err = s.properties.GetByID(ctx, uuid.New())
	s.True(common.IsUnauthorized(err))
	_, err = s.properties.Create(ctx, &models.Property{Name: "x", Address: "y"})
	s.True(common.IsUnauthorized(err))
	_, err = s.properties.Delete(ctx, uuid.New())
	s.True(common.IsUnauthorized(err))
}

func (s *BaseServiceTestSuite) TestNoActiveOrganization() {
	newcomer := testhelpers.SetupTestUser(s.T(), s.f.store, "new@example.com")
	ctx := s.f.as(newcomer.ID)
	s.newProperty(s.ctxA, "Hidden")

	all, err := s.properties.GetAll(ctx)
	s.Require().NoError(err)
	s.Empty(all)

	_, err = s.properties.Create(ctx, &models.Property{Name: "x", Address: "y"})
	s.True(common.IsUnauthorized(err))
}

func (s *BaseServiceTestSuite) TestValidationRunsOnCreateAndUpdate() {
	_, err := s.properties.Create(s.ctxA, &models.Property{Units: -1})
	s.Require().Error(err)
	s.Equal(common.EInvalid, common.ErrorCode(err))
	s.Contains(err.Error(), "name is required")
	s.Contains(err.Error(), "address is required")
	s.Contains(err.Error(), "units cannot be negative")

	p := s.newProperty(s.ctxA, "Linden")
	p.Name = " "
	_, err = s.properties.Update(s.ctxA, p)
	s.Equal(common.EInvalid, common.ErrorCode(err))
}

func (s *BaseServiceTestSuite) TestDefaultValidatorAcceptsAnything() {
	svc := NewBaseService[models.Property](s.f.store, s.f.contexts, s.f.options(true), s.f.log)
	_, err := svc.Create(s.ctxA, &models.Property{Name: "", Address: "", PropertyType: "residential"})
	s.NoError(err)
}

func (s *BaseServiceTestSuite) TestFailuresAreLoggedWithContext() {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewPropertyService(s.f.store, s.f.contexts, s.f.options(true), zap.New(core))
	p := s.newProperty(s.ctxA, "Hazel")

	_, err := svc.GetByID(s.ctxB, p.ID)
	s.Require().Error(err)

	entries := logs.All()
	s.Require().Len(entries, 1)
	fields := entries[0].ContextMap()
	s.Equal("properties", fields["entity"])
	s.Equal("GetByID", fields["operation"])
	s.Equal(s.f.orgB.ID.String(), fields["organization_id"])
}
