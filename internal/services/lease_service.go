package services

import (
	"context"

	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

type LeaseService struct {
	*BaseService[models.Lease, *models.Lease]
	properties *PropertyService
	residents  *ResidentService
}

func NewLeaseService(store *database.Store, contexts *UserContextFactory, properties *PropertyService, residents *ResidentService, opts EntityOptions, log *zap.Logger) *LeaseService {
	s := &LeaseService{
		BaseService: NewBaseService[models.Lease](store, contexts, opts, log),
		properties:  properties,
		residents:   residents,
	}
	s.WithValidator(s.check)
	return s
}

// check runs after the organization is stamped, so the property and
// resident lookups are scoped to the same organization as the lease.
func (s *LeaseService) check(ctx context.Context, l *models.Lease) error {
	const op = "LeaseService.Validate"
	if l.Status == "" {
		l.Status = models.LeaseStatusActive
	}
	l.StartDate = l.StartDate.UTC()
	l.EndDate = l.EndDate.UTC()

	if err := invalid(op,
		common.ValidateDateRange(l.StartDate, l.EndDate),
		common.ValidatePositiveFloat(l.MonthlyRent, "monthly_rent", maxAmount),
		common.ValidateOneOf(l.Status, "status", models.LeaseStatusActive, models.LeaseStatusEnded, models.LeaseStatusTerminated),
	); err != nil {
		return err
	}

	if _, err := s.properties.GetByID(ctx, l.PropertyID); err != nil {
		return reference(op, "property_id", err)
	}
	if _, err := s.residents.GetByID(ctx, l.ResidentID); err != nil {
		return reference(op, "resident_id", err)
	}
	return nil
}
