package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

type PropertyService struct {
	*BaseService[models.Property, *models.Property]
}

func NewPropertyService(store *database.Store, contexts *UserContextFactory, opts EntityOptions, log *zap.Logger) *PropertyService {
	s := &PropertyService{BaseService: NewBaseService[models.Property](store, contexts, opts, log)}
	s.WithValidator(validateProperty)
	return s
}

func validateProperty(_ context.Context, p *models.Property) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.PropertyType == "" {
		p.PropertyType = "residential"
	}
	var units error
	if p.Units < 0 {
		units = errors.New("units cannot be negative")
	}
	return invalid("PropertyService.Validate",
		common.ValidateRequiredString(p.Name, "name"),
		common.ValidateRequiredString(p.Address, "address"),
		units,
	)
}

type ResidentService struct {
	*BaseService[models.Resident, *models.Resident]
}

func NewResidentService(store *database.Store, contexts *UserContextFactory, opts EntityOptions, log *zap.Logger) *ResidentService {
	s := &ResidentService{BaseService: NewBaseService[models.Resident](store, contexts, opts, log)}
	s.WithValidator(validateResident)
	return s
}

func validateResident(_ context.Context, r *models.Resident) error {
	r.Email = strings.TrimSpace(r.Email)
	return invalid("ResidentService.Validate",
		common.ValidateRequiredString(r.FirstName, "first_name"),
		common.ValidateRequiredString(r.LastName, "last_name"),
		common.ValidateEmail(r.Email, "email"),
	)
}
