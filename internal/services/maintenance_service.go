package services

import (
	"context"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

type MaintenanceService struct {
	*BaseService[models.MaintenanceRequest, *models.MaintenanceRequest]
	properties *PropertyService
}

func NewMaintenanceService(store *database.Store, contexts *UserContextFactory, properties *PropertyService, opts EntityOptions, log *zap.Logger) *MaintenanceService {
	s := &MaintenanceService{
		BaseService: NewBaseService[models.MaintenanceRequest](store, contexts, opts, log),
		properties:  properties,
	}
	s.WithValidator(s.check)
	return s
}

func (s *MaintenanceService) check(ctx context.Context, m *models.MaintenanceRequest) error {
	const op = "MaintenanceService.Validate"
	if m.Priority == "" {
		m.Priority = models.PriorityNormal
	}
	if m.Status == "" {
		m.Status = models.MaintenanceOpen
	}
	switch {
	case m.Status == models.MaintenanceCompleted && m.CompletedOn == nil:
		now := s.now()
		m.CompletedOn = &now
	case m.Status != models.MaintenanceCompleted:
		m.CompletedOn = nil
	}

	if err := invalid(op,
		common.ValidateRequiredString(m.Title, "title"),
		common.ValidateOneOf(m.Priority, "priority",
			models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityEmergency),
		common.ValidateOneOf(m.Status, "status",
			models.MaintenanceOpen, models.MaintenanceInProgress, models.MaintenanceCompleted, models.MaintenanceCancelled),
	); err != nil {
		return err
	}

	if _, err := s.properties.GetByID(ctx, m.PropertyID); err != nil {
		return reference(op, "property_id", err)
	}
	return nil
}

// OpenRequests lists requests that still need work, most urgent first.
func (s *MaintenanceService) OpenRequests(ctx context.Context) ([]*models.MaintenanceRequest, error) {
	all, err := s.Find(ctx, sq.Eq{"status": []string{models.MaintenanceOpen, models.MaintenanceInProgress}})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return priorityRank[all[i].Priority] > priorityRank[all[j].Priority]
	})
	return all, nil
}

var priorityRank = map[string]int{
	models.PriorityLow:       0,
	models.PriorityNormal:    1,
	models.PriorityHigh:      2,
	models.PriorityEmergency: 3,
}
