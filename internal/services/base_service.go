package services

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/database"
	"propertyhub/pkg/logger"
)

// EntityOptions are the process wide settings of every BaseService.
type EntityOptions struct {
	// SoftDelete flips the lifecycle state on Delete instead of removing the row.
	SoftDelete bool
	Clock      clockwork.Clock
}

// Validator checks an entity before it is written. It may fill defaults.
type Validator[PT any] func(ctx context.Context, entity PT) error

// BaseService gives any entity type create, read, update and delete with
// organization scoping. Scoping is decided once, from whether the entity
// implements models.TenantOwned.
type BaseService[T any, PT models.EntityPtr[T]] struct {
	entities   *repositories.EntityStore[T, PT]
	contexts   *UserContextFactory
	softDelete bool
	clock      clockwork.Clock
	validate   Validator[PT]
	log        *zap.Logger
}

func NewBaseService[T any, PT models.EntityPtr[T]](store *database.Store, contexts *UserContextFactory, opts EntityOptions, log *zap.Logger) *BaseService[T, PT] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &BaseService[T, PT]{
		entities:   repositories.NewEntityStore[T, PT](store),
		contexts:   contexts,
		softDelete: opts.SoftDelete,
		clock:      opts.Clock,
		validate:   func(context.Context, PT) error { return nil },
		log:        log,
	}
}

// WithValidator replaces the validation hook.
func (s *BaseService[T, PT]) WithValidator(v Validator[PT]) *BaseService[T, PT] {
	if v != nil {
		s.validate = v
	}
	return s
}

// EntityName is the backing table name.
func (s *BaseService[T, PT]) EntityName() string { return s.entities.Table() }

func (s *BaseService[T, PT]) now() time.Time { return s.clock.Now().UTC() }

// fail logs err with the entity, operation and organization before returning it.
func (s *BaseService[T, PT]) fail(ctx context.Context, op string, orgID *uuid.UUID, err error) error {
	fields := []zap.Field{
		zap.String("entity", s.entities.Table()),
		zap.String("operation", op),
		zap.Error(err),
	}
	if orgID != nil {
		fields = append(fields, zap.String("organization_id", orgID.String()))
	}
	log := logger.FromContext(ctx, s.log)
	switch common.ErrorCode(err) {
	case common.EInternal, common.EUnavailable:
		log.Error("Entity operation failed", fields...)
	default:
		log.Warn("Entity operation rejected", fields...)
	}
	return err
}

// caller resolves the acting user and, for scoped entities, the active
// organization. A nil organization means the caller has none.
func (s *BaseService[T, PT]) caller(ctx context.Context, op string) (UserContext, uuid.UUID, *uuid.UUID, error) {
	uc := s.contexts.For(ctx)
	userID, err := uc.RequireUserID()
	if err != nil {
		return nil, uuid.Nil, nil, s.fail(ctx, op, nil, err)
	}
	if !s.entities.Scoped() {
		return uc, userID, nil, nil
	}
	orgID, err := uc.ActiveOrganizationID(ctx)
	if err != nil {
		return nil, uuid.Nil, nil, s.fail(ctx, op, nil, err)
	}
	return uc, userID, orgID, nil
}

// visible reports whether entity is readable by a caller in orgID.
func (s *BaseService[T, PT]) visible(entity PT, orgID *uuid.UUID) bool {
	return entity.GetState() != models.StateDeleted && s.owns(entity, orgID)
}

// owns reports whether entity belongs to orgID, whatever its state.
func (s *BaseService[T, PT]) owns(entity PT, orgID *uuid.UUID) bool {
	if !s.entities.Scoped() {
		return true
	}
	owned := any(entity).(models.TenantOwned)
	return orgID != nil && owned.GetOrganizationID() == *orgID
}

// GetByID returns the entity only when it is active and belongs to the
// caller's organization. Other tenants' rows are reported as not found.
func (s *BaseService[T, PT]) GetByID(ctx context.Context, id uuid.UUID) (PT, error) {
	const op = "GetByID"
	_, _, orgID, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}

	entity, err := s.entities.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, op, orgID, err)
	}
	if !s.visible(entity, orgID) {
		return nil, s.fail(ctx, op, orgID, common.NotFound(op, s.entities.Table()+" not found"))
	}
	return entity, nil
}

// GetAll lists the active entities of the caller's organization.
func (s *BaseService[T, PT]) GetAll(ctx context.Context) ([]PT, error) {
	return s.Find(ctx, nil)
}

// GetPage is GetAll bounded to limit rows starting at offset. Out of range
// values are clamped by common.ValidatePaginationParams.
func (s *BaseService[T, PT]) GetPage(ctx context.Context, limit, offset int) ([]PT, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.find(ctx, "GetPage", nil, repositories.Page{Limit: uint64(limit), Offset: uint64(offset)})
}

// Find is GetAll narrowed by an extra predicate.
func (s *BaseService[T, PT]) Find(ctx context.Context, where sq.Sqlizer) ([]PT, error) {
	return s.find(ctx, "Find", where, repositories.Page{})
}

func (s *BaseService[T, PT]) find(ctx context.Context, op string, where sq.Sqlizer, page repositories.Page) ([]PT, error) {
	_, _, orgID, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}

	preds := []sq.Sqlizer{repositories.ActivePredicate, where}
	if s.entities.Scoped() {
		if orgID == nil {
			return []PT{}, nil
		}
		preds = append(preds, repositories.OrganizationPredicate(*orgID))
	}
	out, err := s.entities.FindPage(ctx, page, preds...)
	if err != nil {
		return nil, s.fail(ctx, op, orgID, err)
	}
	if out == nil {
		out = []PT{}
	}
	return out, nil
}

// Create stamps identity, audit fields and the owning organization, then
// persists entity. Any organization set by the caller is overwritten.
func (s *BaseService[T, PT]) Create(ctx context.Context, entity PT) (PT, error) {
	const op = "Create"
	uc, userID, orgID, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}
	if s.entities.Scoped() {
		id, err := uc.RequireActiveOrganizationID(ctx)
		if err != nil {
			return nil, s.fail(ctx, op, nil, err)
		}
		any(entity).(models.TenantOwned).SetOrganizationID(id)
	}

	if err := s.validate(ctx, entity); err != nil {
		return nil, s.fail(ctx, op, orgID, err)
	}

	if entity.GetID() == uuid.Nil {
		entity.SetID(uuid.New())
	}
	entity.SetState(models.StateActive)
	entity.MarkCreated(userID, s.now())

	if err := s.entities.Insert(ctx, entity); err != nil {
		return nil, s.fail(ctx, op, orgID, err)
	}
	return entity, nil
}

// Update replaces every field of the stored row with entity. Missing rows and
// rows of another organization are authorization failures. Creation stamps
// and lifecycle state are carried over from the stored row.
func (s *BaseService[T, PT]) Update(ctx context.Context, entity PT) (PT, error) {
	const op = "Update"
	_, userID, orgID, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}

	existing, err := s.entities.Get(ctx, entity.GetID())
	if err != nil && !common.IsNotFound(err) {
		return nil, s.fail(ctx, op, orgID, err)
	}
	if existing == nil || !s.visible(existing, orgID) {
		return nil, s.fail(ctx, op, orgID, common.Unauthorized(op, "no access to "+s.entities.Table()+" "+entity.GetID().String()))
	}

	if s.entities.Scoped() {
		any(entity).(models.TenantOwned).SetOrganizationID(*orgID)
	}
	if err := s.validate(ctx, entity); err != nil {
		return nil, s.fail(ctx, op, orgID, err)
	}

	entity.MarkCreated(existing.Created())
	entity.SetState(existing.GetState())
	entity.MarkModified(userID, s.now())

	if err := s.entities.Replace(ctx, entity); err != nil {
		return nil, s.fail(ctx, op, orgID, err)
	}
	return entity, nil
}

// Delete soft or hard deletes the entity and reports whether a row was
// affected. A row of another organization is an authorization failure,
// deleted or not.
func (s *BaseService[T, PT]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "Delete"
	_, userID, orgID, err := s.caller(ctx, op)
	if err != nil {
		return false, err
	}

	existing, err := s.entities.Get(ctx, id)
	if common.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(ctx, op, orgID, err)
	}
	if !s.owns(existing, orgID) {
		return false, s.fail(ctx, op, orgID, common.Unauthorized(op, "no access to "+s.entities.Table()+" "+id.String()))
	}
	if existing.GetState() == models.StateDeleted {
		return false, nil
	}

	if !s.softDelete {
		removed, err := s.entities.Remove(ctx, id)
		if err != nil {
			return false, s.fail(ctx, op, orgID, err)
		}
		return removed, nil
	}

	existing.SetState(models.StateDeleted)
	existing.MarkModified(userID, s.now())
	if err := s.entities.Replace(ctx, existing); err != nil {
		return false, s.fail(ctx, op, orgID, err)
	}
	return true, nil
}
