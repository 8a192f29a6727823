package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

// MembershipRepository answers role questions. Only memberships that are
// active and not deleted count anywhere in this interface.
type MembershipRepository interface {
	// GetRole returns the user's role in orgID, or false when there is no
	// usable membership.
	GetRole(ctx context.Context, userID, orgID uuid.UUID) (models.Role, bool, error)
	IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error)
	IsOwnerOfAny(ctx context.Context, userID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationSummary, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error)
	// Add creates the membership, or reactivates it with the new role.
	Add(ctx context.Context, m *models.Membership) error
	Deactivate(ctx context.Context, orgID, userID, actor uuid.UUID) (bool, error)
}

type membershipRepo struct {
	store   *database.Store
	members *EntityStore[models.Membership, *models.Membership]
}

func NewMembershipRepo(store *database.Store) MembershipRepository {
	return &membershipRepo{
		store:   store,
		members: NewEntityStore[models.Membership](store),
	}
}

func usableMembership(alias string) sq.And {
	return sq.And{
		sq.Eq{alias + "is_active": true},
		sq.Eq{alias + "lifecycle_state": models.StateActive},
	}
}

func (r *membershipRepo) GetRole(ctx context.Context, userID, orgID uuid.UUID) (models.Role, bool, error) {
	db, err := r.store.Conn()
	if err != nil {
		return "", false, err
	}
	query, args, err := r.store.Builder().
		Select("role").
		From("organization_members").
		Where(sq.Eq{"user_id": userID, "organization_id": orgID}).
		Where(usableMembership("")).
		ToSql()
	if err != nil {
		return "", false, err
	}

	var role models.Role
	if err := db.GetContext(ctx, &role, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return role, true, nil
}

func (r *membershipRepo) IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	_, ok, err := r.GetRole(ctx, userID, orgID)
	return ok, err
}

func (r *membershipRepo) IsOwnerOfAny(ctx context.Context, userID uuid.UUID) (bool, error) {
	db, err := r.store.Conn()
	if err != nil {
		return false, err
	}
	query, args, err := r.store.Builder().
		Select("count(*)").
		From("organization_members").
		Where(sq.Eq{"user_id": userID, "role": models.RoleOwner}).
		Where(usableMembership("")).
		ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := db.GetContext(ctx, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *membershipRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationSummary, error) {
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	query, args, err := r.store.Builder().
		Select("o.id", "o.name", "m.role").
		From("organization_members m").
		Join("organizations o ON o.id = m.organization_id").
		Where(sq.Eq{"m.user_id": userID, "o.lifecycle_state": models.StateActive}).
		Where(usableMembership("m.")).
		OrderBy("o.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []*models.OrganizationSummary
	if err := db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *membershipRepo) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	return r.members.Find(ctx, sq.Eq{"organization_id": orgID}, usableMembership(""))
}

func (r *membershipRepo) Add(ctx context.Context, m *models.Membership) error {
	existing, err := r.members.Find(ctx, sq.Eq{"organization_id": m.OrganizationID, "user_id": m.UserID})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		current := existing[0]
		current.Role = m.Role
		current.IsActive = true
		current.State = models.StateActive
		current.MarkModified(m.CreatedBy, time.Now().UTC())
		if err := r.members.Replace(ctx, current); err != nil {
			return err
		}
		*m = *current
		return nil
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedOn.IsZero() {
		m.MarkCreated(m.CreatedBy, time.Now().UTC())
	}
	m.IsActive = true
	m.State = models.StateActive
	return r.members.Insert(ctx, m)
}

func (r *membershipRepo) Deactivate(ctx context.Context, orgID, userID, actor uuid.UUID) (bool, error) {
	existing, err := r.members.Find(ctx,
		sq.Eq{"organization_id": orgID, "user_id": userID},
		usableMembership(""))
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		return false, nil
	}
	m := existing[0]
	m.IsActive = false
	m.MarkModified(actor, time.Now().UTC())
	if err := r.members.Replace(ctx, m); err != nil {
		return false, common.Internal("MembershipRepository.Deactivate", err)
	}
	return true, nil
}
