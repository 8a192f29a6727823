package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

type OrganizationRepository interface {
	// CreateWithOwner inserts the organization and the owner's membership in
	// one transaction.
	CreateWithOwner(ctx context.Context, org *models.Organization) (*models.Membership, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

type organizationRepo struct {
	store *database.Store
	orgs  *EntityStore[models.Organization, *models.Organization]
}

func NewOrganizationRepo(store *database.Store) OrganizationRepository {
	return &organizationRepo{
		store: store,
		orgs:  NewEntityStore[models.Organization](store),
	}
}

func (r *organizationRepo) CreateWithOwner(ctx context.Context, org *models.Organization) (*models.Membership, error) {
	now := time.Now().UTC()
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.MarkCreated(org.OwnerID, now)

	member := &models.Membership{
		OrganizationID: org.ID,
		UserID:         org.OwnerID,
		Role:           models.RoleOwner,
		IsActive:       true,
	}
	member.ID = uuid.New()
	member.MarkCreated(org.OwnerID, now)

	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, e := range []models.Entity{org, member} {
		query, args, err := r.store.Builder().Insert(e.TableName()).SetMap(e.Fields()).ToSql()
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return member, nil
}

func (r *organizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return r.orgs.Get(ctx, id)
}
