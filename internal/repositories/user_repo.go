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

var userColumns = []string{"id", "email", "display_name", "active_organization_id", "created_on", "modified_on"}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// Upsert creates the user or refreshes email and display name. The
	// active organization is never touched.
	Upsert(ctx context.Context, user *models.User) error
	SetActiveOrganization(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID) error
}

type userRepo struct {
	store *database.Store
}

func NewUserRepo(store *database.Store) UserRepository {
	return &userRepo{store: store}
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	query, args, err := r.store.Builder().
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	if err := db.GetContext(ctx, user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFound("UserRepository.FindByID", "user not found")
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Upsert(ctx context.Context, user *models.User) error {
	db, err := r.store.Conn()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if user.CreatedOn.IsZero() {
		user.CreatedOn = now
	}
	query, args, err := r.store.Builder().
		Insert("users").
		Columns("id", "email", "display_name", "created_on").
		Values(user.ID, user.Email, user.DisplayName, user.CreatedOn).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = excluded.email, display_name = excluded.display_name, modified_on = ?", now).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

func (r *userRepo) SetActiveOrganization(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID) error {
	db, err := r.store.Conn()
	if err != nil {
		return err
	}
	query, args, err := r.store.Builder().
		Update("users").
		Set("active_organization_id", orgID).
		Set("modified_on", time.Now().UTC()).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound("UserRepository.SetActiveOrganization", "user not found")
	}
	return nil
}
