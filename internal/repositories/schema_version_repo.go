package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

type SchemaVersionRepository interface {
	// Latest returns the most recently applied marker, or nil if none exists.
	Latest(ctx context.Context) (*models.SchemaVersion, error)
	Record(ctx context.Context, version, description string) (*models.SchemaVersion, error)
}

type schemaVersionRepo struct {
	store *database.Store
}

func NewSchemaVersionRepo(store *database.Store) SchemaVersionRepository {
	return &schemaVersionRepo{store: store}
}

func (r *schemaVersionRepo) Latest(ctx context.Context) (*models.SchemaVersion, error) {
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	query, args, err := r.store.Builder().
		Select("id", "version", "applied_on", "description").
		From("schema_versions").
		OrderBy("applied_on DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	v := &models.SchemaVersion{}
	if err := db.GetContext(ctx, v, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (r *schemaVersionRepo) Record(ctx context.Context, version, description string) (*models.SchemaVersion, error) {
	v := &models.SchemaVersion{
		ID:          uuid.New(),
		Version:     version,
		AppliedOn:   time.Now().UTC(),
		Description: description,
	}
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	query, args, err := r.store.Builder().
		Insert("schema_versions").
		Columns("id", "version", "applied_on", "description").
		Values(v.ID, v.Version, v.AppliedOn, v.Description).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return v, nil
}
