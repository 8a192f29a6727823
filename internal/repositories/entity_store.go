package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

// ActivePredicate excludes soft deleted rows.
var ActivePredicate = sq.Eq{"lifecycle_state": models.StateActive}

// OrganizationPredicate restricts rows to one organization.
func OrganizationPredicate(orgID uuid.UUID) sq.Eq {
	return sq.Eq{"organization_id": orgID}
}

// EntityStore persists one entity type. It applies no tenant rules itself;
// callers pass the predicates they need.
type EntityStore[T any, PT models.EntityPtr[T]] struct {
	store   *database.Store
	table   string
	columns []string
	scoped  bool
}

func NewEntityStore[T any, PT models.EntityPtr[T]](store *database.Store) *EntityStore[T, PT] {
	probe := PT(new(T))
	_, scoped := any(probe).(models.TenantOwned)

	fields := probe.Fields()
	columns := make([]string, 0, len(fields))
	for col := range fields {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	return &EntityStore[T, PT]{
		store:   store,
		table:   probe.TableName(),
		columns: columns,
		scoped:  scoped,
	}
}

// Table is the backing table name.
func (r *EntityStore[T, PT]) Table() string { return r.table }

// Scoped reports whether the entity type belongs to an organization.
func (r *EntityStore[T, PT]) Scoped() bool { return r.scoped }

// Get loads a row by id regardless of organization or state.
func (r *EntityStore[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	query, args, err := r.store.Builder().
		Select(r.columns...).
		From(r.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	entity := PT(new(T))
	if err := db.GetContext(ctx, entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFound("EntityStore.Get", r.table+" not found")
		}
		return nil, err
	}
	return entity, nil
}

// Page bounds a listing. A zero Limit means no limit.
type Page struct {
	Limit  uint64
	Offset uint64
}

// Find returns the rows matching every predicate, ordered by creation time.
func (r *EntityStore[T, PT]) Find(ctx context.Context, where ...sq.Sqlizer) ([]PT, error) {
	return r.FindPage(ctx, Page{}, where...)
}

// FindPage is Find restricted to one page of the ordered result.
func (r *EntityStore[T, PT]) FindPage(ctx context.Context, page Page, where ...sq.Sqlizer) ([]PT, error) {
	db, err := r.store.Conn()
	if err != nil {
		return nil, err
	}
	q := r.store.Builder().
		Select(r.columns...).
		From(r.table).
		OrderBy("created_on", "id")
	if page.Limit > 0 {
		q = q.Limit(page.Limit).Offset(page.Offset)
	}
	for _, w := range where {
		if w != nil {
			q = q.Where(w)
		}
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var out []PT
	if err := db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert writes a new row with every field of entity.
func (r *EntityStore[T, PT]) Insert(ctx context.Context, entity PT) error {
	db, err := r.store.Conn()
	if err != nil {
		return err
	}
	query, args, err := r.store.Builder().
		Insert(r.table).
		SetMap(entity.Fields()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

// Replace overwrites every column of the row with entity's values.
func (r *EntityStore[T, PT]) Replace(ctx context.Context, entity PT) error {
	fields := entity.Fields()
	delete(fields, "id")

	db, err := r.store.Conn()
	if err != nil {
		return err
	}
	query, args, err := r.store.Builder().
		Update(r.table).
		SetMap(fields).
		Where(sq.Eq{"id": entity.GetID()}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound("EntityStore.Replace", r.table+" not found")
	}
	return nil
}

// Remove physically deletes the row.
func (r *EntityStore[T, PT]) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	db, err := r.store.Conn()
	if err != nil {
		return false, err
	}
	query, args, err := r.store.Builder().
		Delete(r.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
