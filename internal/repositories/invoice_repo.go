package repositories

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

// InvoiceSweepRepository runs billing maintenance across every organization.
// It is only used by background jobs, never on behalf of a request.
type InvoiceSweepRepository interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type invoiceSweepRepo struct {
	store *database.Store
}

func NewInvoiceSweepRepo(store *database.Store) InvoiceSweepRepository {
	return &invoiceSweepRepo{store: store}
}

func (r *invoiceSweepRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	db, err := r.store.Conn()
	if err != nil {
		return 0, err
	}
	query, args, err := r.store.Builder().
		Update("invoices").
		Set("status", models.InvoiceStatusOverdue).
		Set("modified_on", now).
		Where(sq.Eq{"status": models.InvoiceStatusUnpaid}).
		Where(ActivePredicate).
		Where(sq.Lt{"due_date": now}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
