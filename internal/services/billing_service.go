package services

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/database"
	"propertyhub/pkg/logger"
)

// InvoiceService owns invoices. AmountPaid is always the sum of the
// invoice's active payments and cannot be written by callers.
type InvoiceService struct {
	*BaseService[models.Invoice, *models.Invoice]
	leases   *LeaseService
	payments *repositories.EntityStore[models.Payment, *models.Payment]
}

func NewInvoiceService(store *database.Store, contexts *UserContextFactory, leases *LeaseService, opts EntityOptions, log *zap.Logger) *InvoiceService {
	s := &InvoiceService{
		BaseService: NewBaseService[models.Invoice](store, contexts, opts, log),
		leases:      leases,
		payments:    repositories.NewEntityStore[models.Payment, *models.Payment](store),
	}
	s.WithValidator(s.check)
	return s
}

func (s *InvoiceService) Create(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	if err := s.settle(ctx, inv); err != nil {
		return nil, s.fail(ctx, "Create", nil, err)
	}
	return s.BaseService.Create(ctx, inv)
}

func (s *InvoiceService) Update(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	if err := s.settle(ctx, inv); err != nil {
		return nil, s.fail(ctx, "Update", nil, err)
	}
	return s.BaseService.Update(ctx, inv)
}

// settle recomputes AmountPaid from the payments on record and moves the
// status to paid when nothing is owed, or back to unpaid or overdue when a
// paid invoice owes again. Void invoices keep their status.
func (s *InvoiceService) settle(ctx context.Context, inv *models.Invoice) error {
	paid := 0.0
	if inv.ID != uuid.Nil {
		payments, err := s.payments.Find(ctx, repositories.ActivePredicate, sq.Eq{"invoice_id": inv.ID})
		if err != nil {
			return err
		}
		for _, p := range payments {
			paid += p.Amount
		}
	}
	inv.AmountPaid = paid

	switch {
	case inv.Status == models.InvoiceStatusVoid:
	case inv.Balance() <= 0:
		inv.Status = models.InvoiceStatusPaid
	case inv.Status == models.InvoiceStatusPaid && inv.DueDate.Before(s.now()):
		inv.Status = models.InvoiceStatusOverdue
	case inv.Status == models.InvoiceStatusPaid:
		inv.Status = models.InvoiceStatusUnpaid
	}
	return nil
}

func (s *InvoiceService) check(ctx context.Context, inv *models.Invoice) error {
	const op = "InvoiceService.Validate"
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusUnpaid
	}
	inv.Number = strings.TrimSpace(inv.Number)
	inv.DueDate = inv.DueDate.UTC()

	var paid error
	if inv.AmountPaid < 0 {
		paid = errors.New("amount_paid cannot be negative")
	}
	var due error
	if inv.DueDate.IsZero() {
		due = errors.New("due_date is required")
	}
	if err := invalid(op,
		common.ValidateRequiredString(inv.Number, "number"),
		common.ValidatePositiveFloat(inv.Amount, "amount", maxAmount),
		common.ValidateOneOf(inv.Status, "status",
			models.InvoiceStatusUnpaid, models.InvoiceStatusPaid, models.InvoiceStatusOverdue, models.InvoiceStatusVoid),
		paid,
		due,
	); err != nil {
		return err
	}

	if _, err := s.leases.GetByID(ctx, inv.LeaseID); err != nil {
		return reference(op, "lease_id", err)
	}
	return nil
}

type PaymentService struct {
	*BaseService[models.Payment, *models.Payment]
	invoices *InvoiceService
}

func NewPaymentService(store *database.Store, contexts *UserContextFactory, invoices *InvoiceService, opts EntityOptions, log *zap.Logger) *PaymentService {
	s := &PaymentService{
		BaseService: NewBaseService[models.Payment](store, contexts, opts, log),
		invoices:    invoices,
	}
	s.WithValidator(s.check)
	return s
}

func (s *PaymentService) check(ctx context.Context, p *models.Payment) error {
	const op = "PaymentService.Validate"
	if p.Method == "" {
		p.Method = "other"
	}
	if p.PaidOn.IsZero() {
		p.PaidOn = s.now()
	}
	p.PaidOn = p.PaidOn.UTC()

	if err := invalid(op,
		common.ValidatePositiveFloat(p.Amount, "amount", maxAmount),
		common.ValidateOneOf(p.Method, "method", "cash", "check", "card", "bank_transfer", "other"),
	); err != nil {
		return err
	}

	inv, err := s.invoices.GetByID(ctx, p.InvoiceID)
	if err != nil {
		return reference(op, "invoice_id", err)
	}
	if inv.Status == models.InvoiceStatusVoid {
		return invalid(op, errors.New("invoice is void"))
	}
	return nil
}

// Create stores the payment and applies it to its invoice.
func (s *PaymentService) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	created, err := s.BaseService.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.resettle(ctx, created.ID, created.InvoiceID); err != nil {
		return nil, err
	}
	return created, nil
}

// Update changes the payment and resettles its invoice, and the invoice it
// was moved from if that changed.
func (s *PaymentService) Update(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	previous, _ := s.entities.Get(ctx, p.ID)
	updated, err := s.BaseService.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.resettle(ctx, updated.ID, updated.InvoiceID); err != nil {
		return nil, err
	}
	if previous != nil && previous.InvoiceID != updated.InvoiceID {
		if err := s.resettle(ctx, updated.ID, previous.InvoiceID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete removes the payment and takes it off its invoice.
func (s *PaymentService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	existing, _ := s.entities.Get(ctx, id)
	removed, err := s.BaseService.Delete(ctx, id)
	if err != nil || !removed || existing == nil {
		return removed, err
	}
	return true, s.resettle(ctx, id, existing.InvoiceID)
}

// resettle rewrites the invoice so it reflects the payments on record. The
// payment change is already stored when this fails.
func (s *PaymentService) resettle(ctx context.Context, paymentID, invoiceID uuid.UUID) error {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if _, err := s.invoices.Update(ctx, inv); err != nil {
		logger.FromContext(ctx, s.log).Error("Payment stored but invoice not updated",
			zap.String("payment_id", paymentID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err))
		return err
	}
	return nil
}
