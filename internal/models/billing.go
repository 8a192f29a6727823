package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InvoiceStatusUnpaid  = "unpaid"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
	InvoiceStatusVoid    = "void"
)

type Invoice struct {
	TenantBase
	LeaseID     uuid.UUID `json:"lease_id" db:"lease_id"`
	Number      string    `json:"number" db:"number"`
	Description string    `json:"description" db:"description"`
	Amount      float64   `json:"amount" db:"amount"`
	AmountPaid  float64   `json:"amount_paid" db:"amount_paid"`
	DueDate     time.Time `json:"due_date" db:"due_date"`
	Status      string    `json:"status" db:"status"`
}

func (*Invoice) TableName() string { return "invoices" }

func (i *Invoice) Fields() map[string]any {
	return merge(i.tenantFields(), map[string]any{
		"lease_id":    i.LeaseID,
		"number":      i.Number,
		"description": i.Description,
		"amount":      i.Amount,
		"amount_paid": i.AmountPaid,
		"due_date":    i.DueDate,
		"status":      i.Status,
	})
}

// Balance is what is still owed.
func (i *Invoice) Balance() float64 {
	return i.Amount - i.AmountPaid
}

type Payment struct {
	TenantBase
	InvoiceID uuid.UUID `json:"invoice_id" db:"invoice_id"`
	Amount    float64   `json:"amount" db:"amount"`
	PaidOn    time.Time `json:"paid_on" db:"paid_on"`
	Method    string    `json:"method" db:"method"`
	Reference string    `json:"reference" db:"reference"`
}

func (*Payment) TableName() string { return "payments" }

func (p *Payment) Fields() map[string]any {
	return merge(p.tenantFields(), map[string]any{
		"invoice_id": p.InvoiceID,
		"amount":     p.Amount,
		"paid_on":    p.PaidOn,
		"method":     p.Method,
		"reference":  p.Reference,
	})
}
