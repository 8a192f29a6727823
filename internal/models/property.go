package models

import (
	"time"

	"github.com/google/uuid"
)

type Property struct {
	TenantBase
	Name         string `json:"name" db:"name"`
	Address      string `json:"address" db:"address"`
	City         string `json:"city" db:"city"`
	Region       string `json:"region" db:"region"`
	PostalCode   string `json:"postal_code" db:"postal_code"`
	PropertyType string `json:"property_type" db:"property_type"`
	Units        int    `json:"units" db:"units"`
}

func (*Property) TableName() string { return "properties" }

func (p *Property) Fields() map[string]any {
	return merge(p.tenantFields(), map[string]any{
		"name":          p.Name,
		"address":       p.Address,
		"city":          p.City,
		"region":        p.Region,
		"postal_code":   p.PostalCode,
		"property_type": p.PropertyType,
		"units":         p.Units,
	})
}

type Resident struct {
	TenantBase
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone" db:"phone"`
}

func (*Resident) TableName() string { return "residents" }

func (r *Resident) Fields() map[string]any {
	return merge(r.tenantFields(), map[string]any{
		"first_name": r.FirstName,
		"last_name":  r.LastName,
		"email":      r.Email,
		"phone":      r.Phone,
	})
}

const (
	LeaseStatusActive     = "active"
	LeaseStatusEnded      = "ended"
	LeaseStatusTerminated = "terminated"
)

type Lease struct {
	TenantBase
	PropertyID  uuid.UUID `json:"property_id" db:"property_id"`
	ResidentID  uuid.UUID `json:"resident_id" db:"resident_id"`
	Unit        string    `json:"unit" db:"unit"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	MonthlyRent float64   `json:"monthly_rent" db:"monthly_rent"`
	Deposit     float64   `json:"deposit" db:"deposit"`
	Status      string    `json:"status" db:"status"`
}

func (*Lease) TableName() string { return "leases" }

func (l *Lease) Fields() map[string]any {
	return merge(l.tenantFields(), map[string]any{
		"property_id":  l.PropertyID,
		"resident_id":  l.ResidentID,
		"unit":         l.Unit,
		"start_date":   l.StartDate,
		"end_date":     l.EndDate,
		"monthly_rent": l.MonthlyRent,
		"deposit":      l.Deposit,
		"status":       l.Status,
	})
}
