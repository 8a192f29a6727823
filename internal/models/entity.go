package models

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle is the persisted state of a record.
type Lifecycle string

const (
	StateActive  Lifecycle = "active"
	StateDeleted Lifecycle = "deleted"
)

// Entity is implemented by every record managed through the generic entity store.
type Entity interface {
	TableName() string
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	MarkCreated(actor uuid.UUID, at time.Time)
	Created() (uuid.UUID, time.Time)
	MarkModified(actor uuid.UUID, at time.Time)
	GetState() Lifecycle
	SetState(state Lifecycle)
	// Fields returns every persisted column and its value.
	Fields() map[string]any
}

// TenantOwned is implemented by entities that belong to one organization.
type TenantOwned interface {
	Entity
	GetOrganizationID() uuid.UUID
	SetOrganizationID(id uuid.UUID)
}

// EntityPtr constrains a type parameter to a pointer to an entity struct.
type EntityPtr[T any] interface {
	*T
	Entity
}

// Base carries identity, audit stamps and lifecycle state.
type Base struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CreatedBy  uuid.UUID  `json:"created_by" db:"created_by"`
	CreatedOn  time.Time  `json:"created_on" db:"created_on"`
	ModifiedBy *uuid.UUID `json:"modified_by,omitempty" db:"modified_by"`
	ModifiedOn *time.Time `json:"modified_on,omitempty" db:"modified_on"`
	State      Lifecycle  `json:"state" db:"lifecycle_state"`
}

func (b *Base) GetID() uuid.UUID   { return b.ID }
func (b *Base) SetID(id uuid.UUID) { b.ID = id }

func (b *Base) MarkCreated(actor uuid.UUID, at time.Time) {
	b.CreatedBy = actor
	b.CreatedOn = at
	if b.State == "" {
		b.State = StateActive
	}
}

// Created returns the creation stamp.
func (b *Base) Created() (uuid.UUID, time.Time) { return b.CreatedBy, b.CreatedOn }

func (b *Base) MarkModified(actor uuid.UUID, at time.Time) {
	b.ModifiedBy = &actor
	b.ModifiedOn = &at
}

func (b *Base) GetState() Lifecycle      { return b.State }
func (b *Base) SetState(state Lifecycle) { b.State = state }

// IsDeleted reports whether the record has been soft deleted.
func (b *Base) IsDeleted() bool { return b.State == StateDeleted }

func (b *Base) baseFields() map[string]any {
	state := b.State
	if state == "" {
		state = StateActive
	}
	return map[string]any{
		"id":              b.ID,
		"created_by":      b.CreatedBy,
		"created_on":      b.CreatedOn,
		"modified_by":     b.ModifiedBy,
		"modified_on":     b.ModifiedOn,
		"lifecycle_state": state,
	}
}

// TenantBase is Base plus the owning organization.
type TenantBase struct {
	Base
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
}

func (t *TenantBase) GetOrganizationID() uuid.UUID   { return t.OrganizationID }
func (t *TenantBase) SetOrganizationID(id uuid.UUID) { t.OrganizationID = id }

func (t *TenantBase) tenantFields() map[string]any {
	fields := t.baseFields()
	fields["organization_id"] = t.OrganizationID
	return fields
}

func merge(base map[string]any, own map[string]any) map[string]any {
	for k, v := range own {
		base[k] = v
	}
	return base
}
