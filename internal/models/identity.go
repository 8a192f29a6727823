package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within one organization.
type Role string

const (
	RoleOwner           Role = "Owner"
	RoleAdministrator   Role = "Administrator"
	RolePropertyManager Role = "PropertyManager"
	RoleMaintenanceTech Role = "MaintenanceTech"
	RoleUser            Role = "User"
)

// Roles lists every known role.
var Roles = []Role{RoleOwner, RoleAdministrator, RolePropertyManager, RoleMaintenanceTech, RoleUser}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is provisioned from identity provider claims. The active organization
// lives on the record so a switch survives new sessions.
type User struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Email                string     `json:"email" db:"email"`
	DisplayName          string     `json:"display_name" db:"display_name"`
	ActiveOrganizationID *uuid.UUID `json:"active_organization_id,omitempty" db:"active_organization_id"`
	CreatedOn            time.Time  `json:"created_on" db:"created_on"`
	ModifiedOn           *time.Time `json:"modified_on,omitempty" db:"modified_on"`
}

func (User) TableName() string { return "users" }

// Organization is a tenant.
type Organization struct {
	Base
	Name    string    `json:"name" db:"name"`
	OwnerID uuid.UUID `json:"owner_id" db:"owner_id"`
}

func (*Organization) TableName() string { return "organizations" }

func (o *Organization) Fields() map[string]any {
	return merge(o.baseFields(), map[string]any{
		"name":     o.Name,
		"owner_id": o.OwnerID,
	})
}

// Membership links a user to an organization with a role.
type Membership struct {
	Base
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Role           Role      `json:"role" db:"role"`
	IsActive       bool      `json:"is_active" db:"is_active"`
}

func (*Membership) TableName() string { return "organization_members" }

func (m *Membership) Fields() map[string]any {
	return merge(m.baseFields(), map[string]any{
		"organization_id": m.OrganizationID,
		"user_id":         m.UserID,
		"role":            m.Role,
		"is_active":       m.IsActive,
	})
}

// OrganizationSummary is one row of "my organizations".
type OrganizationSummary struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Role     Role      `json:"role" db:"role"`
	IsActive bool      `json:"is_active" db:"-"`
}

// SchemaVersion records the application schema version last applied.
type SchemaVersion struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Version     string    `json:"version" db:"version"`
	AppliedOn   time.Time `json:"applied_on" db:"applied_on"`
	Description string    `json:"description" db:"description"`
}
