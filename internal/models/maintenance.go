package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PriorityLow       = "low"
	PriorityNormal    = "normal"
	PriorityHigh      = "high"
	PriorityEmergency = "emergency"

	MaintenanceOpen       = "open"
	MaintenanceInProgress = "in_progress"
	MaintenanceCompleted  = "completed"
	MaintenanceCancelled  = "cancelled"
)

type MaintenanceRequest struct {
	TenantBase
	PropertyID  uuid.UUID  `json:"property_id" db:"property_id"`
	LeaseID     *uuid.UUID `json:"lease_id,omitempty" db:"lease_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Priority    string     `json:"priority" db:"priority"`
	Status      string     `json:"status" db:"status"`
	CompletedOn *time.Time `json:"completed_on,omitempty" db:"completed_on"`
}

func (*MaintenanceRequest) TableName() string { return "maintenance_requests" }

func (m *MaintenanceRequest) Fields() map[string]any {
	return merge(m.tenantFields(), map[string]any{
		"property_id":  m.PropertyID,
		"lease_id":     m.LeaseID,
		"title":        m.Title,
		"description":  m.Description,
		"priority":     m.Priority,
		"status":       m.Status,
		"completed_on": m.CompletedOn,
	})
}
