package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"propertyhub/internal/common"
	"propertyhub/internal/models"
	"propertyhub/pkg/database"
)

func exec(t *testing.T, store *database.Store, table string, fields map[string]any) {
	t.Helper()

	query, args, err := store.Builder().Insert(table).SetMap(fields).ToSql()
	if err != nil {
		t.Fatalf("Failed to build insert into %s: %v", table, err)
	}
	db, err := store.Conn()
	if err != nil {
		t.Fatalf("Failed to get connection: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to insert into %s: %v", table, err)
	}
}

// SetupTestUser creates a user with no active organization.
func SetupTestUser(t *testing.T, store *database.Store, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: email,
		CreatedOn:   time.Now().UTC(),
	}
	exec(t, store, "users", map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"created_on":   user.CreatedOn,
	})
	return user
}

// SetupTestOrganization creates an organization owned by ownerID, with the
// owner's membership.
func SetupTestOrganization(t *testing.T, store *database.Store, ownerID uuid.UUID, name string) *models.Organization {
	t.Helper()

	org := &models.Organization{Name: name, OwnerID: ownerID}
	org.ID = uuid.New()
	org.MarkCreated(ownerID, time.Now().UTC())
	exec(t, store, org.TableName(), org.Fields())

	AddTestMember(t, store, org.ID, ownerID, models.RoleOwner)
	return org
}

// AddTestMember adds an active membership.
func AddTestMember(t *testing.T, store *database.Store, orgID, userID uuid.UUID, role models.Role) *models.Membership {
	t.Helper()

	m := &models.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		IsActive:       true,
	}
	m.ID = uuid.New()
	m.MarkCreated(userID, time.Now().UTC())
	exec(t, store, m.TableName(), m.Fields())
	return m
}

// SetActiveOrganization points the user's active organization at orgID.
func SetActiveOrganization(t *testing.T, store *database.Store, userID, orgID uuid.UUID) {
	t.Helper()

	query, args, err := store.Builder().
		Update("users").
		Set("active_organization_id", orgID).
		Where("id = ?", userID).
		ToSql()
	if err != nil {
		t.Fatalf("Failed to build update: %v", err)
	}
	db, err := store.Conn()
	if err != nil {
		t.Fatalf("Failed to get connection: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to set active organization: %v", err)
	}
}

// AuthenticatedContext returns a context carrying a principal for userID.
func AuthenticatedContext(userID uuid.UUID) context.Context {
	return common.WithPrincipal(context.Background(), &common.Principal{
		UserID:    userID,
		SessionID: "session-" + userID.String(),
	})
}
