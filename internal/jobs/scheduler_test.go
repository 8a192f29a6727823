package jobs

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"propertyhub/internal/backup"
	"propertyhub/internal/common"
	"propertyhub/internal/metrics"
	"propertyhub/internal/models"
	"propertyhub/internal/repositories"
	"propertyhub/internal/services"
	"propertyhub/pkg/database"
	"propertyhub/testhelpers"
)

var epoch = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

func TestRegistration(t *testing.T) {
	store := database.NewTestStore(t)
	log := zaptest.NewLogger(t)
	sweep := repositories.NewInvoiceSweepRepo(store)
	backups := backup.NewService(store, backup.Options{}, log)

	s, err := NewScheduler(backups, sweep, nil, Options{BackupInterval: time.Hour, OverdueSweepInterval: time.Minute}, log)
	require.NoError(t, err)
	names := s.Names()
	sort.Strings(names)
	assert.Equal(t, []string{JobOverdueSweep, JobScheduledBackup}, names)

	s.Start()
	require.NoError(t, s.Stop())

	// server mode has no file backups
	s, err = NewScheduler(nil, sweep, nil, Options{BackupInterval: time.Hour, OverdueSweepInterval: time.Minute}, log)
	require.NoError(t, err)
	assert.Equal(t, []string{JobOverdueSweep}, s.Names())

	s, err = NewScheduler(backups, sweep, nil, Options{}, log)
	require.NoError(t, err)
	assert.Empty(t, s.Names())
}

func TestRunScheduledBackup(t *testing.T) {
	store := database.NewTestStore(t)
	log := zaptest.NewLogger(t)
	backups := backup.NewService(store, backup.Options{Clock: clockwork.NewFakeClockAt(epoch)}, log)

	s, err := NewScheduler(backups, nil, nil, Options{BackupInterval: time.Hour}, log)
	require.NoError(t, err)
	require.NoError(t, s.RunScheduledBackup(context.Background()))

	list, err := backups.ListBackups()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(backup.ReasonScheduled), list[0].Reason)
	assert.Equal(t, "propertyhub_scheduled_20260314_092653.db", list[0].Name)
}

func TestSweepOverdue(t *testing.T) {
	store := database.NewTestStore(t)
	log := zaptest.NewLogger(t)
	clock := clockwork.NewFakeClockAt(epoch)
	reg := services.NewRegistry(store, nil, services.EntityOptions{SoftDelete: true, Clock: clock}, log)

	owner := testhelpers.SetupTestUser(t, store, "owner@example.com")
	org := testhelpers.SetupTestOrganization(t, store, owner.ID, "Harbor Lofts")
	testhelpers.SetActiveOrganization(t, store, owner.ID, org.ID)
	ctx := testhelpers.AuthenticatedContext(owner.ID)
	p, _ := common.GetPrincipalFromContext(ctx)
	ctx = services.WithUserContext(ctx, reg.Contexts.New(p))

	prop, err := reg.Properties.Create(ctx, &models.Property{Name: "Dockside", Address: "9 Pier"})
	require.NoError(t, err)
	res, err := reg.Residents.Create(ctx, &models.Resident{FirstName: "Ada", LastName: "Byron"})
	require.NoError(t, err)
	lease, err := reg.Leases.Create(ctx, &models.Lease{
		PropertyID: prop.ID, ResidentID: res.ID, MonthlyRent: 900,
		StartDate: epoch.AddDate(0, -2, 0), EndDate: epoch.AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	late, err := reg.Invoices.Create(ctx, &models.Invoice{LeaseID: lease.ID, Number: "INV-1", Amount: 900, DueDate: epoch.AddDate(0, 0, -3)})
	require.NoError(t, err)
	upcoming, err := reg.Invoices.Create(ctx, &models.Invoice{LeaseID: lease.ID, Number: "INV-2", Amount: 900, DueDate: epoch.AddDate(0, 0, 3)})
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	s, err := NewScheduler(nil, repositories.NewInvoiceSweepRepo(store), metrics.New(promReg), Options{OverdueSweepInterval: time.Hour, Clock: clock}, log)
	require.NoError(t, err)
	require.NoError(t, s.SweepOverdue(context.Background()))

	got, err := reg.Invoices.GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOverdue, got.Status)
	got, err = reg.Invoices.GetByID(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusUnpaid, got.Status)

	expected := `
# HELP propertyhub_billing_invoices_marked_overdue_total Invoices moved to overdue by the sweep job.
# TYPE propertyhub_billing_invoices_marked_overdue_total counter
propertyhub_billing_invoices_marked_overdue_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(promReg, strings.NewReader(expected), "propertyhub_billing_invoices_marked_overdue_total"))

	// a second sweep finds nothing new
	require.NoError(t, s.SweepOverdue(context.Background()))
	assert.NoError(t, testutil.GatherAndCompare(promReg, strings.NewReader(expected), "propertyhub_billing_invoices_marked_overdue_total"))
}
