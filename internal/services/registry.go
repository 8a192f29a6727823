package services

import (
	"go.uber.org/zap"

	"propertyhub/internal/caching"
	"propertyhub/internal/repositories"
	"propertyhub/pkg/database"
)

// Registry wires every service over one store.
type Registry struct {
	Contexts      *UserContextFactory
	Authz         AuthorizationService
	Users         UserService
	Organizations OrganizationService
	Properties    *PropertyService
	Residents     *ResidentService
	Leases        *LeaseService
	Invoices      *InvoiceService
	Payments      *PaymentService
	Maintenance   *MaintenanceService
}

// NewRegistry builds the services. cache may be nil.
func NewRegistry(store *database.Store, cache caching.CacheService, opts EntityOptions, log *zap.Logger) *Registry {
	users := repositories.NewUserRepo(store)
	members := repositories.NewMembershipRepo(store)
	orgs := repositories.NewOrganizationRepo(store)

	r := &Registry{}
	r.Contexts = NewUserContextFactory(users, members, cache, log)
	r.Authz = NewAuthorizationService(r.Contexts, members, log)
	r.Organizations = NewOrganizationService(orgs, members, users, r.Contexts, r.Authz, log)
	r.Users = NewUserService(users, r.Organizations, r.Contexts, log)

	r.Properties = NewPropertyService(store, r.Contexts, opts, log)
	r.Residents = NewResidentService(store, r.Contexts, opts, log)
	r.Leases = NewLeaseService(store, r.Contexts, r.Properties, r.Residents, opts, log)
	r.Invoices = NewInvoiceService(store, r.Contexts, r.Leases, opts, log)
	r.Payments = NewPaymentService(store, r.Contexts, r.Invoices, opts, log)
	r.Maintenance = NewMaintenanceService(store, r.Contexts, r.Properties, opts, log)
	return r
}
