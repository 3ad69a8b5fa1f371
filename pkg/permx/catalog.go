package permx

// Code is a permission code known to the dashboard at compile time. The server
// may grant codes outside this catalog; Set membership still works for them
// because evaluation is plain string matching.
type Code string

// String returns the raw code.
func (c Code) String() string { return string(c) }

// Known permission codes used by the dashboard views.
const (
	MarketingViewLead     Code = "marketing.view_lead"
	MarketingAddLead      Code = "marketing.add_lead"
	MarketingChangeLead   Code = "marketing.change_lead"
	MarketingDeleteLead   Code = "marketing.delete_lead"
	MarketingViewFollowUp Code = "marketing.view_followup"
	MarketingAdmin        Code = "marketing.admin"

	SalesViewOrder   Code = "sales.view_order"
	SalesAddOrder    Code = "sales.add_order"
	SalesChangeOrder Code = "sales.change_order"

	InventoryViewProduct   Code = "inventory.view_product"
	InventoryChangeProduct Code = "inventory.change_product"
	InventoryViewStock     Code = "inventory.view_stock"

	CustomersViewCustomer   Code = "customers.view_customer"
	CustomersChangeCustomer Code = "customers.change_customer"

	NotificationsViewNotification Code = "notifications.view_notification"

	AccountsViewUser   Code = "accounts.view_user"
	AccountsChangeUser Code = "accounts.change_user"
	AccountsViewRole   Code = "accounts.view_role"
)

// Catalog lists every known Code.
var Catalog = []Code{
	MarketingViewLead,
	MarketingAddLead,
	MarketingChangeLead,
	MarketingDeleteLead,
	MarketingViewFollowUp,
	MarketingAdmin,
	SalesViewOrder,
	SalesAddOrder,
	SalesChangeOrder,
	InventoryViewProduct,
	InventoryChangeProduct,
	InventoryViewStock,
	CustomersViewCustomer,
	CustomersChangeCustomer,
	NotificationsViewNotification,
	AccountsViewUser,
	AccountsChangeUser,
	AccountsViewRole,
}

// IsKnown reports whether raw is in the compiled catalog.
func IsKnown(raw string) bool {
	for _, c := range Catalog {
		if string(c) == raw {
			return true
		}
	}
	return false
}
