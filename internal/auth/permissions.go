package auth

import "sort"

type Permission string

const (
	PermEventsEdit              Permission = "events:edit"
	PermEventsOrganizeAll       Permission = "events:organizeAll"
	PermCancelAnyRegistration   Permission = "events:registrations:cancel:any"
	PermCancelWithoutRefund     Permission = "events:registrations:cancelWithoutRefund"
	PermTemplatesView           Permission = "templates:view"
	PermFinanceViewReceipts     Permission = "finance:viewReceipts"
	PermFinanceApproveReceipts  Permission = "finance:approveReceipts"
	PermFinanceRefundReceipts   Permission = "finance:refundReceipts"
	PermFinanceViewTransactions Permission = "finance:viewTransactions"
	PermAdminChangeSettings     Permission = "admin:changeSettings"
	PermAdminManageTaxes        Permission = "admin:manageTaxes"
)

type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[Permission(p)] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Strings returns the set sorted.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}
