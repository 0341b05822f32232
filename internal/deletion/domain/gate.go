package domain

import (
	"time"

	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
)

type Page string

const (
	PageDashboard Page = "dashboard"
	PageUpload    Page = "upload"
	PageUsage     Page = "usage"
	PageBilling   Page = "billing"
	PageUsers     Page = "users"
	PageAccount   Page = "account"
)

var gatedPages = map[Page]struct{}{
	PageDashboard: {},
	PageUpload:    {},
	PageUsage:     {},
	PageBilling:   {},
	PageUsers:     {},
}

// IsGated reports whether a page is hidden while the tenant awaits deletion.
func (p Page) IsGated() bool {
	_, ok := gatedPages[p]
	return ok
}

type View string

const (
	ViewNormal           View = "normal"
	ViewServiceSuspended View = "service_suspended"
	ViewDeletionPending  View = "deletion_pending"
)

// AccountPath is where admins manage a pending deletion.
const AccountPath = "/account"

type DeletionStatus struct {
	IsDeleted           bool          `json:"is_deleted"`
	DeletionRequestedAt string        `json:"deletion_requested_at,omitempty"`
	DeletionDate        *time.Time    `json:"deletion_date,omitempty"`
	DaysRemaining       int           `json:"days_remaining"`
	AffectedUsers       int           `json:"affected_users,omitempty"`
	Failed              []UserFailure `json:"failed,omitempty"`
}

// StatusFrom derives the status from the caller's attributes. A non-empty
// but unparseable timestamp still counts as deleted.
func StatusFrom(attrs identitydomain.Attributes, now time.Time, graceDays int) DeletionStatus {
	status := DeletionStatus{DeletionRequestedAt: attrs.DeletionRequestedAt}
	if attrs.DeletionRequestedAt == "" {
		return status
	}
	status.IsDeleted = true
	if date, ok := DeletionDate(attrs.DeletionRequestedAt, graceDays); ok {
		status.DeletionDate = &date
		status.DaysRemaining = daysBetween(now, date)
	}
	return status
}

type GateDecision struct {
	View               View           `json:"view"`
	Status             DeletionStatus `json:"status"`
	IsAdmin            bool           `json:"is_admin"`
	PageAccessible     bool           `json:"page_accessible"`
	CanRequestDeletion bool           `json:"can_request_deletion"`
	CanRestore         bool           `json:"can_restore"`
	MutationsAllowed   bool           `json:"mutations_allowed"`
	// Redirect is set when the page should send the caller elsewhere.
	Redirect string `json:"redirect,omitempty"`
}

// Gate decides what the caller sees on page.
//
// A live tenant sees normal content and only admins may request deletion. A
// deleted tenant's non-admins see the suspended view everywhere. A deleted
// tenant's admins keep the account page, where they can restore, and are sent
// there from gated pages. Mutations stay blocked while deletion is pending.
func Gate(attrs identitydomain.Attributes, page Page, now time.Time, graceDays int) GateDecision {
	status := StatusFrom(attrs, now, graceDays)
	admin := attrs.IsAdmin()
	decision := GateDecision{Status: status, IsAdmin: admin}

	switch {
	case !status.IsDeleted:
		decision.View = ViewNormal
		decision.PageAccessible = true
		decision.CanRequestDeletion = admin
		decision.MutationsAllowed = true
	case !admin:
		decision.View = ViewServiceSuspended
	default:
		decision.View = ViewDeletionPending
		decision.CanRestore = true
		decision.PageAccessible = !page.IsGated()
		if page.IsGated() {
			decision.Redirect = AccountPath
		}
	}
	return decision
}
