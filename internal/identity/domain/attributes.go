package domain

import "strings"

// Attribute names understood by the identity provider.
const (
	AttrSub                 = "sub"
	AttrEmail               = "email"
	AttrCustomerID          = "custom:customerId"
	AttrRole                = "custom:role"
	AttrPaymentMethodID     = "custom:paymentMethodId"
	AttrDeletionRequestedAt = "custom:deletionRequestedAt"
	AttrLocale              = "locale"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Attributes is the subset of user attributes the portal reads.
type Attributes struct {
	Username            string `json:"username"`
	Sub                 string `json:"sub"`
	Email               string `json:"email"`
	CustomerID          string `json:"customer_id"`
	Role                string `json:"role"`
	PaymentMethodID     string `json:"payment_method_id"`
	DeletionRequestedAt string `json:"deletion_requested_at"`
	Locale              string `json:"locale"`
}

// AttributesFromMap reads known attribute names; unknown names are ignored.
func AttributesFromMap(username string, m map[string]string) Attributes {
	return Attributes{
		Username:            username,
		Sub:                 m[AttrSub],
		Email:               m[AttrEmail],
		CustomerID:          m[AttrCustomerID],
		Role:                strings.ToLower(strings.TrimSpace(m[AttrRole])),
		PaymentMethodID:     m[AttrPaymentMethodID],
		DeletionRequestedAt: strings.TrimSpace(m[AttrDeletionRequestedAt]),
		Locale:              m[AttrLocale],
	}
}

func (a Attributes) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Attributes) HasCompany() bool {
	return strings.TrimSpace(a.CustomerID) != ""
}

func (a Attributes) HasPaymentMethod() bool {
	return strings.TrimSpace(a.PaymentMethodID) != ""
}

// Subject returns the stable id used as the profile key.
func (a Attributes) Subject() string {
	if a.Sub != "" {
		return a.Sub
	}
	return a.Username
}
