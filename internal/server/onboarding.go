package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/portal/internal/payment/domain"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	"github.com/smallbiznis/portal/internal/wizard"
	"go.uber.org/zap"
)

type createCompanyRequest struct {
	CompanyName  string `json:"company_name" form:"company_name" validate:"required,max=200"`
	BillingEmail string `json:"billing_email" form:"billing_email" validate:"required,email"`
}

type createAdminRequest struct {
	UserName   string `json:"user_name" form:"user_name" validate:"required,max=100"`
	Department string `json:"department" form:"department" validate:"max=100"`
	Position   string `json:"position" form:"position" validate:"max=100"`
}

type confirmPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" form:"payment_method_id" validate:"required,startswith=pm_"`
}

// CreateCompany registers the paying customer and links it to the caller.
func (s *Server) CreateCompany(c *gin.Context) {
	var req createCompanyRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	attrs, _ := s.attributes(c)
	state := wizard.SignupState{Step: wizard.SignupCompany, Email: attrs.Email}
	if attrs.HasCompany() {
		s.AbortWithError(c, ErrAlreadyRegistered)
		return
	}

	ctx := c.Request.Context()
	customer, err := s.payments.CreateCustomer(ctx, paymentdomain.CreateCustomerInput{
		Name:         strings.TrimSpace(req.CompanyName),
		BillingEmail: normalizeEmail(req.BillingEmail),
		UserSub:      attrs.Subject(),
	})
	if err != nil {
		s.failSignup(c, state, err)
		return
	}

	if err := s.updateOwnAttributes(c, map[string]string{identitydomain.AttrCustomerID: customer.ID}); err != nil {
		logger.FromContext(ctx).Error("link customer to user failed",
			zap.String("customer_id", customer.ID),
			zap.String("kind", string(identitydomain.KindOf(err))),
		)
		s.failSignup(c, state, err)
		return
	}

	next, err := wizard.ReduceSignup(state, wizard.SignupEvent{Kind: wizard.SignupCompanyCreated, CustomerID: customer.ID})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "company_created", gin.H{"customer": customer, "wizard": next})
}

// CreateAdmin makes the caller the tenant administrator and stores the profile.
func (s *Server) CreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	attrs, _ := s.attributes(c)
	state := wizard.SignupState{Step: wizard.SignupAdmin, Email: attrs.Email, CustomerID: attrs.CustomerID}
	if attrs.IsAdmin() {
		s.AbortWithError(c, ErrAlreadyRegistered)
		return
	}

	if err := s.updateOwnAttributes(c, map[string]string{identitydomain.AttrRole: identitydomain.RoleAdmin}); err != nil {
		s.failSignup(c, state, err)
		return
	}

	profile, err := s.profileSvc.Create(c.Request.Context(), profiledomain.CreateProfileRequest{
		UserID:     attrs.Subject(),
		UserName:   req.UserName,
		Email:      attrs.Email,
		CustomerID: attrs.CustomerID,
		Department: req.Department,
		Position:   req.Position,
		Role:       string(profiledomain.RoleAdmin),
		Locale:     s.lang(c),
	})
	if err != nil {
		s.failSignup(c, state, err)
		return
	}

	next, err := wizard.ReduceSignup(state, wizard.SignupEvent{Kind: wizard.SignupAdminCreated})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "admin_created", gin.H{"profile": profile, "wizard": next})
}

func (s *Server) CreateSetupIntent(c *gin.Context) {
	attrs, _ := s.attributes(c)
	intent, err := s.payments.CreateSetupIntent(c.Request.Context(), attrs.CustomerID)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "setup_intent_created", intent)
}

// ConfirmPayment makes the confirmed card the default. The first card also
// starts the subscription, anchored on the first day of next month.
func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	attrs, _ := s.attributes(c)
	state := wizard.ResumeSignup(attrs)
	ctx := c.Request.Context()
	methodID := strings.TrimSpace(req.PaymentMethodID)

	if err := s.payments.AttachDefaultPaymentMethod(ctx, attrs.CustomerID, methodID); err != nil {
		s.failSignup(c, state, err)
		return
	}

	var subscription *paymentdomain.Subscription
	if !attrs.HasPaymentMethod() {
		sub, err := s.payments.Subscribe(ctx, paymentdomain.SubscribeInput{
			CustomerID:      attrs.CustomerID,
			PaymentMethodID: methodID,
			Anchor:          paymentdomain.NextBillingAnchor(s.clock.Now()),
		})
		if err != nil {
			s.failSignup(c, state, err)
			return
		}
		subscription = sub
	}

	if err := s.updateOwnAttributes(c, map[string]string{identitydomain.AttrPaymentMethodID: methodID}); err != nil {
		logger.FromContext(ctx).Error("store payment method on user failed",
			zap.String("kind", string(identitydomain.KindOf(err))),
		)
		s.failSignup(c, state, err)
		return
	}

	next := state
	if state.Step == wizard.SignupPayment {
		reduced, err := wizard.ReduceSignup(state, wizard.SignupEvent{Kind: wizard.SignupPaymentCompleted})
		if err != nil {
			s.AbortWithError(c, err)
			return
		}
		next = reduced
	}
	s.respond(c, "payment_confirmed", gin.H{"subscription": subscription, "wizard": next})
}

// updateOwnAttributes writes attributes with the caller's token and drops the
// memoized user so later reads see the change.
func (s *Server) updateOwnAttributes(c *gin.Context, attrs map[string]string) error {
	token, ok := s.accessor.AccessToken(c)
	if !ok {
		return ErrUnauthorized
	}
	if err := s.identity.UpdateUserAttributes(c.Request.Context(), token, attrs); err != nil {
		return err
	}
	s.accessor.Forget(c)
	return nil
}
