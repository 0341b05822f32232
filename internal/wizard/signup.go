package wizard

import identitydomain "github.com/smallbiznis/portal/internal/identity/domain"

type SignupStep string

const (
	SignupAccount     SignupStep = "account"
	SignupVerifyEmail SignupStep = "verify_email"
	SignupCompany     SignupStep = "company"
	SignupAdmin       SignupStep = "admin"
	SignupPayment     SignupStep = "payment"
	SignupComplete    SignupStep = "complete"
)

type SignupEventKind string

const (
	SignupAccountCreated   SignupEventKind = "account_created"
	SignupEmailVerified    SignupEventKind = "email_verified"
	SignupCompanyCreated   SignupEventKind = "company_created"
	SignupAdminCreated     SignupEventKind = "admin_created"
	SignupPaymentCompleted SignupEventKind = "payment_completed"
	SignupFailed           SignupEventKind = "failed"
	SignupBack             SignupEventKind = "back"
)

type SignupState struct {
	Step       SignupStep `json:"step"`
	Email      string     `json:"email,omitempty"`
	CustomerID string     `json:"customer_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type SignupEvent struct {
	Kind       SignupEventKind
	Email      string
	CustomerID string
	Error      string
}

var signupNext = map[SignupStep]struct {
	on   SignupEventKind
	next SignupStep
}{
	SignupAccount:     {SignupAccountCreated, SignupVerifyEmail},
	SignupVerifyEmail: {SignupEmailVerified, SignupCompany},
	SignupCompany:     {SignupCompanyCreated, SignupAdmin},
	SignupAdmin:       {SignupAdminCreated, SignupPayment},
	SignupPayment:     {SignupPaymentCompleted, SignupComplete},
}

// signupBack lists the only steps that may be left backwards. Later steps
// have already written to external services.
var signupBack = map[SignupStep]SignupStep{
	SignupVerifyEmail: SignupAccount,
}

func NewSignup() SignupState {
	return SignupState{Step: SignupAccount}
}

// ResumeSignup picks the first unfinished step for a signed-in user.
func ResumeSignup(attrs identitydomain.Attributes) SignupState {
	state := SignupState{Email: attrs.Email, CustomerID: attrs.CustomerID}
	switch {
	case !attrs.HasCompany():
		state.Step = SignupCompany
	case !attrs.IsAdmin():
		state.Step = SignupAdmin
	case !attrs.HasPaymentMethod():
		state.Step = SignupPayment
	default:
		state.Step = SignupComplete
	}
	return state
}

func ReduceSignup(state SignupState, ev SignupEvent) (SignupState, error) {
	switch ev.Kind {
	case SignupFailed:
		if state.Step == SignupComplete {
			return state, ErrInvalidTransition
		}
		state.Error = ev.Error
		return state, nil
	case SignupBack:
		prev, ok := signupBack[state.Step]
		if !ok {
			return state, ErrInvalidTransition
		}
		state.Step = prev
		state.Error = ""
		return state, nil
	}

	edge, ok := signupNext[state.Step]
	if !ok || edge.on != ev.Kind {
		return state, ErrInvalidTransition
	}
	switch ev.Kind {
	case SignupAccountCreated:
		state.Email = ev.Email
	case SignupCompanyCreated:
		state.CustomerID = ev.CustomerID
	}
	state.Step = edge.next
	state.Error = ""
	return state, nil
}

func (s SignupState) Done() bool {
	return s.Step == SignupComplete
}
