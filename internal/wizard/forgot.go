package wizard

type ForgotStep string

const (
	ForgotRequestCode   ForgotStep = "request_code"
	ForgotResetPassword ForgotStep = "reset_password"
	ForgotDone          ForgotStep = "done"
)

type ForgotEventKind string

const (
	ForgotCodeRequested ForgotEventKind = "code_requested"
	ForgotPasswordReset ForgotEventKind = "password_reset"
	ForgotFailed        ForgotEventKind = "failed"
	ForgotBack          ForgotEventKind = "back"
)

type ForgotPasswordState struct {
	Step  ForgotStep `json:"step"`
	Email string     `json:"email,omitempty"`
	Error string     `json:"error,omitempty"`
}

type ForgotEvent struct {
	Kind  ForgotEventKind
	Email string
	Error string
}

func NewForgotPassword() ForgotPasswordState {
	return ForgotPasswordState{Step: ForgotRequestCode}
}

func ReduceForgotPassword(state ForgotPasswordState, ev ForgotEvent) (ForgotPasswordState, error) {
	next := state
	next.Error = ""

	switch {
	case ev.Kind == ForgotCodeRequested && state.Step == ForgotRequestCode:
		next.Step = ForgotResetPassword
		next.Email = ev.Email
	case ev.Kind == ForgotCodeRequested && state.Step == ForgotResetPassword:
		// Resending keeps the user on the reset form.
		next.Email = ev.Email
	case ev.Kind == ForgotPasswordReset && state.Step == ForgotResetPassword:
		next.Step = ForgotDone
	case ev.Kind == ForgotBack && state.Step == ForgotResetPassword:
		next.Step = ForgotRequestCode
	case ev.Kind == ForgotFailed && state.Step != ForgotDone:
		next.Error = ev.Error
	default:
		return state, ErrInvalidTransition
	}
	return next, nil
}
