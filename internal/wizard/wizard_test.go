package wizard

import (
	"testing"

	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupHappyPath(t *testing.T) {
	state := NewSignup()
	events := []SignupEvent{
		{Kind: SignupAccountCreated, Email: "a@acme.test"},
		{Kind: SignupEmailVerified},
		{Kind: SignupCompanyCreated, CustomerID: "cus_1"},
		{Kind: SignupAdminCreated},
		{Kind: SignupPaymentCompleted},
	}
	want := []SignupStep{SignupVerifyEmail, SignupCompany, SignupAdmin, SignupPayment, SignupComplete}

	for i, ev := range events {
		var err error
		state, err = ReduceSignup(state, ev)
		require.NoError(t, err, ev.Kind)
		assert.Equal(t, want[i], state.Step)
	}
	assert.True(t, state.Done())
	assert.Equal(t, "a@acme.test", state.Email)
	assert.Equal(t, "cus_1", state.CustomerID)
}

func TestSignupRejectsOutOfOrderEvents(t *testing.T) {
	state := NewSignup()
	next, err := ReduceSignup(state, SignupEvent{Kind: SignupCompanyCreated})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state, next)

	done := SignupState{Step: SignupComplete}
	_, err = ReduceSignup(done, SignupEvent{Kind: SignupPaymentCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = ReduceSignup(done, SignupEvent{Kind: SignupFailed, Error: "x"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSignupFailureKeepsStep(t *testing.T) {
	state := SignupState{Step: SignupCompany, Email: "a@acme.test"}
	next, err := ReduceSignup(state, SignupEvent{Kind: SignupFailed, Error: "card_declined"})
	require.NoError(t, err)
	assert.Equal(t, SignupCompany, next.Step)
	assert.Equal(t, "card_declined", next.Error)
	assert.Empty(t, state.Error, "input state is not mutated")

	next, err = ReduceSignup(next, SignupEvent{Kind: SignupCompanyCreated, CustomerID: "cus_2"})
	require.NoError(t, err)
	assert.Empty(t, next.Error)
}

func TestSignupBack(t *testing.T) {
	state := SignupState{Step: SignupVerifyEmail, Email: "a@acme.test"}
	next, err := ReduceSignup(state, SignupEvent{Kind: SignupBack})
	require.NoError(t, err)
	assert.Equal(t, SignupAccount, next.Step)

	for _, step := range []SignupStep{SignupAccount, SignupCompany, SignupAdmin, SignupPayment, SignupComplete} {
		_, err := ReduceSignup(SignupState{Step: step}, SignupEvent{Kind: SignupBack})
		assert.ErrorIs(t, err, ErrInvalidTransition, step)
	}
}

func TestResumeSignup(t *testing.T) {
	cases := []struct {
		attrs identitydomain.Attributes
		want  SignupStep
	}{
		{identitydomain.Attributes{}, SignupCompany},
		{identitydomain.Attributes{CustomerID: "cus_1"}, SignupAdmin},
		{identitydomain.Attributes{CustomerID: "cus_1", Role: "admin"}, SignupPayment},
		{identitydomain.Attributes{CustomerID: "cus_1", Role: "admin", PaymentMethodID: "pm_1"}, SignupComplete},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResumeSignup(tc.attrs).Step)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	state := NewForgotPassword()

	state, err := ReduceForgotPassword(state, ForgotEvent{Kind: ForgotCodeRequested, Email: "a@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, ForgotResetPassword, state.Step)

	state, err = ReduceForgotPassword(state, ForgotEvent{Kind: ForgotFailed, Error: "code_mismatch"})
	require.NoError(t, err)
	assert.Equal(t, ForgotResetPassword, state.Step)
	assert.Equal(t, "code_mismatch", state.Error)

	state, err = ReduceForgotPassword(state, ForgotEvent{Kind: ForgotCodeRequested, Email: "a@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, ForgotResetPassword, state.Step)
	assert.Empty(t, state.Error)

	back, err := ReduceForgotPassword(state, ForgotEvent{Kind: ForgotBack})
	require.NoError(t, err)
	assert.Equal(t, ForgotRequestCode, back.Step)

	state, err = ReduceForgotPassword(state, ForgotEvent{Kind: ForgotPasswordReset})
	require.NoError(t, err)
	assert.Equal(t, ForgotDone, state.Step)

	same, err := ReduceForgotPassword(state, ForgotEvent{Kind: ForgotBack})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state, same)
}

func TestForgotPasswordRejectsResetBeforeCode(t *testing.T) {
	_, err := ReduceForgotPassword(NewForgotPassword(), ForgotEvent{Kind: ForgotPasswordReset})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
