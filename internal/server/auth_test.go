package server

import (
	"net/http"
	"testing"

	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/session"
	"github.com/smallbiznis/portal/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wizardData struct {
	Wizard wizard.SignupState `json:"wizard"`
}

func TestSignUpValidationIsLocalized(t *testing.T) {
	h := newHarness(t)

	rec := h.postJSON("/ja/actions/sign-up", map[string]string{
		"email":            "not-an-email",
		"password":         "short",
		"password_confirm": "other",
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	res := decode(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, "入力内容を確認してください。", res.Message)
	assert.Contains(t, res.Errors, "email")
	assert.Contains(t, res.Errors, "password")
	assert.Contains(t, res.Errors, "password_confirm")
	assert.Empty(t, h.idp.Attributes("not-an-email"))
}

func TestSignUpRejectsUnsupportedLocale(t *testing.T) {
	h := newHarness(t)

	rec := h.postJSON("/en/actions/sign-up", map[string]string{
		"email":            "hana@acme.test",
		"password":         testPassword,
		"password_confirm": testPassword,
		"locale":           "it",
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, []string{"Choose a supported language."}, res.Errors["locale"])
}

func TestOnboardingFlow(t *testing.T) {
	h := newHarness(t)
	email := "hana@acme.test"

	rec := h.postJSON("/en/actions/sign-up", map[string]string{
		"email":            email,
		"password":         testPassword,
		"password_confirm": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var step wizardData
	decodeData(t, decode(t, rec), &step)
	assert.Equal(t, wizard.SignupVerifyEmail, step.Wizard.Step)
	assert.Equal(t, "en", h.idp.Attributes(email)[identitydomain.AttrLocale])

	rec = h.postJSON("/en/actions/sign-in", map[string]string{"email": email, "password": testPassword}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	decodeData(t, decode(t, rec), &step)
	assert.Equal(t, wizard.SignupVerifyEmail, step.Wizard.Step)

	rec = h.postJSON("/en/actions/sign-up/confirm", map[string]string{"email": email, "code": "000000"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.postJSON("/en/actions/sign-up/confirm", map[string]string{"email": email, "code": h.idp.LastCode(email)}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, decode(t, rec), &step)
	assert.Equal(t, wizard.SignupCompany, step.Wizard.Step)

	rec = h.postJSON("/en/actions/sign-in", map[string]string{"email": email, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, ok := cookieValue(rec, session.AccessTokenCookie)
	require.True(t, ok)
	cookies := responseCookies(rec)
	var signIn signInResponse
	decodeData(t, decode(t, rec), &signIn)
	require.NotNil(t, signIn.Wizard)
	assert.Equal(t, wizard.SignupCompany, signIn.Wizard.Step)

	rec = h.postJSON("/en/actions/admin", map[string]string{"user_name": "Hana"}, cookies)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.postJSON("/en/actions/company", map[string]string{
		"company_name":  "Acme",
		"billing_email": "billing@acme.test",
	}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, decode(t, rec), &step)
	assert.Equal(t, wizard.SignupAdmin, step.Wizard.Step)
	assert.Equal(t, "cus_1", h.idp.Attributes(email)[identitydomain.AttrCustomerID])

	rec = h.postJSON("/en/actions/company", map[string]string{
		"company_name":  "Acme",
		"billing_email": "billing@acme.test",
	}, cookies)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, h.payments.customers)

	rec = h.postJSON("/en/actions/admin", map[string]string{"user_name": "Hana", "department": "Ops"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, decode(t, rec), &step)
	assert.Equal(t, wizard.SignupPayment, step.Wizard.Step)
	assert.Equal(t, identitydomain.RoleAdmin, h.idp.Attributes(email)[identitydomain.AttrRole])

	rec = h.postJSON("/en/actions/payment/setup-intent", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.postJSON("/en/actions/payment/confirm", map[string]string{"payment_method_id": "card_1"}, cookies)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.postJSON("/en/actions/payment/confirm", map[string]string{"payment_method_id": "pm_1"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, decode(t, rec), &step)
	assert.Equal(t, wizard.SignupComplete, step.Wizard.Step)
	require.Len(t, h.payments.subscribed, 1)
	assert.Equal(t, 1, h.payments.subscribed[0].Anchor.Day())
	assert.Equal(t, "pm_1", h.idp.Attributes(email)[identitydomain.AttrPaymentMethodID])

	rec = h.postJSON("/en/actions/payment/confirm", map[string]string{"payment_method_id": "pm_2"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.payments.subscribed, 1)
	assert.Equal(t, []string{"pm_1", "pm_2"}, h.payments.attached)
}

func TestSignInWithMFA(t *testing.T) {
	h := newHarness(t)
	h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)
	h.idp.EnableMFA("admin@acme.test")

	rec := h.postJSON("/en/actions/sign-in", map[string]string{"email": "admin@acme.test", "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, hasAccess := cookieValue(rec, session.AccessTokenCookie)
	assert.False(t, hasAccess)
	var signIn signInResponse
	decodeData(t, decode(t, rec), &signIn)
	assert.True(t, signIn.MFARequired)
	assert.Equal(t, identitydomain.ChallengeSoftwareToken, signIn.Challenge)
	pending := responseCookies(rec)

	rec = h.postJSON("/en/actions/sign-in/2fa", map[string]string{"code": "12345"}, pending)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.postJSON("/en/actions/sign-in/2fa", map[string]string{"code": "654321"}, pending)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.postJSON("/en/actions/sign-in/2fa", map[string]string{"code": testCode}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.postJSON("/en/actions/sign-in/2fa", map[string]string{"code": testCode}, pending)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, hasAccess = cookieValue(rec, session.AccessTokenCookie)
	assert.True(t, hasAccess)
	decodeData(t, decode(t, rec), &signIn)
	require.NotNil(t, signIn.Wizard)
	assert.Equal(t, wizard.SignupComplete, signIn.Wizard.Step)
}

func TestSignInWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)

	rec := h.postJSON("/en/actions/sign-in", map[string]string{"email": "admin@acme.test", "password": "Wrong1234"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	res := decode(t, rec)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestSignOutRevokesSession(t *testing.T) {
	h := newHarness(t)
	cookies := h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)

	rec := h.postJSON("/en/actions/sign-out", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	value, ok := cookieValue(rec, session.AccessTokenCookie)
	assert.True(t, ok)
	assert.Empty(t, value)

	rec = h.getJSON("/en/api/profile", cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.getJSON("/en/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view sessionView
	decodeData(t, decode(t, rec), &view)
	assert.False(t, view.Authenticated)
}

func TestForgotPasswordFlow(t *testing.T) {
	h := newHarness(t)
	h.seedTenant("admin@acme.test", identitydomain.RoleAdmin, nil)

	rec := h.postJSON("/en/actions/forgot-password", map[string]string{"email": "admin@acme.test"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.postJSON("/en/actions/forgot-password/confirm", map[string]string{
		"email":            "admin@acme.test",
		"code":             testCode,
		"new_password":     "N3wPassword",
		"password_confirm": "N3wPasswor",
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Errors, "password_confirm")

	rec = h.postJSON("/en/actions/forgot-password/confirm", map[string]string{
		"email":            "admin@acme.test",
		"code":             testCode,
		"new_password":     "N3wPassword",
		"password_confirm": "N3wPassword",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.postJSON("/en/actions/sign-in", map[string]string{"email": "admin@acme.test", "password": "N3wPassword"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnsupportedLocaleRedirects(t *testing.T) {
	h := newHarness(t)

	rec := h.getJSON("/it/dictionary/common", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/en/dictionary/common", rec.Header().Get("Location"))
}
