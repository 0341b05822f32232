package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/session"
	"github.com/smallbiznis/portal/internal/observability/logger"
	"github.com/smallbiznis/portal/internal/wizard"
	"go.uber.org/zap"
)

type signUpRequest struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required,password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
	Locale          string `json:"locale" form:"locale" validate:"omitempty,locale"`
}

type confirmSignUpRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
	Code  string `json:"code" form:"code" validate:"required,otp"`
}

type emailRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type signInRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type verifyMFARequest struct {
	Code string `json:"code" form:"code" validate:"required,otp"`
}

type confirmForgotPasswordRequest struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	Code            string `json:"code" form:"code" validate:"required,otp"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required,password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=NewPassword"`
}

type signInResponse struct {
	MFARequired bool                `json:"mfa_required"`
	Challenge   string              `json:"challenge,omitempty"`
	Wizard      *wizard.SignupState `json:"wizard,omitempty"`
}

func (s *Server) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}

	state := wizard.NewSignup()
	email := normalizeEmail(req.Email)
	lang := req.Locale
	if lang == "" {
		lang = s.lang(c)
	}

	res, err := s.identity.SignUp(c.Request.Context(), identitydomain.SignUpInput{
		Email:    email,
		Password: req.Password,
		Locale:   s.locales.Resolve(lang),
	})
	if err != nil {
		s.failSignup(c, state, err)
		return
	}

	next, err := wizard.ReduceSignup(state, wizard.SignupEvent{Kind: wizard.SignupAccountCreated, Email: email})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "sign_up_succeeded", gin.H{
		"user_sub":  res.UserSub,
		"confirmed": res.Confirmed,
		"wizard":    next,
	})
}

func (s *Server) ConfirmSignUp(c *gin.Context) {
	var req confirmSignUpRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}

	email := normalizeEmail(req.Email)
	state := wizard.SignupState{Step: wizard.SignupVerifyEmail, Email: email}
	if err := s.identity.ConfirmSignUp(c.Request.Context(), email, strings.TrimSpace(req.Code)); err != nil {
		s.failSignup(c, state, err)
		return
	}

	next, err := wizard.ReduceSignup(state, wizard.SignupEvent{Kind: wizard.SignupEmailVerified})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "sign_up_confirmed", gin.H{"wizard": next})
}

func (s *Server) ResendCode(c *gin.Context) {
	var req emailRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	if err := s.identity.ResendConfirmationCode(c.Request.Context(), normalizeEmail(req.Email)); err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "code_resent", nil)
}

func (s *Server) SignIn(c *gin.Context) {
	var req signInRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(req.Email)
	res, err := s.identity.SignIn(ctx, email, req.Password)
	if err != nil {
		if identitydomain.KindOf(err) == identitydomain.KindUserNotConfirmed {
			s.failSignup(c, wizard.SignupState{Step: wizard.SignupVerifyEmail, Email: email}, err)
			return
		}
		s.AbortWithError(c, err)
		return
	}

	if res.Challenge != nil {
		s.sessions.SetMFASession(c, session.PendingMFA{
			Email:         email,
			ChallengeName: res.Challenge.Name,
			Session:       res.Challenge.Session,
		})
		s.respond(c, "mfa_required", signInResponse{MFARequired: true, Challenge: res.Challenge.Name})
		return
	}

	if res.Tokens == nil {
		s.AbortWithError(c, ErrUnauthorized)
		return
	}
	s.sessions.SetTokens(c, res.Tokens)
	s.respond(c, "sign_in_succeeded", signInResponse{Wizard: s.resumeSignup(c, res.Tokens)})
}

func (s *Server) VerifyMFA(c *gin.Context) {
	var req verifyMFARequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}

	pending, ok := s.sessions.ReadMFASession(c)
	if !ok {
		s.AbortWithError(c, identitydomain.ErrSessionExpired)
		return
	}

	tokens, err := s.identity.RespondToMFAChallenge(c.Request.Context(), identitydomain.MFAInput{
		Email:         pending.Email,
		ChallengeName: pending.ChallengeName,
		Session:       pending.Session,
		Code:          strings.TrimSpace(req.Code),
	})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}

	s.sessions.ClearMFASession(c)
	s.sessions.SetTokens(c, tokens)
	s.respond(c, "sign_in_succeeded", signInResponse{Wizard: s.resumeSignup(c, tokens)})
}

func (s *Server) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}

	email := normalizeEmail(req.Email)
	state := wizard.NewForgotPassword()
	if err := s.identity.ForgotPassword(c.Request.Context(), email); err != nil {
		s.failForgot(c, state, err)
		return
	}

	next, err := wizard.ReduceForgotPassword(state, wizard.ForgotEvent{Kind: wizard.ForgotCodeRequested, Email: email})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "password_reset_requested", gin.H{"wizard": next})
}

func (s *Server) ConfirmForgotPassword(c *gin.Context) {
	var req confirmForgotPasswordRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}

	email := normalizeEmail(req.Email)
	state := wizard.ForgotPasswordState{Step: wizard.ForgotResetPassword, Email: email}
	err := s.identity.ConfirmForgotPassword(c.Request.Context(), email, strings.TrimSpace(req.Code), req.NewPassword)
	if err != nil {
		s.failForgot(c, state, err)
		return
	}

	next, err := wizard.ReduceForgotPassword(state, wizard.ForgotEvent{Kind: wizard.ForgotPasswordReset})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "password_reset_succeeded", gin.H{"wizard": next})
}

// SignOut always clears the cookies, even when the provider call fails.
func (s *Server) SignOut(c *gin.Context) {
	ctx := c.Request.Context()
	if token, ok := s.accessor.AccessToken(c); ok {
		if err := s.identity.SignOut(ctx, token); err != nil {
			logger.FromContext(ctx).Warn("global sign out failed",
				zap.String("kind", string(identitydomain.KindOf(err))),
			)
		}
	}
	s.sessions.ClearTokens(c)
	s.sessions.ClearMFASession(c)
	s.accessor.Forget(c)
	s.respond(c, "sign_out_succeeded", nil)
}

// resumeSignup reads the fresh user to tell the client which onboarding step
// is next. A lookup failure only drops the hint.
func (s *Server) resumeSignup(c *gin.Context, tokens *identitydomain.Tokens) *wizard.SignupState {
	if tokens == nil || tokens.AccessToken == "" {
		return nil
	}
	ctx := c.Request.Context()
	user, err := s.identity.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		logger.FromContext(ctx).Warn("read user after sign in failed",
			zap.String("kind", string(identitydomain.KindOf(err))),
		)
		return nil
	}
	state := wizard.ResumeSignup(user.Attributes)
	return &state
}

func (s *Server) failSignup(c *gin.Context, state wizard.SignupState, err error) {
	next, rerr := wizard.ReduceSignup(state, wizard.SignupEvent{Kind: wizard.SignupFailed, Error: s.errorMessage(c, err)})
	if rerr != nil {
		s.AbortWithError(c, err)
		return
	}
	s.abortWith(c, err, gin.H{"wizard": next})
}

func (s *Server) failForgot(c *gin.Context, state wizard.ForgotPasswordState, err error) {
	next, rerr := wizard.ReduceForgotPassword(state, wizard.ForgotEvent{Kind: wizard.ForgotFailed, Error: s.errorMessage(c, err)})
	if rerr != nil {
		s.AbortWithError(c, err)
		return
	}
	s.abortWith(c, err, gin.H{"wizard": next})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
