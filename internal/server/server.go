package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/portal/internal/authorization"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/deletion"
	deletiondomain "github.com/smallbiznis/portal/internal/deletion/domain"
	"github.com/smallbiznis/portal/internal/dictionary"
	"github.com/smallbiznis/portal/internal/identity"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/session"
	"github.com/smallbiznis/portal/internal/locale"
	"github.com/smallbiznis/portal/internal/observability"
	obsmiddleware "github.com/smallbiznis/portal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/portal/internal/observability/metrics"
	obstracing "github.com/smallbiznis/portal/internal/observability/tracing"
	"github.com/smallbiznis/portal/internal/payment"
	paymentdomain "github.com/smallbiznis/portal/internal/payment/domain"
	"github.com/smallbiznis/portal/internal/profile"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	"github.com/smallbiznis/portal/internal/providers"
	"github.com/smallbiznis/portal/internal/ratelimit"
	"github.com/smallbiznis/portal/internal/upload"
	uploaddomain "github.com/smallbiznis/portal/internal/upload/domain"
	"github.com/smallbiznis/portal/internal/usage"
	usagedomain "github.com/smallbiznis/portal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	locale.Module,
	dictionary.Module,
	providers.Module,
	identity.Module,
	payment.Module,
	authorization.Module,
	ratelimit.Module,
	profile.Module,
	usage.Module,
	upload.Module,
	deletion.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	clock       clock.Clock
	policy      *config.PolicyHolder
	locales     *locale.Resolver
	dict        *dictionary.Dictionary
	identity    identitydomain.Provider
	sessions    *session.Manager
	accessor    *session.Accessor
	payments    paymentdomain.Gateway
	profileSvc  profiledomain.Service
	usageSvc    usagedomain.Service
	uploadSvc   uploaddomain.Service
	deletionSvc deletiondomain.Service
	authzSvc    authorization.Service
	authLimiter *ratelimit.AuthLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Policy      *config.PolicyHolder
	Locales     *locale.Resolver
	Dict        *dictionary.Dictionary
	Identity    identitydomain.Provider
	Sessions    *session.Manager
	Accessor    *session.Accessor
	Payments    paymentdomain.Gateway
	ProfileSvc  profiledomain.Service
	UsageSvc    usagedomain.Service
	UploadSvc   uploaddomain.Service
	DeletionSvc deletiondomain.Service
	AuthzSvc    authorization.Service
	AuthLimiter *ratelimit.AuthLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		clock:       p.Clock,
		policy:      p.Policy,
		locales:     p.Locales,
		dict:        p.Dict,
		identity:    p.Identity,
		sessions:    p.Sessions,
		accessor:    p.Accessor,
		payments:    p.Payments,
		profileSvc:  p.ProfileSvc,
		usageSvc:    p.UsageSvc,
		uploadSvc:   p.UploadSvc,
		deletionSvc: p.DeletionSvc,
		authzSvc:    p.AuthzSvc,
		authLimiter: p.AuthLimiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerRootRoutes()
	svc.registerLocaleRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRootRoutes() {
	s.engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/"+s.locales.Match(c.GetHeader("Accept-Language"))+"/")
	})
}

func (s *Server) registerLocaleRoutes() {
	loc := s.engine.Group("/:locale", locale.Middleware(s.locales))

	loc.GET("/", s.Home)
	loc.GET("/dictionary/:page", s.GetDictionary)
	loc.GET("/session", s.GetSession)
	loc.GET("/gate/:page", s.SessionRequired(), s.GetGate)

	actions := loc.Group("/actions", s.ActionMetrics())
	{
		actions.POST("/sign-up", s.SignUp)
		actions.POST("/sign-up/confirm", s.ConfirmSignUp)
		actions.POST("/sign-up/resend", s.ResendCode)
		actions.POST("/sign-in", s.AuthRateLimit(rateLimitSignIn), s.SignIn)
		actions.POST("/sign-in/2fa", s.AuthRateLimit(rateLimitVerifyMFA), s.VerifyMFA)
		actions.POST("/forgot-password", s.AuthRateLimit(rateLimitForgotPassword), s.ForgotPassword)
		actions.POST("/forgot-password/confirm", s.AuthRateLimit(rateLimitForgotPassword), s.ConfirmForgotPassword)
		actions.POST("/sign-out", s.SignOut)
	}

	member := actions.Group("", s.SessionRequired())
	{
		member.POST("/company", s.authorize(authorization.ObjectCompany, authorization.ActionCompanyCreate), s.CreateCompany)

		// Restore is the only write a deleted tenant may perform.
		member.POST("/deletion/restore", s.CompanyRequired(), s.authorize(authorization.ObjectDeletion, authorization.ActionDeletionRestore), s.RestoreAccount)
	}

	tenant := member.Group("", s.CompanyRequired(), s.MutationsAllowed())
	{
		tenant.POST("/admin", s.authorize(authorization.ObjectProfile, authorization.ActionAdminCreate), s.CreateAdmin)

		tenant.POST("/payment/setup-intent", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentManage), s.CreateSetupIntent)
		tenant.POST("/payment/confirm", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentManage), s.ConfirmPayment)

		tenant.POST("/profile", s.authorize(authorization.ObjectProfile, authorization.ActionProfileUpdate), s.UpdateProfile)

		tenant.POST("/upload/support", s.authorize(authorization.ObjectUpload, authorization.ActionUploadSupport), s.UploadSupportFiles)
		tenant.POST("/upload/service", s.authorize(authorization.ObjectUpload, authorization.ActionUploadService), s.UploadServiceFiles)

		tenant.POST("/usage-limits", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitManage), s.CreateUsageLimit)
		tenant.PUT("/usage-limits/:id", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitManage), s.UpdateUsageLimit)
		tenant.DELETE("/usage-limits/:id", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitManage), s.DeleteUsageLimit)

		tenant.POST("/deletion/request", s.authorize(authorization.ObjectDeletion, authorization.ActionDeletionRequest), s.RequestDeletion)
	}

	api := loc.Group("/api", s.SessionRequired(), s.CompanyRequired())
	{
		api.GET("/profile", s.authorize(authorization.ObjectProfile, authorization.ActionProfileView), s.GetProfile)
		api.GET("/billing/invoices", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListInvoices)
		api.GET("/billing/payment-methods", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPaymentMethods)

		api.GET("/usage-limits", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitView), s.ListUsageLimits)
		api.GET("/usage-limits/:id", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitView), s.GetUsageLimit)
		api.GET("/usage/monthly", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitView), s.GetMonthlyUsage)
		api.GET("/usage/evaluation", s.authorize(authorization.ObjectUsageLimit, authorization.ActionUsageLimitView), s.EvaluateUsage)

		api.GET("/deletion/status", s.authorize(authorization.ObjectDeletion, authorization.ActionDeletionView), s.GetDeletionStatus)
	}
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal", s.InternalTokenRequired())
	internal.POST("/usage", s.RecordUsage)
}
