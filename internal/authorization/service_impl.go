package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCompany    = "company"
	ObjectProfile    = "profile"
	ObjectPayment    = "payment"
	ObjectUpload     = "upload"
	ObjectUsageLimit = "usage_limit"
	ObjectDeletion   = "deletion"
)

const (
	ActionCompanyCreate = "company.create"
	ActionAdminCreate   = "profile.create_admin"
	ActionProfileView   = "profile.view"
	ActionProfileUpdate = "profile.update"

	ActionPaymentView   = "payment.view"
	ActionPaymentManage = "payment.manage"

	ActionUploadSupport = "upload.support"
	ActionUploadService = "upload.service"

	ActionUsageLimitView   = "usage_limit.view"
	ActionUsageLimitManage = "usage_limit.manage"

	ActionDeletionView    = "deletion.view"
	ActionDeletionRequest = "deletion.request"
	ActionDeletionRestore = "deletion.restore"
)

// Users without a role are mid sign-up and may only finish onboarding.
const (
	RolePending = "role:pending"
	RoleUser    = "role:user"
	RoleAdmin   = "role:admin"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := SubjectForRole(role)
	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// SubjectForRole maps the custom:role attribute to a casbin subject.
func SubjectForRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case identitydomain.RoleAdmin:
		return RoleAdmin
	case identitydomain.RoleUser:
		return RoleUser
	default:
		return RolePending
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Onboarding
		{RolePending, ObjectCompany, ActionCompanyCreate},
		{RolePending, ObjectProfile, ActionAdminCreate},

		// Tenant members
		{RoleUser, ObjectProfile, ActionProfileView},
		{RoleUser, ObjectProfile, ActionProfileUpdate},
		{RoleUser, ObjectUpload, ActionUploadSupport},
		{RoleUser, ObjectUpload, ActionUploadService},
		{RoleUser, ObjectUsageLimit, ActionUsageLimitView},
		{RoleUser, ObjectDeletion, ActionDeletionView},

		// Tenant admins
		{RoleAdmin, ObjectPayment, ActionPaymentView},
		{RoleAdmin, ObjectPayment, ActionPaymentManage},
		{RoleAdmin, ObjectUsageLimit, ActionUsageLimitManage},
		{RoleAdmin, ObjectDeletion, ActionDeletionRequest},
		{RoleAdmin, ObjectDeletion, ActionDeletionRestore},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Admins hold every member permission.
	if _, err := enforcer.AddGroupingPolicy(RoleAdmin, RoleUser); err != nil {
		return err
	}
	return nil
}
