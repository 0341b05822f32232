package service

import (
	"context"
	"time"

	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/deletion/domain"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix  = "portal:deletion:"
	defaultLockTTL = 15 * time.Second
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Identity identitydomain.Provider
	Profiles profiledomain.Service
	Locker   domain.Locker
	Clock    clock.Clock
	Policy   *config.PolicyHolder
	LockTTL  time.Duration `name:"deletion_lock_ttl" optional:"true"`
}

type Service struct {
	log      *zap.Logger
	identity identitydomain.Provider
	profiles profiledomain.Service
	locker   domain.Locker
	clock    clock.Clock
	policy   *config.PolicyHolder
	lockTTL  time.Duration
}

func New(p Params) domain.Service {
	ttl := p.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Service{
		log:      p.Log.Named("deletion.service"),
		identity: p.Identity,
		profiles: p.Profiles,
		locker:   p.Locker,
		clock:    p.Clock,
		policy:   p.Policy,
		lockTTL:  ttl,
	}
}

func (s *Service) Status(ctx context.Context, actor identitydomain.Attributes) (*domain.DeletionStatus, error) {
	current, err := s.reload(ctx, actor)
	if err != nil {
		return nil, err
	}
	status := domain.StatusFrom(current, s.clock.Now(), s.graceDays())
	return &status, nil
}

// RequestDeletion stamps every user of the tenant with the request time. A
// pending request keeps its timestamp, and users still missing it are stamped
// again so an interrupted request can be retried.
func (s *Service) RequestDeletion(ctx context.Context, actor identitydomain.Attributes) (*domain.DeletionStatus, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}

	var status domain.DeletionStatus
	err := s.withTenantLock(ctx, actor.CustomerID, func() error {
		current, err := s.reload(ctx, actor)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		stamp := current.DeletionRequestedAt
		if stamp == "" {
			stamp = now.UTC().Format(time.RFC3339)
		}

		users, err := s.tenantUsers(ctx, actor)
		if err != nil {
			return err
		}
		attrs := map[string]string{identitydomain.AttrDeletionRequestedAt: stamp}
		affected, failed, err := s.eachUser(ctx, actor, users, "deletion stamp failed", func(username string) error {
			return s.identity.AdminUpdateUserAttributes(ctx, username, attrs)
		})
		if err != nil {
			return err
		}

		current.DeletionRequestedAt = stamp
		status = domain.StatusFrom(current, now, s.graceDays())
		status.AffectedUsers = affected
		status.Failed = failed
		s.log.Info("deletion requested",
			zap.String("customer_id", actor.CustomerID),
			zap.String("requested_by", actor.Subject()),
			zap.Int("affected_users", affected),
			zap.Int("failed_users", len(failed)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Restore clears the request on every tenant user. Calling it again after a
// partial failure clears whoever is left.
func (s *Service) Restore(ctx context.Context, actor identitydomain.Attributes, expected string) (*domain.RestoreResult, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}

	result := &domain.RestoreResult{Redirect: domain.AccountPath}
	err := s.withTenantLock(ctx, actor.CustomerID, func() error {
		current, err := s.reload(ctx, actor)
		if err != nil {
			return err
		}
		if expected != "" && current.DeletionRequestedAt != "" && current.DeletionRequestedAt != expected {
			return domain.ErrConflict
		}

		users, err := s.tenantUsers(ctx, actor)
		if err != nil {
			return err
		}
		names := []string{identitydomain.AttrDeletionRequestedAt}
		affected, failed, err := s.eachUser(ctx, actor, users, "deletion restore failed", func(username string) error {
			return s.identity.AdminDeleteUserAttributes(ctx, username, names)
		})
		if err != nil {
			return err
		}

		result.Restored = current.DeletionRequestedAt != ""
		result.AffectedUsers = affected
		result.Failed = failed
		current.DeletionRequestedAt = ""
		result.Status = domain.StatusFrom(current, s.clock.Now(), s.graceDays())
		if result.Restored {
			s.log.Info("deletion restored",
				zap.String("customer_id", actor.CustomerID),
				zap.String("restored_by", actor.Subject()),
				zap.Int("affected_users", affected),
				zap.Int("failed_users", len(failed)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// eachUser applies write to every user and keeps going past failures. Users
// the identity provider no longer knows are skipped, since their profile
// outlived the account. Only a failure on the actor, who is always first,
// aborts the operation.
func (s *Service) eachUser(ctx context.Context, actor identitydomain.Attributes, users []string, msg string, write func(username string) error) (int, []domain.UserFailure, error) {
	var (
		affected int
		failed   []domain.UserFailure
	)
	for i, username := range users {
		err := write(username)
		switch {
		case err == nil:
			affected++
		case identitydomain.KindOf(err) == identitydomain.KindUserNotFound && i > 0:
			s.log.Warn("skipping profile without identity user",
				zap.String("customer_id", actor.CustomerID),
				zap.String("username", username),
			)
		case i == 0:
			s.log.Error(msg, zap.String("customer_id", actor.CustomerID), zap.String("username", username), zap.Error(err))
			return 0, nil, err
		default:
			s.log.Error(msg, zap.String("customer_id", actor.CustomerID), zap.String("username", username), zap.Error(err))
			failed = append(failed, domain.UserFailure{Username: username, Kind: string(identitydomain.KindOf(err))})
		}
	}
	return affected, failed, nil
}

// reload reads the stored attributes instead of the session copy so
// conditional writes compare against the current value.
func (s *Service) reload(ctx context.Context, actor identitydomain.Attributes) (identitydomain.Attributes, error) {
	user, err := s.identity.AdminGetUser(ctx, actor.Username)
	if err != nil {
		return identitydomain.Attributes{}, err
	}
	return user.Attributes, nil
}

// tenantUsers returns the actor first, followed by every other profile of the
// tenant.
func (s *Service) tenantUsers(ctx context.Context, actor identitydomain.Attributes) ([]string, error) {
	profiles, err := s.profiles.ListByCustomer(ctx, actor.CustomerID)
	if err != nil {
		return nil, err
	}
	users := []string{actor.Username}
	seen := map[string]struct{}{actor.Username: {}, actor.Sub: {}}
	for _, profile := range profiles {
		if _, ok := seen[profile.UserID]; ok {
			continue
		}
		seen[profile.UserID] = struct{}{}
		users = append(users, profile.UserID)
	}
	return users, nil
}

func (s *Service) withTenantLock(ctx context.Context, customerID string, fn func() error) error {
	key := lockKeyPrefix + customerID
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrBusy
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("deletion lock release failed", zap.String("customer_id", customerID), zap.Error(err))
		}
	}()
	return fn()
}

func (s *Service) graceDays() int {
	return s.policy.Get().Deletion.GraceDays
}

func authorize(actor identitydomain.Attributes) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if !actor.HasCompany() {
		return domain.ErrNoCompany
	}
	return nil
}
