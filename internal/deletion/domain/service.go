package domain

import (
	"context"
	"errors"
	"time"

	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
)

type RestoreResult struct {
	Status DeletionStatus `json:"status"`
	// Restored is false when nothing was pending.
	Restored      bool          `json:"restored"`
	AffectedUsers int           `json:"affected_users"`
	Failed        []UserFailure `json:"failed,omitempty"`
	// Redirect forces a full reload so gated views re-evaluate.
	Redirect string `json:"redirect"`
}

// UserFailure is a tenant user whose attribute write failed. Kind is the
// identity error kind.
type UserFailure struct {
	Username string `json:"username"`
	Kind     string `json:"kind"`
}

type Service interface {
	Status(ctx context.Context, actor identitydomain.Attributes) (*DeletionStatus, error)
	RequestDeletion(ctx context.Context, actor identitydomain.Attributes) (*DeletionStatus, error)
	// Restore clears the deletion request. When expected is non-empty it must
	// match the stored timestamp, otherwise ErrConflict is returned.
	Restore(ctx context.Context, actor identitydomain.Attributes, expected string) (*RestoreResult, error)
}

// Locker serializes tenant-wide writes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

var (
	ErrForbidden = errors.New("deletion_forbidden")
	ErrNoCompany = errors.New("deletion_no_company")
	ErrConflict  = errors.New("deletion_conflict")
	ErrBusy      = errors.New("deletion_in_progress")
)
