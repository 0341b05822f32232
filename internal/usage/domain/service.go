package domain

import (
	"context"
	"errors"
	"time"
)

type CreateLimitRequest struct {
	CustomerID       string   `json:"-"`
	UsageLimitValue  *float64 `json:"usage_limit_value"`
	UsageUnit        string   `json:"usage_unit"`
	AmountLimitValue *float64 `json:"amount_limit_value"`
	ExceedAction     string   `json:"exceed_action"`
	Emails           []string `json:"emails"`
}

type UpdateLimitRequest struct {
	ID string `json:"-"`
	CreateLimitRequest
}

type RecordUsageRequest struct {
	CustomerID          string     `json:"customer_id"`
	UserID              string     `json:"user_id"`
	ProcessingHistoryID string     `json:"processing_history_id"`
	PolicyID            string     `json:"policy_id"`
	UsageAmountBytes    int64      `json:"usage_amount_bytes"`
	UsageType           string     `json:"usage_type"`
	CompletedAt         *time.Time `json:"completed_at"`
}

type RecordUsageResult struct {
	Usage      DataUsage  `json:"usage"`
	Evaluation Evaluation `json:"evaluation"`
	// Notified lists limits whose recipients were emailed by this record.
	Notified []UsageLimit `json:"notified"`
}

type Service interface {
	CreateLimit(ctx context.Context, req CreateLimitRequest) (*UsageLimit, error)
	UpdateLimit(ctx context.Context, req UpdateLimitRequest) (*UsageLimit, error)
	DeleteLimit(ctx context.Context, customerID, id string) error
	GetLimit(ctx context.Context, customerID, id string) (*UsageLimit, error)
	ListLimits(ctx context.Context, customerID string) ([]UsageLimit, error)

	RecordUsage(ctx context.Context, req RecordUsageRequest) (*RecordUsageResult, error)
	MonthlyUsage(ctx context.Context, customerID string) (*MonthlySummary, error)
	Evaluate(ctx context.Context, customerID string) (*Evaluation, error)
}

// ExceededNotice is handed to a Notifier for limits crossed by a usage record.
type ExceededNotice struct {
	CustomerID  string
	Limit       UsageLimit
	UsageBytes  int64
	Description string
}

// Notifier delivers exceed notifications. Delivery failures are logged, not retried.
type Notifier interface {
	NotifyLimitExceeded(ctx context.Context, notice ExceededNotice) error
}

var (
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidThreshold    = errors.New("invalid_threshold")
	ErrInvalidUnit         = errors.New("invalid_unit")
	ErrInvalidExceedAction = errors.New("invalid_exceed_action")
	ErrInvalidEmails       = errors.New("invalid_emails")
	ErrInvalidUsageType    = errors.New("invalid_usage_type")
	ErrInvalidUsageAmount  = errors.New("invalid_usage_amount")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrNotFound            = errors.New("not_found")
	ErrUsageRestricted     = errors.New("usage_restricted")
)
