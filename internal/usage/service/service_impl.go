package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	obsmetrics "github.com/smallbiznis/portal/internal/observability/metrics"
	"github.com/smallbiznis/portal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var validate = validator.New()

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Policy   *config.PolicyHolder
	Notifier domain.Notifier     `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	policy   *config.PolicyHolder
	notifier domain.Notifier
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("usage.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		policy:   p.Policy,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateLimit(ctx context.Context, req domain.CreateLimitRequest) (*domain.UsageLimit, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}

	limit, err := buildLimit(req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	limit.ID = s.genID.Generate()
	limit.CustomerID = customerID
	limit.CreatedAt = now
	limit.UpdatedAt = now

	if err := s.repo.InsertLimit(ctx, s.db, &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

func (s *Service) UpdateLimit(ctx context.Context, req domain.UpdateLimitRequest) (*domain.UsageLimit, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	limit, err := buildLimit(req.CreateLimitRequest)
	if err != nil {
		return nil, err
	}
	limit.ID = id
	limit.CustomerID = customerID
	limit.UpdatedAt = s.clock.Now()

	affected, err := s.repo.UpdateLimit(ctx, s.db, &limit)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	stored, err := s.repo.FindLimit(ctx, s.db, customerID, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrNotFound
	}
	return stored, nil
}

func (s *Service) DeleteLimit(ctx context.Context, customerID, id string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.ErrInvalidCustomer
	}
	limitID, err := parseID(id)
	if err != nil {
		return err
	}
	affected, err := s.repo.DeleteLimit(ctx, s.db, customerID, limitID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) GetLimit(ctx context.Context, customerID, id string) (*domain.UsageLimit, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	limitID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	limit, err := s.repo.FindLimit(ctx, s.db, customerID, limitID)
	if err != nil {
		return nil, err
	}
	if limit == nil {
		return nil, domain.ErrNotFound
	}
	return limit, nil
}

func (s *Service) ListLimits(ctx context.Context, customerID string) ([]domain.UsageLimit, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	limits, err := s.repo.ListLimits(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if limits == nil {
		limits = []domain.UsageLimit{}
	}
	return limits, nil
}

func (s *Service) RecordUsage(ctx context.Context, req domain.RecordUsageRequest) (*domain.RecordUsageResult, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	usageType := domain.UsageType(strings.ToLower(strings.TrimSpace(req.UsageType)))
	if !usageType.Valid() {
		return nil, domain.ErrInvalidUsageType
	}
	if req.UsageAmountBytes < 0 {
		return nil, domain.ErrInvalidUsageAmount
	}

	limits, err := s.repo.ListLimits(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	summary, err := s.monthlySummary(ctx, customerID)
	if err != nil {
		return nil, err
	}

	usage := domain.DataUsage{
		ID:                  s.genID.Generate(),
		CustomerID:          customerID,
		UserID:              userID,
		ProcessingHistoryID: strings.TrimSpace(req.ProcessingHistoryID),
		PolicyID:            strings.TrimSpace(req.PolicyID),
		UsageAmountBytes:    req.UsageAmountBytes,
		UsageType:           usageType,
		CreatedAt:           s.clock.Now(),
		CompletedAt:         req.CompletedAt,
	}
	if err := s.repo.InsertUsage(ctx, s.db, &usage); err != nil {
		return nil, err
	}
	s.metrics.RecordUsageBytes(ctx, string(usageType), usage.UsageAmountBytes)

	policy := s.policy.Get()
	rate := policy.Usage.ProcessingRatePerByte
	zero := domain.ZeroPolicy(policy.Usage.ZeroThreshold)

	before := domain.EvaluateLimits(customerID, limits, summary.ProcessingBytes, rate, zero)
	afterBytes := summary.ProcessingBytes
	if usageType == domain.UsageTypeProcessing {
		afterBytes += usage.UsageAmountBytes
	}
	after := domain.EvaluateLimits(customerID, limits, afterBytes, rate, zero)

	result := &domain.RecordUsageResult{
		Usage:      usage,
		Evaluation: after,
		Notified:   []domain.UsageLimit{},
	}
	for _, limit := range domain.NewlyExceeded(before, after) {
		if limit.ExceedAction != domain.ExceedActionNotify || len(limit.Emails) == 0 {
			continue
		}
		if s.notify(ctx, customerID, limit, afterBytes) {
			result.Notified = append(result.Notified, limit)
		}
	}
	return result, nil
}

func (s *Service) MonthlyUsage(ctx context.Context, customerID string) (*domain.MonthlySummary, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	summary, err := s.monthlySummary(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Service) Evaluate(ctx context.Context, customerID string) (*domain.Evaluation, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	limits, err := s.repo.ListLimits(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	summary, err := s.monthlySummary(ctx, customerID)
	if err != nil {
		return nil, err
	}
	policy := s.policy.Get()
	eval := domain.EvaluateLimits(
		customerID,
		limits,
		summary.ProcessingBytes,
		policy.Usage.ProcessingRatePerByte,
		domain.ZeroPolicy(policy.Usage.ZeroThreshold),
	)
	return &eval, nil
}

func (s *Service) monthlySummary(ctx context.Context, customerID string) (domain.MonthlySummary, error) {
	start := domain.StartOfMonth(s.clock.Now())
	totals, err := s.repo.SumUsageSince(ctx, s.db, customerID, start)
	if err != nil {
		return domain.MonthlySummary{}, err
	}
	summary := domain.MonthlySummary{CustomerID: customerID, PeriodStart: start}
	for _, total := range totals {
		switch total.UsageType {
		case domain.UsageTypeProcessing:
			summary.ProcessingBytes += total.Bytes
		case domain.UsageTypeStorage:
			summary.StorageBytes += total.Bytes
		}
	}
	summary.TotalBytes = summary.ProcessingBytes + summary.StorageBytes
	return summary, nil
}

func (s *Service) notify(ctx context.Context, customerID string, limit domain.UsageLimit, usageBytes int64) bool {
	if s.notifier == nil {
		return false
	}
	err := s.notifier.NotifyLimitExceeded(ctx, domain.ExceededNotice{
		CustomerID:  customerID,
		Limit:       limit,
		UsageBytes:  usageBytes,
		Description: domain.FormatLimit(limit),
	})
	if err != nil {
		s.log.Warn("usage limit notification failed",
			zap.String("customer_id", customerID),
			zap.String("usage_limit_id", limit.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func buildLimit(req domain.CreateLimitRequest) (domain.UsageLimit, error) {
	hasVolume := req.UsageLimitValue != nil
	hasAmount := req.AmountLimitValue != nil
	if hasVolume == hasAmount {
		return domain.UsageLimit{}, domain.ErrInvalidThreshold
	}

	var limit domain.UsageLimit
	if hasVolume {
		value := *req.UsageLimitValue
		if !validAmount(value) {
			return domain.UsageLimit{}, domain.ErrInvalidThreshold
		}
		unit := domain.Unit(strings.ToUpper(strings.TrimSpace(req.UsageUnit)))
		if !unit.Valid() {
			return domain.UsageLimit{}, domain.ErrInvalidUnit
		}
		limit.UsageLimitValue = domain.Float64Ptr(value)
		limit.UsageUnit = domain.UnitPtr(unit)
	} else {
		amount := *req.AmountLimitValue
		if !validAmount(amount) {
			return domain.UsageLimit{}, domain.ErrInvalidThreshold
		}
		limit.AmountLimitValue = domain.Float64Ptr(amount)
	}

	action := domain.ExceedAction(strings.ToLower(strings.TrimSpace(req.ExceedAction)))
	if !action.Valid() {
		return domain.UsageLimit{}, domain.ErrInvalidExceedAction
	}
	limit.ExceedAction = action

	emails, err := normalizeEmails(req.Emails)
	if err != nil {
		return domain.UsageLimit{}, err
	}
	if action == domain.ExceedActionNotify && len(emails) == 0 {
		return domain.UsageLimit{}, domain.ErrInvalidEmails
	}
	limit.Emails = datatypes.JSONSlice[string](emails)
	return limit, nil
}

func normalizeEmails(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, email := range raw {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if err := validate.Var(email, "email"); err != nil {
			return nil, domain.ErrInvalidEmails
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
