package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/usage/domain"
	"github.com/smallbiznis/portal/internal/usage/repository"
	"github.com/smallbiznis/portal/internal/usage/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.ExceededNotice
	err     error
}

func (n *recordingNotifier) NotifyLimitExceeded(ctx context.Context, notice domain.ExceededNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, zero string) fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	policy := config.DefaultPolicy()
	policy.Usage.ZeroThreshold = zero

	clk := clock.NewFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	svc := service.New(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Clock:    clk,
		Policy:   config.NewStaticPolicyHolder(policy),
		Notifier: notifier,
	})
	return fixture{svc: svc, db: db, clock: clk, notifier: notifier}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:usage_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&domain.UsageLimit{}, &domain.DataUsage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreateLimitValidation(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateLimitRequest
		want error
	}{
		{"missing customer", domain.CreateLimitRequest{AmountLimitValue: domain.Float64Ptr(1), ExceedAction: "restrict"}, domain.ErrInvalidCustomer},
		{"no threshold", domain.CreateLimitRequest{CustomerID: "c1", ExceedAction: "restrict"}, domain.ErrInvalidThreshold},
		{"both thresholds", domain.CreateLimitRequest{CustomerID: "c1", UsageLimitValue: domain.Float64Ptr(1), UsageUnit: "MB", AmountLimitValue: domain.Float64Ptr(1), ExceedAction: "restrict"}, domain.ErrInvalidThreshold},
		{"negative", domain.CreateLimitRequest{CustomerID: "c1", AmountLimitValue: domain.Float64Ptr(-1), ExceedAction: "restrict"}, domain.ErrInvalidThreshold},
		{"bad unit", domain.CreateLimitRequest{CustomerID: "c1", UsageLimitValue: domain.Float64Ptr(1), UsageUnit: "PB", ExceedAction: "restrict"}, domain.ErrInvalidUnit},
		{"bad action", domain.CreateLimitRequest{CustomerID: "c1", AmountLimitValue: domain.Float64Ptr(1), ExceedAction: "drop"}, domain.ErrInvalidExceedAction},
		{"notify without emails", domain.CreateLimitRequest{CustomerID: "c1", AmountLimitValue: domain.Float64Ptr(1), ExceedAction: "notify"}, domain.ErrInvalidEmails},
		{"malformed email", domain.CreateLimitRequest{CustomerID: "c1", AmountLimitValue: domain.Float64Ptr(1), ExceedAction: "notify", Emails: []string{"nope"}}, domain.ErrInvalidEmails},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateLimit(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLimitLifecycle(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	ctx := context.Background()

	created, err := f.svc.CreateLimit(ctx, domain.CreateLimitRequest{
		CustomerID:      "c1",
		UsageLimitValue: domain.Float64Ptr(100),
		UsageUnit:       "mb",
		ExceedAction:    "notify",
		Emails:          []string{" Ops@Example.com ", "ops@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.UnitMB, *created.UsageUnit)
	require.Equal(t, []string{"ops@example.com"}, []string(created.Emails))

	got, err := f.svc.GetLimit(ctx, "c1", created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.svc.GetLimit(ctx, "other", created.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := f.svc.UpdateLimit(ctx, domain.UpdateLimitRequest{
		ID: created.ID.String(),
		CreateLimitRequest: domain.CreateLimitRequest{
			CustomerID:       "c1",
			AmountLimitValue: domain.Float64Ptr(50),
			ExceedAction:     "restrict",
		},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.UsageLimitValue)
	assert.Equal(t, 50.0, *updated.AmountLimitValue)
	assert.Equal(t, domain.ExceedActionRestrict, updated.ExceedAction)

	_, err = f.svc.UpdateLimit(ctx, domain.UpdateLimitRequest{
		ID: "12345",
		CreateLimitRequest: domain.CreateLimitRequest{
			CustomerID:       "c1",
			AmountLimitValue: domain.Float64Ptr(50),
			ExceedAction:     "restrict",
		},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	limits, err := f.svc.ListLimits(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, limits, 1)

	require.NoError(t, f.svc.DeleteLimit(ctx, "c1", created.ID.String()))
	assert.ErrorIs(t, f.svc.DeleteLimit(ctx, "c1", created.ID.String()), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteLimit(ctx, "c1", "not-an-id"), domain.ErrInvalidID)
}

func TestRecordUsageNotifiesOncePerCrossing(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	ctx := context.Background()

	_, err := f.svc.CreateLimit(ctx, domain.CreateLimitRequest{
		CustomerID:      "c1",
		UsageLimitValue: domain.Float64Ptr(1),
		UsageUnit:       "KB",
		ExceedAction:    "notify",
		Emails:          []string{"ops@example.com"},
	})
	require.NoError(t, err)

	first, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{
		CustomerID: "c1", UserID: "u1", UsageType: "processing", UsageAmountBytes: 1000,
	})
	require.NoError(t, err)
	assert.Empty(t, first.Evaluation.Exceeded)
	assert.Empty(t, first.Notified)

	second, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{
		CustomerID: "c1", UserID: "u1", UsageType: "processing", UsageAmountBytes: 100,
	})
	require.NoError(t, err)
	require.Len(t, second.Evaluation.Exceeded, 1)
	assert.Len(t, second.Notified, 1)
	assert.Equal(t, "1 KB", second.Evaluation.Description)

	third, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{
		CustomerID: "c1", UserID: "u1", UsageType: "processing", UsageAmountBytes: 100,
	})
	require.NoError(t, err)
	assert.Empty(t, third.Notified)
	assert.Len(t, f.notifier.notices, 1)
	assert.Equal(t, int64(1100), f.notifier.notices[0].UsageBytes)
}

func TestRecordUsageStorageDoesNotCountTowardLimits(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	ctx := context.Background()

	_, err := f.svc.CreateLimit(ctx, domain.CreateLimitRequest{
		CustomerID: "c1", UsageLimitValue: domain.Float64Ptr(1), UsageUnit: "KB", ExceedAction: "restrict",
	})
	require.NoError(t, err)

	res, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{
		CustomerID: "c1", UserID: "u1", UsageType: "storage", UsageAmountBytes: 1 << 20,
	})
	require.NoError(t, err)
	assert.False(t, res.Evaluation.Restricted)

	summary, err := f.svc.MonthlyUsage(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), summary.StorageBytes)
	assert.Equal(t, int64(0), summary.ProcessingBytes)
	assert.Equal(t, int64(1<<20), summary.TotalBytes)
}

func TestMonthlyUsageResetsAtMonthBoundary(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	ctx := context.Background()

	_, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{
		CustomerID: "c1", UserID: "u1", UsageType: "processing", UsageAmountBytes: 500,
	})
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 6, 1, 0, 0, 1, 0, time.UTC))
	summary, err := f.svc.MonthlyUsage(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.ProcessingBytes)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), summary.PeriodStart)
}

func TestEvaluateZeroThresholdTriState(t *testing.T) {
	ctx := context.Background()
	zeroLimit := domain.CreateLimitRequest{
		CustomerID: "c1", AmountLimitValue: domain.Float64Ptr(0), ExceedAction: "restrict",
	}

	open := newFixture(t, config.ZeroThresholdUnlimited)
	_, err := open.svc.CreateLimit(ctx, zeroLimit)
	require.NoError(t, err)
	eval, err := open.svc.Evaluate(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, eval.Restricted)

	blocked := newFixture(t, config.ZeroThresholdBlock)
	_, err = blocked.svc.CreateLimit(ctx, zeroLimit)
	require.NoError(t, err)
	eval, err = blocked.svc.Evaluate(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, eval.Restricted)
}

func TestRecordUsageNotifierFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	f.notifier.err = errors.New("smtp down")
	ctx := context.Background()

	_, err := f.svc.CreateLimit(ctx, domain.CreateLimitRequest{
		CustomerID: "c1", AmountLimitValue: domain.Float64Ptr(0.001), ExceedAction: "notify", Emails: []string{"a@b.co"},
	})
	require.NoError(t, err)

	res, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{
		CustomerID: "c1", UserID: "u1", UsageType: "processing", UsageAmountBytes: 1000,
	})
	require.NoError(t, err)
	assert.Len(t, res.Evaluation.Exceeded, 1)
	assert.Empty(t, res.Notified)
}

func TestRecordUsageValidation(t *testing.T) {
	f := newFixture(t, config.ZeroThresholdUnlimited)
	ctx := context.Background()

	_, err := f.svc.RecordUsage(ctx, domain.RecordUsageRequest{CustomerID: "c1", UserID: "u1", UsageType: "bandwidth"})
	assert.ErrorIs(t, err, domain.ErrInvalidUsageType)
	_, err = f.svc.RecordUsage(ctx, domain.RecordUsageRequest{CustomerID: "c1", UserID: "u1", UsageType: "processing", UsageAmountBytes: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidUsageAmount)
	_, err = f.svc.RecordUsage(ctx, domain.RecordUsageRequest{CustomerID: "c1", UsageType: "processing"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}
