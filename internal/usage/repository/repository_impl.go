package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portal/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertLimit(ctx context.Context, db *gorm.DB, limit *domain.UsageLimit) error {
	return db.WithContext(ctx).Create(limit).Error
}

func (r *repo) UpdateLimit(ctx context.Context, db *gorm.DB, limit *domain.UsageLimit) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.UsageLimit{}).
		Where("id = ? AND customer_id = ?", limit.ID, limit.CustomerID).
		Updates(map[string]any{
			"usage_limit_value":  limit.UsageLimitValue,
			"usage_unit":         limit.UsageUnit,
			"amount_limit_value": limit.AmountLimitValue,
			"exceed_action":      limit.ExceedAction,
			"emails":             limit.Emails,
			"updated_at":         limit.UpdatedAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) DeleteLimit(ctx context.Context, db *gorm.DB, customerID string, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM usage_limits WHERE id = ? AND customer_id = ?`,
		id,
		customerID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FindLimit(ctx context.Context, db *gorm.DB, customerID string, id snowflake.ID) (*domain.UsageLimit, error) {
	var limit domain.UsageLimit
	err := db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", id, customerID).
		Take(&limit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &limit, nil
}

func (r *repo) ListLimits(ctx context.Context, db *gorm.DB, customerID string) ([]domain.UsageLimit, error) {
	var limits []domain.UsageLimit
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at asc, id asc").
		Find(&limits).Error
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, usage *domain.DataUsage) error {
	return db.WithContext(ctx).Create(usage).Error
}

func (r *repo) SumUsageSince(ctx context.Context, db *gorm.DB, customerID string, since time.Time) ([]domain.UsageTotal, error) {
	var totals []domain.UsageTotal
	err := db.WithContext(ctx).Raw(
		`SELECT usage_type, COALESCE(SUM(usage_amount_bytes), 0) AS bytes
		 FROM data_usages
		 WHERE customer_id = ? AND created_at >= ?
		 GROUP BY usage_type`,
		customerID,
		since,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}
