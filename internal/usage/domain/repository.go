package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertLimit(ctx context.Context, db *gorm.DB, limit *UsageLimit) error
	// UpdateLimit writes only when the row already exists and returns the affected row count.
	UpdateLimit(ctx context.Context, db *gorm.DB, limit *UsageLimit) (int64, error)
	DeleteLimit(ctx context.Context, db *gorm.DB, customerID string, id snowflake.ID) (int64, error)
	FindLimit(ctx context.Context, db *gorm.DB, customerID string, id snowflake.ID) (*UsageLimit, error)
	ListLimits(ctx context.Context, db *gorm.DB, customerID string) ([]UsageLimit, error)

	InsertUsage(ctx context.Context, db *gorm.DB, usage *DataUsage) error
	SumUsageSince(ctx context.Context, db *gorm.DB, customerID string, since time.Time) ([]UsageTotal, error)
}
