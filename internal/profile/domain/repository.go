package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *UserProfile) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*UserProfile, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID string) ([]UserProfile, error)
	UpdateDetails(ctx context.Context, db *gorm.DB, userID, department, position string, updatedAt time.Time) (int64, error)
}
