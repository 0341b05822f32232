package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/portal/internal/profile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.UserProfile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID string) ([]domain.UserProfile, error) {
	var profiles []domain.UserProfile
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at asc, user_id asc").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repo) UpdateDetails(ctx context.Context, db *gorm.DB, userID, department, position string, updatedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"department": department,
			"position":   position,
			"updated_at": updatedAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
