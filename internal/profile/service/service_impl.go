package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/profile/domain"
	"github.com/smallbiznis/portal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var validate = validator.New()

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("profile.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProfileRequest) (*domain.UserProfile, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		return nil, domain.ErrInvalidUserName
	}
	email := strings.TrimSpace(req.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	role := domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = "en"
	}

	now := s.clock.Now()
	profile := domain.UserProfile{
		UserID:     userID,
		UserName:   userName,
		Email:      email,
		CustomerID: customerID,
		Department: strings.TrimSpace(req.Department),
		Position:   strings.TrimSpace(req.Position),
		Role:       role,
		Locale:     locale,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &profile); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return &profile, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	profile, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]domain.UserProfile, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	profiles, err := s.repo.ListByCustomer(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []domain.UserProfile{}
	}
	return profiles, nil
}

// UpdateDetails only touches department and position.
func (s *Service) UpdateDetails(ctx context.Context, req domain.UpdateDetailsRequest) (*domain.UserProfile, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	affected, err := s.repo.UpdateDetails(ctx, s.db, userID,
		strings.TrimSpace(req.Department),
		strings.TrimSpace(req.Position),
		s.clock.Now(),
	)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, userID)
}
