package domain

import (
	"context"
	"errors"
)

type CreateProfileRequest struct {
	UserID     string
	UserName   string
	Email      string
	CustomerID string
	Department string
	Position   string
	Role       string
	Locale     string
}

type UpdateDetailsRequest struct {
	UserID     string `json:"-"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

type Service interface {
	Create(ctx context.Context, req CreateProfileRequest) (*UserProfile, error)
	Get(ctx context.Context, userID string) (*UserProfile, error)
	ListByCustomer(ctx context.Context, customerID string) ([]UserProfile, error)
	UpdateDetails(ctx context.Context, req UpdateDetailsRequest) (*UserProfile, error)
}

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidUserName = errors.New("invalid_user_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrAlreadyExists   = errors.New("profile_already_exists")
	ErrNotFound        = errors.New("profile_not_found")
)
