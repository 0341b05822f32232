package domain

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// UserProfile is keyed by the identity provider's subject.
type UserProfile struct {
	UserID     string    `gorm:"primaryKey;size:191" json:"user_id"`
	UserName   string    `gorm:"type:text;not null" json:"user_name"`
	Email      string    `gorm:"type:text;not null" json:"email"`
	CustomerID string    `gorm:"size:191;not null;index" json:"customer_id"`
	Department string    `gorm:"size:255;not null;default:''" json:"department"`
	Position   string    `gorm:"size:255;not null;default:''" json:"position"`
	Role       Role      `gorm:"type:text;not null" json:"role"`
	Locale     string    `gorm:"size:16;not null;default:'en'" json:"locale"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }
