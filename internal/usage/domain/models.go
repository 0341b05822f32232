// Package domain contains usage limit and usage event models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Unit string

const (
	UnitKB Unit = "KB"
	UnitMB Unit = "MB"
	UnitGB Unit = "GB"
	UnitTB Unit = "TB"
)

type ExceedAction string

const (
	ExceedActionNotify   ExceedAction = "notify"
	ExceedActionRestrict ExceedAction = "restrict"
)

type UsageType string

const (
	UsageTypeProcessing UsageType = "processing"
	UsageTypeStorage    UsageType = "storage"
)

// UsageLimit expresses a monthly threshold either as a data volume or as a
// currency amount.
type UsageLimit struct {
	ID               snowflake.ID                `gorm:"primaryKey" json:"usage_limit_id"`
	CustomerID       string                      `gorm:"size:191;not null;index" json:"customer_id"`
	UsageLimitValue  *float64                    `json:"usage_limit_value,omitempty"`
	UsageUnit        *Unit                       `gorm:"type:text" json:"usage_unit,omitempty"`
	AmountLimitValue *float64                    `json:"amount_limit_value,omitempty"`
	ExceedAction     ExceedAction                `gorm:"type:text;not null" json:"exceed_action"`
	Emails           datatypes.JSONSlice[string] `gorm:"not null" json:"emails"`
	CreatedAt        time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"not null" json:"updated_at"`
}

func (UsageLimit) TableName() string { return "usage_limits" }

// DataUsage is an append-only record of one processing or storage event.
type DataUsage struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"data_usage_id"`
	CustomerID          string       `gorm:"size:191;not null;index:idx_data_usages_customer_created,priority:1" json:"customer_id"`
	UserID              string       `gorm:"type:text;not null" json:"user_id"`
	ProcessingHistoryID string       `gorm:"type:text;not null" json:"processing_history_id"`
	PolicyID            string       `gorm:"type:text;not null" json:"policy_id"`
	UsageAmountBytes    int64        `gorm:"not null" json:"usage_amount_bytes"`
	UsageType           UsageType    `gorm:"type:text;not null" json:"usage_type"`
	CreatedAt           time.Time    `gorm:"not null;index:idx_data_usages_customer_created,priority:2" json:"created_at"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
}

func (DataUsage) TableName() string { return "data_usages" }

// UsageTotal is a per-type sum of usage bytes.
type UsageTotal struct {
	UsageType UsageType `gorm:"column:usage_type"`
	Bytes     int64     `gorm:"column:bytes"`
}

func UnitPtr(u Unit) *Unit { return &u }

func Float64Ptr(v float64) *float64 { return &v }
