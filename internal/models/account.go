package models

import (
	"time"
)

// AccountType distinguishes individual agents from agencies
type AccountType string

const (
	AccountTypeAgent  AccountType = "agent"
	AccountTypeAgency AccountType = "agency"
)

// Account is the user/account record that carries the suspension flag
type Account struct {
	Base
	Email            string      `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	DisplayName      string      `gorm:"type:varchar(255)" json:"display_name"`
	AccountType      AccountType `gorm:"type:varchar(20);not null;default:'agent'" json:"account_type"`
	IsSuspended      bool        `gorm:"not null;default:false" json:"is_suspended"`
	SuspendedAt      *time.Time  `json:"suspended_at,omitempty"`
	SuspensionReason *string     `gorm:"type:text" json:"suspension_reason,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}
