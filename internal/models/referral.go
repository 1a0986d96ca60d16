package models

import "time"

// ReferralCode is a unique invite code belonging to an account.
// Each account has at most one referral code.
type ReferralCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	Code      string    `gorm:"uniqueIndex;size:20;not null" json:"code"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

// ReferralUse records that a referee redeemed a code. The composite unique
// index is the hard guarantee that a given referee redeems a given code at
// most once, whatever races the service layer misses.
type ReferralUse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CodeID    uint      `gorm:"not null;uniqueIndex:idx_referral_use_code_referee,priority:1" json:"code_id"`
	RefereeID uint      `gorm:"not null;uniqueIndex:idx_referral_use_code_referee,priority:2" json:"referee_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReferralUse) TableName() string { return "referral_uses" }
