package models

import "time"

// LoyaltyAccount marks a customer as enrolled in the points program.
// The ID is the customer's id from the CRM; it is supplied by the caller,
// never generated here. The account row intentionally carries no balance:
// balance and tier are always derived from ledger entries.
type LoyaltyAccount struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LoyaltyAccount) TableName() string { return "loyalty_accounts" }
