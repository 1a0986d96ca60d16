package models

import "time"

// LedgerEntry is one immutable fact about an account's points: a signed
// delta with a reason. Entries are only ever appended; there is no update
// path and no soft delete. The ledger is the sole source of truth for
// balances.
type LedgerEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index:idx_ledger_account_created,priority:1" json:"account_id"`
	Delta     int64     `gorm:"not null" json:"delta"` // positive = accrual, negative = redemption
	Reason    string    `gorm:"size:30;not null;index" json:"reason"`
	Reference string    `gorm:"size:128" json:"reference"` // correlation id, e.g. purchase request id
	CreatedAt time.Time `gorm:"index:idx_ledger_account_created,priority:2" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
