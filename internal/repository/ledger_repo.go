package repository

import (
	"time"

	"loyalcrm/internal/models"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

// Append stores a new immutable ledger entry and returns its assigned id.
func (r *LedgerRepository) Append(entry *models.LedgerEntry) (uint, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := r.db.Create(entry).Error; err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// ListByAccountID returns the account's entries ordered oldest first.
func (r *LedgerRepository) ListByAccountID(accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	var list []models.LedgerEntry
	q := r.db.Where("account_id = ?", accountID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	err := q.Find(&list).Error
	return list, err
}

// ListRecentByAccountID returns the account's entries newest first, for
// history display.
func (r *LedgerRepository) ListRecentByAccountID(accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	var list []models.LedgerEntry
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// SumDeltas returns the sum of all deltas for the account, i.e. the balance.
// Always computed from the entries; there is no cached balance column.
func (r *LedgerRepository) SumDeltas(accountID uint) (int64, error) {
	var sum int64
	err := r.db.Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

// SumPositiveDeltas returns the lifetime points: accruals only, never
// reduced by redemptions.
func (r *LedgerRepository) SumPositiveDeltas(accountID uint) (int64, error) {
	var sum int64
	err := r.db.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND delta > 0", accountID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

// CountByAccountID reports how many entries the account has.
func (r *LedgerRepository) CountByAccountID(accountID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.LedgerEntry{}).Where("account_id = ?", accountID).Count(&n).Error
	return n, err
}
