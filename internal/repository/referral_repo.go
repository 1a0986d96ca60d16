package repository

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"loyalcrm/internal/models"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

// generateReferralCode returns an 8-character uppercase hex code, e.g. "A3F2C1B0".
func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// GetOrCreateCode returns the account's referral code, creating a unique one
// on first request.
func (r *ReferralRepository) GetOrCreateCode(accountID uint) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.Where("account_id = ?", accountID).First(&rc).Error; err == nil {
		return &rc, nil
	}
	for i := 0; i < 10; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		rc = models.ReferralCode{AccountID: accountID, Code: code, IsActive: true}
		if err := r.db.Create(&rc).Error; err == nil {
			return &rc, nil
		}
		// Collision on code or a concurrent create for the same account.
		if err := r.db.Where("account_id = ?", accountID).First(&rc).Error; err == nil {
			return &rc, nil
		}
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after retries")
}

// GetByCode returns the active ReferralCode matching the given code string,
// or gorm.ErrRecordNotFound.
func (r *ReferralRepository) GetByCode(code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.Where("code = ? AND is_active = ?", strings.ToUpper(strings.TrimSpace(code)), true).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// HasUsed reports whether the referee has already redeemed the code.
func (r *ReferralRepository) HasUsed(codeID, refereeID uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.ReferralUse{}).
		Where("code_id = ? AND referee_id = ?", codeID, refereeID).
		Count(&n).Error
	return n > 0, err
}

// RecordUse marks the code as redeemed by the referee. The unique index on
// (code_id, referee_id) rejects a second use.
func (r *ReferralRepository) RecordUse(codeID, refereeID uint) error {
	return r.db.Create(&models.ReferralUse{CodeID: codeID, RefereeID: refereeID}).Error
}

// IsDuplicateUse reports whether an error from RecordUse means the
// (code, referee) pair was already recorded.
func IsDuplicateUse(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
