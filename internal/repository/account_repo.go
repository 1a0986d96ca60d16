package repository

import (
	"errors"

	"loyalcrm/internal/domain"
	"loyalcrm/internal/models"

	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) WithTx(tx *gorm.DB) *AccountRepository {
	return &AccountRepository{db: tx}
}

func (r *AccountRepository) GetByID(accountID uint) (*models.LoyaltyAccount, error) {
	var a models.LoyaltyAccount
	if err := r.db.First(&a, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetOrCreate enrolls the customer in the points program on first contact.
// Customer existence itself is the CRM's concern, not ours.
func (r *AccountRepository) GetOrCreate(accountID uint) (*models.LoyaltyAccount, error) {
	a, err := r.GetByID(accountID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	a = &models.LoyaltyAccount{ID: accountID}
	if err := r.db.Create(a).Error; err != nil {
		// Lost a create race: someone else enrolled the account first.
		if existing, gerr := r.GetByID(accountID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return a, nil
}
