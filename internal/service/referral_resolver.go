package service

import (
	"errors"

	"loyalcrm/internal/domain"
	"loyalcrm/internal/models"
	"loyalcrm/internal/repository"

	"gorm.io/gorm"
)

// ReferralResolver validates referral code applications. It decides whether
// an application may proceed; recording the use and crediting both parties
// happen in the LedgerService transaction so they commit as one unit.
type ReferralResolver struct {
	referralRepo *repository.ReferralRepository
}

func NewReferralResolver(referralRepo *repository.ReferralRepository) *ReferralResolver {
	return &ReferralResolver{referralRepo: referralRepo}
}

func (rr *ReferralResolver) WithTx(referralRepo *repository.ReferralRepository) *ReferralResolver {
	return &ReferralResolver{referralRepo: referralRepo}
}

// Resolve checks the code against the referee and returns the owning code
// record if the application is allowed. Callers must hold the referee's
// serialization lock so the already-used check cannot race a concurrent
// application of the same code by the same referee.
func (rr *ReferralResolver) Resolve(code string, refereeID uint) (*models.ReferralCode, error) {
	rc, err := rr.referralRepo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidReferralCode
		}
		return nil, err
	}
	if rc.AccountID == refereeID {
		return nil, domain.ErrSelfReferral
	}
	used, err := rr.referralRepo.HasUsed(rc.ID, refereeID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, domain.ErrReferralAlreadyUsed
	}
	return rc, nil
}
