package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"loyalcrm/config"
	"loyalcrm/internal/domain"
	"loyalcrm/internal/models"
	"loyalcrm/internal/repository"
	"loyalcrm/internal/rules"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntryEvent describes a committed ledger entry, for live subscribers.
type EntryEvent struct {
	AccountID uint   `json:"account_id"`
	Delta     int64  `json:"delta"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
	Balance   int64  `json:"balance"`
	Tier      string `json:"tier"`
}

// EntryPublisher receives entry events after they commit. May be nil.
type EntryPublisher interface {
	PublishEntry(evt EntryEvent)
}

type PurchaseResult struct {
	Snapshot     *AccountSnapshot
	PointsEarned int64
}

type RedeemResult struct {
	Snapshot      *AccountSnapshot
	DiscountValue float64
}

type ReferralResult struct {
	Snapshot      *AccountSnapshot // referee's snapshot
	BonusAwarded  int64            // points credited to the referee
	ReferrerBonus int64            // points credited to the code owner
}

type Profile struct {
	Snapshot     *AccountSnapshot
	ReferralCode string
}

// LedgerService orchestrates all point-affecting operations. It is the only
// writer to the ledger: every mutation runs inside the owning account's
// serialization slot and a single database transaction, so a validation
// failure never leaves a partial write behind.
type LedgerService struct {
	db           *gorm.DB
	cfg          *config.LoyaltyConfig
	engine       *rules.Engine
	accountRepo  *repository.AccountRepository
	ledgerRepo   *repository.LedgerRepository
	referralRepo *repository.ReferralRepository
	aggregator   *Aggregator
	resolver     *ReferralResolver
	locks        *accountLocks
	publisher    EntryPublisher
}

func NewLedgerService(
	db *gorm.DB,
	cfg *config.LoyaltyConfig,
	accountRepo *repository.AccountRepository,
	ledgerRepo *repository.LedgerRepository,
	referralRepo *repository.ReferralRepository,
) *LedgerService {
	engine := rules.NewEngine(cfg)
	return &LedgerService{
		db:           db,
		cfg:          cfg,
		engine:       engine,
		accountRepo:  accountRepo,
		ledgerRepo:   ledgerRepo,
		referralRepo: referralRepo,
		aggregator:   NewAggregator(ledgerRepo, engine),
		resolver:     NewReferralResolver(referralRepo),
		locks:        newAccountLocks(cfg.LockWait),
	}
}

// SetPublisher attaches a live entry feed. Call before serving traffic.
func (s *LedgerService) SetPublisher(p EntryPublisher) { s.publisher = p }

// RecordPurchase accrues points for a purchase and returns the refreshed
// snapshot. The account is enrolled lazily on the first purchase.
func (s *LedgerService) RecordPurchase(ctx context.Context, accountID uint, amount float64, reference string) (*PurchaseResult, error) {
	points, err := s.engine.PointsForPurchase(amount)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		reference = uuid.NewString()
	}
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var snap *AccountSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.WithTx(tx).GetOrCreate(accountID); err != nil {
			return err
		}
		ledger := s.ledgerRepo.WithTx(tx)
		if _, err := ledger.Append(&models.LedgerEntry{
			AccountID: accountID,
			Delta:     points,
			Reason:    domain.ReasonPurchase,
			Reference: reference,
		}); err != nil {
			return err
		}
		snap, err = s.aggregator.WithTx(ledger).Snapshot(accountID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.publish(EntryEvent{AccountID: accountID, Delta: points, Reason: domain.ReasonPurchase, Reference: reference, Balance: snap.Balance, Tier: snap.Tier})
	return &PurchaseResult{Snapshot: snap, PointsEarned: points}, nil
}

// Redeem exchanges points for discount value. The balance check and the
// debit entry commit atomically: a concurrent redemption on the same
// account can never pass the check against the same pre-debit balance.
func (s *LedgerService) Redeem(ctx context.Context, accountID uint, points int64) (*RedeemResult, error) {
	if points <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	reference := uuid.NewString()
	var snap *AccountSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.WithTx(tx).GetByID(accountID); err != nil {
			return err
		}
		ledger := s.ledgerRepo.WithTx(tx)
		balance, err := ledger.SumDeltas(accountID)
		if err != nil {
			return err
		}
		if points > balance {
			return domain.ErrInsufficientPoints
		}
		if _, err := ledger.Append(&models.LedgerEntry{
			AccountID: accountID,
			Delta:     -points,
			Reason:    domain.ReasonRedemption,
			Reference: reference,
		}); err != nil {
			return err
		}
		snap, err = s.aggregator.WithTx(ledger).Snapshot(accountID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.publish(EntryEvent{AccountID: accountID, Delta: -points, Reason: domain.ReasonRedemption, Reference: reference, Balance: snap.Balance, Tier: snap.Tier})
	return &RedeemResult{Snapshot: snap, DiscountValue: s.engine.ValueForPoints(points)}, nil
}

// ApplyReferral credits both the code owner and the referee, as one
// transaction: either both bonus entries are visible or neither is. A given
// referee can redeem a given code exactly once, concurrent attempts
// included.
func (s *LedgerService) ApplyReferral(ctx context.Context, refereeID uint, code string) (*ReferralResult, error) {
	// Resolve the owner first so both slots can be taken in id order. The
	// used-check is repeated under the locks, where it is authoritative.
	rc, err := s.resolver.Resolve(code, refereeID)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.AcquirePair(ctx, rc.AccountID, refereeID)
	if err != nil {
		return nil, err
	}
	defer release()

	reference := uuid.NewString()
	var snap *AccountSnapshot
	var referrerSnap *AccountSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rc, err = s.resolver.WithTx(s.referralRepo.WithTx(tx)).Resolve(code, refereeID)
		if err != nil {
			return err
		}
		if err := s.referralRepo.WithTx(tx).RecordUse(rc.ID, refereeID); err != nil {
			if repository.IsDuplicateUse(err) {
				return domain.ErrReferralAlreadyUsed
			}
			return err
		}
		if _, err := s.accountRepo.WithTx(tx).GetOrCreate(refereeID); err != nil {
			return err
		}
		ledger := s.ledgerRepo.WithTx(tx)
		if _, err := ledger.Append(&models.LedgerEntry{
			AccountID: rc.AccountID,
			Delta:     s.cfg.ReferrerBonusPoints,
			Reason:    domain.ReasonReferralBonus,
			Reference: reference,
		}); err != nil {
			return err
		}
		if _, err := ledger.Append(&models.LedgerEntry{
			AccountID: refereeID,
			Delta:     s.cfg.RefereeBonusPoints,
			Reason:    domain.ReasonReferralBonus,
			Reference: reference,
		}); err != nil {
			return err
		}
		agg := s.aggregator.WithTx(ledger)
		if referrerSnap, err = agg.Snapshot(rc.AccountID); err != nil {
			return err
		}
		snap, err = agg.Snapshot(refereeID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	log.Printf("[referral] code %s: account %d referred account %d", rc.Code, rc.AccountID, refereeID)
	s.publish(EntryEvent{AccountID: rc.AccountID, Delta: s.cfg.ReferrerBonusPoints, Reason: domain.ReasonReferralBonus, Reference: reference, Balance: referrerSnap.Balance, Tier: referrerSnap.Tier})
	s.publish(EntryEvent{AccountID: refereeID, Delta: s.cfg.RefereeBonusPoints, Reason: domain.ReasonReferralBonus, Reference: reference, Balance: snap.Balance, Tier: snap.Tier})
	return &ReferralResult{
		Snapshot:      snap,
		BonusAwarded:  s.cfg.RefereeBonusPoints,
		ReferrerBonus: s.cfg.ReferrerBonusPoints,
	}, nil
}

// GetProfile returns the account's snapshot and referral code. Both the
// account and its code are created lazily on first request, matching how
// customers enter the program from the CRM side.
func (s *LedgerService) GetProfile(ctx context.Context, accountID uint) (*Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.WithTx(tx).GetOrCreate(accountID); err != nil {
			return err
		}
		rc, err := s.referralRepo.WithTx(tx).GetOrCreateCode(accountID)
		if err != nil {
			return err
		}
		p.ReferralCode = rc.Code
		p.Snapshot, err = s.aggregator.WithTx(s.ledgerRepo.WithTx(tx)).Snapshot(accountID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return &p, nil
}

// Adjust applies a manual correction (admin only at the HTTP layer). A
// negative adjustment may not take the balance below zero.
func (s *LedgerService) Adjust(ctx context.Context, accountID uint, delta int64, reference string) (*AccountSnapshot, error) {
	if delta == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if reference == "" {
		reference = uuid.NewString()
	}
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var snap *AccountSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.WithTx(tx).GetByID(accountID); err != nil {
			return err
		}
		ledger := s.ledgerRepo.WithTx(tx)
		if delta < 0 {
			balance, err := ledger.SumDeltas(accountID)
			if err != nil {
				return err
			}
			if balance+delta < 0 {
				return domain.ErrInsufficientPoints
			}
		}
		if _, err := ledger.Append(&models.LedgerEntry{
			AccountID: accountID,
			Delta:     delta,
			Reason:    domain.ReasonAdjustment,
			Reference: reference,
		}); err != nil {
			return err
		}
		snap, err = s.aggregator.WithTx(ledger).Snapshot(accountID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.publish(EntryEvent{AccountID: accountID, Delta: delta, Reason: domain.ReasonAdjustment, Reference: reference, Balance: snap.Balance, Tier: snap.Tier})
	return snap, nil
}

// History returns the account's most recent ledger entries.
func (s *LedgerService) History(ctx context.Context, accountID uint, limit, offset int) ([]models.LedgerEntry, error) {
	if _, err := s.accountRepo.GetByID(accountID); err != nil {
		return nil, storageErr(err)
	}
	list, err := s.ledgerRepo.ListRecentByAccountID(accountID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	return list, nil
}

// Snapshot re-derives the account's current snapshot without touching any
// state. Fails with AccountNotFound for accounts that never enrolled.
func (s *LedgerService) Snapshot(ctx context.Context, accountID uint) (*AccountSnapshot, error) {
	if _, err := s.accountRepo.GetByID(accountID); err != nil {
		return nil, storageErr(err)
	}
	snap, err := s.aggregator.Snapshot(accountID)
	if err != nil {
		return nil, storageErr(err)
	}
	return snap, nil
}

func (s *LedgerService) publish(evt EntryEvent) {
	if s.publisher != nil {
		s.publisher.PublishEntry(evt)
	}
}

// storageErr passes domain and context errors through untouched and tags
// everything else as a storage failure so callers know it is retryable.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientPoints),
		errors.Is(err, domain.ErrInvalidReferralCode),
		errors.Is(err, domain.ErrSelfReferral),
		errors.Is(err, domain.ErrReferralAlreadyUsed),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrBusy),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
