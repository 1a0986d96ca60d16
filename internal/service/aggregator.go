package service

import (
	"loyalcrm/internal/repository"
	"loyalcrm/internal/rules"
)

// AccountSnapshot is the externally visible state of an account, derived by
// folding its ledger. It is never stored: every snapshot is recomputed from
// the entries, so it cannot drift from the ledger.
type AccountSnapshot struct {
	AccountID      uint   `json:"account_id"`
	Balance        int64  `json:"balance"`
	LifetimePoints int64  `json:"lifetime_points"`
	Tier           string `json:"tier"`
}

// Aggregator derives snapshots from the ledger store.
type Aggregator struct {
	ledgerRepo *repository.LedgerRepository
	engine     *rules.Engine
}

func NewAggregator(ledgerRepo *repository.LedgerRepository, engine *rules.Engine) *Aggregator {
	return &Aggregator{ledgerRepo: ledgerRepo, engine: engine}
}

func (a *Aggregator) WithTx(ledgerRepo *repository.LedgerRepository) *Aggregator {
	return &Aggregator{ledgerRepo: ledgerRepo, engine: a.engine}
}

// Snapshot folds all of the account's entries into balance, lifetime points
// and tier. Lifetime counts only positive deltas, which is what keeps the
// tier monotonic across redemptions.
func (a *Aggregator) Snapshot(accountID uint) (*AccountSnapshot, error) {
	balance, err := a.ledgerRepo.SumDeltas(accountID)
	if err != nil {
		return nil, err
	}
	lifetime, err := a.ledgerRepo.SumPositiveDeltas(accountID)
	if err != nil {
		return nil, err
	}
	return &AccountSnapshot{
		AccountID:      accountID,
		Balance:        balance,
		LifetimePoints: lifetime,
		Tier:           a.engine.TierForLifetime(lifetime),
	}, nil
}
