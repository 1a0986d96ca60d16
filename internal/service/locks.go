package service

import (
	"context"
	"sync"
	"time"

	"loyalcrm/internal/domain"
)

// accountLocks hands out one serialization slot per account id. Operations
// on the same account queue on its slot; operations on different accounts
// never contend. Waits are bounded: past the configured timeout the caller
// gets domain.ErrBusy instead of blocking forever.
type accountLocks struct {
	mu    sync.Mutex
	slots map[uint]chan struct{}
	wait  time.Duration
}

func newAccountLocks(wait time.Duration) *accountLocks {
	return &accountLocks{
		slots: make(map[uint]chan struct{}),
		wait:  wait,
	}
}

func (l *accountLocks) slot(accountID uint) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[accountID]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[accountID] = s
	}
	return s
}

// Acquire takes the account's slot, waiting at most the configured bound.
// The returned release func must be called exactly once.
func (l *accountLocks) Acquire(ctx context.Context, accountID uint) (func(), error) {
	s := l.slot(accountID)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, domain.ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcquirePair takes both accounts' slots in ascending id order so two
// cross-account operations can never deadlock each other.
func (l *accountLocks) AcquirePair(ctx context.Context, a, b uint) (func(), error) {
	if a == b {
		return l.Acquire(ctx, a)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	rel1, err := l.Acquire(ctx, first)
	if err != nil {
		return nil, err
	}
	rel2, err := l.Acquire(ctx, second)
	if err != nil {
		rel1()
		return nil, err
	}
	return func() {
		rel2()
		rel1()
	}, nil
}
