package reminder

import (
	"context"
	"fmt"
	"sync"

	"checkin/internal/consent/lifecycle"
	id "checkin/pkg/domain"
)

// LedgerKey identifies one reminder cycle. A renewal bumps RenewalCount, so a
// renewed consent starts a fresh cycle instead of inheriting "grace_expiry
// already sent" from its previous term.
type LedgerKey struct {
	ConsentID    id.ConsentID
	RenewalCount int
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%s:%d", k.ConsentID, k.RenewalCount)
}

// Ledger remembers the latest reminder sent per cycle.
//
// Advance is a monotonic compare-and-set: it records offset only when it is
// strictly later than what is stored and reports whether it did. Of several
// sweepers racing on the same consent exactly one wins each bucket.
// Revert undoes an Advance whose notification could not be delivered, but
// only while nobody has advanced past it.
type Ledger interface {
	Last(ctx context.Context, key LedgerKey) (*lifecycle.ReminderOffset, error)
	Advance(ctx context.Context, key LedgerKey, offset lifecycle.ReminderOffset) (bool, error)
	Revert(ctx context.Context, key LedgerKey, offset lifecycle.ReminderOffset, previous *lifecycle.ReminderOffset) error
}

// MemoryLedger is a process-local Ledger for tests and single-instance runs.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[LedgerKey]lifecycle.ReminderOffset
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[LedgerKey]lifecycle.ReminderOffset)}
}

func (l *MemoryLedger) Last(_ context.Context, key LedgerKey) (*lifecycle.ReminderOffset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	offset, ok := l.entries[key]
	if !ok {
		return nil, nil
	}
	return &offset, nil
}

func (l *MemoryLedger) Advance(_ context.Context, key LedgerKey, offset lifecycle.ReminderOffset) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.entries[key]; ok && current >= offset {
		return false, nil
	}
	l.entries[key] = offset
	return true, nil
}

func (l *MemoryLedger) Revert(_ context.Context, key LedgerKey, offset lifecycle.ReminderOffset, previous *lifecycle.ReminderOffset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.entries[key]; !ok || current != offset {
		return nil
	}
	if previous == nil {
		delete(l.entries, key)
		return nil
	}
	l.entries[key] = *previous
	return nil
}
