package app

import (
	"context"
	"database/sql"
	"time"

	consentservice "checkin/internal/consent/service"
	dErrors "checkin/pkg/domain-errors"
	txcontext "checkin/pkg/platform/tx"
)

// consentPostgresTx opens one SQL transaction per attempt and carries it in
// the context, so the record CAS and the audit outbox row commit together.
type consentPostgresTx struct {
	db      *sql.DB
	store   consentservice.Store
	timeout time.Duration
}

func newConsentPostgresTx(db *sql.DB, store consentservice.Store, timeout time.Duration) *consentPostgresTx {
	return &consentPostgresTx{db: db, store: store, timeout: timeout}
}

func (t *consentPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store consentservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = consentservice.DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), t.store); err != nil {
		return err
	}

	return tx.Commit()
}
