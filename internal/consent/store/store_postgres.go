package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
	txcontext "checkin/pkg/platform/tx"
)

// PostgresStore persists consent records and policies in PostgreSQL. Every
// method joins the transaction carried in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `
	id, submission_id, patient_id, form_template_id, organization_id, clause_version,
	given, given_at, expires_at, withdrawn_at, withdrawal_reason, duration_months,
	auto_renew, renewed_at, renewal_count, created_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.ConsentRecord) error {
	query := `
		INSERT INTO consent_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT DO NOTHING
	`
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.SubmissionID),
		uuid.UUID(record.PatientID),
		uuid.UUID(record.FormTemplateID),
		uuid.UUID(record.OrganizationID),
		record.ClauseVersion,
		record.Given,
		record.GivenAt,
		record.ExpiresAt,
		record.WithdrawnAt,
		record.WithdrawalReason,
		record.DurationMonths,
		record.AutoRenew,
		record.RenewedAt,
		record.RenewalCount,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, consentID id.ConsentID) (*models.ConsentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records WHERE id = $1`
	record, err := scanRecord(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(consentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ConsentRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM consent_records
		WHERE patient_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, uuid.UUID(patientID))
	if err != nil {
		return nil, fmt.Errorf("list consent records by patient: %w", err)
	}
	return scanRecords(rows)
}

// ListByIDs loads many records in one round trip. Unknown ids are skipped.
func (s *PostgresStore) ListByIDs(ctx context.Context, ids []id.ConsentID) ([]*models.ConsentRecord, error) {
	if len(ids) == 0 {
		return []*models.ConsentRecord{}, nil
	}
	raw := make([]string, len(ids))
	for i, consentID := range ids {
		raw[i] = consentID.String()
	}
	query := `
		SELECT ` + recordColumns + `
		FROM consent_records
		WHERE id = ANY($1::uuid[])
		ORDER BY id
	`
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("list consent records by ids: %w", err)
	}
	return scanRecords(rows)
}

// ListTimeBound pages through given, unwithdrawn records with an expiry in
// id order using keyset pagination.
func (s *PostgresStore) ListTimeBound(ctx context.Context, afterID id.ConsentID, limit int) ([]*models.ConsentRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM consent_records
		WHERE given AND expires_at IS NOT NULL AND withdrawn_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
	`
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, uuid.UUID(afterID), limit)
	if err != nil {
		return nil, fmt.Errorf("list time-bound consent records: %w", err)
	}
	return scanRecords(rows)
}

// CompareAndSwap writes the mutable fields of next in a single conditional
// UPDATE guarded by the expected version. Zero affected rows means either the
// record is gone (sentinel.ErrNotFound) or its version moved on
// (sentinel.ErrConflict).
func (s *PostgresStore) CompareAndSwap(ctx context.Context, expected models.Version, next *models.ConsentRecord) error {
	exec := txcontext.Pick(ctx, s.db)
	query := `
		UPDATE consent_records SET
			expires_at = $2,
			withdrawn_at = $3,
			withdrawal_reason = $4,
			duration_months = $5,
			renewed_at = $6,
			renewal_count = $7
		WHERE id = $1
			AND expires_at IS NOT DISTINCT FROM $8
			AND withdrawn_at IS NOT DISTINCT FROM $9
			AND renewal_count = $10
	`
	res, err := exec.ExecContext(ctx, query,
		uuid.UUID(next.ID),
		next.ExpiresAt,
		next.WithdrawnAt,
		next.WithdrawalReason,
		next.DurationMonths,
		next.RenewedAt,
		next.RenewalCount,
		expected.ExpiresAt,
		expected.WithdrawnAt,
		expected.RenewalCount,
	)
	if err != nil {
		return fmt.Errorf("update consent record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent record: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists bool
	err = exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM consent_records WHERE id = $1)`, uuid.UUID(next.ID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check consent record: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) SavePolicy(ctx context.Context, policy models.ConsentPolicy) error {
	query := `
		INSERT INTO consent_policies (
			form_template_id, grace_period_days, default_consent_duration,
			min_consent_duration, max_consent_duration, allow_auto_renewal
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (form_template_id) DO UPDATE SET
			grace_period_days = EXCLUDED.grace_period_days,
			default_consent_duration = EXCLUDED.default_consent_duration,
			min_consent_duration = EXCLUDED.min_consent_duration,
			max_consent_duration = EXCLUDED.max_consent_duration,
			allow_auto_renewal = EXCLUDED.allow_auto_renewal
	`
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(policy.FormTemplateID),
		policy.GracePeriodDays,
		policy.DefaultConsentDuration,
		policy.MinConsentDuration,
		policy.MaxConsentDuration,
		policy.AllowAutoRenewal,
	)
	if err != nil {
		return fmt.Errorf("save consent policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindPolicy(ctx context.Context, formTemplateID id.FormTemplateID) (*models.ConsentPolicy, error) {
	query := `
		SELECT form_template_id, grace_period_days, default_consent_duration,
			min_consent_duration, max_consent_duration, allow_auto_renewal
		FROM consent_policies
		WHERE form_template_id = $1
	`
	var (
		policy     models.ConsentPolicy
		templateID uuid.UUID
	)
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(formTemplateID)).Scan(
		&templateID,
		&policy.GracePeriodDays,
		&policy.DefaultConsentDuration,
		&policy.MinConsentDuration,
		&policy.MaxConsentDuration,
		&policy.AllowAutoRenewal,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent policy: %w", err)
	}
	policy.FormTemplateID = id.FormTemplateID(templateID)
	return &policy, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ConsentRecord, error) {
	var (
		record                                     models.ConsentRecord
		consentID, submissionID, patientID         uuid.UUID
		formTemplateID, organizationID             uuid.UUID
		givenAt, expiresAt, withdrawnAt, renewedAt sql.NullTime
		withdrawalReason                           sql.NullString
		durationMonths                             sql.NullInt32
	)
	err := row.Scan(
		&consentID,
		&submissionID,
		&patientID,
		&formTemplateID,
		&organizationID,
		&record.ClauseVersion,
		&record.Given,
		&givenAt,
		&expiresAt,
		&withdrawnAt,
		&withdrawalReason,
		&durationMonths,
		&record.AutoRenew,
		&renewedAt,
		&record.RenewalCount,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.ID = id.ConsentID(consentID)
	record.SubmissionID = id.SubmissionID(submissionID)
	record.PatientID = id.PatientID(patientID)
	record.FormTemplateID = id.FormTemplateID(formTemplateID)
	record.OrganizationID = id.OrganizationID(organizationID)
	record.GivenAt = nullTime(givenAt)
	record.ExpiresAt = nullTime(expiresAt)
	record.WithdrawnAt = nullTime(withdrawnAt)
	record.RenewedAt = nullTime(renewedAt)
	record.CreatedAt = record.CreatedAt.UTC()
	if withdrawalReason.Valid {
		reason := withdrawalReason.String
		record.WithdrawalReason = &reason
	}
	if durationMonths.Valid {
		months := int(durationMonths.Int32)
		record.DurationMonths = &months
	}
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]*models.ConsentRecord, error) {
	defer rows.Close()
	records := []*models.ConsentRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent records: %w", err)
	}
	return records, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
