// Package postgres is the durable Store backed by PostgreSQL via the pgx
// stdlib driver. Execute relies on SELECT ... FOR UPDATE for per-row
// serialization, with a version column as a belt check.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pehchan/internal/catalog"
	"pehchan/internal/verification/models"
	"pehchan/internal/verification/store"
	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

// Schema is applied by the server at startup when the table is absent.
const Schema = `
CREATE TABLE IF NOT EXISTS verifications (
    id               UUID PRIMARY KEY,
    user_id          UUID        NOT NULL,
    type             TEXT        NOT NULL,
    purpose          TEXT        NOT NULL DEFAULT '',
    method           TEXT        NOT NULL,
    status           TEXT        NOT NULL,
    notify_email     TEXT        NOT NULL DEFAULT '',
    documents        JSONB       NOT NULL DEFAULT '{}'::jsonb,
    aadhaar_number   TEXT        NOT NULL DEFAULT '',
    otp_verified     BOOLEAN     NOT NULL DEFAULT FALSE,
    otp_request_time TIMESTAMPTZ,
    payment_order_id TEXT        NOT NULL DEFAULT '',
    payment_id       TEXT        NOT NULL DEFAULT '',
    payment_status   TEXT        NOT NULL DEFAULT '',
    metadata         JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    version          BIGINT      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verifications_user_id ON verifications (user_id);
`

type Postgres struct {
	db *sql.DB
}

var _ store.Store = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the schema. Idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply verifications schema: %w", err)
	}
	return nil
}

const insertSQL = `
INSERT INTO verifications (
    id, user_id, type, purpose, method, status, notify_email, documents,
    aadhaar_number, otp_verified, otp_request_time,
    payment_order_id, payment_id, payment_status, metadata,
    created_at, updated_at, version
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

func (s *Postgres) Create(ctx context.Context, v *models.Verification) error {
	docs, meta, err := encodeJSON(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, insertSQL,
		v.ID.String(), v.UserID.String(), string(v.Type), v.Purpose,
		v.Method.String(), string(v.Status), v.NotifyEmail, docs,
		v.AadhaarNumber, v.OTPVerified, v.OTPRequestTime,
		string(v.PaymentOrderID), v.PaymentID, v.PaymentStatus, meta,
		v.CreatedAt, v.UpdatedAt, v.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

const selectColumns = `
    id, user_id, type, purpose, method, status, notify_email, documents,
    aadhaar_number, otp_verified, otp_request_time,
    payment_order_id, payment_id, payment_status, metadata,
    created_at, updated_at, version`

func (s *Postgres) Get(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+selectColumns+` FROM verifications WHERE id = $1`, verificationID.String())
	return scanVerification(row)
}

func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Verification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+selectColumns+` FROM verifications WHERE user_id = $1 ORDER BY created_at DESC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const updateSQL = `
UPDATE verifications SET
    status = $2, documents = $3, aadhaar_number = $4, otp_verified = $5,
    otp_request_time = $6, payment_order_id = $7, payment_id = $8,
    payment_status = $9, metadata = $10, updated_at = $11, version = $12
WHERE id = $1 AND version = $13`

func (s *Postgres) Execute(ctx context.Context, verificationID id.VerificationID,
	validate func(*models.Verification) error,
	mutate func(*models.Verification) error) (*models.Verification, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT`+selectColumns+` FROM verifications WHERE id = $1 FOR UPDATE`,
		verificationID.String())
	v, err := scanVerification(row)
	if err != nil {
		return nil, err
	}
	loadedVersion := v.Version

	if err := validate(v); err != nil {
		return nil, err
	}
	if err := mutate(v); err != nil {
		return nil, err
	}

	docs, meta, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, updateSQL,
		v.ID.String(), string(v.Status), docs, v.AadhaarNumber, v.OTPVerified,
		v.OTPRequestTime, string(v.PaymentOrderID), v.PaymentID,
		v.PaymentStatus, meta, v.UpdatedAt, v.Version, loadedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, sentinel.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return v, nil
}

func encodeJSON(v *models.Verification) (docs, meta []byte, err error) {
	docs, err = json.Marshal(v.Documents)
	if err != nil {
		return nil, nil, fmt.Errorf("encode documents: %w", err)
	}
	meta, err = json.Marshal(v.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	return docs, meta, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerification(row rowScanner) (*models.Verification, error) {
	var (
		v              models.Verification
		rawID, rawUser string
		typ, status    string
		method         string
		orderID        string
		docs, meta     []byte
		otpTime        sql.NullTime
	)
	err := row.Scan(
		&rawID, &rawUser, &typ, &v.Purpose, &method, &status, &v.NotifyEmail, &docs,
		&v.AadhaarNumber, &v.OTPVerified, &otpTime,
		&orderID, &v.PaymentID, &v.PaymentStatus, &meta,
		&v.CreatedAt, &v.UpdatedAt, &v.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification: %w", err)
	}

	if v.ID, err = id.ParseVerificationID(rawID); err != nil {
		return nil, fmt.Errorf("stored verification id is corrupt: %w", err)
	}
	if v.UserID, err = id.ParseUserID(rawUser); err != nil {
		return nil, fmt.Errorf("stored user id is corrupt: %w", err)
	}
	v.Type = models.Type(typ)
	v.Status = models.Status(status)
	v.Method = catalog.Method(method)
	v.PaymentOrderID = id.OrderID(orderID)
	if otpTime.Valid {
		t := otpTime.Time.UTC()
		v.OTPRequestTime = &t
	}
	if err := json.Unmarshal(docs, &v.Documents); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	if err := json.Unmarshal(meta, &v.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return &v, nil
}

// isUniqueViolation matches SQLSTATE 23505 without binding this package to a
// driver-specific error type.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	return errors.As(err, &c) && c.SQLState() == "23505"
}
