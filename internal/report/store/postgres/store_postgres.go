// Package postgres is the durable report store. Reports are immutable, so
// the row is written once and only ever read after.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pehchan/internal/report"
	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

const Schema = `
CREATE TABLE IF NOT EXISTS verification_reports (
    verification_id UUID PRIMARY KEY,
    tracking_id     TEXT        NOT NULL UNIQUE,
    body            JSONB       NOT NULL,
    generated_at    TIMESTAMPTZ NOT NULL
);
`

type Postgres struct {
	db *sql.DB
}

var _ report.Store = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply reports schema: %w", err)
	}
	return nil
}

func (s *Postgres) Save(ctx context.Context, r *report.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verification_reports (verification_id, tracking_id, body, generated_at)
		 VALUES ($1, $2, $3, $4)`,
		r.VerificationID.String(), string(r.TrackingID), body, r.GeneratedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Postgres) GetByVerification(ctx context.Context, verificationID id.VerificationID) (*report.Report, error) {
	return s.getBy(ctx, `verification_id`, verificationID.String())
}

func (s *Postgres) GetByTracking(ctx context.Context, trackingID id.TrackingID) (*report.Report, error) {
	return s.getBy(ctx, `tracking_id`, string(trackingID))
}

func (s *Postgres) getBy(ctx context.Context, column, value string) (*report.Report, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM verification_reports WHERE `+column+` = $1`, value).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	var r report.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	return errors.As(err, &c) && c.SQLState() == "23505"
}
