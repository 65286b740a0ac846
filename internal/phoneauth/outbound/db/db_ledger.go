package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
)

const (
	countIssuedSince = `SELECT COUNT(*) FROM %s WHERE phone_key = $1 AND issued_at >= $2`

	lockPhone = `SELECT pg_advisory_xact_lock(hashtext($1))`

	invalidateActive = `UPDATE %s SET used = TRUE, used_at = $2
WHERE phone_key = $1 AND used = FALSE AND expires_at > $2`

	insertRequest = `INSERT INTO %s
(id, phone_key, code_hash, issued_at, expires_at, used, ip_address, device_id, requester_name)
VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8)`

	findUnused = `SELECT id, phone_key, code_hash, issued_at, expires_at, used, ip_address, device_id, requester_name
FROM %s
WHERE phone_key = $1 AND code_hash = $2 AND used = FALSE
ORDER BY issued_at DESC, id DESC
LIMIT 1`

	markUsed = `UPDATE %s SET used = TRUE, used_at = NOW() WHERE id = $1 AND used = FALSE`
)

func (s *DB) CountIssuedSince(ctx context.Context, table entity.LedgerTable, phoneKey string, since time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "CountIssuedSince")
	defer func() { s.endSpan(span, err) }()

	q, err := query(countIssuedSince, table)
	if err != nil {
		return 0, err
	}

	var count int64
	if err = s.conn.QueryRow(ctx, q, phoneKey, since).Scan(&count); err != nil {
		return 0, s.mapError(err)
	}

	return count, nil
}

// ReplaceActive invalidates every live code of the phone and inserts req in
// one transaction. The advisory lock serialises concurrent issues for the
// same phone so that at most one unused, unexpired row survives.
func (s *DB) ReplaceActive(ctx context.Context, table entity.LedgerTable, req entity.OtpRequest) (err error) {
	ctx, span := s.startSpan(ctx, "ReplaceActive")
	defer func() { s.endSpan(span, err) }()

	invalidate, err := query(invalidateActive, table)
	if err != nil {
		return err
	}
	insert, err := query(insertRequest, table)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rolback", "error", rErr)
		}
	}()

	if _, err = tx.Exec(ctx, lockPhone, string(table)+":"+req.PhoneKey); err != nil {
		return s.mapError(err)
	}

	if _, err = tx.Exec(ctx, invalidate, req.PhoneKey, req.IssuedAt); err != nil {
		return s.mapError(err)
	}

	if _, err = tx.Exec(ctx, insert,
		req.ID,
		req.PhoneKey,
		req.CodeHash,
		req.IssuedAt,
		req.ExpiresAt,
		optionalText(req.IPAddress),
		optionalText(req.DeviceID),
		optionalText(req.RequesterName),
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

func (s *DB) FindUnused(ctx context.Context, table entity.LedgerTable, phoneKey, codeHash string) (_ *entity.OtpRequest, err error) {
	ctx, span := s.startSpan(ctx, "FindUnused")
	defer func() { s.endSpan(span, err) }()

	q, err := query(findUnused, table)
	if err != nil {
		return nil, err
	}

	var (
		req                      entity.OtpRequest
		ipAddress, device, named pgtype.Text
	)
	if err = s.conn.QueryRow(ctx, q, phoneKey, codeHash).Scan(
		&req.ID,
		&req.PhoneKey,
		&req.CodeHash,
		&req.IssuedAt,
		&req.ExpiresAt,
		&req.Used,
		&ipAddress,
		&device,
		&named,
	); err != nil {
		err = s.mapError(err)
		return nil, err
	}

	req.IPAddress = ipAddress.String
	req.DeviceID = device.String
	req.RequesterName = named.String

	return &req, nil
}

// MarkUsed flips the row to used. It reports false when another caller got
// there first.
func (s *DB) MarkUsed(ctx context.Context, table entity.LedgerTable, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkUsed")
	defer func() { s.endSpan(span, err) }()

	q, err := query(markUsed, table)
	if err != nil {
		return false, err
	}

	tag, err := s.conn.Exec(ctx, q, id)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func optionalText(v string) pgtype.Text {
	return pgtype.Text{String: v, Valid: v != ""}
}
