package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/finadvise/internal/crm/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	leadColumns = `id, phone_key, name, device_id, verification_count, first_verified_at, last_verified_at`

	// An empty name or device keeps the stored value; timestamps only move outward.
	upsertLead = `INSERT INTO crm_leads (id, phone_key, name, device_id, verification_count, first_verified_at, last_verified_at)
VALUES ($1, $2, $3, $4, 1, $5, $5)
ON CONFLICT (phone_key) DO UPDATE SET
	name = COALESCE(NULLIF(EXCLUDED.name, ''), crm_leads.name),
	device_id = COALESCE(EXCLUDED.device_id, crm_leads.device_id),
	verification_count = crm_leads.verification_count + 1,
	first_verified_at = LEAST(crm_leads.first_verified_at, EXCLUDED.first_verified_at),
	last_verified_at = GREATEST(crm_leads.last_verified_at, EXCLUDED.last_verified_at),
	updated_at = NOW()
RETURNING ` + leadColumns
)

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("crm.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *DB) UpsertLead(ctx context.Context, in entity.UpsertLead) (_ *entity.Lead, err error) {
	ctx, span := s.startSpan(ctx, "UpsertLead")
	defer func() { s.endSpan(span, err) }()

	lead, err := scanLead(s.conn.QueryRow(ctx, upsertLead,
		in.ID,
		in.PhoneKey,
		in.Name,
		pgtype.Text{String: in.DeviceID, Valid: in.DeviceID != ""},
		in.VerifiedAt,
	))
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return lead, nil
}

func scanLead(row pgx.Row) (*entity.Lead, error) {
	var (
		lead     entity.Lead
		deviceID pgtype.Text
	)

	if err := row.Scan(
		&lead.ID,
		&lead.PhoneKey,
		&lead.Name,
		&deviceID,
		&lead.VerificationCount,
		&lead.FirstVerifiedAt,
		&lead.LastVerifiedAt,
	); err != nil {
		return nil, err
	}

	lead.DeviceID = deviceID.String
	return &lead, nil
}
