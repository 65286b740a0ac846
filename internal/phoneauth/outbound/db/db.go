package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownLedger is returned for a table that is not one of the ledgers.
var ErrUnknownLedger = errors.New("phoneauth: unknown otp ledger")

// DB is the OTP ledger. Each flow owns one table of identical shape.
type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

// - 23505 unique violation → goerror.ErrConflict
// - 40001 serialization_failure / 40P01 deadlock_detected are returned as-is
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
	return s.ins.Tracer("phoneauth.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// query renders format with the quoted ledger table as its only verb.
func query(format string, table entity.LedgerTable) (string, error) {
	switch table {
	case entity.LedgerLogin, entity.LedgerNamed:
		return fmt.Sprintf(format, pgx.Identifier{string(table)}.Sanitize()), nil
	default:
		return "", ErrUnknownLedger
	}
}
