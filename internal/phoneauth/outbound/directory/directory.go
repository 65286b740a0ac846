// Package directory is the account directory backed by PostgreSQL. It maps
// phones and login aliases to identities and issues single-use login tokens.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	identityColumns = `id, login_alias, phone_key, role, provenance, metadata, created_at`

	findByPhone = `SELECT ` + identityColumns + ` FROM phoneauth_identities WHERE phone_key = $1`

	findByAlias = `SELECT ` + identityColumns + ` FROM phoneauth_identities WHERE login_alias = $1`

	insertIdentity = `INSERT INTO phoneauth_identities (id, login_alias, phone_key, role, provenance, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT DO NOTHING
RETURNING id`

	insertToken = `INSERT INTO phoneauth_login_tokens (id, identity_id, token_digest, expires_at)
VALUES ($1, $2, $3, $4)`

	consumeToken = `UPDATE phoneauth_login_tokens t
SET consumed = TRUE, consumed_at = $2
FROM phoneauth_identities i
WHERE t.token_digest = $1 AND t.consumed = FALSE AND t.expires_at > $2 AND i.id = t.identity_id
RETURNING i.id, i.login_alias, i.phone_key, i.role, i.provenance, i.metadata, i.created_at`
)

type Directory struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func New(conn *pgxpool.Pool, ins instrument.Instrumentation) *Directory {
	return &Directory{conn: conn, ins: ins}
}

func (d *Directory) mapError(err error) error {
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

func (d *Directory) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return d.ins.Tracer("phoneauth.outbound.directory").Start(ctx, name)
}

func (d *Directory) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (d *Directory) FindIdentityByPhone(ctx context.Context, phoneKey string) (_ *entity.AccountIdentity, err error) {
	ctx, span := d.startSpan(ctx, "FindIdentityByPhone")
	defer func() { d.endSpan(span, err) }()

	ident, err := scanIdentity(d.conn.QueryRow(ctx, findByPhone, phoneKey))
	if err != nil {
		err = d.mapError(err)
		return nil, err
	}

	return ident, nil
}

// ProvisionLoginToken creates the identity when the alias is new and stores
// the token digest against it. An existing identity is never modified.
func (d *Directory) ProvisionLoginToken(ctx context.Context, in entity.ProvisionLoginToken) (_ *entity.AccountIdentity, created bool, err error) {
	ctx, span := d.startSpan(ctx, "ProvisionLoginToken")
	defer func() { d.endSpan(span, err) }()

	tx, err := d.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rolback", "error", rErr)
		}
	}()

	var insertedID int64
	err = tx.QueryRow(ctx, insertIdentity,
		in.IdentityID,
		in.LoginAlias,
		pgtype.Text{String: in.PhoneKey, Valid: in.PhoneKey != ""},
		in.Role,
		in.Provenance,
		in.Metadata,
	).Scan(&insertedID)
	switch {
	case err == nil:
		created = true
	case errors.Is(err, pgx.ErrNoRows):
		err = nil
	default:
		return nil, false, d.mapError(err)
	}

	ident, err := scanIdentity(tx.QueryRow(ctx, findByAlias, in.LoginAlias))
	if err != nil {
		// the insert lost to an identity holding the phone under another alias
		return nil, false, d.mapError(err)
	}

	if _, err = tx.Exec(ctx, insertToken, in.TokenID, ident.ID, in.TokenDigest, in.ExpiresAt); err != nil {
		return nil, false, d.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, d.mapError(err)
	}

	return ident, created, nil
}

// ConsumeLoginToken marks the token consumed and returns its identity. It
// fails with goerror.ErrNotFound for unknown, consumed and expired tokens.
func (d *Directory) ConsumeLoginToken(ctx context.Context, tokenDigest string, now time.Time) (_ *entity.AccountIdentity, err error) {
	ctx, span := d.startSpan(ctx, "ConsumeLoginToken")
	defer func() { d.endSpan(span, err) }()

	ident, err := scanIdentity(d.conn.QueryRow(ctx, consumeToken, tokenDigest, now))
	if err != nil {
		err = d.mapError(err)
		return nil, err
	}

	return ident, nil
}

func scanIdentity(row pgx.Row) (*entity.AccountIdentity, error) {
	var (
		ident    entity.AccountIdentity
		phoneKey pgtype.Text
	)

	if err := row.Scan(
		&ident.ID,
		&ident.LoginAlias,
		&phoneKey,
		&ident.Role,
		&ident.Provenance,
		&ident.Metadata,
		&ident.CreatedAt,
	); err != nil {
		return nil, err
	}

	ident.PhoneKey = phoneKey.String
	return &ident, nil
}
