package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/hash"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/jwt"
	"github.com/shandysiswandi/finadvise/internal/pkg/phone"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu   sync.Mutex
	rows map[entity.LedgerTable][]*entity.OtpRequest
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[entity.LedgerTable][]*entity.OtpRequest{}}
}

func (f *fakeLedger) CountIssuedSince(_ context.Context, table entity.LedgerTable, phoneKey string, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}

	var n int64
	for _, r := range f.rows[table] {
		if r.PhoneKey == phoneKey && !r.IssuedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) ReplaceActive(_ context.Context, table entity.LedgerTable, req entity.OtpRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	for _, r := range f.rows[table] {
		if r.PhoneKey == req.PhoneKey && !r.Used && r.ExpiresAt.After(req.IssuedAt) {
			r.Used = true
		}
	}
	f.rows[table] = append(f.rows[table], &req)
	return nil
}

func (f *fakeLedger) FindUnused(_ context.Context, table entity.LedgerTable, phoneKey, codeHash string) (*entity.OtpRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.rows[table]
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if r.PhoneKey == phoneKey && r.CodeHash == codeHash && !r.Used {
			cp := *r
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeLedger) MarkUsed(_ context.Context, table entity.LedgerTable, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rows[table] {
		if r.ID == id && !r.Used {
			r.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) active(table entity.LedgerTable, phoneKey string, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, r := range f.rows[table] {
		if r.PhoneKey == phoneKey && !r.Used && r.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

type fakeToken struct {
	identityID int64
	expiresAt  time.Time
	consumed   bool
}

type fakeDirectory struct {
	mu         sync.Mutex
	identities map[string]*entity.AccountIdentity // by alias
	tokens     map[string]*fakeToken              // by digest
	provisions []entity.ProvisionLoginToken
	err        error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		identities: map[string]*entity.AccountIdentity{},
		tokens:     map[string]*fakeToken{},
	}
}

func (f *fakeDirectory) FindIdentityByPhone(_ context.Context, phoneKey string) (*entity.AccountIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ident := range f.identities {
		if ident.PhoneKey == phoneKey {
			cp := *ident
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeDirectory) ProvisionLoginToken(_ context.Context, in entity.ProvisionLoginToken) (*entity.AccountIdentity, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.provisions = append(f.provisions, in)
	if f.err != nil {
		return nil, false, f.err
	}

	ident, ok := f.identities[in.LoginAlias]
	created := !ok
	if !ok {
		ident = &entity.AccountIdentity{
			ID:         in.IdentityID,
			LoginAlias: in.LoginAlias,
			PhoneKey:   in.PhoneKey,
			Role:       in.Role,
			Provenance: in.Provenance,
			Metadata:   in.Metadata,
		}
		f.identities[in.LoginAlias] = ident
	}

	f.tokens[in.TokenDigest] = &fakeToken{identityID: ident.ID, expiresAt: in.ExpiresAt}

	cp := *ident
	return &cp, created, nil
}

func (f *fakeDirectory) ConsumeLoginToken(_ context.Context, digest string, now time.Time) (*entity.AccountIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tok, ok := f.tokens[digest]
	if !ok || tok.consumed || !tok.expiresAt.After(now) {
		return nil, goerror.ErrNotFound
	}
	tok.consumed = true

	for _, ident := range f.identities {
		if ident.ID == tok.identityID {
			cp := *ident
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

type fakeThrottle struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func (f *fakeThrottle) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	if f.hits == nil {
		f.hits = map[string]int64{}
	}
	f.hits[key]++
	return f.hits[key], nil
}

type fakeGateway struct {
	sent []string
	err  error
}

func (f *fakeGateway) SendCode(_ context.Context, phoneKey, code string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, phoneKey+":"+code)
	return fmt.Sprintf("wamid.%d", len(f.sent)), nil
}

type fakePublisher struct {
	events []LeadVerifiedEvent
	err    error
}

func (f *fakePublisher) PublishLeadVerified(_ context.Context, msg LeadVerifiedEvent) error {
	f.events = append(f.events, msg)
	return f.err
}

// queueCode hands out queued codes, then a zero padded counter.
type queueCode struct {
	codes []string
	n     int
}

func (q *queueCode) Generate() (string, error) {
	q.n++
	if len(q.codes) > 0 {
		c := q.codes[0]
		q.codes = q.codes[1:]
		return c, nil
	}
	return fmt.Sprintf("%04d", q.n), nil
}

func (q *queueCode) Length() int { return 4 }

type seqID struct{ n int64 }

func (s *seqID) Generate() int64 {
	s.n++
	return s.n
}

type seqToken struct {
	n     int
	empty bool
}

func (s *seqToken) Generate() string {
	if s.empty {
		return ""
	}
	s.n++
	return fmt.Sprintf("login-token-%d", s.n)
}

type fixedUUID string

func (f fixedUUID) Generate() string { return string(f) }

type suite struct {
	uc        *Usecase
	ledger    *fakeLedger
	directory *fakeDirectory
	throttle  *fakeThrottle
	gateway   *fakeGateway
	publisher *fakePublisher
	codes     *queueCode
	token     *seqToken
	clock     *clock.Manual
	jwt       jwt.JWT
}

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newSuite(t *testing.T, settings Settings) *suite {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	normalizer, err := phone.NewNormalizer("+91", false)
	require.NoError(t, err)

	alias, err := hash.NewBlake2b([]byte("alias-secret"))
	require.NoError(t, err)

	clk := clock.NewManual(epoch)

	j, err := jwt.NewHS512(jwt.Config{
		Secret: []byte(strings.Repeat("k", 64)),
		Issuer: "finadvise",
		TTL:    15 * time.Minute,
		Clock:  clk,
		UUID:   fixedUUID("jti"),
	})
	require.NoError(t, err)

	s := &suite{
		ledger:    newFakeLedger(),
		directory: newFakeDirectory(),
		throttle:  &fakeThrottle{},
		gateway:   &fakeGateway{},
		publisher: &fakePublisher{},
		codes:     &queueCode{},
		token:     &seqToken{},
		clock:     clk,
		jwt:       j,
	}

	s.uc = New(Dependency{
		RepoLedger:    s.ledger,
		RepoDirectory: s.directory,
		RepoThrottle:  s.throttle,
		RepoMessaging: s.publisher,
		Gateway:       s.gateway,
		Phone:         normalizer,
		Code:          s.codes,
		Validator:     v,
		HMAC:          hash.NewHMACSHA256("otp-secret"),
		AliasHash:     alias,
		UID:           &seqID{},
		Token:         s.token,
		Clock:         clk,
		JWT:           j,
		Instrument:    instrument.NewNoop(),
		Settings:      settings,
	})

	return s
}

func defaultSettings() Settings {
	return Settings{
		TTL:            10 * time.Minute,
		MaxPerHour:     5,
		DevEcho:        true,
		ConsumeExpired: true,
		AliasDomain:    "phone.finadvise.test",
		ActionLinkURL:  "https://app.finadvise.test/auth/confirm",
	}
}

func requireCode(t *testing.T, err error, code goerror.Code) {
	t.Helper()

	require.Error(t, err)
	var gerr *goerror.Error
	require.True(t, errors.As(err, &gerr), "expected *goerror.Error, got %T", err)
	require.Equal(t, code, gerr.Code(), "message: %s", gerr.Msg())
}
