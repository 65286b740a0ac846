package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/hash"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/jwt"
	"github.com/shandysiswandi/finadvise/internal/pkg/otp"
	"github.com/shandysiswandi/finadvise/internal/pkg/uid"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownFlow is returned when a request carries no known flow profile.
var ErrUnknownFlow = errors.New("phoneauth: unknown flow")

type LeadVerifiedEvent struct {
	PhoneNumber string
	LeadName    string
	DeviceID    string
	VerifiedAt  time.Time
}

type repoMessaging interface {
	PublishLeadVerified(ctx context.Context, msg LeadVerifiedEvent) error
}

type repoLedger interface {
	CountIssuedSince(ctx context.Context, table entity.LedgerTable, phoneKey string, since time.Time) (int64, error)
	ReplaceActive(ctx context.Context, table entity.LedgerTable, req entity.OtpRequest) error
	FindUnused(ctx context.Context, table entity.LedgerTable, phoneKey, codeHash string) (*entity.OtpRequest, error)
	MarkUsed(ctx context.Context, table entity.LedgerTable, id int64) (bool, error)
}

type repoDirectory interface {
	FindIdentityByPhone(ctx context.Context, phoneKey string) (*entity.AccountIdentity, error)
	ProvisionLoginToken(ctx context.Context, in entity.ProvisionLoginToken) (_ *entity.AccountIdentity, created bool, err error)
	ConsumeLoginToken(ctx context.Context, tokenDigest string, now time.Time) (*entity.AccountIdentity, error)
}

type repoThrottle interface {
	// Hit counts one event for key inside window and returns the running total.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type gateway interface {
	SendCode(ctx context.Context, phoneKey, code string) (messageID string, err error)
}

type phoneNormalizer interface {
	Normalize(raw string) (string, error)
}

// Settings is the tunable behaviour of the flows, resolved once at start-up.
type Settings struct {
	TTL             time.Duration
	MaxPerHour      int64
	MaxPerIPPerHour int64
	DevEcho         bool
	ConsumeExpired  bool

	AliasDomain   string
	DefaultRole   string
	Provenance    string
	TokenTTL      time.Duration
	ActionLinkURL string

	AutomationSources []string
	AutomationAPIKey  string
}

const (
	defaultTTL         = 10 * time.Minute
	defaultMaxPerHour  = 5
	defaultTokenTTL    = time.Hour
	defaultAliasDomain = "phone.finadvise.local"
	defaultRole        = "customer"
	defaultProvenance  = "phone_otp"
	aliasDigestLength  = 24
	rateLimitWindow    = time.Hour
)

func (s Settings) withDefaults() Settings {
	if s.TTL <= 0 {
		s.TTL = defaultTTL
	}
	if s.MaxPerHour <= 0 {
		s.MaxPerHour = defaultMaxPerHour
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = defaultTokenTTL
	}
	if s.AliasDomain == "" {
		s.AliasDomain = defaultAliasDomain
	}
	if s.DefaultRole == "" {
		s.DefaultRole = defaultRole
	}
	if s.Provenance == "" {
		s.Provenance = defaultProvenance
	}
	return s
}

type metrics struct {
	issued   metric.Int64Counter
	verified metric.Int64Counter
	delivery metric.Int64Counter
}

func newMetrics(meter metric.Meter) metrics {
	m := metrics{
		issued:   metricnoop.Int64Counter{},
		verified: metricnoop.Int64Counter{},
		delivery: metricnoop.Int64Counter{},
	}

	if c, err := meter.Int64Counter("phoneauth.otp.issued",
		metric.WithDescription("Number of one-time codes issued")); err == nil {
		m.issued = c
	} else {
		slog.Error("failed to create otp issued counter", "error", err)
	}

	if c, err := meter.Int64Counter("phoneauth.otp.verified",
		metric.WithDescription("Number of verification attempts by outcome")); err == nil {
		m.verified = c
	} else {
		slog.Error("failed to create otp verified counter", "error", err)
	}

	if c, err := meter.Int64Counter("phoneauth.whatsapp.delivery",
		metric.WithDescription("Number of WhatsApp deliveries by outcome")); err == nil {
		m.delivery = c
	} else {
		slog.Error("failed to create whatsapp delivery counter", "error", err)
	}

	return m
}

type Usecase struct {
	repoLedger    repoLedger
	repoDirectory repoDirectory
	repoThrottle  repoThrottle
	repoMessaging repoMessaging
	gateway       gateway
	phone         phoneNormalizer
	code          otp.Generator
	validator     validator.Validator
	hmac          hash.Hash
	aliasHash     hash.Hash
	uid           uid.NumberID
	token         uid.StringID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	metrics       metrics
	settings      Settings
}

type Dependency struct {
	RepoLedger    repoLedger
	RepoDirectory repoDirectory
	// RepoThrottle is optional; without it the per-IP throttle is off.
	RepoThrottle  repoThrottle
	RepoMessaging repoMessaging
	Gateway       gateway
	Phone         phoneNormalizer
	Code          otp.Generator
	Validator     validator.Validator
	HMAC          hash.Hash
	AliasHash     hash.Hash
	UID           uid.NumberID
	Token         uid.StringID
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Settings      Settings
}

func New(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	return &Usecase{
		repoLedger:    dep.RepoLedger,
		repoDirectory: dep.RepoDirectory,
		repoThrottle:  dep.RepoThrottle,
		repoMessaging: dep.RepoMessaging,
		gateway:       dep.Gateway,
		phone:         dep.Phone,
		code:          dep.Code,
		validator:     dep.Validator,
		hmac:          dep.HMAC,
		aliasHash:     dep.AliasHash,
		uid:           dep.UID,
		token:         dep.Token,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           ins,
		metrics:       newMetrics(ins.Meter("phoneauth.usecase")),
		settings:      dep.Settings.withDefaults(),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("phoneauth.usecase").Start(ctx, name)
}

// isAutomation reports whether source is a configured automation trigger.
func (s *Usecase) isAutomation(source string) bool {
	return source != "" && lo.Contains(s.settings.AutomationSources, source)
}

func (s *Usecase) validAPIKey(key string) bool {
	if s.settings.AutomationAPIKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.settings.AutomationAPIKey)) == 1
}

func (s *Usecase) digest(value string) (string, error) {
	sum, err := s.hmac.Hash(value)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}
