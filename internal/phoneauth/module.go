package phoneauth

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/inbound"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/outbound/cache"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/outbound/db"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/outbound/directory"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/outbound/mq"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/outbound/whatsapp"
	"github.com/shandysiswandi/finadvise/internal/phoneauth/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/config"
	"github.com/shandysiswandi/finadvise/internal/pkg/hash"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/jwt"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/pkg/otp"
	"github.com/shandysiswandi/finadvise/internal/pkg/phone"
	"github.com/shandysiswandi/finadvise/internal/pkg/router"
	"github.com/shandysiswandi/finadvise/internal/pkg/uid"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
)

type Dependency struct {
	DBConn *pgxpool.Pool `validate:"required"`
	// CacheConn is optional; without it the per-IP throttle is off.
	CacheConn  *redis.Client
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Token      uid.StringID               `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	AliasHash  hash.Hash                  `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	cfg := dep.Config

	normalizer, err := phone.NewNormalizer(
		cfg.GetString("modules.phoneauth.phone.default_country_prefix"),
		cfg.GetBool("modules.phoneauth.phone.strict"),
	)
	if err != nil {
		return fmt.Errorf("phone normalizer: %w", err)
	}

	code, err := otp.NewNumeric(cfg.GetInt("modules.phoneauth.otp.length"))
	if err != nil {
		return fmt.Errorf("otp generator: %w", err)
	}

	gateway := whatsapp.New(whatsapp.Config{
		BaseURL:          cfg.GetString("modules.phoneauth.whatsapp.base_url"),
		APIVersion:       cfg.GetString("modules.phoneauth.whatsapp.api_version"),
		PhoneNumberID:    cfg.GetString("modules.phoneauth.whatsapp.phone_number_id"),
		AccessToken:      cfg.GetString("modules.phoneauth.whatsapp.access_token"),
		TemplateName:     cfg.GetString("modules.phoneauth.whatsapp.template_name"),
		TemplateLanguage: cfg.GetString("modules.phoneauth.whatsapp.template_language"),
		Timeout:          cfg.GetSecond("modules.phoneauth.whatsapp.timeout_seconds"),
		TotalTimeout:     cfg.GetSecond("modules.phoneauth.whatsapp.total_timeout_seconds"),
		MaxRetries:       cfg.GetUint64("modules.phoneauth.whatsapp.max_retries"),
		Backoff:          time.Duration(cfg.GetInt("modules.phoneauth.whatsapp.backoff_ms")) * time.Millisecond,
	}, dep.Instrument)

	var throttle *cache.Throttle
	if dep.CacheConn != nil {
		throttle = cache.NewThrottle(dep.CacheConn, dep.Instrument)
	}

	ucDep := usecase.Dependency{
		RepoLedger:    db.NewDB(dep.DBConn, dep.Instrument),
		RepoDirectory: directory.New(dep.DBConn, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Gateway:       gateway,
		Phone:         normalizer,
		Code:          code,
		Validator:     dep.Validator,
		HMAC:          dep.HMAC,
		AliasHash:     dep.AliasHash,
		UID:           dep.UID,
		Token:         dep.Token,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Settings:      settingsFrom(cfg),
	}
	if throttle != nil {
		ucDep.RepoThrottle = throttle
	}

	inbound.RegisterHTTPEndpoint(dep.Router, usecase.New(ucDep))

	return nil
}

func settingsFrom(cfg config.Config) usecase.Settings {
	return usecase.Settings{
		TTL:               cfg.GetMinute("modules.phoneauth.otp.ttl_minutes"),
		MaxPerHour:        cfg.GetInt64("modules.phoneauth.otp.max_per_hour"),
		MaxPerIPPerHour:   cfg.GetInt64("modules.phoneauth.otp.max_per_ip_per_hour"),
		DevEcho:           cfg.GetBool("modules.phoneauth.otp.dev_echo"),
		ConsumeExpired:    cfg.GetBool("modules.phoneauth.otp.consume_expired"),
		AliasDomain:       cfg.GetString("modules.phoneauth.session.alias_domain"),
		DefaultRole:       cfg.GetString("modules.phoneauth.session.default_role"),
		Provenance:        cfg.GetString("modules.phoneauth.session.provenance"),
		TokenTTL:          cfg.GetMinute("modules.phoneauth.session.token_ttl_minutes"),
		ActionLinkURL:     cfg.GetString("modules.phoneauth.session.action_link_url"),
		AutomationSources: cfg.GetArray("modules.phoneauth.automation.trigger_sources"),
		AutomationAPIKey:  cfg.GetString("modules.phoneauth.automation.api_key"),
	}
}
