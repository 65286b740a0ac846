package crm

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/finadvise/internal/crm/inbound"
	"github.com/shandysiswandi/finadvise/internal/crm/outbound/db"
	"github.com/shandysiswandi/finadvise/internal/crm/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/config"
	"github.com/shandysiswandi/finadvise/internal/pkg/goroutine"
	"github.com/shandysiswandi/finadvise/internal/pkg/idempotency"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/pkg/uid"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
)

type Dependency struct {
	Ctx    context.Context
	DBConn *pgxpool.Pool
	// CacheConn is optional; it backs redelivery dedup.
	CacheConn  *redis.Client
	Messaging  messaging.Messaging
	Config     config.Config
	Instrument instrument.Instrumentation
	UID        uid.NumberID
	UUID       uid.StringID
	Clock      clock.Clocker
	Goroutine  *goroutine.Manager
	Validator  validator.Validator
}

func New(dep Dependency) error {
	ucDep := usecase.Dependency{
		RepoDB:     db.NewDB(dep.DBConn, dep.Instrument),
		DedupTTL:   dep.Config.GetHour("modules.crm.dedup_ttl_hours"),
		UID:        dep.UID,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
	}
	if dep.CacheConn != nil {
		ucDep.Dedup = idempotency.New(dep.CacheConn, "crm:idempotency:")
	}

	uc := usecase.New(ucDep)

	if dep.Ctx != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return nil
}
