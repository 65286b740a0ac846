package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/finadvise/internal/crm/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/clock"
	"github.com/shandysiswandi/finadvise/internal/pkg/idempotency"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/uid"
	"github.com/shandysiswandi/finadvise/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	UpsertLead(ctx context.Context, in entity.UpsertLead) (*entity.Lead, error)
}

type dedup interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...idempotency.Option) error
}

type Usecase struct {
	repoDB    repoDB
	dedup     dedup
	dedupTTL  time.Duration
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoDB repoDB
	// Dedup is optional; without it every delivery is applied.
	Dedup      dedup
	DedupTTL   time.Duration
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	return &Usecase{
		repoDB:    dep.RepoDB,
		dedup:     dep.Dedup,
		dedupTTL:  dep.DedupTTL,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       ins,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("crm.usecase").Start(ctx, name)
}
