package inbound

import (
	"context"

	"github.com/shandysiswandi/finadvise/internal/crm/usecase"
)

type uc interface {
	ConsumeLeadVerified(ctx context.Context, in usecase.ConsumeLeadVerifiedInput) error
}
