package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
)

const keyPrefix = "phoneauth:throttle:"

// ErrInvalidWindow is returned for a zero or negative window.
var ErrInvalidWindow = errors.New("cache: window must be positive")

// hit increments and sets the window in one step. A counter left without a TTL
// gets one on its next hit, so it can never throttle forever.
var hit = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Throttle counts events per key in fixed windows stored in Redis.
type Throttle struct {
	client *redis.Client
	ins    instrument.Instrumentation
}

func NewThrottle(client *redis.Client, ins instrument.Instrumentation) *Throttle {
	return &Throttle{client: client, ins: ins}
}

// Hit increments the counter of key and returns the total inside the current
// window. The window starts with the first hit.
func (t *Throttle) Hit(ctx context.Context, key string, window time.Duration) (n int64, err error) {
	ctx, span := t.ins.Tracer("phoneauth.outbound.cache").Start(ctx, "Hit")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if window <= 0 {
		return 0, ErrInvalidWindow
	}

	n, err = hit.Run(ctx, t.client, []string{keyPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}

	return n, nil
}
