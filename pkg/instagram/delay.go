package instagram

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/retry"
)

// DelayPolicy decides the short pause taken before each request
type DelayPolicy interface {
	Delay() time.Duration
}

// JitterDelay draws exponentially distributed pauses capped at Max
type JitterDelay struct {
	Rate float64
	Max  time.Duration
}

// DefaultJitterDelay pauses min(Exp(0.7), 5) seconds
func DefaultJitterDelay() JitterDelay {
	return JitterDelay{Rate: 0.7, Max: 5 * time.Second}
}

func (j JitterDelay) Delay() time.Duration {
	rate := j.Rate
	if rate <= 0 {
		rate = 0.7
	}
	secs := rand.ExpFloat64() / rate
	d := time.Duration(secs * float64(time.Second))
	if j.Max > 0 {
		d = time.Duration(math.Min(float64(d), float64(j.Max)))
	}
	return d
}

// NoDelay never pauses
type NoDelay struct{}

func (NoDelay) Delay() time.Duration { return 0 }

// doSleep takes the cooperative pause before a request
func (c *Context) doSleep(ctx context.Context) error {
	d := c.delay.Delay()
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return errs.Cancelled(err)
		}
		return nil
	}
	if err := retry.Wait(ctx, d); err != nil {
		return errs.Cancelled(err)
	}
	return nil
}
