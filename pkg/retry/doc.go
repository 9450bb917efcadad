// Package retry runs an operation under a bounded attempt budget.
//
// The delay between attempts comes from a BackoffStrategy or, when the delay
// depends on the failure (for example a rate limit wait computed elsewhere),
// from Config.Delay. Waiting honours context cancellation; a cancelled wait
// returns a *CancelledError whose chain contains both the context error and the
// last operation error.
//
//	err := retry.Do(ctx, func() error {
//		return fetch(ctx)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//	})
package retry
