// Package retry provides backoff strategies, an injectable clock and a bounded
// retry loop for transient failures talking to the Gab API.
//
// The HTTP transport uses Policy to pick a fixed wait per condition (404, 5xx,
// 429, connection failure); the login handshake uses Do directly:
//
//	err := retry.Do(func() error {
//		return fetchLoginPage(ctx)
//	}, &retry.Config{
//		MaxAttempts: cfg.Transport.ConnectionErrors,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.NetworkOnly,
//		Context:     ctx,
//	})
//
// All waiting goes through a Clock so tests can substitute a FakeClock and
// observe the simulated time that passed.
package retry
