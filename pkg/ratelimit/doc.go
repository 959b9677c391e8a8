// Package ratelimit paces outgoing API requests.
//
// The transport takes one token per request from a TokenBucket sized from
// transport.requests_per_minute. A zero rate disables pacing; the server's own
// 429 handling then remains the only brake.
//
//	limiter := ratelimit.PerMinute(30, retry.SystemClock())
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
