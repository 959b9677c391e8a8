// Package paginate drives a cursor over a paginated endpoint and exposes the
// records as a lazy sequence.
package paginate

import (
	"context"
	"iter"
	"time"

	errs "garc/pkg/errors"
	"garc/pkg/gab"
	"garc/pkg/logger"
)

// State is the lifecycle position of an Engine run
type State int

const (
	StateStart State = iota
	StateFetching
	StateEmitting
	StateExhausted
	StateLimitReached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateEmitting:
		return "emitting"
	case StateExhausted:
		return "exhausted"
	case StateLimitReached:
		return "limit_reached"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultLookbackSample is the number of records inspected against a cutoff
const DefaultLookbackSample = 4

// FetchFunc retrieves the page at cursor. A rate_limit error makes the engine
// request the same cursor again.
type FetchFunc func(ctx context.Context, cursor string) (*gab.Page, error)

// Engine pages through one endpoint. An Engine is single use: Run it once.
type Engine struct {
	Fetch  FetchFunc
	Cursor Cursor

	// Limit ends the run once at least Limit records were yielded, checked
	// only at page boundaries (0 = unlimited)
	Limit int
	// Stop ends the run at the first record it accepts; that record is not yielded
	Stop func(*gab.Record) bool
	// Filter hides records from the consumer; the cursor still passes them
	Filter func(*gab.Record) bool
	// Transform runs on each record right before it is yielded
	Transform func(*gab.Record)

	// Cutoff ends the run after a page whose sampled records are all older
	Cutoff         time.Time
	LookbackSample int

	Log logger.Logger

	state    State
	err      error
	yielded  int
	requests int
}

// Result summarizes a finished run
type Result struct {
	State    State
	Yielded  int
	Requests int
	Err      error
}

// Result reports the outcome; meaningful once the sequence has finished
func (e *Engine) Result() Result {
	return Result{State: e.state, Yielded: e.yielded, Requests: e.requests, Err: e.err}
}

// Run returns the record sequence. Nothing is fetched until iteration starts,
// and breaking out of the loop stops without further requests.
func (e *Engine) Run(ctx context.Context) iter.Seq2[*gab.Record, error] {
	return func(yield func(*gab.Record, error) bool) {
		log := e.Log
		if log == nil {
			log = logger.NewNopLogger()
		}
		e.state = StateStart

		for {
			if err := ctx.Err(); err != nil {
				e.fail(err)
				yield(nil, err)
				return
			}

			e.state = StateFetching
			cursor := e.Cursor.Value()
			page, err := e.Fetch(ctx, cursor)
			e.requests++
			if err != nil {
				if errs.IsType(err, errs.ErrorTypeRateLimit) {
					log.WarnWithFields("rate limited, fetching the same page again", map[string]interface{}{
						"cursor": cursor,
					})
					continue
				}
				e.fail(err)
				yield(nil, err)
				return
			}

			if page == nil || len(page.Records) == 0 {
				e.state = StateExhausted
				return
			}

			e.state = StateEmitting
			for _, rec := range page.Records {
				if e.Stop != nil && e.Stop(rec) {
					e.state = StateExhausted
					return
				}
				if e.Filter != nil && !e.Filter(rec) {
					continue
				}
				if e.Transform != nil {
					e.Transform(rec)
				}
				e.yielded++
				if !yield(rec, nil) {
					e.state = StateLimitReached
					return
				}
			}

			e.Cursor.Advance(page.Records)

			switch {
			case page.NoMore:
				e.state = StateExhausted
				return
			case e.Limit > 0 && e.yielded >= e.Limit:
				e.state = StateLimitReached
				return
			case e.pastCutoff(page.Records):
				log.DebugWithFields("page older than cutoff", map[string]interface{}{
					"cutoff": e.Cutoff,
				})
				e.state = StateExhausted
				return
			case e.Cursor.Value() == cursor:
				log.WarnWithFields("cursor did not move, stopping", map[string]interface{}{
					"cursor": cursor,
				})
				e.state = StateExhausted
				return
			}
		}
	}
}

func (e *Engine) fail(err error) {
	e.state = StateFailed
	e.err = err
}

// pastCutoff samples evenly spaced records of the page and reports whether
// every sampled record was published before the cutoff
func (e *Engine) pastCutoff(page []*gab.Record) bool {
	if e.Cutoff.IsZero() || len(page) == 0 {
		return false
	}
	for _, idx := range sampleIndexes(len(page), e.lookback()) {
		created := page[idx].CreatedAt
		if created.IsZero() || !created.Before(e.Cutoff) {
			return false
		}
	}
	return true
}

func (e *Engine) lookback() int {
	if e.LookbackSample <= 0 {
		return DefaultLookbackSample
	}
	return e.LookbackSample
}

// sampleIndexes picks up to k evenly spaced indexes of n items, always
// including the last one
func sampleIndexes(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 1 {
		return []int{n - 1}
	}
	idx := make([]int, k)
	for i := 0; i < k; i++ {
		idx[i] = i * (n - 1) / (k - 1)
	}
	return idx
}
