package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	errs "garc/pkg/errors"
	"garc/pkg/gab"
	"garc/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink records writes and fails when asked to
type memorySink struct {
	mu       sync.Mutex
	ids      []string
	inFlight atomic.Int32
	overlap  atomic.Bool
	failOn   string
}

func (m *memorySink) Write(rec *gab.Record) error {
	if m.inFlight.Add(1) > 1 {
		m.overlap.Store(true)
	}
	defer m.inFlight.Add(-1)

	if rec.ID == m.failOn {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, rec.ID)
	return nil
}

func (m *memorySink) Close() error { return nil }

func records(prefix string, n int) func(ctx context.Context) iter.Seq2[*gab.Record, error] {
	return func(ctx context.Context) iter.Seq2[*gab.Record, error] {
		return func(yield func(*gab.Record, error) bool) {
			for i := 0; i < n; i++ {
				if !yield(&gab.Record{ID: fmt.Sprintf("%s-%d", prefix, i)}, nil) {
					return
				}
			}
		}
	}
}

func TestRunFunnelsAllJobsIntoOneWriter(t *testing.T) {
	sink := &memorySink{}
	jobs := []Job{
		{Name: "a", Run: records("a", 20)},
		{Name: "b", Run: records("b", 15)},
		{Name: "c", Run: records("c", 5)},
	}

	results, err := Run(context.Background(), 3, sink, logger.NewNopLogger(), jobs)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, sink.ids, 40)
	assert.False(t, sink.overlap.Load(), "writes must be serialized")

	counts := map[string]int{}
	for _, r := range results {
		require.NoError(t, r.Err)
		counts[r.Job.Name] = r.Records
	}
	assert.Equal(t, map[string]int{"a": 20, "b": 15, "c": 5}, counts)
}

func TestJobErrorIsReportedPerJob(t *testing.T) {
	boom := errors.New("auth failed")
	failing := func(ctx context.Context) iter.Seq2[*gab.Record, error] {
		return func(yield func(*gab.Record, error) bool) {
			if !yield(&gab.Record{ID: "f-0"}, nil) {
				return
			}
			yield(nil, boom)
		}
	}
	sink := &memorySink{}

	results, err := Run(context.Background(), 2, sink, logger.NewNopLogger(), []Job{
		{Name: "ok", Run: records("ok", 3)},
		{Name: "bad", Run: failing},
	})

	require.NoError(t, err)
	sort.Slice(results, func(i, j int) bool { return results[i].Job.Name < results[j].Job.Name })
	assert.ErrorIs(t, results[0].Err, boom)
	assert.Equal(t, 1, results[0].Records)
	assert.NoError(t, results[1].Err)
	assert.Len(t, sink.ids, 4)
}

func TestWriteErrorStopsThePool(t *testing.T) {
	sink := &memorySink{failOn: "a-2"}

	_, err := Run(context.Background(), 1, sink, logger.NewNopLogger(), []Job{
		{Name: "a", Run: records("a", 1000)},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Less(t, len(sink.ids), 1000)
}

func TestCancelledContextSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var started atomic.Int32
	job := Job{Name: "x", Run: func(ctx context.Context) iter.Seq2[*gab.Record, error] {
		started.Add(1)
		return records("x", 1)(ctx)
	}}

	wp := NewWorkerPool(ctx, 1, &memorySink{}, logger.NewNopLogger())
	wp.Start()
	_ = wp.Submit(job)
	results, err := wp.Stop()

	require.NoError(t, err)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, int32(0), started.Load())
}

func TestFatalErrorCancelsRemainingJobs(t *testing.T) {
	sink := &memorySink{}
	fatal := func(ctx context.Context) iter.Seq2[*gab.Record, error] {
		return func(yield func(*gab.Record, error) bool) {
			yield(nil, errs.New(errs.ErrorTypeMissingCredentials, 0, "no account"))
		}
	}
	jobs := []Job{
		{Name: "first", Run: fatal},
		{Name: "second", Run: records("b", 3)},
	}

	results, err := Run(context.Background(), 1, sink, logger.NewNopLogger(), jobs)

	require.NoError(t, err)
	assert.Empty(t, sink.ids)
	require.NotEmpty(t, results)
	assert.True(t, errs.IsType(results[0].Err, errs.ErrorTypeMissingCredentials))
	for _, r := range results[1:] {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
