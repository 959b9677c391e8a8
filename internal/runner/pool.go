// Package runner runs several collection jobs in parallel and funnels their
// records into one writer. Every job must build its own client: sessions are
// never shared between workers.
package runner

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	errs "garc/pkg/errors"
	"garc/pkg/gab"
	"garc/pkg/logger"
	"garc/pkg/output"
)

// Job is one collection, e.g. a single search query
type Job struct {
	Name string
	// Run starts the collection; it is called on the worker goroutine
	Run func(ctx context.Context) iter.Seq2[*gab.Record, error]
}

// Result reports the outcome of one job
type Result struct {
	Job      Job
	Records  int
	Err      error
	Duration time.Duration
}

type item struct {
	job string
	rec *gab.Record
}

// WorkerPool runs jobs on a fixed number of workers. Records are written by a
// single goroutine, so the sink needs no locking.
type WorkerPool struct {
	numWorkers int
	jobQueue   chan Job
	items      chan item
	results    []Result
	resultsMu  sync.Mutex
	workers    sync.WaitGroup
	writerDone chan struct{}
	writeErr   error
	ctx        context.Context
	cancel     context.CancelFunc
	sink       output.Writer
	logger     logger.Logger
}

// NewWorkerPool creates a pool writing into sink
func NewWorkerPool(ctx context.Context, numWorkers int, sink output.Writer, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, numWorkers*2),
		items:      make(chan item, numWorkers*16),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		sink:       sink,
		logger:     log,
	}
}

// Start launches the workers and the writer
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	go wp.writer()
	for i := 0; i < wp.numWorkers; i++ {
		wp.workers.Add(1)
		go wp.worker(i)
	}
}

// Submit queues a job
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Stop waits for queued jobs to finish and the writer to drain. It returns
// the per-job results and the first write error, if any.
func (wp *WorkerPool) Stop() ([]Result, error) {
	close(wp.jobQueue)
	wp.workers.Wait()
	close(wp.items)
	<-wp.writerDone
	wp.cancel()

	wp.logger.Info("Worker pool stopped")

	wp.resultsMu.Lock()
	defer wp.resultsMu.Unlock()
	return wp.results, wp.writeErr
}

func (wp *WorkerPool) worker(id int) {
	defer wp.workers.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.record(Result{Job: job, Err: wp.ctx.Err()})
			continue
		}
		wp.record(wp.process(job, id))
	}
}

func (wp *WorkerPool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"job":       job.Name,
	})

	for rec, err := range job.Run(wp.ctx) {
		if err != nil {
			result.Err = err
			break
		}
		select {
		case wp.items <- item{job: job.Name, rec: rec}:
			result.Records++
		case <-wp.ctx.Done():
			result.Err = wp.ctx.Err()
		}
		if result.Err != nil {
			break
		}
	}
	result.Duration = time.Since(start)

	if result.Err != nil {
		wp.logger.ErrorWithFields("Worker job failed", map[string]interface{}{
			"worker_id": workerID,
			"job":       job.Name,
			"error":     result.Err.Error(),
		})
		// the same failure would repeat for every other job
		if errs.IsFatal(errs.TypeOf(result.Err)) {
			wp.cancel()
		}
	} else {
		wp.logger.InfoWithFields("Worker job finished", map[string]interface{}{
			"worker_id": workerID,
			"job":       job.Name,
			"records":   result.Records,
			"duration":  result.Duration,
		})
	}
	return result
}

// writer serializes all records into the sink. After a write error it keeps
// draining so workers never block, and cancels the remaining jobs.
func (wp *WorkerPool) writer() {
	defer close(wp.writerDone)
	for it := range wp.items {
		if wp.writeErr != nil {
			continue
		}
		if err := wp.sink.Write(it.rec); err != nil {
			wp.writeErr = fmt.Errorf("writing record %s from %s: %w", it.rec.ID, it.job, err)
			wp.cancel()
			continue
		}
		logger.LogArchived(wp.logger, it.job, it.rec.ID)
	}
}

func (wp *WorkerPool) record(r Result) {
	wp.resultsMu.Lock()
	defer wp.resultsMu.Unlock()
	wp.results = append(wp.results, r)
}

// Run executes all jobs on numWorkers workers and waits for them
func Run(ctx context.Context, numWorkers int, sink output.Writer, log logger.Logger, jobs []Job) ([]Result, error) {
	wp := NewWorkerPool(ctx, numWorkers, sink, log)
	wp.Start()
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			break
		}
	}
	return wp.Stop()
}
