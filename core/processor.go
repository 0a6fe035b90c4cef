package core

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	"github.com/Skryldev/media-editor/config"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// Processor runs editor work on a bounded worker pool so the caller's
// goroutine only ever waits on a single result.  It is safe for concurrent
// use.
type Processor struct {
	cfg     config.Config
	logger  Logger
	metrics MetricsCollector

	pool     pond.ResultPool[*Result]
	once     sync.Once
	stopOnce sync.Once

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// NewProcessor creates a Processor with the given config.  The pool is
// created lazily by Start or the first Run.
func NewProcessor(cfg config.Config) *Processor {
	return &Processor{cfg: cfg, logger: nopLogger{}}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	p.logger = l
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// Start launches the worker pool.  It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		workers := p.cfg.WorkerCount
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		queueSize := p.cfg.QueueSize
		if queueSize <= 0 {
			queueSize = 256
		}
		p.pool = pond.NewResultPool[*Result](workers,
			pond.WithQueueSize(queueSize),
			pond.WithNonBlocking(true),
		)
	})
}

// Stop waits for running work to finish and shuts the pool down.
func (p *Processor) Stop() {
	p.Start()
	p.stopOnce.Do(func() { p.pool.StopAndWait() })
}

// Run submits work and blocks until it completes or ctx is done.  When ctx is
// cancelled first, the work's own context is cancelled too, which kills any
// encoder subprocess it started.
func (p *Processor) Run(ctx context.Context, op string, kind EditorKind, work Work) (*Result, error) {
	p.Start()

	if timeout := p.cfg.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	id := uuid.NewString()
	start := time.Now()
	task := p.submit(ctx, id, op, kind, work)

	var (
		res *Result
		err error
	)
	select {
	case <-task.Done():
		res, err = task.Wait()
	case <-ctx.Done():
		err = apperrors.Wrap(apperrors.CategoryPipeline, op, ctx.Err())
	}
	err = p.finish(id, op, kind, start, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Submit enqueues an async job.  Returns ErrWorkerPoolFull if the queue is full.
func (p *Processor) Submit(job Job) error {
	p.Start()

	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc = func() {}
	if timeout := p.cfg.JobTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	start := time.Now()
	task := p.submit(ctx, job.ID, job.Op, job.Kind, job.Work)

	select {
	case <-task.Done():
		if _, err := task.Wait(); errors.Is(err, pond.ErrQueueFull) {
			cancel()
			atomic.AddInt64(&p.errorCount, 1)
			return apperrors.New(apperrors.CategoryPipeline, "submit", apperrors.ErrWorkerPoolFull)
		}
	default:
	}

	go func() {
		defer cancel()
		res, err := task.Wait()
		err = p.finish(job.ID, job.Op, job.Kind, start, res, err)
		if job.ResultCh != nil {
			if err != nil {
				res = nil
			}
			job.ResultCh <- JobResult{JobID: job.ID, Result: res, Err: err}
		}
	}()
	return nil
}

func (p *Processor) submit(ctx context.Context, id, op string, kind EditorKind, work Work) pond.Result[*Result] {
	p.logger.Debug("edit.start", "job_id", id, "op", op, "kind", kind.String())
	return p.pool.SubmitErr(func() (*Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, op, err)
		}
		return work(ctx)
	})
}

// finish normalises pool errors and records logs, counters and metrics.
func (p *Processor) finish(id, op string, kind EditorKind, start time.Time, res *Result, err error) error {
	switch {
	case err == nil && res == nil:
		err = apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyInput)
	case errors.Is(err, pond.ErrQueueFull):
		err = apperrors.New(apperrors.CategoryPipeline, op, apperrors.ErrWorkerPoolFull)
	case err != nil && apperrors.CategoryOf(err) == "":
		err = apperrors.Wrap(apperrors.CategoryPipeline, op, err)
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordProcessingTime(op, elapsed)
	}
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		if p.metrics != nil {
			p.metrics.RecordError(op, string(apperrors.CategoryOf(err)))
		}
		p.logger.Error("edit.error",
			"job_id", id,
			"op", op,
			"kind", kind.String(),
			"duration_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
		return err
	}

	atomic.AddInt64(&p.processedCount, 1)
	if p.metrics != nil {
		p.metrics.RecordThroughput(int64(len(res.Data)))
	}
	p.logger.Info("edit.done",
		"job_id", id,
		"op", op,
		"kind", kind.String(),
		"duration_ms", elapsed.Milliseconds(),
		"bytes", len(res.Data),
		"mime", res.MIME,
	)
	return nil
}

// ProcessedCount returns the total number of successful edits.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of failed edits.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

var _ Runner = (*Processor)(nil)
