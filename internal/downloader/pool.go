// Package downloader fetches the media of a post through a bounded set of
// workers sharing one request-rate limiter.
package downloader

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metrics"
	"igcrawler/pkg/retry"
)

// Job is one media file to fetch
type Job struct {
	URL       string
	Name      string
	Shortcode string
	// ModTime, when set, is applied to the saved file
	ModTime time.Time
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Skipped  bool
	Err      error
	Size     int64
	Attempts int
	Duration time.Duration
}

// Fetcher streams the body of url into w
type Fetcher interface {
	DownloadRaw(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Storage saves fetched media
type Storage interface {
	IsDownloaded(name string) bool
	SaveFunc(name string, write func(io.Writer) (int64, error)) (int64, error)
	SetModTime(name string, t time.Time) error
}

// Options configures a Pool
type Options struct {
	Workers int
	// RequestsPerSecond of zero or less disables throttling
	RequestsPerSecond float64
	// RetryAttempts bounds attempts per job; connection errors are retried
	RetryAttempts int
	// Timeout bounds a single attempt; a timed out attempt is retried
	Timeout time.Duration
	Backoff retry.BackoffStrategy
	Sleep   func(ctx context.Context, d time.Duration) error
	Logger  logger.Logger
}

// Pool downloads batches of jobs
type Pool struct {
	fetcher Fetcher
	workers int
	timeout time.Duration
	limiter *rate.Limiter
	retry   retry.Config
	log     logger.Logger
}

// New creates a pool
func New(fetcher Fetcher, opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = retry.DefaultExponentialBackoff()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Pool{
		fetcher: fetcher,
		workers: workers,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(limit, workers),
		retry: retry.Config{
			MaxAttempts: attempts,
			Backoff:     backoff,
			RetryIf: func(err error) bool {
				return errs.IsType(err, errs.ErrorTypeNetwork) && !errs.IsCancellation(err)
			},
			OnRetry: func(attempt int, err error, delay time.Duration) {
				metrics.RecordRetry("download")
			},
			Sleep:  opts.Sleep,
			Logger: log,
		},
		log: log,
	}
}

// Process downloads jobs into store and returns one Result per job, in job
// order. It returns once every job has finished or ctx is done.
func (p *Pool) Process(ctx context.Context, store Storage, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	workers := min(p.workers, len(jobs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.processJob(ctx, store, jobs[i], id)
			}
		}(w)
	}

feed:
	for i := range jobs {
		select {
		case indexes <- i:
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = Result{Job: jobs[j], Err: errs.Cancelled(ctx.Err())}
			}
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	return results
}

func (p *Pool) processJob(ctx context.Context, store Storage, job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if store.IsDownloaded(job.Name) {
		p.log.DebugWithFields("Media already downloaded", map[string]interface{}{
			"worker_id": workerID,
			"name":      job.Name,
		})
		metrics.RecordDownload("skipped")
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	err := retry.Do(ctx, func() error {
		result.Attempts++
		if err := p.limiter.Wait(ctx); err != nil {
			return errs.Cancelled(err)
		}
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		defer cancel()
		n, err := store.SaveFunc(job.Name, func(w io.Writer) (int64, error) {
			return p.fetcher.DownloadRaw(actx, job.URL, w)
		})
		result.Size = n
		return err
	}, &p.retry)
	result.Duration = time.Since(start)

	if err != nil {
		result.Err = err
		metrics.RecordDownload("failed")
		p.log.ErrorWithFields("Worker failed to download media", map[string]interface{}{
			"worker_id": workerID,
			"name":      job.Name,
			"shortcode": job.Shortcode,
			"attempts":  result.Attempts,
			"error":     err.Error(),
		})
		return result
	}

	if err := store.SetModTime(job.Name, job.ModTime); err != nil {
		p.log.WarnWithFields("Failed to set media time", map[string]interface{}{
			"name":  job.Name,
			"error": err.Error(),
		})
	}

	metrics.RecordDownload("ok")
	p.log.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"name":      job.Name,
		"size":      result.Size,
		"duration":  result.Duration,
	})
	return result
}
