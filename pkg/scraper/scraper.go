package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"igcrawler/internal/downloader"
	"igcrawler/pkg/checkpoint"
	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/filter"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metadata"
	"igcrawler/pkg/metrics"
	"igcrawler/pkg/nodeiter"
	"igcrawler/pkg/stamps"
	"igcrawler/pkg/storage"
	"igcrawler/pkg/ui"
)

// Options configures a Scraper
type Options struct {
	// Context is the crawler context targets are fetched with. In parallel mode
	// each target gets a Clone of it.
	Context *instagram.Context
	// Snapshots enables resumable iteration when set
	Snapshots checkpoint.Backend
	// Stamps records the newest post per profile when set
	Stamps *stamps.LatestStamps
	Filter *filter.Filter
	// Progress receives a progress display per target; nil disables it
	Progress *ui.Printer
	// Sleep replaces the download retry wait, mainly for tests
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logger.Logger
}

// Scraper downloads the posts of a batch of profiles
type Scraper struct {
	ctx       *instagram.Context
	cfg       *config.Config
	snapshots checkpoint.Backend
	stamps    *stamps.LatestStamps
	filter    *filter.Filter
	progress  *ui.Printer
	sleep     func(ctx context.Context, d time.Duration) error
	logger    logger.Logger
}

// New creates a Scraper
func New(opts Options) (*Scraper, error) {
	if opts.Context == nil {
		return nil, errors.New("scraper needs an instagram context")
	}
	log := opts.Logger
	if log == nil {
		log = opts.Context.Logger()
	}
	progress := opts.Progress
	if progress == nil {
		progress = ui.NewPrinter(io.Discard)
	}
	return &Scraper{
		ctx:       opts.Context,
		cfg:       opts.Context.Config(),
		snapshots: opts.Snapshots,
		stamps:    opts.Stamps,
		filter:    opts.Filter,
		progress:  progress,
		sleep:     opts.Sleep,
		logger:    log,
	}, nil
}

// DownloadProfiles crawls every username. Failures of single targets are
// caught, logged and listed in the summary; the error returned is either a
// fatal one (cancellation, abort) or, with crawl.raise_all_errors, the first
// target failure. The summary is returned in both cases.
func (s *Scraper) DownloadProfiles(ctx context.Context, usernames []string) (*Summary, error) {
	runID := uuid.NewString()
	log := s.logger.WithField("run_id", runID)
	start := time.Now()
	seen := len(s.ctx.ErrorLog())

	summary := &Summary{
		RunID:   runID,
		Targets: make([]TargetResult, len(usernames)),
	}
	for i, username := range usernames {
		summary.Targets[i].Username = instagram.SanitizeUsername(username)
	}

	log.InfoWithFields("Starting crawl", map[string]interface{}{
		"targets":  len(usernames),
		"parallel": s.cfg.Crawl.Parallel,
	})

	var err error
	if s.cfg.Crawl.Parallel > 1 && len(usernames) > 1 {
		err = s.runParallel(ctx, log, summary.Targets)
	} else {
		err = s.runSequential(ctx, log, summary.Targets)
	}

	if s.stamps != nil {
		if serr := s.stamps.Save(); serr != nil {
			log.WithError(serr).Error("Failed to save latest stamps")
			err = errors.Join(err, serr)
		}
	}

	summary.Duration = time.Since(start)
	summary.Errors = s.ctx.ErrorLog()[seen:]
	log.InfoWithFields("Crawl finished", summary.fields())
	return summary, err
}

func (s *Scraper) runSequential(ctx context.Context, log logger.Logger, targets []TargetResult) error {
	for i := range targets {
		res := &targets[i]
		if err := s.runTarget(ctx, s.ctx, log, res); err != nil {
			return err
		}
	}
	return nil
}

// runParallel gives each target its own Context clone so sessions, rate
// windows and page lengths are not shared between goroutines.
func (s *Scraper) runParallel(ctx context.Context, log logger.Logger, targets []TargetResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Crawl.Parallel)

	var mu sync.Mutex
	for i := range targets {
		res := &targets[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				res.Err = errs.Cancelled(gctx.Err())
				return nil
			}
			tctx := s.ctx.Clone()
			err := s.runTarget(gctx, tctx, log, res)
			mu.Lock()
			s.ctx.Absorb(tctx)
			mu.Unlock()
			return err
		})
	}
	return g.Wait()
}

func (s *Scraper) runTarget(ctx context.Context, ic *instagram.Context, log logger.Logger, res *TargetResult) error {
	start := time.Now()
	err := ic.Catch(res.Username, func() error {
		err := s.downloadProfile(ctx, ic, log.WithField("target", res.Username), res)
		res.Err = err
		return err
	})
	res.Duration = time.Since(start)

	switch {
	case res.Err == nil:
		metrics.RecordTarget("ok")
	case errs.IsFatal(res.Err):
		metrics.RecordTarget("aborted")
	default:
		metrics.RecordTarget("failed")
	}
	return err
}

func (s *Scraper) outputDir(username string) string {
	if s.cfg.Output.CreateUserFolders {
		return filepath.Join(s.cfg.Output.BaseDirectory, username)
	}
	return s.cfg.Output.BaseDirectory
}

// downloadProfile walks the posts of one profile, newest first, and fetches the
// media of each accepted post before pulling the next one.
func (s *Scraper) downloadProfile(ctx context.Context, ic *instagram.Context, log logger.Logger, res *TargetResult) error {
	profile, err := ic.ProfileByUsername(ctx, res.Username)
	if err != nil {
		return err
	}
	if err := ic.CheckProfileAccess(profile); err != nil {
		return err
	}
	res.Username = profile.Username
	log.InfoWithFields("Crawling profile", map[string]interface{}{
		"profile_id": profile.ID,
		"posts":      profile.PostCount,
	})

	store, err := storage.NewManager(s.outputDir(profile.Username))
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	pool := downloader.New(ic, downloader.Options{
		Workers:           s.cfg.Download.ConcurrentDownloads,
		RequestsPerSecond: s.cfg.Download.RequestsPerSecond,
		RetryAttempts:     s.cfg.Download.RetryAttempts,
		Timeout:           s.cfg.Download.DownloadTimeout,
		Sleep:             s.sleep,
		Logger:            log,
	})

	progress := s.progress.NewProgress(profile.Username, int(profile.PostCount))
	defer progress.Complete()
	stopWarnings := ic.Controller().OnLongWait(func(_ string, wait time.Duration) {
		progress.RateLimitWarning(wait)
	})
	defer stopWarnings()

	var stamp time.Time
	var hasStamp bool
	if s.stamps != nil && s.cfg.Crawl.FastUpdate {
		stamp, hasStamp = s.stamps.PostTimestamp(profile.Username)
	}

	var snapshots nodeiter.SnapshotStore
	if s.snapshots != nil {
		snapshots = s.snapshots.ForTarget(profile.Username)
	}

	posts := ic.ProfilePosts(profile)
	var newest time.Time
	err = nodeiter.Resume(ctx, posts, snapshots, nodeiter.ResumeOptions{
		Disabled:        !s.cfg.Resume.Enabled,
		CheckBestBefore: s.cfg.Resume.CheckBestBefore,
		Logger:          log,
	}, func(isResuming bool, startIndex int) error {
		res.Resumed = isResuming
		if isResuming {
			log.InfoWithFields("Resuming profile", map[string]interface{}{"start_index": startIndex})
			progress.SetDownloadedCount(startIndex)
		}
		for {
			post, ok, err := posts.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			res.Posts++
			if taken := post.TakenAt(); taken.After(newest) {
				newest = taken
			}

			if hasStamp && !post.TakenAt().After(stamp) {
				log.InfoWithFields("Reached already crawled post", map[string]interface{}{"shortcode": post.Shortcode()})
				res.StoppedEarly = true
				return nil
			}

			match, err := s.filter.Match(post)
			if err != nil {
				return errs.Wrap(errs.ErrorTypeInvalidArgument, err, "post %s", post.Shortcode())
			}
			if !match {
				res.Filtered++
				progress.SkipPost(post.Shortcode())
				continue
			}

			allKnown, err := s.downloadPost(ctx, ic, pool, store, post, res, progress)
			if err != nil {
				return err
			}
			if allKnown && s.cfg.Crawl.FastUpdate && !hasStamp {
				log.InfoWithFields("Reached already downloaded post", map[string]interface{}{"shortcode": post.Shortcode()})
				res.StoppedEarly = true
				return nil
			}
		}
	})
	if err != nil {
		return err
	}

	if res.Failed > 0 {
		return errs.New(errs.ErrorTypeNetwork, "%d media downloads of %s failed", res.Failed, profile.Username)
	}
	if s.stamps != nil && !newest.IsZero() {
		s.stamps.SetPostTimestamp(profile.Username, profile.ID, newest)
	}
	return nil
}

// downloadPost fetches the media of post. allKnown is true when every item was
// already on disk. Failed items are recorded; only cancellation is returned.
func (s *Scraper) downloadPost(ctx context.Context, ic *instagram.Context, pool *downloader.Pool, store *storage.Manager, post *instagram.Post, res *TargetResult, progress *ui.ProgressDisplay) (bool, error) {
	var jobs []downloader.Job
	for _, m := range post.Media() {
		if m.IsVideo && s.cfg.Download.SkipVideos {
			continue
		}
		jobs = append(jobs, downloader.Job{
			URL:       m.URL,
			Name:      storage.FileName(post.Shortcode(), m.Index, m.IsVideo),
			Shortcode: post.Shortcode(),
			ModTime:   post.TakenAt(),
		})
	}
	if len(jobs) == 0 {
		progress.SkipPost(post.Shortcode())
		return false, nil
	}

	progress.StartDownload(post.Shortcode())
	allKnown, failed := true, false
	var downloaded, skipped int
	var size int64
	for _, r := range pool.Process(ctx, store, jobs) {
		switch {
		case r.Err != nil && errs.IsCancellation(r.Err):
			return false, r.Err
		case r.Err != nil:
			allKnown, failed = false, true
			res.Failed++
			progress.FailDownload(r.Job.Name, r.Err)
			ic.Error(fmt.Sprintf("%s: download of %s failed: %v", res.Username, r.Job.Name, r.Err))
		case r.Skipped:
			skipped++
		default:
			allKnown = false
			downloaded++
			size += r.Size
		}
	}
	res.Downloaded += downloaded
	res.Skipped += skipped
	progress.CompleteDownload(post.Shortcode(), downloaded, skipped, size)

	if s.cfg.Download.SaveMetadata && !failed {
		files := make([]metadata.MediaFile, len(jobs))
		for i, job := range jobs {
			files[i] = metadata.MediaFile{File: job.Name, URL: job.URL, IsVideo: strings.HasSuffix(job.Name, ".mp4")}
		}
		meta, err := metadata.FromPost(post, files)
		if err == nil {
			err = meta.Save(store)
		}
		if err != nil {
			ic.Error(fmt.Sprintf("%s: metadata of %s: %v", res.Username, post.Shortcode(), err))
		}
	}
	return allKnown, nil
}
