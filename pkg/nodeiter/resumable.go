package nodeiter

import (
	"context"
	"errors"
	"time"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metrics"
)

// Resumable is an iterator whose progress can be frozen and thawed
type Resumable interface {
	Magic() string
	Freeze() FrozenIterator
	Thaw(FrozenIterator) error
	TotalIndex() int
}

// SnapshotStore persists frozen iterators. Load returns an InvalidArgument
// error for snapshots that exist but cannot be used.
type SnapshotStore interface {
	PathFor(magic string) string
	Exists(ctx context.Context, path string) (bool, error)
	Load(ctx context.Context, path string) (*FrozenIterator, error)
	Save(ctx context.Context, path string, frozen FrozenIterator) error
	Delete(ctx context.Context, path string) error
}

// ResumeOptions configures Resume
type ResumeOptions struct {
	Disabled        bool
	CheckBestBefore bool
	Now             func() time.Time
	Logger          logger.Logger
}

// Body is the iteration loop run by Resume. startIndex is the number of items
// already handled by earlier runs.
type Body func(isResuming bool, startIndex int) error

// Resume runs body around iterator, restoring earlier progress from store first.
// When body stops because of cancellation or an abort, the iterator is frozen
// into store. When body completes, a snapshot that was present is removed.
// Iterators that are not Resumable simply run body.
func Resume(ctx context.Context, iterator interface{}, store SnapshotStore, opts ResumeOptions, body Body) error {
	r, ok := iterator.(Resumable)
	if !ok || opts.Disabled || store == nil {
		return body(false, 0)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	path := store.PathFor(r.Magic())
	existed, err := store.Exists(ctx, path)
	if err != nil {
		return err
	}

	isResuming, startIndex := false, 0
	if existed {
		err := restore(ctx, r, store, path, opts.CheckBestBefore, now)
		switch {
		case err == nil:
			isResuming, startIndex = true, r.TotalIndex()
			metrics.RecordSnapshot("loaded")
			logger.LogResume(log.WithField("start_index", startIndex), "loaded", path)
		case errs.IsType(err, errs.ErrorTypeInvalidArgument):
			metrics.RecordSnapshot("rejected")
			log.WithError(err).Warn("Warning: Not resuming from " + path)
		default:
			return err
		}
	}

	err = body(isResuming, startIndex)
	if err != nil {
		if errs.IsFatal(err) {
			if serr := store.Save(context.WithoutCancel(ctx), path, r.Freeze()); serr != nil {
				log.WithError(serr).Error("Failed to save resume information")
				return errors.Join(err, serr)
			}
			metrics.RecordSnapshot("saved")
			logger.LogResume(log, "saved", path)
		}
		return err
	}

	if existed {
		if derr := store.Delete(ctx, path); derr != nil {
			return derr
		}
		metrics.RecordSnapshot("deleted")
		logger.LogResume(log, "deleted", path)
	}
	return nil
}

func restore(ctx context.Context, r Resumable, store SnapshotStore, path string, checkBestBefore bool, now func() time.Time) error {
	frozen, err := store.Load(ctx, path)
	if err != nil {
		return err
	}
	if checkBestBefore && frozen.BestBefore != nil && !frozen.BestBefore.After(now()) {
		return errs.New(errs.ErrorTypeInvalidArgument, "%q is not a valid resume file: best before %s", path, frozen.BestBefore.Format(time.RFC3339))
	}
	return r.Thaw(*frozen)
}
