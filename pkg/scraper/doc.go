// Package scraper runs batch crawls over a list of profiles.
//
// Every profile is one target. Its posts are walked through a resumable
// iterator: when the run is interrupted, the iterator is frozen into the
// snapshot backend and the next run continues with the post that was in
// flight. The media of a post are downloaded completely before the iterator is
// pulled again, so a snapshot never points past media that is missing on disk.
//
// Failures of a single target are caught by the context's error catcher and
// reported in the Summary; cancellation stops the whole batch. With
// crawl.parallel above one, targets run concurrently on cloned contexts.
//
// Usage:
//
//	s, err := scraper.New(scraper.Options{Context: ic, Snapshots: backend})
//	if err != nil {
//	    return err
//	}
//	summary, err := s.DownloadProfiles(ctx, []string{"natgeo", "nasa"})
//	summary.Write(os.Stdout)
package scraper
