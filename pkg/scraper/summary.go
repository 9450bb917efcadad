package scraper

import (
	"fmt"
	"io"
	"time"
)

// TargetResult is the outcome of one profile
type TargetResult struct {
	Username     string
	Posts        int
	Filtered     int
	Downloaded   int
	Skipped      int
	Failed       int
	Resumed      bool
	StoppedEarly bool
	Err          error
	Duration     time.Duration
}

// Summary aggregates a batch run
type Summary struct {
	RunID    string
	Targets  []TargetResult
	Errors   []string
	Duration time.Duration
}

// Failed returns the usernames whose crawl ended with an error
func (s *Summary) Failed() []string {
	var failed []string
	for _, t := range s.Targets {
		if t.Err != nil {
			failed = append(failed, t.Username)
		}
	}
	return failed
}

// Totals sums the per-target counters
func (s *Summary) Totals() TargetResult {
	var total TargetResult
	for _, t := range s.Targets {
		total.Posts += t.Posts
		total.Filtered += t.Filtered
		total.Downloaded += t.Downloaded
		total.Skipped += t.Skipped
		total.Failed += t.Failed
	}
	return total
}

func (s *Summary) fields() map[string]interface{} {
	total := s.Totals()
	return map[string]interface{}{
		"targets":    len(s.Targets),
		"failed":     len(s.Failed()),
		"posts":      total.Posts,
		"downloaded": total.Downloaded,
		"skipped":    total.Skipped,
		"duration":   s.Duration,
	}
}

// Write prints a human readable report
func (s *Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	for _, t := range s.Targets {
		status := "ok"
		switch {
		case t.Err != nil:
			status = "failed: " + t.Err.Error()
		case t.StoppedEarly:
			status = "up to date"
		}
		resumed := ""
		if t.Resumed {
			resumed = " (resumed)"
		}
		fmt.Fprintf(w, "  %-30s posts=%d downloaded=%d skipped=%d filtered=%d failed=%d%s %s\n",
			t.Username, t.Posts, t.Downloaded, t.Skipped, t.Filtered, t.Failed, resumed, status)
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "Errors or warnings occurred:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
