package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	clearLine = "\r\033[K"
	barWidth  = 20
)

// ProgressDisplay reports the crawl of one profile. On a terminal it keeps a
// single progress line up to date; elsewhere only warnings, failures and the
// final summary are printed.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        *Printer
	username   string
	total      int
	posts      int
	downloaded int
	skipped    int
	failed     int
	bytes      int64
	current    string
	startTime  time.Time
	drawn      bool
	now        func() time.Time
}

// NewProgress starts a display for username. total is the number of posts the
// profile reports, zero when unknown.
func (p *Printer) NewProgress(username string, total int) *ProgressDisplay {
	return &ProgressDisplay{
		out:       p,
		username:  username,
		total:     total,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// NewProgressDisplay starts a display on the stdout printer
func NewProgressDisplay(username string, total int) *ProgressDisplay {
	return std.NewProgress(username, total)
}

// SetDownloadedCount sets the number of posts handled by earlier runs
func (d *ProgressDisplay) SetDownloadedCount(count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts = count
}

// UpdateTotal replaces the expected number of posts
func (d *ProgressDisplay) UpdateTotal(total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.total = total
}

// StartDownload marks shortcode as the post being fetched
func (d *ProgressDisplay) StartDownload(shortcode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = shortcode
	d.redraw()
}

// CompleteDownload records a fetched post with the number of new and already
// present files and the bytes written.
func (d *ProgressDisplay) CompleteDownload(shortcode string, downloaded, skipped int, size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts++
	d.downloaded += downloaded
	d.skipped += skipped
	d.bytes += size
	if d.current == shortcode {
		d.current = ""
	}
	d.redraw()
}

// SkipPost records a post that was not fetched, e.g. rejected by a filter
func (d *ProgressDisplay) SkipPost(shortcode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts++
	d.redraw()
}

// FailDownload records a failed media file of shortcode
func (d *ProgressDisplay) FailDownload(shortcode string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed++
	d.line(d.out.paint(red, fmt.Sprintf("✗ %s: %v", shortcode, err)))
	d.redraw()
}

// RateLimitWarning announces a long wait imposed by the rate controller
func (d *ProgressDisplay) RateLimitWarning(wait time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.line(d.out.paint(yellow, fmt.Sprintf("⚠ Rate limit reached. Waiting %s...", formatDuration(wait))))
	d.redraw()
}

// Complete prints the summary of the profile
func (d *ProgressDisplay) Complete() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := d.now().Sub(d.startTime)
	d.line(fmt.Sprintf("%s Crawled %d posts of @%s", d.out.paint(green, "✓"), d.posts, d.username))
	d.line(fmt.Sprintf("  %s %d files, %s in %s (%d already present)",
		d.out.paint(dim, "•"), d.downloaded, formatBytes(d.bytes), formatDuration(elapsed), d.skipped))
	if d.failed > 0 {
		d.line(fmt.Sprintf("  %s %d downloads failed", d.out.paint(dim, "•"), d.failed))
	}
}

// line prints a full line, clearing the progress line first. Caller holds d.mu.
func (d *ProgressDisplay) line(text string) {
	prefix := ""
	if d.drawn {
		prefix = clearLine
		d.drawn = false
	}
	d.out.raw(prefix + text + "\n")
}

// redraw replaces the progress line on a terminal. Caller holds d.mu.
func (d *ProgressDisplay) redraw() {
	if !d.out.isLive() {
		return
	}
	d.out.raw(clearLine + d.status())
	d.drawn = true
}

// status builds the progress line. Caller holds d.mu.
func (d *ProgressDisplay) status() string {
	var b strings.Builder
	b.WriteString(d.out.paint(cyan, d.username))
	if d.total > 0 {
		filled := min(d.posts*barWidth/d.total, barWidth)
		fmt.Fprintf(&b, " [%s%s] %d/%d", strings.Repeat("━", filled), strings.Repeat("─", barWidth-filled), d.posts, d.total)
	} else {
		fmt.Fprintf(&b, " %d posts", d.posts)
	}
	fmt.Fprintf(&b, " • %d files • %s", d.downloaded, formatBytes(d.bytes))
	if eta := d.eta(); eta != "" {
		fmt.Fprintf(&b, " • eta %s", eta)
	}
	if d.current != "" {
		fmt.Fprintf(&b, " • %s", d.current)
	}
	if d.failed > 0 {
		b.WriteString(" • " + d.out.paint(red, fmt.Sprintf("%d errors", d.failed)))
	}
	return b.String()
}

// eta estimates the remaining time from the average time per post
func (d *ProgressDisplay) eta() string {
	if d.total <= 0 || d.posts == 0 || d.posts >= d.total {
		return ""
	}
	elapsed := d.now().Sub(d.startTime)
	if elapsed <= 0 {
		return ""
	}
	perPost := elapsed / time.Duration(d.posts)
	return formatDuration(perPost * time.Duration(d.total-d.posts))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
