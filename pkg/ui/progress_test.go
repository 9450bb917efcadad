package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(d *ProgressDisplay, elapsed time.Duration) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.startTime = start
	d.now = func() time.Time { return start.Add(elapsed) }
}

func TestProgressSummaryWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	d := NewPrinter(&buf).NewProgress("alice", 4)
	fixedClock(d, 90*time.Second)

	d.StartDownload("C1")
	d.CompleteDownload("C1", 2, 0, 2048)
	d.SkipPost("C2")
	d.StartDownload("C3")
	d.FailDownload("C3.jpg", errors.New("not found"))
	d.CompleteDownload("C3", 0, 1, 0)
	d.RateLimitWarning(11*time.Minute + 6*time.Second)
	d.Complete()

	assert.Equal(t, "✗ C3.jpg: not found\n"+
		"⚠ Rate limit reached. Waiting 11m6s...\n"+
		"✓ Crawled 3 posts of @alice\n"+
		"  • 2 files, 2.0 KB in 1m30s (1 already present)\n"+
		"  • 1 downloads failed\n", buf.String())
}

func TestProgressLiveLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetLive(true)
	d := p.NewProgress("alice", 4)
	fixedClock(d, 30*time.Second)

	d.StartDownload("C1")
	assert.Equal(t, clearLine+"alice [────────────────────] 0/4 • 0 files • 0 B • C1", buf.String())

	buf.Reset()
	d.CompleteDownload("C1", 1, 0, 100)
	assert.Equal(t, clearLine+"alice [━━━━━───────────────] 1/4 • 1 files • 100 B • eta 1m30s", buf.String())

	buf.Reset()
	d.RateLimitWarning(20 * time.Second)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, clearLine+"⚠ Rate limit reached. Waiting 20s...\n"), out)
	assert.True(t, strings.HasSuffix(out, "1/4 • 1 files • 100 B • eta 1m30s"), out)
}

func TestProgressResumeAndUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetLive(true)
	d := p.NewProgress("alice", 0)
	fixedClock(d, time.Second)

	d.SetDownloadedCount(5)
	d.SkipPost("C6")
	assert.Equal(t, clearLine+"alice 6 posts • 0 files • 0 B", buf.String())

	buf.Reset()
	d.UpdateTotal(12)
	d.SkipPost("C7")
	assert.Contains(t, buf.String(), "] 7/12")
}

func TestProgressQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetLive(true)
	p.SetQuiet(true)
	d := p.NewProgress("alice", 2)

	d.StartDownload("C1")
	d.FailDownload("C1.jpg", errors.New("boom"))
	d.RateLimitWarning(time.Minute)
	d.Complete()

	assert.Empty(t, buf.String())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "3.0 MB", formatBytes(3*1024*1024))
}
