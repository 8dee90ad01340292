package hfhub

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

// progressLogInterval bounds how often an in-flight download logs its
// progress; bursts of writes between ticks are folded into the next line.
const progressLogInterval = 2 * time.Second

// Progress tracks bytes transferred for a single download and reports
// through the configured logging.Interface. The Library only ever downloads
// one file per ticket, so there is no terminal progress bar to render here:
// every caller of this package observes progress as structured log lines.
type Progress struct {
	mu         sync.Mutex
	filename   string
	logger     logging.Interface
	total      int64
	current    int64
	enabled    bool
	start      time.Time
	lastLogged time.Time
}

func newProgress(filename string, logger logging.Interface, total, initial int64, enabled bool) *Progress {
	return &Progress{
		filename: filename,
		logger:   logger,
		total:    total,
		current:  initial,
		enabled:  enabled,
		start:    time.Now(),
	}
}

// NewProgress creates a tracker for a download starting from byte zero.
func NewProgress(filename string, logger logging.Interface, total int64, enabled bool) *Progress {
	return newProgress(filename, logger, total, 0, enabled)
}

// NewProgressWithResume creates a tracker for a download resuming from a
// partially-written file of resumeSize bytes.
func NewProgressWithResume(filename string, logger logging.Interface, total, resumeSize int64, enabled bool) *Progress {
	return newProgress(filename, logger, total, resumeSize, enabled)
}

// Add records n additional bytes transferred, logging at most once per
// progressLogInterval to avoid flooding the log on fast connections.
func (p *Progress) Add(n int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += n
	if !p.enabled || p.logger == nil {
		return
	}
	if now := time.Now(); now.Sub(p.lastLogged) >= progressLogInterval {
		p.lastLogged = now
		p.fields().Info("download progress")
	}
}

// Finish logs a final summary line for the download.
func (p *Progress) Finish() {
	if p == nil || !p.enabled || p.logger == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields().WithField("elapsed", time.Since(p.start).Round(time.Millisecond).String()).Info("download complete")
}

func (p *Progress) fields() logging.Interface {
	l := p.logger.WithField("file", p.filename).WithField("bytes", p.current)
	if p.total > 0 {
		pct := float64(p.current) / float64(p.total) * 100
		l = l.WithField("total_bytes", p.total).WithField("percent", fmt.Sprintf("%.1f", pct))
	}
	return l
}

// progressWriter wraps a destination writer, feeding every successful write
// through a Progress tracker before returning control to the caller.
type progressWriter struct {
	dst      io.Writer
	progress *Progress
}

// NewSimpleProgressWriter wraps dst so that writes through it also advance
// the given progress tracker.
func NewSimpleProgressWriter(dst io.Writer, progress *Progress) io.Writer {
	return &progressWriter{dst: dst, progress: progress}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.dst.Write(p)
	if n > 0 {
		pw.progress.Add(int64(n))
	}
	return n, err
}

// formatSize renders a byte count in the nearest human-friendly unit.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
