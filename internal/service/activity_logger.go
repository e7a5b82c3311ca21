package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/metrics"
	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// ActivityLogRepositoryInterface defines the interface for audit log writes.
type ActivityLogRepositoryInterface interface {
	Insert(ctx context.Context, entry model.ActivityLogEntry) error
}

// activityLogWriteTimeout bounds a single audit write.
const activityLogWriteTimeout = 5 * time.Second

// ActivityLogger writes admission audit entries off the request path.
// Entries are best effort: a full buffer or a failed write drops the entry.
type ActivityLogger struct {
	repo    ActivityLogRepositoryInterface
	entries chan model.ActivityLogEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewActivityLogger starts the writer goroutine with a buffer of size entries.
func NewActivityLogger(repo ActivityLogRepositoryInterface, size int) *ActivityLogger {
	l := &ActivityLogger{
		repo:    repo,
		entries: make(chan model.ActivityLogEntry, max(size, 1)),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Record enqueues entry without blocking.
func (l *ActivityLogger) Record(entry model.ActivityLogEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		metrics.RecordActivityLogDropped()
		return
	}

	select {
	case l.entries <- entry:
	default:
		metrics.RecordActivityLogDropped()
		log.Warn().
			Int64("activity_id", entry.ActivityID).
			Int64("user_id", entry.UserID).
			Msg("activity log buffer full, entry dropped")
	}
}

// Close stops accepting entries and waits until buffered ones are written
// or ctx expires.
func (l *ActivityLogger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.entries)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *ActivityLogger) run() {
	defer close(l.done)
	for entry := range l.entries {
		ctx, cancel := context.WithTimeout(context.Background(), activityLogWriteTimeout)
		if err := l.repo.Insert(ctx, entry); err != nil {
			log.Warn().
				Err(err).
				Int64("activity_id", entry.ActivityID).
				Int64("user_id", entry.UserID).
				Msg("activity log write failed")
		}
		cancel()
	}
}
