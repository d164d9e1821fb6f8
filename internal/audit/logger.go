package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"accessgov.org/internal/identity"
	"accessgov.org/internal/obs"
)

const (
	defaultFlushInterval = 30 * time.Second
	defaultFlushTimeout  = 10 * time.Second
)

// Logger accumulates audit entries in memory and flushes them to the
// store on a fixed interval, on critical actions, and on shutdown.
type Logger struct {
	store    RecordStore
	log      zerolog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu     sync.Mutex
	buffer []Entry
	closed bool

	// flushMu serializes flushes so the timer, critical writes and
	// shutdown never interleave snapshot-swap-persist cycles.
	flushMu sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	// failLog throttles repeated flush-failure log lines.
	failLog *rate.Limiter
}

// Option customizes a Logger.
type Option func(*Logger)

// WithFlushInterval sets the periodic flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithFlushTimeout bounds how long a single flush may spend in the store.
func WithFlushTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a Logger over the given store. Call Start to begin the
// periodic flush loop and Shutdown to drain the buffer on exit.
func New(store RecordStore, log zerolog.Logger, opts ...Option) *Logger {
	l := &Logger{
		store:    store,
		log:      log.With().Str("component", "audit").Logger(),
		interval: defaultFlushInterval,
		timeout:  defaultFlushTimeout,
		now:      time.Now,
		done:     make(chan struct{}),
		failLog:  rate.NewLimiter(rate.Every(time.Minute), 3),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the periodic flush goroutine. Safe to call once.
func (l *Logger) Start() {
	l.startOnce.Do(func() {
		l.wg.Add(1)
		go l.run()
	})
}

func (l *Logger) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := l.Flush(context.Background()); err != nil {
				l.reportFlushFailure(err)
			}
		case <-l.done:
			return
		}
	}
}

// Shutdown stops the flush loop and performs a final synchronous
// flush. Idempotent; later Log calls return ErrLoggerClosed.
func (l *Logger) Shutdown(ctx context.Context) error {
	var err error
	l.stopOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		err = l.Flush(ctx)
	})
	return err
}

// Log records one entry. The id and timestamp are assigned here if
// absent. Critical actions are flushed before Log returns and a
// persistence failure is surfaced to the caller; everything else is
// buffered and flushed on the next cycle.
func (l *Logger) Log(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Timestamp = e.Timestamp.UTC()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoggerClosed
	}
	l.buffer = append(l.buffer, e)
	obs.SetAuditBufferSize(len(l.buffer))
	l.mu.Unlock()

	if !IsCritical(e.Action) {
		return nil
	}
	if err := l.Flush(ctx); err != nil {
		l.reportFlushFailure(err)
		return err
	}
	return nil
}

// Flush persists the current buffer. Entries are grouped by UTC day
// and each partition is appended independently; entries of a failed
// partition return to the front of the buffer for the next attempt.
func (l *Logger) Flush(ctx context.Context) error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return nil
	}
	snapshot := l.buffer
	l.buffer = nil
	obs.SetAuditBufferSize(0)
	l.mu.Unlock()

	start := time.Now()
	partitions := make(map[string][]Entry)
	for _, e := range snapshot {
		key := PartitionKey(e.Timestamp)
		partitions[key] = append(partitions[key], e)
	}
	keys := make([]string, 0, len(partitions))
	for key := range partitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var firstErr error
	var failed []Entry
	for _, key := range keys {
		entries := partitions[key]
		appendCtx, cancel := context.WithTimeout(ctx, l.timeout)
		err := l.store.Append(appendCtx, key, entries)
		cancel()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, entries...)
		}
	}

	if len(failed) > 0 {
		l.mu.Lock()
		l.buffer = append(failed, l.buffer...)
		obs.SetAuditBufferSize(len(l.buffer))
		l.mu.Unlock()
		obs.AddAuditRequeued(len(failed))
		obs.ObserveAuditFlush("failure", time.Since(start))
		return firstErr
	}
	obs.ObserveAuditFlush("success", time.Since(start))
	return nil
}

// BufferLen reports the number of entries awaiting persistence.
func (l *Logger) BufferLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

func (l *Logger) reportFlushFailure(err error) {
	if l.failLog.Allow() {
		l.log.Error().Err(err).Msg("audit flush failed, entries requeued")
	}
}

// LogUserAction records an action against a user resource.
func (l *Logger) LogUserAction(ctx context.Context, actor identity.Actor, action, orgID, userID string, changes map[string]Change) error {
	return l.logResource(ctx, actor, action, ResourceUser, orgID, userID, changes)
}

// LogGroupAction records an action against a permission group.
func (l *Logger) LogGroupAction(ctx context.Context, actor identity.Actor, action, orgID, groupID string, changes map[string]Change) error {
	return l.logResource(ctx, actor, action, ResourceGroup, orgID, groupID, changes)
}

// LogOperatingUnitAction records an action against an operating unit.
func (l *Logger) LogOperatingUnitAction(ctx context.Context, actor identity.Actor, action, orgID, unitID string, changes map[string]Change) error {
	return l.logResource(ctx, actor, action, ResourceOperatingUnit, orgID, unitID, changes)
}

// LogOrganizationAction records an action against an organization.
func (l *Logger) LogOrganizationAction(ctx context.Context, actor identity.Actor, action, orgID string, changes map[string]Change) error {
	return l.logResource(ctx, actor, action, ResourceOrganization, orgID, orgID, changes)
}

func (l *Logger) logResource(ctx context.Context, actor identity.Actor, action string, rt ResourceType, orgID, resourceID string, changes map[string]Change) error {
	return l.Log(ctx, Entry{
		Action:         action,
		ResourceType:   rt,
		ResourceID:     resourceID,
		OrganizationID: orgID,
		ActorID:        actor.ID,
		ActorEmail:     actor.Email,
		Changes:        changes,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	})
}
