package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/metrics"
	"github.com/aussiebroadwan/dashcore/pkg/dashsdk"
	"golang.org/x/time/rate"
)

const (
	DefaultNotificationInterval = 60 * time.Second
	DefaultNotificationPageSize = 50
)

// ErrThrottled is returned by SyncNow when on-demand syncs arrive faster than
// the configured rate.
var ErrThrottled = errors.New("throttled")

// NotificationOptions tunes a NotificationSynchronizer. The zero value is
// usable.
type NotificationOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Interval between background syncs. Defaults to 60 seconds.
	Interval time.Duration

	// PageSize bounds each fetch. Defaults to 50.
	PageSize int

	// SyncRate limits SyncNow. Defaults to one every 5 seconds.
	SyncRate rate.Limit

	// Seed is shown while unauthenticated. Defaults to SeedNotifications.
	Seed []domain.Notification

	// Now defaults to time.Now.
	Now func() time.Time
}

// NotificationSynchronizer keeps the notification list in step with the
// remote API while the session is authenticated.
//
// It is driven by session snapshots through HandleSession: entering
// AUTHENTICATED starts a poller that syncs immediately and then on every
// Interval; leaving it stops the poller and swaps in the seed list. A sync
// result from an earlier session generation is dropped.
type NotificationSynchronizer struct {
	api      NotificationAPI
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	pageSize int
	seed     []domain.Notification
	now      func() time.Time
	limiter  *rate.Limiter

	mu            sync.Mutex
	items         []domain.Notification
	authenticated bool
	generation    uint64
	lastSync      time.Time

	// Poller lifecycle for the current generation.
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationSynchronizer creates a synchronizer showing the seed list.
func NewNotificationSynchronizer(api NotificationAPI, opts NotificationOptions) *NotificationSynchronizer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultNotificationInterval
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultNotificationPageSize
	}
	if opts.SyncRate <= 0 {
		opts.SyncRate = rate.Every(5 * time.Second)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == nil {
		opts.Seed = SeedNotifications(opts.Now())
	}

	s := &NotificationSynchronizer{
		api:      api,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		interval: opts.Interval,
		pageSize: opts.PageSize,
		seed:     opts.Seed,
		now:      opts.Now,
		limiter:  rate.NewLimiter(opts.SyncRate, 1),
	}
	s.items = slices.Clone(s.seed)
	s.publishCounts()
	return s
}

// HandleSession reacts to a session snapshot. It never blocks on the poller,
// so it is safe to call from a session listener.
func (s *NotificationSynchronizer) HandleSession(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sess.IsAuthenticated {
		if !s.authenticated {
			return
		}
		s.stopLocked()
		s.authenticated = false
		s.items = slices.Clone(s.seed)
		s.lastSync = time.Time{}
		s.publishCountsLocked()
		s.logger.Info("notification sync stopped")
		return
	}

	if s.authenticated && s.generation == sess.Generation {
		return
	}

	s.stopLocked()
	s.authenticated = true
	s.generation = sess.Generation
	s.items = nil
	s.lastSync = time.Time{}
	s.publishCountsLocked()
	s.startLocked(sess.Generation)
	s.logger.Info("notification sync started", "interval", s.interval, "generation", sess.Generation)
}

// Close stops the poller and waits for it to exit.
func (s *NotificationSynchronizer) Close() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// Items returns a copy of the list, most recent first.
func (s *NotificationSynchronizer) Items() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// UnreadCount returns the number of unread notifications in the list.
func (s *NotificationSynchronizer) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CountUnread(s.items)
}

// LastSync returns when the list was last replaced by a successful sync.
func (s *NotificationSynchronizer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// SyncNow runs a sync outside the regular cadence.
func (s *NotificationSynchronizer) SyncNow(ctx context.Context) error {
	s.mu.Lock()
	authenticated, gen := s.authenticated, s.generation
	s.mu.Unlock()

	if !authenticated {
		return ErrNotAuthenticated
	}
	if !s.limiter.Allow() {
		return ErrThrottled
	}
	return s.sync(ctx, gen)
}

// MarkRead flips one notification to read locally, then tells the API on a
// best-effort basis. A remote failure leaves the local flip in place until
// the next full sync. It reports whether id was in the list.
func (s *NotificationSynchronizer) MarkRead(ctx context.Context, id string) bool {
	s.mu.Lock()
	i := slices.IndexFunc(s.items, func(n domain.Notification) bool { return n.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	items := slices.Clone(s.items)
	items[i].Read = true
	s.items = items
	authenticated := s.authenticated
	s.publishCountsLocked()
	s.mu.Unlock()

	if authenticated {
		err := s.api.MarkNotificationRead(ctx, id)
		s.metrics.RecordMarkRead("one", err == nil)
		if err != nil {
			s.logger.Warn("failed to mark notification read", "id", id, "error", err)
		}
	}
	return true
}

// MarkAllRead flips every notification to read locally, then tells the API
// on a best-effort basis.
func (s *NotificationSynchronizer) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	items := slices.Clone(s.items)
	for i := range items {
		items[i].Read = true
	}
	s.items = items
	authenticated := s.authenticated
	s.publishCountsLocked()
	s.mu.Unlock()

	if authenticated {
		err := s.api.MarkAllNotificationsRead(ctx)
		s.metrics.RecordMarkRead("all", err == nil)
		if err != nil {
			s.logger.Warn("failed to mark all notifications read", "error", err)
		}
	}
}

// startLocked launches the poller for gen. Caller holds s.mu.
func (s *NotificationSynchronizer) startLocked(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx, gen, stopCh)
}

// stopLocked signals the poller to exit without waiting for it, so it can be
// called from inside a sync. Caller holds s.mu.
func (s *NotificationSynchronizer) stopLocked() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.cancel()
	s.stopCh = nil
	s.cancel = nil
}

// run is the poller loop.
func (s *NotificationSynchronizer) run(ctx context.Context, gen uint64, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Sync immediately on entering the authenticated state
	_ = s.sync(ctx, gen)

	for {
		select {
		case <-ticker.C:
			_ = s.sync(ctx, gen)
		case <-stopCh:
			return
		}
	}
}

// sync fetches one page and replaces the list wholesale. Failures keep the
// existing list.
func (s *NotificationSynchronizer) sync(ctx context.Context, gen uint64) error {
	start := time.Now()

	records, err := s.api.ListNotifications(ctx, true, s.pageSize)
	if err != nil {
		s.metrics.RecordSync(false, time.Since(start).Seconds())
		if ctx.Err() == nil {
			s.logger.Warn("failed to sync notifications", "error", err, "generation", gen)
		}
		return err
	}

	now := s.now()
	items := buildNotifications(records, now, s.pageSize)

	s.mu.Lock()
	if !s.authenticated || s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale notification sync", "generation", gen)
		s.metrics.RecordStaleDiscard("notifications")
		return ErrSuperseded
	}
	s.items = items
	s.lastSync = now
	s.publishCountsLocked()
	s.mu.Unlock()

	s.metrics.RecordSync(true, time.Since(start).Seconds())
	s.logger.Debug("notifications synced", "count", len(items), "unread", domain.CountUnread(items))
	return nil
}

func (s *NotificationSynchronizer) publishCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishCountsLocked()
}

func (s *NotificationSynchronizer) publishCountsLocked() {
	s.metrics.SetNotificationCounts(len(s.items), domain.CountUnread(s.items))
}

// buildNotifications maps remote records into the local list: types are
// folded into the closed enum, duplicate ids keep their newest record, and
// the result is ordered most recent first and capped at limit.
func buildNotifications(records []dashsdk.NotificationRecord, now time.Time, limit int) []domain.Notification {
	byID := make(map[string]int, len(records))
	out := make([]domain.Notification, 0, len(records))

	for _, r := range records {
		n := domain.Notification{
			ID:        r.ID.String(),
			Title:     r.Title,
			Message:   r.Message,
			Type:      domain.ParseNotificationType(r.Type),
			Read:      r.IsRead,
			Link:      r.Link,
			CreatedAt: r.CreatedAt,
			Timestamp: domain.RelativeLabel(r.CreatedAt, now),
		}

		if i, ok := byID[n.ID]; ok {
			if n.CreatedAt.After(out[i].CreatedAt) {
				out[i] = n
			}
			continue
		}
		byID[n.ID] = len(out)
		out = append(out, n)
	}

	slices.SortStableFunc(out, func(a, b domain.Notification) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
