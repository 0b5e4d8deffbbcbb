package identity

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultPurgeAge is how long a pending account may sit unactivated before the
// purge job reclaims its login and email.
const DefaultPurgeAge = 30 * 24 * time.Hour

type PurgeStaleAccountsMessage struct {
	// Before overrides the cutoff. Zero means now minus the configured age.
	Before time.Time `json:"before,omitempty"`
}

func (e PurgeStaleAccountsMessage) Type() string { return "account.purge_stale" }

// PurgeStaleAccountsHandler deletes accounts that were registered but never
// activated within the retention window. Each candidate is re-checked inside
// the transaction so an account activated mid-sweep survives.
type PurgeStaleAccountsHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	age      time.Duration
	now      func() time.Time
}

// NewPurgeStaleAccountsHandler creates a handler with sane defaults.
func NewPurgeStaleAccountsHandler(repo RepositoryManager, cache CredentialCache) *PurgeStaleAccountsHandler {
	return &PurgeStaleAccountsHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		age:      DefaultPurgeAge,
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit purge events.
func (h *PurgeStaleAccountsHandler) WithActivitySink(sink ActivitySink) *PurgeStaleAccountsHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *PurgeStaleAccountsHandler) WithLogger(logger Logger) *PurgeStaleAccountsHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithPurgeAge sets how long pending accounts are retained.
func (h *PurgeStaleAccountsHandler) WithPurgeAge(age time.Duration) *PurgeStaleAccountsHandler {
	if age > 0 {
		h.age = age
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *PurgeStaleAccountsHandler) WithClock(clock func() time.Time) *PurgeStaleAccountsHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// Execute runs one purge sweep and returns how many accounts were removed.
func (h *PurgeStaleAccountsHandler) Execute(ctx context.Context, event PurgeStaleAccountsMessage) (int, error) {
	select {
	case <-ctx.Done():
		return 0, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during stale account purge",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *PurgeStaleAccountsHandler) execute(ctx context.Context, event PurgeStaleAccountsMessage) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	before := event.Before
	if before.IsZero() {
		before = h.now().Add(-h.age)
	}

	candidates, err := h.repo.Accounts().FindStalePending(ctx, before)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list stale pending accounts")
	}

	purged := 0

	for _, account := range candidates {
		removed, err := h.purgeOne(ctx, account)
		if err != nil {
			h.logger.Warn("purge skipped account %s: %v", account.Login, err)
			continue
		}

		if !removed {
			// activated between listing and delete
			continue
		}

		h.cache.Evict(account.Login, account.Email)
		h.recordActivity(ctx, account)
		purged++
	}

	if purged > 0 {
		h.logger.Info("purged %d stale pending accounts", purged)
	}

	return purged, nil
}

func (h *PurgeStaleAccountsHandler) purgeOne(ctx context.Context, account *Account) (bool, error) {
	removed := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		removed, err = h.repo.Accounts().DeleteIfPendingTx(ctx, tx, account.ID)
		return err
	})

	return removed, err
}

func (h *PurgeStaleAccountsHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountPurged,
		Actor:      ActorRef{Type: "system"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}

// PurgeScheduler runs PurgeStaleAccountsHandler on a fixed interval until
// stopped. Start is idempotent; Stop waits for an in-flight sweep to finish.
type PurgeScheduler struct {
	handler  *PurgeStaleAccountsHandler
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPurgeScheduler creates a scheduler firing at the given interval. A
// non-positive interval falls back to once a day.
func NewPurgeScheduler(handler *PurgeStaleAccountsHandler, interval time.Duration) *PurgeScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &PurgeScheduler{
		handler:  handler,
		interval: interval,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the scheduler.
func (s *PurgeScheduler) WithLogger(logger Logger) *PurgeScheduler {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Start launches the background sweep loop.
func (s *PurgeScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
}

// Stop halts the loop and blocks until the current sweep, if any, completes.
func (s *PurgeScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (s *PurgeScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.handler.Execute(ctx, PurgeStaleAccountsMessage{}); err != nil {
				s.logger.Error("stale account purge failed: %v", err)
			}
		}
	}
}
