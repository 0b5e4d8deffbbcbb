package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type DeleteAccountMessage struct {
	Login string `json:"login"`
}

func (e DeleteAccountMessage) Type() string { return "account.delete" }

// DeleteAccountHandler removes an account by login. Deleting an unknown login
// is a no-op, matching the administrative contract.
type DeleteAccountHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewDeleteAccountHandler creates a handler with sane defaults.
func NewDeleteAccountHandler(repo RepositoryManager, cache CredentialCache) *DeleteAccountHandler {
	return &DeleteAccountHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit deletion events.
func (h *DeleteAccountHandler) WithActivitySink(sink ActivitySink) *DeleteAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *DeleteAccountHandler) WithLogger(logger Logger) *DeleteAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *DeleteAccountHandler) WithClock(clock func() time.Time) *DeleteAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}
	deleted := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().FindByLoginTx(ctx, tx, event.Login)
		if err != nil {
			if IsRecordNotFound(err) {
				return nil
			}
			return err
		}

		if err := h.repo.Accounts().DeleteTx(ctx, tx, account.ID); err != nil {
			return err
		}

		deleted = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}

	if !deleted {
		return nil
	}

	h.cache.Evict(account.Login, account.Email)

	h.recordActivity(ctx, account)
	h.logger.Debug("deleted account", "login", account.Login)

	return nil
}

func (h *DeleteAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountDeleted,
		Actor:      ActorRef{Type: "system"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
