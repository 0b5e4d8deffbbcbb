package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	Key string `json:"key"`
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

// ActivateAccountHandler redeems a single-use activation key, transitioning
// the account from Pending to Active. A consumed or unknown key fails with
// ErrInvalidKey; callers cannot tell "already activated" from "never valid".
type ActivateAccountHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewActivateAccountHandler creates a handler with sane defaults.
func NewActivateAccountHandler(repo RepositoryManager, cache CredentialCache) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit activation events.
func (h *ActivateAccountHandler) WithActivitySink(sink ActivitySink) *ActivateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateAccountHandler) WithLogger(logger Logger) *ActivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ActivateAccountHandler) WithClock(clock func() time.Time) *ActivateAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) (*Account, error) {
	if event.Key == "" {
		return nil, ErrInvalidKey
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().FindByActivationKey(ctx, tx, event.Key)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrInvalidKey
			}
			return err
		}

		account.MarkActivated()

		if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
	}

	h.cache.Evict(account.Login, account.Email)

	h.recordActivity(ctx, account)
	h.logger.Debug("activated account", "login", account.Login)

	return account, nil
}

func (h *ActivateAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountActivated,
		Actor:      ActorRef{ID: account.Login, Type: "user"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
