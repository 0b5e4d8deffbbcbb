package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Key      string `json:"key"`
	Password string `json:"password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

// Validate enforces the new password constraints.
func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Key, validation.Required),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
	)
}

// FinalizePasswordResetHandler redeems a reset key within its validity window
// and installs a new password hash. The key and its request timestamp are
// cleared together in the same write; an expired or unknown key fails with
// ErrInvalidOrExpiredKey and leaves the password untouched.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	validity time.Duration
	cost     int
	now      func() time.Time
}

// NewFinalizePasswordResetHandler creates a handler with the reference 24h
// validity window.
func NewFinalizePasswordResetHandler(repo RepositoryManager, cache CredentialCache) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		validity: 24 * time.Hour,
		cost:     DefaultBcryptCost,
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithValidity overrides the reset key validity window.
func (h *FinalizePasswordResetHandler) WithValidity(validity time.Duration) *FinalizePasswordResetHandler {
	if validity > 0 {
		h.validity = validity
	}
	return h
}

// WithBcryptCost overrides the password hash work factor.
func (h *FinalizePasswordResetHandler) WithBcryptCost(cost int) *FinalizePasswordResetHandler {
	h.cost = cost
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *FinalizePasswordResetHandler) WithClock(clock func() time.Time) *FinalizePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().FindByResetKey(ctx, tx, event.Key)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrInvalidOrExpiredKey
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
		}

		if account.ResetRequestedAt == nil {
			return ErrInvalidOrExpiredKey
		}

		expired, err := IsOutsideThresholdPeriod(*account.ResetRequestedAt, h.validity.String(), h.now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid reset validity window")
		}
		if expired {
			return ErrInvalidOrExpiredKey
		}

		hash, err := HashPasswordWithCost(event.Password, h.cost)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		account.PasswordHash = hash
		account.ClearResetKey()

		if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.cache.Evict(account.Login, account.Email)

	h.recordActivity(ctx, account)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorRef{ID: account.Login, Type: "user"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
