package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	// Login identifies the acting principal's own account, taken from the
	// request context rather than the payload.
	Login           string `json:"-"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "account.password_change" }

// Validate enforces the new password constraints.
func (e ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.CurrentPassword, validation.Required),
		validation.Field(&e.NewPassword, validation.Required, validation.Length(10, 100)),
	)
}

// ChangePasswordHandler replaces the acting principal's password after
// verifying the current one against the stored hash. A mismatch fails with
// ErrInvalidPassword and no further detail.
type ChangePasswordHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	cost     int
	now      func() time.Time
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager, cache CredentialCache) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		cost:     DefaultBcryptCost,
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBcryptCost overrides the password hash work factor.
func (h *ChangePasswordHandler) WithBcryptCost(cost int) *ChangePasswordHandler {
	h.cost = cost
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ChangePasswordHandler) WithClock(clock func() time.Time) *ChangePasswordHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().FindByLoginTx(ctx, tx, event.Login)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return err
		}

		if err := ComparePasswordAndHash(event.CurrentPassword, account.PasswordHash); err != nil {
			return ErrInvalidPassword
		}

		hash, err := HashPasswordWithCost(event.NewPassword, h.cost)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		account.PasswordHash = hash

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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to change password")
	}

	h.cache.Evict(account.Login, account.Email)

	h.recordActivity(ctx, account)

	return nil
}

func (h *ChangePasswordHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordChanged,
		Actor:      ActorRef{ID: account.Login, Type: "user"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
