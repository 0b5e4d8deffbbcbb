package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// InitializePasswordResetHandler stamps a fresh single-use reset key on an
// activated account matched by email.
//
// The operation is deliberately silent for unknown or unactivated emails: the
// caller always receives success so the endpoint cannot be used to enumerate
// accounts. The specific reason is only logged.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	keygen   KeyGenerator
	now      func() time.Time
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, cache CredentialCache) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		cache:    cache,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		keygen:   GenerateResetKey,
		now:      time.Now,
	}
}

// WithMailer sets the outbound mail collaborator that delivers reset links.
func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit reset request events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithKeyGenerator overrides the reset key source (useful for tests).
func (h *InitializePasswordResetHandler) WithKeyGenerator(keygen KeyGenerator) *InitializePasswordResetHandler {
	if keygen != nil {
		h.keygen = keygen
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *InitializePasswordResetHandler) WithClock(clock func() time.Time) *InitializePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}
	requested := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().FindByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if IsRecordNotFound(err) {
				h.logger.Debug("password reset requested for unknown email")
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		if !account.Activated {
			h.logger.Debug("password reset requested for unactivated account", "login", account.Login)
			return nil
		}

		key, err := h.keygen()
		if err != nil {
			return err
		}

		account.SetResetKey(key, h.now())

		if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return err
		}

		requested = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if !requested {
		// success shaped on purpose: no side effects, nothing to evict
		return nil
	}

	h.cache.Evict(account.Login, account.Email)

	if err := h.mailer.SendPasswordResetMail(ctx, account); err != nil {
		h.logger.Warn("password reset mail request failed", "login", account.Login, "error", err)
	}

	h.recordActivity(ctx, account)

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventResetMailRequested,
		Actor:      ActorRef{ID: account.Login, Type: "user"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
