package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type UpdateProfileMessage struct {
	// Login identifies the account to update; for the self-service path it is
	// the acting principal's own login from the request context.
	Login     string  `json:"-"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	LangKey   *string `json:"lang_key"`
	ImageURL  *string `json:"image_url"`
}

func (e UpdateProfileMessage) Type() string { return "account.profile_update" }

// Validate enforces the profile constraints. Nil fields are left unchanged.
func (e UpdateProfileMessage) Validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&e.Login, validation.Required),
	}
	if e.Email != nil {
		fields = append(fields, validation.Field(&e.Email, validation.Length(6, 100), is.Email))
	}
	return validation.ValidateStruct(&e, fields...)
}

// UpdateProfileHandler applies a partial profile mutation and evicts the
// cache for both the old and (when the email changed) the new keys.
type UpdateProfileHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewUpdateProfileHandler creates a handler with sane defaults.
func NewUpdateProfileHandler(repo RepositoryManager, cache CredentialCache) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit profile update events.
func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *UpdateProfileHandler) WithClock(clock func() time.Time) *UpdateProfileHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) (*Account, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}
	previousEmail := ""

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().FindByLoginTx(ctx, tx, event.Login)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return err
		}

		previousEmail = account.Email

		if event.FirstName != nil {
			account.FirstName = *event.FirstName
		}
		if event.LastName != nil {
			account.LastName = *event.LastName
		}
		if event.Email != nil {
			account.Email = *event.Email
		}
		if event.LangKey != nil {
			account.LangKey = *event.LangKey
		}
		if event.ImageURL != nil {
			account.ImageURL = *event.ImageURL
		}

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
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
	}

	h.cache.Evict(account.Login, previousEmail)
	if account.Email != previousEmail {
		h.cache.Evict("", account.Email)
	}

	h.recordActivity(ctx, account)

	return account, nil
}

func (h *UpdateProfileHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventProfileUpdated,
		Actor:      ActorRef{ID: account.Login, Type: "user"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
