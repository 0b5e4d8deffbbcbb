package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type CreateAccountMessage struct {
	Login     string   `json:"login"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	LangKey   string   `json:"lang_key"`
	ImageURL  string   `json:"image_url"`
	Roles     []string `json:"roles"`
}

func (e CreateAccountMessage) Type() string { return "account.create" }

// Validate enforces the account constraints.
func (e CreateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Login, validation.Required, validation.Match(loginPattern)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

// CreateAccountHandler is the administrative creation path: the account is
// born Active with a throwaway random password and an outstanding reset key,
// so the owner sets their own password through the reset flow instead of
// receiving one out of band.
type CreateAccountHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	keygen   KeyGenerator
	cost     int
	now      func() time.Time
}

// NewCreateAccountHandler creates a handler with sane defaults.
func NewCreateAccountHandler(repo RepositoryManager, cache CredentialCache) *CreateAccountHandler {
	return &CreateAccountHandler{
		repo:     repo,
		cache:    cache,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		keygen:   GenerateResetKey,
		cost:     DefaultBcryptCost,
		now:      time.Now,
	}
}

// WithMailer sets the outbound mail collaborator that delivers the initial
// password reset link.
func (h *CreateAccountHandler) WithMailer(mailer Mailer) *CreateAccountHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit creation events.
func (h *CreateAccountHandler) WithActivitySink(sink ActivitySink) *CreateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CreateAccountHandler) WithLogger(logger Logger) *CreateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithKeyGenerator overrides the reset key source (useful for tests).
func (h *CreateAccountHandler) WithKeyGenerator(keygen KeyGenerator) *CreateAccountHandler {
	if keygen != nil {
		h.keygen = keygen
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *CreateAccountHandler) WithClock(clock func() time.Time) *CreateAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAccountHandler) execute(ctx context.Context, event CreateAccountMessage) (*Account, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid account payload")
	}

	roles := event.Roles
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	if err := h.repo.Roles().Validate(roles...); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		password, err := GenerateRandomPassword()
		if err != nil {
			return err
		}

		hash, err := HashPasswordWithCost(password, h.cost)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash generated password")
		}

		key, err := h.keygen()
		if err != nil {
			return err
		}

		account.Login = event.Login
		account.Email = event.Email
		account.PasswordHash = hash
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.ImageURL = event.ImageURL
		account.LangKey = event.LangKey
		if account.LangKey == "" {
			account.LangKey = DefaultLangKey
		}
		account.Activated = true
		account.SetResetKey(key, h.now())
		account.Roles = roles
		account.CreatedAt = h.now()

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account creation transaction failed")
	}

	h.cache.Evict(account.Login, account.Email)

	if err := h.mailer.SendPasswordResetMail(ctx, account); err != nil {
		h.logger.Warn("creation mail request failed", "login", account.Login, "error", err)
	}

	return account, nil
}
