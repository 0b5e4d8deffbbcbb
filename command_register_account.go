package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultLangKey is the locale assigned when a registration omits one.
const DefaultLangKey = "en"

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9]{5,20}$`)

type RegisterAccountMessage struct {
	Login     string `json:"login"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	LangKey   string `json:"lang_key"`
	ImageURL  string `json:"image_url"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate enforces the registration constraints before any repository work.
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Login, validation.Required, validation.Match(loginPattern)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&e.FirstName, validation.Length(0, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
	)
}

// RegisterAccountHandler creates a Pending account holding a single-use
// activation key.
//
// An existing account under the same login or email is displaced when it was
// never activated ("steal from pending"); an activated holder fails the
// registration with ErrLoginInUse or ErrEmailInUse. The whole transition runs
// in one transaction and the repository's unique constraints stay the
// authority: if two registrations race past the pending check, one insert
// loses with a conflict, which is retried once after re-running the pending
// eviction.
type RegisterAccountHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	keygen   KeyGenerator
	cost     int
	now      func() time.Time
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager, cache CredentialCache) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		cache:    cache,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		keygen:   GenerateActivationKey,
		cost:     DefaultBcryptCost,
		now:      time.Now,
	}
}

// WithMailer sets the outbound mail collaborator notified on registration.
func (h *RegisterAccountHandler) WithMailer(mailer Mailer) *RegisterAccountHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithKeyGenerator overrides the activation key source (useful for tests).
func (h *RegisterAccountHandler) WithKeyGenerator(keygen KeyGenerator) *RegisterAccountHandler {
	if keygen != nil {
		h.keygen = keygen
	}
	return h
}

// WithBcryptCost overrides the password hash work factor.
func (h *RegisterAccountHandler) WithBcryptCost(cost int) *RegisterAccountHandler {
	h.cost = cost
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *RegisterAccountHandler) WithClock(clock func() time.Time) *RegisterAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	login := strings.ToLower(strings.TrimSpace(event.Login))

	account, err := h.register(ctx, login, event)
	if goerrors.Is(err, ErrLoginInUse) || goerrors.Is(err, ErrEmailInUse) {
		// A pending holder may have been inserted between our eviction and
		// our insert. Re-run the eviction once; a second conflict means an
		// activated holder and is final.
		if conflictHolderIsPending(ctx, h.repo, login, event.Email) {
			account, err = h.register(ctx, login, event)
		}
	}
	if err != nil {
		return nil, err
	}

	// eviction happens before the operation completes so the next
	// read-through observes the new row
	h.cache.Evict(account.Login, account.Email)

	if err := h.mailer.SendActivationMail(ctx, account); err != nil {
		h.logger.Warn("activation mail request failed", "login", account.Login, "error", err)
	}

	h.recordActivity(ctx, account)

	return account, nil
}

func (h *RegisterAccountHandler) register(ctx context.Context, login string, event RegisterAccountMessage) (*Account, error) {
	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accounts := h.repo.Accounts()

		if existing, err := accounts.FindByLoginTx(ctx, tx, login); err == nil {
			if err := h.evictPendingHolder(ctx, tx, existing, wrapSentinel(ErrLoginInUse, map[string]any{"login": login})); err != nil {
				return err
			}
		} else if !IsRecordNotFound(err) {
			return err
		}

		if existing, err := accounts.FindByEmailTx(ctx, tx, event.Email); err == nil {
			if err := h.evictPendingHolder(ctx, tx, existing, wrapSentinel(ErrEmailInUse, map[string]any{"email": event.Email})); err != nil {
				return err
			}
		} else if !IsRecordNotFound(err) {
			return err
		}

		hash, err := HashPasswordWithCost(event.Password, h.cost)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		key, err := h.keygen()
		if err != nil {
			return err
		}

		account.Login = login
		account.Email = event.Email
		account.PasswordHash = hash
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.ImageURL = event.ImageURL
		account.LangKey = event.LangKey
		if account.LangKey == "" {
			account.LangKey = DefaultLangKey
		}
		account.Activated = false
		account.ActivationKey = &key
		account.Roles = []string{RoleUser}
		account.CreatedAt = h.now()

		if account, err = accounts.CreateTx(ctx, tx, account); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	return account, nil
}

// evictPendingHolder deletes a never-activated conflict holder or fails with
// the supplied conflict error when the holder is activated. The delete is
// conditional on the pending state so a concurrent activation wins the race.
func (h *RegisterAccountHandler) evictPendingHolder(ctx context.Context, tx bun.IDB, existing *Account, conflict error) error {
	if existing.Activated {
		return conflict
	}

	deleted, err := h.repo.Accounts().DeleteIfPendingTx(ctx, tx, existing.ID)
	if err != nil {
		return err
	}
	if !deleted {
		// activated between the read and the delete
		return conflict
	}

	h.cache.Evict(existing.Login, existing.Email)
	h.logger.Debug("displaced abandoned registration", "login", existing.Login)
	return nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		Actor:      ActorRef{ID: account.Login, Type: "user"},
		Login:      account.Login,
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}

func conflictHolderIsPending(ctx context.Context, repo RepositoryManager, login, email string) bool {
	if existing, err := repo.Accounts().FindByLogin(ctx, login); err == nil && existing.Activated {
		return false
	}
	if existing, err := repo.Accounts().FindByEmail(ctx, email); err == nil && existing.Activated {
		return false
	}
	return true
}
