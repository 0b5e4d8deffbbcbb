package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type AssignRolesMessage struct {
	Login string   `json:"login"`
	Roles []string `json:"roles"`
}

func (e AssignRolesMessage) Type() string { return "account.roles_assign" }

// AssignRolesHandler replaces an account's role set. Names are validated
// against the closed role set loaded at construction; no per-assignment
// lookup hits the repository.
type AssignRolesHandler struct {
	repo     RepositoryManager
	cache    CredentialCache
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewAssignRolesHandler creates a handler with sane defaults.
func NewAssignRolesHandler(repo RepositoryManager, cache CredentialCache) *AssignRolesHandler {
	return &AssignRolesHandler{
		repo:     repo,
		cache:    cache,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit role assignment events.
func (h *AssignRolesHandler) WithActivitySink(sink ActivitySink) *AssignRolesHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *AssignRolesHandler) WithLogger(logger Logger) *AssignRolesHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *AssignRolesHandler) WithClock(clock func() time.Time) *AssignRolesHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *AssignRolesHandler) Execute(ctx context.Context, event AssignRolesMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role assignment",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AssignRolesHandler) execute(ctx context.Context, event AssignRolesMessage) (*Account, error) {
	if len(event.Roles) == 0 {
		return nil, goerrors.New("role set must not be empty", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := h.repo.Roles().Validate(event.Roles...); err != nil {
		return nil, err
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

		account.Roles = append([]string(nil), event.Roles...)

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
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign roles")
	}

	h.cache.Evict(account.Login, account.Email)

	h.recordActivity(ctx, account)

	return account, nil
}

func (h *AssignRolesHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventRolesAssigned,
		Actor:      ActorRef{Type: "system"},
		Login:      account.Login,
		Metadata:   map[string]any{"roles": account.Roles},
		OccurredAt: h.now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
