package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Roles() RoleSet
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	roles    RoleSet
}

// ManagerOption customizes repository manager construction.
type ManagerOption func(*mngr)

// WithRoles overrides the closed role set loaded at construction.
func WithRoles(roles RoleSet) ManagerOption {
	return func(m *mngr) {
		m.roles = roles
	}
}

// NewRepositoryManager wires the account repository and the closed role set.
// The role set is loaded once here and referenced by identity afterwards; no
// lifecycle operation issues a by-name role lookup.
func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		roles:    DefaultRoleSet(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if len(m.roles.Names()) == 0 {
		return errors.New("role set should not be empty")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Roles() RoleSet {
	return m.roles
}
