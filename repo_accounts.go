package identity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Accounts is the account repository boundary. The store is the authority for
// login/email uniqueness: both columns carry unique constraints and a
// violation surfaces as ErrLoginInUse or ErrEmailInUse rather than a driver
// error, so registration can rely on constraint-plus-retry instead of
// check-then-act.
type Accounts interface {
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByLogin(ctx context.Context, login string) (*Account, error)
	FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByActivationKey(ctx context.Context, tx bun.IDB, key string) (*Account, error)
	FindByResetKey(ctx context.Context, tx bun.IDB, key string) (*Account, error)
	FindStalePending(ctx context.Context, before time.Time) ([]*Account, error)

	CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	UpdateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id int64) error
	// DeleteIfPendingTx removes the account only while it is still pending.
	// It reports whether a row was deleted, and is safe to race with a
	// concurrent activation: the activated row is left untouched.
	DeleteIfPendingTx(ctx context.Context, tx bun.IDB, id int64) (bool, error)
}

type accounts struct {
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository returns the Bun-backed Accounts repository.
func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{db: db}
}

func (a *accounts) FindByID(ctx context.Context, id int64) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	return record, a.mapSelectErr(err, map[string]any{"id": id})
}

func (a *accounts) FindByLogin(ctx context.Context, login string) (*Account, error) {
	return a.FindByLoginTx(ctx, a.db, login)
}

func (a *accounts) FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*Account, error) {
	login = strings.ToLower(strings.TrimSpace(login))

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.login = ?", login).
		Limit(1).
		Scan(ctx)

	return record, a.mapSelectErr(err, map[string]any{"login": login})
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	return record, a.mapSelectErr(err, map[string]any{"email": email})
}

func (a *accounts) FindByActivationKey(ctx context.Context, tx bun.IDB, key string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.activation_key = ?", key).
		Limit(1).
		Scan(ctx)

	// key values never make it into error metadata
	return record, a.mapSelectErr(err, nil)
}

func (a *accounts) FindByResetKey(ctx context.Context, tx bun.IDB, key string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.reset_key = ?", key).
		Limit(1).
		Scan(ctx)

	return record, a.mapSelectErr(err, nil)
}

func (a *accounts) FindStalePending(ctx context.Context, before time.Time) ([]*Account, error) {
	var records []*Account
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.activated = ?", false).
		Where("?TableAlias.activation_key IS NOT NULL").
		Where("?TableAlias.created_at < ?", before).
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to scan stale pending accounts")
	}

	return records, nil
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	account.NormalizeLogin()
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := tx.NewInsert().Model(account).Exec(ctx)
	if err != nil {
		return nil, a.mapWriteErr(err, account)
	}

	return account, nil
}

func (a *accounts) UpdateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	account.NormalizeLogin()
	account.UpdatedAt = time.Now()

	res, err := tx.NewUpdate().
		Model(account).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, a.mapWriteErr(err, account)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": account.ID})
	}

	return account, nil
}

func (a *accounts) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	_, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}

	return nil
}

func (a *accounts) DeleteIfPendingTx(ctx context.Context, tx bun.IDB, id int64) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.activated = ?", false).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete pending account")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read delete result")
	}

	return affected > 0, nil
}

func (a *accounts) mapSelectErr(err error, metadata map[string]any) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows || repository.IsRecordNotFound(err) {
		notFound := repository.NewRecordNotFound()
		if metadata != nil {
			notFound = notFound.WithMetadata(metadata)
		}
		return notFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
}

func (a *accounts) mapWriteErr(err error, account *Account) error {
	if !isUniqueViolation(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account write failed")
	}

	msg := err.Error()
	if strings.Contains(msg, "login") {
		return wrapSentinel(ErrLoginInUse, map[string]any{"login": account.Login})
	}
	if strings.Contains(msg, "email") {
		return wrapSentinel(ErrEmailInUse, map[string]any{"email": account.Email})
	}

	return ErrLoginInUse
}

// IsRecordNotFound reports whether err is the repository's not-found shape.
func IsRecordNotFound(err error) bool {
	return repository.IsRecordNotFound(err)
}
