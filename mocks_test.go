package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts implements identity.Accounts
type MockAccounts struct {
	mock.Mock
}

func accountArg(v any) *identity.Account {
	if v == nil {
		return nil
	}
	return v.(*identity.Account)
}

func (m *MockAccounts) FindByID(ctx context.Context, id int64) (*identity.Account, error) {
	args := m.Called(ctx, id)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindByLogin(ctx context.Context, login string) (*identity.Account, error) {
	args := m.Called(ctx, login)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*identity.Account, error) {
	args := m.Called(ctx, tx, login)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*identity.Account, error) {
	args := m.Called(ctx, tx, email)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindByActivationKey(ctx context.Context, tx bun.IDB, key string) (*identity.Account, error) {
	args := m.Called(ctx, tx, key)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindByResetKey(ctx context.Context, tx bun.IDB, key string) (*identity.Account, error) {
	args := m.Called(ctx, tx, key)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) FindStalePending(ctx context.Context, before time.Time) ([]*identity.Account, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.Account), args.Error(1)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, account *identity.Account) (*identity.Account, error) {
	args := m.Called(ctx, tx, account)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) UpdateTx(ctx context.Context, tx bun.IDB, account *identity.Account) (*identity.Account, error) {
	args := m.Called(ctx, tx, account)
	return accountArg(args.Get(0)), args.Error(1)
}

func (m *MockAccounts) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockAccounts) DeleteIfPendingTx(ctx context.Context, tx bun.IDB, id int64) (bool, error) {
	args := m.Called(ctx, tx, id)
	return args.Bool(0), args.Error(1)
}

// MockRepositoryManager implements identity.RepositoryManager over a
// MockAccounts. RunInTx invokes the callback directly with a zero bun.Tx so
// handler logic can be exercised without a database.
type MockRepositoryManager struct {
	accounts *MockAccounts
	roles    identity.RoleSet
}

func NewMockRepositoryManager(accounts *MockAccounts) *MockRepositoryManager {
	return &MockRepositoryManager{
		accounts: accounts,
		roles:    identity.DefaultRoleSet(),
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() identity.Accounts { return m.accounts }

func (m *MockRepositoryManager) Roles() identity.RoleSet { return m.roles }

// MockLogger implements identity.Logger without asserting on calls.
type MockLogger struct{}

func (MockLogger) Debug(format string, args ...any) {}
func (MockLogger) Info(format string, args ...any)  {}
func (MockLogger) Warn(format string, args ...any)  {}
func (MockLogger) Error(format string, args ...any) {}

// RecordingSink collects activity events for assertions.
type RecordingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (s *RecordingSink) Record(ctx context.Context, event identity.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *RecordingSink) Events() []identity.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.ActivityEvent(nil), s.events...)
}

func (s *RecordingSink) Types() []identity.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// RecordingMailer collects mail requests for assertions.
type RecordingMailer struct {
	mu         sync.Mutex
	Activation []string
	Reset      []string
}

func (m *RecordingMailer) SendActivationMail(ctx context.Context, account *identity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Activation = append(m.Activation, account.Login)
	return nil
}

func (m *RecordingMailer) SendPasswordResetMail(ctx context.Context, account *identity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reset = append(m.Reset, account.Login)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
