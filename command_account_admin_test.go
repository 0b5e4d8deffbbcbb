package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateAccountHandler(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newHandler := func(accounts *MockAccounts, mailer identity.Mailer) *identity.CreateAccountHandler {
		return identity.NewCreateAccountHandler(NewMockRepositoryManager(accounts), identity.NewCredentialCache()).
			WithLogger(MockLogger{}).
			WithMailer(mailer).
			WithKeyGenerator(stubKeygen("initial-reset-key")).
			WithClock(fixedClock(now))
	}

	t.Run("creates an active account with an outstanding reset key", func(t *testing.T) {
		accounts := &MockAccounts{}
		mailer := &RecordingMailer{}
		h := newHandler(accounts, mailer)

		expectCreate(accounts)

		account, err := h.Execute(ctx, identity.CreateAccountMessage{
			Login: "carol",
			Email: "carol@example.com",
		})

		require.NoError(t, err)
		assert.True(t, account.Activated, "admin created accounts skip activation")
		assert.Nil(t, account.ActivationKey)
		require.NotNil(t, account.ResetKey)
		assert.Equal(t, "initial-reset-key", *account.ResetKey)
		require.NotNil(t, account.ResetRequestedAt)
		assert.Equal(t, []string{identity.RoleUser}, account.Roles)
		assert.NotEmpty(t, account.PasswordHash, "a random throwaway password is set")

		// the owner sets their own password through the reset flow
		assert.Equal(t, []string{"carol"}, mailer.Reset)
	})

	t.Run("explicit roles are validated against the closed set", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil)

		expectCreate(accounts)

		account, err := h.Execute(ctx, identity.CreateAccountMessage{
			Login: "carol",
			Email: "carol@example.com",
			Roles: []string{identity.RoleAdmin, identity.RoleUser},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{identity.RoleAdmin, identity.RoleUser}, account.Roles)
	})

	t.Run("unknown role fails before any write", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil)

		_, err := h.Execute(ctx, identity.CreateAccountMessage{
			Login: "carol",
			Email: "carol@example.com",
			Roles: []string{"ROLE_SUPERUSER"},
		})

		assert.ErrorIs(t, err, identity.ErrUnknownRole)
		accounts.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeleteAccountHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the account and evicts its cache keys", func(t *testing.T) {
		accounts := &MockAccounts{}
		sink := &RecordingSink{}
		cache := identity.NewCredentialCache()
		h := identity.NewDeleteAccountHandler(NewMockRepositoryManager(accounts), cache).
			WithLogger(MockLogger{}).
			WithActivitySink(sink)

		account := activatedAccount("alice", "alice@example.com")
		account.ID = 9
		cache.Put(identity.EntryFromAccount(account))

		accounts.On("FindByLoginTx", mock.Anything, mock.Anything, "alice").
			Return(account, nil).Once()
		accounts.On("DeleteTx", mock.Anything, mock.Anything, int64(9)).
			Return(nil).Once()

		err := h.Execute(ctx, identity.DeleteAccountMessage{Login: "alice"})

		require.NoError(t, err)
		_, ok := cache.GetByLogin("alice")
		assert.False(t, ok)
		_, ok = cache.GetByEmail("alice@example.com")
		assert.False(t, ok)

		assert.Equal(t, []identity.ActivityEventType{identity.ActivityEventAccountDeleted}, sink.Types())
		accounts.AssertExpectations(t)
	})

	t.Run("unknown login is a no-op", func(t *testing.T) {
		accounts := &MockAccounts{}
		sink := &RecordingSink{}
		h := identity.NewDeleteAccountHandler(NewMockRepositoryManager(accounts), identity.NewCredentialCache()).
			WithLogger(MockLogger{}).
			WithActivitySink(sink)

		accounts.On("FindByLoginTx", mock.Anything, mock.Anything, "nobody").
			Return(nil, repository.NewRecordNotFound()).Once()

		err := h.Execute(ctx, identity.DeleteAccountMessage{Login: "nobody"})

		assert.NoError(t, err)
		assert.Empty(t, sink.Types())
		accounts.AssertNotCalled(t, "DeleteTx", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAssignRolesHandler(t *testing.T) {
	ctx := context.Background()

	newHandler := func(accounts *MockAccounts, sink identity.ActivitySink, cache identity.CredentialCache) *identity.AssignRolesHandler {
		return identity.NewAssignRolesHandler(NewMockRepositoryManager(accounts), cache).
			WithLogger(MockLogger{}).
			WithActivitySink(sink)
	}

	t.Run("replaces the role set", func(t *testing.T) {
		accounts := &MockAccounts{}
		sink := &RecordingSink{}
		cache := identity.NewCredentialCache()
		h := newHandler(accounts, sink, cache)

		account := activatedAccount("alice", "alice@example.com")
		cache.Put(identity.EntryFromAccount(account))

		accounts.On("FindByLoginTx", mock.Anything, mock.Anything, "alice").
			Return(account, nil).Once()
		updated := expectUpdate(accounts)

		result, err := h.Execute(ctx, identity.AssignRolesMessage{
			Login: "alice",
			Roles: []string{identity.RoleAdmin, identity.RoleUser},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{identity.RoleAdmin, identity.RoleUser}, result.Roles)
		assert.Equal(t, []string{identity.RoleAdmin, identity.RoleUser}, updated.Roles)

		_, ok := cache.GetByLogin("alice")
		assert.False(t, ok, "next token must issue with the new roles")

		assert.Equal(t, []identity.ActivityEventType{identity.ActivityEventRolesAssigned}, sink.Types())
	})

	t.Run("unknown role fails the whole assignment", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil, identity.NewCredentialCache())

		_, err := h.Execute(ctx, identity.AssignRolesMessage{
			Login: "alice",
			Roles: []string{identity.RoleUser, "ROLE_WIZARD"},
		})

		assert.ErrorIs(t, err, identity.ErrUnknownRole)
		accounts.AssertNotCalled(t, "FindByLoginTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty role set is rejected", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil, identity.NewCredentialCache())

		_, err := h.Execute(ctx, identity.AssignRolesMessage{Login: "alice"})

		assert.Error(t, err)
	})
}

func TestUpdateProfileHandler(t *testing.T) {
	ctx := context.Background()

	newHandler := func(accounts *MockAccounts, cache identity.CredentialCache) *identity.UpdateProfileHandler {
		return identity.NewUpdateProfileHandler(NewMockRepositoryManager(accounts), cache).
			WithLogger(MockLogger{})
	}

	t.Run("applies only the provided fields", func(t *testing.T) {
		accounts := &MockAccounts{}
		cache := identity.NewCredentialCache()
		h := newHandler(accounts, cache)

		account := activatedAccount("alice", "alice@example.com")
		account.FirstName = "Alice"
		account.LastName = "Smith"

		accounts.On("FindByLoginTx", mock.Anything, mock.Anything, "alice").
			Return(account, nil).Once()
		updated := expectUpdate(accounts)

		_, err := h.Execute(ctx, identity.UpdateProfileMessage{
			Login:     "alice",
			FirstName: strPtr("Alicia"),
		})

		require.NoError(t, err)
		assert.Equal(t, "Alicia", updated.FirstName)
		assert.Equal(t, "Smith", updated.LastName, "unset fields stay untouched")
		assert.Equal(t, "alice@example.com", updated.Email)
	})

	t.Run("email change evicts old and new email keys", func(t *testing.T) {
		accounts := &MockAccounts{}
		cache := identity.NewCredentialCache()
		h := newHandler(accounts, cache)

		account := activatedAccount("alice", "old@example.com")
		cache.Put(identity.EntryFromAccount(account))

		accounts.On("FindByLoginTx", mock.Anything, mock.Anything, "alice").
			Return(account, nil).Once()
		expectUpdate(accounts)

		_, err := h.Execute(ctx, identity.UpdateProfileMessage{
			Login: "alice",
			Email: strPtr("new@example.com"),
		})

		require.NoError(t, err)
		_, ok := cache.GetByEmail("old@example.com")
		assert.False(t, ok)
		_, ok = cache.GetByLogin("alice")
		assert.False(t, ok)
	})

	t.Run("unknown login fails with ErrAccountNotFound", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, identity.NewCredentialCache())

		accounts.On("FindByLoginTx", mock.Anything, mock.Anything, "nobody").
			Return(nil, repository.NewRecordNotFound()).Once()

		_, err := h.Execute(ctx, identity.UpdateProfileMessage{
			Login:     "nobody",
			FirstName: strPtr("Nope"),
		})

		assert.ErrorIs(t, err, identity.ErrAccountNotFound)
	})
}
