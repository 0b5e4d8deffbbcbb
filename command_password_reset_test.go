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

func TestInitializePasswordResetHandler(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newHandler := func(accounts *MockAccounts, sink identity.ActivitySink, mailer identity.Mailer, cache identity.CredentialCache) *identity.InitializePasswordResetHandler {
		return identity.NewInitializePasswordResetHandler(NewMockRepositoryManager(accounts), cache).
			WithLogger(MockLogger{}).
			WithActivitySink(sink).
			WithMailer(mailer).
			WithKeyGenerator(stubKeygen("fixed-reset-key")).
			WithClock(fixedClock(now))
	}

	t.Run("stamps a reset key and requests the mail", func(t *testing.T) {
		accounts := &MockAccounts{}
		sink := &RecordingSink{}
		mailer := &RecordingMailer{}
		cache := identity.NewCredentialCache()
		h := newHandler(accounts, sink, mailer, cache)

		account := activatedAccount("alice", "alice@example.com")
		cache.Put(identity.EntryFromAccount(account))

		accounts.On("FindByEmailTx", mock.Anything, mock.Anything, "alice@example.com").
			Return(account, nil).Once()
		updated := expectUpdate(accounts)

		err := h.Execute(ctx, identity.InitializePasswordResetMessage{Email: "alice@example.com"})

		require.NoError(t, err)
		require.NotNil(t, updated.ResetKey)
		assert.Equal(t, "fixed-reset-key", *updated.ResetKey)
		require.NotNil(t, updated.ResetRequestedAt, "reset key and request time travel together")
		assert.Equal(t, now, *updated.ResetRequestedAt)

		assert.Equal(t, []string{"alice"}, mailer.Reset)
		assert.Equal(t, []identity.ActivityEventType{identity.ActivityEventResetMailRequested}, sink.Types())

		_, ok := cache.GetByLogin("alice")
		assert.False(t, ok, "mutation must evict the cached projection")
	})

	t.Run("unknown email is silently successful", func(t *testing.T) {
		accounts := &MockAccounts{}
		mailer := &RecordingMailer{}
		h := newHandler(accounts, nil, mailer, identity.NewCredentialCache())

		accounts.On("FindByEmailTx", mock.Anything, mock.Anything, "nobody@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		err := h.Execute(ctx, identity.InitializePasswordResetMessage{Email: "nobody@example.com"})

		assert.NoError(t, err, "caller cannot probe which emails exist")
		assert.Empty(t, mailer.Reset)
		accounts.AssertNotCalled(t, "UpdateTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unactivated account is silently skipped", func(t *testing.T) {
		accounts := &MockAccounts{}
		mailer := &RecordingMailer{}
		h := newHandler(accounts, nil, mailer, identity.NewCredentialCache())

		pending := activatedAccount("bob", "bob@example.com")
		pending.Activated = false

		accounts.On("FindByEmailTx", mock.Anything, mock.Anything, "bob@example.com").
			Return(pending, nil).Once()

		err := h.Execute(ctx, identity.InitializePasswordResetMessage{Email: "bob@example.com"})

		assert.NoError(t, err)
		assert.Empty(t, mailer.Reset)
		accounts.AssertNotCalled(t, "UpdateTx", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestFinalizePasswordResetHandler(t *testing.T) {
	ctx := context.Background()
	requestedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	accountWithResetKey := func(key string, at time.Time) *identity.Account {
		account := activatedAccount("alice", "alice@example.com")
		account.PasswordHash = "$2a$04$oldhash"
		account.SetResetKey(key, at)
		return account
	}

	newHandler := func(accounts *MockAccounts, sink identity.ActivitySink, cache identity.CredentialCache, now time.Time) *identity.FinalizePasswordResetHandler {
		return identity.NewFinalizePasswordResetHandler(NewMockRepositoryManager(accounts), cache).
			WithLogger(MockLogger{}).
			WithActivitySink(sink).
			WithBcryptCost(4).
			WithClock(fixedClock(now))
	}

	t.Run("redeems the key within the window", func(t *testing.T) {
		accounts := &MockAccounts{}
		sink := &RecordingSink{}
		cache := identity.NewCredentialCache()
		h := newHandler(accounts, sink, cache, requestedAt.Add(23*time.Hour))

		account := accountWithResetKey("valid-reset-key", requestedAt)
		cache.Put(identity.EntryFromAccount(account))

		accounts.On("FindByResetKey", mock.Anything, mock.Anything, "valid-reset-key").
			Return(account, nil).Once()
		updated := expectUpdate(accounts)

		err := h.Execute(ctx, identity.FinalizePasswordResetMessage{
			Key:      "valid-reset-key",
			Password: "brand new password",
		})

		require.NoError(t, err)
		assert.NoError(t, identity.ComparePasswordAndHash("brand new password", updated.PasswordHash))
		assert.Nil(t, updated.ResetKey, "key is cleared on redemption")
		assert.Nil(t, updated.ResetRequestedAt, "request time is cleared with the key")

		_, ok := cache.GetByLogin("alice")
		assert.False(t, ok)

		assert.Equal(t, []identity.ActivityEventType{identity.ActivityEventPasswordReset}, sink.Types())
	})

	t.Run("expired key leaves the password unchanged", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil, identity.NewCredentialCache(), requestedAt.Add(25*time.Hour))

		account := accountWithResetKey("stale-reset-key", requestedAt)

		accounts.On("FindByResetKey", mock.Anything, mock.Anything, "stale-reset-key").
			Return(account, nil).Once()

		err := h.Execute(ctx, identity.FinalizePasswordResetMessage{
			Key:      "stale-reset-key",
			Password: "brand new password",
		})

		assert.ErrorIs(t, err, identity.ErrInvalidOrExpiredKey)
		assert.Equal(t, "$2a$04$oldhash", account.PasswordHash)
		accounts.AssertNotCalled(t, "UpdateTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown key fails", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil, identity.NewCredentialCache(), requestedAt)

		accounts.On("FindByResetKey", mock.Anything, mock.Anything, "wrong-key").
			Return(nil, repository.NewRecordNotFound()).Once()

		err := h.Execute(ctx, identity.FinalizePasswordResetMessage{
			Key:      "wrong-key",
			Password: "brand new password",
		})

		assert.ErrorIs(t, err, identity.ErrInvalidOrExpiredKey)
	})

	t.Run("missing request timestamp fails", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil, identity.NewCredentialCache(), requestedAt)

		account := activatedAccount("alice", "alice@example.com")
		key := "orphan-key"
		account.ResetKey = &key

		accounts.On("FindByResetKey", mock.Anything, mock.Anything, "orphan-key").
			Return(account, nil).Once()

		err := h.Execute(ctx, identity.FinalizePasswordResetMessage{
			Key:      "orphan-key",
			Password: "brand new password",
		})

		assert.ErrorIs(t, err, identity.ErrInvalidOrExpiredKey)
	})

	t.Run("rejects short replacement password", func(t *testing.T) {
		accounts := &MockAccounts{}
		h := newHandler(accounts, nil, identity.NewCredentialCache(), requestedAt)

		err := h.Execute(ctx, identity.FinalizePasswordResetMessage{
			Key:      "valid-reset-key",
			Password: "short",
		})

		assert.Error(t, err)
		accounts.AssertNotCalled(t, "FindByResetKey", mock.Anything, mock.Anything, mock.Anything)
	})
}
