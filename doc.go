// Package identity implements the identity and session subsystem for a
// multi-tenant web service: stateless JWT session tokens, request-time
// credential resolution, and the full account lifecycle from registration
// through activation, password reset, and purge of abandoned registrations.
//
// Account lifecycle:
//   - Accounts move Pending -> Active via a single-use activation key, and
//     Active -> ResetPending -> Active via a time-bounded reset key. Each
//     transition is a command handler (RegisterAccountHandler,
//     ActivateAccountHandler, ...) that persists through RepositoryManager
//     inside a transaction and evicts the credential cache before returning.
//   - PurgeStaleAccountsHandler sweeps registrations that were never activated
//     after a configured age. It is idempotent and safe to run concurrently
//     with registration.
//
// Credential resolution:
//   - CredentialResolver turns a login-or-email string into a resolved
//     credential entry by consulting the CredentialCache first and the
//     Accounts repository on a miss. The cache is invalidate-on-write: every
//     lifecycle mutation evicts both the login and email keys, so a read that
//     follows a write never observes pre-mutation state.
//
// Sessions:
//   - TokenService signs and validates self-contained HS256 tokens carrying
//     the subject login and role set. There is no revocation list; a token is
//     valid until its natural expiry.
//   - The middleware/jwtware package attaches a Principal to the request
//     context when a valid bearer token is present and otherwise lets the
//     request proceed anonymously. Authorization is a separate gate
//     (RequireRoles) so a malformed token never blocks a public endpoint.
package identity
