// Package caseauth is the credential and session authority of the case
// curation service. It decides, for every inbound request, who the caller
// is and whether they may proceed, and it manages the secrets backing that
// decision: passwords, API keys, federated identities, and single-use
// password-reset tokens.
//
// Four authentication mechanisms are composed into one outcome by the
// [Dispatcher], in fixed precedence order: API key, session cookie, and a
// bearer-token fallback against an external identity provider. Role checks
// are layered on top by [RequireRoles].
//
// Persistence is delegated to the [CredentialStore], [ResetTokenStore] and
// [FailedAttemptStore] interfaces (MongoDB implementations live in the
// store subpackage), outbound email to [EmailClient], and request-rate
// ceilings to [RateLimiter]. The engine holds no per-user state between
// requests: every lockout and role decision re-reads the store.
package caseauth
