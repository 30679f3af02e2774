// Package loginguard verifies login credentials and locks identities out
// after repeated failures.
//
// A [Guard] is built once per process with [Builder] and shared by every
// request handler. Each [Guard.Authenticate] call:
//
//  1. checks whether the identity is locked out (an expired lockout is
//     cleared here),
//  2. compares the secret through the [CredentialVerifier],
//  3. records the outcome atomically: a success clears the counter, a
//     failure increments it and may start a lockout.
//
// Lockout rejections never reach the verifier and are padded to the running
// comparison latency. Unknown identities are compared against a dummy hash of
// the same cost, so neither path reveals which identities exist.
//
// # Architecture boundaries
//
// loginguard owns the attempt pipeline. Credential storage is supplied through
// [CredentialStore]; lockout bookkeeping lives in internal/lockout (in memory,
// or in Redis when [Builder.WithRedis] is used); hashing lives in password.
//
// # What this package must NOT do
//
//   - Retain, log or key anything by the submitted secret.
//   - Distinguish an unknown identity from a wrong secret in its results.
//   - Count infrastructure failures as failed attempts.
package loginguard
