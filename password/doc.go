// Package password hashes and verifies login secrets.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are accepted for verification through
// [Chain] and always report [Chain.NeedsUpgrade] so callers can re-hash them on
// the next successful login.
//
// Every comparison is constant time with respect to the secret: Argon2id keys
// are compared with crypto/subtle and bcrypt uses its own constant-time check.
// [DummyHash] produces a throwaway hash with the same cost as real ones so that
// lookups of unknown identities can burn the same amount of work.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials.
//   - Import any other loginguard package.
//   - Log secrets or hashes.
package password
