// Package lockout tracks failed login attempts per identity and decides when an
// identity is locked out.
//
// # State machine
//
// Each key is in one of three states:
//
//   - Clear: no entry exists.
//   - Accumulating: 1..Threshold-1 failures recorded.
//   - LockedOut: at least Threshold failures, and LastFailureAt+Duration is
//     still in the future.
//
// Every failure increments the counter and refreshes LastFailureAt, including
// failures recorded while the key is already locked out. A lockout whose
// duration has elapsed is cleared lazily by the next operation that touches
// the key; nothing runs in the background unless the caller invokes Sweep.
//
// # Backends
//
// [MemoryStore] serialises operations per key with ref-counted slot mutexes, so
// distinct keys never contend on the same lock. [RedisStore] runs every
// transition as a single Lua script and is safe to share between processes.
//
// # What this package must NOT do
//
//   - See or store secrets. Keys are opaque identity strings.
//   - Call the credential verifier or decide how a rejection is presented.
package lockout
