// Package middleware holds the HTTP adapters that sit between a router and the
// login guard.
//
// # Adapters
//
//   - [ClientContext] copies the client address and request id into the
//     request context so guard audit events carry them.
//   - [Throttle] refuses a client address that exhausted its attempt window.
//   - [RequireAdminKey] gates lockout administration on a shared key.
//   - [RequireSession] validates the bearer session token issued at login.
//
// # What this package must NOT do
//
//   - Count failures or decide lockouts. That is the guard's job.
//   - Read request bodies.
package middleware
