// Package audit dispatches login outcome events to a sink without blocking the
// request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON writer, no-op; the service adds a zap sink).
//   - [Dispatcher]: buffered async relay, either dropping or blocking when full.
//   - [Event]: one outcome with identity, account reference, client IP and failure count.
//
// This package does not decide which events to emit. The guard does.
//
// # What this package must NOT do
//
//   - Carry secrets or password hashes in any field.
//   - Import loginguard or any sibling internal package.
package audit
