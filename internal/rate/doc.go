// Package rate implements the per-IP login throttle that sits in front of the
// guard. It is independent of the per-identity lockout: an IP that exhausts
// its window is refused before any credential work happens.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional PEXPIRE on the first hit. Keys are
// "<prefix><ip>", default prefix "lg:ip:".
//
// # What this package must NOT do
//
//   - Touch lockout entries or credentials.
//   - Count identities. Only client addresses are keyed here.
package rate
