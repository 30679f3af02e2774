// Package jwt issues the session token returned by a successful login and
// validates it with strict algorithm, issuer and audience checks.
package jwt
