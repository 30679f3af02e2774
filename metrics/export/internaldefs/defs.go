package internaldefs

import (
	"github.com/MrEthical07/loginguard"
)

// CounterDef binds a guard counter to its exported name.
type CounterDef struct {
	ID   loginguard.MetricID
	Name string
	Help string
}

// HistogramDef binds a guard histogram to its exported name.
type HistogramDef struct {
	ID   loginguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: loginguard.MetricLoginSuccess, Name: "loginguard_login_success_total", Help: "Authenticated login attempts."},
	{ID: loginguard.MetricLoginBadCredentials, Name: "loginguard_login_bad_credentials_total", Help: "Login attempts rejected for an unknown identity or a wrong secret."},
	{ID: loginguard.MetricLoginLockedOut, Name: "loginguard_login_locked_out_total", Help: "Login attempts rejected because the identity was locked out."},
	{ID: loginguard.MetricLockoutTriggered, Name: "loginguard_lockout_triggered_total", Help: "Identities that reached the failure threshold."},
	{ID: loginguard.MetricLockoutCleared, Name: "loginguard_lockout_cleared_total", Help: "Administrative unlocks."},
	{ID: loginguard.MetricCredentialStoreError, Name: "loginguard_credential_store_errors_total", Help: "Credential store failures."},
	{ID: loginguard.MetricLockoutBackendError, Name: "loginguard_lockout_backend_errors_total", Help: "Lockout backend failures."},
	{ID: loginguard.MetricPasswordRehashed, Name: "loginguard_password_rehashed_total", Help: "Stored hashes upgraded after login."},
	{ID: loginguard.MetricLockoutSwept, Name: "loginguard_lockout_swept_total", Help: "Lockout entries evicted by sweeping."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: loginguard.MetricAuthenticateLatency, Name: "loginguard_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight buckets
// kept by loginguard.Metrics.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds into instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter,
// which is not part of MetricsSnapshot.
const (
	AuditDroppedName = "loginguard_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
