package internaldefs

import (
	"github.com/ArrisFramework/authcore"
)

// CounterDef binds one authcore counter to its stable exposition name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds one authcore histogram to its stable exposition name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Exporters iterate this slice so
// the Prometheus and OTel views can never disagree on names.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Registrations rejected for invalid input or backend failure."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed logins."},
	{ID: authcore.MetricLoginBlocked, Name: "authcore_login_blocked_total", Help: "Logins refused by account status."},
	{ID: authcore.MetricLoginUnverified, Name: "authcore_login_unverified_total", Help: "Logins refused pending email verification."},
	{ID: authcore.MetricRememberLoginSuccess, Name: "authcore_remember_login_success_total", Help: "Successful remember-token logins."},
	{ID: authcore.MetricRememberLoginFailure, Name: "authcore_remember_login_failure_total", Help: "Failed remember-token logins."},
	{ID: authcore.MetricRememberIssued, Name: "authcore_remember_issued_total", Help: "Remember tokens issued."},
	{ID: authcore.MetricRememberRotated, Name: "authcore_remember_rotated_total", Help: "Remember tokens rotated on redemption."},
	{ID: authcore.MetricSessionIssued, Name: "authcore_session_issued_total", Help: "Session assertions issued."},
	{ID: authcore.MetricSessionRejected, Name: "authcore_session_rejected_total", Help: "Session assertions rejected by validation."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-device logouts."},
	{ID: authcore.MetricLogoutEverywhere, Name: "authcore_logout_everywhere_total", Help: "Global logouts."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Failed password changes."},
	{ID: authcore.MetricPasswordRehash, Name: "authcore_password_rehash_total", Help: "Transparent hash upgrades applied at login."},
	{ID: authcore.MetricPasswordResetRequested, Name: "authcore_password_reset_requested_total", Help: "Password reset challenges requested."},
	{ID: authcore.MetricPasswordResetSuccess, Name: "authcore_password_reset_success_total", Help: "Password reset challenges redeemed."},
	{ID: authcore.MetricPasswordResetFailure, Name: "authcore_password_reset_failure_total", Help: "Password reset redemptions refused."},
	{ID: authcore.MetricConfirmationRequested, Name: "authcore_confirmation_requested_total", Help: "Email confirmation challenges requested."},
	{ID: authcore.MetricEmailConfirmed, Name: "authcore_email_confirmed_total", Help: "Email addresses confirmed."},
	{ID: authcore.MetricEmailConfirmFailure, Name: "authcore_email_confirm_failure_total", Help: "Email confirmations refused."},
	{ID: authcore.MetricEmailChangeRequested, Name: "authcore_email_change_requested_total", Help: "Email change challenges requested."},
	{ID: authcore.MetricRoleGranted, Name: "authcore_role_granted_total", Help: "Roles granted."},
	{ID: authcore.MetricRoleRevoked, Name: "authcore_role_revoked_total", Help: "Roles revoked."},
	{ID: authcore.MetricStatusChanged, Name: "authcore_status_changed_total", Help: "Account status changes."},
	{ID: authcore.MetricUserDeleted, Name: "authcore_user_deleted_total", Help: "Accounts deleted."},
	{ID: authcore.MetricThrottleDenied, Name: "authcore_throttle_denied_total", Help: "Operations denied by the throttle ledger."},
	{ID: authcore.MetricBackendError, Name: "authcore_backend_error_total", Help: "Storage or throttle backend failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus "le"
// label form.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in an
// OTel instrument name.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets widens a snapshot bucket slice to the fixed bucket count,
// zero-filling when the snapshot carries fewer entries.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
