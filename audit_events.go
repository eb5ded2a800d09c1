package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventRegister            = "register"
	auditEventLogin               = "login"
	auditEventRememberLogin       = "remember_login"
	auditEventLogout              = "logout"
	auditEventLogoutEverywhere    = "logout_everywhere"
	auditEventReconfirmPassword   = "reconfirm_password"
	auditEventPasswordChange      = "password_change"
	auditEventPasswordResetIssued = "password_reset_request"
	auditEventPasswordReset       = "password_reset"
	auditEventConfirmEmail        = "confirm_email"
	auditEventConfirmationIssued  = "confirmation_request"
	auditEventEmailChangeIssued   = "email_change_request"
	auditEventRoleGranted         = "role_granted"
	auditEventRoleRevoked         = "role_revoked"
	auditEventStatusChange        = "status_change"
	auditEventUserDeleted         = "user_deleted"
	auditEventResetToggled        = "password_reset_toggled"
	auditEventThrottleDenied      = "throttle_denied"
	auditEventBackendError        = "backend_error"
)

// AuditErrorCode is the stable error vocabulary recorded on audit events in
// place of raw error text.
type AuditErrorCode string

const (
	auditErrInvalidEmail      AuditErrorCode = "invalid_email"
	auditErrInvalidPassword   AuditErrorCode = "invalid_password"
	auditErrInvalidStatus     AuditErrorCode = "invalid_status"
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrAmbiguousUsername AuditErrorCode = "ambiguous_username"
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrUnverified        AuditErrorCode = "email_not_verified"
	auditErrAccountBanned     AuditErrorCode = "account_banned"
	auditErrAccountLocked     AuditErrorCode = "account_locked"
	auditErrAccountSuspended  AuditErrorCode = "account_suspended"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrTokenNotFound     AuditErrorCode = "token_not_found"
	auditErrTokenExpired      AuditErrorCode = "token_expired"
	auditErrTokenInvalid      AuditErrorCode = "token_invalid"
	auditErrSessionInvalid    AuditErrorCode = "session_invalid"
	auditErrSessionExpired    AuditErrorCode = "session_expired"
	auditErrSessionRevoked    AuditErrorCode = "session_revoked"
	auditErrResetDisabled     AuditErrorCode = "reset_disabled"
	auditErrUnknownRole       AuditErrorCode = "unknown_role"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (a *Auth) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	err error,
	metadataBuilder func() map[string]string,
) {
	if a == nil || a.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: a.clock().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	a.audit.Emit(ctx, event)
}

// emitThrottleDenied records a throttle rejection with the guarded action in
// the metadata, alongside the shared denial counter.
func (a *Auth) emitThrottleDenied(ctx context.Context, action string, userID int64) {
	a.metricInc(MetricThrottleDenied)
	a.emitAudit(ctx, auditEventThrottleDenied, false, userID, ErrTooManyRequests, func() map[string]string {
		return map[string]string{"action": action}
	})
}

// emitBackendError records an infrastructure failure. The cause text lands in
// the metadata where operators read it; callers only ever see ErrUnavailable.
func (a *Auth) emitBackendError(ctx context.Context, op string, cause error) {
	a.emitAudit(ctx, auditEventBackendError, false, 0, ErrUnavailable, func() map[string]string {
		m := map[string]string{"op": op}
		if cause != nil {
			m["cause"] = cause.Error()
		}
		return m
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidEmail):
		return auditErrInvalidEmail
	case errors.Is(err, ErrInvalidPassword):
		return auditErrInvalidPassword
	case errors.Is(err, ErrInvalidStatus):
		return auditErrInvalidStatus
	case errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrDuplicateUsername):
		return auditErrDuplicate
	case errors.Is(err, ErrAmbiguousUsername):
		return auditErrAmbiguousUsername
	case errors.Is(err, ErrUnknownID),
		errors.Is(err, ErrUnknownEmail),
		errors.Is(err, ErrUnknownUsername):
		return auditErrNotFound
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrUnverified
	case errors.Is(err, ErrAccountBanned):
		return auditErrAccountBanned
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountSuspended):
		return auditErrAccountSuspended
	case errors.Is(err, ErrTooManyRequests):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenNotFound):
		return auditErrTokenNotFound
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrPasswordResetDisabled):
		return auditErrResetDisabled
	case errors.Is(err, ErrUnknownRole):
		return auditErrUnknownRole
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
