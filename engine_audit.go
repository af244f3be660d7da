package gdprAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/gdprAuth/otp"
	"github.com/MrEthical07/gdprAuth/password"
)

// AuditErrorCode is the stable code written to AuditEvent.Description for
// failed requests.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrEmailUnconfirmed   AuditErrorCode = "email_unconfirmed"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrOTPInvalid         AuditErrorCode = "otp_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrConsentMissing     AuditErrorCode = "mandatory_consent_missing"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit queues one event. userID must already be pseudonymous. Request
// IP and trace id come from ctx.
func (e *Engine) emitAudit(
	ctx context.Context,
	action AuditAction,
	category AuditCategory,
	userID string,
	entityName string,
	entityID string,
	err error,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		Category:   category,
		Action:     action,
		UserID:     userID,
		EntityName: entityName,
		EntityID:   entityID,
		IP:         clientIPFromContext(ctx),
		TraceID:    traceIDFromContext(ctx),
	}
	if code := auditErrorCode(err); code != "" {
		event.Description = string(code)
	}
	if category == AuditError {
		event.Action = AuditInternalServerError
		if event.EntityName == "" {
			event.EntityName = action.String()
		}
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailNotConfirmed):
		return auditErrEmailUnconfirmed
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrVerifyRateLimited):
		return auditErrRateLimited
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrOTPInvalid),
		errors.Is(err, ErrChallengeNotFound):
		return auditErrOTPInvalid
	case errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrAccessInvalid),
		errors.Is(err, ErrConfirmationInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrMandatoryConsentMissing):
		return auditErrConsentMissing
	case errors.Is(err, password.ErrPasswordTooShort),
		errors.Is(err, password.ErrPasswordTooLong):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrRegistrationInvalid),
		errors.Is(err, ErrRegistrationDisabled):
		return auditErrInvalidRequest
	case errors.Is(err, ErrUserStoreUnavailable),
		errors.Is(err, ErrChallengeStoreUnavailable),
		errors.Is(err, ErrTokenStoreUnavailable),
		errors.Is(err, ErrRateLimiterUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
