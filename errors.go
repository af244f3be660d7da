package gdprAuth

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown identifier or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed is returned at login for users that never confirmed their address.
	// Transports report it with the same generic message as ErrInvalidCredentials.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrLoginRateLimited is returned when the identifier or IP exhausted its login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrVerifyRateLimited is returned when an IP exhausted its code submission budget.
	ErrVerifyRateLimited = errors.New("verification rate limited")
	// ErrOTPInvalid covers an unknown, expired, exhausted or mismatched challenge.
	ErrOTPInvalid = errors.New("otp invalid or expired")
	// ErrChallengeNotFound is returned by challenge status lookups.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrRefreshInvalid covers every refresh token rejection.
	ErrRefreshInvalid = errors.New("refresh token invalid")
	// ErrAccessInvalid covers every access token rejection.
	ErrAccessInvalid = errors.New("access token invalid")
	// ErrUserNotFound is returned by UserProvider lookups that match nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when the username or email is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrRegistrationDisabled is returned by Register when Account.Enabled is false.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationInvalid is returned when a required registration field is missing.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrMandatoryConsentMissing is returned when an active mandatory policy was not accepted.
	ErrMandatoryConsentMissing = errors.New("mandatory consent not accepted")
	// ErrConfirmationInvalid covers an unknown user, a bad token or an expired token.
	ErrConfirmationInvalid = errors.New("email confirmation invalid")
	// ErrDeliveryFailure is logged when a notification cannot be sent. It never fails a request.
	ErrDeliveryFailure = errors.New("notification delivery failed")
	// ErrConfigurationMissing is returned by Build when keys, issuer, audience or salt are absent.
	ErrConfigurationMissing = errors.New("required configuration missing")
	// ErrEngineNotReady is returned by methods on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrUserStoreUnavailable wraps credential store failures.
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrChallengeStoreUnavailable wraps challenge store failures.
	ErrChallengeStoreUnavailable = errors.New("challenge store unavailable")
	// ErrTokenStoreUnavailable wraps refresh record store failures.
	ErrTokenStoreUnavailable = errors.New("token store unavailable")
	// ErrRateLimiterUnavailable wraps rate limiter backend failures.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
)
