package gdprAuth

import (
	"context"
	"time"
)

// UserRecord is a credential store row. UserID is the real identifier and
// must not leave the engine.
type UserRecord struct {
	UserID         string
	Username       string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Address        string
	EmailConfirmed bool
	CreatedAt      time.Time
}

// CreateUserInput is passed to UserProvider.CreateUserWithConsents. PseudoID is set so a
// provider that keeps a pseudonym column can fill it; it may be ignored.
type CreateUserInput struct {
	UserID       string
	PseudoID     string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Address      string
	CreatedAt    time.Time
}

// ConsentType is the processing purpose a policy covers.
type ConsentType int16

const (
	ConsentPrivacyPolicy ConsentType = iota
	ConsentTermsOfService
	ConsentMarketing
	ConsentProfiling
	ConsentThirdPartySharing
)

// ConsentPolicy is one version of a policy text users consent to.
type ConsentPolicy struct {
	ID            string
	Version       string
	Description   string
	EffectiveDate time.Time
	ConsentType   ConsentType
	IsMandatory   bool
}

// ConsentRecord is a stored acceptance of a policy.
type ConsentRecord struct {
	UserID      string
	PolicyID    string
	ConsentType ConsentType
	IPAddress   string
	UserAgent   string
	ConsentDate time.Time
}

// ConsentAcceptance is a client's answer to one policy at registration.
type ConsentAcceptance struct {
	PolicyID    string      `json:"consent_policy_id"`
	ConsentType ConsentType `json:"consent_type"`
	Accepted    bool        `json:"accepted"`
}

// UserProvider is the credential and consent store the engine depends on.
//
// Lookups that match nothing return ErrUserNotFound. CreateUserWithConsents
// stores the user and its consent records atomically: after an error neither
// exists. It returns ErrAccountExists when the username or email is taken.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUserWithConsents(ctx context.Context, in CreateUserInput, consents []ConsentRecord) (UserRecord, error)
	ConfirmEmail(ctx context.Context, userID string) error
	// EachRealID enumerates every real user id for pseudonym reverse lookup.
	EachRealID(ctx context.Context, fn func(realID string) bool) error
	MandatoryConsentPolicies(ctx context.Context, at time.Time) ([]ConsentPolicy, error)
}

// RegisterRequest is the input of Engine.Register.
type RegisterRequest struct {
	Username  string              `json:"username"`
	Email     string              `json:"email"`
	Password  string              `json:"password"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	Address   string              `json:"address,omitempty"`
	Consents  []ConsentAcceptance `json:"consents"`
}

// RegisterResult reports a created account by its pseudonymous id.
type RegisterResult struct {
	PseudoID  string
	CreatedAt time.Time
}

// LoginChallenge is returned by Engine.Login. The passcode itself is only
// ever sent to the user's email address.
type LoginChallenge struct {
	ChallengeID string
	ExpiresAt   time.Time
}

// ChallengeStatus describes an open login challenge.
type ChallengeStatus struct {
	AttemptsRemaining int
	ExpiresAt         time.Time
}

// TokenPair is an access token with its rotating refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccessResult is the validated content of an access token.
type AccessResult struct {
	PseudoID  string
	TokenID   string
	ExpiresAt time.Time
}

// Profile is the non-identifying view of a user returned to its owner.
type Profile struct {
	PseudoID       string
	Username       string
	Email          string
	FirstName      string
	LastName       string
	EmailConfirmed bool
	CreatedAt      time.Time
}
