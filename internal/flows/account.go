package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

// AccountCreateFailureKind classifies registration failures.
type AccountCreateFailureKind int

const (
	AccountCreateFailureNone AccountCreateFailureKind = iota
	AccountCreateFailureInvalid
	AccountCreateFailurePassword
	AccountCreateFailureDuplicate
	AccountCreateFailureConsentMissing
	AccountCreateFailureUserStore
)

// ConsentInput is one client answer to a consent policy.
type ConsentInput struct {
	PolicyID    string
	ConsentType int16
	Accepted    bool
}

// MandatoryPolicy is a policy every new account must accept.
type MandatoryPolicy struct {
	ID          string
	Description string
}

// AccountCreateRequest is the flow-local registration input.
type AccountCreateRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Address   string
	Consents  []ConsentInput
	IP        string
	UserAgent string
}

// AccountCreateRecord is what the user store persists. The user row and its
// accepted consents are written in one atomic call.
type AccountCreateRecord struct {
	UserID       string
	PseudoID     string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Address      string
	CreatedAt    time.Time
	Consents     []ConsentInput
	IP           string
	UserAgent    string
}

// AccountCreateResult carries the created account or failure metadata.
type AccountCreateResult struct {
	Failure   AccountCreateFailureKind
	Err       error
	UserID    string
	PseudoID  string
	CreatedAt time.Time
	// MissingPolicy names the first mandatory policy left unaccepted.
	MissingPolicy string
	// ConfirmationErr and DeliveryErr leave the account in place.
	ConfirmationErr error
	DeliveryErr     error
}

// AccountCreateDeps captures registration dependencies.
type AccountCreateDeps struct {
	Now          func() time.Time
	NewUserID    func() string
	Pseudonymize func(realID string) string
	HashPassword func(password string) (string, error)
	// Exists reports whether username or email is already registered.
	Exists              func(ctx context.Context, username, email string) (bool, error)
	MandatoryPolicies   func(ctx context.Context, at time.Time) ([]MandatoryPolicy, error)
	CreateUser          func(ctx context.Context, rec AccountCreateRecord) error
	IssueConfirmation   func(ctx context.Context, userID string) (string, error)
	DeliverConfirmation func(ctx context.Context, email, pseudoID, token string) error
	AccountExists       error
}

// RunCreateAccount registers a user with its accepted consents and sends the
// address confirmation link.
func RunCreateAccount(ctx context.Context, req AccountCreateRequest, deps AccountCreateDeps) AccountCreateResult {
	if strings.TrimSpace(req.Username) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		req.Password == "" ||
		strings.TrimSpace(req.FirstName) == "" ||
		strings.TrimSpace(req.LastName) == "" ||
		!strings.Contains(req.Email, "@") {
		return AccountCreateResult{Failure: AccountCreateFailureInvalid}
	}

	exists, err := deps.Exists(ctx, req.Username, req.Email)
	if err != nil {
		return AccountCreateResult{Failure: AccountCreateFailureUserStore, Err: err}
	}
	if exists {
		return AccountCreateResult{Failure: AccountCreateFailureDuplicate, Err: deps.AccountExists}
	}

	now := deps.Now().UTC()
	policies, err := deps.MandatoryPolicies(ctx, now)
	if err != nil {
		return AccountCreateResult{Failure: AccountCreateFailureUserStore, Err: err}
	}
	if missing, ok := firstUnaccepted(policies, req.Consents); !ok {
		return AccountCreateResult{Failure: AccountCreateFailureConsentMissing, MissingPolicy: missing}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return AccountCreateResult{Failure: AccountCreateFailurePassword, Err: err}
	}

	accepted := make([]ConsentInput, 0, len(req.Consents))
	for _, c := range req.Consents {
		if c.Accepted {
			accepted = append(accepted, c)
		}
	}

	userID := deps.NewUserID()
	pseudoID := deps.Pseudonymize(userID)
	err = deps.CreateUser(ctx, AccountCreateRecord{
		UserID:       userID,
		PseudoID:     pseudoID,
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Address:      strings.TrimSpace(req.Address),
		CreatedAt:    now,
		Consents:     accepted,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
	})
	if err != nil {
		if deps.AccountExists != nil && errors.Is(err, deps.AccountExists) {
			return AccountCreateResult{Failure: AccountCreateFailureDuplicate, Err: err}
		}
		return AccountCreateResult{Failure: AccountCreateFailureUserStore, Err: err}
	}

	res := AccountCreateResult{UserID: userID, PseudoID: pseudoID, CreatedAt: now}
	if deps.IssueConfirmation == nil {
		return res
	}
	token, err := deps.IssueConfirmation(ctx, userID)
	if err != nil {
		res.ConfirmationErr = err
		return res
	}
	if deps.DeliverConfirmation != nil {
		res.DeliveryErr = deps.DeliverConfirmation(ctx, req.Email, pseudoID, token)
	}
	return res
}

func firstUnaccepted(policies []MandatoryPolicy, consents []ConsentInput) (string, bool) {
	accepted := make(map[string]bool, len(consents))
	for _, c := range consents {
		if c.Accepted {
			accepted[c.PolicyID] = true
		}
	}
	for _, p := range policies {
		if !accepted[p.ID] {
			if p.Description != "" {
				return p.Description, false
			}
			return p.ID, false
		}
	}
	return "", true
}
