package gdprAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gdprAuth/internal/flows"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/MrEthical07/gdprAuth/password"
)

// Register creates an account with its consents and mails the confirmation
// link. Every active mandatory consent policy must be accepted. The caller's
// IP and user agent are read from ctx (WithClientIP, WithUserAgent) and
// stored with each accepted consent.
//
// The user row and its consents are stored in one atomic provider call, so a
// failed write leaves nothing behind and the request can be retried. The
// returned id is pseudonymous. A confirmation link that cannot be issued or
// mailed is logged and does not undo the registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.Enabled {
		return nil, ErrRegistrationDisabled
	}

	consents := make([]flows.ConsentInput, 0, len(req.Consents))
	for _, c := range req.Consents {
		consents = append(consents, flows.ConsentInput{
			PolicyID:    c.PolicyID,
			ConsentType: int16(c.ConsentType),
			Accepted:    c.Accepted,
		})
	}

	res := e.flows.CreateAccount(ctx, flows.AccountCreateRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
		Consents:  consents,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})

	switch res.Failure {
	case flows.AccountCreateFailureNone:
	case flows.AccountCreateFailureInvalid:
		e.emitAudit(ctx, AuditRegister, AuditWarning, "", "", "", ErrRegistrationInvalid)
		return nil, ErrRegistrationInvalid
	case flows.AccountCreateFailurePassword:
		e.emitAudit(ctx, AuditRegister, AuditWarning, "", "", "", res.Err)
		if errors.Is(res.Err, password.ErrPasswordTooShort) || errors.Is(res.Err, password.ErrPasswordTooLong) {
			return nil, errors.Join(ErrRegistrationInvalid, res.Err)
		}
		return nil, res.Err
	case flows.AccountCreateFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, AuditRegister, AuditWarning, "", "", "", ErrAccountExists)
		return nil, ErrAccountExists
	case flows.AccountCreateFailureConsentMissing:
		e.metricInc(MetricRegisterConsentMissing)
		e.emitAudit(ctx, AuditRegister, AuditWarning, "", "consent_policy", res.MissingPolicy, ErrMandatoryConsentMissing)
		return nil, ErrMandatoryConsentMissing
	default:
		e.emitAudit(ctx, AuditRegister, AuditError, "", "", "", ErrUserStoreUnavailable)
		return nil, wrapUnavailable(ErrUserStoreUnavailable, res.Err)
	}

	if res.ConfirmationErr != nil {
		e.metricInc(MetricDeliveryFailure)
		e.warn("gdprAuth: confirmation for %s not issued: %v", res.PseudoID, res.ConfirmationErr)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, AuditRegister, AuditSuccess, res.PseudoID, "user", res.PseudoID, nil)
	return &RegisterResult{PseudoID: res.PseudoID, CreatedAt: res.CreatedAt}, nil
}

// ConfirmEmail marks the address of the user behind pseudoID as confirmed.
// token is single use. Unknown users, wrong tokens and expired tokens are all
// ErrConfirmationInvalid.
func (e *Engine) ConfirmEmail(ctx context.Context, pseudoID, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.ConfirmEmail(ctx, pseudoID, token)
	switch res.Failure {
	case flows.ConfirmFailureNone:
	case flows.ConfirmFailureInvalid:
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, AuditConfirmEmail, AuditWarning, "", "", "", ErrConfirmationInvalid)
		return ErrConfirmationInvalid
	default:
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, AuditConfirmEmail, AuditError, pseudoID, "", "", ErrUserStoreUnavailable)
		return wrapUnavailable(ErrUserStoreUnavailable, res.Err)
	}

	e.metricInc(MetricEmailConfirmSuccess)
	e.emitAudit(ctx, AuditConfirmEmail, AuditSuccess, pseudoID, "user", pseudoID, nil)
	return nil
}

func (e *Engine) accountExists(ctx context.Context, username, email string) (bool, error) {
	for _, identifier := range []string{username, email} {
		_, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return false, err
		}
	}
	return false, nil
}

func (e *Engine) mandatoryPolicies(ctx context.Context, at time.Time) ([]flows.MandatoryPolicy, error) {
	policies, err := e.userProvider.MandatoryConsentPolicies(ctx, at)
	if err != nil {
		return nil, err
	}
	out := make([]flows.MandatoryPolicy, 0, len(policies))
	for _, p := range policies {
		if !p.IsMandatory {
			continue
		}
		out = append(out, flows.MandatoryPolicy{ID: p.ID, Description: p.Description})
	}
	return out, nil
}

func (e *Engine) createUser(ctx context.Context, rec flows.AccountCreateRecord) error {
	consents := make([]ConsentRecord, 0, len(rec.Consents))
	for _, c := range rec.Consents {
		consents = append(consents, ConsentRecord{
			UserID:      rec.UserID,
			PolicyID:    c.PolicyID,
			ConsentType: ConsentType(c.ConsentType),
			IPAddress:   rec.IP,
			UserAgent:   rec.UserAgent,
			ConsentDate: rec.CreatedAt,
		})
	}
	_, err := e.userProvider.CreateUserWithConsents(ctx, CreateUserInput{
		UserID:       rec.UserID,
		PseudoID:     rec.PseudoID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		Address:      rec.Address,
		CreatedAt:    rec.CreatedAt,
	}, consents)
	return err
}

// issueConfirmation opens a confirmation challenge; the emailed token is
// "<challengeID>.<code>".
func (e *Engine) issueConfirmation(ctx context.Context, userID string) (string, error) {
	issued, err := e.confirmations.Create(ctx, userID)
	if err != nil {
		return "", err
	}
	return issued.ChallengeID + "." + issued.Code, nil
}

func (e *Engine) deliverConfirmation(ctx context.Context, email, pseudoID, token string) error {
	body, err := notify.ConfirmBody(e.confirmationLink(pseudoID, token))
	if err == nil {
		err = e.sender.Send(ctx, email, notify.ConfirmSubject, body)
	}
	if err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.warn("gdprAuth: confirmation delivery for %s failed: %v", pseudoID, err)
		return wrapUnavailable(ErrDeliveryFailure, err)
	}
	return nil
}
