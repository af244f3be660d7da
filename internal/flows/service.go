package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Login.FindUser != nil && s.deps.Verify.IssuePair != nil
}

func (s Service) Login(ctx context.Context, identifier, password, ip string) LoginResult {
	return RunLogin(ctx, identifier, password, ip, s.deps.Login)
}

func (s Service) VerifyOTP(ctx context.Context, challengeID, code, ip string) VerifyResult {
	return RunVerifyOTP(ctx, challengeID, code, ip, s.deps.Verify)
}

func (s Service) Refresh(ctx context.Context, token string) RefreshResult {
	return RunRefresh(ctx, token, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, token string) LogoutResult {
	return RunLogout(ctx, token, s.deps.Logout)
}

func (s Service) CreateAccount(ctx context.Context, req AccountCreateRequest) AccountCreateResult {
	return RunCreateAccount(ctx, req, s.deps.Account)
}

func (s Service) ConfirmEmail(ctx context.Context, pseudoID, token string) ConfirmResult {
	return RunConfirmEmail(ctx, pseudoID, token, s.deps.Confirm)
}
