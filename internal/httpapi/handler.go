package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/MrEthical07/gdprAuth/middleware"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

// Handler serves the /api/account endpoints.
type Handler struct {
	engine *gdprAuth.Engine
	log    *slog.Logger
}

// NewHandler returns a Handler for engine. A nil logger discards.
func NewHandler(engine *gdprAuth.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{engine: engine, log: logger}
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type loginResponse struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Message     string    `json:"message"`
}

type verifyOTPRequest struct {
	ChallengeID string `json:"challenge_id"`
	OTP         string `json:"otp"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type challengeStatusResponse struct {
	AttemptsRemaining int       `json:"attempts_remaining"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type registerResponse struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type profileResponse struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username_or_email and password are required")
		return
	}

	ch, err := h.engine.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		ChallengeID: ch.ChallengeID,
		ExpiresAt:   ch.ExpiresAt,
		Message:     "A verification code was sent to your email address.",
	})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChallengeID == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "challenge_id and otp are required")
		return
	}

	pair, err := h.engine.VerifyOTP(r.Context(), req.ChallengeID, req.OTP)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) ChallengeStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.ChallengeStatus(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeStatusResponse{AttemptsRemaining: st.AttemptsRemaining, ExpiresAt: st.ExpiresAt})
}

func (h *Handler) CancelChallenge(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelChallenge(r.Context(), chi.URLParam(r, "challengeID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out."})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req gdprAuth.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		UserID:    res.PseudoID,
		CreatedAt: res.CreatedAt,
		Message:   "Account created. Check your email to confirm it.",
	})
}

func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, token := q.Get("userId"), q.Get("token")
	if userID == "" || token == "" {
		writeError(w, http.StatusBadRequest, "userId and token are required")
		return
	}

	if err := h.engine.ConfirmEmail(r.Context(), userID, token); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email confirmed."})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	pseudo, ok := middleware.PseudoIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.engine.Profile(r.Context(), pseudo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		UserID:         p.PseudoID,
		Username:       p.Username,
		Email:          p.Email,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		EmailConfirmed: p.EmailConfirmed,
		CreatedAt:      p.CreatedAt,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Health(r.Context())
	status := http.StatusOK
	if !st.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy":              st.Healthy(),
		"redis_configured":     st.RedisConfigured,
		"redis_available":      st.RedisAvailable,
		"redis_latency_ms":     st.RedisLatency.Milliseconds(),
		"user_store_available": st.UserStoreAvailable,
	})
}

// fail maps engine errors to status codes. Credential and token failures
// share one generic message per class.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gdprAuth.ErrRegistrationInvalid):
		writeError(w, http.StatusBadRequest, "invalid registration request")
	case errors.Is(err, gdprAuth.ErrMandatoryConsentMissing):
		writeError(w, http.StatusBadRequest, "all mandatory consents must be accepted")
	case errors.Is(err, gdprAuth.ErrConfirmationInvalid):
		writeError(w, http.StatusBadRequest, "invalid or expired confirmation link")
	case errors.Is(err, gdprAuth.ErrAccountExists):
		writeError(w, http.StatusConflict, "username or email already registered")
	case errors.Is(err, gdprAuth.ErrRegistrationDisabled):
		writeError(w, http.StatusForbidden, "registration is disabled")
	case errors.Is(err, gdprAuth.ErrLoginRateLimited),
		errors.Is(err, gdprAuth.ErrVerifyRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, gdprAuth.ErrInvalidCredentials),
		errors.Is(err, gdprAuth.ErrEmailNotConfirmed):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, gdprAuth.ErrOTPInvalid):
		writeError(w, http.StatusUnauthorized, "invalid or expired code, please log in again")
	case errors.Is(err, gdprAuth.ErrRefreshInvalid),
		errors.Is(err, gdprAuth.ErrAccessInvalid):
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, gdprAuth.ErrChallengeNotFound),
		errors.Is(err, gdprAuth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
