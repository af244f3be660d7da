package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/google/uuid"
)

const userColumns = `id, username, email, password_hash, first_name, last_name,
	COALESCE(address, ''), email_confirmed, created_at`

// UserStore implements gdprAuth.UserProvider and pseudonym.Index on the
// users, consent_policies and user_consents tables.
type UserStore struct {
	db              *sql.DB
	storePseudonyms bool
}

// UserStoreOption customizes a UserStore.
type UserStoreOption func(*UserStore)

// WithStoredPseudonyms writes pseudonymized_user_id on insert so
// LookupPseudonym can answer. Without it the column stays NULL.
func WithStoredPseudonyms(enabled bool) UserStoreOption {
	return func(s *UserStore) { s.storePseudonyms = enabled }
}

// NewUserStore binds a UserStore to db.
func NewUserStore(db *sql.DB, opts ...UserStoreOption) *UserStore {
	s := &UserStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the database connection. Engine.Health calls it.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanUser(row interface{ Scan(...any) error }) (gdprAuth.UserRecord, error) {
	var u gdprAuth.UserRecord
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
		&u.LastName, &u.Address, &u.EmailConfirmed, &u.CreatedAt)
	return u, err
}

// GetUserByIdentifier matches username exactly or email case-insensitively.
func (s *UserStore) GetUserByIdentifier(ctx context.Context, identifier string) (gdprAuth.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE username = $1 OR lower(email) = lower($1) LIMIT 1`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gdprAuth.UserRecord{}, gdprAuth.ErrUserNotFound
		}
		return gdprAuth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (gdprAuth.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gdprAuth.UserRecord{}, gdprAuth.ErrUserNotFound
		}
		return gdprAuth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// CreateUser inserts a user without consents.
func (s *UserStore) CreateUser(ctx context.Context, in gdprAuth.CreateUserInput) (gdprAuth.UserRecord, error) {
	return s.insertUser(ctx, s.db, in)
}

// CreateUserWithConsents inserts the user and its consents in one
// transaction. A failed consent insert rolls the user row back.
func (s *UserStore) CreateUserWithConsents(
	ctx context.Context,
	in gdprAuth.CreateUserInput,
	consents []gdprAuth.ConsentRecord,
) (gdprAuth.UserRecord, error) {
	if len(consents) == 0 {
		return s.CreateUser(ctx, in)
	}

	var u gdprAuth.UserRecord
	err := WithTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		var err error
		if u, err = s.insertUser(ctx, tx, in); err != nil {
			return err
		}
		return insertConsents(ctx, tx, u.UserID, consents)
	})
	if err != nil {
		if errors.Is(err, gdprAuth.ErrAccountExists) {
			return gdprAuth.UserRecord{}, err
		}
		return gdprAuth.UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UserStore) insertUser(ctx context.Context, q DBTX, in gdprAuth.CreateUserInput) (gdprAuth.UserRecord, error) {
	query := `INSERT INTO users (id, pseudonymized_user_id, username, email, password_hash,
			first_name, last_name, address, email_confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), false, $9)`

	var pseudo any
	if s.storePseudonyms && in.PseudoID != "" {
		pseudo = in.PseudoID
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, query, in.UserID, pseudo, in.Username, in.Email, in.PasswordHash,
		in.FirstName, in.LastName, in.Address, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return gdprAuth.UserRecord{}, gdprAuth.ErrAccountExists
		}
		return gdprAuth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	return gdprAuth.UserRecord{
		UserID:       in.UserID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Address:      in.Address,
		CreatedAt:    createdAt,
	}, nil
}

func (s *UserStore) ConfirmEmail(ctx context.Context, userID string) error {
	query := `UPDATE users SET email_confirmed = true, last_modified = now() WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return gdprAuth.ErrUserNotFound
	}
	return nil
}

// EachRealID streams every user id in creation order.
func (s *UserStore) EachRealID(ctx context.Context, fn func(string) bool) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !fn(id) {
			return nil
		}
	}
	return rows.Err()
}

// LookupPseudonym answers from the stored pseudonymized_user_id column.
func (s *UserStore) LookupPseudonym(ctx context.Context, pseudo uuid.UUID) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE pseudonymized_user_id = $1`, pseudo.String()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("db error: %w", err)
	}
	return id, true, nil
}

// MandatoryConsentPolicies returns mandatory policies in effect at `at` that
// have not been superseded by a newer effective version.
func (s *UserStore) MandatoryConsentPolicies(ctx context.Context, at time.Time) ([]gdprAuth.ConsentPolicy, error) {
	query := `SELECT p.id, p.version, COALESCE(p.description, ''), p.effective_date, p.consent_type
		FROM consent_policies p
		WHERE p.is_mandatory AND p.effective_date <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM consent_policies n
			WHERE n.previous_consent_policy_id = p.id AND n.effective_date <= $1
		  )
		ORDER BY p.effective_date`

	rows, err := s.db.QueryContext(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []gdprAuth.ConsentPolicy
	for rows.Next() {
		p := gdprAuth.ConsentPolicy{IsMandatory: true}
		if err := rows.Scan(&p.ID, &p.Version, &p.Description, &p.EffectiveDate, &p.ConsentType); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func insertConsents(ctx context.Context, q DBTX, userID string, records []gdprAuth.ConsentRecord) error {
	query := `INSERT INTO user_consents (id, user_id, consent_type, consent_policy_id,
			consent_date, ip_address, user_agent, created_date)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`

	now := time.Now().UTC()
	for _, r := range records {
		consentDate := r.ConsentDate
		if consentDate.IsZero() {
			consentDate = now
		}
		if _, err := q.ExecContext(ctx, query, uuid.NewString(), userID, r.ConsentType,
			r.PolicyID, consentDate, r.IPAddress, r.UserAgent, now); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
