package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/crypto/bcrypt"

	"storefront-graphql/internal/dbexec"
	"storefront-graphql/internal/sqlutil"
)

const userTable = "account_user"

// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
// inactive accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is a stored account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
}

// Authenticator checks an email and password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// CredentialStore looks accounts up by email and verifies bcrypt hashes.
type CredentialStore struct {
	db dbexec.QueryExecutor
}

// NewCredentialStore creates a credential store over db.
func NewCredentialStore(db dbexec.QueryExecutor) *CredentialStore {
	return &CredentialStore{db: db}
}

// FindByEmail returns nil and no error when no account has email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query, args, err := sq.Select(sqlutil.QuoteIdentifiers("id", "email", "password_hash", "is_staff", "is_active")...).
		From(sqlutil.QuoteIdentifier(userTable)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("email"): normalizeEmail(email)}).
		Limit(1).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var u User
	if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsStaff, &u.IsActive); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, rows.Err()
}

// Authenticate returns the active account matching email and password.
func (s *CredentialStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

var (
	dummyHashOnce sync.Once
	dummyHashVal  []byte
)

func dummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHashVal, _ = bcrypt.GenerateFromPassword([]byte("storefront-graphql"), bcrypt.DefaultCost)
	})
	return dummyHashVal
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
