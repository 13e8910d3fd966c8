package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// uniqueViolationCode is the PostgreSQL SQLSTATE for a unique
// constraint violation.
const uniqueViolationCode = "23505"

// userColumns is the column list shared by every user query, in scan
// order.
const userColumns = "id, email, full_name, is_active, is_superuser, hashed_password, oauth_provider, oauth_subject"

// DB is the subset of query operations the store needs. It is
// satisfied by *pgxpool.Pool, the traced postgres client, and pgxmock
// pools in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time assertion that pgxpool.Pool satisfies DB.
var _ DB = (*pgxpool.Pool)(nil)

// Store reads and writes user accounts. It is safe for concurrent use
// as long as the underlying DB is.
type Store struct {
	db DB
}

// New creates a Store backed by db.
func New(db DB) *Store {
	return &Store{db: db}
}

// GetByID fetches a user by primary key. Returns a *[hgerr.Error] with
// code [hgerr.CodeNotFoundUser] if no such user exists.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row, "id", id.String())
}

// GetByEmail fetches a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row, "email", email)
}

// GetByOAuthSubject fetches a user by the external provider's subject
// identifier. This is the idempotence check for OAuth provisioning.
func (s *Store) GetByOAuthSubject(ctx context.Context, subject string) (*User, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE oauth_subject = $1", subject)
	return scanUser(row, "oauth_subject", subject)
}

// CreateLocal inserts a locally registered account. The password is
// bcrypt-hashed before it reaches the database. A duplicate email
// surfaces as a *[hgerr.Error] with code
// [hgerr.CodeConflictAlreadyExists].
func (s *Store) CreateLocal(ctx context.Context, params CreateLocalParams) (*User, error) {
	if params.Email == "" {
		return nil, hgerr.New(hgerr.CodeValidationRequired, "store: email must not be empty")
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx,
		"INSERT INTO users (id, email, full_name, is_active, is_superuser, hashed_password) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+userColumns,
		uuid.New(), params.Email, params.FullName, true, params.IsSuperuser, hash)

	user, err := scanUser(row, "email", params.Email)
	if err != nil {
		return nil, wrapInsertError(err, "store: a user with this email already exists")
	}
	return user, nil
}

// CreateOAuth inserts a first-seen OAuth identity. The account is
// active, non-superuser and has no password. A concurrent insert of
// the same oauth_subject loses to the unique index and surfaces as a
// *[hgerr.Error] with code [hgerr.CodeConflictAlreadyExists]; callers
// should retry the subject lookup.
func (s *Store) CreateOAuth(ctx context.Context, params CreateOAuthParams) (*User, error) {
	if params.Email == "" {
		return nil, hgerr.New(hgerr.CodeValidationRequired, "store: email must not be empty")
	}
	if params.Provider == "" || params.Subject == "" {
		return nil, hgerr.New(hgerr.CodeValidationRequired, "store: oauth provider and subject must not be empty")
	}

	row := s.db.QueryRow(ctx,
		"INSERT INTO users (id, email, full_name, is_active, is_superuser, oauth_provider, oauth_subject) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+userColumns,
		uuid.New(), params.Email, params.FullName, true, false, params.Provider, params.Subject)

	user, err := scanUser(row, "oauth_subject", params.Subject)
	if err != nil {
		return nil, wrapInsertError(err, "store: a user with this email or oauth subject already exists")
	}
	return user, nil
}

// AuthenticateLocal verifies an email/password pair and returns the
// matching user. OAuth-provisioned accounts have no password and
// always fail. The not-found and wrong-password cases return the same
// authentication error so callers cannot distinguish them.
func (s *Store) AuthenticateLocal(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if hgerr.IsNotFound(err) {
			return nil, hgerr.New(hgerr.CodeAuthenticationInvalid, "store: invalid email or password")
		}
		return nil, err
	}

	if user.HashedPassword == nil || !VerifyPassword(*user.HashedPassword, password) {
		return nil, hgerr.New(hgerr.CodeAuthenticationInvalid, "store: invalid email or password")
	}
	return user, nil
}

// SetActive updates the is_active flag for a user.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE users SET is_active = $1 WHERE id = $2", active, id)
	if err != nil {
		if hgError, ok := hgerr.AsError(err); ok {
			return hgError
		}
		return hgerr.Wrap(err, hgerr.CodeInternalDatabase, "store: failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return hgerr.Newf(hgerr.CodeNotFoundUser, "store: user %s not found", id)
	}
	return nil
}

// scanUser scans a single user row. pgx.ErrNoRows maps to
// CodeNotFoundUser carrying the lookup key as a detail.
func scanUser(row pgx.Row, lookupKey, lookupValue string) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.IsActive,
		&u.IsSuperuser,
		&u.HashedPassword,
		&u.OAuthProvider,
		&u.OAuthSubject,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, hgerr.New(hgerr.CodeNotFoundUser, "store: user not found").
				WithDetail(lookupKey, lookupValue)
		}
		return nil, wrapInsertError(err, "store: duplicate user")
	}
	return &u, nil
}

// wrapInsertError maps a unique constraint violation to a conflict
// error and everything else to a database error. Errors that already
// carry a code pass through unchanged.
func wrapInsertError(err error, conflictMsg string) error {
	var hgError *hgerr.Error
	if errors.As(err, &hgError) {
		return hgError
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return hgerr.Wrap(err, hgerr.CodeConflictAlreadyExists, conflictMsg).
			WithDetail("constraint", pgErr.ConstraintName)
	}
	return hgerr.Wrap(err, hgerr.CodeInternalDatabase, "store: query failed")
}
