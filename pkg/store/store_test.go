package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// userRowColumns mirrors userColumns for building mock result rows.
var userRowColumns = []string{
	"id", "email", "full_name", "is_active", "is_superuser",
	"hashed_password", "oauth_provider", "oauth_subject",
}

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestStore_GetByID(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id, "alice@example.com", strPtr("Alice"), true, false,
				strPtr("$2a$10$hash"), (*string)(nil), (*string)(nil)))

	user, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NotNil(t, user.FullName)
	assert.Equal(t, "Alice", *user.FullName)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsOAuth())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID_NotFound(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM users WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetByID(context.Background(), id)
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeNotFoundUser))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByOAuthSubject(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE oauth_subject = $1")).
		WithArgs("ext-123").
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id, "bob@example.com", (*string)(nil), true, false,
				(*string)(nil), strPtr("auth.example.com"), strPtr("ext-123")))

	user, err := s.GetByOAuthSubject(context.Background(), "ext-123")
	require.NoError(t, err)
	assert.True(t, user.IsOAuth())
	require.NotNil(t, user.OAuthSubject)
	assert.Equal(t, "ext-123", *user.OAuthSubject)
	assert.Nil(t, user.HashedPassword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateOAuth(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "carol@example.com", strPtr("Carol"),
			true, false, "auth.example.com", "ext-456").
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id, "carol@example.com", strPtr("Carol"), true, false,
				(*string)(nil), strPtr("auth.example.com"), strPtr("ext-456")))

	user, err := s.CreateOAuth(context.Background(), CreateOAuthParams{
		Email:    "carol@example.com",
		FullName: strPtr("Carol"),
		Provider: "auth.example.com",
		Subject:  "ext-456",
	})
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateOAuth_UniqueViolation(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "carol@example.com", (*string)(nil),
			true, false, "auth.example.com", "ext-456").
		WillReturnError(&pgconn.PgError{
			Code:           uniqueViolationCode,
			ConstraintName: "users_oauth_subject_key",
		})

	_, err := s.CreateOAuth(context.Background(), CreateOAuthParams{
		Email:    "carol@example.com",
		Provider: "auth.example.com",
		Subject:  "ext-456",
	})
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeConflictAlreadyExists))
	assert.True(t, hgerr.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateOAuth_MissingFields(t *testing.T) {
	_, s := newMockStore(t)

	_, err := s.CreateOAuth(context.Background(), CreateOAuthParams{
		Provider: "auth.example.com",
		Subject:  "ext-1",
	})
	assert.True(t, hgerr.HasCode(err, hgerr.CodeValidationRequired))

	_, err = s.CreateOAuth(context.Background(), CreateOAuthParams{
		Email: "x@example.com",
	})
	assert.True(t, hgerr.HasCode(err, hgerr.CodeValidationRequired))
}

func TestStore_CreateLocal(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "dave@example.com", (*string)(nil),
			true, false, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id, "dave@example.com", (*string)(nil), true, false,
				strPtr("$2a$10$hash"), (*string)(nil), (*string)(nil)))

	user, err := s.CreateLocal(context.Background(), CreateLocalParams{
		Email:    "dave@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateLocal_ShortPassword(t *testing.T) {
	_, s := newMockStore(t)

	_, err := s.CreateLocal(context.Background(), CreateLocalParams{
		Email:    "dave@example.com",
		Password: "short",
	})
	require.Error(t, err)
	assert.True(t, hgerr.IsValidation(err))
}

func TestStore_AuthenticateLocal(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	id := uuid.New()
	row := func() *pgxmock.Rows {
		return pgxmock.NewRows(userRowColumns).
			AddRow(id, "eve@example.com", (*string)(nil), true, false,
				&hash, (*string)(nil), (*string)(nil))
	}

	t.Run("success", func(t *testing.T) {
		mock, s := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email").
			WithArgs("eve@example.com").
			WillReturnRows(row())

		user, err := s.AuthenticateLocal(context.Background(), "eve@example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		mock, s := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email").
			WithArgs("eve@example.com").
			WillReturnRows(row())

		_, err := s.AuthenticateLocal(context.Background(), "eve@example.com", "wrong")
		require.Error(t, err)
		assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationInvalid))
	})

	t.Run("unknown email reads like wrong password", func(t *testing.T) {
		mock, s := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email").
			WithArgs("nobody@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.AuthenticateLocal(context.Background(), "nobody@example.com", "whatever")
		require.Error(t, err)
		assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationInvalid))
		assert.False(t, hgerr.IsNotFound(err))
	})

	t.Run("oauth account has no password", func(t *testing.T) {
		mock, s := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email").
			WithArgs("oauth@example.com").
			WillReturnRows(pgxmock.NewRows(userRowColumns).
				AddRow(id, "oauth@example.com", (*string)(nil), true, false,
					(*string)(nil), strPtr("auth.example.com"), strPtr("ext-1")))

		_, err := s.AuthenticateLocal(context.Background(), "oauth@example.com", "anything")
		require.Error(t, err)
		assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationInvalid))
	})
}

func TestStore_SetActive(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = $1 WHERE id = $2")).
		WithArgs(false, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetActive(context.Background(), id, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetActive_NotFound(t *testing.T) {
	mock, s := newMockStore(t)

	id := uuid.New()
	mock.ExpectExec("UPDATE users SET is_active").
		WithArgs(true, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetActive(context.Background(), id, true)
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeNotFoundUser))
}

func TestWrapInsertError_PassesThroughCodedErrors(t *testing.T) {
	orig := hgerr.New(hgerr.CodeNotFoundUser, "store: user not found")
	got := wrapInsertError(orig, "unused")

	var hgError *hgerr.Error
	require.True(t, errors.As(got, &hgError))
	assert.Equal(t, hgerr.CodeNotFoundUser, hgError.Code)
}
