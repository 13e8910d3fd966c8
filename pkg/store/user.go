// Package store persists Homeglass user accounts in PostgreSQL and
// provides the password primitives for local login.
//
// Accounts come in two flavors. Locally registered accounts carry a
// bcrypt password hash and authenticate with email and password.
// OAuth-provisioned accounts carry the external provider label and
// subject instead and never have a password. The users table enforces
// uniqueness on both email and oauth_subject, which makes first-seen
// OAuth provisioning safe under concurrency.
package store

import (
	"github.com/google/uuid"
)

// User is a persisted Homeglass account.
//
// Nullable columns map to pointer fields. HashedPassword is set only
// for locally registered accounts; OAuthProvider and OAuthSubject only
// for provisioned ones. An account never meaningfully has both.
type User struct {
	// ID is the stable unique identifier. Local tokens carry it as the
	// "sub" claim.
	ID uuid.UUID `json:"id"`

	// Email is the account email. Unique across all users.
	Email string `json:"email"`

	// FullName is the optional display name.
	FullName *string `json:"full_name,omitempty"`

	// IsActive gates authentication. Inactive accounts are rejected at
	// the gateway even with a valid token.
	IsActive bool `json:"is_active"`

	// IsSuperuser grants administrative privileges.
	IsSuperuser bool `json:"is_superuser"`

	// HashedPassword is the bcrypt hash for local accounts. Nil for
	// OAuth-provisioned accounts. Never serialized.
	HashedPassword *string `json:"-"`

	// OAuthProvider is a short label derived from the issuer host
	// (e.g. "auth.example.com"). Nil for local accounts.
	OAuthProvider *string `json:"oauth_provider,omitempty"`

	// OAuthSubject is the external provider's "sub" claim. Unique when
	// set. Nil for local accounts.
	OAuthSubject *string `json:"oauth_subject,omitempty"`
}

// IsOAuth reports whether the account was provisioned from an external
// identity provider.
func (u *User) IsOAuth() bool {
	return u.OAuthSubject != nil && *u.OAuthSubject != ""
}

// CreateLocalParams describes a locally registered account to insert.
type CreateLocalParams struct {
	Email       string
	Password    string
	FullName    *string
	IsSuperuser bool
}

// CreateOAuthParams describes a first-seen OAuth identity to insert.
// Provider and Subject are both required.
type CreateOAuthParams struct {
	Email    string
	FullName *string
	Provider string
	Subject  string
}
