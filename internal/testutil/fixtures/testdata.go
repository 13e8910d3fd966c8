// Package fixtures provides shared test data for the Homeglass backend
// test suite: user identities, provider settings, and the schema DDL used
// by integration tests against a real PostgreSQL container.
package fixtures

// Standard user identity values used across store and auth tests.
const (
	// UserEmail is the default local-account email.
	UserEmail = "alice@example.com"

	// UserPassword is the default local-account password. Deliberately
	// weak; suitable only for tests.
	UserPassword = "correct-horse-battery"

	// UserFullName is the default display name.
	UserFullName = "Alice Example"

	// AltUserEmail is a second email for tests needing two accounts.
	AltUserEmail = "bob@example.com"
)

// Standard OAuth identity values used in provisioning tests.
const (
	// OAuthSubject is the default external subject claim.
	OAuthSubject = "315159843271819264"

	// OAuthIssuer is the default external issuer for test identities.
	OAuthIssuer = "https://auth.homeglass.test"

	// OAuthClientID is the default audience for provider tokens.
	OAuthClientID = "homeglass-web"
)

// UsersSchemaDDL creates the users table the store package queries, one
// statement per element so tests can run them over the extended query
// protocol. Integration tests apply it to a fresh PostgreSQL container
// before exercising the store. The unique indexes back the idempotence
// and conflict behavior of local and OAuth account creation.
var UsersSchemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    full_name VARCHAR(255),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
    hashed_password VARCHAR(255),
    oauth_provider VARCHAR(255),
    oauth_subject VARCHAR(255)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users (email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_oauth_subject ON users (oauth_subject)
    WHERE oauth_subject IS NOT NULL`,
}

// TinyPNG is a valid 1x1 transparent PNG for image upload tests.
var TinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}
