package errors

// Code is a machine-readable error code. Codes follow the pattern
// CATEGORY_XXX where CATEGORY is a short prefix (VAL, AUTH, NF, ...) and
// XXX is a three-digit number. Codes are stable: once assigned, a code's
// meaning never changes, so dashboards and alerts can key on them.
type Code string

const (
	// Validation errors (VAL_xxx) — HTTP 400.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) — HTTP 401.

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the presented token has expired.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the presented token is malformed,
	// carries a bad signature, or fails a claim check (issuer, audience,
	// subject). All of these are indistinguishable to API clients.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationKeyDiscovery indicates the signing-key set of the
	// external identity provider could not be fetched or parsed. The token
	// itself may be perfectly valid; it just cannot be verified right now.
	CodeAuthenticationKeyDiscovery Code = "AUTH_004"

	// CodeAuthenticationDisabled indicates a token from the external
	// identity provider was presented while provider authentication is
	// administratively disabled.
	CodeAuthenticationDisabled Code = "AUTH_005"

	// Authorization errors (AUTHZ_xxx) — HTTP 403.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationDenied indicates access to a resource is denied.
	CodeAuthorizationDenied Code = "AUTHZ_002"

	// CodeAuthorizationInactive indicates the authenticated user account
	// has been deactivated.
	CodeAuthorizationInactive Code = "AUTHZ_003"

	// Not found errors (NF_xxx) — HTTP 404.

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundUser indicates the requested user was not found.
	CodeNotFoundUser Code = "NF_002"

	// Conflict errors (CONF_xxx) — HTTP 409.

	// CodeConflict indicates a general conflict error.
	CodeConflict Code = "CONF_001"

	// CodeConflictAlreadyExists indicates the resource already exists.
	// The user store returns this when an insert trips a unique constraint,
	// which is how a concurrent-provisioning race surfaces.
	CodeConflictAlreadyExists Code = "CONF_002"

	// Internal errors (INT_xxx) — HTTP 500.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) — HTTP 503.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) — HTTP 504.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"

	// CodeTimeoutDependency indicates a call to a dependency timed out.
	CodeTimeoutDependency Code = "TIMEOUT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g. "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
