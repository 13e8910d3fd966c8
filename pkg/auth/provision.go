package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
	"github.com/homeglass/homeglass-core/pkg/store"
)

// userinfoPath is the provider's profile endpoint, appended to the
// issuer URL. It is queried with the validated bearer token when the
// token itself carries no email.
const userinfoPath = "/oidc/v1/userinfo"

// UserStore is the persistence surface the authentication core needs.
// *[store.Store] satisfies it.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*store.User, error)
	GetByOAuthSubject(ctx context.Context, subject string) (*store.User, error)
	CreateOAuth(ctx context.Context, params store.CreateOAuthParams) (*store.User, error)
}

// Compile-time assertion that store.Store implements UserStore.
var _ UserStore = (*store.Store)(nil)

// Provisioner maps a validated provider identity to a persisted user,
// creating one on first sight. Repeated logins for a known subject
// return the existing record unchanged.
type Provisioner struct {
	users  UserStore
	issuer string
	client HTTPClient
	tracer trace.Tracer
}

// NewProvisioner creates a Provisioner. client performs the userinfo
// fallback fetch, falling back to a default client with a 10-second
// timeout when nil.
func NewProvisioner(users UserStore, issuerURL string, client HTTPClient) *Provisioner {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Provisioner{
		users:  users,
		issuer: issuerURL,
		client: client,
		tracer: otel.Tracer(tracerName),
	}
}

// Resolve returns the user for a validated provider identity. A known
// subject resolves to its existing record. A first-seen subject is
// persisted with email and name from the claims; when the claims carry
// no email, one best-effort userinfo fetch with the presented token
// fills the gap. A userinfo failure is logged and treated as absent
// data. An identity with no resolvable email fails, and no record is
// created.
//
// Two concurrent first-seen requests for the same subject can both
// reach the insert; the unique index on oauth_subject decides the
// race and the loser surfaces a retryable conflict error.
func (p *Provisioner) Resolve(ctx context.Context, claims Claims, rawToken string) (*store.User, error) {
	ctx, span := startSpan(ctx, p.tracer, "auth.ResolveIdentity")
	defer span.End()

	sub := claims.Subject()
	if sub == "" {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: provider token missing subject").
			WithDetail("claim", "sub")
		finishSpan(span, err)
		return nil, err
	}

	user, err := p.users.GetByOAuthSubject(ctx, sub)
	if err == nil {
		span.SetAttributes(attribute.Bool("auth.provisioned", false))
		return user, nil
	}
	if !hgerr.IsNotFound(err) {
		finishSpan(span, err)
		return nil, err
	}

	email := claims.Email()
	name := claims.Name()
	if email == "" {
		info, uiErr := p.fetchUserInfo(ctx, rawToken)
		if uiErr != nil {
			slog.WarnContext(ctx, "auth: userinfo fallback failed",
				"error", uiErr,
				"issuer", p.issuer,
			)
		} else {
			email = info.Email
			if name == "" {
				name = info.Name
			}
		}
	}
	if email == "" {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: provider identity has no email").
			WithDetail("claim", "email")
		finishSpan(span, err)
		return nil, err
	}

	var fullName *string
	if name != "" {
		fullName = &name
	}

	user, err = p.users.CreateOAuth(ctx, store.CreateOAuthParams{
		Email:    email,
		FullName: fullName,
		Provider: ProviderLabel(p.issuer),
		Subject:  sub,
	})
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("auth.provisioned", true))
	return user, nil
}

// userInfoResponse is the relevant subset of the provider's userinfo
// payload.
type userInfoResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// fetchUserInfo queries the provider's profile endpoint with the
// presented bearer token. The body is limited to 1 MB.
func (p *Provisioner) fetchUserInfo(ctx context.Context, rawToken string) (*userInfoResponse, error) {
	userinfoURL := normalizeIssuer(p.issuer) + userinfoPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+rawToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read userinfo response: %w", err)
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("auth: failed to parse userinfo JSON: %w", err)
	}
	return &info, nil
}

// ProviderLabel derives a short provider label from an issuer URL:
// the host with the scheme and a leading "www." stripped. An empty or
// unparseable issuer yields the literal label "oauth".
func ProviderLabel(issuerURL string) string {
	if issuerURL == "" {
		return "oauth"
	}

	label := issuerURL
	if _, rest, found := strings.Cut(label, "://"); found {
		label = rest
	}
	label = strings.TrimPrefix(label, "www.")
	if idx := strings.Index(label, "/"); idx >= 0 {
		label = label[:idx]
	}
	if label == "" {
		return "oauth"
	}
	return label
}
