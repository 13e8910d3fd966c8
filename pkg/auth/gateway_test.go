package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
	"github.com/homeglass/homeglass-core/pkg/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testSecretKey is a 32-byte HMAC key used across local token tests.
const testSecretKey = "this-is-a-32-byte-test-signing-k"

// authTestHMACToken creates an HS256-signed token with the given claims.
func authTestHMACToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign HMAC token")
	return tokenStr
}

// authTestRSAKey generates a 2048-bit RSA key pair.
func authTestRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key pair")
	return privKey
}

// authTestRSAToken creates an RS256-signed token with the given claims
// and kid.
func authTestRSAToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	tokenStr, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign RSA token")
	return tokenStr
}

// authTestECDSAKey generates a P-256 ECDSA key pair.
func authTestECDSAKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "failed to generate ECDSA key pair")
	return privKey
}

// jwksDocument builds the JSON key set document for the given keys.
func jwksDocument(t *testing.T, rsaKeys map[string]*rsa.PublicKey, ecKeys map[string]*ecdsa.PublicKey) []byte {
	t.Helper()

	type jwkEntry struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg,omitempty"`
		Use string `json:"use,omitempty"`
		N   string `json:"n,omitempty"`
		E   string `json:"e,omitempty"`
		Crv string `json:"crv,omitempty"`
		X   string `json:"x,omitempty"`
		Y   string `json:"y,omitempty"`
	}

	var keys []jwkEntry
	for kid, pub := range rsaKeys {
		keys = append(keys, jwkEntry{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	for kid, pub := range ecKeys {
		keys = append(keys, jwkEntry{
			Kty: "EC",
			Kid: kid,
			Crv: "P-256",
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(pub.X.Bytes()),
			Y:   base64.RawURLEncoding.EncodeToString(pub.Y.Bytes()),
		})
	}

	doc, err := json.Marshal(map[string]any{"keys": keys})
	require.NoError(t, err, "failed to marshal key set")
	return doc
}

// authTestProvider starts an httptest.Server acting as the external
// provider: it serves the key set on the key-publishing route and an
// optional userinfo payload. The server URL doubles as the issuer.
func authTestProvider(t *testing.T, rsaKeys map[string]*rsa.PublicKey, userinfo map[string]any) *httptest.Server {
	t.Helper()

	jwksDoc := jwksDocument(t, rsaKeys, nil)

	mux := http.NewServeMux()
	mux.HandleFunc(keySetPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksDoc)
	})
	mux.HandleFunc(userinfoPath, func(w http.ResponseWriter, r *http.Request) {
		if userinfo == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userinfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// memStore is an in-memory UserStore for gateway and provisioning
// tests.
type memStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*store.User
	inserts int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*store.User)}
}

func (m *memStore) add(u *store.User) *store.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, hgerr.New(hgerr.CodeNotFoundUser, "store: user not found")
}

func (m *memStore) GetByOAuthSubject(_ context.Context, subject string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.OAuthSubject != nil && *u.OAuthSubject == subject {
			return u, nil
		}
	}
	return nil, hgerr.New(hgerr.CodeNotFoundUser, "store: user not found")
}

func (m *memStore) CreateOAuth(_ context.Context, params store.CreateOAuthParams) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.OAuthSubject != nil && *u.OAuthSubject == params.Subject {
			return nil, hgerr.New(hgerr.CodeConflictAlreadyExists, "store: a user with this oauth subject already exists")
		}
		if u.Email == params.Email {
			return nil, hgerr.New(hgerr.CodeConflictAlreadyExists, "store: a user with this email already exists")
		}
	}

	provider := params.Provider
	subject := params.Subject
	u := &store.User{
		ID:            uuid.New(),
		Email:         params.Email,
		FullName:      params.FullName,
		IsActive:      true,
		OAuthProvider: &provider,
		OAuthSubject:  &subject,
	}
	m.users[u.ID] = u
	m.inserts++
	return u, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// newTestGateway builds a gateway over a fresh memStore. issuer may be
// empty for local-only setups.
func newTestGateway(t *testing.T, cfg Config) (*Gateway, *memStore) {
	t.Helper()
	users := newMemStore()
	gw, err := NewGateway(cfg, users)
	require.NoError(t, err)
	return gw, users
}

// ---------------------------------------------------------------------------
// Gateway tests
// ---------------------------------------------------------------------------

func TestGateway_Authenticate_LocalToken(t *testing.T) {
	gw, users := newTestGateway(t, Config{SecretKey: testSecretKey})

	user := users.add(&store.User{Email: "alice@example.com", IsActive: true})
	token, err := gw.Issue(user.ID, time.Hour)
	require.NoError(t, err)

	got, err := gw.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestGateway_Authenticate_LocalToken_UnknownUser(t *testing.T) {
	gw, _ := newTestGateway(t, Config{SecretKey: testSecretKey})

	token, err := gw.Issue(uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = gw.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeNotFoundUser))
}

func TestGateway_Authenticate_InactiveUser(t *testing.T) {
	gw, users := newTestGateway(t, Config{SecretKey: testSecretKey})

	user := users.add(&store.User{Email: "inactive@example.com", IsActive: false})
	token, err := gw.Issue(user.ID, time.Hour)
	require.NoError(t, err)

	_, err = gw.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthorizationInactive))
}

func TestGateway_Authenticate_EmptyToken(t *testing.T) {
	gw, _ := newTestGateway(t, Config{SecretKey: testSecretKey})

	_, err := gw.Authenticate(context.Background(), "")
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationInvalid))
}

func TestGateway_Authenticate_RemoteToken_ProvisionsUser(t *testing.T) {
	privKey := authTestRSAKey(t)
	srv := authTestProvider(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)

	gw, users := newTestGateway(t, Config{
		SecretKey:     testSecretKey,
		OAuthIssuer:   srv.URL,
		OAuthClientID: "homeglass-web",
		HTTPClient:    srv.Client(),
	})

	token := authTestRSAToken(t, privKey, "key-1", jwt.MapClaims{
		"iss":   srv.URL,
		"sub":   "ext-12345",
		"aud":   "homeglass-web",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": "a@example.com",
		"name":  "Remote Alice",
	})

	got, err := gw.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	assert.True(t, got.IsActive)
	assert.True(t, got.IsOAuth())
	require.NotNil(t, got.OAuthSubject)
	assert.Equal(t, "ext-12345", *got.OAuthSubject)
	assert.Equal(t, 1, users.count())

	// A second login with the same subject resolves to the same user.
	again, err := gw.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	assert.Equal(t, 1, users.count())
}

func TestGateway_Authenticate_RemoteToken_WrongIssuerRoutesLocal(t *testing.T) {
	privKey := authTestRSAKey(t)
	srv := authTestProvider(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)

	gw, _ := newTestGateway(t, Config{
		SecretKey:   testSecretKey,
		OAuthIssuer: srv.URL,
		HTTPClient:  srv.Client(),
	})

	// Issuer differs from the configured one, so classification routes
	// the token to the local validator, where the RSA signature cannot
	// verify against the HMAC secret.
	token := authTestRSAToken(t, privKey, "key-1", jwt.MapClaims{
		"iss": "https://other-issuer.example.com",
		"sub": "ext-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := gw.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, hgerr.IsAuthentication(err))
}

func TestGateway_Authenticate_RemoteDisabled(t *testing.T) {
	privKey := authTestRSAKey(t)
	srv := authTestProvider(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)

	gw, _ := newTestGateway(t, Config{
		SecretKey:    testSecretKey,
		OAuthIssuer:  srv.URL,
		DisableOAuth: true,
		HTTPClient:   srv.Client(),
	})

	token := authTestRSAToken(t, privKey, "key-1", jwt.MapClaims{
		"iss": srv.URL,
		"sub": "ext-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := gw.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationDisabled))
}

func TestGateway_Authenticate_NoIssuerConfigured(t *testing.T) {
	gw, _ := newTestGateway(t, Config{SecretKey: testSecretKey})

	// Without a configured issuer every token is local, even one that
	// names an issuer in its payload.
	token := authTestHMACToken(t, []byte("wrong-key-wrong-key-wrong-key-32"), jwt.MapClaims{
		"iss": "https://auth.example.com",
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := gw.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationInvalid))
}

func TestNewGateway_RejectsShortSecret(t *testing.T) {
	_, err := NewGateway(Config{SecretKey: "short"}, newMemStore())
	require.Error(t, err)
	assert.True(t, hgerr.IsValidation(err))
}
