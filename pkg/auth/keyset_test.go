package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// countingKeyServer serves a key set document and counts fetches.
func countingKeyServer(t *testing.T, doc []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, keySetPath, r.URL.Path)
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func TestKeySetCache_ServesFromCacheWithinWindow(t *testing.T) {
	privKey := authTestRSAKey(t)
	doc := jwksDocument(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)
	srv, count := countingKeyServer(t, doc)

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())

	first, err := cache.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())

	second, err := cache.Keys(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, count.Load(), "second call within the window must not fetch")
}

func TestKeySetCache_RefetchesAfterWindow(t *testing.T) {
	privKey := authTestRSAKey(t)
	doc := jwksDocument(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)
	srv, count := countingKeyServer(t, doc)

	cache := NewKeySetCache(srv.URL, 30*time.Millisecond, srv.Client())

	_, err := cache.Keys(context.Background())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = cache.Keys(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count.Load(), "a call after the window must fetch exactly once")
}

func TestKeySetCache_ClearCacheForcesRefetch(t *testing.T) {
	privKey := authTestRSAKey(t)
	doc := jwksDocument(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)
	srv, count := countingKeyServer(t, doc)

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())

	_, err := cache.Keys(context.Background())
	require.NoError(t, err)

	cache.ClearCache()

	_, err = cache.Keys(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count.Load())
}

func TestKeySetCache_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())

	_, err := cache.Keys(context.Background())
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationKeyDiscovery))
}

func TestKeySetCache_FetchFailureWithStaleEntry(t *testing.T) {
	privKey := authTestRSAKey(t)
	doc := jwksDocument(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeySetCache(srv.URL, 20*time.Millisecond, srv.Client())

	_, err := cache.Keys(context.Background())
	require.NoError(t, err)

	// Once the entry has aged out, a failing refetch is a hard error
	// even though a stale snapshot is still held.
	fail.Store(true)
	time.Sleep(40 * time.Millisecond)

	_, err = cache.Keys(context.Background())
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationKeyDiscovery))

	// Subsequent requests attempt their own fetch; a recovered
	// provider serves them again.
	fail.Store(false)
	ks, err := cache.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ks.Len())
}

func TestKeySetCache_ParsesRSAAndECKeys(t *testing.T) {
	rsaKey := authTestRSAKey(t)
	ecKey := authTestECDSAKey(t)
	doc := jwksDocument(t,
		map[string]*rsa.PublicKey{"rsa-1": &rsaKey.PublicKey},
		map[string]*ecdsa.PublicKey{"ec-1": &ecKey.PublicKey})
	srv, _ := countingKeyServer(t, doc)

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())
	ks, err := cache.Keys(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, ks.Len())

	key, ok := ks.Key("rsa-1")
	require.True(t, ok)
	assert.IsType(t, &rsa.PublicKey{}, key)

	key, ok = ks.Key("ec-1")
	require.True(t, ok)
	assert.IsType(t, &ecdsa.PublicKey{}, key)

	_, ok = ks.Key("missing")
	assert.False(t, ok)
}

func TestKeySetCache_MalformedKeyMaterialFailsImport(t *testing.T) {
	docs := map[string][]byte{
		"bad RSA modulus": []byte(`{"keys":[{"kty":"RSA","kid":"bad-rsa","n":"!!!","e":"AQAB"}]}`),
		"unknown curve":   []byte(`{"keys":[{"kty":"EC","kid":"bad-curve","crv":"P-999","x":"AA","y":"AA"}]}`),
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			srv, _ := countingKeyServer(t, doc)

			cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())
			_, err := cache.Keys(context.Background())
			require.Error(t, err)
			assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationKeyDiscovery))
		})
	}
}

func TestKeySetCache_SkipsUnusableEntries(t *testing.T) {
	// Well-formed but unusable: no kid, or an unsupported key type.
	doc := []byte(`{"keys":[
		{"kty":"RSA","n":"AQAB","e":"AQAB"},
		{"kty":"oct","kid":"symmetric"}
	]}`)
	srv, _ := countingKeyServer(t, doc)

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())
	ks, err := cache.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ks.Len())
}

func TestKeySetCache_BadJSON(t *testing.T) {
	srv, _ := countingKeyServer(t, []byte("not json"))

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())
	_, err := cache.Keys(context.Background())
	require.Error(t, err)
	assert.True(t, hgerr.HasCode(err, hgerr.CodeAuthenticationKeyDiscovery))
}

func TestKeySetCache_ConcurrentReaders(t *testing.T) {
	privKey := authTestRSAKey(t)
	doc := jwksDocument(t, map[string]*rsa.PublicKey{"key-1": &privKey.PublicKey}, nil)
	srv, _ := countingKeyServer(t, doc)

	cache := NewKeySetCache(srv.URL, time.Hour, srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ks, err := cache.Keys(context.Background())
			assert.NoError(t, err)
			if ks != nil {
				// Keys and timestamp always come from one fetch.
				assert.Equal(t, 1, ks.Len())
				assert.False(t, ks.FetchedAt().IsZero())
			}
		}()
	}
	wg.Wait()
}
