package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

func TestFileStoreAtomicWriteAndPermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "creds"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	doc := &models.CredentialDocument{
		Version:  1,
		AuthMode: models.AuthModeAPIKey,
		Tokens:   models.CredentialTokens{AccessToken: "sk-test"},
	}
	if err := store.Save("openai", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(store.path("openai"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != SecureFileMode {
		t.Fatalf("expected mode %o, got %o", SecureFileMode, info.Mode().Perm())
	}

	loaded, err := store.Load("openai")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Tokens.AccessToken != "sk-test" {
		t.Fatalf("expected round-tripped access token, got %q", loaded.Tokens.AccessToken)
	}

	if _, err := os.Stat(store.path("openai") + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("expected temp file to be renamed away, not left behind")
	}
}

func TestResolveAPIKeyProviderNeverRefreshes(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	r := NewResolver(store, nil)
	r.SetAPIKey("openai", "sk-abc")

	mat, err := r.Resolve(context.Background(), "openai")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mat.AccessToken != "sk-abc" {
		t.Fatalf("expected sk-abc, got %q", mat.AccessToken)
	}
}

func TestResolveHardExpiredWithNoRefreshTokenFails(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	_ = store.Save("anthropic", &models.CredentialDocument{
		Version:  1,
		AuthMode: models.AuthModeOAuth,
		Tokens: models.CredentialTokens{
			AccessToken: "expired",
			ExpiresAt:   time.Now().Add(-time.Hour).UnixMilli(),
		},
	})
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), "anthropic")
	if err == nil {
		t.Fatal("expected error for hard-expired token with no refresh token")
	}
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	var refreshCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	_ = store.Save("anthropic", &models.CredentialDocument{
		Version:  1,
		AuthMode: models.AuthModeOAuth,
		Tokens: models.CredentialTokens{
			AccessToken:  "about-to-expire",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Now().Add(30 * time.Second).UnixMilli(),
		},
		Account: &models.CredentialAccount{AccountID: "acct-1"},
	})

	r := NewResolver(store, nil)
	r.RegisterOAuthProvider("anthropic", oauth2.Config{
		Endpoint: oauth2.Endpoint{TokenURL: server.URL},
	})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	mats := make([]models.CredentialMaterial, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mats[i], errs[i] = r.Resolve(context.Background(), "anthropic")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolver %d failed: %v", i, err)
		}
		if mats[i].AccessToken != "refreshed" {
			t.Fatalf("resolver %d got stale token %q", i, mats[i].AccessToken)
		}
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one network refresh, got %d", got)
	}
	stats := r.Stats()
	if stats.Misses != 1 || stats.Hits != n-1 {
		t.Fatalf("expected 1 miss and %d hits, got %+v", n-1, stats)
	}
}
