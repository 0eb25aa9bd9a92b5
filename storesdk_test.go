package storesdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"storesdk"
	"storesdk/auth"
	"storesdk/events"
	"storesdk/model"
	"storesdk/paginate"
	"storesdk/products"
)

// fakeStore is a minimal WooCommerce host with the auth plugin: login and
// refresh issue rotating token pairs, and the product listing demands a
// live access token.
type fakeStore struct {
	mu          sync.Mutex
	serial      int
	liveAccess  map[string]bool
	liveRefresh map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{liveAccess: map[string]bool{}, liveRefresh: map[string]bool{}}
}

func (s *fakeStore) expireAccessTokens() {
	s.mu.Lock()
	s.liveAccess = map[string]bool{}
	s.mu.Unlock()
}

func (s *fakeStore) killSession() {
	s.mu.Lock()
	s.liveAccess = map[string]bool{}
	s.liveRefresh = map[string]bool{}
	s.mu.Unlock()
}

func (s *fakeStore) writePair(w http.ResponseWriter) {
	s.serial++
	access := fmt.Sprintf("at-%d", s.serial)
	refresh := fmt.Sprintf("rt-%d", s.serial)
	s.liveAccess[access] = true
	s.liveRefresh[refresh] = true
	json.NewEncoder(w).Encode(map[string]any{
		"token":         access,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": refresh,
	})
}

func (s *fakeStore) deny(w http.ResponseWriter, code string) {
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": "denied",
		"data":    map[string]int{"status": 401},
	})
}

func (s *fakeStore) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /wp-json/storesdk/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var creds auth.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Login != "owner" || creds.Password != "secret" {
			s.deny(w, "invalid_credentials")
			return
		}
		s.writePair(w)
	})

	mux.HandleFunc("POST /wp-json/storesdk/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if !s.liveRefresh[body.RefreshToken] {
			s.deny(w, "storesdk_jwt.bad_signature")
			return
		}
		delete(s.liveRefresh, body.RefreshToken)
		s.writePair(w)
	})

	mux.HandleFunc("GET /wp-json/wc/v3/products", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.liveAccess[token] {
			s.deny(w, "storesdk_jwt.auth_required")
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("X-WP-Total", "4")
		w.Header().Set("X-WP-TotalPages", "2")
		if page <= 1 {
			json.NewEncoder(w).Encode([]products.Product{{ID: 1}, {ID: 2}})
			return
		}
		json.NewEncoder(w).Encode([]products.Product{{ID: 3}, {ID: 4}})
	})

	return mux
}

func newSDK(t *testing.T, store *fakeStore) *storesdk.Client {
	t.Helper()
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)

	sdk, err := storesdk.New(storesdk.Config{StoreURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return sdk
}

func TestNewRequiresStoreURL(t *testing.T) {
	if _, err := storesdk.New(storesdk.Config{}); err == nil {
		t.Error("New() without a store URL should fail")
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newFakeStore()
	sdk := newSDK(t, store)
	ctx := context.Background()

	var authChanges []any
	sdk.Events.Subscribe(events.TopicAuthChanged, func(ev events.Event) {
		authChanges = append(authChanges, ev.Payload)
	})

	if _, err := sdk.Auth.Token(ctx, auth.Credentials{Login: "owner", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if sdk.Auth.State() != auth.StateAuthenticated {
		t.Errorf("State = %s, want authenticated", sdk.Auth.State())
	}

	// Paged listing works against the live session.
	res := sdk.Products.ListAll(ctx, map[string]any{"per_page": 2}, paginate.Options[products.Product]{})
	if res.Err != nil {
		t.Fatalf("ListAll: %v", res.Err)
	}
	if len(res.Data) != 4 {
		t.Errorf("got %d products, want 4", len(res.Data))
	}

	// Expire the access token server-side. The next call eats exactly one
	// 401, refreshes, replays, and succeeds without surfacing anything.
	store.expireAccessTokens()
	res = sdk.Products.ListAll(ctx, map[string]any{"per_page": 2}, paginate.Options[products.Product]{})
	if res.Err != nil {
		t.Fatalf("ListAll after expiry: %v", res.Err)
	}
	if len(res.Data) != 4 {
		t.Errorf("got %d products after refresh, want 4", len(res.Data))
	}

	// A transparent refresh settles into the same state: no new event.
	if len(authChanges) != 1 || authChanges[0] != true {
		t.Errorf("auth changes = %v, want [true]", authChanges)
	}

	// Kill the whole session: the SDK gives up cleanly and flips state.
	store.killSession()
	res = sdk.Products.ListAll(ctx, nil, paginate.Options[products.Product]{})
	if !errors.Is(res.Err, model.ErrRefreshFailed) {
		t.Fatalf("Err = %v, want ErrRefreshFailed", res.Err)
	}
	if sdk.Auth.State() != auth.StateUnauthenticated {
		t.Errorf("State = %s, want unauthenticated", sdk.Auth.State())
	}
	if len(authChanges) != 2 || authChanges[1] != false {
		t.Errorf("auth changes = %v, want [true false]", authChanges)
	}
}

func TestRefreshRotatesStoredPair(t *testing.T) {
	store := newFakeStore()
	sdk := newSDK(t, store)
	ctx := context.Background()

	first, err := sdk.Auth.Token(ctx, auth.Credentials{Login: "owner", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	store.expireAccessTokens()
	if res := sdk.Products.ListAll(ctx, nil, paginate.Options[products.Product]{}); res.Err != nil {
		t.Fatalf("ListAll after expiry: %v", res.Err)
	}

	// The transparent refresh rotated the pair: the original refresh
	// token is single-use and died with the rotation.
	if _, err := sdk.Auth.RefreshToken(ctx, first.RefreshToken); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("old refresh token: err = %v, want ErrUnauthorized (rotated away)", err)
	}
}
