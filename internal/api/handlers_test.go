package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Nowon11/Infinity-Cubes/internal/auth"
	"github.com/Nowon11/Infinity-Cubes/internal/snapshot"
	"github.com/Nowon11/Infinity-Cubes/internal/storage"
	"github.com/Nowon11/Infinity-Cubes/internal/world"
)

// localBus is an in-process bus that delivers published messages straight
// to subscribers, standing in for the embedded NATS server.
type localBus struct {
	mu       sync.Mutex
	handlers map[string][]func([]byte)
}

func newLocalBus() *localBus {
	return &localBus{handlers: make(map[string][]func([]byte))}
}

func (b *localBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	handlers := append([]func([]byte){}, b.handlers[subject]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *localBus) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	return func() {}, nil
}

type testServer struct {
	router *Router
	coord  *world.Coordinator
	store  *storage.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	snaps, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating snapshot store: %v", err)
	}

	bus := newLocalBus()
	coord := world.New(world.Config{ZoneDuration: 300}, snaps, bus)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)

	authService := auth.NewService("test-secret", time.Hour)
	router := NewRouter(store, coord, authService, "Admin", "")
	if err := router.StartHub(bus); err != nil {
		t.Fatalf("starting hub: %v", err)
	}

	return &testServer{router: router, coord: coord, store: store}
}

func (ts *testServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) registerAndLogin(t *testing.T, username, password string) string {
	t.Helper()

	rec := ts.request(t, "POST", "/register", "", map[string]string{
		"username": username, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status %d: %s", username, rec.Code, rec.Body)
	}

	rec = ts.request(t, "POST", "/login", "", map[string]string{
		"username": username, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, rec.Code, rec.Body)
	}

	var resp struct {
		Token string `json:"token"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp.Token
}

func TestRegisterLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/register", "", map[string]string{
		"username": "alice", "password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d: %s", rec.Code, rec.Body)
	}

	rec = ts.request(t, "POST", "/register", "", map[string]string{
		"username": "alice", "password": "other456",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", rec.Code)
	}

	rec = ts.request(t, "POST", "/login", "", map[string]string{
		"username": "alice", "password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Token   string `json:"token"`
		IsAdmin bool   `json:"isAdmin"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Token == "" {
		t.Error("login returned no token")
	}
	if resp.IsAdmin {
		t.Error("regular player flagged as admin")
	}

	rec = ts.request(t, "POST", "/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "secret123"},
		{"long username", "this-username-is-way-too-long", "secret123"},
		{"short password", "alice", "12345"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.request(t, "POST", "/register", "", map[string]string{
				"username": tc.username, "password": tc.password,
			})
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400", rec.Code)
			}
		})
	}
}

func TestRegisterSeedsDefaultSave(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice", "secret123")

	rec := ts.request(t, "POST", "/load", "", map[string]string{"username": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("load: status %d", rec.Code)
	}

	var resp struct {
		Data struct {
			Points      string `json:"points"`
			CurrentZone string `json:"currentZone"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Points != "0" || resp.Data.CurrentZone != "Overworld" {
		t.Fatalf("default save = %+v", resp.Data)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/save", "", map[string]interface{}{
		"username": "alice",
		"gameData": map[string]interface{}{"points": "9000", "inventory": []string{"Gold"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d: %s", rec.Code, rec.Body)
	}

	rec = ts.request(t, "POST", "/load", "", map[string]string{"username": "alice"})
	var resp struct {
		Data struct {
			Points string `json:"points"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Points != "9000" {
		t.Fatalf("loaded points = %q, want 9000", resp.Data.Points)
	}
}

func TestLoadUnknownPlayerReturnsDefaults(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/load", "", map[string]string{"username": "nobody"})
	if rec.Code != http.StatusOK {
		t.Fatalf("load: status %d", rec.Code)
	}
	var resp struct {
		Data struct {
			Points string `json:"points"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Points != "0" {
		t.Fatalf("points = %q, want default 0", resp.Data.Points)
	}
}

func TestGetZone(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/zone", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Zone  string `json:"zone"`
		Timer int    `json:"timer"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Zone != "Overworld" {
		t.Errorf("zone = %q, want Overworld", resp.Zone)
	}
	if resp.Timer <= 0 || resp.Timer > 300 {
		t.Errorf("timer = %d, want in (0, 300]", resp.Timer)
	}
}

func TestCollectCubeSecondClaimGets404(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "POST", "/spawn-global-cube", "", map[string]interface{}{
		"rarity": "Diamond", "x": 10.0, "y": 20.0, "odds": 1000.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("spawn: status %d: %s", rec.Code, rec.Body)
	}
	var spawned struct {
		Cube struct {
			ID int64 `json:"id"`
		} `json:"cube"`
	}
	json.Unmarshal(rec.Body.Bytes(), &spawned)

	claim := map[string]interface{}{"cubeId": spawned.Cube.ID, "username": "alice"}
	if rec := ts.request(t, "POST", "/collect-global-cube", "", claim); rec.Code != http.StatusOK {
		t.Fatalf("first claim: status %d: %s", rec.Code, rec.Body)
	}
	if rec := ts.request(t, "POST", "/collect-global-cube", "", claim); rec.Code != http.StatusNotFound {
		t.Fatalf("second claim: status %d, want 404", rec.Code)
	}
}

func TestChatHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.coord.Chat("alice", "hello world")

	rec := ts.request(t, "GET", "/chat-history", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Messages []struct {
			Username string `json:"username"`
			Message  string `json:"message"`
		} `json:"messages"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Messages) != 1 || resp.Messages[0].Message != "hello world" {
		t.Fatalf("messages = %+v", resp.Messages)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
		Zone   string `json:"zone"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.Zone == "" {
		t.Fatalf("health = %+v", resp)
	}
}

func TestAdminGate(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := ts.registerAndLogin(t, "alice", "secret123")

	// No token
	if rec := ts.request(t, "POST", "/admin/set-zone", "", map[string]string{"zone": "Space"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", rec.Code)
	}

	// Valid token, not the admin account
	if rec := ts.request(t, "POST", "/admin/set-zone", aliceToken, map[string]string{"zone": "Space"}); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status %d, want 403", rec.Code)
	}

	// The rejected requests changed nothing
	zone, _ := ts.coord.ZoneInfo()
	if zone != "Overworld" {
		t.Fatalf("zone mutated by rejected request: %s", zone)
	}
}

func TestAdminSetZone(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "Admin", "secret123")

	rec := ts.request(t, "POST", "/admin/set-zone", token, map[string]string{"zone": "Space"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set-zone: status %d: %s", rec.Code, rec.Body)
	}

	zone, timer := ts.coord.ZoneInfo()
	if zone != "Space" {
		t.Errorf("zone = %s, want Space", zone)
	}
	if timer != 300 {
		t.Errorf("timer = %d, want 300", timer)
	}

	rec = ts.request(t, "POST", "/admin/set-zone", token, map[string]string{"zone": "Nether"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown zone: status %d, want 400", rec.Code)
	}
}

func TestAdminGivePoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "Admin", "secret123")
	ts.registerAndLogin(t, "bob", "secret123")

	rec := ts.request(t, "POST", "/admin/give-points", token, map[string]interface{}{
		"targetPlayer": "bob", "amount": 250.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("give-points: status %d: %s", rec.Code, rec.Body)
	}

	doc, err := ts.store.LoadDocument(context.Background(), "bob")
	if err != nil {
		t.Fatalf("loading bob's save: %v", err)
	}
	var parsed struct {
		Points string `json:"points"`
	}
	json.Unmarshal(doc, &parsed)
	if parsed.Points != "250" {
		t.Fatalf("points = %q, want 250", parsed.Points)
	}
}

func TestAdminResetPlayer(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "Admin", "secret123")
	ts.registerAndLogin(t, "bob", "secret123")

	ts.request(t, "POST", "/save", "", map[string]interface{}{
		"username": "bob",
		"gameData": map[string]interface{}{"points": "999999"},
	})

	rec := ts.request(t, "POST", "/admin/reset-player", token, map[string]string{"targetPlayer": "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset-player: status %d: %s", rec.Code, rec.Body)
	}

	doc, _ := ts.store.LoadDocument(context.Background(), "bob")
	var parsed struct {
		Points string `json:"points"`
	}
	json.Unmarshal(doc, &parsed)
	if parsed.Points != "0" {
		t.Fatalf("points after reset = %q, want 0", parsed.Points)
	}
}

func TestAdminDeleteAccountRefusesAdmin(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "Admin", "secret123")

	rec := ts.request(t, "POST", "/admin/delete-account", token, map[string]string{"targetUser": "Admin"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "alice", "secret123")

	rec := ts.request(t, "POST", "/change-password", "", map[string]string{
		"username": "alice", "currentPassword": "wrong", "newPassword": "newsecret",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status %d, want 401", rec.Code)
	}

	rec = ts.request(t, "POST", "/change-password", "", map[string]string{
		"username": "alice", "currentPassword": "secret123", "newPassword": "newsecret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: status %d: %s", rec.Code, rec.Body)
	}

	rec = ts.request(t, "POST", "/login", "", map[string]string{
		"username": "alice", "password": "newsecret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: status %d", rec.Code)
	}
}
