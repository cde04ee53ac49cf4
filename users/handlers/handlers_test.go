package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"userAuthService/database"
	"userAuthService/testutil"
	"userAuthService/users/password"
	"userAuthService/users/sessions"
	"userAuthService/users/state"
)

func newTestServer(t *testing.T, name string) (*httptest.Server, *database.Database) {
	t.Helper()
	db := testutil.OpenTestDB(t, name)
	log := logrus.New()
	log.SetOutput(io.Discard)
	manager := sessions.NewManager(db, []byte("test-secret"), time.Hour)
	ts := httptest.NewServer(NewServer(db, manager, log).Routes())
	t.Cleanup(ts.Close)
	return ts, db
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func seedUser(t *testing.T, db *database.Database, username, plaintext string, role state.Role) *state.User {
	t.Helper()
	digest, err := password.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := state.CreateUser(db.GetDB(), username, digest, role)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, client *http.Client, baseURL, username, plaintext string) {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, baseURL+"/login", map[string]string{
		"username": username,
		"password": plaintext,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login as %s: status %d", username, resp.StatusCode)
	}
}

func userCount(t *testing.T, db *database.Database) int {
	t.Helper()
	var count int
	if err := db.GetDB().Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		t.Fatalf("count users: %v", err)
	}
	return count
}

func TestIndexBanner(t *testing.T) {
	ts, _ := newTestServer(t, "handlersindex")

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Hello World" {
		t.Fatalf("unexpected banner %q", body)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	ts, db := newTestServer(t, "handlerslogin")
	seedUser(t, db, "alice", "secret", state.RoleUser)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/login", map[string]string{
		"username": "alice",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing password: status %d", resp.StatusCode)
	}

	login(t, client, ts.URL, "alice", "secret")

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/logout", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("logout when anonymous: status %d", resp.StatusCode)
	}
}

func TestLogoutKillsReplayedCookie(t *testing.T) {
	ts, db := newTestServer(t, "handlersreplay")
	seedUser(t, db, "alice", "secret", state.RoleUser)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/login", map[string]string{
		"username": "alice", "password": "secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	var saved *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			saved = c
		}
	}
	if saved == nil {
		t.Fatalf("login did not set a session cookie")
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	// Replay the pre-logout cookie; the session row is gone.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/user/1", nil)
	req.AddCookie(saved)
	replay, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("replay request: %v", err)
	}
	defer replay.Body.Close()
	if replay.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed cookie: status %d", replay.StatusCode)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts, db := newTestServer(t, "handlersanon")
	seedUser(t, db, "alice", "secret", state.RoleUser)
	before := userCount(t, db)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/logout", nil},
		{http.MethodPost, "/user", map[string]string{"username": "bob", "password": "pw"}},
		{http.MethodGet, "/user/1", nil},
		{http.MethodPut, "/user/1", map[string]string{"password": "pw"}},
		{http.MethodDelete, "/user/1", nil},
	}
	for _, rq := range requests {
		resp := doJSON(t, http.DefaultClient, rq.method, ts.URL+rq.path, rq.body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rq.method, rq.path, resp.StatusCode)
		}
	}

	if after := userCount(t, db); after != before {
		t.Fatalf("anonymous requests mutated the store: %d -> %d", before, after)
	}
}

func TestCreateUser(t *testing.T) {
	ts, db := newTestServer(t, "handlerscreate")
	seedUser(t, db, "alice", "secret", state.RoleUser)
	client := newClient(t)
	login(t, client, ts.URL, "alice", "secret")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/user", map[string]string{
		"username": "bob", "password": "hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create bob: status %d", resp.StatusCode)
	}

	// The freshly registered user can log in.
	login(t, newClient(t), ts.URL, "bob", "hunter2")

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/user", map[string]string{
		"username": "bob", "password": "other",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate bob: status %d", resp.StatusCode)
	}
	var count int
	if err := db.GetDB().Get(&count, "SELECT COUNT(*) FROM users WHERE username = 'bob'"); err != nil || count != 1 {
		t.Fatalf("expected exactly one bob row, got %d (%v)", count, err)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/user", map[string]string{
		"username": "carol",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing password: status %d", resp.StatusCode)
	}
}

func TestCreateUserIgnoresRoleInput(t *testing.T) {
	ts, db := newTestServer(t, "handlersrole")
	seedUser(t, db, "alice", "secret", state.RoleUser)
	client := newClient(t)
	login(t, client, ts.URL, "alice", "secret")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/user", map[string]string{
		"username": "mallory", "password": "pw", "role": "admin",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	created, err := state.GetUserByUsername(db.GetDB(), "mallory")
	if err != nil {
		t.Fatalf("get created user: %v", err)
	}
	if created.Role != state.RoleUser {
		t.Fatalf("role escalated through create: %q", created.Role)
	}
}

func TestGetUser(t *testing.T) {
	ts, db := newTestServer(t, "handlersget")
	alice := seedUser(t, db, "alice", "secret", state.RoleUser)
	client := newClient(t)
	login(t, client, ts.URL, "alice", "secret")

	resp := doJSON(t, client, http.MethodGet, ts.URL+"/user/"+itoa(alice.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get alice: status %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["username"] != "alice" || int(body["id"].(float64)) != alice.ID {
		t.Fatalf("unexpected body %v", body)
	}
	for _, leaked := range []string{"password", "password_hash", "role"} {
		if _, ok := body[leaked]; ok {
			t.Fatalf("response leaks %q: %v", leaked, body)
		}
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/user/99999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get absent: status %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/user/abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("get malformed id: status %d", resp.StatusCode)
	}
}

func TestUpdatePassword(t *testing.T) {
	ts, db := newTestServer(t, "handlersupdate")
	alice := seedUser(t, db, "alice", "secret", state.RoleUser)
	bob := seedUser(t, db, "bob", "hunter2", state.RoleUser)
	seedUser(t, db, "root", "adminpw", state.RoleAdmin)

	client := newClient(t)
	login(t, client, ts.URL, "alice", "secret")

	// Self-update succeeds and rotates the credential.
	resp := doJSON(t, client, http.MethodPut, ts.URL+"/user/"+itoa(alice.ID), map[string]string{
		"password": "rotated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self update: status %d", resp.StatusCode)
	}
	resp = doJSON(t, newClient(t), http.MethodPost, ts.URL+"/login", map[string]string{
		"username": "alice", "password": "secret",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: status %d", resp.StatusCode)
	}
	login(t, newClient(t), ts.URL, "alice", "rotated")

	// Non-admin touching another account is forbidden and changes nothing.
	resp = doJSON(t, client, http.MethodPut, ts.URL+"/user/"+itoa(bob.ID), map[string]string{
		"password": "stolen",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross update: status %d", resp.StatusCode)
	}
	unchanged, _ := state.GetUserByID(db.GetDB(), bob.ID)
	if !password.Verify("hunter2", unchanged.PasswordHash) {
		t.Fatalf("target password changed by forbidden update")
	}

	// Permission precedes existence: a non-admin gets 403 even for a
	// nonexistent target.
	resp = doJSON(t, client, http.MethodPut, ts.URL+"/user/99999", map[string]string{
		"password": "whatever",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("nonexistent target as non-admin: status %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPut, ts.URL+"/user/"+itoa(alice.ID), map[string]string{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing password: status %d", resp.StatusCode)
	}

	// Admin may update anyone, and sees 404 for a missing target.
	admin := newClient(t)
	login(t, admin, ts.URL, "root", "adminpw")
	resp = doJSON(t, admin, http.MethodPut, ts.URL+"/user/"+itoa(bob.ID), map[string]string{
		"password": "reset-by-admin",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin update: status %d", resp.StatusCode)
	}
	login(t, newClient(t), ts.URL, "bob", "reset-by-admin")

	resp = doJSON(t, admin, http.MethodPut, ts.URL+"/user/99999", map[string]string{
		"password": "whatever",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("nonexistent target as admin: status %d", resp.StatusCode)
	}
}

func TestDeleteUser(t *testing.T) {
	ts, db := newTestServer(t, "handlersdelete")
	seedUser(t, db, "alice", "secret", state.RoleUser)
	bob := seedUser(t, db, "bob", "hunter2", state.RoleUser)
	root := seedUser(t, db, "root", "adminpw", state.RoleAdmin)

	user := newClient(t)
	login(t, user, ts.URL, "alice", "secret")
	resp := doJSON(t, user, http.MethodDelete, ts.URL+"/user/"+itoa(bob.ID), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("delete as non-admin: status %d", resp.StatusCode)
	}

	admin := newClient(t)
	login(t, admin, ts.URL, "root", "adminpw")

	// Admins never delete the account they are logged in as.
	resp = doJSON(t, admin, http.MethodDelete, ts.URL+"/user/"+itoa(root.ID), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin self-delete: status %d", resp.StatusCode)
	}
	if _, err := state.GetUserByID(db.GetDB(), root.ID); err != nil {
		t.Fatalf("admin account should survive self-delete attempt: %v", err)
	}

	resp = doJSON(t, admin, http.MethodDelete, ts.URL+"/user/99999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete nonexistent: status %d", resp.StatusCode)
	}

	resp = doJSON(t, admin, http.MethodDelete, ts.URL+"/user/"+itoa(bob.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete: status %d", resp.StatusCode)
	}
	resp = doJSON(t, admin, http.MethodGet, ts.URL+"/user/"+itoa(bob.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted user still readable: status %d", resp.StatusCode)
	}

	// Bob's surviving session died with the account.
	bobClient := newClient(t)
	resp = doJSON(t, bobClient, http.MethodPost, ts.URL+"/login", map[string]string{
		"username": "bob", "password": "hunter2",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted account can still log in: status %d", resp.StatusCode)
	}
}

func itoa(id int) string {
	return strconv.Itoa(id)
}
