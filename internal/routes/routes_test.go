package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ratethiscrow/crowapi/internal/app"
	"github.com/ratethiscrow/crowapi/internal/config"
	"github.com/ratethiscrow/crowapi/internal/model"
	"github.com/ratethiscrow/crowapi/internal/testutil"
)

type captureMailer struct {
	mu   sync.Mutex
	keys []string
}

func (m *captureMailer) SendVerificationEmail(ctx context.Context, email, key, subType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *captureMailer) SendSubscribedEmail(ctx context.Context, email, userID, subType string) error {
	return nil
}

func (m *captureMailer) lastKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.keys) == 0 {
		return ""
	}
	return m.keys[len(m.keys)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:               "Rate This Crow",
		AppEnv:                "development",
		AppURL:                "http://localhost:3000",
		UploadPass:            "caw-caw",
		UploadTokenSecret:     "caw-caw",
		UploadTokenExpiry:     time.Hour,
		RatingMin:             1,
		RatingMax:             5,
		LeaderboardFraction:   0.25,
		VerificationKeyExpiry: 24 * time.Hour,
		CORSAllowedOrigins:    []string{"https://ratethiscrow.site"},
		HandlerTimeout:        5 * time.Second,
		PasswordRateLimit:     5,
		SubscribeRateLimit:    10,
	}
}

func setupServer(t *testing.T, cfg *config.Config) (http.Handler, *captureMailer) {
	t.Helper()
	mailer := &captureMailer{}
	a := app.Wire(cfg, testutil.SetupTestDB(t), mailer, nil)
	return SetupRoutes(a), mailer
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		req = httptest.NewRequest(method, path, strings.NewReader(string(payload)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, body string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rec.Code, rec.Body.String())
	}
	if body != "" && strings.TrimSpace(rec.Body.String()) != body {
		t.Fatalf("expected body %q, got %q", body, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t, testConfig())
	expect(t, doJSON(t, h, http.MethodGet, "/health", nil), http.StatusOK, "OK")
}

func TestUploadAndRate(t *testing.T) {
	h, _ := setupServer(t, testConfig())

	expect(t, doJSON(t, h, http.MethodGet, "/random", nil), http.StatusNotFound, "No data found")
	expect(t, doJSON(t, h, http.MethodGet, "/all-crows", nil), http.StatusNotFound, "No data found")
	expect(t, doJSON(t, h, http.MethodGet, "/leaderboard", nil), http.StatusOK, "[]")

	expect(t, doJSON(t, h, http.MethodPost, "/upload", map[string]any{}), http.StatusBadRequest, "Missing img_url")

	rec := doJSON(t, h, http.MethodPost, "/upload", map[string]any{"img_url": "http://x/1.png"})
	expect(t, rec, http.StatusOK, "")
	var uploaded map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	want := map[string]string{"crow_id": "crow_1", "img_url": "http://x/1.png", "credit_name": "Unknown", "credit_link": "#"}
	for k, v := range want {
		if uploaded[k] != v {
			t.Errorf("upload %s: expected %q, got %q", k, v, uploaded[k])
		}
	}

	expect(t, doJSON(t, h, http.MethodPost, "/rate", map[string]any{"crow_id": "crow_1", "rating": 4}), http.StatusOK, "Rating updated successfully")
	expect(t, doForm(t, h, "/rate", url.Values{"crow_id": {"crow_1"}, "rating": {"2"}}), http.StatusOK, "Rating updated successfully")

	rec = doJSON(t, h, http.MethodGet, "/crow/crow_1", nil)
	expect(t, rec, http.StatusOK, "")
	var details model.CrowDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &details); err != nil {
		t.Fatalf("decode crow: %v", err)
	}
	if details.AvgRating != 3 || details.RatingCount != 2 || details.Name != "Unnamed Crow" {
		t.Errorf("unexpected crow %+v", details)
	}

	rec = doJSON(t, h, http.MethodGet, "/random", nil)
	expect(t, rec, http.StatusOK, "")
	if !strings.Contains(rec.Body.String(), `"crow_id":"crow_1"`) {
		t.Errorf("unexpected random crow %s", rec.Body.String())
	}
}

func TestRateErrors(t *testing.T) {
	h, _ := setupServer(t, testConfig())
	expect(t, doJSON(t, h, http.MethodPost, "/upload", map[string]any{"img_url": "http://x/1.png"}), http.StatusOK, "")

	tests := []struct {
		name   string
		body   map[string]any
		status int
		msg    string
	}{
		{"missing crow", map[string]any{"rating": 3}, http.StatusBadRequest, "Missing crow_id or rating"},
		{"missing rating", map[string]any{"crow_id": "crow_1"}, http.StatusBadRequest, "Missing crow_id or rating"},
		{"zero rating", map[string]any{"crow_id": "crow_1", "rating": 0}, http.StatusBadRequest, "Missing crow_id or rating"},
		{"non numeric", map[string]any{"crow_id": "crow_1", "rating": "lots"}, http.StatusBadRequest, "Missing crow_id or rating"},
		{"out of range", map[string]any{"crow_id": "crow_1", "rating": 6}, http.StatusBadRequest, "Rating must be between 1 and 5"},
		{"unknown crow", map[string]any{"crow_id": "crow_99", "rating": 3}, http.StatusNotFound, "Crow not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect(t, doJSON(t, h, http.MethodPost, "/rate", tt.body), tt.status, tt.msg)
		})
	}

	expect(t, doJSON(t, h, http.MethodGet, "/crow/crow_99", nil), http.StatusNotFound, "Crow not found")
}

func TestLeaderboardAndAll(t *testing.T) {
	h, _ := setupServer(t, testConfig())

	for i, score := range []int{2, 5, 3, 4, 1} {
		expect(t, doJSON(t, h, http.MethodPost, "/upload", map[string]any{"img_url": "http://x/img.png"}), http.StatusOK, "")
		crowID := model.CrowID(int64(i + 1))
		expect(t, doJSON(t, h, http.MethodPost, "/rate", map[string]any{"crow_id": crowID, "rating": score}), http.StatusOK, "")
	}

	var board, all []model.Crow
	rec := doJSON(t, h, http.MethodGet, "/leaderboard", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	rec = doJSON(t, h, http.MethodGet, "/all-crows", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode all: %v", err)
	}

	// ceil(5 * 0.25) = 2
	if len(board) != 2 || len(all) != 5 {
		t.Fatalf("expected 2 leaderboard and 5 total, got %d and %d", len(board), len(all))
	}
	wantOrder := []string{"crow_2", "crow_4", "crow_3", "crow_1", "crow_5"}
	for i, id := range wantOrder {
		if all[i].CrowID != id {
			t.Errorf("all-crows position %d: expected %s, got %s", i, id, all[i].CrowID)
		}
	}
	if board[0].CrowID != "crow_2" || board[1].CrowID != "crow_4" {
		t.Errorf("unexpected leaderboard %s, %s", board[0].CrowID, board[1].CrowID)
	}
}

func TestNames(t *testing.T) {
	h, _ := setupServer(t, testConfig())
	expect(t, doJSON(t, h, http.MethodPost, "/upload", map[string]any{"img_url": "http://x/1.png"}), http.StatusOK, "")

	expect(t, doJSON(t, h, http.MethodPost, "/new-name", map[string]any{"crow_id": "crow_1"}), http.StatusBadRequest, "Missing crow_id or name")
	expect(t, doJSON(t, h, http.MethodPost, "/new-name", map[string]any{"crow_id": "crow_1", "name": "x"}), http.StatusBadRequest, "Invalid name")
	expect(t, doJSON(t, h, http.MethodPost, "/new-name", map[string]any{"crow_id": "crow_9", "name": "Edgar"}), http.StatusNotFound, "Crow not found")
	expect(t, doJSON(t, h, http.MethodPost, "/new-name", map[string]any{"crow_id": "crow_1", "name": "Edgar"}), http.StatusCreated, "Name added successfully")
	expect(t, doJSON(t, h, http.MethodPost, "/new-name", map[string]any{"crow_id": "crow_1", "name": "Poe"}), http.StatusCreated, "Name added successfully")

	expect(t, doJSON(t, h, http.MethodPost, "/names", map[string]any{}), http.StatusBadRequest, "Missing crow_id")

	var names []model.Name
	rec := doJSON(t, h, http.MethodPost, "/names", map[string]any{"crow_id": "crow_1"})
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}

	var poe model.Name
	for _, n := range names {
		if n.Name == "Poe" {
			poe = n
		}
	}

	expect(t, doJSON(t, h, http.MethodPost, "/name-vote", map[string]any{"crow_id": "crow_1", "name_id": poe.NameID}), http.StatusBadRequest, "Missing crow_id, name_id, or vote_type")
	expect(t, doJSON(t, h, http.MethodPost, "/name-vote", map[string]any{"crow_id": "crow_1", "name_id": poe.NameID, "vote_type": "sideways"}), http.StatusBadRequest, "Invalid vote_type: use upvote or downvote")
	expect(t, doJSON(t, h, http.MethodPost, "/name-vote", map[string]any{"crow_id": "crow_1", "name_id": "name_nope", "vote_type": "upvote"}), http.StatusNotFound, "Name not found for this crow")
	expect(t, doJSON(t, h, http.MethodPost, "/name-vote", map[string]any{"crow_id": "crow_1", "name_id": poe.NameID, "vote_type": "upvote"}), http.StatusOK, "Vote added successfully")

	rec = doJSON(t, h, http.MethodPost, "/names", map[string]any{"crow_id": "crow_1"})
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode names: %v", err)
	}
	if names[0].Name != "Poe" || names[0].Upvotes != 1 {
		t.Errorf("expected Poe first with one upvote, got %+v", names[0])
	}

	expect(t, doJSON(t, h, http.MethodPost, "/names", map[string]any{"crow_id": "crow_7"}), http.StatusOK, "[]")
}

func TestValidateName(t *testing.T) {
	h, _ := setupServer(t, testConfig())

	expect(t, doJSON(t, h, http.MethodPost, "/validate-name", map[string]any{}), http.StatusBadRequest, "Missing name")
	expect(t, doJSON(t, h, http.MethodPost, "/validate-name", map[string]any{"name": "Edgar"}), http.StatusOK, `{"valid":true}`)
	expect(t, doJSON(t, h, http.MethodPost, "/validate-name", map[string]any{"name": "shit"}), http.StatusOK, `{"valid":false}`)
}

func TestCrowmailFlow(t *testing.T) {
	h, mailer := setupServer(t, testConfig())

	subscribe := map[string]any{"email": "a@b.com", "type": "weekly"}

	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/subscribe", map[string]any{"email": "a@b.com"}), http.StatusBadRequest, "Missing email or type")
	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/subscribe", map[string]any{"email": "nope", "type": "weekly"}), http.StatusBadRequest, "Invalid email")
	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/subscribe", map[string]any{"email": "a@b.com", "type": "weekly [win](https://evil.example)"}), http.StatusBadRequest, "Invalid type")
	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/subscribe", subscribe), http.StatusOK, "Verification email sent")
	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/subscribe", subscribe), http.StatusBadRequest, "already registered")

	key := mailer.lastKey()
	expect(t, doJSON(t, h, http.MethodGet, "/crowmail/verify", nil), http.StatusBadRequest, "Missing key")
	expect(t, doJSON(t, h, http.MethodGet, "/crowmail/verify?key=bogus", nil), http.StatusBadRequest, "Invalid or expired key")
	expect(t, doJSON(t, h, http.MethodGet, "/crowmail/verify?key="+url.QueryEscape(key), nil), http.StatusOK, "Subscription confirmed for a@b.com")
	expect(t, doJSON(t, h, http.MethodGet, "/crowmail/verify?key="+url.QueryEscape(key), nil), http.StatusBadRequest, "Invalid or expired key")

	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/subscribe", subscribe), http.StatusBadRequest, "already subscribed")

	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/unsubscribe", map[string]any{}), http.StatusBadRequest, "Missing user_id")
	expect(t, doJSON(t, h, http.MethodPost, "/crowmail/unsubscribe", map[string]any{"user_id": "nobody"}), http.StatusNotFound, "Subscriber not found")
}

func TestSubscribeRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.SubscribeRateLimit = 2
	h, _ := setupServer(t, cfg)

	var last int
	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/crowmail/subscribe", map[string]any{"email": "a@b.com", "type": "weekly"})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 on third attempt, got %d", last)
	}
}

func TestValidatePasswordAndUploadGate(t *testing.T) {
	cfg := testConfig()
	cfg.UploadRequireToken = true
	h, _ := setupServer(t, cfg)

	expect(t, doJSON(t, h, http.MethodPost, "/upload", map[string]any{"img_url": "http://x/1.png"}), http.StatusUnauthorized, "")
	expect(t, doJSON(t, h, http.MethodPost, "/validate-password", map[string]any{"password": "wrong"}), http.StatusUnauthorized, "Unauthorized: Incorrect password")

	rec := doJSON(t, h, http.MethodPost, "/validate-password", map[string]any{"password": "caw-caw"})
	expect(t, rec, http.StatusOK, "Password validated successfully")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected upload token cookie, got %d cookies", len(cookies))
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"img_url":"http://x/1.png"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	expect(t, rec, http.StatusOK, "")
}

func TestCORSOnRoutes(t *testing.T) {
	h, _ := setupServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/rate", nil)
	req.Header.Set("Origin", "https://ratethiscrow.site")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	expect(t, rec, http.StatusNoContent, "")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	expect(t, rec, http.StatusForbidden, "")
}

func TestUploadImageDisabled(t *testing.T) {
	h, _ := setupServer(t, testConfig())

	body := "--b\r\nContent-Disposition: form-data; name=\"image\"; filename=\"crow.png\"\r\nContent-Type: image/png\r\n\r\n\x89PNG\r\n\x1a\n\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	expect(t, rec, http.StatusBadRequest, "Image uploads are not enabled")
}
