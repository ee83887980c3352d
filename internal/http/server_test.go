package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"ateria/internal/billing"
	"ateria/internal/services"
	"ateria/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	svc := services.NewMealService(repo, billing.NewRecomputer(repo, nil), nil)
	t.Cleanup(func() { svc.Close() })

	ts := httptest.NewServer(NewServer(":0", svc).Handler)
	t.Cleanup(ts.Close)
	return ts
}

type testEnvelope struct {
	TS   int64           `json:"ts"`
	Role string          `json:"role"`
	Data json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, method, url string, body any, role string) (int, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if role != "" {
		req.Header.Set("X-Auth-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func TestResponseEnvelope(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, http.MethodGet, ts.URL+"/api/users", nil, "admin")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if env.TS == 0 {
		t.Error("envelope timestamp missing")
	}
	if env.Role != "admin" {
		t.Errorf("role = %q, want admin", env.Role)
	}
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, ts.URL+"/api/users",
		map[string]any{"name": "Virtanen", "archivedBalance": "-25.00"}, "")
	if status != http.StatusOK {
		t.Fatalf("add user status = %d (%s)", status, env.Data)
	}
	var users []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Virtanen" {
		t.Fatalf("users = %+v", users)
	}

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users/"+users[0].ID, nil, "")
	if status != http.StatusOK {
		t.Errorf("get user status = %d", status)
	}

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users/missing", nil, "")
	if status != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", status)
	}

	// Validation failures carry their message at 422.
	status, env = doJSON(t, http.MethodPost, ts.URL+"/api/users",
		map[string]any{"name": "  "}, "")
	if status != http.StatusUnprocessableEntity {
		t.Errorf("blank name status = %d, want 422", status)
	}
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Data, &msg); err != nil || msg.Message == "" {
		t.Errorf("expected a failure message, got %s", env.Data)
	}
}

func TestDayAndPaymentEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, ts.URL+"/api/prices", map[string]any{
		"slot":   "lunch",
		"start":  "2024-01-01",
		"end":    "2024-12-31",
		"normal": "5.00",
		"young":  "2.50",
		"child":  "1.25",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("add price status = %d (%s)", status, env.Data)
	}

	status, env = doJSON(t, http.MethodPut, ts.URL+"/api/users/u1/days/2024/3/15",
		map[string]any{"lunch": map[string]any{"normal": 2}}, "")
	if status != http.StatusOK {
		t.Fatalf("save day status = %d (%s)", status, env.Data)
	}
	var view struct {
		Days []struct {
			Num int `json:"num"`
		} `json:"days"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode month view: %v", err)
	}
	if len(view.Days) != 1 || view.Days[0].Num != 15 {
		t.Fatalf("view = %s", env.Data)
	}

	status, env = doJSON(t, http.MethodGet, ts.URL+"/api/users/u1/payments/2024", nil, "")
	if status != http.StatusOK {
		t.Fatalf("get payments status = %d", status)
	}
	var payments []struct {
		ID     string `json:"id"`
		Amount struct {
			Cents int64 `json:"Cents"`
		} `json:"amount"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Data, &payments); err != nil {
		t.Fatalf("decode payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payments = %s", env.Data)
	}

	// Saving a day out of range reports 422.
	status, _ = doJSON(t, http.MethodPut, ts.URL+"/api/users/u1/days/2024/13/1",
		map[string]any{}, "")
	if status != http.StatusUnprocessableEntity {
		t.Errorf("bad month status = %d, want 422", status)
	}

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/kitchen/2024/3/15", nil, "")
	if status != http.StatusOK {
		t.Errorf("kitchen day status = %d", status)
	}
}
