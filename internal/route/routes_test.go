package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"qrscanner/internal/handler"
	"qrscanner/internal/logger"
	"qrscanner/internal/middleware"
	"qrscanner/internal/service/display"
	"qrscanner/internal/service/scanner"
)

type noStats struct{}

func (noStats) Stats() scanner.Stats { return scanner.Stats{} }

func newTestServer(t *testing.T) (*httptest.Server, *display.Surface) {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "login.html"), []byte("<form>login</form>"), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	StaticDir = dir

	hash, err := handler.HashPassword("escaner")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	surface := display.NewSurface(logger.NewDiscard())
	go surface.Run()
	t.Cleanup(surface.Stop)

	server := httptest.NewServer(SetupRoutes(Services{
		Surface:      surface,
		Stats:        noStats{},
		Sessions:     middleware.NewSessions(),
		PasswordHash: hash,
		StartedAt:    time.Now(),
		Logger:       logger.NewDiscard(),
	}))
	t.Cleanup(server.Close)
	return server, surface
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func login(t *testing.T, server *httptest.Server) *http.Cookie {
	t.Helper()
	resp, err := noRedirect().PostForm(server.URL+"/auth/login", url.Values{"password": {"escaner"}})
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	t.Fatal("No session cookie after login")
	return nil
}

func TestRoutes_RequireSession(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Status without session = %d, expected 401", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/login")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Login page = %d, expected 200", resp.StatusCode)
	}

	cookie := login(t, server)
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/status", nil)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status with session = %d, expected 200", resp.StatusCode)
	}
	var data handler.StatusData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Errorf("Failed to decode status: %v", err)
	}
}

func TestRoutes_ScansDisabledWithoutHistory(t *testing.T) {
	server, _ := newTestServer(t)
	cookie := login(t, server)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/scans", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Scans without history = %d, expected 404", resp.StatusCode)
	}
}

func TestRoutes_ViewerReceivesLabel(t *testing.T) {
	server, surface := newTestServer(t)
	cookie := login(t, server)

	surface.SetLabel("HOLA")
	if _, err := surface.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/view"
	header := http.Header{}
	header.Add("Cookie", cookie.String())
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var msg struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	if msg.Type != "label" || msg.Text != "HOLA" {
		t.Errorf("Unexpected message %+v", msg)
	}
}
