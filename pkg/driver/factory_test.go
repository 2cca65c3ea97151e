package driver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
)

func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// fakeGrid records the commands a factory sends.
type fakeGrid struct {
	mu       sync.Mutex
	created  int
	deleted  []string
	resized  []map[string]interface{}
	maximize int
	caps     map[string]interface{}
	live     map[string]bool
}

func (g *fakeGrid) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{"ready": true}})
	})
	r.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		var out []interface{}
		for id := range g.live {
			out = append(out, map[string]interface{}{"id": id})
		}
		writeJSON(w, map[string]interface{}{"value": out})
	})
	r.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		g.mu.Lock()
		g.created++
		id := "s" + string(rune('0'+g.created))
		g.live[id] = true
		g.caps = body["capabilities"].(map[string]interface{})["alwaysMatch"].(map[string]interface{})
		g.mu.Unlock()
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{"sessionId": id}})
	}).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		id := mux.Vars(r)["id"]
		g.deleted = append(g.deleted, id)
		delete(g.live, id)
		g.mu.Unlock()
		writeJSON(w, map[string]interface{}{"value": nil})
	}).Methods(http.MethodDelete)
	r.HandleFunc("/session/{id}/window/rect", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		g.mu.Lock()
		g.resized = append(g.resized, body)
		g.mu.Unlock()
		writeJSON(w, map[string]interface{}{"value": body})
	}).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}/window/maximize", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.maximize++
		g.mu.Unlock()
		writeJSON(w, map[string]interface{}{"value": nil})
	}).Methods(http.MethodPost)
	return r
}

func newGrid(t *testing.T) (*fakeGrid, string) {
	t.Helper()
	g := &fakeGrid{live: make(map[string]bool)}
	server := httptest.NewServer(g.handler())
	t.Cleanup(server.Close)
	return g, server.URL
}

func remoteConfig(url string, typ config.DriverType) *config.Config {
	cfg := config.Defaults()
	cfg.WebDriver.Type = typ
	cfg.WebDriver.RemoteURL = url
	cfg.WebDriver.WaitTimeout = 2 * time.Second
	cfg.WebDriver.SessionFile = "/sessions/session.json"
	return cfg
}

func TestCapabilities(t *testing.T) {
	got := Capabilities(config.BrowserConfig{Type: config.BrowserEdge})
	if diff := cmp.Diff(map[string]interface{}{"browserName": "MicrosoftEdge"}, got); diff != "" {
		t.Errorf("Capabilities() mismatch (-want +got):\n%s", diff)
	}

	got = Capabilities(config.BrowserConfig{Type: config.BrowserFirefox, Headless: true})
	want := map[string]interface{}{
		"browserName":        "firefox",
		"moz:firefoxOptions": map[string]interface{}{"args": []string{"-headless"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capabilities() mismatch (-want +got):\n%s", diff)
	}
}

func TestFactory_Remote(t *testing.T) {
	g, url := newGrid(t)
	cfg := remoteConfig(url, config.DriverRemote)
	cfg.Browser.Dimension = []int{1280, 720}
	f := NewFactory(cfg, afero.NewMemMapFs())

	d, err := f.New(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", d.SessionID())
	assert.Equal(t, "chrome", g.caps["browserName"])
	require.Len(t, g.resized, 1)
	assert.Equal(t, 1280.0, g.resized[0]["width"])

	require.NoError(t, f.Release(d))
	assert.Equal(t, []string{"s1"}, g.deleted)
}

func TestFactory_Maximized(t *testing.T) {
	g, url := newGrid(t)
	cfg := remoteConfig(url, config.DriverRemote)
	cfg.Browser.Maximized = true
	f := NewFactory(cfg, afero.NewMemMapFs())

	d, err := f.New(context.Background())
	require.NoError(t, err)
	defer f.Release(d)
	assert.Equal(t, 1, g.maximize)
	assert.Empty(t, g.resized)
}

func TestFactory_ReusableRemote(t *testing.T) {
	g, url := newGrid(t)
	fs := afero.NewMemMapFs()
	cfg := remoteConfig(url, config.DriverReusableRemote)

	first := NewFactory(cfg, fs)
	d, err := first.New(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Release(d))
	assert.Empty(t, g.deleted, "reusable sessions are left running")

	records, err := first.Store().List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].ID)
	assert.Equal(t, first.ClientID(), records[0].ClientID)

	second := NewFactory(cfg, fs)
	d, err = second.New(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", d.SessionID())
	assert.Equal(t, 1, g.created)
}

func TestFactory_StandardRejectsFirefox(t *testing.T) {
	cfg := config.Defaults()
	cfg.WebDriver.Type = config.DriverStandard
	cfg.Browser.Type = config.BrowserFirefox

	_, err := NewFactory(cfg, afero.NewMemMapFs()).New(context.Background())
	assert.True(t, errors.Is(err, core.ErrUnsupported), "got %v", err)
}

func TestFactory_ServerDown(t *testing.T) {
	cfg := remoteConfig("http://127.0.0.1:1", config.DriverRemote)
	cfg.WebDriver.WaitTimeout = 200 * time.Millisecond

	_, err := NewFactory(cfg, afero.NewMemMapFs()).New(context.Background())
	assert.True(t, errors.Is(err, core.ErrServerUnreachable), "got %v", err)
}
