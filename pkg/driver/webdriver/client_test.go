package webdriver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": message},
	})
}

func element(id string) map[string]interface{} {
	return map[string]interface{}{w3cElementKey: id}
}

func decode(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode request body: %v", err)
	}
	return body
}

// newServer starts a fake WebDriver server and a client attached to
// session "s1".
func newServer(t *testing.T, routes func(r *mux.Router)) *Client {
	t.Helper()
	r := mux.NewRouter()
	routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	c := NewClient(server.URL + "/")
	c.Attach("s1")
	return c
}

func TestClient_Connect(t *testing.T) {
	var caps map[string]interface{}
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
			body := decode(t, r)
			caps = body["capabilities"].(map[string]interface{})["alwaysMatch"].(map[string]interface{})
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{
					"sessionId":    "test-session-123",
					"capabilities": map[string]interface{}{"browserName": "chrome"},
				},
			})
		}).Methods(http.MethodPost)
	})
	c.Attach("")

	err := c.Connect(context.Background(), map[string]interface{}{"browserName": "chrome"})
	require.NoError(t, err)
	assert.Equal(t, "test-session-123", c.SessionID())
	assert.Equal(t, "chrome", caps["browserName"])
}

func TestClient_ConnectNoSessionID(t *testing.T) {
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{"value": map[string]interface{}{}})
		})
	})
	err := c.Connect(context.Background(), nil)
	assert.Error(t, err)
}

func TestClient_Disconnect(t *testing.T) {
	var deleted atomic.Bool
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/session/s1", func(w http.ResponseWriter, r *http.Request) {
			deleted.Store(true)
			writeJSON(w, map[string]interface{}{"value": nil})
		}).Methods(http.MethodDelete)
	})

	require.NoError(t, c.Disconnect(context.Background()))
	assert.True(t, deleted.Load())
	assert.Empty(t, c.SessionID())
	// A second call has nothing to delete
	require.NoError(t, c.Disconnect(context.Background()))
}

func TestClient_Sessions(t *testing.T) {
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{"value": []interface{}{
				map[string]interface{}{"id": "a", "capabilities": map[string]interface{}{"browserName": "firefox"}},
				map[string]interface{}{"id": "b", "capabilities": map[string]interface{}{"browserName": "chrome"}},
			}})
		})
	})

	got, err := c.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []SessionInfo{{ID: "a", BrowserName: "firefox"}, {ID: "b", BrowserName: "chrome"}}, got)
}

func TestClient_FindElement(t *testing.T) {
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/session/s1/element", func(w http.ResponseWriter, r *http.Request) {
			body := decode(t, r)
			if body["using"] == "xpath" && body["value"] == "//form" {
				writeJSON(w, map[string]interface{}{"value": element("e1")})
				return
			}
			writeError(w, http.StatusNotFound, "no such element", "Unable to locate element")
		}).Methods(http.MethodPost)
		r.HandleFunc("/session/s1/element/e1/elements", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{"value": []interface{}{
				element("e2"),
				map[string]interface{}{"ELEMENT": "e3"},
			}})
		}).Methods(http.MethodPost)
	})
	ctx := context.Background()

	id, err := c.FindElement(ctx, "", "xpath", "//form")
	require.NoError(t, err)
	assert.Equal(t, "e1", id)

	_, err = c.FindElement(ctx, "", "css selector", "nav")
	assert.True(t, core.IsNotFound(err), "got %v", err)

	ids, err := c.FindElements(ctx, "e1", "tag name", "input")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, ids)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"no such element", core.ErrNoSuchElement},
		{"stale element reference", core.ErrStaleElement},
		{"element not interactable", core.ErrNotInteractable},
		{"element click intercepted", core.ErrClickIntercepted},
		{"invalid selector", core.ErrInvalidSelector},
		{"invalid session id", core.ErrSessionNotFound},
		{"javascript error", core.ErrScriptFailed},
		{"script timeout", core.ErrTimeout},
		{"unknown command", core.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := w3cError(tt.code, "boom")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, "boom", err.Error())
		})
	}

	err := w3cError("unexpected alert open", "alert")
	assert.EqualError(t, err, "unexpected alert open: alert")
}

func TestClient_Screenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/session/s1/screenshot", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]interface{}{"value": base64.StdEncoding.EncodeToString(png)})
		})
	})

	got, err := c.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestClient_InvalidJSON(t *testing.T) {
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/session/s1/title", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>proxy error</html>"))
		})
	})

	_, err := c.SessionString(context.Background(), "title")
	assert.ErrorContains(t, err, "failed to parse response")
}

func TestClient_RateLimit(t *testing.T) {
	var hits atomic.Int32
	r := mux.NewRouter()
	r.HandleFunc("/session/s1/title", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]interface{}{"value": "t"})
	})
	server := httptest.NewServer(r)
	defer server.Close()

	c := NewClient(server.URL, WithRateLimit(20))
	c.Attach("s1")

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.SessionString(context.Background(), "title")
		require.NoError(t, err)
	}
	// burst 1 at 20/s spaces the second and third calls by 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_WaitForServer(t *testing.T) {
	var calls atomic.Int32
	c := newServer(t, func(r *mux.Router) {
		r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			ready := calls.Add(1) >= 3
			writeJSON(w, map[string]interface{}{"value": map[string]interface{}{
				"ready":   ready,
				"message": "starting",
			}})
		})
	})

	require.NoError(t, c.WaitForServer(context.Background(), 10*time.Second))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_WaitForServerUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	err := c.WaitForServer(context.Background(), 300*time.Millisecond)
	assert.True(t, errors.Is(err, core.ErrServerUnreachable), "got %v", err)
}

func TestWireLocator(t *testing.T) {
	tests := []struct {
		loc          by.Locator
		using, value string
	}{
		{by.ID("user"), "xpath", ".//*[@id='user']"},
		{by.Name("q"), "xpath", ".//*[@name='q']"},
		{by.CSSSelector("form > input"), "css selector", "form > input"},
		{by.TagName("td"), "tag name", "td"},
		{by.LinkText("Home"), "link text", "Home"},
	}
	for _, tt := range tests {
		using, value, err := wireLocator(tt.loc)
		require.NoError(t, err)
		if using != tt.using || value != tt.value {
			t.Errorf("wireLocator(%s) = %q %q, want %q %q", tt.loc, using, value, tt.using, tt.value)
		}
	}

	_, _, err := wireLocator(by.Locator{Strategy: "accessibility id", Value: "x"})
	assert.True(t, errors.Is(err, core.ErrInvalidSelector))
}
