// Package webdriver talks to a remote browser through the W3C WebDriver
// protocol and exposes the session as a core.WebDriver.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client handles HTTP communication with a WebDriver server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces requests to rps per second. Zero or less disables
// pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a new WebDriver client.
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute, // page loads and screenshots can be slow
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerURL returns the server the client talks to.
func (c *Client) ServerURL() string { return c.serverURL }

// SessionID returns the current session, or "" when not connected.
func (c *Client) SessionID() string { return c.sessionID }

// Attach reuses an existing session without creating one.
func (c *Client) Attach(sessionID string) { c.sessionID = sessionID }

// WaitForServer polls /status with exponential backoff until the server
// reports ready or maxWait elapses.
func (c *Client) WaitForServer(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.request(ctx, http.MethodGet, "/status", nil)
		if err != nil {
			logger.Debug("webdriver status attempt %d: %v", attempt, err)
			return err
		}
		if ready := resp.Get("value.ready"); ready.Exists() && !ready.Bool() {
			return fmt.Errorf("server not ready: %s", resp.Get("value.message").String())
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return core.ErrServerUnreachable.WithMessagef("webdriver server %s unreachable after %d attempts", c.serverURL, attempt).WithCause(err)
	}
	return nil
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.request(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// W3C servers nest the id in value, legacy ones put it at the top level
	id := resp.Get("value.sessionId").String()
	if id == "" {
		id = resp.Get("sessionId").String()
	}
	if id == "" {
		return fmt.Errorf("no session ID in response")
	}
	c.sessionID = id
	logger.Info("webdriver session %s created on %s", id, c.serverURL)
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.request(ctx, http.MethodDelete, c.sessionPath(), nil)
	c.sessionID = ""
	return err
}

// SessionInfo is one entry of the server's session list.
type SessionInfo struct {
	ID          string
	BrowserName string
}

// Sessions lists the sessions the server knows. Not every server supports
// it; the error then carries the server's unknown command code.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := c.request(ctx, http.MethodGet, "/sessions", nil)
	if err != nil {
		return nil, err
	}
	var out []SessionInfo
	resp.Get("value").ForEach(func(_, v gjson.Result) bool {
		out = append(out, SessionInfo{
			ID:          v.Get("id").String(),
			BrowserName: v.Get("capabilities.browserName").String(),
		})
		return true
	})
	return out, nil
}

// Element Operations

// FindElement finds a single element. from is a parent element id, or ""
// to search the document.
func (c *Client) FindElement(ctx context.Context, from, strategy, value string) (string, error) {
	resp, err := c.request(ctx, http.MethodPost, c.searchPath(from)+"/element", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return "", err
	}
	id := extractElementID(resp.Get("value"))
	if id == "" {
		return "", core.NoSuchElement("no such element: %s=%s", strategy, value)
	}
	return id, nil
}

// FindElements finds multiple elements.
func (c *Client) FindElements(ctx context.Context, from, strategy, value string) ([]string, error) {
	resp, err := c.request(ctx, http.MethodPost, c.searchPath(from)+"/elements", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	resp.Get("value").ForEach(func(_, v gjson.Result) bool {
		if id := extractElementID(v); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.request(ctx, http.MethodPost, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(ctx context.Context, elementID string) error {
	_, err := c.request(ctx, http.MethodPost, c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeys types text into an element.
func (c *Client) SendKeys(ctx context.Context, elementID, text string) error {
	_, err := c.request(ctx, http.MethodPost, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// ElementProperty reads a string-valued element endpoint such as "text" or
// "name".
func (c *Client) ElementProperty(ctx context.Context, elementID, endpoint string) (gjson.Result, error) {
	resp, err := c.request(ctx, http.MethodGet, c.elementPath(elementID)+"/"+endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return resp.Get("value"), nil
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(ctx context.Context, elementID string) (core.Bounds, error) {
	v, err := c.ElementProperty(ctx, elementID, "rect")
	if err != nil {
		return core.Bounds{}, err
	}
	return core.Bounds{
		X:      int(v.Get("x").Float()),
		Y:      int(v.Get("y").Float()),
		Width:  int(v.Get("width").Float()),
		Height: int(v.Get("height").Float()),
	}, nil
}

// ElementScreenshot returns a PNG of one element.
func (c *Client) ElementScreenshot(ctx context.Context, elementID string) ([]byte, error) {
	v, err := c.ElementProperty(ctx, elementID, "screenshot")
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(v.String())
}

// Pointer Operations (W3C Actions)

func (c *Client) performPointerAction(ctx context.Context, actions []map[string]interface{}) error {
	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         "mouse",
			"parameters": map[string]interface{}{"pointerType": "mouse"},
			"actions":    actions,
		},
	}
	_, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/actions", map[string]interface{}{"actions": payload})
	return err
}

// MoveTo moves the pointer to the center of an element.
func (c *Client) MoveTo(ctx context.Context, elementID string) error {
	return c.performPointerAction(ctx, []map[string]interface{}{
		{
			"type":     "pointerMove",
			"duration": 0,
			"x":        0,
			"y":        0,
			"origin":   map[string]interface{}{w3cElementKey: elementID},
		},
	})
}

// MouseClick presses and releases the left button where the pointer is.
func (c *Client) MouseClick(ctx context.Context) error {
	return c.performPointerAction(ctx, []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": 0, "y": 0, "origin": "pointer"},
		{"type": "pointerDown", "button": 0},
		{"type": "pointerUp", "button": 0},
	})
}

// Scripts

// ExecuteScript runs a synchronous script. Element ids in args must already
// be converted with ElementRef.
func (c *Client) ExecuteScript(ctx context.Context, script string, args []interface{}) (gjson.Result, error) {
	if args == nil {
		args = []interface{}{}
	}
	resp, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return resp.Get("value"), nil
}

// ElementRef is the wire form of an element passed to a script.
func ElementRef(elementID string) map[string]interface{} {
	return map[string]interface{}{w3cElementKey: elementID}
}

// Navigation

// OpenURL opens a URL.
func (c *Client) OpenURL(ctx context.Context, url string) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/url", map[string]interface{}{
		"url": url,
	})
	return err
}

// SessionString reads a string-valued session endpoint: "url", "title" or
// "source".
func (c *Client) SessionString(ctx context.Context, endpoint string) (string, error) {
	resp, err := c.request(ctx, http.MethodGet, c.sessionPath()+"/"+endpoint, nil)
	if err != nil {
		return "", err
	}
	return resp.Get("value").String(), nil
}

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	encoded, err := c.SessionString(ctx, "screenshot")
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Window

// SetWindowRect resizes the current window.
func (c *Client) SetWindowRect(ctx context.Context, width, height int) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/window/rect", map[string]interface{}{
		"width":  width,
		"height": height,
	})
	return err
}

// MaximizeWindow maximizes the current window.
func (c *Client) MaximizeWindow(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/window/maximize", map[string]interface{}{})
	return err
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) searchPath(from string) string {
	if from == "" {
		return c.sessionPath()
	}
	return c.elementPath(from)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (gjson.Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return gjson.Result{}, err
		}
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bodyReader)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, core.ErrServerUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(respBody) {
		return gjson.Result{}, fmt.Errorf("failed to parse response from %s %s (status %d)", method, path, resp.StatusCode)
	}

	result := gjson.ParseBytes(respBody)
	if code := result.Get("value.error"); code.Exists() {
		return result, w3cError(code.String(), result.Get("value.message").String())
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return result, nil
}

// w3cError maps a W3C error code to the matching basil sentinel.
func w3cError(code, message string) error {
	var base *core.ExecutionError
	switch code {
	case "no such element":
		base = core.ErrNoSuchElement
	case "stale element reference":
		base = core.ErrStaleElement
	case "element not interactable":
		base = core.ErrNotInteractable
	case "element click intercepted":
		base = core.ErrClickIntercepted
	case "invalid selector":
		base = core.ErrInvalidSelector
	case "invalid session id":
		base = core.ErrSessionNotFound
	case "javascript error":
		base = core.ErrScriptFailed
	case "timeout", "script timeout":
		base = core.ErrTimeout
	case "unknown command", "unknown method", "unsupported operation":
		base = core.ErrUnsupported
	default:
		return fmt.Errorf("%s: %s", code, message)
	}
	if message == "" {
		message = code
	}
	return base.WithMessage(message)
}

func extractElementID(value gjson.Result) string {
	// W3C format
	if id := value.Get(w3cElementKey); id.Exists() {
		return id.String()
	}
	// Legacy format
	return value.Get("ELEMENT").String()
}
