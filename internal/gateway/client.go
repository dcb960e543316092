package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/packyr/tahoma2mqtt/internal/tahoma"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public TaHoma endpoint.
const DefaultBaseURL = "https://tahomalink.com/enduser-mobile-web/externalAPI/json"

// Client talks to a TaHoma-style gateway. It covers exactly what the bridge
// consumes: session login, command execution and execution status polling.
// Sessions are cookie based; Execute and ExecutionStatus log in again once
// on a 401 so an expired session heals transparently.
type Client struct {
	baseURL  string
	username string
	password string

	http *http.Client

	mu sync.Mutex // serializes login
}

func NewClient(baseURL, username, password string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
}

// Login opens a gateway session. Callers use it at startup to fail fast on
// bad credentials; afterwards the client re-logins on its own.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("userId", c.username)
	form.Set("userPassword", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "gateway login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "gateway login")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("gateway login: unexpected status %d", resp.StatusCode)
	}

	logrus.Debugf("gateway: session established for %s", c.username)
	return nil
}

type applyRequest struct {
	Label   string        `json:"label"`
	Actions []applyAction `json:"actions"`
}

type applyAction struct {
	DeviceURL string           `json:"deviceURL"`
	Commands  []tahoma.Command `json:"commands"`
}

type applyResponse struct {
	ExecID string `json:"execId"`
}

// Execute issues a single device command and returns the execution id the
// gateway assigned to it. A command carrying a NaN parameter fails here at
// encoding time and surfaces as a transport error.
func (c *Client) Execute(ctx context.Context, deviceURL string, cmd tahoma.Command) (string, error) {
	body, err := json.Marshal(applyRequest{
		Label:   cmd.Name,
		Actions: []applyAction{{DeviceURL: deviceURL, Commands: []tahoma.Command{cmd}}},
	})
	if err != nil {
		return "", errors.Wrapf(err, "%s: apply request encode", cmd.Name)
	}

	resp, err := c.do(ctx, http.MethodPost, "/exec/apply", body)
	if err != nil {
		return "", errors.Wrapf(err, "%s: gateway apply", cmd.Name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("%s: gateway apply returned status %d", cmd.Name, resp.StatusCode)
	}

	var out applyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrapf(err, "%s: apply response decode", cmd.Name)
	}
	if out.ExecID == "" {
		return "", errors.Errorf("%s: gateway apply returned no execId", cmd.Name)
	}

	return out.ExecID, nil
}

// ExecutionStatus reports the gateway-side status of one execution. A nil
// status with a nil error means the gateway no longer has anything pending
// for the id: 404, 204 and an empty or null body all count as absence.
func (c *Client) ExecutionStatus(ctx context.Context, execID string) (*tahoma.ExecutionStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/exec/current/"+url.PathEscape(execID), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: execution status", execID)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, errors.Errorf("%s: gateway status returned %d", execID, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: execution status read", execID)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var status tahoma.ExecutionStatus
	if err := json.Unmarshal(trimmed, &status); err != nil {
		return nil, errors.Wrapf(err, "%s: execution status decode", execID)
	}

	return &status, nil
}

// do performs one authenticated request, logging in again once when the
// session expired.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	resp.Body.Close()
	logrus.Debug("gateway: session expired, logging in again")

	c.mu.Lock()
	err = c.login(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return c.request(ctx, method, path, body)
}

func (c *Client) request(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "gateway request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}
