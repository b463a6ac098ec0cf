package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/session"
)

// ErrNotRunning is returned when no instance answers on the address.
var ErrNotRunning = errors.New("nudge is not running")

// Client talks to a running instance.
type Client struct {
	addr  string
	token string
	http  *http.Client
}

// NewClient creates a Client for the server at addr (host:port).
func NewClient(addr, token string) *Client {
	return &Client{
		addr:  addr,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// StatusError is a non-2xx answer.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Msg)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.addr+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && !urlErr.Timeout() && ctx.Err() == nil {
			return fmt.Errorf("%w (%s)", ErrNotRunning, c.addr)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &StatusError{Code: resp.StatusCode, Msg: eb.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health checks that an instance is listening.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Config(ctx context.Context) (config.AppConfig, error) {
	var cfg config.AppConfig
	err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg)
	return cfg, err
}

func (c *Client) SetConfig(ctx context.Context, p config.Partial) (config.AppConfig, error) {
	var cfg config.AppConfig
	err := c.do(ctx, http.MethodPatch, "/api/config", p, &cfg)
	return cfg, err
}

func (c *Client) State(ctx context.Context) (session.State, error) {
	var st session.State
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &st)
	return st, err
}

func (c *Client) Start(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "/api/start")
}

func (c *Client) Stop(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "/api/stop")
}

func (c *Client) Toggle(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "/api/toggle")
}

func (c *Client) command(ctx context.Context, path string) (CommandResult, error) {
	var res CommandResult
	err := c.do(ctx, http.MethodPost, path, nil, &res)
	return res, err
}

func (c *Client) Permission(ctx context.Context) (PermissionStatus, error) {
	var ps PermissionStatus
	err := c.do(ctx, http.MethodGet, "/api/permission", nil, &ps)
	return ps, err
}

func (c *Client) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	var ps PermissionStatus
	err := c.do(ctx, http.MethodPost, "/api/permission/request", nil, &ps)
	return ps, err
}

func (c *Client) OpenPermissionSettings(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/permission/settings", nil, nil)
}

func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var v VersionInfo
	err := c.do(ctx, http.MethodGet, "/api/version", nil, &v)
	return v, err
}

func (c *Client) Quit(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/quit", nil, nil)
}

// Watch connects to the push channel and calls fn for every message until
// ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(Message)) error {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("%w (%s): %v", ErrNotRunning, c.addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read push: %w", err)
		}
		fn(m)
	}
}
