// Package zimagegen is a client for the ComfyUI HTTP API, built around the
// submit-then-poll flow: queue a prompt document, poll the history endpoint
// until an output image appears, then download it.
package zimagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultHost is where a locally-run ComfyUI listens.
const DefaultHost = "127.0.0.1:8188"

type clientOptions struct {
	Log         *slog.Logger
	WSDialer    *websocket.Dialer
	HTTPClient  *http.Client
	OnQueueSize func(queue int)
}

type ClientOption interface {
	applyToClient(c *clientOptions)
}

type clientOptionFunc func(c *clientOptions)

func (f clientOptionFunc) applyToClient(c *clientOptions) {
	f(c)
}

func WithLog(log *slog.Logger) ClientOption {
	return clientOptionFunc(func(c *clientOptions) {
		c.Log = log
	})
}

func WithHTTPClient(cli *http.Client) ClientOption {
	return clientOptionFunc(func(c *clientOptions) {
		c.HTTPClient = cli
	})
}

func WithWSDialer(dialer *websocket.Dialer) ClientOption {
	return clientOptionFunc(func(c *clientOptions) {
		c.WSDialer = dialer
	})
}

// WithQueueEvents subscribes to the server's websocket event stream and
// reports queue size changes. Without this option the client is plain HTTP;
// job completion is detected by polling either way.
func WithQueueEvents(fnc func(queue int)) ClientOption {
	return clientOptionFunc(func(c *clientOptions) {
		c.OnQueueSize = fnc
	})
}

func NewClient(ctx context.Context, host string, opts ...ClientOption) (*Client, error) {
	var opt clientOptions
	for _, o := range opts {
		o.applyToClient(&opt)
	}
	if host == "" {
		host = DefaultHost
	}
	if opt.Log == nil {
		opt.Log = slog.Default()
	}
	if opt.WSDialer == nil {
		opt.WSDialer = websocket.DefaultDialer
	}
	if opt.HTTPClient == nil {
		opt.HTTPClient = http.DefaultClient
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	sid := id.String()
	opt.Log = opt.Log.With("clientId", sid)
	c := &Client{
		id:          sid,
		host:        host,
		log:         opt.Log,
		hcli:        opt.HTTPClient,
		onQueueSize: opt.OnQueueSize,
	}
	if opt.OnQueueSize != nil {
		wsurl := fmt.Sprintf("ws://%s/ws?clientId=%s", host, sid)
		conn, _, err := opt.WSDialer.DialContext(ctx, wsurl, nil)
		if err != nil {
			return nil, &UnreachableError{Host: host, Err: err}
		}
		c.conn = conn
		go c.readEvents()
	}
	return c, nil
}

type Client struct {
	id   string
	host string
	log  *slog.Logger
	hcli *http.Client

	onQueueSize func(queue int)

	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Ping probes server liveness via the system stats endpoint.
func (c *Client) Ping(ctx context.Context) error {
	rc, err := c.get(ctx, "/system_stats")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, rc)
	return rc.Close()
}

func (c *Client) readEvents() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		typ, r, err := conn.NextReader()
		if errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			c.log.Error("websocket error", "err", err)
			return
		}
		if typ != websocket.TextMessage {
			// binary preview frames are not used by the polling flow
			_, _ = io.Copy(io.Discard, r)
			continue
		}
		c.procTextEvent(r)
	}
}

func (c *Client) procTextEvent(r io.Reader) {
	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		c.log.Error("cannot decode websocket event", "err", err)
		return
	}
	if ev.Type != "status" {
		c.log.Debug("websocket event", "type", ev.Type)
		return
	}
	var st struct {
		Status struct {
			Exec struct {
				Queue *int `json:"queue_remaining"`
			} `json:"exec_info"`
		} `json:"status"`
	}
	if err := json.Unmarshal(ev.Data, &st); err != nil {
		c.log.Error("cannot decode status event", "err", err)
		return
	}
	if q := st.Status.Exec.Queue; q != nil && c.onQueueSize != nil {
		c.onQueueSize(*q)
	}
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.hcli.Do(req)
	if err != nil {
		return nil, &UnreachableError{Host: c.host, Err: err}
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string) (io.ReadCloser, error) {
	addr := fmt.Sprintf("http://%s%s", c.host, path)
	req, err := http.NewRequestWithContext(ctx, "GET", addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &ServerError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	rc, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return json.NewDecoder(rc).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, data, out any) error {
	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(data)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("http://%s%s", c.host, path)
	req, err := http.NewRequestWithContext(ctx, "POST", addr, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ServerError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
