// Package ollama is a minimal client for a local Ollama server, used to
// expand short phrases into full image-generation prompts.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultHost is where a locally-run Ollama listens.
const DefaultHost = "127.0.0.1:11434"

// DefaultModel is used when a request does not name one.
const DefaultModel = "llama3.2"

type Client struct {
	host string
	hcli *http.Client
	log  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		c.hcli = cli
	}
}

func WithLog(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(host string, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}
	c := &Client{
		host: host,
		hcli: http.DefaultClient,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	// Format set to "json" asks the model for structured output.
	Format string `json:"format,omitempty"`
}

// StatusError is a non-success HTTP response from the server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.Status, e.Body)
}

// Generate runs a single non-streaming completion and returns the raw
// response text.
func (c *Client) Generate(ctx context.Context, model, prompt, format string) (string, error) {
	if model == "" {
		model = DefaultModel
	}
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Format: format,
	})
	if err != nil {
		return "", err
	}
	addr := fmt.Sprintf("http://%s/api/generate", c.host)
	req, err := http.NewRequestWithContext(ctx, "POST", addr, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hcli.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("cannot decode response: %w", err)
	}
	return out.Response, nil
}

// Models lists the names of installed models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	addr := fmt.Sprintf("http://%s/api/tags", c.host)
	req, err := http.NewRequestWithContext(ctx, "GET", addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hcli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("cannot decode model list: %w", err)
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
