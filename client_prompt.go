package zimagegen

import (
	"context"
	"io"
	"time"

	"github.com/VHWeng/zimagegen/graph/apigraph"
	"github.com/VHWeng/zimagegen/graph/types"
)

// Submit queues a prompt document for execution and returns the job
// identifier. The identifier stays valid for as long as the server keeps the
// job's history record.
func (c *Client) Submit(ctx context.Context, g *apigraph.Graph) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	var res struct {
		PromptID string `json:"prompt_id"`
	}
	err := c.postJSON(ctx, "/prompt", struct {
		ClientID string `json:"client_id"`
		Prompt   any    `json:"prompt"`
	}{
		ClientID: c.id,
		Prompt:   g,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.PromptID == "" {
		return "", ErrNoJobID
	}
	return res.PromptID, nil
}

// Cancel removes the given jobs from the server queue, or clears the whole
// queue when no ids are given.
func (c *Client) Cancel(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return c.postJSON(ctx, "/queue", struct {
			Clear bool `json:"clear"`
		}{
			Clear: true,
		}, nil)
	}
	return c.postJSON(ctx, "/queue", struct {
		Delete []string `json:"delete"`
	}{
		Delete: ids,
	}, nil)
}

// Interrupt stops the currently executing job.
func (c *Client) Interrupt(ctx context.Context) error {
	return c.postJSON(ctx, "/interrupt", struct{}{}, nil)
}

type NodeResult struct {
	Images []ImageRef
}

type Results map[types.NodeID]NodeResult

type historyEntry struct {
	Outputs map[types.NodeID]struct {
		Images []ImageRef `json:"images"`
	} `json:"outputs"`
	Status struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
}

// JobResults fetches the history record for a job and returns the per-node
// outputs collected so far.
func (c *Client) JobResults(ctx context.Context, id string) (Results, error) {
	var res map[string]historyEntry
	err := c.getJSON(ctx, "/history/"+id, &res)
	if err != nil {
		return nil, err
	}
	out := make(Results)
	for node, v := range res[id].Outputs {
		out[node] = NodeResult{Images: v.Images}
	}
	return out, nil
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 120
)

type pollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

type PollOption func(*pollConfig)

func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.Interval = d
	}
}

func WithMaxAttempts(n int) PollOption {
	return func(c *pollConfig) {
		c.MaxAttempts = n
	}
}

// WaitForImage polls the job's history record at a fixed interval until any
// output node reports an image, then downloads and returns the image bytes.
//
// A record that is completed but has no images fails with ErrEmptyResult
// right away. Transient errors while polling are logged and retried; when
// MaxAttempts is exhausted the call fails with ErrPollTimeout. Cancelling the
// context stops the wait at the next poll boundary.
func (c *Client) WaitForImage(ctx context.Context, id string, opts ...PollOption) ([]byte, error) {
	cfg := pollConfig{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
	for _, o := range opts {
		o(&cfg)
	}
	log := c.log.With("jobID", id)
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, cfg.Interval); err != nil {
				return nil, err
			}
		}
		var res map[string]historyEntry
		if err := c.getJSON(ctx, "/history/"+id, &res); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("polling error", "err", err, "attempt", attempt)
			continue
		}
		entry, ok := res[id]
		if !ok {
			continue
		}
		// any output node carrying images qualifies; the save node's
		// identifier is not assumed
		for node, out := range entry.Outputs {
			if len(out.Images) == 0 {
				continue
			}
			log.Debug("job output ready", "node", node, "images", len(out.Images))
			return c.downloadImage(ctx, out.Images[0])
		}
		if entry.Status.Completed {
			return nil, ErrEmptyResult
		}
	}
	return nil, ErrPollTimeout
}

func (c *Client) downloadImage(ctx context.Context, ref ImageRef) ([]byte, error) {
	if ref.Type == "" {
		ref.Type = ImageOutput
	}
	rc, err := c.GetImageFile(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
