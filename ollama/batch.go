package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultChunkSize   = 10
	DefaultRetries     = 3
	DefaultBackoffBase = 2 * time.Second
)

type BatchOptions struct {
	Model    string
	Style    string
	Language string
	// ChunkSize bounds how many phrases go into one request. Zero means 10.
	ChunkSize int
	// Retries is the per-chunk retry count on network failure or
	// non-success status. Zero means 3.
	Retries uint64
	// BackoffBase is the initial retry delay, doubled on each retry. Zero
	// means 2s.
	BackoffBase time.Duration
	// OnProgress, when set, is called after each chunk with the number of
	// phrases processed so far.
	OnProgress func(done, total int)
}

// ExpandBatch expands phrases in chunks. The result slice always has one
// entry per input phrase, in input order; phrases that could not be expanded
// get a zero Expansion and are counted in failed. A failing chunk never
// aborts the rest of the batch. Cancelling the context stops the run between
// chunks, returning the partial results together with the context error.
func (c *Client) ExpandBatch(ctx context.Context, phrases []string, opts BatchOptions) (results []Expansion, failed int, err error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	retries := opts.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}

	results = make([]Expansion, len(phrases))
	for start := 0; start < len(phrases); start += chunkSize {
		if ctx.Err() != nil {
			return results, failed, ctx.Err()
		}
		end := min(start+chunkSize, len(phrases))
		chunk := phrases[start:end]

		var raw string
		op := func() error {
			var gerr error
			raw, gerr = c.Generate(ctx, opts.Model, chunkInstruction(chunk, opts), "json")
			return gerr
		}
		bo := backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(base),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
		)
		retryErr := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
		if retryErr != nil {
			if ctx.Err() != nil {
				return results, failed + len(chunk), ctx.Err()
			}
			c.log.Warn("batch chunk failed", "start", start, "size", len(chunk), "err", retryErr)
			failed += len(chunk)
		} else {
			failed += fillChunk(results[start:end], raw)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(end, len(phrases))
		}
	}
	return results, failed, nil
}

func chunkInstruction(phrases []string, opts BatchOptions) string {
	var b strings.Builder
	b.WriteString("For each of the following phrases, write a detailed image generation prompt illustrating it")
	if opts.Language != "" {
		fmt.Fprintf(&b, " (the phrases are in %s)", opts.Language)
	}
	if opts.Style != "" {
		fmt.Fprintf(&b, ", in a %s style", opts.Style)
	}
	b.WriteString(`. Respond with a single JSON object {"prompts": [...]} holding one object per phrase, in order, each with the fields "prompt", "pronunciation" and "ipa".`)
	b.WriteString("\nPhrases:\n")
	for i, p := range phrases {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	return b.String()
}

// fillChunk parses a chunk reply into dst and returns how many positions
// stayed empty. Replies shorter than the chunk leave the tail empty; longer
// replies are truncated.
func fillChunk(dst []Expansion, raw string) (failed int) {
	items := parseItems(raw)
	for i := range dst {
		if i < len(items) {
			exp := Expansion{
				Text:          stringField(items[i], "prompt", "text", "description", "response"),
				Pronunciation: stringField(items[i], "pronunciation", "reading"),
				IPA:           stringField(items[i], "ipa"),
			}
			if len(exp.Text) > 5 {
				dst[i] = exp
				continue
			}
		}
		failed++
	}
	return failed
}

func parseItems(raw string) []map[string]any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	var list []any
	switch v := v.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range []string{"prompts", "items"} {
			if l, ok := v[key].([]any); ok {
				list = l
				break
			}
		}
		if list == nil && hasTextField(v) {
			return []map[string]any{v}
		}
	}
	var items []map[string]any
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}
