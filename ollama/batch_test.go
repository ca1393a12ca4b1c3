package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shoenig/test/must"
)

func chunkReply(prompts ...string) string {
	type item struct {
		Prompt string `json:"prompt"`
	}
	items := make([]item, len(prompts))
	for i, p := range prompts {
		items[i] = item{Prompt: p}
	}
	b, _ := json.Marshal(map[string]any{"prompts": items})
	return string(b)
}

func TestExpandBatchChunks(t *testing.T) {
	phrases := make([]string, 12)
	for i := range phrases {
		phrases[i] = fmt.Sprintf("phrase %d", i)
	}

	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		req := decodeGenerate(t, r)
		// one prompt per numbered phrase, echoing the phrase back
		var prompts []string
		for _, line := range strings.Split(req.Prompt, "\n") {
			if i := strings.Index(line, ". phrase "); i >= 0 {
				prompts = append(prompts, "a detailed scene of "+line[i+2:])
			}
		}
		reply(w, chunkReply(prompts...))
	})
	c := testClient(t, mux)

	var progress []int
	results, failed, err := c.ExpandBatch(context.Background(), phrases, BatchOptions{
		ChunkSize:   5,
		BackoffBase: time.Millisecond,
		OnProgress:  func(done, total int) { progress = append(progress, done) },
	})
	must.NoError(t, err)
	must.EqOp(t, 0, failed)
	must.Len(t, 12, results)
	must.Eq(t, []int{5, 10, 12}, progress)
	for i, exp := range results {
		must.EqOp(t, fmt.Sprintf("a detailed scene of phrase %d", i), exp.Text)
	}
	must.EqOp(t, int64(3), calls.Load())
}

func TestExpandBatchRetries(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		reply(w, chunkReply("a red bicycle leaning on a brick wall"))
	})
	c := testClient(t, mux)

	results, failed, err := c.ExpandBatch(context.Background(), []string{"bicycle"}, BatchOptions{
		BackoffBase: time.Millisecond,
	})
	must.NoError(t, err)
	must.EqOp(t, 0, failed)
	must.EqOp(t, int64(3), calls.Load())
	must.EqOp(t, "a red bicycle leaning on a brick wall", results[0].Text)
}

func TestExpandBatchChunkFailureContinues(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		// the first chunk fails on every attempt, the second succeeds
		if n <= 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		reply(w, chunkReply("an old lighthouse on a stormy coast"))
	})
	c := testClient(t, mux)

	results, failed, err := c.ExpandBatch(context.Background(), []string{"boat", "lighthouse"}, BatchOptions{
		ChunkSize:   1,
		Retries:     2,
		BackoffBase: time.Millisecond,
	})
	must.NoError(t, err)
	must.EqOp(t, 1, failed)
	must.Len(t, 2, results)
	must.EqOp(t, "", results[0].Text)
	must.EqOp(t, "an old lighthouse on a stormy coast", results[1].Text)
}

func TestExpandBatchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		reply(w, chunkReply("a paper lantern floating down a river"))
		cancel()
	})
	c := testClient(t, mux)

	results, _, err := c.ExpandBatch(ctx, []string{"lantern", "river"}, BatchOptions{
		ChunkSize:   1,
		BackoffBase: time.Millisecond,
	})
	must.ErrorIs(t, err, context.Canceled)
	must.Len(t, 2, results)
	// the second chunk never starts
	must.EqOp(t, int64(1), calls.Load())
	must.EqOp(t, "", results[1].Text)
}

func TestFillChunkShortReply(t *testing.T) {
	dst := make([]Expansion, 3)
	failed := fillChunk(dst, chunkReply("a cat sleeping in a sunbeam by the window"))
	must.EqOp(t, 2, failed)
	must.EqOp(t, "a cat sleeping in a sunbeam by the window", dst[0].Text)
	must.EqOp(t, "", dst[1].Text)
}
