package batch

import (
	"context"
	"log/slog"
)

// Generator produces the image bytes for one row.
type Generator func(ctx context.Context, row Row) ([]byte, error)

type RunOptions struct {
	Log *slog.Logger
	// OnProgress, when set, is called after every processed row (including
	// failed ones, with the error) in input order.
	OnProgress func(index, total int, err error)
}

// Result collects the outcome of a batch run. Images are keyed by row index
// and inserted once per row, never overwritten.
type Result struct {
	Images  map[int][]byte
	Errors  map[int]error
	Skipped int
}

func (r *Result) Failed() int {
	return len(r.Errors)
}

// Run generates an image for every row with a non-empty ImagePrompt, strictly
// sequentially in input order. A failing row is recorded and the run moves
// on; rows without a prompt are skipped silently and not counted as failures.
// Cancelling the context stops the run at the next row boundary and returns
// the partial result with the context error.
func Run(ctx context.Context, rows []Row, gen Generator, opts RunOptions) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	res := &Result{
		Images: make(map[int][]byte),
		Errors: make(map[int]error),
	}
	for i, row := range rows {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if row.ImagePrompt == "" {
			res.Skipped++
			continue
		}
		data, err := gen(ctx, row)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("row failed", "row", i, "phrase", row.Phrase, "err", err)
			res.Errors[i] = err
		} else {
			res.Images[i] = data
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i, len(rows), err)
		}
	}
	return res, nil
}
