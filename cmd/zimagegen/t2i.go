package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/VHWeng/zimagegen"
	"github.com/VHWeng/zimagegen/batch"
	"github.com/VHWeng/zimagegen/graph/workflow"
	"github.com/VHWeng/zimagegen/ollama"
)

// sizeFlags resolves --width/--height, --preset and --aspect/--base into a
// final image size.
type sizeFlags struct {
	Width  int64
	Height int64
	Preset string
	Aspect string
	Base   int64
}

func (f *sizeFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "width",
			Usage:       "image width (multiple of 8)",
			Value:       512,
			Destination: &f.Width,
		},
		&cli.IntFlag{
			Name:        "height",
			Usage:       "image height (multiple of 8)",
			Value:       512,
			Destination: &f.Height,
		},
		&cli.StringFlag{
			Name:        "preset",
			Usage:       "named size preset (small, square, portrait, landscape, wide)",
			Destination: &f.Preset,
		},
		&cli.StringFlag{
			Name:        "aspect",
			Usage:       "aspect ratio like 16:9, combined with --base",
			Destination: &f.Aspect,
		},
		&cli.IntFlag{
			Name:        "base",
			Usage:       "base size for --aspect",
			Value:       512,
			Destination: &f.Base,
		},
	}
}

func (f *sizeFlags) resolve() (workflow.Size, error) {
	if f.Preset != "" {
		size, ok := workflow.Presets[f.Preset]
		if !ok {
			return workflow.Size{}, fmt.Errorf("unknown preset %q", f.Preset)
		}
		return size, nil
	}
	if f.Aspect != "" {
		var rw, rh int
		if _, err := fmt.Sscanf(f.Aspect, "%d:%d", &rw, &rh); err != nil {
			return workflow.Size{}, fmt.Errorf("cannot parse aspect ratio %q", f.Aspect)
		}
		size := workflow.FitAspect(rw, rh, int(f.Base))
		if size.Width == 0 {
			return workflow.Size{}, fmt.Errorf("invalid aspect ratio %q", f.Aspect)
		}
		return size, nil
	}
	return workflow.Size{Width: int(f.Width), Height: int(f.Height)}, nil
}

func init() {
	var (
		promptStr    string
		seed         int64
		workflowFile string
		outFile      = "output.png"
		expand       bool
		model        string
		style        string
		language     string
		pollSecs     = int64(2)
		maxAttempts  = int64(120)
		size         sizeFlags
	)
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Usage:       "image prompt, or the phrase to expand with --expand",
			Destination: &promptStr,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "seed",
			Usage:       "sampler seed (0 to pick random)",
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "workflow",
			Usage:       "workflow JSON replacing the built-in pipeline (UI export or flat)",
			Destination: &workflowFile,
		},
		&cli.StringFlag{
			Name:        "out",
			Usage:       "output file name (.png or .jpg)",
			Value:       outFile,
			Destination: &outFile,
		},
		&cli.BoolFlag{
			Name:        "expand",
			Usage:       "expand the prompt with Ollama before generating",
			Destination: &expand,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Ollama model for --expand",
			Destination: &model,
		},
		&cli.StringFlag{
			Name:        "style",
			Usage:       "style directive for --expand",
			Destination: &style,
		},
		&cli.StringFlag{
			Name:        "language",
			Usage:       "source language hint for --expand",
			Destination: &language,
		},
		&cli.IntFlag{
			Name:        "poll-interval",
			Usage:       "seconds between status polls",
			Value:       pollSecs,
			Destination: &pollSecs,
		},
		&cli.IntFlag{
			Name:        "max-attempts",
			Usage:       "poll attempts before giving up",
			Value:       maxAttempts,
			Destination: &maxAttempts,
		},
	}
	flags = append(flags, size.flags()...)

	Root.Commands = append(Root.Commands, &cli.Command{
		Name:  "t2i",
		Usage: "generate an image from a text prompt",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dims, err := size.resolve()
			if err != nil {
				return err
			}

			prompt := promptStr
			if expand {
				exp, err := getOllama().Expand(ctx, ollama.ExpandRequest{
					Phrase:   promptStr,
					Model:    model,
					Style:    style,
					Language: language,
				})
				if err != nil {
					return fmt.Errorf("prompt expansion failed: %w", err)
				}
				prompt = exp.Text
				fmt.Println("expanded prompt:", prompt)
			}

			req := workflow.Request{
				PromptText: prompt,
				Width:      dims.Width,
				Height:     dims.Height,
			}
			if seed != 0 {
				s := uint32(seed)
				req.Seed = &s
			}
			if workflowFile != "" {
				data, err := os.ReadFile(workflowFile)
				if err != nil {
					return err
				}
				req.Override = json.RawMessage(data)
			}
			g, err := workflow.Build(req)
			if err != nil {
				return err
			}

			c, err := getClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			id, err := c.Submit(ctx, g)
			if err != nil {
				return err
			}
			fmt.Println("queued job:", id)

			data, err := c.WaitForImage(ctx, id,
				zimagegen.WithPollInterval(time.Duration(pollSecs)*time.Second),
				zimagegen.WithMaxAttempts(int(maxAttempts)),
			)
			if err != nil {
				return err
			}
			if isJPEG(outFile) {
				if data, err = batch.EncodeJPEG(data); err != nil {
					return err
				}
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return err
			}
			fmt.Println("saved:", outFile)
			return nil
		},
	})
}

func isJPEG(name string) bool {
	low := strings.ToLower(name)
	return strings.HasSuffix(low, ".jpg") || strings.HasSuffix(low, ".jpeg")
}
