package main

import (
	"archive/zip"
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/VHWeng/zimagegen/batch"
	"github.com/VHWeng/zimagegen/graph/workflow"
	"github.com/VHWeng/zimagegen/ollama"
)

func init() {
	var (
		inFile    string
		outFile   string
		zipFile   string
		delimiter = "comma"
		expand    bool
		model     string
		style     string
		language  string
		size      sizeFlags
	)
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "in",
			Usage:       "input CSV with one phrase per row",
			Destination: &inFile,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "out",
			Usage:       "result CSV path",
			Destination: &outFile,
		},
		&cli.StringFlag{
			Name:        "zip",
			Usage:       "also write a zip bundle with the CSV and images",
			Destination: &zipFile,
		},
		&cli.StringFlag{
			Name:        "delimiter",
			Usage:       "CSV delimiter: comma, tab, semicolon or pipe",
			Value:       delimiter,
			Destination: &delimiter,
		},
		&cli.BoolFlag{
			Name:        "expand",
			Usage:       "fill missing image prompts with Ollama before generating",
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
	}
	flags = append(flags, size.flags()...)

	Root.Commands = append(Root.Commands, &cli.Command{
		Name:  "batch",
		Usage: "generate images for every row of a CSV file",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			delim, err := batch.ParseDelimiter(delimiter)
			if err != nil {
				return err
			}
			dims, err := size.resolve()
			if err != nil {
				return err
			}

			f, err := os.Open(inFile)
			if err != nil {
				return err
			}
			rows, err := batch.ReadRows(f, delim)
			f.Close()
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("no rows in %s", inFile)
			}

			if expand {
				if err := expandRows(ctx, rows, ollama.BatchOptions{
					Model:    model,
					Style:    style,
					Language: language,
				}); err != nil {
					return err
				}
			}

			c, err := getClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			bar := progressbar.Default(int64(len(rows)), "generating")
			gen := func(ctx context.Context, row batch.Row) ([]byte, error) {
				g, err := workflow.Build(workflow.Request{
					PromptText: row.ImagePrompt,
					Width:      dims.Width,
					Height:     dims.Height,
				})
				if err != nil {
					return nil, err
				}
				id, err := c.Submit(ctx, g)
				if err != nil {
					return nil, err
				}
				data, err := c.WaitForImage(ctx, id)
				if err != nil {
					return nil, err
				}
				return batch.EncodeJPEG(data)
			}
			res, err := batch.Run(ctx, rows, gen, batch.RunOptions{
				OnProgress: func(index, total int, err error) {
					_ = bar.Add(1)
				},
			})
			if err != nil {
				return err
			}
			_ = bar.Finish()
			fmt.Printf("generated %d, failed %d, skipped %d\n",
				len(res.Images), res.Failed(), res.Skipped)

			if outFile != "" {
				out, err := os.Create(outFile)
				if err != nil {
					return err
				}
				if err := batch.WriteRows(out, rows, delim); err != nil {
					out.Close()
					return err
				}
				if err := out.Close(); err != nil {
					return err
				}
			}
			if zipFile != "" {
				zf, err := os.Create(zipFile)
				if err != nil {
					return err
				}
				zw := zip.NewWriter(zf)
				if err := batch.WriteBundle(zw, rows, res.Images, delim); err != nil {
					zf.Close()
					return err
				}
				if err := zw.Close(); err != nil {
					zf.Close()
					return err
				}
				if err := zf.Close(); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// expandRows fills empty image prompts (plus pronunciation fields) in place.
func expandRows(ctx context.Context, rows []batch.Row, opts ollama.BatchOptions) error {
	var phrases []string
	var targets []int
	for i, row := range rows {
		if row.ImagePrompt == "" && row.Phrase != "" {
			phrases = append(phrases, row.Phrase)
			targets = append(targets, i)
		}
	}
	if len(phrases) == 0 {
		return nil
	}
	exps, failed, err := getOllama().ExpandBatch(ctx, phrases, opts)
	if err != nil {
		return err
	}
	if failed > 0 {
		fmt.Printf("prompt expansion: %d of %d phrases failed\n", failed, len(phrases))
	}
	for j, exp := range exps {
		i := targets[j]
		rows[i].ImagePrompt = exp.Text
		if rows[i].Pronunciation == "" {
			rows[i].Pronunciation = exp.Pronunciation
		}
		if rows[i].IPA == "" {
			rows[i].IPA = exp.IPA
		}
	}
	return nil
}
