package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/VHWeng/zimagegen/ollama"
)

func init() {
	var (
		model      string
		style      string
		language   string
		structured bool
	)
	Root.Commands = append(Root.Commands, &cli.Command{
		Name:      "expand",
		Usage:     "expand a phrase into an image prompt with Ollama",
		ArgsUsage: "<phrase>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Usage:       "Ollama model name",
				Destination: &model,
			},
			&cli.StringFlag{
				Name:        "style",
				Usage:       "style directive for the prompt",
				Destination: &style,
			},
			&cli.StringFlag{
				Name:        "language",
				Usage:       "source language of the phrase",
				Destination: &language,
			},
			&cli.BoolFlag{
				Name:        "structured",
				Usage:       "also request pronunciation and IPA as JSON",
				Destination: &structured,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			phrase := cmd.Args().First()
			if phrase == "" {
				return fmt.Errorf("missing phrase argument")
			}
			exp, err := getOllama().Expand(ctx, ollama.ExpandRequest{
				Phrase:     phrase,
				Model:      model,
				Style:      style,
				Language:   language,
				Structured: structured,
			})
			if err != nil {
				return err
			}
			fmt.Println(exp.Text)
			if exp.Pronunciation != "" {
				fmt.Println("pronunciation:", exp.Pronunciation)
			}
			if exp.IPA != "" {
				fmt.Println("ipa:", exp.IPA)
			}
			return nil
		},
	})

	Root.Commands = append(Root.Commands, &cli.Command{
		Name:  "models",
		Usage: "list models installed on the Ollama server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			names, err := getOllama().Models(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	})
}
