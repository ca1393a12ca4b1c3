package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/VHWeng/zimagegen"
	"github.com/VHWeng/zimagegen/ollama"
)

var (
	Root = &cli.Command{
		Name:  "zimagegen",
		Usage: "Text-to-image pipeline for a local ComfyUI, with Ollama prompt expansion",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "host and port for ComfyUI",
				Value:       comfyHost,
				Destination: &comfyHost,
				Persistent:  true,
			},
			&cli.StringFlag{
				Name:        "ollama-addr",
				Usage:       "host and port for Ollama",
				Value:       ollamaHost,
				Destination: &ollamaHost,
				Persistent:  true,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "enable debug logging",
				Destination: &debug,
				Persistent:  true,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) error {
			lvl := slog.LevelInfo
			if debug {
				lvl = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
			return nil
		},
	}
	comfyHost  = zimagegen.DefaultHost
	ollamaHost = ollama.DefaultHost
	debug      bool
)

func getClient(ctx context.Context) (*zimagegen.Client, error) {
	return zimagegen.NewClient(ctx, comfyHost)
}

func getOllama() *ollama.Client {
	return ollama.NewClient(ollamaHost)
}

func main() {
	// optional .env with ZIMAGEGEN_ADDR / ZIMAGEGEN_OLLAMA_ADDR defaults
	_ = godotenv.Load()
	if v := os.Getenv("ZIMAGEGEN_ADDR"); v != "" {
		comfyHost = v
	}
	if v := os.Getenv("ZIMAGEGEN_OLLAMA_ADDR"); v != "" {
		ollamaHost = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := Root.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
