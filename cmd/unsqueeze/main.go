// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command unsqueeze identifies and unpacks Amiga and Atari packed files.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "unsqueeze:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cfg := new(Config)
	return &cli.App{
		Name:  "unsqueeze",
		Usage: "Identify and unpack Amiga and Atari packed files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config file",
				Value: defaultConfigPath(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log each step to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			*cfg, err = readConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("verbose") {
				cfg.Verbose = c.Bool("verbose")
			}
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "Print the format of each file",
				ArgsUsage: "FILE...",
				Action:    detectFiles,
			},
			{
				Name:      "info",
				Usage:     "Print the format and sizes of each file",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "csv", Usage: "print a CSV table"},
				},
				Action: infoFiles,
			},
			{
				Name:      "unpack",
				Usage:     "Decode every file matching the patterns",
				ArgsUsage: "GLOB...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write outputs to `DIR` instead of beside the inputs"},
					&cli.StringFlag{Name: "store", Usage: "remember outputs in the database at `DIR`"},
					&cli.BoolFlag{Name: "no-verify", Usage: "skip checksums"},
					&cli.BoolFlag{Name: "image", Usage: "write whole disk images, blank where the archive has no tracks"},
					&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "files to decode at once (default: CPU count)"},
				},
				Action: func(c *cli.Context) error { return unpackFiles(c, *cfg) },
			},
			{
				Name:      "cat",
				Usage:     "Write the decoded file to stdout",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-verify", Usage: "skip checksums"},
				},
				Action: func(c *cli.Context) error { return catFile(c, *cfg) },
			},
		},
	}
}
