// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/poiesic/docqa/config"
	"github.com/urfave/cli/v2"
)

const (
	defaultConfigPath = "docqa.yaml"
	defaultStorePath  = ".docqa"
	configKey         = "config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func docFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "doc",
		Aliases:  []string{"d"},
		Usage:    "Document id printed by ingest",
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docqa",
		Usage: "Ask questions about PDF, DOCX and text documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   defaultConfigPath,
				EnvVars: []string{"DOCQA_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Usage:   "Index store directory (overrides storage.path)",
				EnvVars: []string{"DOCQA_STORE"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Bearer token for the language model and embedding APIs",
				EnvVars: []string{"DOCQA_API_KEY"},
			},
			&cli.BoolFlag{
				Name:  "no-llm",
				Usage: "Answer without a language model",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides logging.level",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Index one or more documents",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
			},
			{
				Name:      "ask",
				Usage:     "Answer questions about an indexed document",
				ArgsUsage: "[QUESTION]",
				Action:    askCommand,
				Flags: []cli.Flag{
					docFlag(),
					&cli.StringSliceFlag{
						Name:    "question",
						Aliases: []string{"q"},
						Usage:   "Additional question to answer; repeatable",
					},
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Question category overriding classification (coverage, exclusion, claims-process, premium, duration, definitions, policy-number, general)",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print the evidence and the confidence breakdown",
					},
				},
			},
			{
				Name:   "fields",
				Usage:  "Show structured fields extracted from a document",
				Action: fieldsCommand,
				Flags:  []cli.Flag{docFlag()},
			},
			{
				Name:   "describe",
				Usage:  "Summarise an indexed document",
				Action: describeCommand,
				Flags:  []cli.Flag{docFlag()},
			},
			{
				Name:   "list",
				Usage:  "List indexed documents",
				Action: listCommand,
			},
			{
				Name:   "status",
				Usage:  "Report index and language model readiness",
				Action: statusCommand,
			},
			{
				Name:   "forget",
				Usage:  "Remove a document and its index",
				Action: forgetCommand,
				Flags:  []cli.Flag{docFlag()},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild indexes made with another embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rebuild every stored index",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the MCP tools over stdio, or SSE with --sse-addr",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "sse-addr",
						Usage: "Listen address for the MCP SSE transport",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Listen address for Prometheus metrics",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Keep directories indexed as files change",
				ArgsUsage: "DIR...",
				Action:    watchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Listen address for Prometheus metrics",
					},
				},
			},
		},
	}
}

// setup loads .env, then the configuration, then installs the logger.
func setup(c *cli.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if store := c.String("store"); store != "" {
		cfg.Storage.Path = store
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(defaultStorePath, "indexes")
	}
	// flags read the environment before .env is loaded
	key := c.String("api-key")
	if key == "" {
		key = os.Getenv("DOCQA_API_KEY")
	}
	if key != "" {
		cfg.AI.APIKey = key
	}
	if c.Bool("no-llm") {
		cfg.AI.GeneratorModel = ""
	}

	levelStr := cfg.Logging.Level
	if c.IsSet("log-level") {
		levelStr = c.String("log-level")
	}
	level, err := config.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}
