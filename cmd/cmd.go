// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, csv, markdown, txt",
		Value:   value,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write results to a file instead of stdout",
	}
}

func quietFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "Do not print progress",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:    "database",
				Aliases: []string{"db"},
				Usage:   "Initialize database and run migrations",
				Action:  r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the latest database migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
		},
	}
}

// searchCommand suggests and resolves tracks for a free-text query.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Find tracks for a free-text request",
		ArgsUsage: "<query...>",
		Flags: []cli.Flag{
			formatFlag("txt"),
			outputFlag(),
			quietFlag(),
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Record the search in the history database",
			},
		},
		Action: r.Search,
	}
}

// suggestCommand prints suggestion candidates only.
func suggestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Show the candidates the suggestion provider returns for a query",
		ArgsUsage: "<query...>",
		Flags:     jsonFlags(),
		Action:    r.Suggest,
	}
}

// resolveCommand resolves an explicit candidate list.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve \"Title - Artist\" candidates against the catalog",
		ArgsUsage: "[\"Title - Artist\"...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read candidates from a file, one per line (- for stdin)",
			},
			formatFlag("txt"),
			outputFlag(),
			quietFlag(),
		},
		Action: r.Resolve,
	}
}

// lookupCommand fetches catalog records by id.
func lookupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Fetch catalog tracks by provider id",
		ArgsUsage: "<id...>",
		Flags:     jsonFlags(),
		Action:    r.Lookup,
	}
}

// exportCommand runs a batch of searches into an output directory.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Search several queries and export each result set",
		ArgsUsage: "[query...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read queries from a file, one per line (- for stdin)",
			},
			formatFlag("json"),
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"d"},
				Usage:   "Output directory (default: trackx_export_{timestamp})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent searches (max 5)",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "rate",
				Usage: "Searches started per second",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "no-images",
				Usage: "Skip cover downloads for markdown exports",
			},
		},
		Action: r.Export,
	}
}

// historyCommand lists recorded searches.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent searches from the history database",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of searches to list",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Show the tracks of one search",
			},
		}, jsonFlags()...),
		Action: r.History,
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default from config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default from config)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record searches or serve /history",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive search.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for track search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI is running",
				Value: "./tmp/trackx-tui.log",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record searches",
			},
		},
		Action: r.TUI,
	}
}
