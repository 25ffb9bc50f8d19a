// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: txt, json, csv, markdown",
			Value:   "txt",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// sessionCommand handles the push session lifecycle.
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Connect to the transfer service and manage the push session",
		Commands: []*cli.Command{
			{
				Name:    "watch",
				Aliases: []string{"ui", "tui"},
				Usage:   "Interactive panel with session status, transfers and settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-connect",
						Usage: "Do not connect automatically on start",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Log destination while the panel owns the terminal",
						Value: "./tmp/mediasync.log",
					},
				},
				Action: r.SessionWatch,
			},
			{
				Name:  "serve",
				Usage: "Serve the session over a local HTTP API and websocket stream",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-connect",
						Usage: "Do not connect automatically on start",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the status endpoint in a browser",
					},
				},
				Action: r.SessionServe,
			},
			{
				Name:  "status",
				Usage: "Show the status of a running `session serve`",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionStatus,
			},
		},
	}
}

// transfersCommand lists transfers known to the service.
func transfersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfers",
		Usage: "Inspect transfers on the service",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List transfers",
				Flags: append(formatFlags(),
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Read the last snapshot from the database instead of the service",
					},
				),
				Action: r.TransfersList,
			},
			{
				Name:  "active",
				Usage: "Report whether any transfer is queued or running",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TransfersActive,
			},
		},
	}
}

// historyCommand reads recorded session transitions.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Session history recorded by watch and serve",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List session events",
				Flags: append(formatFlags(),
					&cli.StringFlag{
						Name:  "session",
						Usage: "Only events of this session ID",
					},
					&cli.StringFlag{
						Name:  "state",
						Usage: "Only events of this kind (connected, disconnected, auto_disconnected, ...)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Newest N events",
						Value: 50,
					},
				),
				Action: r.HistoryList,
			},
		},
	}
}
