package main

import (
	"fmt"
	"os"

	"briefboard/internal/config"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	app := &cli.App{
		Name:  "briefctl",
		Usage: "submit documents for summarization and compare models",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", EnvVars: []string{"BRIEFBOARD_USER"}, Usage: "username the records belong to"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"BRIEFBOARD_TOKEN"}, Usage: "bearer token for the summarization service"},
			&cli.StringFlag{Name: "cache", Value: cfg.CachePath, Usage: "SQLite file holding the offline history"},
		},
		Commands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "summarize files and pasted text, one input at a time",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "model", Value: cfg.DefaultModel},
					&cli.StringFlag{Name: "text", Usage: "free text submitted as a synthetic .txt input"},
					&cli.BoolFlag{Name: "async", Usage: "run the batch as a Temporal workflow"},
				},
				Action: withEnv(cfg, submitAction),
			},
			{
				Name:  "history",
				Usage: "list records newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Usage: "match filename, date or model"},
					&cli.BoolFlag{Name: "offline", Usage: "read the last cached snapshot"},
				},
				Action: withEnv(cfg, historyAction),
			},
			{
				Name:      "delete",
				Usage:     "delete one record and refresh",
				ArgsUsage: "<id>",
				Action:    withEnv(cfg, deleteAction),
			},
			{
				Name:      "leaderboard",
				Usage:     "rank models by quality or toxicity reduction",
				ArgsUsage: "quality|ethics",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sort", Value: "overall"},
					&cli.BoolFlag{Name: "offline", Usage: "rank the last cached snapshot"},
				},
				Action: withEnv(cfg, leaderboardAction),
			},
			{
				Name:      "inspect",
				Usage:     "preview size, pages and words without submitting",
				ArgsUsage: "[files...]",
				Action:    withEnv(cfg, inspectAction),
			},
			{
				Name:   "models",
				Usage:  "list selectable models",
				Action: withEnv(cfg, modelsAction),
			},
			{
				Name:  "token",
				Usage: "sign a dashboard token with BRIEFBOARD_AUTH_SECRET",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "ttl", Value: 0, Usage: "token lifetime (default 24h)"},
				},
				Action: withEnv(cfg, tokenAction),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
