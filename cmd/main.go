package main

import (
	"context"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/services"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := defaultConfigPath
	if v, ok := os.LookupEnv("MEDIASYNC_CONFIG"); ok && v != "" {
		configPath = v
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	} else {
		shared.ApplyEnv(config)
	}

	httpClient := &http.Client{Timeout: config.RequestTimeout()}
	api := services.NewAPIService(config.Service.BaseURL, config.Service.APIToken, httpClient)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		API:        api,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:    "mediasync",
		Usage:   "Watch remote media transfers and keep the push session tidy",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
